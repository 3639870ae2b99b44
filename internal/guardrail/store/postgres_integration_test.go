//go:build integration

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"aegis/internal/guardrail/models"
	"aegis/pkg/domain"
	"aegis/pkg/platform/sentinel"
)

// Run with: go test -tags=integration -timeout 120s ./internal/guardrail/store/...
func TestPostgresStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("aegis_test"),
		postgres.WithUsername("aegis"),
		postgres.WithPassword("aegis"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile(filepath.Join("..", "..", "..", "migrations", "001_init.sql"))
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err)

	tenantID := seedTenant(t, ctx, pool, "acme")
	otherTenant := seedTenant(t, ctx, pool, "globex")

	store := NewPostgresStore(pool)
	now := time.Now().UTC().Truncate(time.Microsecond)
	guardrail := &models.Guardrail{
		ID:        domain.NewGuardrailID(),
		TenantID:  tenantID,
		Key:       "pii-redactor",
		Version:   "v1",
		Tier:      2,
		Params:    map[string]any{"mode": "strict"},
		Fallback:  domain.FallbackSkip,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	require.NoError(t, store.Create(ctx, guardrail))

	t.Run("string version round-trips", func(t *testing.T) {
		got, err := store.FindByID(ctx, tenantID, guardrail.ID)
		require.NoError(t, err)
		assert.Equal(t, "v1", got.Version)
		assert.Equal(t, "pii-redactor", got.Key)
		assert.Equal(t, 2, got.Tier)
		assert.Equal(t, "strict", got.Params["mode"])
	})

	t.Run("duplicate key and version conflicts", func(t *testing.T) {
		dup := *guardrail
		dup.ID = domain.NewGuardrailID()
		require.ErrorIs(t, store.Create(ctx, &dup), sentinel.ErrConflict)

		// A new version of the same key is a distinct row.
		v2 := *guardrail
		v2.ID = domain.NewGuardrailID()
		v2.Version = "v2"
		require.NoError(t, store.Create(ctx, &v2))
	})

	t.Run("resolve keys", func(t *testing.T) {
		resolved, err := store.ResolveKeys(ctx, tenantID, []string{"pii-redactor", "no-such-key"})
		require.NoError(t, err)
		assert.Contains(t, resolved, "pii-redactor")
		assert.NotContains(t, resolved, "no-such-key")
	})

	t.Run("tenant isolation", func(t *testing.T) {
		_, err := store.FindByID(ctx, otherTenant, guardrail.ID)
		require.ErrorIs(t, err, sentinel.ErrNotFound)

		rows, err := store.ListByTenant(ctx, otherTenant)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("soft delete tombstones", func(t *testing.T) {
		victim := &models.Guardrail{
			ID:        domain.NewGuardrailID(),
			TenantID:  tenantID,
			Key:       "toxicity-filter",
			Version:   "v1",
			Tier:      1,
			Params:    map[string]any{},
			Fallback:  domain.FallbackBlock,
			Enabled:   true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, store.Create(ctx, victim))
		require.NoError(t, store.SoftDelete(ctx, tenantID, victim.ID))

		rows, err := store.ListByTenant(ctx, tenantID)
		require.NoError(t, err)
		for _, g := range rows {
			assert.NotEqual(t, victim.ID, g.ID)
		}

		// The tombstoned row is gone for updates too.
		victim.Tier = 3
		require.ErrorIs(t, store.Update(ctx, victim), sentinel.ErrNotFound)
	})
}

func seedTenant(t *testing.T, ctx context.Context, pool *pgxpool.Pool, slug string) domain.TenantID {
	t.Helper()
	id := domain.NewTenantID()
	_, err := pool.Exec(ctx,
		`INSERT INTO tenants (id, slug, name, plan) VALUES ($1, $2, $3, 'free')`,
		id.String(), slug, slug)
	require.NoError(t, err)
	return id
}
