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

	"aegis/internal/tenant/models"
	"aegis/pkg/domain"
	"aegis/pkg/platform/sentinel"
)

// Run with: go test -tags=integration -timeout 120s ./internal/tenant/store/...
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

	store := NewPostgresStore(pool)
	now := time.Now().UTC().Truncate(time.Microsecond)
	tenant := &models.Tenant{
		ID:           domain.NewTenantID(),
		Slug:         "acme",
		Name:         "Acme",
		Plan:         "pro",
		FeatureFlags: map[string]bool{"beta": true},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	require.NoError(t, store.CreateIfSlugAvailable(ctx, tenant))

	t.Run("slug conflict surfaces sentinel", func(t *testing.T) {
		dup := *tenant
		dup.ID = domain.NewTenantID()
		err := store.CreateIfSlugAvailable(ctx, &dup)
		require.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("find by id", func(t *testing.T) {
		got, err := store.FindByID(ctx, tenant.ID)
		require.NoError(t, err)
		assert.Equal(t, tenant.Slug, got.Slug)
		assert.Equal(t, tenant.Plan, got.Plan)
		assert.True(t, got.FeatureFlags["beta"])
	})

	t.Run("find by slug", func(t *testing.T) {
		got, err := store.FindBySlug(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, tenant.ID, got.ID)
	})

	t.Run("unknown tenant", func(t *testing.T) {
		_, err := store.FindByID(ctx, domain.NewTenantID())
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
