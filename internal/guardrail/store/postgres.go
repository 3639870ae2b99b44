package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"aegis/internal/guardrail/models"
	"aegis/pkg/domain"
	"aegis/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists guardrails. Every query carries an explicit
// tenant_id predicate; an id collision across tenants must still never
// return a foreign row.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const guardrailColumns = `id, tenant_id, key, version, tier, params, params_schema, fallback_strategy, enabled, created_at, updated_at, deleted_at`

func (s *PostgresStore) Create(ctx context.Context, g *models.Guardrail) error {
	const query = `
		INSERT INTO guardrails (` + guardrailColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULL)
	`
	_, err := s.pool.Exec(ctx, query,
		g.ID.String(), g.TenantID.String(), g.Key, g.Version, g.Tier,
		g.Params, g.ParamsSchema, string(g.Fallback), g.Enabled,
		g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert guardrail: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, g *models.Guardrail) error {
	const query = `
		UPDATE guardrails
		SET tier = $1, params = $2, fallback_strategy = $3, enabled = $4, updated_at = $5
		WHERE tenant_id = $6 AND id = $7 AND deleted_at IS NULL
	`
	tag, err := s.pool.Exec(ctx, query,
		g.Tier, g.Params, string(g.Fallback), g.Enabled, g.UpdatedAt,
		g.TenantID.String(), g.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update guardrail: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, tenantID domain.TenantID, id domain.GuardrailID) (*models.Guardrail, error) {
	const query = `
		SELECT ` + guardrailColumns + `
		FROM guardrails
		WHERE tenant_id = $1 AND id = $2
	`
	row := s.pool.QueryRow(ctx, query, tenantID.String(), id.String())
	return scanGuardrail(row)
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID domain.TenantID) ([]*models.Guardrail, error) {
	const query = `
		SELECT ` + guardrailColumns + `
		FROM guardrails
		WHERE tenant_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`
	rows, err := s.pool.Query(ctx, query, tenantID.String())
	if err != nil {
		return nil, fmt.Errorf("list guardrails: %w", err)
	}
	defer rows.Close()

	var out []*models.Guardrail
	for rows.Next() {
		g, err := scanGuardrail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ResolveKeys(ctx context.Context, tenantID domain.TenantID, keys []string) (map[string]domain.GuardrailID, error) {
	if len(keys) == 0 {
		return map[string]domain.GuardrailID{}, nil
	}
	const query = `
		SELECT key, id
		FROM guardrails
		WHERE tenant_id = $1 AND key = ANY($2) AND deleted_at IS NULL
	`
	rows, err := s.pool.Query(ctx, query, tenantID.String(), keys)
	if err != nil {
		return nil, fmt.Errorf("resolve guardrail keys: %w", err)
	}
	defer rows.Close()

	resolved := make(map[string]domain.GuardrailID, len(keys))
	for rows.Next() {
		var key string
		var id domain.GuardrailID
		if err := rows.Scan(&key, &id); err != nil {
			return nil, fmt.Errorf("scan guardrail key: %w", err)
		}
		resolved[key] = id
	}
	return resolved, rows.Err()
}

func (s *PostgresStore) SoftDelete(ctx context.Context, tenantID domain.TenantID, id domain.GuardrailID) error {
	const query = `
		UPDATE guardrails
		SET deleted_at = now()
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
	`
	tag, err := s.pool.Exec(ctx, query, tenantID.String(), id.String())
	if err != nil {
		return fmt.Errorf("soft delete guardrail: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanGuardrail(row pgx.Row) (*models.Guardrail, error) {
	var g models.Guardrail
	err := row.Scan(
		&g.ID, &g.TenantID, &g.Key, &g.Version, &g.Tier,
		&g.Params, &g.ParamsSchema, &g.Fallback, &g.Enabled,
		&g.CreatedAt, &g.UpdatedAt, &g.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan guardrail: %w", err)
	}
	return &g, nil
}
