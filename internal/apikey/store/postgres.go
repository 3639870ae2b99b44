package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"aegis/internal/apikey/models"
	"aegis/pkg/domain"
	"aegis/pkg/platform/sentinel"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const keyColumns = `id, tenant_id, name, prefix, hash, created_at, revoked_at`

func (s *PostgresStore) Create(ctx context.Context, key *models.APIKey) error {
	const query = `
		INSERT INTO api_keys (` + keyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, NULL)
	`
	_, err := s.pool.Exec(ctx, query,
		key.ID.String(), key.TenantID.String(), key.Name, key.Prefix, key.Hash, key.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID domain.TenantID) ([]*models.APIKey, error) {
	const query = `
		SELECT ` + keyColumns + `
		FROM api_keys
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.pool.Query(ctx, query, tenantID.String())
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var out []*models.APIKey
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	const query = `
		SELECT ` + keyColumns + `
		FROM api_keys
		WHERE hash = $1
	`
	return scanKey(s.pool.QueryRow(ctx, query, hash))
}

func (s *PostgresStore) Revoke(ctx context.Context, tenantID domain.TenantID, id domain.APIKeyID) error {
	const query = `
		UPDATE api_keys
		SET revoked_at = now()
		WHERE tenant_id = $1 AND id = $2 AND revoked_at IS NULL
	`
	tag, err := s.pool.Exec(ctx, query, tenantID.String(), id.String())
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanKey(row pgx.Row) (*models.APIKey, error) {
	var key models.APIKey
	err := row.Scan(&key.ID, &key.TenantID, &key.Name, &key.Prefix, &key.Hash, &key.CreatedAt, &key.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan api key: %w", err)
	}
	return &key, nil
}
