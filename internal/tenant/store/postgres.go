package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"aegis/internal/tenant/models"
	"aegis/pkg/domain"
	"aegis/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists tenants. The slug unique constraint is the arbiter
// for collision retry; this store only translates the conflict.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateIfSlugAvailable(ctx context.Context, tenant *models.Tenant) error {
	const query = `
		INSERT INTO tenants (id, slug, name, plan, feature_flags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.pool.Exec(ctx, query,
		tenant.ID.String(),
		tenant.Slug,
		tenant.Name,
		tenant.Plan,
		tenant.FeatureFlags,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.TenantID) (*models.Tenant, error) {
	return s.findBy(ctx, "id = $1", id.String())
}

func (s *PostgresStore) FindBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	return s.findBy(ctx, "slug = $1", slug)
}

func (s *PostgresStore) findBy(ctx context.Context, predicate string, arg any) (*models.Tenant, error) {
	query := fmt.Sprintf(`
		SELECT id, slug, name, plan, feature_flags, created_at, updated_at
		FROM tenants
		WHERE %s
	`, predicate)

	var tenant models.Tenant
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&tenant.ID,
		&tenant.Slug,
		&tenant.Name,
		&tenant.Plan,
		&tenant.FeatureFlags,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("select tenant: %w", err)
	}
	return &tenant, nil
}
