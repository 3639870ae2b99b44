package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"aegis/internal/app/models"
	"aegis/pkg/domain"
	"aegis/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const applicationColumns = `id, tenant_id, name, environment, last_modified_at, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, app *models.Application) error {
	const query = `
		INSERT INTO applications (` + applicationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.pool.Exec(ctx, query,
		app.ID.String(), app.TenantID.String(), app.Name, app.Environment,
		app.LastModifiedAt, app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, tenantID domain.TenantID, id domain.ApplicationID) (*models.Application, error) {
	const query = `
		SELECT ` + applicationColumns + `
		FROM applications
		WHERE tenant_id = $1 AND id = $2
	`
	var app models.Application
	err := s.pool.QueryRow(ctx, query, tenantID.String(), id.String()).Scan(
		&app.ID, &app.TenantID, &app.Name, &app.Environment,
		&app.LastModifiedAt, &app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find application: %w", err)
	}
	return &app, nil
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID domain.TenantID) ([]*models.Application, error) {
	const query = `
		SELECT ` + applicationColumns + `
		FROM applications
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.pool.Query(ctx, query, tenantID.String())
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var out []*models.Application
	for rows.Next() {
		var app models.Application
		err := rows.Scan(
			&app.ID, &app.TenantID, &app.Name, &app.Environment,
			&app.LastModifiedAt, &app.CreatedAt, &app.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, &app)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Touch(ctx context.Context, tenantID domain.TenantID, id domain.ApplicationID) error {
	const query = `
		UPDATE applications
		SET last_modified_at = now(), updated_at = now()
		WHERE tenant_id = $1 AND id = $2
	`
	tag, err := s.pool.Exec(ctx, query, tenantID.String(), id.String())
	if err != nil {
		return fmt.Errorf("touch application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AddBinding(ctx context.Context, tenantID domain.TenantID, binding models.Binding) error {
	// The join against applications keeps the write tenant-scoped without
	// denormalizing tenant_id onto the binding row.
	const query = `
		INSERT INTO application_policy_bindings (application_id, policy_id, created_at)
		SELECT a.id, $3, $4
		FROM applications a
		WHERE a.tenant_id = $1 AND a.id = $2
	`
	tag, err := s.pool.Exec(ctx, query,
		tenantID.String(), binding.ApplicationID.String(),
		binding.PolicyID.String(), binding.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert binding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RemoveBinding(ctx context.Context, tenantID domain.TenantID, appID domain.ApplicationID, policyID domain.PolicyID) error {
	const query = `
		DELETE FROM application_policy_bindings b
		USING applications a
		WHERE b.application_id = a.id
		  AND a.tenant_id = $1 AND b.application_id = $2 AND b.policy_id = $3
	`
	tag, err := s.pool.Exec(ctx, query, tenantID.String(), appID.String(), policyID.String())
	if err != nil {
		return fmt.Errorf("delete binding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListBindings(ctx context.Context, tenantID domain.TenantID, appID domain.ApplicationID) ([]models.Binding, error) {
	const query = `
		SELECT b.application_id, b.policy_id, b.created_at
		FROM application_policy_bindings b
		JOIN applications a ON a.id = b.application_id
		WHERE a.tenant_id = $1 AND b.application_id = $2
		ORDER BY b.created_at
	`
	rows, err := s.pool.Query(ctx, query, tenantID.String(), appID.String())
	if err != nil {
		return nil, fmt.Errorf("list bindings: %w", err)
	}
	defer rows.Close()

	var out []models.Binding
	for rows.Next() {
		var b models.Binding
		if err := rows.Scan(&b.ApplicationID, &b.PolicyID, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan binding: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountBindingsByPolicy(ctx context.Context, tenantID domain.TenantID, policyID domain.PolicyID) (int, error) {
	const query = `
		SELECT count(*)
		FROM application_policy_bindings b
		JOIN applications a ON a.id = b.application_id
		WHERE a.tenant_id = $1 AND b.policy_id = $2
	`
	var n int
	if err := s.pool.QueryRow(ctx, query, tenantID.String(), policyID.String()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count bindings: %w", err)
	}
	return n, nil
}
