package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"aegis/internal/policy/models"
	"aegis/pkg/domain"
	"aegis/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists policies and their guardrail links. Link sets are
// replaced wholesale inside the policy's transaction; there is no per-link
// update path.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const policyColumns = `id, tenant_id, name, description, version, status, composition, artifact, content_hash, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, p *models.Policy) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		const query = `
			INSERT INTO policies (` + policyColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`
		_, err := tx.Exec(ctx, query,
			p.ID.String(), p.TenantID.String(), p.Name, p.Description, p.Version,
			string(p.Status), p.Composition, p.Artifact, p.ContentHash,
			p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("insert policy: %w", err)
		}
		return insertLinks(ctx, tx, p)
	})
}

func (s *PostgresStore) Update(ctx context.Context, p *models.Policy) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		const query = `
			UPDATE policies
			SET description = $1, status = $2, composition = $3, artifact = $4, content_hash = $5, updated_at = $6
			WHERE tenant_id = $7 AND id = $8
		`
		tag, err := tx.Exec(ctx, query,
			p.Description, string(p.Status), p.Composition, p.Artifact, p.ContentHash,
			p.UpdatedAt, p.TenantID.String(), p.ID.String(),
		)
		if err != nil {
			return fmt.Errorf("update policy: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return sentinel.ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM policy_guardrail_links WHERE policy_id = $1`, p.ID.String()); err != nil {
			return fmt.Errorf("clear policy links: %w", err)
		}
		return insertLinks(ctx, tx, p)
	})
}

func (s *PostgresStore) FindByID(ctx context.Context, tenantID domain.TenantID, id domain.PolicyID) (*models.Policy, error) {
	const query = `
		SELECT ` + policyColumns + `
		FROM policies
		WHERE tenant_id = $1 AND id = $2
	`
	row := s.pool.QueryRow(ctx, query, tenantID.String(), id.String())
	p, err := scanPolicy(row)
	if err != nil {
		return nil, err
	}
	p.Links, err = s.loadLinks(ctx, id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID domain.TenantID) ([]*models.Policy, error) {
	const query = `
		SELECT ` + policyColumns + `
		FROM policies
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.pool.Query(ctx, query, tenantID.String())
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()

	var out []*models.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, p := range out {
		if p.Links, err = s.loadLinks(ctx, p.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, tenantID domain.TenantID, id domain.PolicyID) error {
	// Links cascade via FK.
	const query = `DELETE FROM policies WHERE tenant_id = $1 AND id = $2`
	tag, err := s.pool.Exec(ctx, query, tenantID.String(), id.String())
	if err != nil {
		return fmt.Errorf("delete policy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertLinks(ctx context.Context, tx pgx.Tx, p *models.Policy) error {
	const query = `
		INSERT INTO policy_guardrail_links (policy_id, guardrail_id, phase, order_index, params, threshold, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, link := range p.Links {
		_, err := tx.Exec(ctx, query,
			p.ID.String(), link.GuardrailID.String(), string(link.Phase),
			link.OrderIndex, link.Params, link.Threshold, link.Enabled,
		)
		if err != nil {
			return fmt.Errorf("insert policy link: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) loadLinks(ctx context.Context, id domain.PolicyID) ([]models.Link, error) {
	const query = `
		SELECT guardrail_id, phase, order_index, params, threshold, enabled
		FROM policy_guardrail_links
		WHERE policy_id = $1
		ORDER BY phase, order_index
	`
	rows, err := s.pool.Query(ctx, query, id.String())
	if err != nil {
		return nil, fmt.Errorf("load policy links: %w", err)
	}
	defer rows.Close()

	var links []models.Link
	for rows.Next() {
		var link models.Link
		if err := rows.Scan(&link.GuardrailID, &link.Phase, &link.OrderIndex, &link.Params, &link.Threshold, &link.Enabled); err != nil {
			return nil, fmt.Errorf("scan policy link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func scanPolicy(row pgx.Row) (*models.Policy, error) {
	var p models.Policy
	err := row.Scan(
		&p.ID, &p.TenantID, &p.Name, &p.Description, &p.Version,
		&p.Status, &p.Composition, &p.Artifact, &p.ContentHash,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan policy: %w", err)
	}
	return &p, nil
}
