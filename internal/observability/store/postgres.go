package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"aegis/internal/observability/models"
)

// PostgresStore persists observability log rows. The table is append-only:
// no update or delete statements exist here.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Append(ctx context.Context, entry *models.LogEntry) error {
	const query = `
		INSERT INTO observability_logs (id, tenant_id, application_id, policy_id, path, status_code, latency_ms, model, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	var appID, policyID *string
	if entry.ApplicationID != nil {
		v := entry.ApplicationID.String()
		appID = &v
	}
	if entry.PolicyID != nil {
		v := entry.PolicyID.String()
		policyID = &v
	}
	_, err := s.pool.Exec(ctx, query,
		entry.ID, entry.TenantID.String(), appID, policyID,
		entry.Path, entry.StatusCode, entry.LatencyMs, entry.Model, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert log entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListInScope(ctx context.Context, scope models.Scope) ([]models.LogEntry, error) {
	query := `
		SELECT id, tenant_id, application_id, policy_id, path, status_code, latency_ms, model, created_at
		FROM observability_logs
		WHERE tenant_id = $1
	`
	args := []any{scope.TenantID.String()}
	if scope.ApplicationID != nil {
		args = append(args, scope.ApplicationID.String())
		query += fmt.Sprintf(" AND application_id = $%d", len(args))
	}
	if scope.From != nil {
		args = append(args, *scope.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if scope.To != nil {
		args = append(args, *scope.To)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	query += " ORDER BY created_at"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list log entries: %w", err)
	}
	defer rows.Close()

	var out []models.LogEntry
	for rows.Next() {
		var entry models.LogEntry
		err := rows.Scan(
			&entry.ID, &entry.TenantID, &entry.ApplicationID, &entry.PolicyID,
			&entry.Path, &entry.StatusCode, &entry.LatencyMs, &entry.Model, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
