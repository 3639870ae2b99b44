package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore implements Store using the transactional outbox pattern.
// Events are written to the outbox table and published to Kafka by the outbox
// worker; Kafka consumers treat the topic as the audit source of truth.
//
// Uses database/sql (lib/pq driver) rather than the pgx pool the domain
// stores share: the outbox write is a single prepared insert and the worker
// polls through the same handle.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	const query = `
		INSERT INTO audit_outbox (id, tenant_id, action, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.TenantID.String(),
		event.Action,
		payload,
		event.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert audit outbox row: %w", err)
	}
	return nil
}

// PendingBatch returns up to limit unpublished outbox rows in insert order.
func (s *PostgresStore) PendingBatch(ctx context.Context, limit int) ([]OutboxRow, error) {
	const query = `
		SELECT id, action, payload
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit outbox: %w", err)
	}
	defer rows.Close()

	var batch []OutboxRow
	for rows.Next() {
		var row OutboxRow
		if err := rows.Scan(&row.ID, &row.Action, &row.Payload); err != nil {
			return nil, fmt.Errorf("scan audit outbox row: %w", err)
		}
		batch = append(batch, row)
	}
	return batch, rows.Err()
}

// MarkPublished stamps rows after the Kafka produce succeeds.
func (s *PostgresStore) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `UPDATE audit_outbox SET published_at = $1 WHERE id = ANY($2::uuid[])`
	if _, err := s.db.ExecContext(ctx, query, at, pq.Array(ids)); err != nil {
		return fmt.Errorf("mark audit outbox published: %w", err)
	}
	return nil
}

// OutboxRow is one unpublished audit event awaiting Kafka delivery.
type OutboxRow struct {
	ID      string
	Action  string
	Payload []byte
}
