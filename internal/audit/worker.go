package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Topic is the Kafka topic audit events are published to.
const Topic = "aegis.audit.events"

// OutboxSource is the slice of the postgres store the worker needs.
type OutboxSource interface {
	PendingBatch(ctx context.Context, limit int) ([]OutboxRow, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}

// Producer is the slice of kgo.Client the worker uses; narrowed for tests.
type Producer interface {
	ProduceSync(ctx context.Context, records ...*kgo.Record) kgo.ProduceResults
}

// Worker drains the audit outbox to Kafka. It is the only component that
// retries audit delivery; the recorder itself never blocks on it.
type Worker struct {
	source   OutboxSource
	producer Producer
	logger   *slog.Logger
	metrics  *Metrics
	interval time.Duration
	batch    int
}

func NewWorker(source OutboxSource, producer Producer, logger *slog.Logger, metrics *Metrics) *Worker {
	return &Worker{
		source:   source,
		producer: producer,
		logger:   logger,
		metrics:  metrics,
		interval: 2 * time.Second,
		batch:    100,
	}
}

// Run polls the outbox until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drainOnce(ctx); err != nil {
				w.logger.ErrorContext(ctx, "audit outbox drain failed", "error", err)
			}
		}
	}
}

func (w *Worker) drainOnce(ctx context.Context) error {
	rows, err := w.source.PendingBatch(ctx, w.batch)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, &kgo.Record{
			Topic: Topic,
			Key:   []byte(row.Action),
			Value: row.Payload,
		})
	}
	if err := w.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return err
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	if err := w.source.MarkPublished(ctx, ids, time.Now().UTC()); err != nil {
		return err
	}
	if w.metrics != nil {
		for range rows {
			w.metrics.IncrementPublished()
		}
	}
	return nil
}
