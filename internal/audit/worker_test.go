package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"aegis/internal/platform/logger"
)

type fakeOutbox struct {
	mu        sync.Mutex
	pending   []OutboxRow
	published []string
}

func (f *fakeOutbox) PendingBatch(_ context.Context, limit int) ([]OutboxRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, ids []string, _ time.Time) (err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, ids...)
	f.pending = nil
	return nil
}

type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, records ...*kgo.Record) kgo.ProduceResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return kgo.ProduceResults{{Err: f.err}}
	}
	f.records = append(f.records, records...)
	return nil
}

func TestWorker_DrainPublishesAndMarks(t *testing.T) {
	outbox := &fakeOutbox{pending: []OutboxRow{
		{ID: "a", Action: ActionPolicyCreated, Payload: []byte(`{"action":"policy.created"}`)},
		{ID: "b", Action: ActionGuardrailCreated, Payload: []byte(`{"action":"guardrail.created"}`)},
	}}
	producer := &fakeProducer{}
	w := NewWorker(outbox, producer, logger.New(), nil)

	require.NoError(t, w.drainOnce(context.Background()))

	require.Len(t, producer.records, 2)
	assert.Equal(t, Topic, producer.records[0].Topic)
	assert.Equal(t, []byte(ActionPolicyCreated), producer.records[0].Key)
	assert.Equal(t, []string{"a", "b"}, outbox.published)
}

// Rows must stay pending when the produce fails so a later drain retries.
func TestWorker_ProduceFailureLeavesRowsPending(t *testing.T) {
	outbox := &fakeOutbox{pending: []OutboxRow{{ID: "a", Action: ActionPolicyCreated}}}
	producer := &fakeProducer{err: context.DeadlineExceeded}
	w := NewWorker(outbox, producer, logger.New(), nil)

	require.Error(t, w.drainOnce(context.Background()))
	assert.Empty(t, outbox.published)
	assert.Len(t, outbox.pending, 1)
}

func TestWorker_EmptyOutboxIsNoop(t *testing.T) {
	producer := &fakeProducer{}
	w := NewWorker(&fakeOutbox{}, producer, logger.New(), nil)
	require.NoError(t, w.drainOnce(context.Background()))
	assert.Empty(t, producer.records)
}
