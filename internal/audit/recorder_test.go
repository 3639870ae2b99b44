package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/platform/logger"
	"aegis/pkg/domain"
	"aegis/pkg/requestcontext"
)

type failingStore struct{}

func (failingStore) Append(context.Context, Event) error {
	return errors.New("audit store unreachable")
}

func TestRecorder_AppendsEnrichedEvent(t *testing.T) {
	store := NewInMemoryStore()
	recorder := NewRecorder(store, logger.New(), nil)

	tenantID := domain.NewTenantID()
	actorID := domain.NewUserID()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ctx := requestcontext.WithUserID(context.Background(), actorID)
	ctx = requestcontext.WithTime(ctx, now)
	ctx = requestcontext.WithRequestID(ctx, "req-123")

	recorder.Record(ctx, tenantID, ActionPolicyCreated, "policy", "p-1", map[string]any{"name": "baseline"})

	events, err := store.ListByTenant(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, events, 1)

	got := events[0]
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, tenantID, got.TenantID)
	assert.Equal(t, actorID, got.ActorUserID)
	assert.Equal(t, ActionPolicyCreated, got.Action)
	assert.Equal(t, "policy", got.TargetType)
	assert.Equal(t, "p-1", got.TargetID)
	assert.Equal(t, now, got.CreatedAt)
	assert.Equal(t, "baseline", got.Metadata["name"])
	assert.Equal(t, "req-123", got.Metadata["request_id"])
}

// The recorder's contract: a failing audit store never surfaces to the
// caller. Record must not panic and must not return anything.
func TestRecorder_WriteFailureIsSwallowed(t *testing.T) {
	recorder := NewRecorder(failingStore{}, logger.New(), nil)

	assert.NotPanics(t, func() {
		recorder.Record(context.Background(), domain.NewTenantID(), ActionGuardrailCreated, "guardrail", "g-1", nil)
	})
}

func TestRecorder_NilRecorderIsSafe(t *testing.T) {
	var recorder *Recorder
	assert.NotPanics(t, func() {
		recorder.Record(context.Background(), domain.NewTenantID(), ActionPolicyCreated, "policy", "p-1", nil)
	})
}
