package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"aegis/pkg/domain"
	"aegis/pkg/requestcontext"
)

// Recorder appends immutable audit records for state-changing operations.
//
// Contract: Record never returns an error. The triggering business operation
// has already committed and must not roll back because audit logging failed;
// write failures are logged, counted, and discarded. Audit completeness is
// best-effort, primary-operation durability is not.
type Recorder struct {
	store   Store
	logger  *slog.Logger
	metrics *Metrics
}

func NewRecorder(store Store, logger *slog.Logger, metrics *Metrics) *Recorder {
	return &Recorder{store: store, logger: logger, metrics: metrics}
}

// Record appends one audit event, enriching it with request-scoped metadata.
func (r *Recorder) Record(ctx context.Context, tenantID domain.TenantID, action, targetType, targetID string, metadata map[string]any) {
	if r == nil || r.store == nil {
		return
	}
	event := Event{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		ActorUserID: requestcontext.UserID(ctx),
		Action:      action,
		TargetType:  targetType,
		TargetID:    targetID,
		Metadata:    metadata,
		CreatedAt:   requestcontext.Now(ctx),
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		event.Metadata = withMeta(event.Metadata, "request_id", requestID)
	}
	if ua := requestcontext.UserAgent(ctx); ua != "" {
		event.Metadata = withMeta(event.Metadata, "user_agent", ua)
	}
	if ip := requestcontext.ClientIP(ctx); ip != "" {
		event.Metadata = withMeta(event.Metadata, "client_ip", ip)
	}

	if err := r.store.Append(ctx, event); err != nil {
		if r.metrics != nil {
			r.metrics.IncrementDropped()
		}
		if r.logger != nil {
			r.logger.ErrorContext(ctx, "audit write failed, event dropped",
				"action", action,
				"tenant_id", tenantID,
				"target_type", targetType,
				"target_id", targetID,
				"error", err,
			)
		}
		return
	}
	if r.metrics != nil {
		r.metrics.IncrementRecorded()
	}
}

func withMeta(m map[string]any, key string, value any) map[string]any {
	if m == nil {
		m = make(map[string]any, 1)
	}
	m[key] = value
	return m
}
