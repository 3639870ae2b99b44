package audit

import (
	"context"
	"time"

	"aegis/pkg/domain"
)

// Event is one immutable audit record. Actions are dot-namespaced
// "<noun>.<verb>" strings so consumers can route on prefix.
type Event struct {
	ID          string          `json:"id"`
	TenantID    domain.TenantID `json:"tenant_id"`
	ActorUserID domain.UserID   `json:"actor_user_id"`
	Action      string          `json:"action"`
	TargetType  string          `json:"target_type"`
	TargetID    string          `json:"target_id"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

const (
	ActionTenantCreated      = "tenant.created"
	ActionGuardrailCreated   = "guardrail.created"
	ActionGuardrailUpdated   = "guardrail.updated"
	ActionGuardrailDeleted   = "guardrail.deleted"
	ActionPolicyCreated      = "policy.created"
	ActionPolicyUpdated      = "policy.updated"
	ActionPolicyStatusSet    = "policy.status_changed"
	ActionPolicyArchived     = "policy.archived"
	ActionPolicyDeleted      = "policy.deleted"
	ActionPolicyBound        = "application.policy_bound"
	ActionPolicyUnbound      = "application.policy_unbound"
	ActionApplicationCreated = "application.created"
	ActionAPIKeyCreated      = "apikey.created"
	ActionAPIKeyRevoked      = "apikey.revoked"
)

// Store persists audit events. Append must be safe to call from any request
// goroutine; implementations own their locking.
type Store interface {
	Append(ctx context.Context, event Event) error
}
