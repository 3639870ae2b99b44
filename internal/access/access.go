// Package access implements the role/permission predicate consulted before
// every mutating operation. It is exhaustive and fail-closed: each role maps
// to an explicit permission set, and anything unrecognized denies.
//
// This guard is evaluated server-side by services, not only at the transport
// edge. It is deliberately a pure function so it can never be the place where
// enforcement silently drifts.
package access

import "aegis/pkg/domain"

// Permission names a single operation class. Dot-namespaced like audit
// actions so logs read uniformly.
type Permission string

const (
	PermTenantManage      Permission = "tenant.manage"
	PermGuardrailRead     Permission = "guardrail.read"
	PermGuardrailWrite    Permission = "guardrail.write"
	PermPolicyRead        Permission = "policy.read"
	PermPolicyWrite       Permission = "policy.write"
	PermApplicationRead   Permission = "application.read"
	PermApplicationWrite  Permission = "application.write"
	PermObservabilityRead Permission = "observability.read"
	PermAuditRead         Permission = "audit.read"
	PermAPIKeyManage      Permission = "apikey.manage"
)

var readOnly = map[Permission]bool{
	PermGuardrailRead:     true,
	PermPolicyRead:        true,
	PermApplicationRead:   true,
	PermObservabilityRead: true,
	PermAuditRead:         true,
}

// memberGrants is the member role's explicit set: every read plus the
// day-to-day authoring mutations. Tenant lifecycle and credential issuance
// stay with owner/admin.
var memberGrants = map[Permission]bool{
	PermGuardrailRead:     true,
	PermGuardrailWrite:    true,
	PermPolicyRead:        true,
	PermPolicyWrite:       true,
	PermApplicationRead:   true,
	PermApplicationWrite:  true,
	PermObservabilityRead: true,
	PermAuditRead:         true,
}

// Allowed reports whether the role grants the permission. Owner and admin
// pass every known check; unknown roles and unknown permissions deny.
func Allowed(role domain.Role, perm Permission) bool {
	if !known(perm) {
		return false
	}
	switch role {
	case domain.RoleOwner, domain.RoleAdmin:
		return true
	case domain.RoleMember:
		return memberGrants[perm]
	case domain.RoleViewer:
		return readOnly[perm]
	default:
		return false
	}
}

func known(perm Permission) bool {
	switch perm {
	case PermTenantManage, PermGuardrailRead, PermGuardrailWrite,
		PermPolicyRead, PermPolicyWrite, PermApplicationRead,
		PermApplicationWrite, PermObservabilityRead, PermAuditRead,
		PermAPIKeyManage:
		return true
	}
	return false
}
