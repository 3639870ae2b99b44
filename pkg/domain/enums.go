package domain

import dErrors "aegis/pkg/domain-errors"

// FallbackStrategy is what enforcement does when a guardrail itself fails.
type FallbackStrategy string

const (
	FallbackSkip    FallbackStrategy = "skip"
	FallbackBlock   FallbackStrategy = "block"
	FallbackDegrade FallbackStrategy = "degrade"
)

func ParseFallbackStrategy(raw string) (FallbackStrategy, error) {
	switch FallbackStrategy(raw) {
	case FallbackSkip, FallbackBlock, FallbackDegrade:
		return FallbackStrategy(raw), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown fallback strategy: "+raw)
}

// PolicyStatus is the policy lifecycle state.
//
// Transitions are one-way except draft↔active:
//
//	draft ↔ active → deprecated → archived
type PolicyStatus string

const (
	PolicyStatusDraft      PolicyStatus = "draft"
	PolicyStatusActive     PolicyStatus = "active"
	PolicyStatusDeprecated PolicyStatus = "deprecated"
	PolicyStatusArchived   PolicyStatus = "archived"
)

func ParsePolicyStatus(raw string) (PolicyStatus, error) {
	switch PolicyStatus(raw) {
	case PolicyStatusDraft, PolicyStatusActive, PolicyStatusDeprecated, PolicyStatusArchived:
		return PolicyStatus(raw), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown policy status: "+raw)
}

var policyTransitions = map[PolicyStatus]map[PolicyStatus]bool{
	PolicyStatusDraft:      {PolicyStatusActive: true},
	PolicyStatusActive:     {PolicyStatusDraft: true, PolicyStatusDeprecated: true, PolicyStatusArchived: true},
	PolicyStatusDeprecated: {PolicyStatusArchived: true},
	PolicyStatusArchived:   {},
}

// CanTransitionTo reports whether the lifecycle permits moving to target.
func (s PolicyStatus) CanTransitionTo(target PolicyStatus) bool {
	return policyTransitions[s][target]
}

// Role is the caller's role claim as issued by the identity provider.
// Unknown role strings stay as-is and fail every permission check.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)
