package models

import (
	"time"

	"aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
)

// LogEntry is one row per processed request. Append-only: rows are never
// mutated after ingest. StatusCode nil means the request never produced a
// decision; LatencyMs nil or zero means "not measured", not "instant".
type LogEntry struct {
	ID            string                `json:"id"`
	TenantID      domain.TenantID       `json:"tenant_id"`
	ApplicationID *domain.ApplicationID `json:"application_id,omitempty"`
	PolicyID      *domain.PolicyID      `json:"policy_id,omitempty"`
	Path          string                `json:"path"`
	StatusCode    *int                  `json:"status_code,omitempty"`
	LatencyMs     *int64                `json:"latency_ms,omitempty"`
	Model         string                `json:"model,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}

// Validate rejects rows that would poison aggregation.
func (e *LogEntry) Validate() error {
	if e.TenantID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "log entry requires a tenant")
	}
	if e.Path == "" {
		return dErrors.New(dErrors.CodeValidation, "log entry requires a path")
	}
	if e.StatusCode != nil && (*e.StatusCode < 100 || *e.StatusCode > 599) {
		return dErrors.New(dErrors.CodeValidation, "status code out of range")
	}
	return nil
}

// Scope bounds an aggregation query. A nil ApplicationID means tenant-wide;
// nil window edges mean unbounded on that side.
type Scope struct {
	TenantID      domain.TenantID
	ApplicationID *domain.ApplicationID
	From          *time.Time
	To            *time.Time
}

// Contains reports whether the entry falls inside the scope.
func (s Scope) Contains(e *LogEntry) bool {
	if e.TenantID != s.TenantID {
		return false
	}
	if s.ApplicationID != nil && (e.ApplicationID == nil || *e.ApplicationID != *s.ApplicationID) {
		return false
	}
	if s.From != nil && e.CreatedAt.Before(*s.From) {
		return false
	}
	if s.To != nil && e.CreatedAt.After(*s.To) {
		return false
	}
	return true
}

// Summary is the aggregator's output. A 5xx entry is neither an allow nor a
// block: it is excluded from decision accounting entirely.
type Summary struct {
	TotalCount         int        `json:"total_count"`
	AllowCount         int        `json:"allow_count"`
	BlockCount         int        `json:"block_count"`
	AverageLatencyMs   int64      `json:"average_latency_ms"`
	DistinctPolicies   int        `json:"distinct_policies"`
	DistinctGuardrails int        `json:"distinct_guardrails"`
	DistinctModels     int        `json:"distinct_models"`
	Recent             []LogEntry `json:"recent"`
}
