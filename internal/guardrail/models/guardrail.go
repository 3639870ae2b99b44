package models

import (
	"encoding/json"
	"time"

	"aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
)

// Guardrail is a tenant-scoped, reusable enforcement check definition.
//
// A (tenant, key) pair is one logical guardrail across versions; keys are not
// globally unique. Definitions are soft-deleted: once a policy links a
// guardrail the row is tombstoned, never physically removed.
type Guardrail struct {
	ID           domain.GuardrailID      `json:"id"`
	TenantID     domain.TenantID         `json:"tenant_id"`
	Key          string                  `json:"key"`
	Version      string                  `json:"version"`
	Tier         int                     `json:"tier"`
	Params       map[string]any          `json:"params,omitempty"`
	ParamsSchema json.RawMessage         `json:"params_schema,omitempty"`
	Fallback     domain.FallbackStrategy `json:"fallback_strategy"`
	Enabled      bool                    `json:"enabled"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
	DeletedAt    *time.Time              `json:"deleted_at,omitempty"`
}

// Definition is the caller-supplied shape for create. Key and Tier are
// required; everything else defaults.
type Definition struct {
	Key          string                  `json:"key"`
	Version      string                  `json:"version,omitempty"`
	Tier         *int                    `json:"tier"`
	Params       map[string]any          `json:"params,omitempty"`
	ParamsSchema json.RawMessage         `json:"params_schema,omitempty"`
	Fallback     domain.FallbackStrategy `json:"fallback_strategy,omitempty"`
	Enabled      *bool                   `json:"enabled,omitempty"`
}

// NewGuardrail validates a definition and applies defaults: version "v1",
// fallback "skip", enabled true.
func NewGuardrail(id domain.GuardrailID, tenantID domain.TenantID, def Definition, now time.Time) (*Guardrail, error) {
	if def.Key == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "guardrail key is required")
	}
	if def.Tier == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "guardrail tier is required")
	}
	if *def.Tier < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "guardrail tier cannot be negative")
	}

	version := def.Version
	if version == "" {
		version = "v1"
	}
	fallback := def.Fallback
	if fallback == "" {
		fallback = domain.FallbackSkip
	} else if _, err := domain.ParseFallbackStrategy(string(fallback)); err != nil {
		return nil, err
	}
	enabled := true
	if def.Enabled != nil {
		enabled = *def.Enabled
	}
	params := def.Params
	if params == nil {
		params = map[string]any{}
	}

	return &Guardrail{
		ID:           id,
		TenantID:     tenantID,
		Key:          def.Key,
		Version:      version,
		Tier:         *def.Tier,
		Params:       params,
		ParamsSchema: def.ParamsSchema,
		Fallback:     fallback,
		Enabled:      enabled,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Deleted reports whether the guardrail is tombstoned.
func (g *Guardrail) Deleted() bool { return g.DeletedAt != nil }
