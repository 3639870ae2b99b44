package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"aegis/internal/access"
	"aegis/internal/audit"
	guardrailmetrics "aegis/internal/guardrail/metrics"
	"aegis/internal/guardrail/models"
	"aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/platform/sentinel"
	"aegis/pkg/requestcontext"
)

// GuardrailStore abstracts guardrail persistence.
type GuardrailStore interface {
	Create(ctx context.Context, guardrail *models.Guardrail) error
	Update(ctx context.Context, guardrail *models.Guardrail) error
	FindByID(ctx context.Context, tenantID domain.TenantID, id domain.GuardrailID) (*models.Guardrail, error)
	// ListByTenant returns non-deleted guardrails ordered by recency.
	ListByTenant(ctx context.Context, tenantID domain.TenantID) ([]*models.Guardrail, error)
	// ResolveKeys maps guardrail keys to ids in one tenant-scoped lookup.
	// Unknown keys are simply absent from the result.
	ResolveKeys(ctx context.Context, tenantID domain.TenantID, keys []string) (map[string]domain.GuardrailID, error)
	SoftDelete(ctx context.Context, tenantID domain.TenantID, id domain.GuardrailID) error
}

// Service implements the guardrail catalog.
type Service struct {
	guardrails GuardrailStore
	logger     *slog.Logger
	recorder   *audit.Recorder
	metrics    *guardrailmetrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithRecorder(recorder *audit.Recorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

func WithMetrics(m *guardrailmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(guardrails GuardrailStore, opts ...Option) *Service {
	s := &Service{guardrails: guardrails, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a guardrail definition. Requires guardrail.write; the
// transport layer's check is UX, this one is the enforcement.
func (s *Service) Create(ctx context.Context, tenantID domain.TenantID, def models.Definition) (*models.Guardrail, error) {
	if !access.Allowed(requestcontext.Role(ctx), access.PermGuardrailWrite) {
		return nil, dErrors.New(dErrors.CodeForbidden, "role does not permit guardrail changes")
	}

	guardrail, err := models.NewGuardrail(domain.NewGuardrailID(), tenantID, def, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := validateParams(guardrail.ParamsSchema, guardrail.Params); err != nil {
		return nil, err
	}

	if err := s.guardrails.Create(ctx, guardrail); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "guardrail %q version %q already exists", guardrail.Key, guardrail.Version)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create guardrail")
	}

	s.recorder.Record(ctx, tenantID, audit.ActionGuardrailCreated, "guardrail", guardrail.ID.String(),
		map[string]any{"key": guardrail.Key, "version": guardrail.Version})
	if s.metrics != nil {
		s.metrics.IncrementCreated()
	}
	return guardrail, nil
}

// List returns the tenant's non-deleted guardrails, newest first.
func (s *Service) List(ctx context.Context, tenantID domain.TenantID) ([]*models.Guardrail, error) {
	guardrails, err := s.guardrails.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list guardrails")
	}
	return guardrails, nil
}

// Update applies a partial update to parameters, tier, fallback, or the
// enabled flag. The key and version are immutable.
type Update struct {
	Tier     *int                     `json:"tier,omitempty"`
	Params   map[string]any           `json:"params,omitempty"`
	Fallback *domain.FallbackStrategy `json:"fallback_strategy,omitempty"`
	Enabled  *bool                    `json:"enabled,omitempty"`
}

func (s *Service) Update(ctx context.Context, tenantID domain.TenantID, id domain.GuardrailID, update Update) (*models.Guardrail, error) {
	if !access.Allowed(requestcontext.Role(ctx), access.PermGuardrailWrite) {
		return nil, dErrors.New(dErrors.CodeForbidden, "role does not permit guardrail changes")
	}

	guardrail, err := s.guardrails.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "guardrail not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load guardrail")
	}
	if guardrail.Deleted() {
		return nil, dErrors.New(dErrors.CodeNotFound, "guardrail not found")
	}

	if update.Tier != nil {
		if *update.Tier < 0 {
			return nil, dErrors.New(dErrors.CodeValidation, "guardrail tier cannot be negative")
		}
		guardrail.Tier = *update.Tier
	}
	if update.Params != nil {
		if err := validateParams(guardrail.ParamsSchema, update.Params); err != nil {
			return nil, err
		}
		guardrail.Params = update.Params
	}
	if update.Fallback != nil {
		fallback, err := domain.ParseFallbackStrategy(string(*update.Fallback))
		if err != nil {
			return nil, err
		}
		guardrail.Fallback = fallback
	}
	if update.Enabled != nil {
		guardrail.Enabled = *update.Enabled
	}
	guardrail.UpdatedAt = requestcontext.Now(ctx)

	if err := s.guardrails.Update(ctx, guardrail); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update guardrail")
	}

	s.recorder.Record(ctx, tenantID, audit.ActionGuardrailUpdated, "guardrail", guardrail.ID.String(),
		map[string]any{"key": guardrail.Key, "version": guardrail.Version})
	return guardrail, nil
}

// Delete tombstones a guardrail. The definition stays resolvable for
// policies that already link it; it just stops appearing in the catalog.
func (s *Service) Delete(ctx context.Context, tenantID domain.TenantID, id domain.GuardrailID) error {
	if !access.Allowed(requestcontext.Role(ctx), access.PermGuardrailWrite) {
		return dErrors.New(dErrors.CodeForbidden, "role does not permit guardrail changes")
	}

	if err := s.guardrails.SoftDelete(ctx, tenantID, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "guardrail not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete guardrail")
	}

	s.recorder.Record(ctx, tenantID, audit.ActionGuardrailDeleted, "guardrail", id.String(), nil)
	return nil
}

// ResolveKeys exposes batch key resolution for the policy composer.
func (s *Service) ResolveKeys(ctx context.Context, tenantID domain.TenantID, keys []string) (map[string]domain.GuardrailID, error) {
	return s.guardrails.ResolveKeys(ctx, tenantID, keys)
}

// validateParams checks params against the guardrail's declared JSON schema.
// A guardrail without a schema accepts any parameter map.
func validateParams(schema json.RawMessage, params map[string]any) error {
	if len(schema) == 0 || params == nil {
		return nil
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("params_schema.json", bytes.NewReader(schema)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "params_schema is not valid JSON")
	}
	compiled, err := compiler.Compile("params_schema.json")
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "params_schema is not a valid JSON schema")
	}
	if err := compiled.Validate(normalize(params)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("parameters violate schema: %v", err))
	}
	return nil
}

// normalize round-trips params through JSON so schema validation sees the
// same value shapes (float64 numbers, map[string]any) it would at the API
// boundary.
func normalize(params map[string]any) any {
	raw, err := json.Marshal(params)
	if err != nil {
		return params
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return params
	}
	return v
}
