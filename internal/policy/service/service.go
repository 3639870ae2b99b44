package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"aegis/internal/access"
	"aegis/internal/audit"
	"aegis/internal/policy/compiler"
	policymetrics "aegis/internal/policy/metrics"
	"aegis/internal/policy/models"
	tenantmodels "aegis/internal/tenant/models"
	"aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/platform/sentinel"
	"aegis/pkg/requestcontext"
)

// PolicyStore abstracts policy persistence. Link sets are always replaced
// wholesale, never diffed-and-patched: under concurrent writers the last
// full replace wins.
type PolicyStore interface {
	Create(ctx context.Context, policy *models.Policy) error
	Update(ctx context.Context, policy *models.Policy) error
	FindByID(ctx context.Context, tenantID domain.TenantID, id domain.PolicyID) (*models.Policy, error)
	ListByTenant(ctx context.Context, tenantID domain.TenantID) ([]*models.Policy, error)
	Delete(ctx context.Context, tenantID domain.TenantID, id domain.PolicyID) error
}

// TenantResolver resolves a tenant reference and enforces ownership.
type TenantResolver interface {
	Resolve(ctx context.Context, ref string, callerOrg domain.TenantID) (*tenantmodels.Tenant, error)
}

// CompilerClient delegates compilation to the external Policy Compiler.
type CompilerClient interface {
	Compile(ctx context.Context, tenantSlug string, actorID domain.UserID, links []models.Link, composition map[domain.Phase]domain.CompositionStrategy, name, description, version string) (*compiler.Result, error)
}

// Binder activates policies for applications and reports existing bindings.
// Implemented by the application service.
type Binder interface {
	Bind(ctx context.Context, tenantID domain.TenantID, appID domain.ApplicationID, policyID domain.PolicyID) error
	IsPolicyBound(ctx context.Context, tenantID domain.TenantID, policyID domain.PolicyID) (bool, error)
}

// Service orchestrates policy creation, update, lifecycle, and deletion.
type Service struct {
	policies PolicyStore
	tenants  TenantResolver
	composer *Composer
	compiler CompilerClient
	binder   Binder
	logger   *slog.Logger
	recorder *audit.Recorder
	metrics  *policymetrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithRecorder(recorder *audit.Recorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

func WithMetrics(m *policymetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithBinder(binder Binder) Option {
	return func(s *Service) { s.binder = binder }
}

func New(policies PolicyStore, tenants TenantResolver, composer *Composer, compilerClient CompilerClient, opts ...Option) *Service {
	s := &Service{
		policies: policies,
		tenants:  tenants,
		composer: composer,
		compiler: compilerClient,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput is the caller-supplied shape for policy creation.
type CreateInput struct {
	TenantRef     string
	Name          string
	Description   string
	Version       string
	Graphs        models.Graphs
	ApplicationID *domain.ApplicationID
}

// CreatePolicy resolves the tenant, composes the link set, delegates
// compilation, persists the result, and optionally binds it to an
// application. If the bind step fails the policy has still been created:
// both the policy and the bind error are returned.
func (s *Service) CreatePolicy(ctx context.Context, input CreateInput) (*models.Policy, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveCreate(start)
		}
	}()

	tenant, err := s.tenants.Resolve(ctx, input.TenantRef, requestcontext.OrgID(ctx))
	if err != nil {
		return nil, err
	}
	if !access.Allowed(requestcontext.Role(ctx), access.PermPolicyWrite) {
		return nil, dErrors.New(dErrors.CodeForbidden, "role does not permit policy changes")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "policy name is required")
	}
	version := input.Version
	if version == "" {
		version = "v1"
	}

	composition, err := s.composer.Compose(ctx, tenant.ID, input.Graphs)
	if err != nil {
		return nil, err
	}
	if len(composition.DroppedKeys) > 0 {
		s.logger.WarnContext(ctx, "composition dropped unresolvable guardrail keys",
			"tenant_id", tenant.ID,
			"policy_name", name,
			"dropped_keys", composition.DroppedKeys,
		)
	}

	strategyMap := domain.DefaultComposition()
	actorID := requestcontext.UserID(ctx)

	result, err := s.compiler.Compile(ctx, tenant.Slug, actorID, composition.Links, strategyMap, name, input.Description, version)
	if err != nil {
		if s.metrics != nil && dErrors.HasCode(err, dErrors.CodeCompilation) {
			s.metrics.IncrementCompileFailed()
		}
		return nil, err
	}

	now := requestcontext.Now(ctx)
	policy := &models.Policy{
		ID:          domain.NewPolicyID(),
		TenantID:    tenant.ID,
		Name:        name,
		Description: input.Description,
		Version:     version,
		Status:      domain.PolicyStatusDraft,
		Composition: strategyMap,
		Artifact:    result.Artifact,
		ContentHash: models.ComputeContentHash(composition.Links, result.Artifact),
		Links:       composition.Links,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.policies.Create(ctx, policy); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "policy %q version %q already exists", name, version)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist policy")
	}

	metadata := map[string]any{
		"name":    policy.Name,
		"version": policy.Version,
		"links":   len(policy.Links),
	}
	if len(composition.DroppedKeys) > 0 {
		metadata["dropped_keys"] = composition.DroppedKeys
	}
	s.recorder.Record(ctx, tenant.ID, audit.ActionPolicyCreated, "policy", policy.ID.String(), metadata)
	if s.metrics != nil {
		s.metrics.IncrementCreated()
	}

	if input.ApplicationID != nil && s.binder != nil {
		if err := s.binder.Bind(ctx, tenant.ID, *input.ApplicationID, policy.ID); err != nil {
			// The policy is already persisted and audited; only the bind
			// failed. Return it so the caller knows the create took effect.
			s.logger.WarnContext(ctx, "policy created but binding failed",
				"policy_id", policy.ID,
				"application_id", *input.ApplicationID,
				"error", err,
			)
			return policy, dErrors.Wrap(err, dErrors.CodeOf(err),
				fmt.Sprintf("policy %q was created but could not be bound to the application", policy.Name))
		}
	}
	return policy, nil
}

// UpdateInput replaces a policy's composition wholesale and recompiles.
type UpdateInput struct {
	TenantRef   string
	PolicyID    domain.PolicyID
	Description *string
	Graphs      models.Graphs
}

// UpdatePolicy recomposes, recompiles, and replaces the stored link set. The
// content hash is refreshed so downstream consumers can detect the change.
func (s *Service) UpdatePolicy(ctx context.Context, input UpdateInput) (*models.Policy, error) {
	tenant, err := s.tenants.Resolve(ctx, input.TenantRef, requestcontext.OrgID(ctx))
	if err != nil {
		return nil, err
	}
	if !access.Allowed(requestcontext.Role(ctx), access.PermPolicyWrite) {
		return nil, dErrors.New(dErrors.CodeForbidden, "role does not permit policy changes")
	}

	policy, err := s.policies.FindByID(ctx, tenant.ID, input.PolicyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "policy not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load policy")
	}
	if policy.Status == domain.PolicyStatusArchived {
		return nil, dErrors.New(dErrors.CodeConflict, "archived policies cannot be modified")
	}

	composition, err := s.composer.Compose(ctx, tenant.ID, input.Graphs)
	if err != nil {
		return nil, err
	}

	result, err := s.compiler.Compile(ctx, tenant.Slug, requestcontext.UserID(ctx), composition.Links, policy.Composition, policy.Name, policy.Description, policy.Version)
	if err != nil {
		if s.metrics != nil && dErrors.HasCode(err, dErrors.CodeCompilation) {
			s.metrics.IncrementCompileFailed()
		}
		return nil, err
	}

	if input.Description != nil {
		policy.Description = *input.Description
	}
	policy.Links = composition.Links
	policy.Artifact = result.Artifact
	policy.ContentHash = models.ComputeContentHash(composition.Links, result.Artifact)
	policy.UpdatedAt = requestcontext.Now(ctx)

	if err := s.policies.Update(ctx, policy); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update policy")
	}

	s.recorder.Record(ctx, tenant.ID, audit.ActionPolicyUpdated, "policy", policy.ID.String(),
		map[string]any{"name": policy.Name, "content_hash": policy.ContentHash})
	return policy, nil
}

// SetStatus transitions the policy lifecycle, enforcing the one-way rules
// (draft↔active excepted).
func (s *Service) SetStatus(ctx context.Context, tenantRef string, id domain.PolicyID, target domain.PolicyStatus) (*models.Policy, error) {
	tenant, err := s.tenants.Resolve(ctx, tenantRef, requestcontext.OrgID(ctx))
	if err != nil {
		return nil, err
	}
	if !access.Allowed(requestcontext.Role(ctx), access.PermPolicyWrite) {
		return nil, dErrors.New(dErrors.CodeForbidden, "role does not permit policy changes")
	}

	policy, err := s.policies.FindByID(ctx, tenant.ID, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "policy not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load policy")
	}

	if !policy.Status.CanTransitionTo(target) {
		return nil, dErrors.Newf(dErrors.CodeConflict, "policy cannot transition from %s to %s", policy.Status, target)
	}
	from := policy.Status
	policy.Status = target
	policy.UpdatedAt = requestcontext.Now(ctx)

	if err := s.policies.Update(ctx, policy); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update policy status")
	}

	s.recorder.Record(ctx, tenant.ID, audit.ActionPolicyStatusSet, "policy", policy.ID.String(),
		map[string]any{"from": string(from), "to": string(target)})
	return policy, nil
}

// DeletePolicy removes a policy. A policy bound to an application is never
// deleted outright: it is archived so the binding's history stays auditable.
func (s *Service) DeletePolicy(ctx context.Context, tenantRef string, id domain.PolicyID) error {
	tenant, err := s.tenants.Resolve(ctx, tenantRef, requestcontext.OrgID(ctx))
	if err != nil {
		return err
	}
	if !access.Allowed(requestcontext.Role(ctx), access.PermPolicyWrite) {
		return dErrors.New(dErrors.CodeForbidden, "role does not permit policy changes")
	}

	policy, err := s.policies.FindByID(ctx, tenant.ID, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "policy not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load policy")
	}

	bound := false
	if s.binder != nil {
		bound, err = s.binder.IsPolicyBound(ctx, tenant.ID, id)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check policy bindings")
		}
	}

	if bound {
		policy.Status = domain.PolicyStatusArchived
		policy.UpdatedAt = requestcontext.Now(ctx)
		if err := s.policies.Update(ctx, policy); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to archive policy")
		}
		s.recorder.Record(ctx, tenant.ID, audit.ActionPolicyArchived, "policy", id.String(),
			map[string]any{"reason": "bound to active application"})
		return nil
	}

	if err := s.policies.Delete(ctx, tenant.ID, id); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete policy")
	}
	s.recorder.Record(ctx, tenant.ID, audit.ActionPolicyDeleted, "policy", id.String(), nil)
	return nil
}

// GetPolicy fetches one policy within the tenant scope.
func (s *Service) GetPolicy(ctx context.Context, tenantRef string, id domain.PolicyID) (*models.Policy, error) {
	tenant, err := s.tenants.Resolve(ctx, tenantRef, requestcontext.OrgID(ctx))
	if err != nil {
		return nil, err
	}
	policy, err := s.policies.FindByID(ctx, tenant.ID, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "policy not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load policy")
	}
	return policy, nil
}

// ListPolicies returns the tenant's policies, newest first.
func (s *Service) ListPolicies(ctx context.Context, tenantRef string) ([]*models.Policy, error) {
	tenant, err := s.tenants.Resolve(ctx, tenantRef, requestcontext.OrgID(ctx))
	if err != nil {
		return nil, err
	}
	policies, err := s.policies.ListByTenant(ctx, tenant.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list policies")
	}
	return policies, nil
}
