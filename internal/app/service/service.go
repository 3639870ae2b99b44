package service

import (
	"context"
	"errors"
	"log/slog"

	"aegis/internal/access"
	"aegis/internal/app/models"
	"aegis/internal/audit"
	"aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/platform/sentinel"
	"aegis/pkg/requestcontext"
)

// ApplicationStore persists applications and their policy bindings.
type ApplicationStore interface {
	Create(ctx context.Context, app *models.Application) error
	FindByID(ctx context.Context, tenantID domain.TenantID, id domain.ApplicationID) (*models.Application, error)
	ListByTenant(ctx context.Context, tenantID domain.TenantID) ([]*models.Application, error)
	Touch(ctx context.Context, tenantID domain.TenantID, id domain.ApplicationID) error
	AddBinding(ctx context.Context, tenantID domain.TenantID, binding models.Binding) error
	RemoveBinding(ctx context.Context, tenantID domain.TenantID, appID domain.ApplicationID, policyID domain.PolicyID) error
	ListBindings(ctx context.Context, tenantID domain.TenantID, appID domain.ApplicationID) ([]models.Binding, error)
	CountBindingsByPolicy(ctx context.Context, tenantID domain.TenantID, policyID domain.PolicyID) (int, error)
}

// Service manages applications and the policy bindings that activate
// enforcement for them.
type Service struct {
	apps     ApplicationStore
	logger   *slog.Logger
	recorder *audit.Recorder
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithRecorder(recorder *audit.Recorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

func New(apps ApplicationStore, opts ...Option) *Service {
	s := &Service{apps: apps, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, tenantID domain.TenantID, name, environment string) (*models.Application, error) {
	if !access.Allowed(requestcontext.Role(ctx), access.PermApplicationWrite) {
		return nil, dErrors.New(dErrors.CodeForbidden, "role does not permit application changes")
	}

	app, err := models.NewApplication(tenantID, name, environment, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.apps.Create(ctx, app); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "application %q already exists", app.Name)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist application")
	}

	s.recorder.Record(ctx, tenantID, audit.ActionApplicationCreated, "application", app.ID.String(),
		map[string]any{"name": app.Name, "environment": app.Environment})
	return app, nil
}

func (s *Service) List(ctx context.Context, tenantID domain.TenantID) ([]*models.Application, error) {
	apps, err := s.apps.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list applications")
	}
	return apps, nil
}

func (s *Service) Get(ctx context.Context, tenantID domain.TenantID, id domain.ApplicationID) (*models.Application, error) {
	app, err := s.apps.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "application not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load application")
	}
	return app, nil
}

// Bind activates a policy for an application and stamps the application's
// last-modified marker. Binding the same policy twice is a conflict, not a
// no-op: callers treating re-binds as success mask configuration bugs.
func (s *Service) Bind(ctx context.Context, tenantID domain.TenantID, appID domain.ApplicationID, policyID domain.PolicyID) error {
	if !access.Allowed(requestcontext.Role(ctx), access.PermApplicationWrite) {
		return dErrors.New(dErrors.CodeForbidden, "role does not permit application changes")
	}
	if _, err := s.Get(ctx, tenantID, appID); err != nil {
		return err
	}

	binding := models.Binding{
		ApplicationID: appID,
		PolicyID:      policyID,
		CreatedAt:     requestcontext.Now(ctx),
	}
	if err := s.apps.AddBinding(ctx, tenantID, binding); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "policy is already bound to this application")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to bind policy")
	}
	if err := s.apps.Touch(ctx, tenantID, appID); err != nil {
		s.logger.WarnContext(ctx, "failed to stamp application last-modified",
			"application_id", appID, "error", err)
	}

	s.recorder.Record(ctx, tenantID, audit.ActionPolicyBound, "application", appID.String(),
		map[string]any{"policy_id": policyID.String()})
	return nil
}

func (s *Service) Unbind(ctx context.Context, tenantID domain.TenantID, appID domain.ApplicationID, policyID domain.PolicyID) error {
	if !access.Allowed(requestcontext.Role(ctx), access.PermApplicationWrite) {
		return dErrors.New(dErrors.CodeForbidden, "role does not permit application changes")
	}
	if err := s.apps.RemoveBinding(ctx, tenantID, appID, policyID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "binding not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to unbind policy")
	}
	if err := s.apps.Touch(ctx, tenantID, appID); err != nil {
		s.logger.WarnContext(ctx, "failed to stamp application last-modified",
			"application_id", appID, "error", err)
	}

	s.recorder.Record(ctx, tenantID, audit.ActionPolicyUnbound, "application", appID.String(),
		map[string]any{"policy_id": policyID.String()})
	return nil
}

func (s *Service) ListBindings(ctx context.Context, tenantID domain.TenantID, appID domain.ApplicationID) ([]models.Binding, error) {
	bindings, err := s.apps.ListBindings(ctx, tenantID, appID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list bindings")
	}
	return bindings, nil
}

// IsPolicyBound reports whether any application still activates the policy.
// The policy service consults this before deletion.
func (s *Service) IsPolicyBound(ctx context.Context, tenantID domain.TenantID, policyID domain.PolicyID) (bool, error) {
	n, err := s.apps.CountBindingsByPolicy(ctx, tenantID, policyID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
