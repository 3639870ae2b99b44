package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"aegis/internal/access"
	"aegis/internal/audit"
	tenantmetrics "aegis/internal/tenant/metrics"
	"aegis/internal/tenant/models"
	"aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/platform/sentinel"
	"aegis/pkg/requestcontext"
)

// maxSlugAttempts bounds the collision retry. After five conflicting
// candidates the operation fails hard; the caller picks a different name.
const maxSlugAttempts = 5

// TenantStore abstracts tenant persistence so the service runs against the
// in-memory store in tests and postgres in production.
type TenantStore interface {
	CreateIfSlugAvailable(ctx context.Context, tenant *models.Tenant) error
	FindByID(ctx context.Context, id domain.TenantID) (*models.Tenant, error)
	FindBySlug(ctx context.Context, slug string) (*models.Tenant, error)
}

// Service orchestrates tenant lifecycle and resolution.
type Service struct {
	tenants  TenantStore
	logger   *slog.Logger
	recorder *audit.Recorder
	metrics  *tenantmetrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithRecorder(recorder *audit.Recorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

func WithMetrics(m *tenantmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(tenants TenantStore, opts ...Option) *Service {
	s := &Service{tenants: tenants, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTenant provisions a tenant with a slug derived from its name.
// Slug collisions are resolved optimistically: insert a candidate, and on a
// uniqueness conflict move to the next one. No locks are taken; the store's
// unique constraint is the arbiter.
func (s *Service) CreateTenant(ctx context.Context, name, plan string) (*models.Tenant, error) {
	if !access.Allowed(requestcontext.Role(ctx), access.PermTenantManage) {
		return nil, dErrors.New(dErrors.CodeForbidden, "insufficient permissions to create tenants")
	}

	name = strings.TrimSpace(name)
	base := models.Slugify(name)
	if base == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant name must contain at least one alphanumeric character")
	}

	now := requestcontext.Now(ctx)
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		candidate := models.SlugCandidate(base, attempt)
		tenant, err := models.NewTenant(domain.NewTenantID(), name, candidate, plan, now)
		if err != nil {
			return nil, err
		}

		err = s.tenants.CreateIfSlugAvailable(ctx, tenant)
		if err == nil {
			s.recorder.Record(ctx, tenant.ID, audit.ActionTenantCreated, "tenant", tenant.ID.String(),
				map[string]any{"slug": tenant.Slug, "plan": tenant.Plan})
			if s.metrics != nil {
				s.metrics.IncrementTenantCreated()
			}
			return tenant, nil
		}
		if errors.Is(err, sentinel.ErrConflict) {
			s.logger.InfoContext(ctx, "tenant slug collision, retrying",
				"slug", candidate,
				"attempt", attempt+1,
			)
			continue
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create tenant")
	}

	return nil, dErrors.Newf(dErrors.CodeSlugExhausted,
		"could not find an available slug for %q after %d attempts; choose a different name", name, maxSlugAttempts)
}

// GetTenant fetches a tenant by id, without ownership checks. Callers on the
// request path use Resolve instead.
func (s *Service) GetTenant(ctx context.Context, id domain.TenantID) (*models.Tenant, error) {
	tenant, err := s.tenants.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "tenant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tenant")
	}
	return tenant, nil
}
