package service

import (
	"context"
	"errors"
	"time"

	"aegis/internal/tenant/models"
	"aegis/pkg/domain"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/platform/sentinel"
)

// Resolve maps a tenant reference (opaque id or human slug) to the canonical
// tenant record and enforces that the authenticated caller's organization
// owns it.
//
// Resolution order is exact-id first, then slug: server-to-server callers
// hold the opaque id, URL-driven callers hold the slug, and both must land on
// the same ownership check.
func (s *Service) Resolve(ctx context.Context, ref string, callerOrg domain.TenantID) (*models.Tenant, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveResolve(start)
		}
	}()

	if ref == "" {
		return nil, dErrors.New(dErrors.CodeNotFound, "tenant not found")
	}

	tenant, err := s.lookup(ctx, ref)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "tenant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve tenant")
	}

	if callerOrg.IsNil() || tenant.ID != callerOrg {
		return nil, dErrors.New(dErrors.CodeForbidden, "tenant does not belong to caller's organization")
	}
	return tenant, nil
}

func (s *Service) lookup(ctx context.Context, ref string) (*models.Tenant, error) {
	if id, err := domain.ParseTenantID(ref); err == nil {
		tenant, err := s.tenants.FindByID(ctx, id)
		if err == nil {
			return tenant, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, err
		}
		// Fall through: an id-shaped ref can still be someone's slug.
	}
	return s.tenants.FindBySlug(ctx, ref)
}
