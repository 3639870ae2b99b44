package service

import (
	"context"

	appmodels "aegis/internal/app/models"
	policymodels "aegis/internal/policy/models"
	"aegis/pkg/domain"
)

// BindingSource lists policy bindings, per application or tenant-wide.
// The application store satisfies this.
type BindingSource interface {
	ListBindings(ctx context.Context, tenantID domain.TenantID, appID domain.ApplicationID) ([]appmodels.Binding, error)
	ListByTenant(ctx context.Context, tenantID domain.TenantID) ([]*appmodels.Application, error)
}

// PolicySource loads policies so bound guardrails can be counted through
// their link sets. The policy store satisfies this.
type PolicySource interface {
	FindByID(ctx context.Context, tenantID domain.TenantID, id domain.PolicyID) (*policymodels.Policy, error)
}

// StoreCatalogStats derives catalog breadth from the binding and policy
// stores. Distinct guardrails are counted through the bound policies' link
// sets: an unbound policy's guardrails do not count as "in enforcement".
type StoreCatalogStats struct {
	bindings BindingSource
	policies PolicySource
}

func NewStoreCatalogStats(bindings BindingSource, policies PolicySource) *StoreCatalogStats {
	return &StoreCatalogStats{bindings: bindings, policies: policies}
}

func (s *StoreCatalogStats) DistinctBoundPolicies(ctx context.Context, tenantID domain.TenantID, appID *domain.ApplicationID) (int, error) {
	set, err := s.boundPolicySet(ctx, tenantID, appID)
	if err != nil {
		return 0, err
	}
	return len(set), nil
}

func (s *StoreCatalogStats) DistinctBoundGuardrails(ctx context.Context, tenantID domain.TenantID, appID *domain.ApplicationID) (int, error) {
	set, err := s.boundPolicySet(ctx, tenantID, appID)
	if err != nil {
		return 0, err
	}
	guardrails := make(map[domain.GuardrailID]bool)
	for policyID := range set {
		policy, err := s.policies.FindByID(ctx, tenantID, policyID)
		if err != nil {
			return 0, err
		}
		for _, link := range policy.Links {
			guardrails[link.GuardrailID] = true
		}
	}
	return len(guardrails), nil
}

func (s *StoreCatalogStats) boundPolicySet(ctx context.Context, tenantID domain.TenantID, appID *domain.ApplicationID) (map[domain.PolicyID]bool, error) {
	set := make(map[domain.PolicyID]bool)

	appIDs := []domain.ApplicationID{}
	if appID != nil {
		appIDs = append(appIDs, *appID)
	} else {
		apps, err := s.bindings.ListByTenant(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		for _, app := range apps {
			appIDs = append(appIDs, app.ID)
		}
	}

	for _, id := range appIDs {
		bindings, err := s.bindings.ListBindings(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		for _, b := range bindings {
			set[b.PolicyID] = true
		}
	}
	return set, nil
}
