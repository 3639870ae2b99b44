package store

import (
	"context"
	"sort"
	"sync"

	"aegis/internal/policy/models"
	"aegis/pkg/domain"
	"aegis/pkg/platform/sentinel"
)

// InMemoryStore keeps policies in maps keyed tenant-first so every read and
// write is tenant-scoped by construction.
type InMemoryStore struct {
	mu       sync.RWMutex
	policies map[domain.TenantID]map[domain.PolicyID]*models.Policy
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		policies: make(map[domain.TenantID]map[domain.PolicyID]*models.Policy),
	}
}

func (s *InMemoryStore) Create(_ context.Context, policy *models.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.policies[policy.TenantID]
	if !ok {
		byID = make(map[domain.PolicyID]*models.Policy)
		s.policies[policy.TenantID] = byID
	}
	for _, existing := range byID {
		if existing.Name == policy.Name && existing.Version == policy.Version {
			return sentinel.ErrConflict
		}
	}
	byID[policy.ID] = copyPolicy(policy)
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, policy *models.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.policies[policy.TenantID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if _, ok := byID[policy.ID]; !ok {
		return sentinel.ErrNotFound
	}
	byID[policy.ID] = copyPolicy(policy)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, tenantID domain.TenantID, id domain.PolicyID) (*models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	policy, ok := s.policies[tenantID][id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyPolicy(policy), nil
}

func (s *InMemoryStore) ListByTenant(_ context.Context, tenantID domain.TenantID) ([]*models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Policy, 0, len(s.policies[tenantID]))
	for _, policy := range s.policies[tenantID] {
		out = append(out, copyPolicy(policy))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) Delete(_ context.Context, tenantID domain.TenantID, id domain.PolicyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.policies[tenantID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if _, ok := byID[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(byID, id)
	return nil
}

func copyPolicy(p *models.Policy) *models.Policy {
	cp := *p
	cp.Links = make([]models.Link, len(p.Links))
	copy(cp.Links, p.Links)
	cp.Composition = make(map[domain.Phase]domain.CompositionStrategy, len(p.Composition))
	for phase, strategy := range p.Composition {
		cp.Composition[phase] = strategy
	}
	return &cp
}
