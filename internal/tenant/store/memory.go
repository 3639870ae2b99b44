package store

import (
	"context"
	"sync"

	"aegis/internal/tenant/models"
	"aegis/pkg/domain"
	"aegis/pkg/platform/sentinel"
)

// InMemoryStore keeps tenants in process, guarding the slug uniqueness
// invariant under the same lock as the insert so unit tests exercise the
// collision path deterministically.
type InMemoryStore struct {
	mu     sync.RWMutex
	byID   map[domain.TenantID]*models.Tenant
	bySlug map[string]domain.TenantID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:   make(map[domain.TenantID]*models.Tenant),
		bySlug: make(map[string]domain.TenantID),
	}
}

func (s *InMemoryStore) CreateIfSlugAvailable(_ context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.bySlug[tenant.Slug]; taken {
		return sentinel.ErrConflict
	}
	cp := *tenant
	s.byID[tenant.ID] = &cp
	s.bySlug[tenant.Slug] = tenant.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.TenantID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tenant, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *tenant
	return &cp, nil
}

func (s *InMemoryStore) FindBySlug(_ context.Context, slug string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySlug[slug]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}
