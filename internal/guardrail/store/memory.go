package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"aegis/internal/guardrail/models"
	"aegis/pkg/domain"
	"aegis/pkg/platform/sentinel"
)

// InMemoryStore keeps guardrails in process. Keyed by tenant first so every
// read path is tenant-scoped by construction.
type InMemoryStore struct {
	mu       sync.RWMutex
	byTenant map[domain.TenantID]map[domain.GuardrailID]*models.Guardrail
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byTenant: make(map[domain.TenantID]map[domain.GuardrailID]*models.Guardrail)}
}

func (s *InMemoryStore) Create(_ context.Context, guardrail *models.Guardrail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tenant := s.byTenant[guardrail.TenantID]
	if tenant == nil {
		tenant = make(map[domain.GuardrailID]*models.Guardrail)
		s.byTenant[guardrail.TenantID] = tenant
	}
	for _, existing := range tenant {
		if !existing.Deleted() && existing.Key == guardrail.Key && existing.Version == guardrail.Version {
			return sentinel.ErrConflict
		}
	}
	cp := *guardrail
	tenant[guardrail.ID] = &cp
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, guardrail *models.Guardrail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tenant := s.byTenant[guardrail.TenantID]
	if tenant == nil {
		return sentinel.ErrNotFound
	}
	if _, ok := tenant[guardrail.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *guardrail
	tenant[guardrail.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, tenantID domain.TenantID, id domain.GuardrailID) (*models.Guardrail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	guardrail, ok := s.byTenant[tenantID][id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *guardrail
	return &cp, nil
}

func (s *InMemoryStore) ListByTenant(_ context.Context, tenantID domain.TenantID) ([]*models.Guardrail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Guardrail
	for _, guardrail := range s.byTenant[tenantID] {
		if guardrail.Deleted() {
			continue
		}
		cp := *guardrail
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) ResolveKeys(_ context.Context, tenantID domain.TenantID, keys []string) (map[string]domain.GuardrailID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[string]bool, len(keys))
	for _, key := range keys {
		wanted[key] = true
	}
	resolved := make(map[string]domain.GuardrailID)
	for _, guardrail := range s.byTenant[tenantID] {
		if guardrail.Deleted() || !wanted[guardrail.Key] {
			continue
		}
		resolved[guardrail.Key] = guardrail.ID
	}
	return resolved, nil
}

func (s *InMemoryStore) SoftDelete(_ context.Context, tenantID domain.TenantID, id domain.GuardrailID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	guardrail, ok := s.byTenant[tenantID][id]
	if !ok || guardrail.Deleted() {
		return sentinel.ErrNotFound
	}
	now := time.Now().UTC()
	guardrail.DeletedAt = &now
	return nil
}
