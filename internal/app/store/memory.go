package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"aegis/internal/app/models"
	"aegis/pkg/domain"
	"aegis/pkg/platform/sentinel"
)

type bindingKey struct {
	appID    domain.ApplicationID
	policyID domain.PolicyID
}

// InMemoryStore keeps applications and bindings tenant-first.
type InMemoryStore struct {
	mu       sync.RWMutex
	apps     map[domain.TenantID]map[domain.ApplicationID]*models.Application
	bindings map[domain.TenantID]map[bindingKey]models.Binding
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		apps:     make(map[domain.TenantID]map[domain.ApplicationID]*models.Application),
		bindings: make(map[domain.TenantID]map[bindingKey]models.Binding),
	}
}

func (s *InMemoryStore) Create(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.apps[app.TenantID]
	if !ok {
		byID = make(map[domain.ApplicationID]*models.Application)
		s.apps[app.TenantID] = byID
	}
	for _, existing := range byID {
		if existing.Name == app.Name && existing.Environment == app.Environment {
			return sentinel.ErrConflict
		}
	}
	cp := *app
	byID[app.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, tenantID domain.TenantID, id domain.ApplicationID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.apps[tenantID][id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *app
	return &cp, nil
}

func (s *InMemoryStore) ListByTenant(_ context.Context, tenantID domain.TenantID) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Application, 0, len(s.apps[tenantID]))
	for _, app := range s.apps[tenantID] {
		cp := *app
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) Touch(_ context.Context, tenantID domain.TenantID, id domain.ApplicationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.apps[tenantID][id]
	if !ok {
		return sentinel.ErrNotFound
	}
	app.LastModifiedAt = time.Now().UTC()
	return nil
}

func (s *InMemoryStore) AddBinding(_ context.Context, tenantID domain.TenantID, binding models.Binding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey, ok := s.bindings[tenantID]
	if !ok {
		byKey = make(map[bindingKey]models.Binding)
		s.bindings[tenantID] = byKey
	}
	key := bindingKey{appID: binding.ApplicationID, policyID: binding.PolicyID}
	if _, exists := byKey[key]; exists {
		return sentinel.ErrConflict
	}
	byKey[key] = binding
	return nil
}

func (s *InMemoryStore) RemoveBinding(_ context.Context, tenantID domain.TenantID, appID domain.ApplicationID, policyID domain.PolicyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := bindingKey{appID: appID, policyID: policyID}
	if _, ok := s.bindings[tenantID][key]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.bindings[tenantID], key)
	return nil
}

func (s *InMemoryStore) ListBindings(_ context.Context, tenantID domain.TenantID, appID domain.ApplicationID) ([]models.Binding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Binding
	for key, binding := range s.bindings[tenantID] {
		if key.appID == appID {
			out = append(out, binding)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) CountBindingsByPolicy(_ context.Context, tenantID domain.TenantID, policyID domain.PolicyID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for key := range s.bindings[tenantID] {
		if key.policyID == policyID {
			n++
		}
	}
	return n, nil
}
