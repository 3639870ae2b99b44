package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"aegis/internal/apikey/models"
	"aegis/pkg/domain"
	"aegis/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	byID   map[domain.APIKeyID]*models.APIKey
	byHash map[string]domain.APIKeyID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:   make(map[domain.APIKeyID]*models.APIKey),
		byHash: make(map[string]domain.APIKeyID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *key
	s.byID[key.ID] = &cp
	s.byHash[key.Hash] = key.ID
	return nil
}

func (s *InMemoryStore) ListByTenant(_ context.Context, tenantID domain.TenantID) ([]*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.APIKey
	for _, key := range s.byID {
		if key.TenantID == tenantID {
			cp := *key
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) FindByHash(_ context.Context, hash string) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byHash[hash]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *InMemoryStore) Revoke(_ context.Context, tenantID domain.TenantID, id domain.APIKeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.byID[id]
	if !ok || key.TenantID != tenantID || key.Revoked() {
		return sentinel.ErrNotFound
	}
	now := time.Now().UTC()
	key.RevokedAt = &now
	return nil
}
