package store

import (
	"context"
	"sync"

	"aegis/internal/observability/models"
	"aegis/pkg/domain"
)

// InMemoryStore is an append-only log buffer keyed by tenant.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[domain.TenantID][]models.LogEntry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[domain.TenantID][]models.LogEntry)}
}

func (s *InMemoryStore) Append(_ context.Context, entry *models.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.TenantID] = append(s.entries[entry.TenantID], *entry)
	return nil
}

func (s *InMemoryStore) ListInScope(_ context.Context, scope models.Scope) ([]models.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.LogEntry
	for i := range s.entries[scope.TenantID] {
		entry := s.entries[scope.TenantID][i]
		if scope.Contains(&entry) {
			out = append(out, entry)
		}
	}
	return out, nil
}
