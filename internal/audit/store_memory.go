package audit

import (
	"context"
	"sync"

	"aegis/pkg/domain"
)

// InMemoryStore keeps audit events in process. Used by unit tests and
// single-node development; production uses the postgres outbox store.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListByTenant returns events for one tenant in append order.
func (s *InMemoryStore) ListByTenant(_ context.Context, tenantID domain.TenantID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out, nil
}
