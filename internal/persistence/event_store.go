package persistence

import (
	"context"
	"sync"

	"github.com/petrijr/resposta/pkg/api"
)

// EventStore is an append-only history store for workflow transition
// events.
type EventStore interface {
	AppendEvent(ctx context.Context, ev api.WorkflowEvent) error
	ListEvents(ctx context.Context, workflowID string) ([]api.WorkflowEvent, error)
}

// NoopEventStore discards all events.
type NoopEventStore struct{}

func (NoopEventStore) AppendEvent(ctx context.Context, ev api.WorkflowEvent) error { return nil }
func (NoopEventStore) ListEvents(ctx context.Context, workflowID string) ([]api.WorkflowEvent, error) {
	return nil, nil
}

// InMemoryEventStore keeps events per workflow in memory, in append
// order. It backs ListEvents in embedded setups where no database is
// configured.
type InMemoryEventStore struct {
	mu     sync.RWMutex
	events map[string][]api.WorkflowEvent
}

var _ EventStore = (*InMemoryEventStore)(nil)

// NewInMemoryEventStore creates an empty InMemoryEventStore.
func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{events: make(map[string][]api.WorkflowEvent)}
}

func (s *InMemoryEventStore) AppendEvent(ctx context.Context, ev api.WorkflowEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[ev.WorkflowID] = append(s.events[ev.WorkflowID], ev)
	return nil
}

func (s *InMemoryEventStore) ListEvents(ctx context.Context, workflowID string) ([]api.WorkflowEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evs := s.events[workflowID]
	out := make([]api.WorkflowEvent, len(evs))
	copy(out, evs)
	return out, nil
}
