package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/petrijr/resposta/pkg/api"
)

// InMemoryStore is a simple, goroutine-safe implementation of
// WorkflowStore backed by maps. Records are cloned on the way in and
// out, so callers can never mutate a stored snapshot.
type InMemoryStore struct {
	mu        sync.RWMutex
	workflows map[string]*api.Workflow
	leases    map[string]memoryLease
}

type memoryLease struct {
	owner   string
	expires time.Time
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		workflows: make(map[string]*api.Workflow),
		leases:    make(map[string]memoryLease),
	}
}

// Ensure InMemoryStore implements the interface.
var _ WorkflowStore = (*InMemoryStore)(nil)

func (s *InMemoryStore) SaveWorkflow(ctx context.Context, wf *api.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.workflows[wf.ID] = wf.Clone()
	return nil
}

func (s *InMemoryStore) UpdateWorkflow(ctx context.Context, wf *api.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workflows[wf.ID]; !ok {
		return api.ErrWorkflowNotFound
	}

	s.workflows[wf.ID] = wf.Clone()
	return nil
}

func (s *InMemoryStore) GetWorkflow(ctx context.Context, id string) (*api.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wf, ok := s.workflows[id]
	if !ok {
		return nil, api.ErrWorkflowNotFound
	}

	return wf.Clone(), nil
}

func (s *InMemoryStore) ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*api.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*api.Workflow

	for _, wf := range s.workflows {
		if filter.State != "" && wf.State != filter.State {
			continue
		}
		if filter.Pipeline != "" && wf.Pipeline != filter.Pipeline {
			continue
		}
		result = append(result, wf.Clone())
	}

	return result, nil
}

func (s *InMemoryStore) TryAcquireLease(ctx context.Context, workflowID, owner string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cur, ok := s.leases[workflowID]
	if ok && cur.owner != owner && cur.expires.After(now) {
		return false, nil
	}

	s.leases[workflowID] = memoryLease{owner: owner, expires: now.Add(ttl)}
	return true, nil
}

func (s *InMemoryStore) RenewLease(ctx context.Context, workflowID, owner string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.leases[workflowID]
	if !ok || cur.owner != owner {
		return api.ErrWorkflowLeaseHeld
	}

	s.leases[workflowID] = memoryLease{owner: owner, expires: time.Now().Add(ttl)}
	return nil
}

func (s *InMemoryStore) ReleaseLease(ctx context.Context, workflowID, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.leases[workflowID]
	if !ok {
		return nil
	}
	if cur.owner != owner {
		return api.ErrWorkflowLeaseHeld
	}

	delete(s.leases, workflowID)
	return nil
}
