package persistence

import (
	"context"
	"time"

	"github.com/petrijr/resposta/pkg/api"
)

// WorkflowFilter is used to select workflows from the store.
// Empty string / zero state mean "no filter" for that field.
type WorkflowFilter struct {
	State    api.State
	Pipeline string
}

// WorkflowStore handles storage of workflow records.
//
// Every write is a full snapshot: state and stage data land together,
// so concurrent readers always observe a consistent workflow. Stores
// never return shared mutable records; reads are safe to retain.
type WorkflowStore interface {
	// SaveWorkflow inserts a new workflow record.
	SaveWorkflow(ctx context.Context, wf *api.Workflow) error
	// UpdateWorkflow overwrites an existing record with a full snapshot.
	// Returns api.ErrWorkflowNotFound if the id is unknown.
	UpdateWorkflow(ctx context.Context, wf *api.Workflow) error
	// GetWorkflow returns the workflow with the given id, or
	// api.ErrWorkflowNotFound.
	GetWorkflow(ctx context.Context, id string) (*api.Workflow, error)
	ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*api.Workflow, error)

	// TryAcquireLease attempts to acquire (or re-acquire) a lease on a
	// workflow. If the workflow is currently leased by another owner and
	// the lease has not expired, it returns acquired=false, err=nil.
	//
	// Implementations should treat a lease owned by the same owner as
	// re-entrant.
	TryAcquireLease(ctx context.Context, workflowID, owner string, ttl time.Duration) (acquired bool, err error)
	// RenewLease extends an existing lease owned by 'owner' for the given
	// ttl. Returns api.ErrWorkflowLeaseHeld if 'owner' does not hold it.
	RenewLease(ctx context.Context, workflowID, owner string, ttl time.Duration) error
	// ReleaseLease releases a lease if it is owned by 'owner'. It is
	// idempotent.
	ReleaseLease(ctx context.Context, workflowID, owner string) error
}
