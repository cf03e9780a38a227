package api

import (
	"context"
	"errors"
)

var (
	// ErrWorkflowNotFound is returned by accessors for unknown workflow ids.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrInvalidRequest is wrapped by CreateWorkflow when the request
	// fails validation.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrArtifactNotReady is returned by GetArtifact before the workflow
	// has reached the ready state.
	ErrArtifactNotReady = errors.New("artifact not ready")

	// ErrWorkflowLeaseHeld is returned by lease operations when the
	// workflow is leased to another worker.
	ErrWorkflowLeaseHeld = errors.New("workflow lease held by another owner")
)

// CreateWorkflowRequest carries the immutable creation context for a new
// workflow.
//
// SourceDocumentText selects the pipeline: non-nil runs the full
// rfp-response pipeline over the document (an empty string is a valid
// document); nil runs the quick-proposal pipeline, which synthesizes a
// standard outline instead of extracting questions.
type CreateWorkflowRequest struct {
	ClientName          string  `json:"client_name"`
	Industry            string  `json:"industry,omitempty"`
	SourceDocumentText  *string `json:"source_document_text,omitempty"`
	RequirementsSummary string  `json:"requirements_summary,omitempty"`
}

// WorkflowListOptions controls how workflows are listed.
// Zero values mean "no filter" for that field.
type WorkflowListOptions struct {
	// State, if non-empty, limits results to workflows in that state.
	State State

	// Pipeline, if non-empty, limits results to workflows of that pipeline.
	Pipeline string
}

// Engine is the public engine API.
//
// CreateWorkflow returns immediately with the workflow in the created
// state; processing runs asynchronously (a worker consumes the queued
// task, or the caller drives processing directly in embedded setups).
// Any number of concurrent readers may poll GetWorkflow while processing
// runs; every snapshot they observe is a consistent persisted write.
type Engine interface {
	// CreateWorkflow validates the request, persists a new workflow in
	// state created, enqueues it for processing, and returns its snapshot.
	CreateWorkflow(ctx context.Context, req CreateWorkflowRequest) (*Workflow, error)

	// GetWorkflow returns the latest persisted snapshot of a workflow.
	// Returns ErrWorkflowNotFound for unknown ids.
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)

	// ListWorkflows returns workflows matching the given options.
	ListWorkflows(ctx context.Context, opts WorkflowListOptions) ([]*Workflow, error)

	// GetArtifact returns the rendered document bytes for a workflow.
	// Returns ErrWorkflowNotFound for unknown ids and ErrArtifactNotReady
	// until the workflow reaches ready.
	GetArtifact(ctx context.Context, id string) ([]byte, error)

	// ListEvents returns the workflow's transition history in
	// chronological order. Returns ErrWorkflowNotFound for unknown ids.
	ListEvents(ctx context.Context, id string) ([]WorkflowEvent, error)

	// RecoverStuckWorkflows scans for workflows left mid-processing by a
	// crash (any state between analyzing and formatting inclusive) and
	// marks them as error with a standard detail. It returns the number
	// of workflows it updated.
	//
	// Call it on process startup before starting workers, so that no
	// workflow is legitimately processing when it runs. Workflows still
	// in created are left alone; their queued task survives the restart.
	RecoverStuckWorkflows(ctx context.Context) (int, error)
}
