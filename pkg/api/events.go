package api

import "time"

// EventType identifies a workflow history event.
type EventType string

const (
	EventWorkflowEnqueued  EventType = "workflow.enqueued"
	EventWorkflowStarted   EventType = "workflow.started"
	EventStateEntered      EventType = "state.entered"
	EventWorkflowCompleted EventType = "workflow.completed"
	EventWorkflowFailed    EventType = "workflow.failed"
	EventWorkflowRecovered EventType = "workflow.recovered"
)

// WorkflowEvent is a minimal append-only history record for audit/debugging.
// It is intentionally small and stable; richer history can be layered later.
type WorkflowEvent struct {
	WorkflowID string    `json:"workflow_id"`
	At         time.Time `json:"at"`
	Type       EventType `json:"type"`

	// Optional context.
	Pipeline string `json:"pipeline,omitempty"`
	State    State  `json:"state,omitempty"`

	// Small, human-oriented details (e.g. an error string).
	// Keep this low-volume: do NOT dump large payloads here.
	Detail string `json:"detail,omitempty"`
}
