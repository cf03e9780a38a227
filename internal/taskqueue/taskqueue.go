// Package taskqueue carries workflow processing tasks from the engine to
// the workers. Each workflow gets exactly one logical task; workers dequeue
// a task, drive the workflow to a terminal state, and may re-enqueue with a
// backoff on infrastructure failure.
package taskqueue

import (
	"context"
	"errors"
	"time"
)

// ErrQueueClosed is returned by Enqueue and Dequeue after the queue has
// been closed.
var ErrQueueClosed = errors.New("task queue closed")

// Task represents one workflow to process.
type Task struct {
	ID         string
	WorkflowID string

	// Attempts counts prior deliveries of this task. A freshly created
	// task has Attempts 0; the worker increments it on re-enqueue.
	Attempts int

	EnqueuedAt time.Time

	// NotBefore is the earliest time this task should be eligible for
	// processing. Zero value means "immediately". The SQLite queue holds
	// back ineligible tasks; for the other backends the worker enforces
	// it on receipt.
	NotBefore time.Time
}

// Queue is a simple async task queue interface.
type Queue interface {
	// Enqueue adds a task to the queue. It should respect ctx for cancellation.
	Enqueue(ctx context.Context, t Task) error

	// Dequeue removes and returns the next task, blocking until one is available
	// or the context is cancelled.
	Dequeue(ctx context.Context) (*Task, error)

	// Len returns the approximate number of tasks queued.
	Len() int
}
