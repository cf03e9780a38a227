package taskqueue

import (
	"context"
	"sync"
)

// InMemoryQueue is a simple Queue implementation backed by a buffered channel.
// It is safe for concurrent use.
type InMemoryQueue struct {
	ch   chan Task
	done chan struct{}
	once sync.Once
}

// NewInMemoryQueue creates a new queue with the given capacity.
// For tests and small deployments, a modest capacity (e.g. 1024) is fine.
func NewInMemoryQueue(capacity int) *InMemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &InMemoryQueue{
		ch:   make(chan Task, capacity),
		done: make(chan struct{}),
	}
}

// Ensure InMemoryQueue implements Queue.
var _ Queue = (*InMemoryQueue)(nil)

func (q *InMemoryQueue) Enqueue(ctx context.Context, t Task) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.ch <- t:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *InMemoryQueue) Dequeue(ctx context.Context) (*Task, error) {
	// Drain buffered tasks before reporting closure.
	select {
	case t := <-q.ch:
		return &t, nil
	default:
	}
	select {
	case t := <-q.ch:
		return &t, nil
	case <-q.done:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *InMemoryQueue) Len() int {
	return len(q.ch)
}

// Close marks the queue closed. Blocked Enqueue and Dequeue calls return
// ErrQueueClosed; tasks already buffered can still be drained by Dequeue.
// Close is idempotent.
func (q *InMemoryQueue) Close() {
	q.once.Do(func() { close(q.done) })
}
