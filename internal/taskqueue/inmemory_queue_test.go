package taskqueue

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInMemoryQueue_EnqueueDequeueOrder(t *testing.T) {
	q := NewInMemoryQueue(0)

	ctx := context.Background()

	t1 := Task{ID: "1", WorkflowID: "wf-1"}
	t2 := Task{ID: "2", WorkflowID: "wf-2"}
	t3 := Task{ID: "3", WorkflowID: "wf-3"}

	if err := q.Enqueue(ctx, t1); err != nil {
		t.Fatalf("Enqueue t1 failed: %v", err)
	}
	if err := q.Enqueue(ctx, t2); err != nil {
		t.Fatalf("Enqueue t2 failed: %v", err)
	}
	if err := q.Enqueue(ctx, t3); err != nil {
		t.Fatalf("Enqueue t3 failed: %v", err)
	}

	if q.Len() != 3 {
		t.Fatalf("expected Len 3, got %d", q.Len())
	}

	got1, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue 1 failed: %v", err)
	}
	got2, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue 2 failed: %v", err)
	}
	got3, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue 3 failed: %v", err)
	}

	if got1.ID != "1" || got2.ID != "2" || got3.ID != "3" {
		t.Fatalf("unexpected dequeue order: %q, %q, %q", got1.ID, got2.ID, got3.ID)
	}
	if got1.WorkflowID != "wf-1" || got2.WorkflowID != "wf-2" || got3.WorkflowID != "wf-3" {
		t.Fatalf("unexpected workflow ids: %q, %q, %q", got1.WorkflowID, got2.WorkflowID, got3.WorkflowID)
	}

	if q.Len() != 0 {
		t.Fatalf("expected Len 0 after dequeues, got %d", q.Len())
	}
}

func TestInMemoryQueue_DequeueHonorsContextCancellation(t *testing.T) {
	q := NewInMemoryQueue(0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// No tasks enqueued, Dequeue should return ctx error.
	_, err := q.Dequeue(ctx)
	if err == nil {
		t.Fatalf("expected Dequeue to fail due to context cancellation")
	}
}

func TestInMemoryQueue_CloseUnblocksDequeue(t *testing.T) {
	q := NewInMemoryQueue(0)

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrQueueClosed) {
			t.Fatalf("expected ErrQueueClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Dequeue did not return after Close")
	}
}

func TestInMemoryQueue_CloseDrainsBufferedTasks(t *testing.T) {
	q := NewInMemoryQueue(0)
	ctx := context.Background()

	if err := q.Enqueue(ctx, Task{ID: "1", WorkflowID: "wf-1"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := q.Enqueue(ctx, Task{ID: "2", WorkflowID: "wf-2"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	q.Close()
	q.Close() // idempotent

	if err := q.Enqueue(ctx, Task{ID: "3", WorkflowID: "wf-3"}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed on Enqueue after Close, got %v", err)
	}

	got1, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue 1 after Close failed: %v", err)
	}
	got2, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue 2 after Close failed: %v", err)
	}
	if got1.ID != "1" || got2.ID != "2" {
		t.Fatalf("unexpected drained tasks: %q, %q", got1.ID, got2.ID)
	}

	if _, err := q.Dequeue(ctx); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed once drained, got %v", err)
	}
}
