package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/petrijr/resposta/internal/taskqueue"
)

func TestWorker_RetriesInfrastructureFailureWithBackoff(t *testing.T) {
	proc := &fakeProcessor{failures: 1, err: errors.New("store unavailable")}
	q := taskqueue.NewInMemoryQueue(8)
	t.Cleanup(q.Close)

	backoff := 30 * time.Millisecond
	w := NewWithConfig(proc, q, Config{MaxAttempts: 3, Backoff: backoff, WorkerID: "w1"})

	ctx := context.Background()
	if err := q.Enqueue(ctx, taskqueue.Task{ID: "t1", WorkflowID: "wf-1"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	start := time.Now()

	processed, err := w.ProcessOne(ctx)
	if !processed {
		t.Fatalf("expected the first delivery to be processed")
	}
	if err == nil {
		t.Fatalf("expected the processing error to surface from the first delivery")
	}
	if got := proc.callCount(); got != 1 {
		t.Fatalf("expected 1 call after first delivery, got %d", got)
	}

	// The redelivery is scheduled Backoff in the future; the worker
	// holds it until due and then succeeds.
	processed, err = w.ProcessOne(ctx)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("retry delivery failed: %v", err)
	}
	if !processed {
		t.Fatalf("expected the retry delivery to be processed")
	}
	if got := proc.callCount(); got != 2 {
		t.Fatalf("expected 2 calls after retry, got %d", got)
	}
	if elapsed < backoff/2 {
		t.Fatalf("retry ran after %v, expected roughly %v of backoff", elapsed, backoff)
	}
	if n := q.Len(); n != 0 {
		t.Fatalf("expected an empty queue after the retry succeeded, len=%d", n)
	}
}

func TestWorker_DropsTaskAfterMaxAttempts(t *testing.T) {
	boom := errors.New("store down")
	proc := &fakeProcessor{failures: 100, err: boom}
	q := taskqueue.NewInMemoryQueue(8)
	t.Cleanup(q.Close)

	w := NewWithConfig(proc, q, Config{MaxAttempts: 2, Backoff: time.Millisecond, WorkerID: "w1"})
	ctx := context.Background()

	if err := q.Enqueue(ctx, taskqueue.Task{ID: "t1", WorkflowID: "wf-1"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	// First delivery fails and goes back on the queue.
	processed, err := w.ProcessOne(ctx)
	if !processed || !errors.Is(err, boom) {
		t.Fatalf("first delivery: processed=%v err=%v", processed, err)
	}
	if n := q.Len(); n != 1 {
		t.Fatalf("expected the task back on the queue, len=%d", n)
	}

	// Second delivery exhausts the budget and the task is dropped.
	processed, err = w.ProcessOne(ctx)
	if !processed || !errors.Is(err, boom) {
		t.Fatalf("second delivery: processed=%v err=%v", processed, err)
	}
	if n := q.Len(); n != 0 {
		t.Fatalf("expected the task dropped after max attempts, len=%d", n)
	}
	if got := proc.callCount(); got != 2 {
		t.Fatalf("expected exactly %d calls, got %d", 2, got)
	}
}

func TestWorker_HoldsBackScheduledTask(t *testing.T) {
	proc := &fakeProcessor{}
	q := taskqueue.NewInMemoryQueue(8)
	t.Cleanup(q.Close)

	w := New(proc, q)
	ctx := context.Background()

	delay := 40 * time.Millisecond
	task := taskqueue.Task{ID: "t1", WorkflowID: "wf-1", NotBefore: time.Now().Add(delay)}
	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	start := time.Now()
	processed, err := w.ProcessOne(ctx)
	if err != nil {
		t.Fatalf("ProcessOne failed: %v", err)
	}
	if !processed {
		t.Fatalf("expected the scheduled task to be processed once due")
	}
	if elapsed := time.Since(start); elapsed < delay/2 {
		t.Fatalf("task ran after %v, expected it held roughly %v", elapsed, delay)
	}
}

func TestWorker_ShutdownWhileHoldingScheduledTaskKeepsIt(t *testing.T) {
	proc := &fakeProcessor{}
	q := taskqueue.NewInMemoryQueue(8)
	t.Cleanup(q.Close)

	w := New(proc, q)

	task := taskqueue.Task{ID: "t1", WorkflowID: "wf-1", NotBefore: time.Now().Add(time.Minute)}
	if err := q.Enqueue(context.Background(), task); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	processed, err := w.ProcessOne(ctx)
	if processed {
		t.Fatalf("an undue task must not be processed")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}

	// The undue task went back on the queue instead of being lost.
	if n := q.Len(); n != 1 {
		t.Fatalf("expected the task preserved across shutdown, len=%d", n)
	}
	if got := proc.callCount(); got != 0 {
		t.Fatalf("processor should not have been called, got %d calls", got)
	}
}
