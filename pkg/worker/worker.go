package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/petrijr/resposta/internal/taskqueue"
)

// Processor runs one workflow to a terminal state. The engine implements
// it; the worker needs nothing else from the engine surface.
type Processor interface {
	ProcessWorkflow(ctx context.Context, workflowID string) error
}

// Defaults applied by NewWithConfig for zero Config fields.
const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 5 * time.Second
)

// Config controls how a worker handles failed deliveries.
//
// Only infrastructure failures reach the retry budget: a workflow that
// fails is parked in error by the engine and its task completes
// normally. MaxAttempts therefore bounds redeliveries while the store
// is unreachable, not how often a bad workflow re-runs.
type Config struct {
	// MaxAttempts is the total number of deliveries a task gets before
	// the worker drops it.
	MaxAttempts int

	// Backoff is the delay before a failed task becomes due again.
	Backoff time.Duration

	// WorkerID labels this worker in logs.
	WorkerID string
}

// Worker pulls workflow tasks from a queue and hands them to a
// Processor. Multiple workers can safely consume the same queue; the
// engine's per-workflow lease keeps them from colliding.
type Worker struct {
	processor Processor
	queue     taskqueue.Queue
	cfg       Config
}

// New creates a Worker with default Config.
func New(p Processor, q taskqueue.Queue) *Worker {
	return NewWithConfig(p, q, Config{})
}

// NewWithConfig creates a Worker, filling zero Config fields with
// defaults.
func NewWithConfig(p Processor, q taskqueue.Queue, cfg Config) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.WorkerID == "" {
		cfg.WorkerID = uuid.NewString()
	}
	return &Worker{processor: p, queue: q, cfg: cfg}
}

// ProcessOne pulls a single task from the queue and processes it.
// Returns (processed, error):
//   - processed == false, err == nil: the queue produced nothing.
//   - processed == false, err != nil: nothing ran; ctx was cancelled or
//     the queue failed.
//   - processed == true: a task ran; err is the processing outcome after
//     retry bookkeeping.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	task, err := w.queue.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}

	// Backends without native scheduling deliver scheduled tasks
	// immediately; hold them here until due.
	if wait := time.Until(task.NotBefore); wait > 0 {
		select {
		case <-ctx.Done():
			// Hand the task back so it survives the shutdown.
			if err := w.queue.Enqueue(context.WithoutCancel(ctx), *task); err != nil {
				log.Printf("worker %s: re-enqueue task %s on shutdown: %v", w.cfg.WorkerID, task.ID, err)
			}
			return false, ctx.Err()
		case <-time.After(wait):
		}
	}

	if err := w.processor.ProcessWorkflow(ctx, task.WorkflowID); err != nil {
		return true, w.retry(ctx, *task, err)
	}
	return true, nil
}

// retry re-enqueues a failed task with backoff, or drops it once its
// delivery budget is spent. The processing error is returned either way.
func (w *Worker) retry(ctx context.Context, task taskqueue.Task, cause error) error {
	attempts := task.Attempts + 1
	if attempts >= w.cfg.MaxAttempts {
		log.Printf("worker %s: dropping task %s (workflow %s) after %d attempts: %v",
			w.cfg.WorkerID, task.ID, task.WorkflowID, attempts, cause)
		return cause
	}

	task.Attempts = attempts
	task.NotBefore = time.Now().Add(w.cfg.Backoff)
	if err := w.queue.Enqueue(ctx, task); err != nil {
		log.Printf("worker %s: re-enqueue task %s (workflow %s) failed: %v",
			w.cfg.WorkerID, task.ID, task.WorkflowID, err)
	}
	return cause
}

// Run processes tasks until ctx is cancelled or the queue closes; both
// return nil. Processing errors never stop the loop: they are logged,
// and the task's retry budget decides whether the work is redelivered.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if _, err := w.ProcessOne(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			if errors.Is(err, taskqueue.ErrQueueClosed) {
				return nil
			}
			log.Printf("worker %s: %v", w.cfg.WorkerID, err)
		}
	}
}
