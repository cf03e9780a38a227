package resposta

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/petrijr/resposta/internal/knowledge"
	"github.com/petrijr/resposta/internal/taskqueue"
	"github.com/petrijr/resposta/pkg/api"
	"github.com/petrijr/resposta/pkg/worker"
)

// LocalRunner bundles an in-memory Engine, an in-memory task queue, and a
// Worker to provide a simple "local runner" for development and debugging.
//
// Typical usage:
//
//	runner := resposta.NewLocalRunner()
//	_ = runner.Knowledge.Add(ctx, docs)
//
//	_ = runner.StartWorkers(ctx, 2)
//	wf, _ := runner.Engine.CreateWorkflow(ctx, req)
//	wf, _ = runner.AwaitTerminal(ctx, wf.ID, 0)
//	...
//	runner.Stop()
type LocalRunner struct {
	// Engine is the workflow engine used by this runner.
	Engine Engine

	// Queue is the task queue the Worker consumes.
	Queue taskqueue.Queue

	// Worker processes tasks from Queue using Engine.
	Worker *worker.Worker

	// Knowledge is the write side of the runner's knowledge base, for
	// seeding documents before submitting workflows. Nil when a custom
	// source without a write side was configured on the builder.
	Knowledge KnowledgeWriter

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewLocalRunner constructs a LocalRunner backed by an in-memory engine,
// in-memory queue, and a Worker with default config.
//
// This is intended for local development, tests, and simple single-process
// deployments.
func NewLocalRunner() *LocalRunner {
	runner, err := NewBuilder().BuildLocalRunner()
	if err != nil {
		// The in-memory backend has no construction failure modes.
		panic(err)
	}
	return runner
}

// BuildLocalRunner assembles a LocalRunner from the builder's
// configuration, so a runner can carry custom collaborators:
//
//	runner, err := resposta.NewBuilder().
//	    WithKnowledge(source).
//	    WithObserver(metrics).
//	    BuildLocalRunner()
func (b *Builder) BuildLocalRunner() (*LocalRunner, error) {
	// Materialize the default source here so the runner keeps a handle
	// to its write side.
	if b.source == nil {
		b.source = knowledge.NewMemorySource()
	}
	if b.queue == nil {
		b.queue = taskqueue.NewInMemoryQueue(1024)
	}

	eng, err := b.build()
	if err != nil {
		return nil, err
	}

	r := &LocalRunner{
		Engine: eng,
		Queue:  b.queue,
		Worker: worker.New(eng, b.queue),
	}
	if w, ok := b.source.(api.KnowledgeWriter); ok {
		r.Knowledge = w
	}
	return r, nil
}

// StartWorkers starts 'concurrency' worker goroutines that consume the
// queue until the context is cancelled via Stop.
//
// If StartWorkers is called more than once without Stop, it returns an error.
func (r *LocalRunner) StartWorkers(ctx context.Context, concurrency int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return errors.New("resposta: LocalRunner already started")
	}

	if concurrency <= 0 {
		concurrency = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	r.wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer r.wg.Done()
			// Run exits nil on cancellation and queue close; processing
			// errors are logged inside and never stop the loop.
			_ = r.Worker.Run(ctx)
		}()
	}

	return nil
}

// Stop cancels all worker goroutines started by StartWorkers and waits
// for them to exit.
func (r *LocalRunner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// AwaitTerminal polls the workflow until it reaches ready or error, and
// returns the terminal snapshot. poll <= 0 uses a 10ms interval.
//
// Every snapshot observed along the way is a consistent persisted write,
// so callers that want progress can poll GetWorkflow themselves instead.
func (r *LocalRunner) AwaitTerminal(ctx context.Context, workflowID string, poll time.Duration) (*Workflow, error) {
	if poll <= 0 {
		poll = 10 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		wf, err := r.Engine.GetWorkflow(ctx, workflowID)
		if err != nil {
			return nil, err
		}
		if wf.State.Terminal() {
			return wf, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
