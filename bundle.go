package resposta

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/petrijr/resposta/internal/taskqueue"
	workerpkg "github.com/petrijr/resposta/pkg/worker"
)

// WorkerBundle wires together an Engine, a durable task queue, and a
// Worker that consumes tasks from that queue.
type WorkerBundle struct {
	Engine Engine
	Worker *workerpkg.Worker

	// queue is kept unexported for now; it is primarily useful for internal
	// inspection and tests. The public API focuses on Engine and Worker.
	queue taskqueue.Queue

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewSQLiteBundle constructs a durable Engine + Queue + Worker combo
// sharing the same SQLite database. Workflows, their transition history,
// and queued tasks all survive a restart of the process.
//
// Typical usage:
//
//	db, _ := sql.Open("sqlite", "file:resposta.db?_journal=WAL")
//	bundle, err := resposta.NewSQLiteBundle(db, worker.Config{MaxAttempts: 3})
//	// submit workflows via bundle.Engine.CreateWorkflow
//	// drive processing via bundle.Worker.Run or ProcessOne
func NewSQLiteBundle(db *sql.DB, cfg workerpkg.Config) (*WorkerBundle, error) {
	return NewBuilder().WithSQLite(db).BuildBundle(cfg)
}

// BuildBundle assembles a WorkerBundle from the builder's configuration.
// The backend must provide a durable queue (SQLite or Redis) unless one
// was set explicitly with WithQueue.
func (b *Builder) BuildBundle(cfg workerpkg.Config) (*WorkerBundle, error) {
	q, err := b.buildQueue()
	if err != nil {
		return nil, err
	}
	b.queue = q

	eng, err := b.build()
	if err != nil {
		return nil, err
	}

	return &WorkerBundle{
		Engine: eng,
		Worker: workerpkg.NewWithConfig(eng, q, cfg),
		queue:  q,
	}, nil
}

// StartWorkers starts 'concurrency' goroutines that consume the durable
// queue until Stop is called. Same contract as LocalRunner.StartWorkers.
func (b *WorkerBundle) StartWorkers(ctx context.Context, concurrency int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return errors.New("resposta: WorkerBundle already started")
	}

	if concurrency <= 0 {
		concurrency = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.running = true

	b.wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer b.wg.Done()
			_ = b.Worker.Run(ctx)
		}()
	}

	return nil
}

// Stop cancels all worker goroutines started by StartWorkers and waits
// for them to exit. Tasks in flight are re-enqueued by the worker, and
// the durable queue keeps them for the next start.
func (b *WorkerBundle) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	cancel := b.cancel
	b.running = false
	b.cancel = nil
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	b.wg.Wait()
}
