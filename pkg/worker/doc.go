// Package worker provides the background worker that drives resposta
// workflows from created to a terminal state.
//
// Workers consume workflow tasks from a task queue and hand each one to
// a Processor (the engine). They are lightweight and easy to embed:
// a worker is one goroutine calling Run, and multiple workers can
// safely consume the same queue, in one process or across processes.
//
// # Responsibilities
//
// A worker is responsible for:
//
//   - Pulling pending workflow tasks from the queue
//   - Holding back scheduled tasks on backends without native scheduling
//   - Redelivering tasks that hit infrastructure failures, with backoff
//   - Dropping tasks whose delivery budget is spent
//
// A worker is deliberately not responsible for workflow semantics.
// Concurrency control lives in the engine's per-workflow lease, and a
// workflow that fails is parked in the error state by the engine; its
// task completes normally and is never redelivered.
//
// # Integration
//
// Workers are decoupled from any particular backend. The queue side
// accepts any taskqueue.Queue (in-memory, SQLite, Redis), and the
// processing side accepts any Processor. Most applications construct
// workers through the resposta root package, which wires engines,
// queues, and workers together with sensible defaults.
package worker
