// Package engine implements the workflow engine: the state machine that
// drives a proposal workflow through its ordered stages with progressive,
// pollable persistence. Creation returns immediately; a worker picks the
// queued task up and calls ProcessWorkflow, which runs the pipeline's
// stages to ready or error.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/petrijr/resposta/internal/extract"
	"github.com/petrijr/resposta/internal/generate"
	"github.com/petrijr/resposta/internal/persistence"
	"github.com/petrijr/resposta/internal/review"
	"github.com/petrijr/resposta/internal/taskqueue"
	"github.com/petrijr/resposta/pkg/api"
)

// DefaultLeaseTTL bounds how long a crashed processor can block another
// worker from touching a workflow. The lease is renewed after every
// response append, so healthy processing never comes close to it.
const DefaultLeaseTTL = 30 * time.Second

// recoveredErrorDetail is written to workflows found mid-processing at
// startup.
const recoveredErrorDetail = "processing interrupted by restart; resubmit a fresh workflow"

// EngineImpl drives workflows through their pipeline stages. It
// implements api.Engine plus ProcessWorkflow, the entry point workers
// use.
type EngineImpl struct {
	store     persistence.WorkflowStore
	events    persistence.EventStore
	queue     taskqueue.Queue
	pipelines *pipelineRegistry

	extractor *extract.Extractor
	generator *generate.Generator
	reviewer  *review.Reviewer
	renderer  api.DocumentRenderer
	observer  api.Observer

	// owner identifies this engine instance for store leases.
	owner    string
	leaseTTL time.Duration
}

// Config describes how to construct an EngineImpl. Collaborators are
// required; the root package's builder assembles complete configurations
// with sensible defaults.
type Config struct {
	Persistence persistence.Persistence
	Queue       taskqueue.Queue

	Extractor *extract.Extractor
	Generator *generate.Generator
	Reviewer  *review.Reviewer
	Renderer  api.DocumentRenderer

	Observer api.Observer
	LeaseTTL time.Duration
}

var _ api.Engine = (*EngineImpl)(nil)

// New creates an engine. A nil Observer and a nil event store default to
// no-ops; a nil queue defaults to an in-memory queue for embedded setups
// that drive ProcessWorkflow directly.
func New(cfg Config) *EngineImpl {
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	events := cfg.Persistence.Events
	if events == nil {
		events = persistence.NoopEventStore{}
	}
	queue := cfg.Queue
	if queue == nil {
		queue = taskqueue.NewInMemoryQueue(0)
	}
	ttl := cfg.LeaseTTL
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}

	e := &EngineImpl{
		store:     cfg.Persistence.Workflows,
		events:    events,
		queue:     queue,
		pipelines: newPipelineRegistry(),
		extractor: cfg.Extractor,
		generator: cfg.Generator,
		reviewer:  cfg.Reviewer,
		renderer:  cfg.Renderer,
		observer:  obs,
		owner:     uuid.NewString(),
		leaseTTL:  ttl,
	}
	for _, p := range builtinPipelines() {
		if err := e.pipelines.register(p); err != nil {
			panic(err) // duplicate built-in pipeline name
		}
	}
	return e
}

func (e *EngineImpl) CreateWorkflow(ctx context.Context, req api.CreateWorkflowRequest) (*api.Workflow, error) {
	if strings.TrimSpace(req.ClientName) == "" {
		return nil, fmt.Errorf("%w: client name is required", api.ErrInvalidRequest)
	}

	pipelineName := api.PipelineQuickProposal
	if req.SourceDocumentText != nil {
		pipelineName = api.PipelineRFPResponse
	}

	now := time.Now()
	wf := &api.Workflow{
		ID:                  uuid.NewString(),
		Pipeline:            pipelineName,
		State:               api.StateCreated,
		ClientName:          req.ClientName,
		Industry:            req.Industry,
		RequirementsSummary: req.RequirementsSummary,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if req.SourceDocumentText != nil {
		s := *req.SourceDocumentText
		wf.SourceDocumentText = &s
	}

	if err := e.store.SaveWorkflow(ctx, wf); err != nil {
		return nil, fmt.Errorf("save workflow: %w", err)
	}

	e.appendEvent(ctx, api.WorkflowEvent{
		WorkflowID: wf.ID,
		Type:       api.EventWorkflowEnqueued,
		Pipeline:   wf.Pipeline,
		State:      wf.State,
	})
	e.observer.OnWorkflowCreated(ctx, wf)

	task := taskqueue.Task{ID: uuid.NewString(), WorkflowID: wf.ID}
	if err := e.queue.Enqueue(ctx, task); err != nil {
		// The record exists but will never be picked up; surface that as
		// a failed workflow rather than an orphan stuck in created.
		if ferr := e.failWorkflow(ctx, wf, api.StateCreated, fmt.Errorf("enqueue task: %w", err)); ferr != nil {
			return nil, ferr
		}
		return nil, fmt.Errorf("enqueue task: %w", err)
	}

	return wf.Clone(), nil
}

func (e *EngineImpl) GetWorkflow(ctx context.Context, id string) (*api.Workflow, error) {
	return e.store.GetWorkflow(ctx, id)
}

func (e *EngineImpl) ListWorkflows(ctx context.Context, opts api.WorkflowListOptions) ([]*api.Workflow, error) {
	return e.store.ListWorkflows(ctx, persistence.WorkflowFilter{
		State:    opts.State,
		Pipeline: opts.Pipeline,
	})
}

func (e *EngineImpl) GetArtifact(ctx context.Context, id string) ([]byte, error) {
	wf, err := e.store.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	if wf.State != api.StateReady {
		return nil, api.ErrArtifactNotReady
	}
	return e.renderer.ReadArtifact(ctx, wf.OutputArtifactPath)
}

func (e *EngineImpl) ListEvents(ctx context.Context, id string) ([]api.WorkflowEvent, error) {
	if _, err := e.store.GetWorkflow(ctx, id); err != nil {
		return nil, err
	}
	return e.events.ListEvents(ctx, id)
}

// RecoverStuckWorkflows moves every workflow found between analyzing and
// formatting to error. Run it on startup before workers begin; workflows
// in created keep their durable queue task and are left alone.
func (e *EngineImpl) RecoverStuckWorkflows(ctx context.Context) (int, error) {
	processing := []api.State{
		api.StateAnalyzing,
		api.StateRouting,
		api.StateGenerating,
		api.StateReviewing,
		api.StateFormatting,
	}

	recovered := 0
	for _, st := range processing {
		wfs, err := e.store.ListWorkflows(ctx, persistence.WorkflowFilter{State: st})
		if err != nil {
			return recovered, fmt.Errorf("list %s workflows: %w", st, err)
		}
		for _, wf := range wfs {
			wf.State = api.StateError
			wf.ErrorDetail = recoveredErrorDetail
			wf.UpdatedAt = time.Now()
			if err := e.store.UpdateWorkflow(ctx, wf); err != nil {
				return recovered, fmt.Errorf("recover workflow %s: %w", wf.ID, err)
			}
			recovered++
			e.appendEvent(ctx, api.WorkflowEvent{
				WorkflowID: wf.ID,
				Type:       api.EventWorkflowRecovered,
				Pipeline:   wf.Pipeline,
				State:      api.StateError,
				Detail:     recoveredErrorDetail,
			})
		}
	}
	return recovered, nil
}

// ProcessWorkflow drives one workflow from created to a terminal state.
//
// It acquires the store lease first and skips silently if another
// processor holds it, or if the workflow is no longer in created (a
// re-delivered task for a finished workflow is a no-op). Workflow-level
// failures are handled by moving the workflow to error and return nil;
// only infrastructure failures (persistence down) return an error, so
// the worker's retry applies exactly to the retryable case.
func (e *EngineImpl) ProcessWorkflow(ctx context.Context, id string) error {
	acquired, err := e.store.TryAcquireLease(ctx, id, e.owner, e.leaseTTL)
	if err != nil {
		return fmt.Errorf("acquire lease: %w", err)
	}
	if !acquired {
		return nil
	}
	defer func() {
		_ = e.store.ReleaseLease(context.WithoutCancel(ctx), id, e.owner)
	}()

	wf, err := e.store.GetWorkflow(ctx, id)
	if err != nil {
		return fmt.Errorf("load workflow: %w", err)
	}
	if wf.State != api.StateCreated {
		return nil
	}

	pl, err := e.pipelines.get(wf.Pipeline)
	if err != nil {
		return e.failWorkflow(ctx, wf, wf.State, err)
	}

	start := time.Now()
	e.appendEvent(ctx, api.WorkflowEvent{
		WorkflowID: wf.ID,
		Type:       api.EventWorkflowStarted,
		Pipeline:   wf.Pipeline,
		State:      wf.State,
	})

	for next := wf.State.Next(); next != "" && next != api.StateReady; next = wf.State.Next() {
		if err := ctx.Err(); err != nil {
			return e.failWorkflow(ctx, wf, wf.State, err)
		}

		// Persist the transition before the stage body runs, so pollers
		// see the stage label as soon as the stage is active.
		if err := e.transition(ctx, wf, next); err != nil {
			return fmt.Errorf("persist transition to %s: %w", next, err)
		}
		e.observer.OnStageStart(ctx, wf, next)

		stageStart := time.Now()
		var stageErr error
		if stage := pl.stages[next]; stage != nil {
			stageErr = stage(ctx, e, wf)
		}
		e.observer.OnStageCompleted(ctx, wf, next, stageErr, time.Since(stageStart))

		if stageErr != nil {
			return e.failWorkflow(ctx, wf, next, stageErr)
		}

		// Persist the stage's output under the same state before moving
		// on; a crash here leaves a consistent snapshot.
		if err := e.persistSnapshot(ctx, wf); err != nil {
			return fmt.Errorf("persist %s output: %w", next, err)
		}
	}

	completedAt := time.Now()
	wf.CompletedAt = &completedAt
	if err := e.transition(ctx, wf, api.StateReady); err != nil {
		return fmt.Errorf("persist transition to ready: %w", err)
	}

	e.appendEvent(ctx, api.WorkflowEvent{
		WorkflowID: wf.ID,
		Type:       api.EventWorkflowCompleted,
		Pipeline:   wf.Pipeline,
		State:      api.StateReady,
	})
	e.observer.OnWorkflowCompleted(ctx, wf, time.Since(start))
	return nil
}

// transition persists the move into st together with all data produced so
// far, as one full-snapshot write.
func (e *EngineImpl) transition(ctx context.Context, wf *api.Workflow, st api.State) error {
	wf.State = st
	wf.UpdatedAt = time.Now()
	if err := e.store.UpdateWorkflow(ctx, wf); err != nil {
		return err
	}
	e.appendEvent(ctx, api.WorkflowEvent{
		WorkflowID: wf.ID,
		Type:       api.EventStateEntered,
		Pipeline:   wf.Pipeline,
		State:      st,
	})
	return nil
}

func (e *EngineImpl) persistSnapshot(ctx context.Context, wf *api.Workflow) error {
	wf.UpdatedAt = time.Now()
	return e.store.UpdateWorkflow(ctx, wf)
}

// failWorkflow writes the terminal error snapshot. The write runs even
// when ctx is already cancelled; cancellation is a workflow failure, not
// an excuse to leave the record mid-state.
func (e *EngineImpl) failWorkflow(ctx context.Context, wf *api.Workflow, stage api.State, cause error) error {
	persistCtx := context.WithoutCancel(ctx)

	wf.State = api.StateError
	wf.ErrorDetail = cause.Error()
	wf.UpdatedAt = time.Now()
	if err := e.store.UpdateWorkflow(persistCtx, wf); err != nil {
		return fmt.Errorf("persist error state: %w", err)
	}

	e.appendEvent(persistCtx, api.WorkflowEvent{
		WorkflowID: wf.ID,
		Type:       api.EventWorkflowFailed,
		Pipeline:   wf.Pipeline,
		State:      api.StateError,
		Detail:     wf.ErrorDetail,
	})
	e.observer.OnWorkflowFailed(ctx, wf, stage, cause)
	return nil
}

// appendEvent is best-effort: history must never block or fail workflow
// processing.
func (e *EngineImpl) appendEvent(ctx context.Context, ev api.WorkflowEvent) {
	ev.At = time.Now()
	_ = e.events.AppendEvent(ctx, ev)
}
