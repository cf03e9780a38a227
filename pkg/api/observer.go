package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Observer receives callbacks from the workflow engine for logging and metrics.
//
// Implementations should be fast and non-blocking; heavy work should be done
// asynchronously so as not to delay workflow processing.
type Observer interface {
	// OnWorkflowCreated is called once when a workflow record is created,
	// after the created state has been persisted.
	OnWorkflowCreated(ctx context.Context, wf *Workflow)

	// OnStageStart is called after the transition into stage has been
	// persisted, before the stage body runs.
	OnStageStart(ctx context.Context, wf *Workflow, stage State)

	// OnStageCompleted is called after a stage body returns, for both
	// successes and failures (err != nil).
	OnStageCompleted(ctx context.Context, wf *Workflow, stage State, err error, duration time.Duration)

	// OnResponseAppended is called after each response record has been
	// appended and persisted. index is the 0-based position in
	// Workflow.Responses.
	OnResponseAppended(ctx context.Context, wf *Workflow, rec ResponseRecord, index int)

	// OnWorkflowCompleted is called when a workflow reaches ready.
	OnWorkflowCompleted(ctx context.Context, wf *Workflow, duration time.Duration)

	// OnWorkflowFailed is called when a workflow transitions to error.
	OnWorkflowFailed(ctx context.Context, wf *Workflow, stage State, err error)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnWorkflowCreated(ctx context.Context, wf *Workflow)           {}
func (NoopObserver) OnStageStart(ctx context.Context, wf *Workflow, stage State)   {}
func (NoopObserver) OnStageCompleted(ctx context.Context, wf *Workflow, stage State, err error, d time.Duration) {
}
func (NoopObserver) OnResponseAppended(ctx context.Context, wf *Workflow, rec ResponseRecord, index int) {
}
func (NoopObserver) OnWorkflowCompleted(ctx context.Context, wf *Workflow, d time.Duration) {}
func (NoopObserver) OnWorkflowFailed(ctx context.Context, wf *Workflow, stage State, err error) {
}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnWorkflowCreated(ctx context.Context, wf *Workflow) {
	for _, o := range c.observers {
		o.OnWorkflowCreated(ctx, wf)
	}
}

func (c *CompositeObserver) OnStageStart(ctx context.Context, wf *Workflow, stage State) {
	for _, o := range c.observers {
		o.OnStageStart(ctx, wf, stage)
	}
}

func (c *CompositeObserver) OnStageCompleted(ctx context.Context, wf *Workflow, stage State, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnStageCompleted(ctx, wf, stage, err, d)
	}
}

func (c *CompositeObserver) OnResponseAppended(ctx context.Context, wf *Workflow, rec ResponseRecord, index int) {
	for _, o := range c.observers {
		o.OnResponseAppended(ctx, wf, rec, index)
	}
}

func (c *CompositeObserver) OnWorkflowCompleted(ctx context.Context, wf *Workflow, d time.Duration) {
	for _, o := range c.observers {
		o.OnWorkflowCompleted(ctx, wf, d)
	}
}

func (c *CompositeObserver) OnWorkflowFailed(ctx context.Context, wf *Workflow, stage State, err error) {
	for _, o := range c.observers {
		o.OnWorkflowFailed(ctx, wf, stage, err)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs workflow / stage
// lifecycle events using the provided slog.Logger. If logger is nil,
// slog.Default() is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnWorkflowCreated(ctx context.Context, wf *Workflow) {
	o.Logger.InfoContext(ctx, "workflow_created",
		slog.String("workflow_id", wf.ID),
		slog.String("pipeline", wf.Pipeline),
		slog.String("client", wf.ClientName),
	)
}

func (o *LoggingObserver) OnStageStart(ctx context.Context, wf *Workflow, stage State) {
	o.Logger.DebugContext(ctx, "stage_start",
		slog.String("workflow_id", wf.ID),
		slog.String("stage", string(stage)),
	)
}

func (o *LoggingObserver) OnStageCompleted(ctx context.Context, wf *Workflow, stage State, err error, d time.Duration) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "stage_completed",
		slog.String("workflow_id", wf.ID),
		slog.String("stage", string(stage)),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnResponseAppended(ctx context.Context, wf *Workflow, rec ResponseRecord, index int) {
	o.Logger.DebugContext(ctx, "response_appended",
		slog.String("workflow_id", wf.ID),
		slog.Int("index", index),
		slog.Float64("confidence", rec.Confidence),
		slog.Bool("degraded", rec.Degraded),
	)
}

func (o *LoggingObserver) OnWorkflowCompleted(ctx context.Context, wf *Workflow, d time.Duration) {
	o.Logger.InfoContext(ctx, "workflow_completed",
		slog.String("workflow_id", wf.ID),
		slog.String("pipeline", wf.Pipeline),
		slog.Int("responses", len(wf.Responses)),
		slog.Duration("duration", d),
	)
}

func (o *LoggingObserver) OnWorkflowFailed(ctx context.Context, wf *Workflow, stage State, err error) {
	o.Logger.ErrorContext(ctx, "workflow_failed",
		slog.String("workflow_id", wf.ID),
		slog.String("stage", string(stage)),
		slog.Any("error", err),
	)
}

// BasicMetrics collects simple counters and aggregate stage durations.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	workflowsCreated   atomic.Int64
	workflowsCompleted atomic.Int64
	workflowsFailed    atomic.Int64
	responsesAppended  atomic.Int64
	responsesDegraded  atomic.Int64
	stagesCompleted    atomic.Int64
	totalStageDuration atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	WorkflowsCreated   int64         `json:"workflows_created"`
	WorkflowsCompleted int64         `json:"workflows_completed"`
	WorkflowsFailed    int64         `json:"workflows_failed"`
	WorkflowsInFlight  int64         `json:"workflows_in_flight"`
	ResponsesAppended  int64         `json:"responses_appended"`
	ResponsesDegraded  int64         `json:"responses_degraded"`
	StagesCompleted    int64         `json:"stages_completed"`
	AvgStageDuration   time.Duration `json:"avg_stage_duration_ns"`
}

func (m *BasicMetrics) OnWorkflowCreated(ctx context.Context, wf *Workflow) {
	m.workflowsCreated.Add(1)
}

func (m *BasicMetrics) OnWorkflowCompleted(ctx context.Context, wf *Workflow, d time.Duration) {
	m.workflowsCompleted.Add(1)
}

func (m *BasicMetrics) OnWorkflowFailed(ctx context.Context, wf *Workflow, stage State, err error) {
	m.workflowsFailed.Add(1)
}

func (m *BasicMetrics) OnResponseAppended(ctx context.Context, wf *Workflow, rec ResponseRecord, index int) {
	m.responsesAppended.Add(1)
	if rec.Degraded {
		m.responsesDegraded.Add(1)
	}
}

func (m *BasicMetrics) OnStageCompleted(ctx context.Context, wf *Workflow, stage State, err error, d time.Duration) {
	// Only count successful stages for average duration.
	if err == nil {
		m.stagesCompleted.Add(1)
		m.totalStageDuration.Add(d.Nanoseconds())
	}
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	created := m.workflowsCreated.Load()
	completed := m.workflowsCompleted.Load()
	failed := m.workflowsFailed.Load()
	stages := m.stagesCompleted.Load()
	totalNs := m.totalStageDuration.Load()

	var avg time.Duration
	if stages > 0 {
		avg = time.Duration(totalNs / stages)
	}

	return BasicMetricsSnapshot{
		WorkflowsCreated:   created,
		WorkflowsCompleted: completed,
		WorkflowsFailed:    failed,
		WorkflowsInFlight:  created - completed - failed,
		ResponsesAppended:  m.responsesAppended.Load(),
		ResponsesDegraded:  m.responsesDegraded.Load(),
		StagesCompleted:    stages,
		AvgStageDuration:   avg,
	}
}
