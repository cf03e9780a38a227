package resposta

import (
	"context"
	"database/sql"

	"github.com/petrijr/resposta/pkg/api"
	"github.com/redis/go-redis/v9"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Engine                = api.Engine
	Workflow              = api.Workflow
	CreateWorkflowRequest = api.CreateWorkflowRequest
	WorkflowListOptions   = api.WorkflowListOptions
	State                 = api.State
	Quality               = api.Quality
	RFPAnalysis           = api.RFPAnalysis
	ResponseRecord        = api.ResponseRecord
	SourcePassage         = api.SourcePassage
	ReviewResult          = api.ReviewResult
	WorkflowEvent         = api.WorkflowEvent
	RetryPolicy           = api.RetryPolicy

	KnowledgeSource   = api.KnowledgeSource
	KnowledgeWriter   = api.KnowledgeWriter
	KnowledgeDocument = api.KnowledgeDocument
	Answer            = api.Answer
	AnswerGenerator   = api.AnswerGenerator
	DocumentRenderer  = api.DocumentRenderer

	Observer             = api.Observer
	NoopObserver         = api.NoopObserver
	CompositeObserver    = api.CompositeObserver
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
)

// Re-export common observer helpers.

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
)

// Re-export the accessor sentinels for errors.Is checks.

var (
	ErrWorkflowNotFound = api.ErrWorkflowNotFound
	ErrArtifactNotReady = api.ErrArtifactNotReady
	ErrInvalidRequest   = api.ErrInvalidRequest
)

// Re-export workflow states for convenience.

const (
	StateCreated    = api.StateCreated
	StateAnalyzing  = api.StateAnalyzing
	StateRouting    = api.StateRouting
	StateGenerating = api.StateGenerating
	StateReviewing  = api.StateReviewing
	StateFormatting = api.StateFormatting
	StateReady      = api.StateReady
	StateError      = api.StateError
)

// Re-export the built-in pipeline names and review verdicts.

const (
	PipelineRFPResponse   = api.PipelineRFPResponse
	PipelineQuickProposal = api.PipelineQuickProposal

	QualityHigh   = api.QualityHigh
	QualityMedium = api.QualityMedium
	QualityLow    = api.QualityLow
)

// Engine constructors
// These wrap the builder so external callers never need to import
// internal packages. Each returns an Engine with the deterministic
// default collaborators (in-memory knowledge base, extractive answerer,
// markdown renderer); use NewBuilder to swap any of them.

// NewInMemoryEngine returns an Engine backed entirely by in-memory
// stores. Nothing survives the process; rendered artifacts live on an
// in-memory filesystem. Best for development and tests.
func NewInMemoryEngine() Engine {
	eng, _ := NewBuilder().Build()
	return eng
}

// NewInMemoryEngineWithObserver returns an in-memory Engine with the given Observer.
func NewInMemoryEngineWithObserver(obs Observer) Engine {
	eng, _ := NewBuilder().WithObserver(obs).Build()
	return eng
}

// NewSQLiteEngine returns an Engine that persists workflows and their
// transition history in a SQLite database. The task queue stays
// in-memory; use NewSQLiteBundle when queued work must also survive a
// restart.
func NewSQLiteEngine(db *sql.DB) (Engine, error) {
	return NewBuilder().WithSQLite(db).Build()
}

// NewSQLiteEngineWithObserver returns a SQLite-backed Engine with the given Observer.
func NewSQLiteEngineWithObserver(db *sql.DB, obs Observer) (Engine, error) {
	return NewBuilder().WithSQLite(db).WithObserver(obs).Build()
}

// NewPostgresEngine returns an Engine that persists workflows in
// PostgreSQL. Transition history is kept in-memory.
func NewPostgresEngine(db *sql.DB) (Engine, error) {
	return NewBuilder().WithPostgres(db).Build()
}

// NewPostgresEngineWithObserver returns a Postgres-backed Engine with the given Observer.
func NewPostgresEngineWithObserver(db *sql.DB, obs Observer) (Engine, error) {
	return NewBuilder().WithPostgres(db).WithObserver(obs).Build()
}

// NewRedisEngine returns an Engine that persists workflows in Redis.
// Transition history is kept in-memory.
func NewRedisEngine(client *redis.Client) Engine {
	eng, _ := NewBuilder().WithRedis(client).Build()
	return eng
}

// NewRedisEngineWithObserver returns a Redis-backed Engine with the given Observer.
func NewRedisEngineWithObserver(client *redis.Client, obs Observer) Engine {
	eng, _ := NewBuilder().WithRedis(client).WithObserver(obs).Build()
	return eng
}

// Convenience helpers that just forward to the underlying Engine.

// CreateWorkflow submits a new workflow. It returns immediately with the
// workflow in the created state; a worker picks the queued task up.
func CreateWorkflow(ctx context.Context, eng Engine, req CreateWorkflowRequest) (*Workflow, error) {
	return eng.CreateWorkflow(ctx, req)
}

// GetWorkflow fetches the latest persisted snapshot of a workflow.
func GetWorkflow(ctx context.Context, eng Engine, id string) (*Workflow, error) {
	return eng.GetWorkflow(ctx, id)
}

// ListWorkflows lists workflows according to the given options.
func ListWorkflows(ctx context.Context, eng Engine, opts WorkflowListOptions) ([]*Workflow, error) {
	return eng.ListWorkflows(ctx, opts)
}

// GetArtifact returns the rendered document bytes of a ready workflow.
func GetArtifact(ctx context.Context, eng Engine, id string) ([]byte, error) {
	return eng.GetArtifact(ctx, id)
}

// ListEvents returns a workflow's transition history.
func ListEvents(ctx context.Context, eng Engine, id string) ([]WorkflowEvent, error) {
	return eng.ListEvents(ctx, id)
}

// RecoverStuckWorkflows delegates to eng.RecoverStuckWorkflows.
//
// It is typically called on process startup before starting any workers:
//
//	count, err := resposta.RecoverStuckWorkflows(ctx, engine)
func RecoverStuckWorkflows(ctx context.Context, eng Engine) (int, error) {
	return eng.RecoverStuckWorkflows(ctx)
}
