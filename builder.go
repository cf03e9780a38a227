package resposta

import (
	"database/sql"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"

	"github.com/petrijr/resposta/internal/engine"
	"github.com/petrijr/resposta/internal/extract"
	"github.com/petrijr/resposta/internal/generate"
	"github.com/petrijr/resposta/internal/knowledge"
	"github.com/petrijr/resposta/internal/llm"
	"github.com/petrijr/resposta/internal/persistence"
	"github.com/petrijr/resposta/internal/render"
	"github.com/petrijr/resposta/internal/review"
	"github.com/petrijr/resposta/internal/taskqueue"
	"github.com/petrijr/resposta/pkg/api"
)

type backend int

const (
	backendMemory backend = iota
	backendSQLite
	backendPostgres
	backendRedis
)

// Builder provides a fluent API for assembling an engine:
//
//	eng, err := resposta.NewBuilder().
//	    WithSQLite(db).
//	    WithKnowledge(source).
//	    WithObserver(resposta.NewLoggingObserver(logger)).
//	    WithRetry(resposta.Retry(3).Backoff(200*time.Millisecond).CappedAt(2*time.Second).Policy()).
//	    Build()
//
// Every collaborator has a deterministic default: workflows live in
// memory, retrieval runs against an empty in-memory knowledge base, and
// answers are composed extractively from the retrieved passages. A
// zero-configuration Build therefore works end to end without any
// external service.
type Builder struct {
	backend backend
	db      *sql.DB
	redis   *redis.Client
	queue   taskqueue.Queue

	source   api.KnowledgeSource
	answerer api.AnswerGenerator
	model    llm.Client
	observer api.Observer

	retry    api.RetryPolicy
	topK     int
	cacheTTL time.Duration
	leaseTTL time.Duration

	fs        afero.Fs
	artifacts string
}

// NewBuilder creates a Builder with in-memory defaults.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithSQLite persists workflows, transition history, and (for bundles)
// queued tasks in the given SQLite database.
func (b *Builder) WithSQLite(db *sql.DB) *Builder {
	b.backend = backendSQLite
	b.db = db
	return b
}

// WithPostgres persists workflows in the given PostgreSQL database.
// Transition history stays in memory.
func (b *Builder) WithPostgres(db *sql.DB) *Builder {
	b.backend = backendPostgres
	b.db = db
	return b
}

// WithRedis persists workflows in Redis under the default key prefix.
// Transition history stays in memory.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.backend = backendRedis
	b.redis = client
	return b
}

// WithQueue replaces the task queue. Without it the backend's native
// queue is used where one exists (SQLite, Redis) and an in-memory queue
// otherwise.
func (b *Builder) WithQueue(q taskqueue.Queue) *Builder {
	b.queue = q
	return b
}

// WithKnowledge replaces the knowledge source questions are answered
// from. The default is an empty in-memory source; every response then
// carries the floor confidence until documents are added.
func (b *Builder) WithKnowledge(source KnowledgeSource) *Builder {
	b.source = source
	return b
}

// WithAnswerer replaces the answer generator. It wins over WithAnthropic
// and WithOpenAI for answering.
func (b *Builder) WithAnswerer(a AnswerGenerator) *Builder {
	b.answerer = a
	return b
}

// WithAnthropic backs question extraction and answer generation with the
// Anthropic API.
func (b *Builder) WithAnthropic(apiKey, model string) *Builder {
	b.model = llm.NewAnthropicClient(apiKey, model)
	return b
}

// WithOpenAI backs question extraction and answer generation with the
// OpenAI API.
func (b *Builder) WithOpenAI(apiKey, model string) *Builder {
	b.model = llm.NewOpenAIClient(apiKey, model)
	return b
}

// WithObserver attaches an Observer to the engine lifecycle. Combine
// several with NewCompositeObserver.
func (b *Builder) WithObserver(obs Observer) *Builder {
	b.observer = obs
	return b
}

// WithRetry applies a retry policy to answer-generation calls before a
// question degrades to the placeholder record. The default is a single
// attempt.
func (b *Builder) WithRetry(p RetryPolicy) *Builder {
	b.retry = p
	return b
}

// WithTopK sets how many passages are retrieved per question.
func (b *Builder) WithTopK(k int) *Builder {
	b.topK = k
	return b
}

// WithLeaseTTL overrides the processing lease duration.
func (b *Builder) WithLeaseTTL(ttl time.Duration) *Builder {
	b.leaseTTL = ttl
	return b
}

// WithExtractionCacheTTL overrides how long extraction results are
// cached per document hash.
func (b *Builder) WithExtractionCacheTTL(ttl time.Duration) *Builder {
	b.cacheTTL = ttl
	return b
}

// WithArtifacts sets the filesystem and directory rendered documents are
// written to. The default is an in-memory filesystem for the in-memory
// backend and ./artifacts on the OS filesystem otherwise.
func (b *Builder) WithArtifacts(fs afero.Fs, dir string) *Builder {
	b.fs = fs
	b.artifacts = dir
	return b
}

// Build assembles the engine.
func (b *Builder) Build() (Engine, error) {
	return b.build()
}

// build returns the concrete engine so bundles and runners can hand it
// to a worker as its Processor.
func (b *Builder) build() (*engine.EngineImpl, error) {
	stores, err := b.persistence()
	if err != nil {
		return nil, err
	}

	source := b.source
	if source == nil {
		source = knowledge.NewMemorySource()
	}

	answerer := b.answerer
	if answerer == nil {
		if b.model != nil {
			answerer = generate.NewLLMAnswerer(b.model)
		} else {
			answerer = generate.ExtractiveAnswerer{}
		}
	}

	extractOpts := []extract.Option{extract.WithCache(extract.NewCache(b.cacheTTL))}
	if b.model != nil {
		extractOpts = append(extractOpts, extract.WithModel(b.model))
	}

	var genOpts []generate.Option
	if b.topK > 0 {
		genOpts = append(genOpts, generate.WithTopK(b.topK))
	}
	if b.retry != (api.RetryPolicy{}) {
		genOpts = append(genOpts, generate.WithRetryPolicy(b.retry))
	}

	fs := b.fs
	if fs == nil {
		if b.backend == backendMemory {
			fs = afero.NewMemMapFs()
		} else {
			fs = afero.NewOsFs()
		}
	}
	dir := b.artifacts
	if dir == "" {
		dir = "artifacts"
	}

	return engine.New(engine.Config{
		Persistence: stores,
		Queue:       b.queue,
		Extractor:   extract.New(extractOpts...),
		Generator:   generate.New(source, answerer, genOpts...),
		Reviewer:    review.New(),
		Renderer:    render.NewMarkdownRenderer(fs, dir),
		Observer:    b.observer,
		LeaseTTL:    b.leaseTTL,
	}), nil
}

func (b *Builder) persistence() (persistence.Persistence, error) {
	switch b.backend {
	case backendSQLite:
		store, err := persistence.NewSQLiteWorkflowStore(b.db)
		if err != nil {
			return persistence.Persistence{}, err
		}
		events, err := persistence.NewSQLiteEventStore(b.db)
		if err != nil {
			return persistence.Persistence{}, err
		}
		return persistence.Persistence{Workflows: store, Events: events}, nil
	case backendPostgres:
		store, err := persistence.NewPostgresWorkflowStore(b.db)
		if err != nil {
			return persistence.Persistence{}, err
		}
		return persistence.Persistence{
			Workflows: store,
			Events:    persistence.NewInMemoryEventStore(),
		}, nil
	case backendRedis:
		return persistence.Persistence{
			Workflows: persistence.NewRedisWorkflowStore(b.redis, ""),
			Events:    persistence.NewInMemoryEventStore(),
		}, nil
	default:
		return persistence.Persistence{
			Workflows: persistence.NewInMemoryStore(),
			Events:    persistence.NewInMemoryEventStore(),
		}, nil
	}
}

// buildQueue returns the backend's durable queue for bundle assembly.
func (b *Builder) buildQueue() (taskqueue.Queue, error) {
	if b.queue != nil {
		return b.queue, nil
	}
	switch b.backend {
	case backendSQLite:
		return taskqueue.NewSQLiteQueue(b.db)
	case backendRedis:
		return taskqueue.NewRedisQueue(b.redis, ""), nil
	default:
		return nil, errors.New("resposta: no durable queue for this backend; use NewLocalRunner for in-process work")
	}
}
