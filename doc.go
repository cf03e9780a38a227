// Package resposta provides an embeddable engine for generating RFP
// responses and sales proposals.
//
// Resposta is designed for backend services that turn a client's request
// for proposal into a reviewed response document: extract the questions,
// answer each one from a knowledge base, score the result, and render a
// deliverable. It runs fully in Go, supports multiple persistence
// backends, and integrates cleanly into existing codebases.
//
// # Core Concepts
//
// The programming model is intentionally small:
//
//  1. Engine
//  2. Worker
//  3. Builder
//  4. LocalRunner
//
// # Engine
//
// The Engine owns the workflow state machine. A workflow is submitted
// with CreateWorkflow and immediately persisted in the created state;
// processing then runs asynchronously through the stages
//
//	created -> analyzing -> routing -> generating -> reviewing -> formatting -> ready
//
// with any failure parking the workflow in error. Every stage writes a
// full consistent snapshot before moving on, and the generating stage
// persists after each answered question, so any number of readers can
// poll GetWorkflow for live progress. GetArtifact returns the rendered
// document once the workflow is ready, and ListEvents returns the
// transition history.
//
// Two pipelines are built in: rfp-response runs the full
// extract/answer/review path over a source document, and quick-proposal
// synthesizes a standard five-section proposal outline from just the
// client context. The pipeline is chosen by whether the request carries
// a source document.
//
// Engines can be backed by different storage systems:
//
//   - In-memory (non-durable, best for tests)
//   - SQLite (embedded durability)
//   - Postgres
//   - Redis
//
// # Worker
//
// A Worker pulls workflow tasks from a queue and drives processing.
// Workers run asynchronously and can be scaled out; a per-workflow store
// lease guarantees at most one processor per workflow. SQLite and Redis
// backends include a matching durable queue so submitted work survives a
// restart, paired through NewSQLiteBundle or Builder.BuildBundle.
//
// # Builder
//
// Builder is the declarative way to assemble an engine. Every
// collaborator has a deterministic default, so
//
//	eng, _ := resposta.NewBuilder().Build()
//
// works end to end with no external services: an in-memory knowledge
// base, an extractive answerer that composes answers from retrieved
// passages, and an in-memory artifact filesystem. Production setups swap
// in a durable store, a vector-search knowledge source, a model-backed
// answerer (WithAnthropic / WithOpenAI), an Observer, and a retry
// policy.
//
// # LocalRunner
//
// LocalRunner bundles an in-memory engine, queue, and worker into a
// single process-local helper useful for development and unit testing.
// Seed its knowledge base, start workers, submit workflows, and wait on
// AwaitTerminal. LocalRunner is intentionally not crash-durable.
//
// # Summary
//
// The Engine manages workflow state, Workers process queued workflows,
// Builder assembles the collaborators, and LocalRunner provides a fast
// developer-friendly runtime. For complete programs, see the /examples
// directory.
package resposta
