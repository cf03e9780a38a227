// Package api contains the core contracts used by the resposta workflow
// engine. It defines the workflow data model, the engine interface, the
// collaborator interfaces the engine depends on, and the observability
// hooks.
//
// Most users interact with the higher-level resposta package, which
// re-exports selected types and helpers from this package. The api package
// is intended for custom integrations, alternative collaborator
// implementations, or contributors extending the engine itself.
//
// # Data Model
//
// A Workflow is one end-to-end run of the proposal pipeline for a single
// client: the raw document (if any), the extracted RFPAnalysis, the
// ordered ResponseRecord list built up during generation, the aggregate
// ReviewResult, and the final artifact location.
//
// The State enum and CanTransition define the legal lifecycle:
//
//	created -> analyzing -> routing -> generating -> reviewing -> formatting -> ready
//	any non-terminal state -> error
//
// ready and error are terminal. Responses are append-only in question
// order; every persisted snapshot is internally consistent, so pollers
// always observe a prefix of the final response list alongside the state
// that produced it.
//
// # Collaborators
//
// The engine does not retrieve knowledge, call models, or format
// documents itself. It depends on three small interfaces:
//
//   - KnowledgeSource: ranked passage retrieval for a query.
//   - AnswerGenerator: answer text for a question plus its passages.
//   - DocumentRenderer: the final artifact, written and read back.
//
// Each call boundary returns a typed value and an error; the engine's
// degradation and fallback behavior is a branch on that error, never an
// abort of the whole workflow for a single question.
//
// # Observability
//
// The Observer interface receives workflow and stage lifecycle callbacks.
// Ready-made implementations are provided: NoopObserver,
// NewLoggingObserver (log/slog), BasicMetrics (atomic counters with a
// Snapshot accessor), and NewCompositeObserver to combine them.
//
// # Usage
//
// Most applications should start from the resposta package, using the
// Builder and the runner/bundle constructors provided there. See the
// examples directory for end-to-end usage.
package api
