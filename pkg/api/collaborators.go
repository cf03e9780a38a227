package api

import "context"

// KnowledgeSource retrieves ranked passages relevant to a query.
//
// Implementations must return scores in [0,1] with higher meaning more
// relevant, at most topK passages, best first.
type KnowledgeSource interface {
	Search(ctx context.Context, query string, topK int) ([]SourcePassage, error)
}

// KnowledgeDocument is a unit of content added to a knowledge source.
type KnowledgeDocument struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// KnowledgeWriter is the optional write side of a knowledge source.
// Sources that cannot accept documents simply don't implement it.
type KnowledgeWriter interface {
	Add(ctx context.Context, docs []KnowledgeDocument) error
}

// Answer is the typed outcome of one answer-generation call.
//
// Signal is an optional model-reported reliability hint in [0,1]; the
// confidence recorded on a ResponseRecord is derived from the retrieval
// scores, not from Signal.
type Answer struct {
	Text   string
	Signal float64
}

// AnswerGenerator produces an answer for one question given its
// retrieved context passages. A returned error marks the call as failed;
// the engine degrades the response rather than aborting the workflow.
type AnswerGenerator interface {
	Answer(ctx context.Context, question string, passages []SourcePassage) (Answer, error)
}

// RenderInput is the full tuple handed to the renderer by the formatting
// stage. Review is always present by then; quick-proposal workflows carry
// a no-op review.
type RenderInput struct {
	WorkflowID string
	Pipeline   string
	ClientName string
	Industry   string
	Analysis   *RFPAnalysis
	Responses  []ResponseRecord
	Review     *ReviewResult
}

// DocumentRenderer turns a finished response set into a downloadable
// artifact and reads it back for the artifact accessor.
type DocumentRenderer interface {
	// Render writes the artifact and returns its location.
	Render(ctx context.Context, in RenderInput) (artifactPath string, err error)

	// ReadArtifact returns the bytes of a previously rendered artifact.
	ReadArtifact(ctx context.Context, artifactPath string) ([]byte, error)
}
