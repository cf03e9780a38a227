package api

import (
	"time"
)

// State represents the lifecycle state of a workflow.
//
// States advance strictly in pipeline order; error is reachable from any
// non-terminal state. ready and error are terminal.
type State string

const (
	StateCreated    State = "created"
	StateAnalyzing  State = "analyzing"
	StateRouting    State = "routing"
	StateGenerating State = "generating"
	StateReviewing  State = "reviewing"
	StateFormatting State = "formatting"
	StateReady      State = "ready"
	StateError      State = "error"
)

// Pipeline names for the built-in processing pipelines.
const (
	PipelineRFPResponse   = "rfp-response"
	PipelineQuickProposal = "quick-proposal"
)

// stageOrder lists the success path in required order.
var stageOrder = []State{
	StateCreated,
	StateAnalyzing,
	StateRouting,
	StateGenerating,
	StateReviewing,
	StateFormatting,
	StateReady,
}

// Terminal reports whether s is a terminal state.
func (s State) Terminal() bool {
	return s == StateReady || s == StateError
}

// Next returns the successor of s on the success path, or "" if s has none.
func (s State) Next() State {
	for i, st := range stageOrder {
		if st == s && i+1 < len(stageOrder) {
			return stageOrder[i+1]
		}
	}
	return ""
}

// CanTransition reports whether moving from one state to another is legal.
// Legal moves are exactly: each state to its immediate successor on the
// success path, and any non-terminal state to error.
func CanTransition(from, to State) bool {
	if to == StateError {
		return !from.Terminal()
	}
	return from.Next() == to
}

// Workflow is the unit of work tracked end to end: one run of the
// proposal pipeline for a single client document.
//
// Optional fields are pointers: nil means "not yet produced" (or, for
// SourceDocumentText, "this pipeline has no source document"), which is a
// different thing from present-but-empty.
type Workflow struct {
	ID         string `json:"id"`
	Pipeline   string `json:"pipeline"`
	State      State  `json:"state"`
	ClientName string `json:"client_name"`
	Industry   string `json:"industry,omitempty"`

	// SourceDocumentText is the raw RFP body. nil for quick-proposal
	// workflows, which have no document to extract from.
	SourceDocumentText *string `json:"source_document_text,omitempty"`

	// RequirementsSummary optionally shapes the quick-proposal outline.
	RequirementsSummary string `json:"requirements_summary,omitempty"`

	Analysis  *RFPAnalysis     `json:"analysis,omitempty"`
	Responses []ResponseRecord `json:"responses,omitempty"`
	Review    *ReviewResult    `json:"review,omitempty"`

	OutputArtifactPath string `json:"output_artifact_path,omitempty"`
	ErrorDetail        string `json:"error_detail,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a deep copy. Stores hand out clones so that pollers never
// observe a snapshot mid-mutation.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	cp := *w
	if w.SourceDocumentText != nil {
		s := *w.SourceDocumentText
		cp.SourceDocumentText = &s
	}
	if w.Analysis != nil {
		a := *w.Analysis
		a.Questions = append([]string(nil), w.Analysis.Questions...)
		a.Sections = append([]string(nil), w.Analysis.Sections...)
		cp.Analysis = &a
	}
	if w.Responses != nil {
		cp.Responses = make([]ResponseRecord, len(w.Responses))
		for i, r := range w.Responses {
			cp.Responses[i] = r.clone()
		}
	}
	if w.Review != nil {
		rv := *w.Review
		rv.Issues = append([]string(nil), w.Review.Issues...)
		cp.Review = &rv
	}
	if w.CompletedAt != nil {
		t := *w.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// RFPAnalysis is the result of question extraction: the ordered questions
// to answer and the section headings detected in the source document.
type RFPAnalysis struct {
	Questions  []string `json:"questions"`
	Sections   []string `json:"sections"`
	TotalCount int      `json:"total_count"`
}

// ResponseRecord is one question's generated answer. Records are appended
// in question order and never mutated afterwards.
type ResponseRecord struct {
	Question   string          `json:"question"`
	AnswerText string          `json:"answer_text"`
	Sources    []SourcePassage `json:"sources,omitempty"`

	// Confidence is in [0,1], derived from the retrieval scores.
	Confidence float64 `json:"confidence"`

	// Degraded marks the placeholder record written when answer
	// generation failed for this question.
	Degraded bool `json:"degraded,omitempty"`
}

func (r ResponseRecord) clone() ResponseRecord {
	cp := r
	if r.Sources != nil {
		cp.Sources = make([]SourcePassage, len(r.Sources))
		for i, s := range r.Sources {
			cp.Sources[i] = s
			if s.Metadata != nil {
				m := make(map[string]string, len(s.Metadata))
				for k, v := range s.Metadata {
					m[k] = v
				}
				cp.Sources[i].Metadata = m
			}
		}
	}
	return cp
}

// SourcePassage is one retrieved knowledge passage with its relevance
// score in [0,1] and opaque provenance metadata.
type SourcePassage struct {
	Text     string            `json:"text"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Quality is the categorical outcome of a review.
type Quality string

const (
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"
)

// ReviewResult aggregates a completed response set.
//
// The three confidence counts partition Responses and always sum to its
// length. CompletenessScore is 1.0 for an empty response set.
type ReviewResult struct {
	OverallQuality        Quality  `json:"overall_quality"`
	CompletenessScore     float64  `json:"completeness_score"`
	HighConfidenceCount   int      `json:"high_confidence_count"`
	MediumConfidenceCount int      `json:"medium_confidence_count"`
	LowConfidenceCount    int      `json:"low_confidence_count"`
	Issues                []string `json:"issues,omitempty"`
}

// PlaceholderAnswer is the fixed answer text of a degraded response
// record, written when answer generation fails for a single question.
const PlaceholderAnswer = "Unable to generate answer at this time. Please review manually."

// RetryPolicy controls how a collaborator call is retried before the
// engine degrades the response. MaxAttempts includes the first attempt:
//
//	MaxAttempts = 1 => no retries (the default)
//	MaxAttempts = 3 => initial call + up to 2 retries
//
// InitialBackoff is the delay before the first retry; each subsequent
// delay is multiplied by BackoffMultiplier (2.0 if <= 0) and capped at
// MaxBackoff when MaxBackoff > 0.
type RetryPolicy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
}

// Delay returns the backoff before retry attempt n (1-based: n=1 is the
// delay after the first failed attempt).
func (p RetryPolicy) Delay(n int) time.Duration {
	if n <= 0 || p.InitialBackoff <= 0 {
		return 0
	}
	mult := p.BackoffMultiplier
	if mult <= 0 {
		mult = 2.0
	}
	d := p.InitialBackoff
	for i := 1; i < n; i++ {
		d = time.Duration(float64(d) * mult)
		if p.MaxBackoff > 0 && d > p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}
