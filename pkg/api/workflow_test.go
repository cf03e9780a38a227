package api

import (
	"testing"
	"time"
)

func TestState_Terminal(t *testing.T) {
	terminal := map[State]bool{
		StateCreated:    false,
		StateAnalyzing:  false,
		StateRouting:    false,
		StateGenerating: false,
		StateReviewing:  false,
		StateFormatting: false,
		StateReady:      true,
		StateError:      true,
	}
	for s, want := range terminal {
		if got := s.Terminal(); got != want {
			t.Fatalf("Terminal(%s) = %v, want %v", s, got, want)
		}
	}
}

func TestState_NextFollowsPipelineOrder(t *testing.T) {
	want := map[State]State{
		StateCreated:    StateAnalyzing,
		StateAnalyzing:  StateRouting,
		StateRouting:    StateGenerating,
		StateGenerating: StateReviewing,
		StateReviewing:  StateFormatting,
		StateFormatting: StateReady,
		StateReady:      "",
		StateError:      "",
	}
	for s, next := range want {
		if got := s.Next(); got != next {
			t.Fatalf("Next(%s) = %q, want %q", s, got, next)
		}
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{StateCreated, StateAnalyzing, true},
		{StateAnalyzing, StateRouting, true},
		{StateRouting, StateGenerating, true},
		{StateGenerating, StateReviewing, true},
		{StateReviewing, StateFormatting, true},
		{StateFormatting, StateReady, true},

		// error is reachable from every non-terminal state.
		{StateCreated, StateError, true},
		{StateAnalyzing, StateError, true},
		{StateGenerating, StateError, true},
		{StateFormatting, StateError, true},

		// No skipping, no going back, no leaving terminal states.
		{StateCreated, StateRouting, false},
		{StateCreated, StateReady, false},
		{StateAnalyzing, StateCreated, false},
		{StateGenerating, StateGenerating, false},
		{StateReady, StateError, false},
		{StateError, StateError, false},
		{StateReady, StateAnalyzing, false},
		{StateError, StateCreated, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestWorkflow_CloneIsDeep(t *testing.T) {
	doc := "What encryption do you use?\n"
	completed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	orig := &Workflow{
		ID:                 "wf-1",
		Pipeline:           PipelineRFPResponse,
		State:              StateReady,
		ClientName:         "Globex",
		SourceDocumentText: &doc,
		Analysis: &RFPAnalysis{
			Questions:  []string{"What encryption do you use?"},
			Sections:   []string{"Security"},
			TotalCount: 1,
		},
		Responses: []ResponseRecord{
			{
				Question:   "What encryption do you use?",
				AnswerText: "AES-256 at rest.",
				Confidence: 0.9,
				Sources: []SourcePassage{
					{Text: "AES-256", Score: 0.9, Metadata: map[string]string{"doc": "security"}},
				},
			},
		},
		Review:      &ReviewResult{OverallQuality: QualityHigh, CompletenessScore: 1.0, HighConfidenceCount: 1, Issues: []string{}},
		CompletedAt: &completed,
	}

	cp := orig.Clone()

	// Mutate every shared-looking structure on the clone.
	*cp.SourceDocumentText = "tampered"
	cp.Analysis.Questions[0] = "tampered"
	cp.Analysis.Sections[0] = "tampered"
	cp.Responses[0].AnswerText = "tampered"
	cp.Responses[0].Sources[0].Metadata["doc"] = "tampered"
	*cp.CompletedAt = time.Time{}

	if *orig.SourceDocumentText != doc {
		t.Fatalf("SourceDocumentText shared between clone and original")
	}
	if orig.Analysis.Questions[0] != "What encryption do you use?" {
		t.Fatalf("Analysis.Questions shared between clone and original")
	}
	if orig.Analysis.Sections[0] != "Security" {
		t.Fatalf("Analysis.Sections shared between clone and original")
	}
	if orig.Responses[0].AnswerText != "AES-256 at rest." {
		t.Fatalf("Responses shared between clone and original")
	}
	if orig.Responses[0].Sources[0].Metadata["doc"] != "security" {
		t.Fatalf("Sources metadata shared between clone and original")
	}
	if !orig.CompletedAt.Equal(completed) {
		t.Fatalf("CompletedAt shared between clone and original")
	}
}

func TestWorkflow_CloneNil(t *testing.T) {
	var w *Workflow
	if got := w.Clone(); got != nil {
		t.Fatalf("Clone of nil workflow = %v, want nil", got)
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	cases := []struct {
		name   string
		policy RetryPolicy
		n      int
		want   time.Duration
	}{
		{"zero policy", RetryPolicy{}, 1, 0},
		{"n zero", RetryPolicy{InitialBackoff: time.Second}, 0, 0},
		{"first retry", RetryPolicy{InitialBackoff: 100 * time.Millisecond}, 1, 100 * time.Millisecond},
		{"default multiplier doubles", RetryPolicy{InitialBackoff: 100 * time.Millisecond}, 3, 400 * time.Millisecond},
		{"explicit multiplier", RetryPolicy{InitialBackoff: 100 * time.Millisecond, BackoffMultiplier: 3}, 2, 300 * time.Millisecond},
		{"constant", RetryPolicy{InitialBackoff: 50 * time.Millisecond, BackoffMultiplier: 1}, 5, 50 * time.Millisecond},
		{"cap applies", RetryPolicy{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 250 * time.Millisecond}, 4, 250 * time.Millisecond},
		{"cap does not raise", RetryPolicy{InitialBackoff: 10 * time.Millisecond, MaxBackoff: time.Second}, 1, 10 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := tc.policy.Delay(tc.n); got != tc.want {
			t.Fatalf("%s: Delay(%d) = %v, want %v", tc.name, tc.n, got, tc.want)
		}
	}
}
