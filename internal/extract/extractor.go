// Package extract turns raw RFP document text into the ordered list of
// questions to answer plus the section headings detected along the way.
//
// Extraction has two strategies: a primary model-backed one, and a
// deterministic line-scan fallback that never fails. The fallback is also
// the guarantee that a workflow can always reach ready, even with an
// empty or question-free document.
package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/petrijr/resposta/internal/llm"
)

const (
	maxQuestions = 50
	maxSections  = 20

	// Fragments shorter than this are parsing noise, not questions.
	minQuestionLen = 10
)

const extractionSystemPrompt = "You are an RFP analyst. Extract every question and requirement a vendor must respond to."

const extractionPromptTemplate = `Extract all questions and requirements from the following RFP document.
Return them as a numbered list, one item per line, in the order they appear.
Do not add commentary.

Document:
%s`

// requirementMarkers are the line prefixes the fallback treats as
// requirements even without a terminal question mark.
var requirementMarkers = []string{
	"vendor must",
	"vendor should",
	"describe",
	"provide",
	"what",
	"how",
	"please",
}

var (
	enumPrefixRe    = regexp.MustCompile(`^\s*\d+[.)]\s*`)
	allCapsHeaderRe = regexp.MustCompile(`^[A-Z][A-Z\s]+$`)
	numberedHeadRe  = regexp.MustCompile(`^\d+\.\s+[A-Z]`)
	sectionLabelRe  = regexp.MustCompile(`^(?i:section)\s+\d+`)
)

// Result is the outcome of one extraction.
type Result struct {
	Questions []string
	Sections  []string
}

// Extractor extracts questions and sections from document text.
//
// The model client is optional; without one, only the fallback strategy
// runs. Extract never returns an error: primary-strategy failures fall
// through to the fallback, and the fallback cannot fail.
type Extractor struct {
	model llm.Client
	cache *Cache
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithModel sets the model client used by the primary strategy.
func WithModel(c llm.Client) Option {
	return func(e *Extractor) { e.model = c }
}

// WithCache enables caching of extraction results, keyed by a hash of the
// document text.
func WithCache(c *Cache) Option {
	return func(e *Extractor) { e.cache = c }
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the questions and sections found in text.
//
// Empty or whitespace-only input returns a zero Result without invoking
// the primary strategy; there is nothing to spend a model call on.
func (e *Extractor) Extract(ctx context.Context, text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{}
	}

	if e.cache != nil {
		if res, ok := e.cache.get(text); ok {
			return res
		}
	}

	questions := e.primaryQuestions(ctx, text)
	if questions == nil {
		questions = FallbackQuestions(text)
	}

	res := Result{
		Questions: questions,
		Sections:  DetectSections(text),
	}

	if e.cache != nil {
		e.cache.set(text, res)
	}
	return res
}

// primaryQuestions runs the model strategy. A nil return means "fall back":
// no model configured, the call failed, or the output parsed to nothing.
func (e *Extractor) primaryQuestions(ctx context.Context, text string) []string {
	if e.model == nil {
		return nil
	}

	out, err := e.model.Complete(ctx, llm.Request{
		System: extractionSystemPrompt,
		Prompt: strings.Replace(extractionPromptTemplate, "%s", text, 1),
	})
	if err != nil {
		return nil
	}

	questions := parseNumberedList(out)
	if len(questions) == 0 {
		return nil
	}
	return questions
}

// parseNumberedList parses model output into questions: one per line,
// enumeration prefixes stripped, short fragments dropped, a terminal
// question mark ensured. Order is preserved as emitted.
func parseNumberedList(out string) []string {
	var questions []string
	for _, line := range strings.Split(out, "\n") {
		q := strings.TrimSpace(enumPrefixRe.ReplaceAllString(strings.TrimSpace(line), ""))
		if len(q) < minQuestionLen {
			continue
		}
		if !strings.HasSuffix(q, "?") {
			q += "?"
		}
		questions = append(questions, q)
		if len(questions) >= maxQuestions {
			break
		}
	}
	return dedupe(questions, maxQuestions)
}

// FallbackQuestions is the deterministic strategy: scan line by line and
// keep lines ending in "?" or starting with a requirement marker.
// Exact-text repeats are deduplicated preserving first occurrence. It
// never fails; finding nothing returns an empty list.
func FallbackQuestions(text string) []string {
	var questions []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasSuffix(line, "?") || hasRequirementMarker(line) {
			questions = append(questions, line)
		}
	}
	return dedupe(questions, maxQuestions)
}

func hasRequirementMarker(line string) bool {
	lower := strings.ToLower(line)
	for _, m := range requirementMarkers {
		if strings.HasPrefix(lower, m) {
			return true
		}
	}
	return false
}

// DetectSections collects heading-like lines: ALL-CAPS headings, numbered
// headings, and explicit "Section N" labels, deduplicated in order of
// first appearance.
func DetectSections(text string) []string {
	var sections []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || len(line) > 100 {
			continue
		}
		if allCapsHeaderRe.MatchString(line) || numberedHeadRe.MatchString(line) || sectionLabelRe.MatchString(line) {
			sections = append(sections, line)
		}
	}
	return dedupe(sections, maxSections)
}

func dedupe(in []string, limit int) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if len(out) >= limit {
			break
		}
	}
	return out
}
