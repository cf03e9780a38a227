// Package generate produces one response record per extracted question:
// retrieve supporting passages, call the answer generator under the
// retry policy, and score confidence from the retrieval results. A
// failed question degrades to a placeholder record instead of failing
// the workflow.
package generate

import (
	"context"
	"time"

	"github.com/petrijr/resposta/pkg/api"
)

// DefaultTopK is the number of passages retrieved per question when the
// generator is not configured otherwise.
const DefaultTopK = 5

// minConfidence is the floor reported when retrieval returns nothing
// but the answer call still succeeded. A generated answer with no
// supporting sources is weak evidence, not zero evidence.
const minConfidence = 0.2

// Generator builds response records for individual questions.
type Generator struct {
	source   api.KnowledgeSource
	answerer api.AnswerGenerator
	topK     int
	retry    api.RetryPolicy
}

// Option configures a Generator.
type Option func(*Generator)

// WithTopK sets how many passages are retrieved per question.
func WithTopK(k int) Option {
	return func(g *Generator) {
		if k > 0 {
			g.topK = k
		}
	}
}

// WithRetryPolicy sets the retry policy applied to answer calls.
func WithRetryPolicy(p api.RetryPolicy) Option {
	return func(g *Generator) { g.retry = p }
}

// New creates a Generator over the given source and answerer.
func New(source api.KnowledgeSource, answerer api.AnswerGenerator, opts ...Option) *Generator {
	g := &Generator{
		source:   source,
		answerer: answerer,
		topK:     DefaultTopK,
		retry:    api.RetryPolicy{MaxAttempts: 1},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces the record for one question. It never returns an
// error: retrieval or generation failure yields a degraded record, so
// one bad question cannot sink the rest of the batch. The only abort
// path is context cancellation, reported via ctx so the caller can stop
// the whole stage.
func (g *Generator) Generate(ctx context.Context, question string) api.ResponseRecord {
	passages, err := g.source.Search(ctx, question, g.topK)
	if err != nil {
		return DegradedRecord(question)
	}

	answer, err := g.answerWithRetry(ctx, question, passages)
	if err != nil {
		return DegradedRecord(question)
	}

	return api.ResponseRecord{
		Question:   question,
		AnswerText: answer.Text,
		Sources:    passages,
		Confidence: Confidence(passages),
	}
}

func (g *Generator) answerWithRetry(ctx context.Context, question string, passages []api.SourcePassage) (api.Answer, error) {
	maxAttempts := g.retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		answer, err := g.answerer.Answer(ctx, question, passages)
		if err == nil {
			return answer, nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}
		if delay := g.retry.Delay(attempt); delay > 0 {
			select {
			case <-ctx.Done():
				return api.Answer{}, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return api.Answer{}, lastErr
}

// DegradedRecord is the record written for a question whose answer
// could not be generated: fixed placeholder text, zero confidence, no
// sources.
func DegradedRecord(question string) api.ResponseRecord {
	return api.ResponseRecord{
		Question:   question,
		AnswerText: api.PlaceholderAnswer,
		Confidence: 0,
		Degraded:   true,
	}
}

// Confidence scores a response from its retrieval results:
//
//	0.4*avg(scores) + 0.4*max(scores) + 0.2*min(n/5, 1.0)
//
// capped at 1.0. The count term rewards corroboration: five passages
// saturate it. With no passages at all the fixed floor applies.
func Confidence(passages []api.SourcePassage) float64 {
	if len(passages) == 0 {
		return minConfidence
	}

	var sum, max float64
	for _, p := range passages {
		sum += p.Score
		if p.Score > max {
			max = p.Score
		}
	}
	avg := sum / float64(len(passages))

	countTerm := float64(len(passages)) / 5.0
	if countTerm > 1.0 {
		countTerm = 1.0
	}

	c := 0.4*avg + 0.4*max + 0.2*countTerm
	if c > 1.0 {
		c = 1.0
	}
	return c
}
