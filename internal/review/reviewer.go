// Package review scores a completed response set: per-response
// confidence bands, a completeness ratio, a categorical quality verdict
// and a list of issues for a human reviewer.
package review

import (
	"fmt"

	"github.com/petrijr/resposta/pkg/api"
)

// Thresholds are the confidence cutoffs applied per response and the
// completeness floor below which an extra issue is raised.
type Thresholds struct {
	// HighConfidence: responses at or above land in the high band.
	HighConfidence float64
	// LowConfidence: responses strictly below land in the low band.
	// Everything between the two is medium.
	LowConfidence float64
	// CompletenessFloor: a completeness score below this adds an issue.
	CompletenessFloor float64
}

// DefaultThresholds returns the standard cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HighConfidence:    0.8,
		LowConfidence:     0.5,
		CompletenessFloor: 0.5,
	}
}

// Quality verdict cutoffs. High demands near-complete coverage with no
// weak answers; medium tolerates either noticeable gaps or a couple of
// weak answers, not widespread failure.
const (
	highQualityCompleteness   = 0.8
	mediumQualityCompleteness = 0.6
	mediumQualityMaxLow       = 2
)

// Reviewer applies Thresholds to response sets.
type Reviewer struct {
	thresholds Thresholds
}

// Option configures a Reviewer.
type Option func(*Reviewer)

// WithThresholds overrides the default cutoffs.
func WithThresholds(t Thresholds) Option {
	return func(r *Reviewer) { r.thresholds = t }
}

// New creates a Reviewer with DefaultThresholds unless overridden.
func New(opts ...Option) *Reviewer {
	r := &Reviewer{thresholds: DefaultThresholds()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Review scores responses. The three confidence counts partition the
// input. CompletenessScore is the fraction of non-degraded responses;
// an empty set scores 1.0 and reviews as high quality, since nothing
// was asked and nothing is missing.
func (r *Reviewer) Review(responses []api.ResponseRecord) api.ReviewResult {
	var high, medium, low int
	var issues []string

	for _, resp := range responses {
		switch {
		case resp.Confidence >= r.thresholds.HighConfidence:
			high++
		case resp.Confidence < r.thresholds.LowConfidence:
			low++
			issues = append(issues, fmt.Sprintf("low confidence answer for: %s", truncateQuestion(resp.Question)))
		default:
			medium++
		}
	}

	completeness := 1.0
	if len(responses) > 0 {
		generated := 0
		for _, resp := range responses {
			if !resp.Degraded {
				generated++
			}
		}
		completeness = float64(generated) / float64(len(responses))
	}
	if completeness < r.thresholds.CompletenessFloor {
		issues = append(issues, fmt.Sprintf("completeness %.2f below floor %.2f: too many answers missing", completeness, r.thresholds.CompletenessFloor))
	}

	return api.ReviewResult{
		OverallQuality:        verdict(completeness, low),
		CompletenessScore:     completeness,
		HighConfidenceCount:   high,
		MediumConfidenceCount: medium,
		LowConfidenceCount:    low,
		Issues:                issues,
	}
}

func verdict(completeness float64, lowCount int) api.Quality {
	switch {
	case completeness >= highQualityCompleteness && lowCount == 0:
		return api.QualityHigh
	case completeness >= mediumQualityCompleteness || lowCount <= mediumQualityMaxLow:
		return api.QualityMedium
	default:
		return api.QualityLow
	}
}

func truncateQuestion(q string) string {
	const max = 80
	if len(q) <= max {
		return q
	}
	return q[:max] + "..."
}

// NoopReview is the review recorded for pipelines that skip the scoring
// stage. Confidence counts still reflect the real responses so the
// partition invariant holds, but completeness is pinned to 1.0, the
// verdict to high, and no issues are raised.
func NoopReview(responses []api.ResponseRecord) api.ReviewResult {
	t := DefaultThresholds()
	var high, medium, low int
	for _, resp := range responses {
		switch {
		case resp.Confidence >= t.HighConfidence:
			high++
		case resp.Confidence < t.LowConfidence:
			low++
		default:
			medium++
		}
	}
	return api.ReviewResult{
		OverallQuality:        api.QualityHigh,
		CompletenessScore:     1.0,
		HighConfidenceCount:   high,
		MediumConfidenceCount: medium,
		LowConfidenceCount:    low,
	}
}
