package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/petrijr/resposta/pkg/api"
)

// stageFunc is one stage body. It runs against the engine's collaborators
// and mutates the workflow snapshot in place; the engine persists the
// snapshot after the body returns.
type stageFunc func(ctx context.Context, e *EngineImpl, wf *api.Workflow) error

// pipeline is an ordered set of stage bodies keyed by the state that runs
// them. States without an entry run as observable no-ops.
type pipeline struct {
	name   string
	stages map[api.State]stageFunc
}

type pipelineRegistry struct {
	mu     sync.RWMutex
	byName map[string]pipeline
}

func newPipelineRegistry() *pipelineRegistry {
	return &pipelineRegistry{
		byName: make(map[string]pipeline),
	}
}

func (r *pipelineRegistry) register(p pipeline) error {
	if p.name == "" {
		return fmt.Errorf("pipeline name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[p.name]; exists {
		return fmt.Errorf("pipeline %q already registered", p.name)
	}
	r.byName[p.name] = p
	return nil
}

func (r *pipelineRegistry) get(name string) (pipeline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byName[name]
	if !ok {
		return pipeline{}, fmt.Errorf("pipeline %q not found", name)
	}
	return p, nil
}

// builtinPipelines returns the two built-in pipelines.
//
// rfp-response extracts questions from the source document and answers
// each one; quick-proposal synthesizes a standard proposal outline
// instead and skips the full review.
func builtinPipelines() []pipeline {
	return []pipeline{
		{
			name: api.PipelineRFPResponse,
			stages: map[api.State]stageFunc{
				api.StateAnalyzing:  stageAnalyzeDocument,
				api.StateRouting:    stageRoute,
				api.StateGenerating: stageGenerateResponses,
				api.StateReviewing:  stageReview,
				api.StateFormatting: stageFormat,
			},
		},
		{
			name: api.PipelineQuickProposal,
			stages: map[api.State]stageFunc{
				api.StateAnalyzing:  stageQuickOutline,
				api.StateRouting:    stageRoute,
				api.StateGenerating: stageQuickGenerate,
				api.StateReviewing:  stageQuickReview,
				api.StateFormatting: stageFormat,
			},
		},
	}
}

// quickOutlineSections are the standard proposal sections synthesized by
// the quick-proposal pipeline, in rendering order.
var quickOutlineSections = []string{
	"Executive Summary",
	"Company Overview",
	"Proposed Solution",
	"Implementation Timeline",
	"Pricing",
}

// quickSectionQuery turns an outline section into the retrieval/answer
// query for one quick-proposal response, tinted with the client context.
func quickSectionQuery(wf *api.Workflow, section string) string {
	var b strings.Builder
	b.WriteString(section)
	b.WriteString(" for ")
	b.WriteString(wf.ClientName)
	if wf.Industry != "" {
		b.WriteString(" in the ")
		b.WriteString(wf.Industry)
		b.WriteString(" industry")
	}
	if wf.RequirementsSummary != "" {
		b.WriteString(". Requirements: ")
		b.WriteString(wf.RequirementsSummary)
	}
	return b.String()
}
