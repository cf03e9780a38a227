package engine

import (
	"context"
	"fmt"

	"github.com/petrijr/resposta/internal/review"
	"github.com/petrijr/resposta/pkg/api"
)

// stageAnalyzeDocument extracts questions and sections from the source
// document. Extraction cannot fail; an empty or question-free document
// yields an empty analysis and the workflow still reaches ready.
func stageAnalyzeDocument(ctx context.Context, e *EngineImpl, wf *api.Workflow) error {
	var text string
	if wf.SourceDocumentText != nil {
		text = *wf.SourceDocumentText
	}

	res := e.extractor.Extract(ctx, text)
	wf.Analysis = &api.RFPAnalysis{
		Questions:  res.Questions,
		Sections:   res.Sections,
		TotalCount: len(res.Questions),
	}
	return nil
}

// stageQuickOutline synthesizes the standard proposal outline instead of
// extracting from a document; quick-proposal workflows have none.
func stageQuickOutline(ctx context.Context, e *EngineImpl, wf *api.Workflow) error {
	questions := append([]string(nil), quickOutlineSections...)
	wf.Analysis = &api.RFPAnalysis{
		Questions:  questions,
		TotalCount: len(questions),
	}
	return nil
}

// stageRoute does nothing. Routing is kept as a distinct state so pollers
// get an observable signal that analysis finished and generation is about
// to start.
func stageRoute(ctx context.Context, e *EngineImpl, wf *api.Workflow) error {
	return nil
}

func stageGenerateResponses(ctx context.Context, e *EngineImpl, wf *api.Workflow) error {
	return e.appendResponses(ctx, wf, func(question string) string {
		return question
	})
}

func stageQuickGenerate(ctx context.Context, e *EngineImpl, wf *api.Workflow) error {
	return e.appendResponses(ctx, wf, func(section string) string {
		return quickSectionQuery(wf, section)
	})
}

func stageReview(ctx context.Context, e *EngineImpl, wf *api.Workflow) error {
	rv := e.reviewer.Review(wf.Responses)
	wf.Review = &rv
	return nil
}

func stageQuickReview(ctx context.Context, e *EngineImpl, wf *api.Workflow) error {
	rv := review.NoopReview(wf.Responses)
	wf.Review = &rv
	return nil
}

func stageFormat(ctx context.Context, e *EngineImpl, wf *api.Workflow) error {
	path, err := e.renderer.Render(ctx, api.RenderInput{
		WorkflowID: wf.ID,
		Pipeline:   wf.Pipeline,
		ClientName: wf.ClientName,
		Industry:   wf.Industry,
		Analysis:   wf.Analysis,
		Responses:  wf.Responses,
		Review:     wf.Review,
	})
	if err != nil {
		return fmt.Errorf("render artifact: %w", err)
	}
	wf.OutputArtifactPath = path
	return nil
}

// appendResponses generates one record per analysis question, in order,
// persisting the workflow after every single append and renewing the
// processing lease as it goes. queryFor maps the recorded question to the
// retrieval/answer query, which differs for quick-proposal sections.
func (e *EngineImpl) appendResponses(ctx context.Context, wf *api.Workflow, queryFor func(string) string) error {
	if wf.Analysis == nil {
		return nil
	}

	for i := len(wf.Responses); i < len(wf.Analysis.Questions); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		question := wf.Analysis.Questions[i]
		rec := e.generator.Generate(ctx, queryFor(question))
		rec.Question = question

		wf.Responses = append(wf.Responses, rec)
		if err := e.persistSnapshot(ctx, wf); err != nil {
			return fmt.Errorf("persist response %d: %w", i, err)
		}
		e.observer.OnResponseAppended(ctx, wf, rec, i)

		if err := e.store.RenewLease(ctx, wf.ID, e.owner, e.leaseTTL); err != nil {
			return fmt.Errorf("renew lease: %w", err)
		}
	}
	return nil
}
