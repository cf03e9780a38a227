package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/petrijr/resposta/internal/llm"
	"github.com/petrijr/resposta/pkg/api"
)

// ExtractiveAnswerer composes answers directly from retrieved passages
// without a model call. It is deterministic and never fails, which
// makes it the default for local runs and tests.
type ExtractiveAnswerer struct{}

var _ api.AnswerGenerator = ExtractiveAnswerer{}

// Answer stitches the two best passages into a short response. With no
// passages it falls back to a generic commitment so the record still
// reads as an answer rather than an error.
func (ExtractiveAnswerer) Answer(ctx context.Context, question string, passages []api.SourcePassage) (api.Answer, error) {
	if len(passages) == 0 {
		return api.Answer{
			Text:   "We will address this requirement in line with our standard delivery practices and can provide further detail on request.",
			Signal: 0,
		}, nil
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(passages[0].Text))
	if len(passages) > 1 {
		b.WriteString(" ")
		b.WriteString(strings.TrimSpace(passages[1].Text))
	}
	return api.Answer{Text: b.String(), Signal: passages[0].Score}, nil
}

const answerSystemPrompt = `You write answers for RFP responses on behalf of a vendor.
Answer the question using only the provided context passages.
Be specific and professional. Two to four sentences. Do not invent
capabilities that the context does not support.`

const answerPromptTemplate = `Question:
%s

Context passages:
%s

Write the answer.`

// LLMAnswerer generates answers with a completion model, feeding the
// retrieved passages in as context.
type LLMAnswerer struct {
	model llm.Client
}

var _ api.AnswerGenerator = (*LLMAnswerer)(nil)

// NewLLMAnswerer creates an answerer over model.
func NewLLMAnswerer(model llm.Client) *LLMAnswerer {
	return &LLMAnswerer{model: model}
}

// Answer calls the model once. Errors propagate so the caller's retry
// and degradation policy applies.
func (a *LLMAnswerer) Answer(ctx context.Context, question string, passages []api.SourcePassage) (api.Answer, error) {
	var b strings.Builder
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, strings.TrimSpace(p.Text))
	}
	if b.Len() == 0 {
		b.WriteString("(no passages retrieved)")
	}

	text, err := a.model.Complete(ctx, llm.Request{
		System: answerSystemPrompt,
		Prompt: fmt.Sprintf(answerPromptTemplate, question, b.String()),
	})
	if err != nil {
		return api.Answer{}, fmt.Errorf("answer generation: %w", err)
	}
	return api.Answer{Text: strings.TrimSpace(text)}, nil
}
