// Package llm provides the model-completion client used by the primary
// extraction strategy and the model-backed answer generator, with
// adapters for the OpenAI and Anthropic APIs.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyCompletion is returned when a provider answers successfully but
// with no usable text.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// Request is one completion call.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int64
	Temperature float64
}

// Client produces a text completion for a request. A returned error marks
// the call as failed; callers fall back or degrade, they do not retry here.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}
