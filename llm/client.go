// Package llm abstracts the chat-completion backends used for importance
// scoring and root-cause analysis. Callers inject a Client so tests can
// substitute deterministic stubs.
package llm

import (
	"context"
)

type (
	Client interface {
		// Complete returns the model's text response.
		Complete(ctx context.Context, req Request) (string, error)

		// CompleteJSON asks the model for a structured response and
		// unmarshals it into out, which must be a pointer to a struct.
		CompleteJSON(ctx context.Context, req Request, out any) error
	}

	Request struct {
		System      string
		Prompt      string
		Temperature float64
		MaxTokens   int64
	}
)

const defaultMaxTokens int64 = 2048

func (r Request) maxTokens() int64 {
	if r.MaxTokens > 0 {
		return r.MaxTokens
	}
	return defaultMaxTokens
}
