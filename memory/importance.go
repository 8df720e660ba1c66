package memory

import (
	"context"
	"fmt"

	"github.com/pensionlab/guidancecore/llm"
)

type (
	// Scorer rates how significant an observation is, in [0,1]. Backed
	// by an LLM in production and by deterministic stubs in tests.
	Scorer interface {
		RateImportance(ctx context.Context, text string) (float64, error)
	}

	// LLMScorer asks a small chat model for a significance rating.
	LLMScorer struct {
		client llm.Client
	}
)

var _ Scorer = (*LLMScorer)(nil)

func NewLLMScorer(client llm.Client) *LLMScorer {
	return &LLMScorer{client: client}
}

func (s *LLMScorer) RateImportance(ctx context.Context, text string) (float64, error) {
	var output struct {
		Score float64 `json:"score" jsonschema:"required,description=Significance of the observation from 0.0 (mundane) to 1.0 (critical to the customer's pension situation)"`
	}

	prompt := fmt.Sprintf(`Rate how significant the following observation from a pension guidance consultation is, on a scale from 0.0 to 1.0.

0.0 means mundane small talk with no bearing on the guidance.
1.0 means critical to the customer's financial situation or the compliance of the guidance.

Observation: %s`, text)

	if err := s.client.CompleteJSON(ctx, llm.Request{Prompt: prompt}, &output); err != nil {
		return 0, err
	}

	return output.Score, nil
}
