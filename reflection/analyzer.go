package reflection

import (
	"context"
	"fmt"

	"github.com/pensionlab/guidancecore/llm"
)

type (
	// Analysis is the structured result of root-cause analysis over a
	// failed consultation.
	Analysis struct {
		RootCause string  `json:"rootCause" jsonschema:"required,description=What went wrong in the consultation"`
		Principle string  `json:"principle" jsonschema:"required,description=A generalized normative guidance principle that would have avoided the failure"`
		Domain    string  `json:"domain" jsonschema:"required,description=The pension guidance domain the principle applies to (e.g. db_transfer, consolidation, drawdown)"`
		Certainty float64 `json:"certainty" jsonschema:"required,description=How certain the analysis is that the principle is correct, 0.0 to 1.0"`
		Evidence  string  `json:"evidence" jsonschema:"required,description=A short transcript snippet or observation supporting the principle"`
	}

	// Analyzer performs root-cause analysis. LLM-backed in production,
	// stubbed deterministically in tests.
	Analyzer interface {
		AnalyzeFailure(ctx context.Context, transcript, failureSignal string) (*Analysis, error)
	}

	LLMAnalyzer struct {
		client llm.Client
	}
)

var _ Analyzer = (*LLMAnalyzer)(nil)

func NewLLMAnalyzer(client llm.Client) *LLMAnalyzer {
	return &LLMAnalyzer{client: client}
}

func (a *LLMAnalyzer) AnalyzeFailure(ctx context.Context, transcript, failureSignal string) (*Analysis, error) {
	var analysis Analysis

	prompt := fmt.Sprintf(`A pension guidance consultation failed its quality or compliance checks.

Failure signal: %s

Transcript:
%s

Identify the root cause and state one generalized guidance principle that would have avoided it.`, failureSignal, transcript)

	req := llm.Request{
		System: "You review pension guidance consultations for an FCA-regulated guidance service and distill failures into reusable principles.",
		Prompt: prompt,
	}
	if err := a.client.CompleteJSON(ctx, req, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}
