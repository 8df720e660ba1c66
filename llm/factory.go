package llm

import (
	"strings"

	"github.com/pensionlab/guidancecore/config"
	"github.com/pensionlab/guidancecore/errors"
)

// NewClient builds the chat backend selected by the model config. The
// model argument lets callers pick different models per concern (a small
// one for scoring, a larger one for analysis).
func NewClient(conf *config.ModelConfig, model string) (Client, error) {
	switch strings.ToLower(conf.Provider) {
	case "openai":
		if conf.OpenAIAPIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is not set")
		}
		return NewOpenAIClient(conf.OpenAIAPIKey, model), nil
	case "anthropic":
		if conf.AnthropicAPIKey == "" {
			return nil, errors.New("ANTHROPIC_API_KEY is not set")
		}
		return NewAnthropicClient(conf.AnthropicAPIKey, model), nil
	default:
		return nil, errors.Errorf("unsupported llm provider: %s", conf.Provider)
	}
}
