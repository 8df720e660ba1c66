package config

import "time"

type ModelConfig struct {
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`

	// Provider selects the chat backend for scoring and analysis calls:
	// "openai" or "anthropic".
	Provider string `env:"LLM_PROVIDER"`

	// GenerationModel backs root-cause analysis and case summarisation.
	GenerationModel string `env:"GENERATION_MODEL"`

	// ScoringModel backs importance rating; a small, cheap model is enough.
	ScoringModel string `env:"SCORING_MODEL"`

	EmbeddingModel string `env:"EMBEDDING_MODEL"`

	// EmbeddingDimension is fixed per embedding model version. Every
	// persisted vector must carry exactly this many components.
	EmbeddingDimension int

	// RequestTimeout bounds each individual LLM or embedding call.
	RequestTimeout time.Duration
}

func NewModelConfig() *ModelConfig {
	conf := &ModelConfig{
		Provider:           "openai",
		GenerationModel:    "gpt-4o",
		ScoringModel:       "gpt-4o-mini",
		EmbeddingModel:     "text-embedding-3-small",
		EmbeddingDimension: 1536,
		RequestTimeout:     30 * time.Second,
	}
	resolveConfig(conf)
	return conf
}
