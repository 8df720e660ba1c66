package config

type MemoryConfig struct {
	// DecayFactor is the per-hour exponential decay base for recency
	// scoring. Must be in (0,1); values near 1 decay slowly.
	DecayFactor float64

	// Default retrieval weights. Callers may override per query.
	RecencyWeight    float64
	ImportanceWeight float64
	RelevanceWeight  float64

	// TopK is the default number of memories returned per retrieval.
	TopK int
}

func NewMemoryConfig() *MemoryConfig {
	return &MemoryConfig{
		DecayFactor:      0.995,
		RecencyWeight:    0.3,
		ImportanceWeight: 0.4,
		RelevanceWeight:  0.3,
		TopK:             5,
	}
}
