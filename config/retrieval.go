package config

type RetrievalConfig struct {
	// TopKPerCategory is how many results each sub-store contributes to
	// the context bundle.
	TopKPerCategory int

	// PhaseBoost is the additive similarity bonus applied to cases whose
	// recorded conversation phase matches the current one.
	PhaseBoost float64

	// QualityBoost is the additive bonus for cases whose dialogue
	// techniques carry a conversational-quality score at or above
	// QualityBoostThreshold.
	QualityBoost          float64
	QualityBoostThreshold float64
}

func NewRetrievalConfig() *RetrievalConfig {
	return &RetrievalConfig{
		TopKPerCategory:       5,
		PhaseBoost:            0.1,
		QualityBoost:          0.1,
		QualityBoostThreshold: 0.7,
	}
}
