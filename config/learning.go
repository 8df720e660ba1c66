package config

import "time"

// LearningConfig carries the learning-pipeline thresholds. These are
// tuning knobs, not constants: operators adjust them per deployment.
type LearningConfig struct {
	// SuccessQualityThreshold: compliance passed and quality at or above
	// this value extracts a case.
	SuccessQualityThreshold float64

	// FailureQualityThreshold: quality at or below this value (or any
	// compliance failure) triggers rule learning.
	FailureQualityThreshold float64

	// CaseDedupSimilarity: a new case at or above this similarity to an
	// existing one is skipped rather than inserted.
	CaseDedupSimilarity float64

	// RuleMergeSimilarity: an existing same-domain rule at or above this
	// similarity is refined instead of creating a new rule.
	RuleMergeSimilarity float64

	// EvidenceWeight is the magnitude of a single confidence adjustment
	// when refining a rule.
	EvidenceWeight float64

	// InitialConfidence is used when the analysis does not state its own
	// certainty.
	InitialConfidence float64

	// AnalysisTimeout bounds the root-cause analysis call; on expiry the
	// pipeline degrades to no learning.
	AnalysisTimeout time.Duration
}

func NewLearningConfig() *LearningConfig {
	return &LearningConfig{
		SuccessQualityThreshold: 0.7,
		FailureQualityThreshold: 0.4,
		CaseDedupSimilarity:     0.98,
		RuleMergeSimilarity:     0.85,
		EvidenceWeight:          0.1,
		InitialConfidence:       0.5,
		AnalysisTimeout:         60 * time.Second,
	}
}
