// Package entity holds the advisor profile: the operator-editable YAML
// description of one guidance advisor and its tuning knobs.
package entity

import (
	"os"

	"github.com/goccy/go-yaml"
	"github.com/pensionlab/guidancecore/config"
	"github.com/pensionlab/guidancecore/errors"
)

type (
	Advisor struct {
		Name        string   `yaml:"name"`
		Description string   `yaml:"description"`
		Domains     []string `yaml:"domains"`

		GenerationModel string `yaml:"generationModel"`
		ScoringModel    string `yaml:"scoringModel"`

		// Knowledge entries are indexed into the domain knowledge base
		// at startup.
		Knowledge []map[string]any `yaml:"knowledge"`

		Thresholds Thresholds `yaml:"thresholds"`
	}

	// Thresholds overrides the learning-pipeline defaults. Zero values
	// leave the defaults in place.
	Thresholds struct {
		SuccessQuality      float64 `yaml:"successQuality"`
		FailureQuality      float64 `yaml:"failureQuality"`
		CaseDedupSimilarity float64 `yaml:"caseDedupSimilarity"`
		RuleMergeSimilarity float64 `yaml:"ruleMergeSimilarity"`
	}
)

func LoadAdvisorFromFile(file string) (advisor Advisor, err error) {
	var yamlBytes []byte
	if yamlBytes, err = os.ReadFile(file); err != nil {
		err = errors.Wrapf(err, "failed to read file %s", file)
		return
	}

	if err = yaml.Unmarshal(yamlBytes, &advisor); err != nil {
		err = errors.Wrapf(err, "failed to unmarshal file %s", file)
		return
	}

	if advisor.Name == "" {
		err = errors.Errorf("advisor file %s has no name", file)
	}
	return
}

// ApplyThresholds overlays the profile's non-zero thresholds onto the
// learning config.
func (a *Advisor) ApplyThresholds(conf *config.LearningConfig) {
	if a.Thresholds.SuccessQuality > 0 {
		conf.SuccessQualityThreshold = a.Thresholds.SuccessQuality
	}
	if a.Thresholds.FailureQuality > 0 {
		conf.FailureQualityThreshold = a.Thresholds.FailureQuality
	}
	if a.Thresholds.CaseDedupSimilarity > 0 {
		conf.CaseDedupSimilarity = a.Thresholds.CaseDedupSimilarity
	}
	if a.Thresholds.RuleMergeSimilarity > 0 {
		conf.RuleMergeSimilarity = a.Thresholds.RuleMergeSimilarity
	}
}
