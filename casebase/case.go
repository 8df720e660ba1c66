// Package casebase retains full consultation episodes for case-based
// reasoning. Cases are written once by the learning pipeline and read
// back by similarity.
package casebase

import (
	"time"
)

type (
	// Outcome captures the consultation's terminal signals.
	Outcome struct {
		CompliancePassed  bool    `json:"compliancePassed"`
		QualityScore      float64 `json:"qualityScore"`
		SatisfactionScore float64 `json:"satisfactionScore,omitempty"`
		Summary           string  `json:"summary,omitempty"`
	}

	// DialogueTechniques records the conversational strategies that
	// worked, with the phase they were observed in.
	DialogueTechniques struct {
		Phase        string   `json:"phase,omitempty"`
		Techniques   []string `json:"techniques,omitempty"`
		QualityScore float64  `json:"qualityScore,omitempty"`
	}

	// Case is immutable once created. The embedding covers the customer
	// situation plus the outcome summary.
	Case struct {
		ID                 string              `json:"id"`
		TaskType           string              `json:"taskType"`
		CustomerSituation  string              `json:"customerSituation"`
		GuidanceProvided   string              `json:"guidanceProvided"`
		Outcome            Outcome             `json:"outcome"`
		DialogueTechniques *DialogueTechniques `json:"dialogueTechniques,omitempty"`
		CreatedAt          time.Time           `json:"createdAt"`

		Embedding []float32 `json:"-"`
	}
)

func (c *Case) EntityID() string { return c.ID }

func (c *Case) SetEntityID(id string) { c.ID = id }

func (c *Case) Vector() []float32 { return c.Embedding }
func (c *Case) Attributes() map[string]any {
	return map[string]any{"task_type": c.TaskType}
}

// EmbeddingText is the canonical text the case embedding is computed
// over: the situation plus the outcome summary.
func (c *Case) EmbeddingText() string {
	if c.Outcome.Summary == "" {
		return c.CustomerSituation
	}
	return c.CustomerSituation + "\n" + c.Outcome.Summary
}
