// Package rulebase stores generalized guidance principles with
// confidence scores, derived from reflection on consultation failures.
package rulebase

import (
	"time"
)

type (
	// Evidence is one reference supporting or contradicting a rule.
	Evidence struct {
		Source   string    `json:"source"`
		Snippet  string    `json:"snippet"`
		Supports bool      `json:"supports"`
		AddedAt  time.Time `json:"addedAt"`
	}

	// Rule is refined in place over its lifetime: confidence and
	// evidence change, the principle text does not. Contradicted rules
	// are down-weighted, never deleted, preserving the audit trail.
	// Revision backs the optimistic concurrency check on refinement.
	Rule struct {
		ID                 string     `json:"id"`
		Principle          string     `json:"principle"`
		Domain             string     `json:"domain"`
		Confidence         float64    `json:"confidence"`
		SupportingEvidence []Evidence `json:"supportingEvidence"`
		CreatedAt          time.Time  `json:"createdAt"`
		UpdatedAt          time.Time  `json:"updatedAt"`
		Revision           int64      `json:"revision"`

		Embedding []float32 `json:"-"`
	}
)

func (r *Rule) EntityID() string      { return r.ID }
func (r *Rule) SetEntityID(id string) { r.ID = id }
func (r *Rule) Vector() []float32     { return r.Embedding }
func (r *Rule) Attributes() map[string]any {
	return map[string]any{"domain": r.Domain}
}

func (r *Rule) Version() int64     { return r.Revision }
func (r *Rule) SetVersion(v int64) { r.Revision = v }
