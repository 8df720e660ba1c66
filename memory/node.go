// Package memory implements the episodic memory stream: scored,
// embedded observations with recency/importance/relevance retrieval.
package memory

import (
	"time"
)

type (
	// Type tags a node's provenance. It never changes after creation.
	Type string

	// Node is a single episodic unit. Importance and the embedding are
	// assigned once at creation; LastAccessed and AccessCount move on
	// every retrieval that returns the node.
	Node struct {
		ID           string    `json:"id"`
		Description  string    `json:"description"`
		Timestamp    time.Time `json:"timestamp"`
		LastAccessed time.Time `json:"lastAccessed"`
		Importance   float64   `json:"importance"`
		MemoryType   Type      `json:"memoryType"`
		AccessCount  int       `json:"accessCount"`

		Embedding []float32 `json:"-"`
	}
)

const (
	TypeObservation Type = "observation"
	TypeReflection  Type = "reflection"
	TypePlan        Type = "plan"
)

func (n *Node) EntityID() string      { return n.ID }
func (n *Node) SetEntityID(id string) { n.ID = id }
func (n *Node) Vector() []float32     { return n.Embedding }
func (n *Node) Attributes() map[string]any {
	return map[string]any{"memory_type": string(n.MemoryType)}
}
