// Package knowledge manages the domain knowledge base: indexed pension
// guidance material retrieved alongside memories, cases, and rules.
package knowledge

import (
	"time"
)

type (
	SourceType string

	Source struct {
		Title    string     `json:"title"`
		URL      *string    `json:"url,omitempty"`
		Filename *string    `json:"filename,omitempty"`
		Type     SourceType `json:"type"`
	}

	// Item is one indexed chunk of guidance material.
	Item struct {
		ID        string         `json:"id"`
		Content   string         `json:"content"`
		Source    Source         `json:"source"`
		Metadata  map[string]any `json:"metadata,omitempty"`
		CreatedAt time.Time      `json:"createdAt"`

		Embedding []float32 `json:"-"`
	}
)

const (
	SourceTypeMap  SourceType = "map"
	SourceTypePDF  SourceType = "pdf"
	SourceTypeURL  SourceType = "url"
	SourceTypeFeed SourceType = "feed"
)

func (i *Item) EntityID() string      { return i.ID }
func (i *Item) SetEntityID(id string) { i.ID = id }
func (i *Item) Vector() []float32     { return i.Embedding }
func (i *Item) Attributes() map[string]any {
	return map[string]any{"source_type": string(i.Source.Type)}
}
