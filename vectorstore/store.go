// Package vectorstore provides generic persistence with top-K cosine
// similarity search. Each collection (memories, cases, rules, knowledge)
// instantiates a Store with its own record type and filter attributes.
package vectorstore

import (
	"context"
)

type (
	// Entity is the capability a record type must offer to be stored:
	// identifiable, embeddable, and filterable by exact-match attributes.
	Entity interface {
		EntityID() string
		SetEntityID(id string)
		Vector() []float32
		Attributes() map[string]any
	}

	// Versioned records get an optimistic concurrency check on Update: the
	// stored version must equal Version() or the update fails with
	// ErrConflict. Implementations bump the version on success.
	Versioned interface {
		Version() int64
		SetVersion(v int64)
	}

	// Scored pairs an entity with its cosine similarity to the query,
	// in [-1,1].
	Scored[T Entity] struct {
		Entity     T
		Similarity float64
	}

	Store[T Entity] interface {
		// Add assigns an id if absent and writes through to backing
		// storage. The returned entity carries the assigned id.
		Add(ctx context.Context, entity T) (T, error)

		// Get returns the entity by id, or ErrNotFound.
		Get(ctx context.Context, id string) (T, error)

		// Update rewrites an existing entity by id. For Versioned
		// entities the write is a compare-and-swap on the version.
		Update(ctx context.Context, entity T) error

		// Search returns up to limit entities matching filters, ordered
		// by descending cosine similarity to queryEmbedding. Ties are
		// stable by insertion order. limit <= 0 returns an empty slice.
		Search(ctx context.Context, queryEmbedding []float32, limit int, filters map[string]any) ([]Scored[T], error)

		Count(ctx context.Context) (int64, error)

		Close() error
	}
)

func matchesFilters(attrs, filters map[string]any) bool {
	for k, want := range filters {
		if attrs[k] != want {
			return false
		}
	}
	return true
}
