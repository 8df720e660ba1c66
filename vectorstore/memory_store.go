package vectorstore

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pensionlab/guidancecore/errors"
	"github.com/pensionlab/guidancecore/internal/vecmath"
)

// InMemoryStore keeps entities in insertion order and scores similarity
// with one gonum matrix multiply per search. Entities round-trip through
// their JSON form on the way in and out, the same contract as the sqlite
// backend: callers get private copies, embeddings live only in the
// store's vector index, and the only way to change stored state is
// Update with its version check.
type InMemoryStore[T Entity] struct {
	mu        sync.RWMutex
	dimension int
	entities  []T
	vectors   [][]float32    // parallel to entities
	index     map[string]int // id -> position in entities
	versions  map[string]int64
}

var _ Store[Entity] = (*InMemoryStore[Entity])(nil)

func NewInMemoryStore[T Entity](dimension int) *InMemoryStore[T] {
	return &InMemoryStore[T]{
		dimension: dimension,
		index:     make(map[string]int),
		versions:  make(map[string]int64),
	}
}

func (s *InMemoryStore[T]) Add(ctx context.Context, entity T) (T, error) {
	var zero T

	if len(entity.Vector()) != s.dimension {
		return zero, errors.Wrapf(errors.ErrInvalidArgument, "embedding has %d dimensions, store configured for %d", len(entity.Vector()), s.dimension)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entity.EntityID() == "" {
		entity.SetEntityID(uuid.NewString())
	}
	if _, exists := s.index[entity.EntityID()]; exists {
		return zero, errors.Wrapf(errors.ErrInvalidArgument, "entity %s already exists", entity.EntityID())
	}
	if v, ok := any(entity).(Versioned); ok {
		if v.Version() == 0 {
			v.SetVersion(1)
		}
		s.versions[entity.EntityID()] = v.Version()
	}

	stored, err := cloneEntity(entity)
	if err != nil {
		return zero, err
	}

	s.index[entity.EntityID()] = len(s.entities)
	s.entities = append(s.entities, stored)
	s.vectors = append(s.vectors, append([]float32(nil), entity.Vector()...))

	return entity, nil
}

func (s *InMemoryStore[T]) Get(ctx context.Context, id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var zero T
	pos, ok := s.index[id]
	if !ok {
		return zero, errors.Wrapf(errors.ErrNotFound, "entity %s", id)
	}
	return cloneEntity(s.entities[pos])
}

func (s *InMemoryStore[T]) Update(ctx context.Context, entity T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[entity.EntityID()]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "entity %s", entity.EntityID())
	}

	if v, ok := any(entity).(Versioned); ok {
		stored := s.versions[entity.EntityID()]
		if v.Version() != stored {
			return errors.Wrapf(errors.ErrConflict, "entity %s: version %d, stored %d", entity.EntityID(), v.Version(), stored)
		}
		v.SetVersion(stored + 1)
		s.versions[entity.EntityID()] = stored + 1
	}

	replacement, err := cloneEntity(entity)
	if err != nil {
		return err
	}
	s.entities[pos] = replacement

	// An entity read back from the store carries no embedding; an empty
	// vector on Update keeps the indexed one, like the sqlite backend.
	if len(entity.Vector()) > 0 {
		s.vectors[pos] = append([]float32(nil), entity.Vector()...)
	}
	return nil
}

func (s *InMemoryStore[T]) Search(ctx context.Context, queryEmbedding []float32, limit int, filters map[string]any) ([]Scored[T], error) {
	if limit <= 0 {
		return []Scored[T]{}, nil
	}
	if len(queryEmbedding) != s.dimension {
		return nil, errors.Wrapf(errors.ErrInvalidArgument, "query has %d dimensions, store configured for %d", len(queryEmbedding), s.dimension)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Candidates keep insertion order so the stable sort below breaks
	// similarity ties by earliest insertion.
	var positions []int
	for pos, entity := range s.entities {
		if matchesFilters(entity.Attributes(), filters) {
			positions = append(positions, pos)
		}
	}
	if len(positions) == 0 {
		return []Scored[T]{}, nil
	}

	embeddings := make([][]float32, len(positions))
	for i, pos := range positions {
		embeddings[i] = s.vectors[pos]
	}
	similarities := vecmath.CosineAll(queryEmbedding, embeddings)

	type candidate struct {
		pos        int
		similarity float64
	}
	candidates := make([]candidate, len(positions))
	for i, pos := range positions {
		candidates[i] = candidate{pos: pos, similarity: similarities[i]}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].similarity > candidates[j].similarity
	})

	if limit > len(candidates) {
		limit = len(candidates)
	}

	results := make([]Scored[T], limit)
	for i := 0; i < limit; i++ {
		entity, err := cloneEntity(s.entities[candidates[i].pos])
		if err != nil {
			return nil, err
		}
		results[i] = Scored[T]{Entity: entity, Similarity: candidates[i].similarity}
	}
	return results, nil
}

func (s *InMemoryStore[T]) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entities)), nil
}

func (s *InMemoryStore[T]) Close() error {
	return nil
}

// cloneEntity deep-copies an entity through its JSON payload, the same
// round-trip the sqlite backend's payload column does. Fields excluded
// from the payload (the embedding) do not survive; id and version are
// restored explicitly.
func cloneEntity[T Entity](entity T) (T, error) {
	var zero T

	payload, err := json.Marshal(entity)
	if err != nil {
		return zero, errors.Wrapf(err, "failed to marshal entity payload")
	}

	out, ok := reflect.New(reflect.TypeOf(entity).Elem()).Interface().(T)
	if !ok {
		return zero, errors.Errorf("entity type %T is not a pointer", entity)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return zero, errors.Wrapf(err, "failed to unmarshal entity payload")
	}

	out.SetEntityID(entity.EntityID())
	if v, ok := any(entity).(Versioned); ok {
		any(out).(Versioned).SetVersion(v.Version())
	}
	return out, nil
}
