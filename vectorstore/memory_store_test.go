package vectorstore_test

import (
	"sync"
	"testing"

	"github.com/pensionlab/guidancecore/errors"
	"github.com/pensionlab/guidancecore/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEntity struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Category  string    `json:"category"`
	Counter   int       `json:"counter"`
	Revision  int64     `json:"revision"`
	Embedding []float32 `json:"-"`
}

func (e *testEntity) EntityID() string      { return e.ID }
func (e *testEntity) SetEntityID(id string) { e.ID = id }
func (e *testEntity) Vector() []float32     { return e.Embedding }
func (e *testEntity) Attributes() map[string]any {
	return map[string]any{"category": e.Category}
}

func (e *testEntity) Version() int64     { return e.Revision }
func (e *testEntity) SetVersion(v int64) { e.Revision = v }

func TestInMemoryStore_AddAndGet(t *testing.T) {
	store := vectorstore.NewInMemoryStore[*testEntity](3)
	ctx := t.Context()

	added, err := store.Add(ctx, &testEntity{Text: "first", Embedding: []float32{1, 0, 0}})
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID, "store should assign an id")
	assert.EqualValues(t, 1, added.Revision, "first revision should be 1")

	got, err := store.Get(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Text)
}

func TestInMemoryStore_Add_DimensionMismatch(t *testing.T) {
	store := vectorstore.NewInMemoryStore[*testEntity](3)

	_, err := store.Add(t.Context(), &testEntity{Text: "short", Embedding: []float32{1, 0}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func TestInMemoryStore_Get_NotFound(t *testing.T) {
	store := vectorstore.NewInMemoryStore[*testEntity](3)

	_, err := store.Get(t.Context(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestInMemoryStore_Update_VersionConflict(t *testing.T) {
	store := vectorstore.NewInMemoryStore[*testEntity](3)
	ctx := t.Context()

	added, err := store.Add(ctx, &testEntity{Text: "v1", Embedding: []float32{1, 0, 0}})
	require.NoError(t, err)

	// An in-date update succeeds and bumps the version.
	added.Text = "v2"
	require.NoError(t, store.Update(ctx, added))
	assert.EqualValues(t, 2, added.Revision)

	// A stale writer loses the race.
	stale := &testEntity{ID: added.ID, Text: "stale", Revision: 1, Embedding: []float32{1, 0, 0}}
	err = store.Update(ctx, stale)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
}

func TestInMemoryStore_ReturnsPrivateCopies(t *testing.T) {
	store := vectorstore.NewInMemoryStore[*testEntity](3)
	ctx := t.Context()

	added, err := store.Add(ctx, &testEntity{Text: "original", Embedding: []float32{1, 0, 0}})
	require.NoError(t, err)

	first, err := store.Get(ctx, added.ID)
	require.NoError(t, err)
	second, err := store.Get(ctx, added.ID)
	require.NoError(t, err)
	assert.NotSame(t, first, second, "reads must hand out private copies")

	// Mutating a returned copy must not change stored state.
	first.Text = "mutated"
	got, err := store.Get(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", got.Text)

	results, err := store.Search(ctx, []float32{1, 0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NotSame(t, first, results[0].Entity)
	assert.Equal(t, "original", results[0].Entity.Text)
}

func TestInMemoryStore_ConcurrentVersionedUpdates(t *testing.T) {
	store := vectorstore.NewInMemoryStore[*testEntity](3)
	ctx := t.Context()

	added, err := store.Add(ctx, &testEntity{Text: "seed", Embedding: []float32{1, 0, 0}})
	require.NoError(t, err)

	// Every writer re-reads on a lost race; the version check must
	// serialize them so no increment is lost.
	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				current, err := store.Get(ctx, added.ID)
				if !assert.NoError(t, err) {
					return
				}
				current.Counter++
				err = store.Update(ctx, current)
				if err == nil {
					return
				}
				if !assert.True(t, errors.Is(err, errors.ErrConflict)) {
					return
				}
			}
		}()
	}
	wg.Wait()

	final, err := store.Get(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, writers, final.Counter)
	assert.EqualValues(t, writers+1, final.Revision)
}

func TestInMemoryStore_Search(t *testing.T) {
	store := vectorstore.NewInMemoryStore[*testEntity](3)
	ctx := t.Context()

	for _, e := range []*testEntity{
		{Text: "exact", Embedding: []float32{1, 0, 0}},
		{Text: "orthogonal", Embedding: []float32{0, 1, 0}},
		{Text: "close", Embedding: []float32{1, 0.2, 0}},
	} {
		_, err := store.Add(ctx, e)
		require.NoError(t, err)
	}

	results, err := store.Search(ctx, []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "exact", results[0].Entity.Text)
	assert.Equal(t, "close", results[1].Entity.Text)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
}

func TestInMemoryStore_Search_TieBreaksByInsertionOrder(t *testing.T) {
	store := vectorstore.NewInMemoryStore[*testEntity](3)
	ctx := t.Context()

	// Two entities with identical embeddings tie on similarity; the
	// earlier insertion must win.
	for _, text := range []string{"older", "newer"} {
		_, err := store.Add(ctx, &testEntity{Text: text, Embedding: []float32{0, 1, 0}})
		require.NoError(t, err)
	}

	results, err := store.Search(ctx, []float32{0, 1, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "older", results[0].Entity.Text)
}

func TestInMemoryStore_Search_Filters(t *testing.T) {
	store := vectorstore.NewInMemoryStore[*testEntity](3)
	ctx := t.Context()

	for _, e := range []*testEntity{
		{Text: "a", Category: "db_transfer", Embedding: []float32{1, 0, 0}},
		{Text: "b", Category: "drawdown", Embedding: []float32{1, 0, 0}},
	} {
		_, err := store.Add(ctx, e)
		require.NoError(t, err)
	}

	results, err := store.Search(ctx, []float32{1, 0, 0}, 10, map[string]any{"category": "drawdown"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Entity.Text)
}

func TestInMemoryStore_Search_EdgeCases(t *testing.T) {
	store := vectorstore.NewInMemoryStore[*testEntity](3)
	ctx := t.Context()

	// Zero or negative limit yields an empty result, not an error.
	results, err := store.Search(ctx, []float32{1, 0, 0}, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	// Dimension mismatch is an error.
	_, err = store.Search(ctx, []float32{1, 0}, 5, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	// Empty store yields an empty result.
	results, err = store.Search(ctx, []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestInMemoryStore_Count(t *testing.T) {
	store := vectorstore.NewInMemoryStore[*testEntity](3)
	ctx := t.Context()

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	_, err = store.Add(ctx, &testEntity{Text: "one", Embedding: []float32{1, 0, 0}})
	require.NoError(t, err)

	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
