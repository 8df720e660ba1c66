//go:build !without_sqlite

package vectorstore_test

import (
	"path/filepath"
	"testing"

	"github.com/pensionlab/guidancecore/errors"
	"github.com/pensionlab/guidancecore/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := vectorstore.OpenDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return db
}

func newTestSqliteStore(t *testing.T) *vectorstore.SqliteStore[*testEntity] {
	t.Helper()
	store, err := vectorstore.NewSqliteStore(openTestDB(t), "test_entities", 3, func() *testEntity { return &testEntity{} })
	require.NoError(t, err)
	return store
}

func TestSqliteStore_AddAndGet(t *testing.T) {
	store := newTestSqliteStore(t)
	ctx := t.Context()

	added, err := store.Add(ctx, &testEntity{Text: "first", Category: "a", Embedding: []float32{1, 0, 0}})
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.EqualValues(t, 1, added.Revision)

	got, err := store.Get(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Text)
	assert.Equal(t, "a", got.Category)
	assert.EqualValues(t, 1, got.Revision)
}

func TestSqliteStore_Get_NotFound(t *testing.T) {
	store := newTestSqliteStore(t)

	_, err := store.Get(t.Context(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestSqliteStore_Update_VersionConflict(t *testing.T) {
	store := newTestSqliteStore(t)
	ctx := t.Context()

	added, err := store.Add(ctx, &testEntity{Text: "v1", Embedding: []float32{1, 0, 0}})
	require.NoError(t, err)

	added.Text = "v2"
	require.NoError(t, store.Update(ctx, added))
	assert.EqualValues(t, 2, added.Revision)

	stale := &testEntity{ID: added.ID, Text: "stale", Revision: 1, Embedding: []float32{1, 0, 0}}
	err = store.Update(ctx, stale)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	// The winner's write survives.
	got, err := store.Get(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Text)
}

func TestSqliteStore_Search(t *testing.T) {
	store := newTestSqliteStore(t)
	ctx := t.Context()

	for _, e := range []*testEntity{
		{Text: "exact", Category: "a", Embedding: []float32{1, 0, 0}},
		{Text: "orthogonal", Category: "a", Embedding: []float32{0, 1, 0}},
		{Text: "close", Category: "b", Embedding: []float32{1, 0.2, 0}},
	} {
		_, err := store.Add(ctx, e)
		require.NoError(t, err)
	}

	results, err := store.Search(ctx, []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "exact", results[0].Entity.Text)
	assert.Equal(t, "close", results[1].Entity.Text)

	// Attribute filters restrict the candidates.
	results, err = store.Search(ctx, []float32{1, 0, 0}, 10, map[string]any{"category": "b"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "close", results[0].Entity.Text)

	// No filter survivors means an empty result, not an error.
	results, err = store.Search(ctx, []float32{1, 0, 0}, 10, map[string]any{"category": "zzz"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSqliteStore_Search_TieBreaksByInsertionOrder(t *testing.T) {
	store := newTestSqliteStore(t)
	ctx := t.Context()

	// All three tie exactly on similarity and the limit cuts between
	// them; the earliest inserts must survive the cut, in order.
	for _, text := range []string{"older", "middle", "newer"} {
		_, err := store.Add(ctx, &testEntity{Text: text, Embedding: []float32{0, 1, 0}})
		require.NoError(t, err)
	}

	results, err := store.Search(ctx, []float32{0, 1, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "older", results[0].Entity.Text)
	assert.Equal(t, "middle", results[1].Entity.Text)
}

func TestSqliteStore_Count(t *testing.T) {
	store := newTestSqliteStore(t)
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
