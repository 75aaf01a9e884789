package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hybriddocs/hybridstore/pkg/types"
)

// newTestStore opens a store on a temp file. Memory databases are avoided
// because each pooled connection would see its own empty database.
func newTestStore(t *testing.T, mutate func(*Config)) *Store {
	t.Helper()

	cfg := DefaultConfig(filepath.Join(t.TempDir(), "test.db"))
	cfg.VectorDimension = 3
	if mutate != nil {
		mutate(&cfg)
	}

	store, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	cfg := DefaultConfig(path)
	cfg.VectorDimension = 3

	store, err := Open(cfg)
	require.NoError(t, err)

	_, err = store.AddDocument(context.Background(), &types.Document{Content: "persisted"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Second open against the same file must not fail or lose data
	store, err = Open(cfg)
	require.NoError(t, err)
	defer store.Close()

	count, err := store.CountDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAddGetRoundTrip(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	doc := &types.Document{
		Content:   "the quick brown fox",
		Title:     "Fox",
		Metadata:  map[string]any{"category": "animals", "year": 2024},
		Embedding: []float32{0.1, 0.2, 0.3},
	}

	id, err := store.AddDocument(ctx, doc)
	require.NoError(t, err)
	require.NotEmpty(t, id, "empty id must be assigned")

	got, err := store.GetDocument(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, id, got.ID)
	assert.Equal(t, doc.Content, got.Content)
	assert.Equal(t, doc.Title, got.Title)
	assert.Equal(t, doc.Embedding, got.Embedding)
	assert.Equal(t, "animals", got.Metadata["category"])
	// JSON round-trip: numbers come back as float64
	assert.Equal(t, float64(2024), got.Metadata["year"])
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestAddDocumentUpsert(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	_, err := store.AddDocument(ctx, &types.Document{ID: "dup", Content: "first"})
	require.NoError(t, err)

	_, err = store.AddDocument(ctx, &types.Document{ID: "dup", Content: "second"})
	require.NoError(t, err)

	count, err := store.CountDocuments(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := store.GetDocument(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Content)
}

func TestUpsertPreservesCreatedAt(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	first := &types.Document{ID: "keep", Content: "first version"}
	_, err := store.AddDocument(ctx, first)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	second := &types.Document{ID: "keep", Content: "second version"}
	_, err = store.AddDocument(ctx, second)
	require.NoError(t, err)

	got, err := store.GetDocument(ctx, "keep")
	require.NoError(t, err)

	// The overwrite keeps the original creation time, and the caller's copy
	// agrees with the stored row
	assert.WithinDuration(t, first.CreatedAt, got.CreatedAt, time.Millisecond)
	assert.True(t, second.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func TestAddDocumentValidation(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	t.Run("empty content rejected", func(t *testing.T) {
		_, err := store.AddDocument(ctx, &types.Document{Content: "   "})
		assert.ErrorIs(t, err, types.ErrEmptyContent)
	})

	t.Run("wrong dimension rejected and nothing written", func(t *testing.T) {
		before, err := store.CountDocuments(ctx, nil)
		require.NoError(t, err)

		_, err = store.AddDocument(ctx, &types.Document{
			Content:   "has a bad embedding",
			Embedding: []float32{1, 2}, // store wants 3
		})
		assert.ErrorIs(t, err, types.ErrDimensionMismatch)

		after, err := store.CountDocuments(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, before, after, "failed insert must not change the count")
	})
}

func TestGetDocumentNotFound(t *testing.T) {
	store := newTestStore(t, nil)

	_, err := store.GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestUpdateDocument(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	id, err := store.AddDocument(ctx, &types.Document{Content: "original"})
	require.NoError(t, err)

	updated, err := store.UpdateDocument(ctx, id, &types.Document{
		Content:  "revised",
		Metadata: map[string]any{"edited": true},
	})
	require.NoError(t, err)
	assert.True(t, updated)

	got, err := store.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "revised", got.Content)
	assert.Equal(t, true, got.Metadata["edited"])

	t.Run("unknown id reports false without error", func(t *testing.T) {
		updated, err := store.UpdateDocument(ctx, "missing", &types.Document{Content: "x"})
		require.NoError(t, err)
		assert.False(t, updated)
	})
}

func TestDeleteDocumentIdempotent(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	id, err := store.AddDocument(ctx, &types.Document{Content: "to delete"})
	require.NoError(t, err)

	deleted, err := store.DeleteDocument(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	// Second delete of the same id: no error, reported as a no-op
	deleted, err = store.DeleteDocument(ctx, id)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = store.GetDocument(ctx, id)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestAddDocumentsBatchAtomicity(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	t.Run("invalid member aborts the whole batch", func(t *testing.T) {
		docs := []*types.Document{
			{Content: "first"},
			{Content: "second", Embedding: []float32{1, 2}}, // wrong dimension
			{Content: "third"},
		}

		_, err := store.AddDocuments(ctx, docs)
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrDimensionMismatch)

		count, err := store.CountDocuments(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, count, "no document of a failed batch may be visible")
	})

	t.Run("valid batch commits all members", func(t *testing.T) {
		docs := []*types.Document{
			{Content: "alpha"},
			{Content: "bravo"},
			{Content: "charlie"},
		}

		ids, err := store.AddDocuments(ctx, docs)
		require.NoError(t, err)
		require.Len(t, ids, 3)

		count, err := store.CountDocuments(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		ids, err := store.AddDocuments(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}

func TestListDocuments(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	for i, category := range []string{"a", "b", "a", "b", "a"} {
		_, err := store.AddDocument(ctx, &types.Document{
			ID:       string(rune('0' + i)),
			Content:  "doc " + category,
			Metadata: map[string]any{"category": category},
		})
		require.NoError(t, err)
	}

	t.Run("paging without filter", func(t *testing.T) {
		docs, err := store.ListDocuments(ctx, 0, 2, nil)
		require.NoError(t, err)
		assert.Len(t, docs, 2)

		rest, err := store.ListDocuments(ctx, 2, 0, nil)
		require.NoError(t, err)
		assert.Len(t, rest, 3)
	})

	t.Run("filter applies before paging", func(t *testing.T) {
		docs, err := store.ListDocuments(ctx, 1, 10, types.SearchFilter{"category": "a"})
		require.NoError(t, err)
		// 3 documents match "a"; offset 1 leaves 2
		assert.Len(t, docs, 2)
		for _, doc := range docs {
			assert.Equal(t, "a", doc.Metadata["category"])
		}
	})

	t.Run("offset past the end returns empty", func(t *testing.T) {
		docs, err := store.ListDocuments(ctx, 100, 10, types.SearchFilter{"category": "a"})
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}

func TestCountDocumentsWithFilter(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, []*types.Document{
		{Content: "x", Metadata: map[string]any{"lang": "go"}},
		{Content: "y", Metadata: map[string]any{"lang": "rust"}},
		{Content: "z", Metadata: map[string]any{"lang": "go"}},
	})
	require.NoError(t, err)

	count, err := store.CountDocuments(ctx, types.SearchFilter{"lang": "go"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestGetStats(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, []*types.Document{
		{Content: "embedded", Embedding: []float32{1, 0, 0}},
		{Content: "plain text only"},
	})
	require.NoError(t, err)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.TotalDocuments)
	assert.Equal(t, int64(1), stats.EmbeddedDocuments)
	assert.Greater(t, stats.TotalSizeBytes, int64(0))
	assert.Greater(t, stats.DatabaseSizeMB, 0.0)
	assert.Equal(t, BuildMode, stats.BuildMode)
	assert.False(t, stats.LastUpdated.IsZero())
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	store := newTestStore(t, nil)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "second close must be a no-op")

	ctx := context.Background()
	_, err := store.AddDocument(ctx, &types.Document{Content: "x"})
	assert.ErrorIs(t, err, types.ErrStoreClosed)

	_, err = store.GetDocument(ctx, "x")
	assert.ErrorIs(t, err, types.ErrStoreClosed)

	_, err = store.CountDocuments(ctx, nil)
	assert.ErrorIs(t, err, types.ErrStoreClosed)
}

func TestOptimize(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	_, err := store.AddDocument(ctx, &types.Document{Content: "some content"})
	require.NoError(t, err)

	require.NoError(t, store.Optimize(ctx))
}
