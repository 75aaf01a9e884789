package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hybriddocs/hybridstore/pkg/types"
)

func TestSearchText(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, []*types.Document{
		{ID: "fox", Content: "The quick brown fox jumps over the lazy dog"},
		{ID: "elephant", Content: "An elephant never forgets its way home"},
	})
	require.NoError(t, err)

	t.Run("match returns only relevant documents", func(t *testing.T) {
		hits, err := store.SearchText(ctx, "fox", 10, nil)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "fox", hits[0].Document.ID)
		assert.Greater(t, hits[0].Score, 0.0)
		assert.LessOrEqual(t, hits[0].Score, 1.0)
		assert.NotEmpty(t, hits[0].Snippet)
	})

	t.Run("no match returns empty, not error", func(t *testing.T) {
		hits, err := store.SearchText(ctx, "zebra", 10, nil)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("empty query is rejected", func(t *testing.T) {
		_, err := store.SearchText(ctx, "  ", 10, nil)
		assert.ErrorIs(t, err, types.ErrEmptyQuery)
	})

	t.Run("operator characters are treated literally", func(t *testing.T) {
		// Must not produce an FTS5 syntax error
		hits, err := store.SearchText(ctx, `fox AND) "dog`, 10, nil)
		require.NoError(t, err)
		assert.NotEmpty(t, hits)
	})
}

func TestShadowIndexConsistency(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	id, err := store.AddDocument(ctx, &types.Document{Content: "alpha original text"})
	require.NoError(t, err)

	hits, err := store.SearchText(ctx, "alpha", 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	// After an update the old terms must stop matching and the new ones start
	updated, err := store.UpdateDocument(ctx, id, &types.Document{Content: "bravo replacement text"})
	require.NoError(t, err)
	require.True(t, updated)

	hits, err = store.SearchText(ctx, "alpha", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, hits, "stale shadow row must not match")

	hits, err = store.SearchText(ctx, "bravo", 10, nil)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	// After a delete nothing matches
	deleted, err := store.DeleteDocument(ctx, id)
	require.NoError(t, err)
	require.True(t, deleted)

	hits, err = store.SearchText(ctx, "bravo", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchTextFilterBeforeTruncation(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	// Many matching documents of which only the last few carry the wanted
	// category. With filter-after-truncate a small limit would return none.
	docs := make([]*types.Document, 0, 20)
	for i := 0; i < 20; i++ {
		category := "common"
		if i >= 17 {
			category = "rare"
		}
		docs = append(docs, &types.Document{
			Content:  "shared keyword payload",
			Metadata: map[string]any{"category": category},
		})
	}
	_, err := store.AddDocuments(ctx, docs)
	require.NoError(t, err)

	hits, err := store.SearchText(ctx, "keyword", 2, types.SearchFilter{"category": "rare"})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, hit := range hits {
		assert.Equal(t, "rare", hit.Document.Metadata["category"])
	}
}

func TestSearchVector(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, []*types.Document{
		{ID: "x-axis", Content: "doc a", Embedding: []float32{1, 0, 0}},
		{ID: "y-axis", Content: "doc b", Embedding: []float32{0, 1, 0}},
		{ID: "no-vector", Content: "doc c"},
	})
	require.NoError(t, err)

	t.Run("ranked by similarity descending", func(t *testing.T) {
		hits, err := store.SearchVector(ctx, []float32{1, 0, 0}, 10, nil)
		require.NoError(t, err)
		require.Len(t, hits, 2, "documents without embeddings are excluded")

		assert.Equal(t, "x-axis", hits[0].Document.ID)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
		assert.Equal(t, "y-axis", hits[1].Document.ID)
		assert.InDelta(t, 0.0, hits[1].Score, 1e-6)
	})

	t.Run("wrong query dimension is rejected", func(t *testing.T) {
		_, err := store.SearchVector(ctx, []float32{1, 0}, 10, nil)
		assert.ErrorIs(t, err, types.ErrDimensionMismatch)
	})

	t.Run("score threshold cuts weak matches", func(t *testing.T) {
		thresholdStore := newTestStore(t, func(cfg *Config) {
			cfg.ScoreThreshold = 0.5
		})
		_, err := thresholdStore.AddDocuments(ctx, []*types.Document{
			{ID: "near", Content: "close", Embedding: []float32{1, 0.1, 0}},
			{ID: "far", Content: "distant", Embedding: []float32{0, 1, 0}},
		})
		require.NoError(t, err)

		hits, err := thresholdStore.SearchVector(ctx, []float32{1, 0, 0}, 10, nil)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "near", hits[0].Document.ID)
	})

	t.Run("limit truncates after sorting", func(t *testing.T) {
		hits, err := store.SearchVector(ctx, []float32{1, 0, 0}, 1, nil)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "x-axis", hits[0].Document.ID)
	})
}

func TestSearchSubstring(t *testing.T) {
	store := newTestStore(t, func(cfg *Config) {
		cfg.FTSEnabled = false
	})
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, []*types.Document{
		{ID: "single", Content: "one needle here", Title: "plain"},
		{ID: "many", Content: "needle needle needle needle needle", Title: "needle"},
		{ID: "none", Content: "nothing relevant"},
	})
	require.NoError(t, err)

	t.Run("case-insensitive with occurrence scoring", func(t *testing.T) {
		hits, err := store.SearchSubstring(ctx, "NEEDLE", 10, nil)
		require.NoError(t, err)
		require.Len(t, hits, 2)

		// 6 occurrences (5 content + 1 title) beats 1 occurrence
		assert.Equal(t, "many", hits[0].Document.ID)
		assert.InDelta(t, 0.6, hits[0].Score, 1e-9)
		assert.Equal(t, "single", hits[1].Document.ID)
		assert.InDelta(t, 0.1, hits[1].Score, 1e-9)
	})

	t.Run("score is capped at 1", func(t *testing.T) {
		_, err := store.AddDocument(ctx, &types.Document{
			ID:      "spam",
			Content: "w w w w w w w w w w w w w w w w w w w w",
		})
		require.NoError(t, err)

		hits, err := store.SearchSubstring(ctx, "w", 10, nil)
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.Equal(t, 1.0, hits[0].Score)
	})

	t.Run("text search falls back to error when index disabled", func(t *testing.T) {
		_, err := store.SearchText(ctx, "needle", 10, nil)
		assert.ErrorIs(t, err, types.ErrUnsupportedMode)
	})
}

func TestBuildFTSQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"single term", "fox", `"fox"`},
		{"multiple terms OR-joined", "quick fox", `"quick" OR "fox"`},
		{"operator characters quoted", "a AND b", `"a" OR "AND" OR "b"`},
		{"quoted input kept as phrase", `"quick fox"`, `"quick fox"`},
		{"embedded quotes escaped", `say "hi"`, `"say" OR """hi"""`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildFTSQuery(tt.input))
		})
	}
}

func TestRebuildFTS(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, []*types.Document{
		{Content: "resilient index entry"},
		{Content: "another resilient entry"},
	})
	require.NoError(t, err)

	require.NoError(t, store.RebuildFTS(ctx))

	hits, err := store.SearchText(ctx, "resilient", 10, nil)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestRecordAndReadSearchHistory(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	store.RecordSearch(ctx, types.SearchRecord{
		Query:           "first",
		SearchType:      types.SearchModeFullText,
		ResultsCount:    3,
		ExecutionTimeMS: 1.25,
	})
	store.RecordSearch(ctx, types.SearchRecord{
		Query:           "second",
		SearchType:      types.SearchModeHybrid,
		ResultsCount:    1,
		ExecutionTimeMS: 4.5,
	})

	records, err := store.RecentSearches(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	queries := []string{records[0].Query, records[1].Query}
	assert.ElementsMatch(t, []string{"first", "second"}, queries)
	counts := []int{records[0].ResultsCount, records[1].ResultsCount}
	assert.ElementsMatch(t, []int{3, 1}, counts)
}
