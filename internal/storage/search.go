package storage

import (
	"context"
	"database/sql"
	"math"
	"sort"
	"strings"

	"github.com/hybriddocs/hybridstore/pkg/types"
)

// ScoredDocument is one ranked hit from a single search leg. Score semantics
// depend on the leg: BM25-derived for full-text, metric output for vector,
// occurrence-derived for substring.
type ScoredDocument struct {
	Document *types.Document
	Score    float64
	Snippet  string
}

// SearchText runs an FTS5 match over content and title, ranked by BM25.
// Raw rank is negative (lower is better); it is normalized to (0, 1] via
// 1/(1+|rank|). A metadata filter is applied before limit truncation.
func (s *Store) SearchText(ctx context.Context, query string, limit int, filter types.SearchFilter) ([]ScoredDocument, error) {
	if s.closed.Load() {
		return nil, types.ErrStoreClosed
	}
	if !s.cfg.FTSEnabled {
		return nil, &types.QueryError{Op: "search_text", Err: types.ErrUnsupportedMode}
	}
	if strings.TrimSpace(query) == "" {
		return nil, &types.QueryError{Op: "search_text", Err: types.ErrEmptyQuery}
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Release(conn)

	// With a filter the SQL limit is lifted so filtering happens before
	// truncation; without one the database truncates for us.
	sqlLimit := limit
	if len(filter) > 0 || sqlLimit <= 0 {
		sqlLimit = -1
	}

	rows, err := conn.QueryContext(ctx, `
		SELECT d.id, d.content, d.title, d.metadata, d.embedding, d.created_at, d.updated_at,
		       f.rank, snippet(documents_fts, 1, '[', ']', '...', 16)
		FROM documents_fts f
		JOIN documents d ON d.id = f.doc_id
		WHERE documents_fts MATCH ?
		ORDER BY f.rank
		LIMIT ?
	`, buildFTSQuery(query), sqlLimit)
	if err != nil {
		return nil, types.WrapStorage("search_text", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]ScoredDocument, 0, limit)
	for rows.Next() {
		var doc types.Document
		var title, meta sql.NullString
		var embedding []byte
		var rank float64
		var snippet string

		err := rows.Scan(&doc.ID, &doc.Content, &title, &meta, &embedding,
			&doc.CreatedAt, &doc.UpdatedAt, &rank, &snippet)
		if err != nil {
			return nil, types.WrapStorage("search_text", err)
		}
		if title.Valid {
			doc.Title = title.String
		}
		doc.Metadata, err = decodeMetadata(meta)
		if err != nil {
			return nil, types.WrapStorage("search_text", err)
		}
		doc.Embedding = DecodeVector(embedding)

		if len(filter) > 0 && !filter.Matches(doc.Metadata) {
			continue
		}
		results = append(results, ScoredDocument{
			Document: &doc,
			Score:    1.0 / (1.0 + math.Abs(rank)),
			Snippet:  snippet,
		})
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapStorage("search_text", err)
	}
	return results, nil
}

// SearchVector scans all embedded documents, scores them against the query
// vector with the configured metric and returns the top hits sorted by score
// descending. The query vector must match the collection dimension.
func (s *Store) SearchVector(ctx context.Context, vector []float32, limit int, filter types.SearchFilter) ([]ScoredDocument, error) {
	if s.closed.Load() {
		return nil, types.ErrStoreClosed
	}
	if !s.cfg.VectorEnabled {
		return nil, &types.QueryError{Op: "search_vector", Err: types.ErrUnsupportedMode}
	}
	if len(vector) != s.cfg.VectorDimension {
		return nil, types.NewValidationError("query_vector", types.ErrDimensionMismatch)
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Release(conn)

	rows, err := conn.QueryContext(ctx,
		selectDocumentSQL+` WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, types.WrapStorage("search_vector", err)
	}

	docs, err := collectDocuments(rows)
	if err != nil {
		return nil, err
	}

	similarity := SimilarityFor(s.cfg.Metric)
	results := make([]ScoredDocument, 0, len(docs))
	for _, doc := range docs {
		if len(filter) > 0 && !filter.Matches(doc.Metadata) {
			continue
		}
		score := similarity(vector, doc.Embedding)
		if score < s.cfg.ScoreThreshold {
			continue
		}
		results = append(results, ScoredDocument{Document: doc, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// SearchSubstring is the degraded text mode used when the full-text index is
// disabled. Case-insensitive containment over content and title; the score is
// occurrence count divided by 10, capped at 1.
func (s *Store) SearchSubstring(ctx context.Context, query string, limit int, filter types.SearchFilter) ([]ScoredDocument, error) {
	if s.closed.Load() {
		return nil, types.ErrStoreClosed
	}
	if strings.TrimSpace(query) == "" {
		return nil, &types.QueryError{Op: "search_substring", Err: types.ErrEmptyQuery}
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Release(conn)

	rows, err := conn.QueryContext(ctx, selectDocumentSQL)
	if err != nil {
		return nil, types.WrapStorage("search_substring", err)
	}
	docs, err := collectDocuments(rows)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	results := make([]ScoredDocument, 0, limit)
	for _, doc := range docs {
		if len(filter) > 0 && !filter.Matches(doc.Metadata) {
			continue
		}
		occurrences := strings.Count(strings.ToLower(doc.Content), needle) +
			strings.Count(strings.ToLower(doc.Title), needle)
		if occurrences == 0 {
			continue
		}
		results = append(results, ScoredDocument{
			Document: doc,
			Score:    math.Min(1.0, float64(occurrences)/10.0),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// buildFTSQuery turns user input into a safe FTS5 match expression. Input
// already wrapped in double quotes is passed through as a phrase query;
// anything else is split on whitespace and each term is quoted so FTS5
// operator characters are treated literally, then OR-joined.
func buildFTSQuery(query string) string {
	query = strings.TrimSpace(query)
	if len(query) >= 2 && strings.HasPrefix(query, `"`) && strings.HasSuffix(query, `"`) {
		inner := query[1 : len(query)-1]
		return `"` + strings.ReplaceAll(inner, `"`, `""`) + `"`
	}

	terms := strings.Fields(query)
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		quoted = append(quoted, `"`+strings.ReplaceAll(term, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " OR ")
}
