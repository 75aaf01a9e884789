package hybridstore

import (
	"context"
	"errors"
	"time"

	"github.com/hybriddocs/hybridstore/internal/searcher"
	"github.com/hybriddocs/hybridstore/internal/storage"
	"github.com/hybriddocs/hybridstore/pkg/types"
)

// Convenience aliases so callers only import this package and pkg/types when
// they need the error helpers.
type (
	Document     = types.Document
	SearchResult = types.SearchResult
	SearchFilter = types.SearchFilter
	SearchMode   = types.SearchMode
	SearchRecord = types.SearchRecord
	Stats        = types.Stats
)

const (
	SearchModeHybrid    = types.SearchModeHybrid
	SearchModeVector    = types.SearchModeVector
	SearchModeFullText  = types.SearchModeFullText
	SearchModeSubstring = types.SearchModeSubstring
)

// SearchRequest describes one search. Only Query or Embedding is required;
// leave Mode empty to let the store pick the strongest applicable mode.
type SearchRequest struct {
	Query     string
	Embedding []float32
	Mode      SearchMode
	Limit     int
	Filter    SearchFilter
	UseCache  bool
}

// SearchResponse carries ranked results plus execution metadata.
type SearchResponse struct {
	Results    []SearchResult
	Mode       SearchMode
	Duration   time.Duration
	CacheHit   bool
	TextHits   int
	VectorHits int
}

// Store is an embedded document collection with hybrid full-text and vector
// search, backed by a single SQLite file. Safe for concurrent use.
type Store struct {
	store    *storage.Store
	searcher *searcher.Searcher
}

// Open opens or creates the collection at cfg.Path and initializes its
// schema. Initialization is idempotent; reopening an existing file with the
// same configuration is a no-op beyond version checks.
func Open(cfg Config) (*Store, error) {
	st, err := storage.Open(cfg.toInternal())
	if err != nil {
		return nil, err
	}
	return &Store{store: st, searcher: searcher.New(st)}, nil
}

// Close releases all database connections. Subsequent calls on the store
// return ErrStoreClosed; Close itself is safe to repeat.
func (s *Store) Close() error {
	return s.store.Close()
}

// Config returns the effective configuration, defaults applied.
func (s *Store) Config() Config {
	return fromInternal(s.store.Config())
}

// AddDocument upserts a single document and returns its id. An empty id is
// assigned a generated UUID; a matching existing id is overwritten.
func (s *Store) AddDocument(ctx context.Context, doc *Document) (string, error) {
	id, err := s.store.AddDocument(ctx, doc)
	if err != nil {
		return "", err
	}
	s.searcher.InvalidateCache()
	return id, nil
}

// AddDocuments upserts a batch atomically: every document is validated
// before the first write and any failure rolls back the whole batch.
func (s *Store) AddDocuments(ctx context.Context, docs []*Document) ([]string, error) {
	ids, err := s.store.AddDocuments(ctx, docs)
	if err != nil {
		return nil, err
	}
	s.searcher.InvalidateCache()
	return ids, nil
}

// UpdateDocument replaces all mutable fields of the document with the given
// id. Returns false with a nil error when the id does not exist.
func (s *Store) UpdateDocument(ctx context.Context, id string, doc *Document) (bool, error) {
	updated, err := s.store.UpdateDocument(ctx, id, doc)
	if err != nil {
		return false, err
	}
	if updated {
		s.searcher.InvalidateCache()
	}
	return updated, nil
}

// DeleteDocument removes the document and its index entries. Idempotent:
// deleting an unknown id returns false with a nil error.
func (s *Store) DeleteDocument(ctx context.Context, id string) (bool, error) {
	deleted, err := s.store.DeleteDocument(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.searcher.InvalidateCache()
	}
	return deleted, nil
}

// GetDocument fetches a document by id. A missing id returns (nil, nil);
// errors are reserved for storage failures.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	doc, err := s.store.GetDocument(ctx, id)
	if errors.Is(err, types.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Search runs a search in the requested (or resolved) mode and returns
// ranked results.
func (s *Store) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	resp, err := s.searcher.Search(ctx, searcher.Request{
		Query:     req.Query,
		Embedding: req.Embedding,
		Mode:      req.Mode,
		Limit:     req.Limit,
		Filter:    req.Filter,
		UseCache:  req.UseCache,
	})
	if err != nil {
		return nil, err
	}
	return &SearchResponse{
		Results:    resp.Results,
		Mode:       resp.Mode,
		Duration:   resp.Duration,
		CacheHit:   resp.CacheHit,
		TextHits:   resp.TextHits,
		VectorHits: resp.VectorHits,
	}, nil
}

// CountDocuments returns the number of documents, optionally restricted by a
// metadata filter.
func (s *Store) CountDocuments(ctx context.Context, filter SearchFilter) (int, error) {
	return s.store.CountDocuments(ctx, filter)
}

// ListDocuments pages through documents ordered by creation time. A metadata
// filter is applied before offset and limit.
func (s *Store) ListDocuments(ctx context.Context, offset, limit int, filter SearchFilter) ([]*Document, error) {
	return s.store.ListDocuments(ctx, offset, limit, filter)
}

// GetStats returns collection statistics, refreshing the persisted stats row
// as a side effect.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	return s.store.GetStats(ctx)
}

// RecentSearches returns the newest entries of the search analytics log.
func (s *Store) RecentSearches(ctx context.Context, limit int) ([]SearchRecord, error) {
	return s.store.RecentSearches(ctx, limit)
}

// Optimize refreshes planner statistics, compacts the full-text index and
// reclaims free pages when enough have accumulated.
func (s *Store) Optimize(ctx context.Context) error {
	return s.store.Optimize(ctx)
}

// RebuildFTS repopulates the full-text index from the primary table.
func (s *Store) RebuildFTS(ctx context.Context) error {
	if err := s.store.RebuildFTS(ctx); err != nil {
		return err
	}
	s.searcher.InvalidateCache()
	return nil
}
