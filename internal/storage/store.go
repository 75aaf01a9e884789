package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hybriddocs/hybridstore/pkg/types"
)

// Store persists, indexes and searches documents in a single SQLite file.
// Each logical operation acquires exactly one pooled connection for its
// duration and releases it on every exit path.
type Store struct {
	cfg    Config
	pool   *Pool
	log    *zap.Logger
	closed atomic.Bool
}

// Open validates the configuration, opens the pool and idempotently
// initializes the schema.
func Open(cfg Config) (*Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := NewPool(cfg)
	if err != nil {
		return nil, err
	}

	s := &Store{cfg: cfg, pool: pool, log: cfg.Logger}

	ctx := context.Background()
	conn, err := pool.Acquire(ctx)
	if err != nil {
		_ = pool.Close()
		return nil, err
	}
	err = ApplyMigrations(ctx, conn, cfg)
	pool.Release(conn)
	if err != nil {
		_ = pool.Close()
		return nil, types.WrapStorage("initialize", err)
	}

	return s, nil
}

// Config returns the collection configuration the store was opened with.
func (s *Store) Config() Config {
	return s.cfg
}

// Close shuts the pool down. Safe to call more than once.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.pool.Close()
}

// querier is satisfied by *sql.Conn and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// dimension returns the enforced embedding length, 0 when vector search is
// disabled (no check).
func (s *Store) dimension() int {
	if !s.cfg.VectorEnabled {
		return 0
	}
	return s.cfg.VectorDimension
}

const upsertDocumentSQL = `
	INSERT INTO documents (id, content, title, metadata, embedding, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		content = excluded.content,
		title = excluded.title,
		metadata = excluded.metadata,
		embedding = excluded.embedding,
		updated_at = excluded.updated_at
	RETURNING created_at
`

// AddDocument inserts a document, overwriting any existing row with the same
// id (upsert). A missing id is assigned a UUID. Validation happens before
// any write; the full-text shadow row is written in the same transaction.
func (s *Store) AddDocument(ctx context.Context, doc *types.Document) (string, error) {
	if s.closed.Load() {
		return "", types.ErrStoreClosed
	}
	if doc == nil {
		return "", types.NewValidationError("document", fmt.Errorf("document is nil"))
	}
	if err := doc.Validate(s.dimension()); err != nil {
		return "", err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer s.pool.Release(conn)

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return "", types.WrapStorage("add_document", err)
	}
	defer func() { _ = tx.Rollback() }()

	id, err := s.writeDocument(ctx, tx, doc)
	if err != nil {
		return "", types.WrapStorage("add_document", err)
	}
	if err := tx.Commit(); err != nil {
		return "", types.WrapStorage("add_document", err)
	}
	return id, nil
}

// AddDocuments inserts a batch in a single transaction. Every document is
// validated before the first write; the first invalid document aborts the
// whole batch, so either all rows commit or none do.
func (s *Store) AddDocuments(ctx context.Context, docs []*types.Document) ([]string, error) {
	if s.closed.Load() {
		return nil, types.ErrStoreClosed
	}
	if len(docs) == 0 {
		return nil, nil
	}

	dim := s.dimension()
	for i, doc := range docs {
		if doc == nil {
			return nil, types.NewValidationError("document", fmt.Errorf("document %d is nil", i))
		}
		if err := doc.Validate(dim); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Release(conn)

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, types.WrapStorage("add_documents", err)
	}
	defer func() { _ = tx.Rollback() }()

	upsert, err := tx.PrepareContext(ctx, upsertDocumentSQL)
	if err != nil {
		return nil, types.WrapStorage("add_documents", err)
	}
	defer func() { _ = upsert.Close() }()

	now := time.Now().UTC()
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}
		meta, err := encodeMetadata(doc.Metadata)
		if err != nil {
			return nil, types.WrapStorage("add_documents", err)
		}
		// RETURNING hands back the stored created_at, which the conflict
		// clause preserves when the id already existed
		if err := upsert.QueryRowContext(ctx,
			doc.ID, doc.Content, nullString(doc.Title), meta,
			EncodeVector(doc.Embedding), now, now).Scan(&doc.CreatedAt); err != nil {
			return nil, types.WrapStorage("add_documents", err)
		}
		if err := s.syncShadow(ctx, tx, doc.ID, doc.Content, doc.Title); err != nil {
			return nil, types.WrapStorage("add_documents", err)
		}
		doc.UpdatedAt = now
		ids = append(ids, doc.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, types.WrapStorage("add_documents", err)
	}
	return ids, nil
}

// UpdateDocument rewrites all mutable fields of an existing document and
// refreshes updated_at. Returns (false, nil) when the id is unknown.
func (s *Store) UpdateDocument(ctx context.Context, id string, doc *types.Document) (bool, error) {
	if s.closed.Load() {
		return false, types.ErrStoreClosed
	}
	if doc == nil {
		return false, types.NewValidationError("document", fmt.Errorf("document is nil"))
	}
	if err := doc.Validate(s.dimension()); err != nil {
		return false, err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, err
	}
	defer s.pool.Release(conn)

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return false, types.WrapStorage("update_document", err)
	}
	defer func() { _ = tx.Rollback() }()

	meta, err := encodeMetadata(doc.Metadata)
	if err != nil {
		return false, types.WrapStorage("update_document", err)
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE documents
		SET content = ?, title = ?, metadata = ?, embedding = ?, updated_at = ?
		WHERE id = ?
	`, doc.Content, nullString(doc.Title), meta, EncodeVector(doc.Embedding), now, id)
	if err != nil {
		return false, types.WrapStorage("update_document", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, types.WrapStorage("update_document", err)
	}
	if rows == 0 {
		return false, nil
	}

	if err := s.syncShadow(ctx, tx, id, doc.Content, doc.Title); err != nil {
		return false, types.WrapStorage("update_document", err)
	}
	if err := tx.Commit(); err != nil {
		return false, types.WrapStorage("update_document", err)
	}

	doc.ID = id
	doc.UpdatedAt = now
	return true, nil
}

// DeleteDocument removes the row and its shadow-index entry together.
// Idempotent: deleting an unknown id returns (false, nil), never an error.
func (s *Store) DeleteDocument(ctx context.Context, id string) (bool, error) {
	if s.closed.Load() {
		return false, types.ErrStoreClosed
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, err
	}
	defer s.pool.Release(conn)

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return false, types.WrapStorage("delete_document", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return false, types.WrapStorage("delete_document", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, types.WrapStorage("delete_document", err)
	}
	if rows == 0 {
		return false, nil
	}

	if s.cfg.FTSEnabled {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents_fts WHERE doc_id = ?`, id); err != nil {
			return false, types.WrapStorage("delete_document", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, types.WrapStorage("delete_document", err)
	}
	return true, nil
}

const selectDocumentSQL = `
	SELECT id, content, title, metadata, embedding, created_at, updated_at
	FROM documents
`

// GetDocument fetches a document by id. Returns ErrNotFound when absent.
func (s *Store) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	if s.closed.Load() {
		return nil, types.ErrStoreClosed
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Release(conn)

	row := conn.QueryRowContext(ctx, selectDocumentSQL+` WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, types.WrapStorage("get_document", err)
	}
	return doc, nil
}

// ListDocuments returns documents ordered by creation time. The metadata
// filter is applied before offset/limit so paging never starves a filtered
// listing.
func (s *Store) ListDocuments(ctx context.Context, offset, limit int, filter types.SearchFilter) ([]*types.Document, error) {
	if s.closed.Load() {
		return nil, types.ErrStoreClosed
	}
	if offset < 0 {
		offset = 0
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Release(conn)

	if len(filter) == 0 {
		sqlLimit := limit
		if sqlLimit <= 0 {
			sqlLimit = -1 // SQLite convention for "no limit"
		}
		rows, err := conn.QueryContext(ctx,
			selectDocumentSQL+` ORDER BY created_at, id LIMIT ? OFFSET ?`, sqlLimit, offset)
		if err != nil {
			return nil, types.WrapStorage("list_documents", err)
		}
		return collectDocuments(rows)
	}

	rows, err := conn.QueryContext(ctx, selectDocumentSQL+` ORDER BY created_at, id`)
	if err != nil {
		return nil, types.WrapStorage("list_documents", err)
	}
	all, err := collectDocuments(rows)
	if err != nil {
		return nil, err
	}

	matched := make([]*types.Document, 0, len(all))
	for _, doc := range all {
		if filter.Matches(doc.Metadata) {
			matched = append(matched, doc)
		}
	}
	if offset >= len(matched) {
		return []*types.Document{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// CountDocuments counts documents, optionally restricted by metadata filter.
func (s *Store) CountDocuments(ctx context.Context, filter types.SearchFilter) (int, error) {
	if s.closed.Load() {
		return 0, types.ErrStoreClosed
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Release(conn)

	if len(filter) == 0 {
		var count int
		if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
			return 0, types.WrapStorage("count_documents", err)
		}
		return count, nil
	}

	rows, err := conn.QueryContext(ctx, `SELECT metadata FROM documents`)
	if err != nil {
		return 0, types.WrapStorage("count_documents", err)
	}
	defer func() { _ = rows.Close() }()

	count := 0
	for rows.Next() {
		var meta sql.NullString
		if err := rows.Scan(&meta); err != nil {
			return 0, types.WrapStorage("count_documents", err)
		}
		metadata, err := decodeMetadata(meta)
		if err != nil {
			return 0, types.WrapStorage("count_documents", err)
		}
		if filter.Matches(metadata) {
			count++
		}
	}
	if err := rows.Err(); err != nil {
		return 0, types.WrapStorage("count_documents", err)
	}
	return count, nil
}

// GetStats computes collection statistics and refreshes the document_stats
// row as a side effect.
func (s *Store) GetStats(ctx context.Context) (*types.Stats, error) {
	if s.closed.Load() {
		return nil, types.ErrStoreClosed
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Release(conn)

	stats := &types.Stats{BuildMode: BuildMode, LastUpdated: time.Now().UTC()}
	err = conn.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(LENGTH(content)), 0), COUNT(embedding)
		FROM documents
	`).Scan(&stats.TotalDocuments, &stats.TotalSizeBytes, &stats.EmbeddedDocuments)
	if err != nil {
		return nil, types.WrapStorage("get_stats", err)
	}

	var pageCount, pageSize int64
	if err := conn.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = conn.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.DatabaseSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	_, err = conn.ExecContext(ctx, `
		UPDATE document_stats
		SET total_documents = ?, total_size_bytes = ?, last_updated = ?
		WHERE id = 1
	`, stats.TotalDocuments, stats.TotalSizeBytes, stats.LastUpdated)
	if err != nil {
		return nil, types.WrapStorage("get_stats", err)
	}

	return stats, nil
}

// writeDocument upserts one document plus its shadow row inside tx.
func (s *Store) writeDocument(ctx context.Context, tx *sql.Tx, doc *types.Document) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	meta, err := encodeMetadata(doc.Metadata)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	// RETURNING hands back the stored created_at, which the conflict clause
	// preserves when the id already existed
	if err := tx.QueryRowContext(ctx, upsertDocumentSQL,
		doc.ID, doc.Content, nullString(doc.Title), meta,
		EncodeVector(doc.Embedding), now, now).Scan(&doc.CreatedAt); err != nil {
		return "", err
	}
	if err := s.syncShadow(ctx, tx, doc.ID, doc.Content, doc.Title); err != nil {
		return "", err
	}
	doc.UpdatedAt = now
	return doc.ID, nil
}

// syncShadow rewrites the full-text shadow row for a document. Called from
// every mutation path inside the mutation's own transaction, so the shadow
// index is a pure function of the primary table at every commit.
func (s *Store) syncShadow(ctx context.Context, q querier, id, content, title string) error {
	if !s.cfg.FTSEnabled {
		return nil
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM documents_fts WHERE doc_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear shadow row: %w", err)
	}
	if _, err := q.ExecContext(ctx,
		`INSERT INTO documents_fts (doc_id, content, title) VALUES (?, ?, ?)`,
		id, content, title); err != nil {
		return fmt.Errorf("failed to write shadow row: %w", err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*types.Document, error) {
	var doc types.Document
	var title, meta sql.NullString
	var embedding []byte

	err := row.Scan(&doc.ID, &doc.Content, &title, &meta, &embedding,
		&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if title.Valid {
		doc.Title = title.String
	}
	doc.Metadata, err = decodeMetadata(meta)
	if err != nil {
		return nil, err
	}
	doc.Embedding = DecodeVector(embedding)
	return &doc, nil
}

func collectDocuments(rows *sql.Rows) ([]*types.Document, error) {
	defer func() { _ = rows.Close() }()

	docs := make([]*types.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, types.WrapStorage("scan", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapStorage("scan", err)
	}
	return docs, nil
}

// encodeMetadata serializes the metadata map to JSON text, nil for empty.
func encodeMetadata(metadata map[string]any) (interface{}, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(data), nil
}

// decodeMetadata deserializes stored metadata; never assumes specific keys.
func decodeMetadata(raw sql.NullString) (map[string]any, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal([]byte(raw.String), &metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return metadata, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
