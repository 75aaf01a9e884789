package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/hybriddocs/hybridstore/pkg/types"
)

// RecordSearch appends one row to the search log. Analytics failures are
// logged and swallowed so a broken log never fails a search.
func (s *Store) RecordSearch(ctx context.Context, rec types.SearchRecord) {
	if s.closed.Load() {
		return
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		s.log.Warn("search analytics write skipped", zap.Error(err))
		return
	}
	defer s.pool.Release(conn)

	_, err = conn.ExecContext(ctx, `
		INSERT INTO search_history (query, search_type, results_count, execution_time_ms, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, rec.Query, rec.SearchType, rec.ResultsCount, rec.ExecutionTimeMS, rec.Timestamp)
	if err != nil {
		s.log.Warn("search analytics write failed",
			zap.String("query", rec.Query),
			zap.Error(err))
	}
}

// RecentSearches returns the newest log entries, most recent first.
func (s *Store) RecentSearches(ctx context.Context, limit int) ([]types.SearchRecord, error) {
	if s.closed.Load() {
		return nil, types.ErrStoreClosed
	}
	if limit <= 0 {
		limit = 10
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Release(conn)

	rows, err := conn.QueryContext(ctx, `
		SELECT query, search_type, results_count, execution_time_ms, timestamp
		FROM search_history
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, types.WrapStorage("recent_searches", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]types.SearchRecord, 0, limit)
	for rows.Next() {
		var rec types.SearchRecord
		if err := rows.Scan(&rec.Query, &rec.SearchType, &rec.ResultsCount,
			&rec.ExecutionTimeMS, &rec.Timestamp); err != nil {
			return nil, types.WrapStorage("recent_searches", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapStorage("recent_searches", err)
	}
	return records, nil
}
