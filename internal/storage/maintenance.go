package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/hybriddocs/hybridstore/pkg/types"
)

// freelistVacuumThreshold is the number of free pages above which Optimize
// runs an incremental vacuum.
const freelistVacuumThreshold = 64

// Optimize refreshes the query planner statistics, compacts the full-text
// index and reclaims free pages when enough have accumulated. Safe to call
// on a live store.
func (s *Store) Optimize(ctx context.Context) error {
	if s.closed.Load() {
		return types.ErrStoreClosed
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Release(conn)

	if _, err := conn.ExecContext(ctx, "ANALYZE"); err != nil {
		return types.WrapStorage("optimize", err)
	}

	if s.cfg.FTSEnabled {
		if _, err := conn.ExecContext(ctx,
			`INSERT INTO documents_fts(documents_fts) VALUES('optimize')`); err != nil {
			return types.WrapStorage("optimize", err)
		}
	}

	if s.cfg.AutoVacuum == AutoVacuumIncremental {
		var freePages int64
		if err := conn.QueryRowContext(ctx, "PRAGMA freelist_count").Scan(&freePages); err != nil {
			return types.WrapStorage("optimize", err)
		}
		if freePages > freelistVacuumThreshold {
			s.log.Info("reclaiming free pages", zap.Int64("free_pages", freePages))
			if _, err := conn.ExecContext(ctx, "PRAGMA incremental_vacuum"); err != nil {
				return types.WrapStorage("optimize", err)
			}
		}
	}

	if _, err := s.GetStats(ctx); err != nil {
		return err
	}
	return nil
}

// RebuildFTS drops and repopulates the full-text shadow table from the
// primary table. Recovery path for a shadow index that has drifted, for
// example after a crash mid-checkpoint.
func (s *Store) RebuildFTS(ctx context.Context) error {
	if s.closed.Load() {
		return types.ErrStoreClosed
	}
	if !s.cfg.FTSEnabled {
		return &types.QueryError{Op: "rebuild_fts", Err: types.ErrUnsupportedMode}
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Release(conn)

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return types.WrapStorage("rebuild_fts", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents_fts`); err != nil {
		return types.WrapStorage("rebuild_fts", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents_fts (doc_id, content, title)
		SELECT id, content, COALESCE(title, '') FROM documents
	`); err != nil {
		return types.WrapStorage("rebuild_fts", err)
	}
	if err := tx.Commit(); err != nil {
		return types.WrapStorage("rebuild_fts", err)
	}

	s.log.Info("full-text index rebuilt")
	return nil
}
