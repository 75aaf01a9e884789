package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/hybriddocs/hybridstore/pkg/types"
)

// Pool hands out pragma-configured SQLite connections. Acquire pops from a
// free list under a mutex; when the list is empty it transparently opens and
// configures a fresh connection instead of blocking. Release pools up to
// MaxConnections and closes anything beyond the cap. The mutex guards only
// the free list, never SQL execution, so callers run concurrently on
// different connections.
type Pool struct {
	db  *sql.DB
	cfg Config

	mu     sync.Mutex
	free   []*sql.Conn
	closed bool
}

// NewPool opens the database handle backing the pool. No connection is
// established until the first Acquire.
func NewPool(cfg Config) (*Pool, error) {
	db, err := sql.Open(DriverName, cfg.Path)
	if err != nil {
		return nil, types.WrapStorage("open", err)
	}
	// Released connections close instead of idling inside database/sql;
	// the pool's own free list is the only idle set.
	db.SetMaxIdleConns(0)
	db.SetConnMaxLifetime(0)
	return &Pool{db: db, cfg: cfg}, nil
}

// Acquire returns a configured connection, reusing a pooled one when
// available. Open failures are fatal StorageErrors; there is no retry.
func (p *Pool) Acquire(ctx context.Context) (*sql.Conn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, types.ErrStoreClosed
	}
	if n := len(p.free); n > 0 {
		conn := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return conn, nil
	}
	p.mu.Unlock()

	if p.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ConnectTimeout)
		defer cancel()
	}
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, types.WrapStorage("acquire", err)
	}
	if err := applyPragmas(ctx, conn, p.cfg); err != nil {
		_ = conn.Close()
		return nil, types.WrapStorage("acquire", err)
	}
	return conn, nil
}

// Release returns a connection to the pool, or closes it when the pool is
// already at MaxConnections or shut down.
func (p *Pool) Release(conn *sql.Conn) {
	if conn == nil {
		return
	}
	p.mu.Lock()
	if !p.closed && len(p.free) < p.cfg.MaxConnections {
		p.free = append(p.free, conn)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	_ = conn.Close()
}

// Close drains the free list and closes the database handle. Connections
// checked out at the time of the call are closed when released.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	free := p.free
	p.free = nil
	p.mu.Unlock()

	for _, conn := range free {
		_ = conn.Close()
	}
	return p.db.Close()
}

// applyPragmas configures a freshly opened connection. SQLite pragmas are
// per-connection state, so every connection gets the full set.
func applyPragmas(ctx context.Context, conn *sql.Conn, cfg Config) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.ConnectTimeout.Milliseconds()),
		fmt.Sprintf("PRAGMA journal_mode=%s", cfg.JournalMode),
		fmt.Sprintf("PRAGMA synchronous=%s", cfg.Synchronous),
		fmt.Sprintf("PRAGMA cache_size=%d", cfg.CacheSize),
		fmt.Sprintf("PRAGMA page_size=%d", cfg.PageSize),
		fmt.Sprintf("PRAGMA temp_store=%s", cfg.TempStore),
		fmt.Sprintf("PRAGMA mmap_size=%d", cfg.MmapSize),
		fmt.Sprintf("PRAGMA auto_vacuum=%s", cfg.AutoVacuum),
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return nil
}
