// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Config holds the parameters for opening a connection pool.
type Config struct {
	// Path names the database file. Required; the parent directory
	// must exist. A read-write pool creates the file on demand.
	Path string

	// PoolSize caps the number of connections. Defaults to 2, which
	// fits the snapshot workload: one writer plus an occasional
	// concurrent reader.
	PoolSize int

	// ReadOnly opens every connection read-only: statements that
	// modify the database fail, and a missing database file is an
	// error instead of being created. Inspection tools set this so
	// reading a database the controller is actively writing can never
	// disturb it.
	ReadOnly bool

	// Logger receives pool lifecycle messages. Nil discards them.
	Logger *slog.Logger

	// OnConnect runs once per connection after the pragmas, before
	// the connection serves its first statement. Schema creation and
	// custom function registration belong here. An error discards the
	// connection and surfaces from Take.
	OnConnect func(conn *sqlite.Conn) error
}

// connectionPragmas are applied to every read-write connection.
// journal_mode=WAL lets readers proceed alongside the single writer;
// synchronous=NORMAL survives process crashes without an fsync per
// commit.
var connectionPragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=OFF",
	"PRAGMA cache_size=-8192",
	"PRAGMA mmap_size=268435456",
	"PRAGMA temp_store=MEMORY",
}

// readOnlyPragmas is the subset safe on read-only connections.
// journal_mode and synchronous belong to the writer; a reader that
// tried to switch the journal mode would fail with SQLITE_READONLY.
var readOnlyPragmas = []string{
	"PRAGMA busy_timeout=5000",
	"PRAGMA cache_size=-8192",
	"PRAGMA mmap_size=268435456",
	"PRAGMA temp_store=MEMORY",
}

// Pool is a fixed-size set of SQLite connections sharing one database
// file. Take and Put move connections in and out; each connection
// serves one goroutine at a time.
type Pool struct {
	inner  *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// Open opens the database named by the configuration and returns its
// connection pool. Connections are established lazily, so a bad path
// may not surface until the first Take. The caller owns the pool and
// must Close it.
func Open(cfg Config) (*Pool, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlitepool: Path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	size := cfg.PoolSize
	if size <= 0 {
		size = 2
	}

	var flags sqlite.OpenFlags
	if cfg.ReadOnly {
		flags = sqlite.OpenReadOnly | sqlite.OpenWAL | sqlite.OpenURI | sqlite.OpenNoMutex
	}

	inner, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		Flags:    flags,
		PoolSize: size,
		PrepareConn: func(conn *sqlite.Conn) error {
			return prepare(conn, cfg.ReadOnly, cfg.OnConnect)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: opening %s: %w", cfg.Path, err)
	}

	logger.Info("sqlite pool opened",
		"path", cfg.Path,
		"pool_size", size,
		"read_only", cfg.ReadOnly,
	)

	return &Pool{
		inner:  inner,
		logger: logger,
		path:   cfg.Path,
	}, nil
}

// prepare brings a fresh connection up to the pool's standard: the
// pragma set for its mode, then the caller's OnConnect.
func prepare(conn *sqlite.Conn, readOnly bool, onConnect func(*sqlite.Conn) error) error {
	pragmas := connectionPragmas
	if readOnly {
		pragmas = readOnlyPragmas
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlitepool: %s: %w", pragma, err)
		}
	}
	if onConnect != nil {
		if err := onConnect(conn); err != nil {
			return fmt.Errorf("sqlitepool: OnConnect: %w", err)
		}
	}
	return nil
}

// Take borrows a connection until ctx is cancelled or one frees up.
// Every successful Take pairs with a Put, usually deferred:
//
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
func (p *Pool) Take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: take: %w", err)
	}
	return conn, nil
}

// Put returns a borrowed connection to the pool. Put of a nil
// connection is a no-op. The connection must not be used afterward.
func (p *Pool) Put(conn *sqlite.Conn) {
	p.inner.Put(conn)
}

// Close waits for borrowed connections to come back and closes them
// all. Take fails after Close.
func (p *Pool) Close() error {
	if err := p.inner.Close(); err != nil {
		p.logger.Error("sqlite pool close failed", "path", p.path, "error", err)
		return fmt.Errorf("sqlitepool: closing %s: %w", p.path, err)
	}
	p.logger.Info("sqlite pool closed", "path", p.path)
	return nil
}
