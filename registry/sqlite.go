// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/gantry-project/gantry/lib/schema"
	"github.com/gantry-project/gantry/lib/sqlitepool"
)

// snapshotSchema is the single-row snapshot table. The frame column
// holds the same framed encoding the file driver writes, so database
// rows and snapshot files are interchangeable for inspection tools.
const snapshotSchema = `
	CREATE TABLE IF NOT EXISTS snapshots (
		id       INTEGER PRIMARY KEY CHECK (id = 1),
		taken_at INTEGER NOT NULL,
		frame    BLOB NOT NULL
	);
`

// SQLiteStore persists snapshots in a single-row SQLite table.
type SQLiteStore struct {
	pool     *sqlitepool.Pool
	tag      CompressionTag
	readOnly bool
	logger   *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite creates a SQLite-backed snapshot store. The database
// file is created if it does not exist, unless the store is opened
// read-only; read-only stores also run no schema statements, so a
// database that has never held a snapshot fails on Load rather than
// being silently initialized.
func OpenSQLite(cfg Config) (*SQLiteStore, error) {
	tag, logger, err := resolveCommon(cfg)
	if err != nil {
		return nil, err
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 2
	}

	poolConfig := sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: poolSize,
		ReadOnly: cfg.ReadOnly,
		Logger:   logger,
	}
	if !cfg.ReadOnly {
		poolConfig.OnConnect = func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, snapshotSchema, nil)
		}
	}
	pool, err := sqlitepool.Open(poolConfig)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	return &SQLiteStore{
		pool:     pool,
		tag:      tag,
		readOnly: cfg.ReadOnly,
		logger:   logger,
	}, nil
}

// Persist upserts the snapshot row.
func (s *SQLiteStore) Persist(ctx context.Context, snapshot *schema.StateSnapshot) error {
	if s.readOnly {
		return fmt.Errorf("registry: store opened read-only")
	}
	frame, err := EncodeSnapshot(snapshot, s.tag)
	if err != nil {
		return err
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("registry: persist: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO snapshots (id, taken_at, frame) VALUES (1, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET taken_at = excluded.taken_at, frame = excluded.frame`,
		&sqlitex.ExecOptions{
			Args: []any{snapshot.TakenAt, frame},
		})
	if err != nil {
		return fmt.Errorf("registry: writing snapshot row: %w", err)
	}

	s.logger.Debug("snapshot persisted",
		append([]any{"bytes", len(frame)}, Summarize(snapshot)...)...)
	return nil
}

// Load reads and decodes the snapshot row. Returns (nil, nil) when
// the table is empty.
func (s *SQLiteStore) Load(ctx context.Context) (*schema.StateSnapshot, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: load: %w", err)
	}
	defer s.pool.Put(conn)

	var frame []byte
	err = sqlitex.Execute(conn, "SELECT frame FROM snapshots WHERE id = 1",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				frame = make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, frame)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("registry: reading snapshot row: %w", err)
	}
	if frame == nil {
		return nil, nil
	}
	return DecodeSnapshot(frame)
}

// Close closes the connection pool.
func (s *SQLiteStore) Close() error {
	return s.pool.Close()
}
