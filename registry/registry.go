// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gantry-project/gantry/lib/schema"
)

// Driver names accepted by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Store persists controller state snapshots. Implementations are safe
// for concurrent use.
type Store interface {
	// Persist durably stores the snapshot, replacing any previously
	// persisted one.
	Persist(ctx context.Context, snapshot *schema.StateSnapshot) error

	// Load returns the most recently persisted snapshot, or (nil, nil)
	// when nothing has ever been persisted.
	Load(ctx context.Context) (*schema.StateSnapshot, error)

	// Close releases underlying resources. The store must not be used
	// after Close.
	Close() error
}

// Config holds the parameters for opening a snapshot store.
type Config struct {
	// Driver selects the storage backend: "file" or "sqlite".
	// Defaults to "file".
	Driver string

	// Path is the snapshot file path (file driver) or database file
	// path (sqlite driver). Required. The parent directory must
	// exist.
	Path string

	// Compression names the body compression: "none", "lz4", or
	// "zstd". Defaults to "zstd".
	Compression string

	// PoolSize is the SQLite connection pool size. Ignored by the
	// file driver. Defaults to 2: one writer plus an occasional
	// reader.
	PoolSize int

	// ReadOnly opens the store for loading only: Persist fails, and
	// the sqlite driver neither creates a missing database nor runs
	// schema statements. Inspection tools set this so reading a
	// registry the controller is writing can never modify it.
	ReadOnly bool

	// Logger receives operational messages. If nil, a no-op logger
	// is used.
	Logger *slog.Logger
}

// Open creates the snapshot store named by the configuration.
func Open(cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFile
	}
	switch driver {
	case DriverFile:
		return OpenFile(cfg)
	case DriverSQLite:
		return OpenSQLite(cfg)
	default:
		return nil, fmt.Errorf("registry: unknown driver %q (supported: file, sqlite)", cfg.Driver)
	}
}

// resolveCommon validates the fields shared by both drivers and
// applies defaults.
func resolveCommon(cfg Config) (CompressionTag, *slog.Logger, error) {
	if cfg.Path == "" {
		return 0, nil, fmt.Errorf("registry: Path is required")
	}

	compression := cfg.Compression
	if compression == "" {
		compression = "zstd"
	}
	tag, err := ParseCompressionTag(compression)
	if err != nil {
		return 0, nil, fmt.Errorf("registry: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return tag, logger, nil
}

// Summarize returns the log attributes describing a snapshot: record
// counts keyed the way persist and restore log lines report them.
func Summarize(snapshot *schema.StateSnapshot) []any {
	return []any{
		"members", len(snapshot.Members),
		"clusters", len(snapshot.Clusters),
		"backend_clusters", len(snapshot.BackendClusters),
	}
}
