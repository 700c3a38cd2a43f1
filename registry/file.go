// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gantry-project/gantry/lib/schema"
)

// FileStore persists snapshots as one framed file, replaced atomically
// on every persist. Readers and crashed writers never observe a
// partial snapshot: the new frame is written to a temporary file in
// the same directory, fsynced, and renamed into place.
type FileStore struct {
	path     string
	tag      CompressionTag
	readOnly bool
	logger   *slog.Logger
}

var _ Store = (*FileStore)(nil)

// OpenFile creates a file-backed snapshot store. The snapshot file
// itself need not exist yet; its parent directory must.
func OpenFile(cfg Config) (*FileStore, error) {
	tag, logger, err := resolveCommon(cfg)
	if err != nil {
		return nil, err
	}
	return &FileStore{
		path:     cfg.Path,
		tag:      tag,
		readOnly: cfg.ReadOnly,
		logger:   logger,
	}, nil
}

// Persist atomically replaces the snapshot file. The file is created
// with mode 0600.
func (s *FileStore) Persist(ctx context.Context, snapshot *schema.StateSnapshot) error {
	if s.readOnly {
		return fmt.Errorf("registry: store opened read-only")
	}
	frame, err := EncodeSnapshot(snapshot, s.tag)
	if err != nil {
		return err
	}

	temporaryPath := s.path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("registry: creating temporary snapshot file: %w", err)
	}

	// Write, sync, close, in that order. If any step fails, remove
	// the temporary file and report the first error.
	if _, err := file.Write(frame); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("registry: writing temporary snapshot file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("registry: syncing temporary snapshot file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("registry: closing temporary snapshot file: %w", err)
	}

	if err := os.Rename(temporaryPath, s.path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("registry: renaming snapshot file into place: %w", err)
	}

	// Sync the parent directory so the rename survives power loss
	// between the rename and the OS flushing directory metadata.
	parentDirectory, err := os.Open(filepath.Dir(s.path))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}

	s.logger.Debug("snapshot persisted",
		append([]any{"path", s.path, "bytes", len(frame)}, Summarize(snapshot)...)...)
	return nil
}

// Load reads and decodes the snapshot file. Returns (nil, nil) when
// the file does not exist.
func (s *FileStore) Load(ctx context.Context) (*schema.StateSnapshot, error) {
	frame, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("registry: reading snapshot file: %w", err)
	}
	return DecodeSnapshot(frame)
}

// Close is a no-op for the file driver.
func (s *FileStore) Close() error {
	return nil
}
