// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens SQLite databases with the connection
// settings Gantry binaries share.
//
// The pool wraps zombiezen.com/go/sqlite's sqlitex.Pool. Callers Take
// a connection, run their statements, and Put it back; a connection
// serves one goroutine at a time. Read-write pools prepare every
// connection with WAL journaling, NORMAL synchronous, a five second
// busy timeout, and memory-mapped reads. A pool opened with
// Config.ReadOnly skips the writer pragmas and refuses modification,
// which lets gantry-state-check inspect a registry database while the
// controller holds it open for writing.
//
// # Pragmas
//
// Read-write connections receive:
//
//   - journal_mode=WAL: readers proceed alongside the single writer.
//   - synchronous=NORMAL: commits survive a process crash. A power
//     failure may drop the most recent commits, which the snapshot
//     workload absorbs: the controller re-persists complete state on
//     every lifecycle operation.
//   - busy_timeout=5000: block up to five seconds on a contended lock
//     instead of failing with SQLITE_BUSY.
//   - foreign_keys=OFF: the snapshot schema is a single row with no
//     relations.
//   - cache_size=-8192 and mmap_size=268435456: 8 MB page cache and
//     256 MB of memory-mapped reads per connection.
//   - temp_store=MEMORY: sort space and temporary tables stay off
//     disk.
//
// Read-only connections receive the subset that leaves the journal
// configuration alone.
//
// The package stays thin on purpose: consumers write SQL against the
// zombiezen API directly, using sqlitex.Execute for cached statements
// and sqlitex.ImmediateTransaction for transactions. There is no query
// builder and no ORM. The shared value is one dependency, one set of
// pragmas, and one pool discipline across every binary that opens a
// database.
package sqlitepool
