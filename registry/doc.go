// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry persists controller state snapshots so a restarted
// controller resumes with its member records, cluster records, proxy
// services, and port allocations intact.
//
// # Drivers
//
// Two drivers implement the [Store] interface:
//
//   - file: one framed snapshot file, replaced atomically on every
//     persist (write to temporary file, fsync, rename). Suitable for
//     single-node deployments with no extra moving parts.
//   - sqlite: a single-row WAL-mode SQLite database. Suitable when the
//     controller already ships a SQLite dependency and operators want
//     standard database tooling for inspection and backup.
//
// Both drivers store the identical framed encoding produced by
// [EncodeSnapshot], so gantry-state-check reads either source with the
// same decoder.
//
// # Frame format
//
// A framed snapshot is a fixed 48-byte header followed by the
// compressed body:
//
//	offset  size  field
//	0       8     magic: "GANTRY" + version byte + reserved byte
//	8       1     compression tag (0 none, 1 lz4, 2 zstd)
//	9       3     reserved, must be zero
//	12      4     uncompressed body size (little-endian uint32)
//	16      32    BLAKE3 keyed checksum of the compressed body
//	48      ...   body: deterministic CBOR, compressed per the tag
//
// The body is encoded with deterministic CBOR and the snapshot's
// slices are sorted before encoding, so persisting the same logical
// state always produces identical bytes. The checksum uses BLAKE3 in
// keyed mode with a fixed registry-specific key, which gives domain
// separation from any other BLAKE3 use without extra bookkeeping.
package registry
