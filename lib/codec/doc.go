// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Gantry's standard CBOR encoding configuration.
//
// Gantry uses two serialization formats with a clear boundary:
//
//   - JSON for external interfaces: the orchestration backend's REST
//     API and CLI --json output.
//   - CBOR for internal protocols: the controller socket API and the
//     registry snapshot body.
//
// This package provides the shared encoding and decoding modes so that
// every Gantry package encodes identically. The encoder uses Core
// Deterministic Encoding (RFC 8949 §4.2): sorted map keys, smallest
// integer encoding, no indefinite-length items. Same logical data
// always produces identical bytes, which keeps snapshot checksums
// stable.
//
// Domain types carry `json` struct tags only: fxamacker/cbor reads
// json tags as fallback when cbor tags are absent, so one tag controls
// field naming and omitempty for both formats. Types that only ever
// cross the socket use `cbor` tags to document that contract.
package codec
