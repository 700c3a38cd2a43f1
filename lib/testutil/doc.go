// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Gantry packages.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls. These are
// the only place in the test suite where real wall-clock timeouts
// belong; production time goes through lib/clock.
//
// [SocketDir] creates a short-pathed temporary directory in /tmp for
// Unix domain sockets, which carry a 108-byte path limit (sun_path in
// sockaddr_un) that deeply nested test tmpdirs can exceed.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no Gantry-internal dependencies.
package testutil
