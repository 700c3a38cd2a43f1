// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for Gantry
// binaries. It centralizes the one legitimate raw I/O pattern that
// exists before the structured logger: fatal error reporting to
// stderr from main() when run() fails. All other output in Gantry
// binaries goes through slog or is explicit CLI output.
package process
