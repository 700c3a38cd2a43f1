// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Gantry-state-check loads the controller's persisted state snapshot
// and evaluates a condition against it. It is a deployment building
// block: health checks and rollout gates can assert on controller
// state without parsing snapshots themselves.
//
// Exit codes:
//
//	0  condition matched
//	1  condition did not match (detail printed to stderr)
//	2  error (no snapshot, unreadable registry, bad arguments)
//
// Checks never modify a persisted snapshot; the controller may be
// running against the same registry concurrently.
package main
