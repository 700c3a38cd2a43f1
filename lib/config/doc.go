// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the Gantry
// controller.
//
// Configuration is loaded from a single file specified by either the
// GANTRY_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search. This ensures deterministic, auditable
// configuration with no hidden overrides.
//
// The file names the backend clusters the controller may deploy to,
// the partitions that bind workloads to them, the snapshot registry,
// the event transport, and the lifecycle timeouts. The cartridge
// catalog lives in its own JSONC file (see lib/cartridgedef) and is
// referenced here by path.
//
// Variable expansion is performed on path fields after loading:
// ${HOME} and ${VAR:-default} patterns are expanded. No other
// environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with registry, events, backend
//     clusters, partitions, and timeouts
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other Gantry packages.
package config
