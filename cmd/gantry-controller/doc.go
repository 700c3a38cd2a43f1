// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Gantry-controller is the lifecycle orchestration daemon. It places
// application cluster members on container backends, provisions the
// proxy services that expose them, watches started instances until
// they report running, and publishes lifecycle events for downstream
// consumers.
//
// # Startup
//
// The daemon loads the YAML master config named by --config (or the
// GANTRY_CONFIG environment variable), parses the JSONC cartridge
// catalog it points at, opens the snapshot registry, and restores any
// previously persisted state. Backend clusters named in restored
// state keep their port allocations.
//
// # Socket API
//
// Clients connect to the controller's Unix socket and send CBOR
// requests (one CBOR value per connection). The "action" field
// determines the operation:
//
//   - cluster-register: bind an application cluster to a cartridge type
//   - member-start: deploy a member's workload and wait for its instance
//   - member-terminate: remove a member and its backend objects
//   - cluster-terminate: remove every member of a cluster
//   - status: controller counts and port pool usage
//
// # Metrics
//
// When metrics_address is configured, the daemon serves Prometheus
// metrics on /metrics.
package main
