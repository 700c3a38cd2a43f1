// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package controller implements the Gantry lifecycle orchestrator: it
// starts and terminates cluster members against an orchestration
// backend, provisions the proxy services that expose them, and keeps
// the authoritative member/cluster/backend-cluster state.
//
// The pieces:
//
//   - [StateStore] holds the lock-guarded state maps and persists
//     snapshots through a registry.Store.
//   - [Controller] runs the lifecycle workflows: RegisterCluster,
//     StartMember, TerminateMember, TerminateCluster.
//   - The activation watcher (one bounded goroutine per started
//     member) polls instance status and publishes the "instance
//     activated" event on the messaging bus.
//
// Concurrency model: the StateStore's single mutex serializes every
// lifecycle operation end to end, including backend calls and the
// bounded provisioning poll. This is deliberate coarse-grained
// serialization; interleaving port allocation or spec submission from
// two callers would corrupt the shared pool and service state.
// Activation watchers run outside the lock and never take it: all the
// state they need is captured when the watch is scheduled.
//
// Failures surface as a closed set of typed errors (ValidationError,
// PortExhaustedError, ProvisioningTimeoutError, TerminationFailedError,
// StartFailedError) that callers classify with errors.As.
package controller
