// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the Gantry domain model: the types the
// controller keeps in its state store, persists through the registry,
// and publishes as lifecycle events.
//
// Key types:
//
//   - [Member], [Cluster], [BackendCluster] -- the mutable lifecycle
//     state guarded by the controller's store lock
//   - [Partition], [Cartridge], [PortMapping] -- read-only reference
//     data resolved from configuration
//   - [ProxyService] -- one provisioned backend proxy service
//   - [StateSnapshot] -- the registry serialization of the store
//   - [InstanceActivatedContent], [MemberTerminatedContent] -- event
//     contents published on the messaging bus
//
// Types carry json struct tags; CBOR encoding through lib/codec reads
// the same tags, so one tag set controls both formats.
//
// This package depends only on lib/payload and lib/portpool.
package schema
