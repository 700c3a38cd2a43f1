// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package backend defines the contract between the lifecycle
// controller and a cluster orchestration backend.
//
// The controller only ever talks to the [Client] interface. Concrete
// adapters live in subpackages: backend/kubernetes speaks the REST API
// of a Kubernetes-style master, backend/backendtest is the in-memory
// fake the test suites inject. Every operation takes a context and
// returns errors wrapping [*Error] so callers can classify failures
// with errors.As and [IsNotFound].
package backend

import "context"

// Label keys stamped onto workload instances. Instances carry both so
// creation-time polling can select a whole cluster while termination
// selects a single member.
const (
	LabelCluster = "cluster"
	LabelMember  = "member"
)

// InstanceRunning is the backend status of an instance that has been
// scheduled and started. Any other status string (pending, unknown,
// terminating) counts as not yet running.
const InstanceRunning = "Running"

// Client is the surface of one orchestration backend master.
//
// Implementations must be safe for concurrent use; the controller
// shares one Client per backend cluster across lifecycle operations
// and activation watches.
type Client interface {
	// CreateWorkloadSpec submits a replication spec. The backend
	// schedules Replicas instances carrying the spec's labels.
	CreateWorkloadSpec(ctx context.Context, spec WorkloadSpec) error

	// DeleteWorkloadSpec removes the replication spec with the given
	// id, stopping replacement of its instances.
	DeleteWorkloadSpec(ctx context.Context, id string) error

	// QueryInstances returns the instances whose labels match every
	// entry of the selector.
	QueryInstances(ctx context.Context, selector Selector) ([]Instance, error)

	// GetInstance returns the instance with the given id. A missing
	// instance yields an error satisfying IsNotFound.
	GetInstance(ctx context.Context, id string) (*Instance, error)

	// DeleteInstance removes a single instance.
	DeleteInstance(ctx context.Context, id string) error

	// CreateService creates a proxy service forwarding the service
	// port to the container port on instances matching the selector.
	CreateService(ctx context.Context, spec ServiceSpec) error

	// DeleteService removes the proxy service with the given id.
	DeleteService(ctx context.Context, id string) error
}

// Factory creates a Client for one backend master endpoint. The
// controller calls it lazily, once per backend cluster, and caches the
// result.
type Factory func(masterHost string, masterPort int) (Client, error)
