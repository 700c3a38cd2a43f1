// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"sort"

	"github.com/gantry-project/gantry/lib/payload"
	"github.com/gantry-project/gantry/lib/portpool"
)

// Well-known property bag keys.
const (
	// PropertyBackendClusterID names the backend cluster a resource is
	// bound to. Stamped onto cluster property bags at provisioning time
	// so the terminate path can resolve the backend without the
	// original partition at hand.
	PropertyBackendClusterID = "backend.cluster.id"

	// PropertyImage is the container image a cartridge deploys.
	PropertyImage = "image"

	// PropertyMinReplicas records a cartridge's minimum member count
	// for scaling layers above the controller. The workload builder
	// ignores it: every member runs as its own single-replica workload.
	PropertyMinReplicas = "min.replicas"
)

// CurrentFormatVersion is the StateSnapshot format written by this
// build. Decoders reject snapshots with a newer version.
const CurrentFormatVersion = 1

// PortMapping declares one exposed port of a cartridge. The
// provisioner allocates the proxy-side port from the backend cluster's
// pool; ContainerPort is where the workload listens.
type PortMapping struct {
	Protocol      string `json:"protocol"`
	ContainerPort int    `json:"container_port"`
}

// Cartridge describes a deployable workload type: the image to run,
// the ports it exposes, and free-form properties consumed by the
// workload builder.
type Cartridge struct {
	Type         string            `json:"type"`
	Provider     string            `json:"provider,omitempty"`
	Category     string            `json:"category,omitempty"`
	PortMappings []PortMapping     `json:"port_mappings,omitempty"`
	Properties   map[string]string `json:"properties,omitempty"`
}

// Property returns the named property, or "" when absent.
func (c *Cartridge) Property(name string) string {
	return c.Properties[name]
}

// Partition is a deployment slice bound to one backend cluster.
type Partition struct {
	ID               string            `json:"id"`
	BackendClusterID string            `json:"backend_cluster_id"`
	Properties       map[string]string `json:"properties,omitempty"`
}

// Member is one workload instance of a cluster. InstanceID is the
// backend's identifier for the running instance (assigned when the
// instance is observed during start); the addresses are copied from
// the instance's host at the same moment.
type Member struct {
	MemberID           string `json:"member_id"`
	ClusterID          string `json:"cluster_id"`
	ClusterInstanceID  string `json:"cluster_instance_id,omitempty"`
	CartridgeType      string `json:"cartridge_type"`
	ApplicationID      string `json:"application_id,omitempty"`
	NetworkPartitionID string `json:"network_partition_id,omitempty"`
	PartitionID        string `json:"partition_id"`
	InstanceID         string `json:"instance_id,omitempty"`

	DefaultPrivateAddress string   `json:"default_private_address,omitempty"`
	PrivateAddresses      []string `json:"private_addresses,omitempty"`
	DefaultPublicAddress  string   `json:"default_public_address,omitempty"`
	PublicAddresses       []string `json:"public_addresses,omitempty"`

	// InitTime is when the member was created, in Unix milliseconds.
	InitTime int64 `json:"init_time"`

	Properties map[string]string `json:"properties,omitempty"`
	Payload    payload.Payload   `json:"payload,omitempty"`
}

// ProxyService is one provisioned proxy service: the backend service
// object plus the pool port it occupies.
type ProxyService struct {
	ID            string `json:"id"`
	ClusterID     string `json:"cluster_id"`
	Protocol      string `json:"protocol"`
	Port          int    `json:"port"`
	ContainerPort int    `json:"container_port"`
}

// Cluster is the controller-side context for one application cluster:
// linkage properties plus the proxy services provisioned for it.
type Cluster struct {
	ClusterID     string            `json:"cluster_id"`
	CartridgeType string            `json:"cartridge_type"`
	ApplicationID string            `json:"application_id,omitempty"`
	Properties    map[string]string `json:"properties,omitempty"`
	Services      []ProxyService    `json:"services,omitempty"`
}

// Property returns the named property, or "" when absent.
func (c *Cluster) Property(name string) string {
	return c.Properties[name]
}

// SetProperty sets a property, allocating the bag on first use.
func (c *Cluster) SetProperty(name, value string) {
	if c.Properties == nil {
		c.Properties = make(map[string]string)
	}
	c.Properties[name] = value
}

// BackendCluster is the controller-side context for one orchestration
// backend: the master endpoint plus the proxy port pool. One context
// exists per backend cluster id; the first registration wins and later
// registrations return the existing context.
type BackendCluster struct {
	BackendID  string         `json:"backend_id"`
	MasterHost string         `json:"master_host"`
	MasterPort int            `json:"master_port"`
	Ports      *portpool.Pool `json:"ports"`
}

// StateSnapshot is the registry serialization of the controller state.
// Slices are sorted by id so deterministic encoding yields stable
// bytes for unchanged state.
type StateSnapshot struct {
	FormatVersion   int              `json:"format_version"`
	TakenAt         int64            `json:"taken_at"`
	Members         []Member         `json:"members,omitempty"`
	Clusters        []Cluster        `json:"clusters,omitempty"`
	BackendClusters []BackendCluster `json:"backend_clusters,omitempty"`
}

// Sort orders the snapshot slices by their ids.
func (s *StateSnapshot) Sort() {
	sort.Slice(s.Members, func(i, j int) bool { return s.Members[i].MemberID < s.Members[j].MemberID })
	sort.Slice(s.Clusters, func(i, j int) bool { return s.Clusters[i].ClusterID < s.Clusters[j].ClusterID })
	sort.Slice(s.BackendClusters, func(i, j int) bool {
		return s.BackendClusters[i].BackendID < s.BackendClusters[j].BackendID
	})
}
