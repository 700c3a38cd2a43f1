// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package backend

// Selector matches backend resources by label. Every entry must match
// for a resource to be selected.
type Selector map[string]string

// WorkloadSpec is a replication spec: the backend keeps Replicas
// instances of Image running, each labelled with Labels.
type WorkloadSpec struct {
	ID          string            `json:"id"`
	Image       string            `json:"image"`
	Replicas    int               `json:"replicas"`
	Labels      map[string]string `json:"labels,omitempty"`
	Ports       []ContainerPort   `json:"ports,omitempty"`
	Environment []EnvVar          `json:"environment,omitempty"`
}

// ContainerPort is one port a workload's container exposes.
type ContainerPort struct {
	Protocol string `json:"protocol,omitempty"`
	Port     int    `json:"port"`
}

// EnvVar is one environment entry handed to a workload's container.
// Order is significant and preserved by adapters.
type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Instance is one running (or scheduled) unit of a workload spec.
type Instance struct {
	ID     string `json:"id"`
	Status string `json:"status"`

	// HostAddress is the address of the node hosting the instance.
	// Proxy services forward to instances through this address.
	HostAddress string `json:"host_address,omitempty"`

	Labels map[string]string `json:"labels,omitempty"`
}

// Running reports whether the instance has reached the running state.
func (i *Instance) Running() bool { return i.Status == InstanceRunning }

// ServiceSpec is a proxy service definition: traffic arriving on Port
// is forwarded to ContainerPort on the instances matching Selector.
type ServiceSpec struct {
	ID            string   `json:"id"`
	Protocol      string   `json:"protocol,omitempty"`
	Port          int      `json:"port"`
	ContainerPort int      `json:"container_port"`
	Selector      Selector `json:"selector"`
}
