// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// Lifecycle event type constants. Events are published on the
// messaging bus as they complete; consumers (load balancers,
// autoscalers, dashboards) match on the type string.
const (
	// EventTypeInstanceActivated is published by the activation watcher
	// when a member's backend instance is first observed running.
	EventTypeInstanceActivated = "gantry.instance_activated"

	// EventTypeMemberTerminated is published after a member has been
	// terminated and removed from the controller state.
	EventTypeMemberTerminated = "gantry.member_terminated"
)

// InstanceActivatedContent is the content of an
// EventTypeInstanceActivated event.
type InstanceActivatedContent struct {
	ApplicationID string `json:"application_id,omitempty"`
	CartridgeType string `json:"cartridge_type"`
	ClusterID     string `json:"cluster_id"`
	MemberID      string `json:"member_id"`

	// InstanceID is the backend's identifier for the running instance.
	InstanceID string `json:"instance_id"`

	// AccessURLs are the proxy endpoints the cluster is reachable on,
	// one per provisioned service.
	AccessURLs []string `json:"access_urls,omitempty"`

	// LoadBalancerAddresses are the hosts fronting the proxy services.
	LoadBalancerAddresses []string `json:"load_balancer_addresses,omitempty"`
}

// AddAccessURL appends a URL unless it is already present.
func (c *InstanceActivatedContent) AddAccessURL(url string) {
	for _, existing := range c.AccessURLs {
		if existing == url {
			return
		}
	}
	c.AccessURLs = append(c.AccessURLs, url)
}

// AddLoadBalancerAddress appends an address unless it is already
// present.
func (c *InstanceActivatedContent) AddLoadBalancerAddress(address string) {
	for _, existing := range c.LoadBalancerAddresses {
		if existing == address {
			return
		}
	}
	c.LoadBalancerAddresses = append(c.LoadBalancerAddresses, address)
}

// MemberTerminatedContent is the content of an
// EventTypeMemberTerminated event.
type MemberTerminatedContent struct {
	ApplicationID string `json:"application_id,omitempty"`
	CartridgeType string `json:"cartridge_type"`
	ClusterID     string `json:"cluster_id"`
	MemberID      string `json:"member_id"`
}
