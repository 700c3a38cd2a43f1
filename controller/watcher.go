// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"context"
	"fmt"

	"github.com/gantry-project/gantry/backend"
	"github.com/gantry-project/gantry/lib/metrics"
	"github.com/gantry-project/gantry/lib/schema"
)

// watchHandle identifies one scheduled activation watch. The watches
// map stores the handle so a finished watch can remove itself without
// clobbering a newer watch scheduled under the same member id.
type watchHandle struct {
	cancel context.CancelFunc
}

// scheduleWatchLocked starts the activation watcher for a member. The
// event content is captured now, while the state lock pins the cluster
// and backend context; the watch goroutine itself never touches the
// store. Caller must hold the state lock.
func (c *Controller) scheduleWatchLocked(member *schema.Member, cluster *schema.Cluster, backendCluster *schema.BackendCluster, client backend.Client) {
	content := activationContent(member, cluster, backendCluster)

	watchCtx, cancel := context.WithCancel(c.watchCtx)
	handle := &watchHandle{cancel: cancel}

	c.watchMu.Lock()
	if previous, ok := c.watches[member.MemberID]; ok {
		previous.cancel()
	}
	c.watches[member.MemberID] = handle
	c.watchMu.Unlock()

	c.watchWG.Add(1)
	go c.runWatch(watchCtx, handle, client, member.MemberID, member.InstanceID, content)
}

// cancelWatch stops a member's activation watch if one is running.
func (c *Controller) cancelWatch(memberID string) {
	c.watchMu.Lock()
	handle, ok := c.watches[memberID]
	if ok {
		delete(c.watches, memberID)
	}
	c.watchMu.Unlock()
	if ok {
		handle.cancel()
	}
}

// removeWatch drops the member's watch entry, but only if it still
// refers to this handle: a newer watch scheduled under the same member
// id keeps its own entry.
func (c *Controller) removeWatch(memberID string, handle *watchHandle) {
	c.watchMu.Lock()
	if current, ok := c.watches[memberID]; ok && current == handle {
		delete(c.watches, memberID)
	}
	c.watchMu.Unlock()
	handle.cancel()
}

// activeWatches reports how many activation watches are registered.
func (c *Controller) activeWatches() int {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	return len(c.watches)
}

// runWatch polls one instance until it runs, disappears, or the watch
// ceiling elapses. The first status check happens after the initial
// delay; transient query errors keep the watch alive.
func (c *Controller) runWatch(ctx context.Context, handle *watchHandle, client backend.Client, memberID, instanceID string, content schema.InstanceActivatedContent) {
	defer c.watchWG.Done()
	defer c.removeWatch(memberID, handle)

	if err := c.watchSlots.Acquire(ctx, 1); err != nil {
		metrics.WatchOutcomes.WithLabelValues(metrics.WatchOutcomeCancelled).Inc()
		return
	}
	defer c.watchSlots.Release(1)

	metrics.WatchersActive.Inc()
	defer metrics.WatchersActive.Dec()

	deadline := c.clock.Now().Add(c.watchCeiling)

	select {
	case <-ctx.Done():
		metrics.WatchOutcomes.WithLabelValues(metrics.WatchOutcomeCancelled).Inc()
		return
	case <-c.clock.After(c.watchInitialDelay):
	}

	ticker := c.clock.NewTicker(c.watchInterval)
	defer ticker.Stop()

	for {
		instance, err := client.GetInstance(ctx, instanceID)
		switch {
		case backend.IsNotFound(err):
			c.logger.Warn("instance disappeared before activation",
				"member", memberID, "instance", instanceID)
			metrics.WatchOutcomes.WithLabelValues(metrics.WatchOutcomeFailed).Inc()
			return
		case err != nil:
			if ctx.Err() != nil {
				metrics.WatchOutcomes.WithLabelValues(metrics.WatchOutcomeCancelled).Inc()
				return
			}
			c.logger.Warn("could not poll instance status",
				"member", memberID, "instance", instanceID, "error", err)
		case instance.Running():
			c.logger.Info("instance activated",
				"member", memberID, "instance", instanceID, "cluster", content.ClusterID)
			c.publishEvent(ctx, schema.EventTypeInstanceActivated, content)
			metrics.WatchOutcomes.WithLabelValues(metrics.WatchOutcomeActivated).Inc()
			return
		}

		if !c.clock.Now().Before(deadline) {
			c.logger.Warn("activation watch ceiling reached",
				"member", memberID, "instance", instanceID, "ceiling", c.watchCeiling)
			metrics.WatchOutcomes.WithLabelValues(metrics.WatchOutcomeTimedOut).Inc()
			return
		}

		select {
		case <-ctx.Done():
			metrics.WatchOutcomes.WithLabelValues(metrics.WatchOutcomeCancelled).Inc()
			return
		case <-ticker.C:
		}
	}
}

// activationContent assembles the instance-activated event for a
// member from state pinned by the caller's lock. Access URLs cover
// every provisioned proxy service; the load balancer address is the
// backend master fronting them.
func activationContent(member *schema.Member, cluster *schema.Cluster, backendCluster *schema.BackendCluster) schema.InstanceActivatedContent {
	content := schema.InstanceActivatedContent{
		ApplicationID: member.ApplicationID,
		CartridgeType: member.CartridgeType,
		ClusterID:     member.ClusterID,
		MemberID:      member.MemberID,
		InstanceID:    member.InstanceID,
	}
	for _, service := range cluster.Services {
		content.AddAccessURL(fmt.Sprintf("%s://%s:%d", service.Protocol, backendCluster.MasterHost, service.Port))
		content.AddLoadBalancerAddress(backendCluster.MasterHost)
	}
	return content
}
