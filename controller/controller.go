// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package controller implements the Gantry lifecycle orchestrator:
// starting members, watching their activation, and terminating them.
//
// Every lifecycle operation runs under the state store's single
// exclusive lock, including backend calls and the bounded provisioning
// poll. Activation watchers are the only concurrent part; they never
// take the lock.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/gantry-project/gantry/backend"
	"github.com/gantry-project/gantry/lib/cartridgedef"
	"github.com/gantry-project/gantry/lib/clock"
	"github.com/gantry-project/gantry/lib/metrics"
	"github.com/gantry-project/gantry/lib/payload"
	"github.com/gantry-project/gantry/lib/portpool"
	"github.com/gantry-project/gantry/lib/schema"
	"github.com/gantry-project/gantry/messaging"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultProvisioningPoll    = 5 * time.Second
	DefaultProvisioningTimeout = 120 * time.Second
	DefaultWatchInitialDelay   = 5 * time.Second
	DefaultWatchInterval       = 5 * time.Second
	DefaultWatchCeiling        = 10 * time.Minute
	DefaultMaxWatches          = 64
)

// BackendClusterConfig declares one orchestration backend the
// controller can place members on.
type BackendClusterConfig struct {
	ID         string
	MasterHost string
	MasterPort int

	// PortLower and PortUpper bound the backend cluster's proxy port
	// range, inclusive.
	PortLower int
	PortUpper int
}

// Config assembles a Controller.
type Config struct {
	// State is the authoritative state store. Required.
	State *StateStore

	// Backends creates clients for backend masters. Required.
	Backends backend.Factory

	// Catalog resolves cartridge types. Required.
	Catalog *cartridgedef.Catalog

	// BackendClusters declares the orchestration backends. The
	// controller registers each lazily on first use; a backend
	// cluster already present in restored state keeps its port
	// allocations.
	BackendClusters []BackendClusterConfig

	// Partitions are the deployment slices start requests may target.
	Partitions []schema.Partition

	// Publisher receives lifecycle events. Nil publishes to the log.
	Publisher messaging.Publisher

	// BasePayload is prepended to every member's payload before the
	// member's own entries.
	BasePayload payload.Payload

	// PostTerminationHook runs after a member's workload spec is
	// deleted, before the member is removed from state. The daemon
	// uses it to publish the member-terminated event. Errors are
	// logged and do not fail the termination.
	PostTerminationHook func(ctx context.Context, member *schema.Member) error

	// Clock defaults to the real clock.
	Clock clock.Clock

	// Logger defaults to discarding.
	Logger *slog.Logger

	// ProvisioningPoll is the interval between instance queries while
	// waiting for a started member's instance to appear. Default 5s.
	ProvisioningPoll time.Duration

	// ProvisioningTimeout bounds the whole instance wait. Default 2m.
	ProvisioningTimeout time.Duration

	// WatchInitialDelay is the delay before an activation watch's
	// first status check. Default 5s.
	WatchInitialDelay time.Duration

	// WatchInterval is the activation watch tick. Default 5s.
	WatchInterval time.Duration

	// WatchCeiling bounds an activation watch end to end. Default 10m.
	WatchCeiling time.Duration

	// MaxWatches bounds concurrently running activation watches.
	// Default 64.
	MaxWatches int
}

// Controller runs the member lifecycle against orchestration backends.
// All exported methods are safe for concurrent use.
type Controller struct {
	state           *StateStore
	backends        backend.Factory
	catalog         *cartridgedef.Catalog
	backendConfigs  map[string]BackendClusterConfig
	partitions      map[string]schema.Partition
	publisher       messaging.Publisher
	basePayload     payload.Payload
	postTermination func(ctx context.Context, member *schema.Member) error
	clock           clock.Clock
	logger          *slog.Logger

	provisioningPoll    time.Duration
	provisioningTimeout time.Duration
	watchInitialDelay   time.Duration
	watchInterval       time.Duration
	watchCeiling        time.Duration

	clientMu sync.Mutex
	clients  map[string]backend.Client

	watchCtx    context.Context
	watchCancel context.CancelFunc
	watchWG     sync.WaitGroup
	watchMu     sync.Mutex
	watches     map[string]*watchHandle
	watchSlots  *semaphore.Weighted
}

// New assembles a Controller from the configuration.
func New(cfg Config) (*Controller, error) {
	if cfg.State == nil {
		return nil, fmt.Errorf("controller: Config.State is required")
	}
	if cfg.Backends == nil {
		return nil, fmt.Errorf("controller: Config.Backends is required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("controller: Config.Catalog is required")
	}

	backendConfigs := make(map[string]BackendClusterConfig, len(cfg.BackendClusters))
	for _, backendCluster := range cfg.BackendClusters {
		if backendCluster.ID == "" {
			return nil, fmt.Errorf("controller: backend cluster id is required")
		}
		if _, err := portpool.New(backendCluster.PortLower, backendCluster.PortUpper); err != nil {
			return nil, fmt.Errorf("controller: backend cluster %s: %w", backendCluster.ID, err)
		}
		backendConfigs[backendCluster.ID] = backendCluster
	}

	partitions := make(map[string]schema.Partition, len(cfg.Partitions))
	for _, partition := range cfg.Partitions {
		if partition.ID == "" {
			return nil, fmt.Errorf("controller: partition id is required")
		}
		partitions[partition.ID] = partition
	}

	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Publisher == nil {
		cfg.Publisher = messaging.NewLogPublisher(cfg.Logger)
	}
	if cfg.ProvisioningPoll <= 0 {
		cfg.ProvisioningPoll = DefaultProvisioningPoll
	}
	if cfg.ProvisioningTimeout <= 0 {
		cfg.ProvisioningTimeout = DefaultProvisioningTimeout
	}
	if cfg.WatchInitialDelay <= 0 {
		cfg.WatchInitialDelay = DefaultWatchInitialDelay
	}
	if cfg.WatchInterval <= 0 {
		cfg.WatchInterval = DefaultWatchInterval
	}
	if cfg.WatchCeiling <= 0 {
		cfg.WatchCeiling = DefaultWatchCeiling
	}
	if cfg.MaxWatches <= 0 {
		cfg.MaxWatches = DefaultMaxWatches
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	return &Controller{
		state:               cfg.State,
		backends:            cfg.Backends,
		catalog:             cfg.Catalog,
		backendConfigs:      backendConfigs,
		partitions:          partitions,
		publisher:           cfg.Publisher,
		basePayload:         cfg.BasePayload.Clone(),
		postTermination:     cfg.PostTerminationHook,
		clock:               cfg.Clock,
		logger:              cfg.Logger,
		provisioningPoll:    cfg.ProvisioningPoll,
		provisioningTimeout: cfg.ProvisioningTimeout,
		watchInitialDelay:   cfg.WatchInitialDelay,
		watchInterval:       cfg.WatchInterval,
		watchCeiling:        cfg.WatchCeiling,
		clients:             make(map[string]backend.Client),
		watchCtx:            watchCtx,
		watchCancel:         watchCancel,
		watches:             make(map[string]*watchHandle),
		watchSlots:          semaphore.NewWeighted(int64(cfg.MaxWatches)),
	}, nil
}

// Close cancels all activation watches and waits for their goroutines
// to finish. The controller must not be used after Close.
func (c *Controller) Close() error {
	c.watchCancel()
	c.watchWG.Wait()
	return nil
}

// StartRequest carries the parameters of one member start.
type StartRequest struct {
	MemberID           string `json:"member_id"`
	ClusterID          string `json:"cluster_id"`
	ClusterInstanceID  string `json:"cluster_instance_id,omitempty"`
	NetworkPartitionID string `json:"network_partition_id,omitempty"`
	PartitionID        string `json:"partition_id"`

	// InitTime is the member's creation time in Unix milliseconds.
	// Zero means now.
	InitTime int64 `json:"init_time,omitempty"`

	Payload    payload.Payload   `json:"payload,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// RegisterClusterRequest carries the parameters of a cluster
// registration.
type RegisterClusterRequest struct {
	ClusterID     string            `json:"cluster_id"`
	CartridgeType string            `json:"cartridge_type"`
	ApplicationID string            `json:"application_id,omitempty"`
	Properties    map[string]string `json:"properties,omitempty"`
}

// RegisterCluster records the cluster context members of the cluster
// start under. Registration is idempotent: re-registering with the
// same cartridge type returns the existing context unchanged.
func (c *Controller) RegisterCluster(ctx context.Context, req RegisterClusterRequest) (*schema.Cluster, error) {
	c.state.Lock()
	defer c.state.Unlock()

	if req.ClusterID == "" {
		return nil, &ValidationError{Reason: "cluster id is required"}
	}
	if req.CartridgeType == "" {
		return nil, &ValidationError{ClusterID: req.ClusterID, Reason: "cartridge type is required"}
	}
	if _, ok := c.catalog.Get(req.CartridgeType); !ok {
		return nil, &ValidationError{ClusterID: req.ClusterID,
			Reason: fmt.Sprintf("unknown cartridge type %q", req.CartridgeType)}
	}

	if existing := c.state.ClusterLocked(req.ClusterID); existing != nil {
		if existing.CartridgeType != req.CartridgeType {
			return nil, &ValidationError{ClusterID: req.ClusterID,
				Reason: fmt.Sprintf("cluster is already registered with cartridge type %q", existing.CartridgeType)}
		}
		out := cloneCluster(existing)
		return &out, nil
	}

	cluster := &schema.Cluster{
		ClusterID:     req.ClusterID,
		CartridgeType: req.CartridgeType,
		ApplicationID: req.ApplicationID,
		Properties:    cloneProperties(req.Properties),
	}
	c.state.RegisterClusterLocked(cluster)
	c.state.PersistLocked(ctx)
	c.logger.Info("cluster registered",
		"cluster", req.ClusterID, "cartridge_type", req.CartridgeType)

	out := cloneCluster(cluster)
	return &out, nil
}

// StartMember provisions proxy services, submits the member's workload
// spec, and waits for its instance to appear. On success the member is
// registered, persisted, and an activation watch is scheduled. The
// returned member is a snapshot safe to retain.
func (c *Controller) StartMember(ctx context.Context, req StartRequest) (member *schema.Member, err error) {
	begin := c.clock.Now()
	defer func() { recordStart(err, c.clock.Now().Sub(begin)) }()
	c.state.Lock()
	defer c.state.Unlock()
	return c.startMemberLocked(ctx, req)
}

func (c *Controller) startMemberLocked(ctx context.Context, req StartRequest) (*schema.Member, error) {
	// Validation happens before any backend call; a missing reference
	// reports the ids resolved so far.
	if req.MemberID == "" {
		return nil, &ValidationError{ClusterID: req.ClusterID, Reason: "member id is required"}
	}
	if req.ClusterID == "" {
		return nil, &ValidationError{MemberID: req.MemberID, Reason: "cluster id is required"}
	}
	cluster := c.state.ClusterLocked(req.ClusterID)
	if cluster == nil {
		return nil, &ValidationError{ClusterID: req.ClusterID, MemberID: req.MemberID,
			Reason: "cluster is not registered"}
	}
	if req.PartitionID == "" {
		return nil, &ValidationError{ClusterID: req.ClusterID, MemberID: req.MemberID,
			Reason: "partition id is required"}
	}
	partition, ok := c.partitions[req.PartitionID]
	if !ok {
		return nil, &ValidationError{ClusterID: req.ClusterID, MemberID: req.MemberID,
			Reason: fmt.Sprintf("unknown partition %q", req.PartitionID)}
	}
	cartridge, ok := c.catalog.Get(cluster.CartridgeType)
	if !ok {
		return nil, &ValidationError{ClusterID: req.ClusterID, MemberID: req.MemberID,
			Reason: fmt.Sprintf("unknown cartridge type %q", cluster.CartridgeType)}
	}
	backendConfig, ok := c.backendConfigs[partition.BackendClusterID]
	if !ok {
		return nil, &ValidationError{ClusterID: req.ClusterID, MemberID: req.MemberID,
			Reason: fmt.Sprintf("backend cluster %q is not configured", partition.BackendClusterID)}
	}

	c.logger.Info("starting member",
		"cluster", req.ClusterID, "member", req.MemberID,
		"cartridge_type", cluster.CartridgeType, "partition", req.PartitionID)

	backendCluster, err := c.state.EnsureBackendClusterLocked(backendConfig.ID,
		backendConfig.MasterHost, backendConfig.MasterPort,
		backendConfig.PortLower, backendConfig.PortUpper)
	if err != nil {
		return nil, &StartFailedError{ClusterID: req.ClusterID, MemberID: req.MemberID, Err: err}
	}
	client, err := c.client(backendCluster)
	if err != nil {
		return nil, &StartFailedError{ClusterID: req.ClusterID, MemberID: req.MemberID, Err: err}
	}

	// Stamp the backend cluster onto the cluster context so the
	// terminate path can resolve it without the partition at hand.
	if cluster.Property(schema.PropertyBackendClusterID) == "" {
		cluster.SetProperty(schema.PropertyBackendClusterID, backendCluster.BackendID)
	}

	// Provision the proxy services this cluster still lacks, then
	// checkpoint before the more failure-prone steps. On a partial
	// failure the new services are rolled back; surviving records of
	// failed deletes stay attached for a later sweep.
	created, provisionErr := c.provisionServices(ctx, client, backendCluster,
		cluster.ClusterID, pendingMappings(&cartridge, cluster.Services))
	if provisionErr != nil {
		cluster.Services = append(cluster.Services, c.deprovisionServices(ctx, client, backendCluster, created)...)
		c.state.PersistLocked(ctx)
		var portErr *PortExhaustedError
		if errors.As(provisionErr, &portErr) {
			return nil, provisionErr
		}
		return nil, &StartFailedError{ClusterID: req.ClusterID, MemberID: req.MemberID, Err: provisionErr}
	}
	cluster.Services = append(cluster.Services, created...)
	c.state.PersistLocked(ctx)

	member := &schema.Member{
		MemberID:           req.MemberID,
		ClusterID:          req.ClusterID,
		ClusterInstanceID:  req.ClusterInstanceID,
		CartridgeType:      cluster.CartridgeType,
		ApplicationID:      cluster.ApplicationID,
		NetworkPartitionID: req.NetworkPartitionID,
		PartitionID:        req.PartitionID,
		InitTime:           req.InitTime,
		Properties:         cloneProperties(req.Properties),
		Payload:            append(c.basePayload.Clone(), req.Payload...),
	}
	if member.InitTime == 0 {
		member.InitTime = c.clock.Now().UnixMilli()
	}

	if err := client.CreateWorkloadSpec(ctx, buildWorkloadSpec(member, &cartridge)); err != nil {
		return nil, &StartFailedError{ClusterID: req.ClusterID, MemberID: req.MemberID, Err: err}
	}

	pollBegin := c.clock.Now()
	instances, err := c.waitForInstances(ctx, client, req.ClusterID)
	if err != nil {
		return nil, &StartFailedError{ClusterID: req.ClusterID, MemberID: req.MemberID, Err: err}
	}
	if len(instances) != 1 {
		elapsed := c.clock.Now().Sub(pollBegin)
		c.logger.Warn("backend did not settle on exactly one instance, rolling back cluster",
			"cluster", req.ClusterID, "member", req.MemberID,
			"observed", len(instances), "elapsed", elapsed)
		// The workload spec is keyed by a member that was never
		// registered, so the cluster teardown will not cover it.
		if err := client.DeleteWorkloadSpec(ctx, req.MemberID); err != nil && !backend.IsNotFound(err) {
			c.logger.Error("could not delete workload spec during rollback",
				"member", req.MemberID, "error", err)
		}
		if _, err := c.terminateClusterLocked(ctx, cluster); err != nil {
			c.logger.Error("could not roll back cluster",
				"cluster", req.ClusterID, "error", err)
		}
		return nil, &ProvisioningTimeoutError{ClusterID: req.ClusterID, MemberID: req.MemberID,
			Observed: len(instances), Elapsed: elapsed}
	}

	instance := instances[0]
	member.InstanceID = instance.ID
	member.DefaultPrivateAddress = instance.HostAddress
	member.PrivateAddresses = []string{instance.HostAddress}
	member.DefaultPublicAddress = instance.HostAddress
	member.PublicAddresses = []string{instance.HostAddress}

	c.state.AddMemberLocked(member)
	c.scheduleWatchLocked(member, cluster, backendCluster, client)
	c.state.PersistLocked(ctx)
	c.logger.Info("member started",
		"cluster", req.ClusterID, "member", req.MemberID, "instance", instance.ID)

	out := cloneMember(member)
	return &out, nil
}

// waitForInstances polls the backend for the cluster's instances until
// at least one appears or the provisioning timeout elapses. The first
// query happens immediately. A query error aborts the wait; a timeout
// with nothing observed returns an empty slice.
func (c *Controller) waitForInstances(ctx context.Context, client backend.Client, clusterID string) ([]backend.Instance, error) {
	deadline := c.clock.Now().Add(c.provisioningTimeout)
	selector := backend.Selector{backend.LabelCluster: clusterID}
	for {
		instances, err := client.QueryInstances(ctx, selector)
		if err != nil {
			return nil, err
		}
		if len(instances) > 0 {
			return instances, nil
		}
		if !c.clock.Now().Before(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.clock.After(c.provisioningPoll):
		}
	}
}

// TerminateMember tears down one member: its instances best-effort,
// its workload spec, and finally its state record. The removed member
// is returned; if the workload spec cannot be deleted the member stays
// registered and a *TerminationFailedError is returned.
func (c *Controller) TerminateMember(ctx context.Context, memberID string) (*schema.Member, error) {
	c.state.Lock()
	defer c.state.Unlock()
	return c.terminateMemberLocked(ctx, memberID)
}

func (c *Controller) terminateMemberLocked(ctx context.Context, memberID string) (member *schema.Member, err error) {
	defer func() { recordTermination(err) }()

	if memberID == "" {
		return nil, &ValidationError{Reason: "member id is required"}
	}
	stored := c.state.MemberLocked(memberID)
	if stored == nil {
		return nil, &ValidationError{MemberID: memberID, Reason: "member is not registered"}
	}
	cluster := c.state.ClusterLocked(stored.ClusterID)
	if cluster == nil {
		return nil, &ValidationError{ClusterID: stored.ClusterID, MemberID: memberID,
			Reason: "cluster is not registered"}
	}
	_, client, err := c.resolveBackend(cluster)
	if err != nil {
		return nil, err
	}

	// Force-delete the member's instances first. Neither a failed
	// query nor a failed delete aborts the termination.
	instances, queryErr := client.QueryInstances(ctx, backend.Selector{backend.LabelMember: memberID})
	if queryErr != nil {
		c.logger.Warn("could not query instances of member",
			"member", memberID, "error", queryErr)
	}
	for _, instance := range instances {
		if err := client.DeleteInstance(ctx, instance.ID); err != nil && !backend.IsNotFound(err) {
			c.logger.Warn("could not delete instance",
				"member", memberID, "instance", instance.ID, "error", err)
		}
	}

	if err := client.DeleteWorkloadSpec(ctx, memberID); err != nil && !backend.IsNotFound(err) {
		return nil, &TerminationFailedError{ClusterID: stored.ClusterID, MemberID: memberID, Err: err}
	}

	removed := cloneMember(stored)
	if c.postTermination != nil {
		if err := c.postTermination(ctx, &removed); err != nil {
			c.logger.Warn("post-termination hook failed",
				"member", memberID, "error", err)
		}
	}

	c.cancelWatch(memberID)
	c.state.RemoveMemberLocked(memberID)
	c.state.PersistLocked(ctx)
	c.logger.Info("member terminated",
		"cluster", removed.ClusterID, "member", memberID)
	return &removed, nil
}

// TerminateCluster deprovisions a cluster's proxy services and
// terminates every one of its members, collecting the members actually
// removed. Individual member failures are logged, not fatal; service
// records whose delete failed stay on the cluster. The cluster context
// itself stays registered.
func (c *Controller) TerminateCluster(ctx context.Context, clusterID string) ([]*schema.Member, error) {
	c.state.Lock()
	defer c.state.Unlock()

	if clusterID == "" {
		return nil, &ValidationError{Reason: "cluster id is required"}
	}
	cluster := c.state.ClusterLocked(clusterID)
	if cluster == nil {
		return nil, &ValidationError{ClusterID: clusterID, Reason: "cluster is not registered"}
	}
	return c.terminateClusterLocked(ctx, cluster)
}

func (c *Controller) terminateClusterLocked(ctx context.Context, cluster *schema.Cluster) ([]*schema.Member, error) {
	backendCluster, client, err := c.resolveBackend(cluster)
	if err != nil {
		return nil, err
	}

	cluster.Services = c.deprovisionServices(ctx, client, backendCluster, cluster.Services)

	var removed []*schema.Member
	for _, member := range c.state.MembersOfClusterLocked(cluster.ClusterID) {
		terminated, err := c.terminateMemberLocked(ctx, member.MemberID)
		if err != nil {
			c.logger.Error("could not terminate member",
				"cluster", cluster.ClusterID, "member", member.MemberID, "error", err)
			continue
		}
		removed = append(removed, terminated)
	}

	c.state.PersistLocked(ctx)
	return removed, nil
}

// resolveBackend resolves a cluster's backend cluster context and
// client from the backend cluster id stamped on the cluster's property
// bag at first start.
func (c *Controller) resolveBackend(cluster *schema.Cluster) (*schema.BackendCluster, backend.Client, error) {
	backendID := cluster.Property(schema.PropertyBackendClusterID)
	if backendID == "" {
		return nil, nil, &ValidationError{ClusterID: cluster.ClusterID,
			Reason: "cluster has no backend cluster id"}
	}
	backendCluster := c.state.BackendClusterLocked(backendID)
	if backendCluster == nil {
		return nil, nil, &ValidationError{ClusterID: cluster.ClusterID,
			Reason: fmt.Sprintf("backend cluster %q is not registered", backendID)}
	}
	client, err := c.client(backendCluster)
	if err != nil {
		return nil, nil, err
	}
	return backendCluster, client, nil
}

// client returns the cached client for a backend cluster, creating it
// through the factory on first use.
func (c *Controller) client(backendCluster *schema.BackendCluster) (backend.Client, error) {
	c.clientMu.Lock()
	defer c.clientMu.Unlock()
	if client, ok := c.clients[backendCluster.BackendID]; ok {
		return client, nil
	}
	client, err := c.backends(backendCluster.MasterHost, backendCluster.MasterPort)
	if err != nil {
		return nil, fmt.Errorf("controller: connecting backend cluster %s: %w", backendCluster.BackendID, err)
	}
	c.clients[backendCluster.BackendID] = client
	return client, nil
}

// Status is a point-in-time summary of the controller.
type Status struct {
	Members         int                    `json:"members"`
	Clusters        int                    `json:"clusters"`
	BackendClusters []BackendClusterStatus `json:"backend_clusters,omitempty"`
	ActiveWatches   int                    `json:"active_watches"`
}

// BackendClusterStatus summarizes one backend cluster's port usage.
type BackendClusterStatus struct {
	ID           string `json:"id"`
	PortsInUse   int    `json:"ports_in_use"`
	PortCapacity int    `json:"port_capacity"`
}

// Status reports current controller occupancy.
func (c *Controller) Status() Status {
	snapshot := c.state.Snapshot()
	status := Status{
		Members:       len(snapshot.Members),
		Clusters:      len(snapshot.Clusters),
		ActiveWatches: c.activeWatches(),
	}
	for _, backendCluster := range snapshot.BackendClusters {
		status.BackendClusters = append(status.BackendClusters, BackendClusterStatus{
			ID:           backendCluster.BackendID,
			PortsInUse:   backendCluster.Ports.InUse(),
			PortCapacity: backendCluster.Ports.Capacity(),
		})
	}
	return status
}

// publishEvent encodes and hands a lifecycle event to the publisher.
// Delivery failures are logged, never propagated: lifecycle operations
// do not fail because a consumer is down.
func (c *Controller) publishEvent(ctx context.Context, eventType string, content any) {
	event, err := messaging.NewEvent(eventType, content)
	if err != nil {
		c.logger.Error("could not encode event", "event_type", eventType, "error", err)
		return
	}
	metrics.EventsPublished.WithLabelValues(eventType).Inc()
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.Warn("could not publish event", "event_type", eventType, "error", err)
	}
}

func recordStart(err error, elapsed time.Duration) {
	metrics.StartDuration.Observe(elapsed.Seconds())
	result := metrics.StartResultSuccess
	var validationErr *ValidationError
	var portErr *PortExhaustedError
	var timeoutErr *ProvisioningTimeoutError
	switch {
	case err == nil:
	case errors.As(err, &validationErr):
		result = metrics.StartResultValidationError
	case errors.As(err, &portErr):
		result = metrics.StartResultPortExhausted
	case errors.As(err, &timeoutErr):
		result = metrics.StartResultTimeout
	default:
		result = metrics.StartResultStartFailed
	}
	metrics.MemberStarts.WithLabelValues(result).Inc()
}

func recordTermination(err error) {
	result := metrics.TerminateResultSuccess
	var validationErr *ValidationError
	switch {
	case err == nil:
	case errors.As(err, &validationErr):
		result = metrics.TerminateResultValidationError
	default:
		result = metrics.TerminateResultFailed
	}
	metrics.MemberTerminations.WithLabelValues(result).Inc()
}
