// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/gantry-project/gantry/lib/clock"
	"github.com/gantry-project/gantry/lib/metrics"
	"github.com/gantry-project/gantry/lib/portpool"
	"github.com/gantry-project/gantry/lib/schema"
	"github.com/gantry-project/gantry/registry"
)

// StateStore is the authoritative record of members, cluster contexts,
// and backend cluster contexts. Its single mutex is the controller's
// exclusive write lock: lifecycle operations acquire it once and hold
// it for the whole call.
//
// Methods with a Locked suffix assume the caller holds the lock (via
// [StateStore.Lock]); the others lock internally and are safe to call
// from anywhere.
type StateStore struct {
	mu sync.Mutex

	members         map[string]*schema.Member
	clusters        map[string]*schema.Cluster
	backendClusters map[string]*schema.BackendCluster

	registry registry.Store
	clock    clock.Clock
	logger   *slog.Logger
}

// StateStoreConfig configures a StateStore.
type StateStoreConfig struct {
	// Registry persists snapshots after every completed mutation. Nil
	// keeps state in memory only.
	Registry registry.Store

	// Clock stamps snapshot taken-at times. Nil means the real clock.
	Clock clock.Clock

	// Logger receives persist failures and restore summaries. Nil
	// discards.
	Logger *slog.Logger
}

// NewStateStore returns an empty store.
func NewStateStore(cfg StateStoreConfig) *StateStore {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &StateStore{
		members:         make(map[string]*schema.Member),
		clusters:        make(map[string]*schema.Cluster),
		backendClusters: make(map[string]*schema.BackendCluster),
		registry:        cfg.Registry,
		clock:           cfg.Clock,
		logger:          cfg.Logger,
	}
}

// Lock acquires the exclusive write lock.
func (s *StateStore) Lock() { s.mu.Lock() }

// Unlock releases the exclusive write lock.
func (s *StateStore) Unlock() { s.mu.Unlock() }

// MemberLocked returns the member with the given id, or nil. Caller
// must hold the lock.
func (s *StateStore) MemberLocked(memberID string) *schema.Member {
	return s.members[memberID]
}

// AddMemberLocked registers a member. Caller must hold the lock.
func (s *StateStore) AddMemberLocked(member *schema.Member) {
	s.members[member.MemberID] = member
	s.updateGaugesLocked()
}

// RemoveMemberLocked removes a member. Removing an absent member is a
// no-op. Caller must hold the lock.
func (s *StateStore) RemoveMemberLocked(memberID string) {
	delete(s.members, memberID)
	s.updateGaugesLocked()
}

// MembersOfClusterLocked returns the cluster's members sorted by
// member id. Caller must hold the lock.
func (s *StateStore) MembersOfClusterLocked(clusterID string) []*schema.Member {
	var members []*schema.Member
	for _, member := range s.members {
		if member.ClusterID == clusterID {
			members = append(members, member)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].MemberID < members[j].MemberID })
	return members
}

// ClusterLocked returns the cluster context with the given id, or nil.
// Caller must hold the lock.
func (s *StateStore) ClusterLocked(clusterID string) *schema.Cluster {
	return s.clusters[clusterID]
}

// RegisterClusterLocked registers a cluster context, replacing any
// existing context with the same id. Caller must hold the lock.
func (s *StateStore) RegisterClusterLocked(cluster *schema.Cluster) {
	s.clusters[cluster.ClusterID] = cluster
	s.updateGaugesLocked()
}

// BackendClusterLocked returns the backend cluster context with the
// given id, or nil. Caller must hold the lock.
func (s *StateStore) BackendClusterLocked(backendID string) *schema.BackendCluster {
	return s.backendClusters[backendID]
}

// EnsureBackendClusterLocked returns the backend cluster context for
// backendID, creating it with a fresh port pool on first registration.
// A repeat registration returns the existing context unchanged; the
// endpoint and range arguments are ignored (first registration wins).
// Caller must hold the lock.
func (s *StateStore) EnsureBackendClusterLocked(backendID, masterHost string, masterPort, lowerPort, upperPort int) (*schema.BackendCluster, error) {
	if existing, ok := s.backendClusters[backendID]; ok {
		return existing, nil
	}
	pool, err := portpool.New(lowerPort, upperPort)
	if err != nil {
		return nil, fmt.Errorf("controller: registering backend cluster %s: %w", backendID, err)
	}
	backendCluster := &schema.BackendCluster{
		BackendID:  backendID,
		MasterHost: masterHost,
		MasterPort: masterPort,
		Ports:      pool,
	}
	s.backendClusters[backendID] = backendCluster
	s.updateGaugesLocked()
	return backendCluster, nil
}

// PersistLocked writes a snapshot through the registry store. Persist
// failures are logged, never fatal: the in-memory state is the source
// of truth and the next completed mutation retries. Caller must hold
// the lock.
func (s *StateStore) PersistLocked(ctx context.Context) {
	if s.registry == nil {
		return
	}
	snapshot := s.snapshotLocked()
	if err := s.registry.Persist(ctx, snapshot); err != nil {
		s.logger.Error("could not persist state snapshot", "error", err)
	}
}

// Snapshot returns a deep copy of the current state.
func (s *StateStore) Snapshot() *schema.StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// snapshotLocked builds a deep-copied snapshot. Caller must hold the
// lock.
func (s *StateStore) snapshotLocked() *schema.StateSnapshot {
	snapshot := &schema.StateSnapshot{
		FormatVersion: schema.CurrentFormatVersion,
		TakenAt:       s.clock.Now().UnixMilli(),
	}
	for _, member := range s.members {
		snapshot.Members = append(snapshot.Members, cloneMember(member))
	}
	for _, cluster := range s.clusters {
		snapshot.Clusters = append(snapshot.Clusters, cloneCluster(cluster))
	}
	for _, backendCluster := range s.backendClusters {
		snapshot.BackendClusters = append(snapshot.BackendClusters, cloneBackendCluster(backendCluster))
	}
	snapshot.Sort()
	return snapshot
}

// Restore replaces the store's state with the registry's latest
// snapshot. A missing snapshot leaves the store empty. Call before
// serving lifecycle requests.
func (s *StateStore) Restore(ctx context.Context) error {
	if s.registry == nil {
		return nil
	}
	snapshot, err := s.registry.Load(ctx)
	if err != nil {
		return fmt.Errorf("controller: loading state snapshot: %w", err)
	}
	if snapshot == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.members = make(map[string]*schema.Member, len(snapshot.Members))
	for i := range snapshot.Members {
		member := cloneMember(&snapshot.Members[i])
		s.members[member.MemberID] = &member
	}
	s.clusters = make(map[string]*schema.Cluster, len(snapshot.Clusters))
	for i := range snapshot.Clusters {
		cluster := cloneCluster(&snapshot.Clusters[i])
		s.clusters[cluster.ClusterID] = &cluster
	}
	s.backendClusters = make(map[string]*schema.BackendCluster, len(snapshot.BackendClusters))
	for i := range snapshot.BackendClusters {
		backendCluster := cloneBackendCluster(&snapshot.BackendClusters[i])
		s.backendClusters[backendCluster.BackendID] = &backendCluster
	}
	s.updateGaugesLocked()

	s.logger.Info("state restored",
		"members", len(s.members),
		"clusters", len(s.clusters),
		"backend_clusters", len(s.backendClusters),
		"taken_at", snapshot.TakenAt)
	return nil
}

// updateGaugesLocked refreshes the state gauges. Caller must hold the
// lock.
func (s *StateStore) updateGaugesLocked() {
	metrics.Members.Set(float64(len(s.members)))
	metrics.Clusters.Set(float64(len(s.clusters)))
	for backendID, backendCluster := range s.backendClusters {
		metrics.PortsAllocated.WithLabelValues(backendID).Set(float64(backendCluster.Ports.InUse()))
	}
}

func cloneMember(member *schema.Member) schema.Member {
	out := *member
	out.PrivateAddresses = append([]string(nil), member.PrivateAddresses...)
	out.PublicAddresses = append([]string(nil), member.PublicAddresses...)
	out.Properties = cloneProperties(member.Properties)
	out.Payload = member.Payload.Clone()
	return out
}

func cloneCluster(cluster *schema.Cluster) schema.Cluster {
	out := *cluster
	out.Properties = cloneProperties(cluster.Properties)
	out.Services = append([]schema.ProxyService(nil), cluster.Services...)
	return out
}

func cloneBackendCluster(backendCluster *schema.BackendCluster) schema.BackendCluster {
	out := *backendCluster
	if backendCluster.Ports != nil {
		out.Ports = backendCluster.Ports.Clone()
	}
	return out
}

func cloneProperties(properties map[string]string) map[string]string {
	if properties == nil {
		return nil
	}
	out := make(map[string]string, len(properties))
	for name, value := range properties {
		out[name] = value
	}
	return out
}
