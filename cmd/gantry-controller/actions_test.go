// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gantry-project/gantry/backend"
	"github.com/gantry-project/gantry/backend/backendtest"
	"github.com/gantry-project/gantry/controller"
	"github.com/gantry-project/gantry/lib/cartridgedef"
	"github.com/gantry-project/gantry/lib/clock"
	"github.com/gantry-project/gantry/lib/schema"
	"github.com/gantry-project/gantry/lib/socket"
	"github.com/gantry-project/gantry/lib/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	for {
		if _, err := os.Stat(path); err == nil {
			return
		}
		if t.Context().Err() != nil {
			t.Fatalf("socket %s did not appear before test context expired", path)
		}
		runtime.Gosched()
	}
}

// actionRig is a controller with a fake backend, served over a real
// Unix socket.
type actionRig struct {
	client *socket.Client
	ctrl   *controller.Controller
	fake   *backendtest.Fake
}

func startActionServer(t *testing.T) *actionRig {
	t.Helper()

	fake := backendtest.New()
	clk := clock.Fake(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	state := controller.NewStateStore(controller.StateStoreConfig{Clock: clk})

	catalog := &cartridgedef.Catalog{
		Cartridges: []schema.Cartridge{
			{
				Type:     "tomcat",
				Provider: "apache",
				Category: "application",
				PortMappings: []schema.PortMapping{
					{Protocol: "http", ContainerPort: 8080},
				},
				Properties: map[string]string{
					"payload_parameter.image": "stratos/tomcat:4.1.1",
				},
			},
		},
	}

	ctrl, err := controller.New(controller.Config{
		State: state,
		Backends: func(masterHost string, masterPort int) (backend.Client, error) {
			return fake, nil
		},
		Catalog: catalog,
		BackendClusters: []controller.BackendClusterConfig{
			{ID: "kube-1", MasterHost: "192.168.1.100", MasterPort: 8080, PortLower: 4500, PortUpper: 4509},
		},
		Partitions: []schema.Partition{
			{ID: "p1", BackendClusterID: "kube-1"},
		},
		Clock:  clk,
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatalf("controller.New: %v", err)
	}
	t.Cleanup(func() { ctrl.Close() })

	socketPath := filepath.Join(testutil.SocketDir(t), "controller.sock")
	server := socket.NewServer(socketPath, testLogger())
	registerActions(server, ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		server.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	waitForSocket(t, socketPath)

	return &actionRig{
		client: socket.NewClient(socketPath),
		ctrl:   ctrl,
		fake:   fake,
	}
}

func (r *actionRig) registerCluster(t *testing.T) {
	t.Helper()
	err := r.client.Call(t.Context(), "cluster-register", map[string]any{
		"cluster_id":     "shop.c1",
		"cartridge_type": "tomcat",
		"application_id": "shop",
	}, nil)
	if err != nil {
		t.Fatalf("cluster-register: %v", err)
	}
}

func TestActionsLifecycle(t *testing.T) {
	rig := startActionServer(t)
	ctx := t.Context()

	var cluster schema.Cluster
	err := rig.client.Call(ctx, "cluster-register", map[string]any{
		"cluster_id":     "shop.c1",
		"cartridge_type": "tomcat",
		"application_id": "shop",
	}, &cluster)
	if err != nil {
		t.Fatalf("cluster-register: %v", err)
	}
	if cluster.ClusterID != "shop.c1" || cluster.CartridgeType != "tomcat" {
		t.Errorf("cluster: got %q/%q, want shop.c1/tomcat", cluster.ClusterID, cluster.CartridgeType)
	}

	var member schema.Member
	err = rig.client.Call(ctx, "member-start", map[string]any{
		"cluster_id":   "shop.c1",
		"member_id":    "shop.c1-m1",
		"partition_id": "p1",
	}, &member)
	if err != nil {
		t.Fatalf("member-start: %v", err)
	}
	if member.MemberID != "shop.c1-m1" {
		t.Errorf("member id: got %q, want shop.c1-m1", member.MemberID)
	}
	if member.InstanceID == "" {
		t.Error("member has no instance id")
	}
	if member.DefaultPrivateAddress != "10.244.0.5" {
		t.Errorf("private address: got %q, want 10.244.0.5", member.DefaultPrivateAddress)
	}

	var status controller.Status
	if err := rig.client.Call(ctx, "status", nil, &status); err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Members != 1 || status.Clusters != 1 {
		t.Errorf("status counts: got %d members / %d clusters, want 1/1", status.Members, status.Clusters)
	}
	if status.ActiveWatches != 1 {
		t.Errorf("active watches: got %d, want 1", status.ActiveWatches)
	}

	var removed schema.Member
	err = rig.client.Call(ctx, "member-terminate", map[string]any{
		"member_id": "shop.c1-m1",
	}, &removed)
	if err != nil {
		t.Fatalf("member-terminate: %v", err)
	}
	if removed.MemberID != "shop.c1-m1" {
		t.Errorf("removed member id: got %q, want shop.c1-m1", removed.MemberID)
	}

	if err := rig.client.Call(ctx, "status", nil, &status); err != nil {
		t.Fatalf("status after terminate: %v", err)
	}
	if status.Members != 0 {
		t.Errorf("members after terminate: got %d, want 0", status.Members)
	}
	if len(rig.fake.Workloads()) != 0 {
		t.Errorf("backend still has %d workload specs", len(rig.fake.Workloads()))
	}
}

func TestActionsMemberStartAssignsMemberID(t *testing.T) {
	rig := startActionServer(t)
	rig.registerCluster(t)

	var member schema.Member
	err := rig.client.Call(t.Context(), "member-start", map[string]any{
		"cluster_id":   "shop.c1",
		"partition_id": "p1",
	}, &member)
	if err != nil {
		t.Fatalf("member-start: %v", err)
	}
	if !strings.HasPrefix(member.MemberID, "shop.c1-") {
		t.Fatalf("assigned member id %q does not start with the cluster id", member.MemberID)
	}
	if len(member.MemberID) <= len("shop.c1-") {
		t.Errorf("assigned member id %q has no generated suffix", member.MemberID)
	}
}

func TestActionsClusterTerminate(t *testing.T) {
	rig := startActionServer(t)
	rig.registerCluster(t)
	ctx := t.Context()

	for _, memberID := range []string{"shop.c1-m1", "shop.c1-m2"} {
		err := rig.client.Call(ctx, "member-start", map[string]any{
			"cluster_id":   "shop.c1",
			"member_id":    memberID,
			"partition_id": "p1",
		}, nil)
		if err != nil {
			t.Fatalf("member-start %s: %v", memberID, err)
		}
	}

	var response struct {
		MemberIDs []string `json:"member_ids"`
	}
	err := rig.client.Call(ctx, "cluster-terminate", map[string]any{
		"cluster_id": "shop.c1",
	}, &response)
	if err != nil {
		t.Fatalf("cluster-terminate: %v", err)
	}
	if len(response.MemberIDs) != 2 {
		t.Fatalf("terminated members: got %v, want 2 ids", response.MemberIDs)
	}

	status := rig.ctrl.Status()
	if status.Members != 0 {
		t.Errorf("members after sweep: got %d, want 0", status.Members)
	}
}

func TestActionsValidationErrorReachesClient(t *testing.T) {
	rig := startActionServer(t)

	err := rig.client.Call(t.Context(), "member-start", map[string]any{
		"cluster_id":   "shop.c9",
		"member_id":    "shop.c9-m1",
		"partition_id": "p1",
	}, nil)
	if err == nil {
		t.Fatal("expected error for unregistered cluster")
	}

	var callErr *socket.CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("expected *socket.CallError, got %T: %v", err, err)
	}
	if callErr.Action != "member-start" {
		t.Errorf("error action: got %q, want member-start", callErr.Action)
	}
	if !strings.Contains(callErr.Message, "not registered") {
		t.Errorf("error message %q does not mention registration", callErr.Message)
	}
}

func TestActionsUnknownActionRejected(t *testing.T) {
	rig := startActionServer(t)

	err := rig.client.Call(t.Context(), "member-restart", nil, nil)
	if err == nil {
		t.Fatal("expected error for unknown action")
	}
	var callErr *socket.CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("expected *socket.CallError, got %T: %v", err, err)
	}
	if !strings.Contains(callErr.Message, "unknown action") {
		t.Errorf("error message %q does not mention unknown action", callErr.Message)
	}
}
