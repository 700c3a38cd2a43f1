// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gantry-project/gantry/backend"
	"github.com/gantry-project/gantry/backend/kubernetes"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// startMock serves a clusterStore over HTTP and returns a real
// adapter client pointed at it. The full wire path is exercised:
// adapter request encoding, mock routing, and response decoding.
func startMock(t *testing.T, startupDelay time.Duration) *kubernetes.Client {
	t.Helper()

	store := newClusterStore(startupDelay, "10.20.0.5", testLogger(t))
	server := httptest.NewServer(store.handler())
	t.Cleanup(server.Close)

	client, err := kubernetes.New(kubernetes.Config{
		MasterURL:  server.URL,
		HTTPClient: server.Client(),
		Logger:     testLogger(t),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestMockWorkloadLifecycle(t *testing.T) {
	client := startMock(t, 0)
	ctx := t.Context()

	spec := backend.WorkloadSpec{
		ID:       "gantry-shop-c1-m1",
		Image:    "stratos/tomcat:4.1.1",
		Replicas: 2,
		Labels:   map[string]string{"cluster": "shop-c1"},
	}
	if err := client.CreateWorkloadSpec(ctx, spec); err != nil {
		t.Fatalf("CreateWorkloadSpec: %v", err)
	}

	instances, err := client.QueryInstances(ctx, backend.Selector{"cluster": "shop-c1"})
	if err != nil {
		t.Fatalf("QueryInstances: %v", err)
	}
	if len(instances) != 2 {
		t.Fatalf("got %d instances, want 2", len(instances))
	}
	for _, instance := range instances {
		if !strings.HasPrefix(instance.ID, "gantry-shop-c1-m1-") {
			t.Errorf("instance ID %q does not carry the workload spec prefix", instance.ID)
		}
		if !instance.Running() {
			t.Errorf("instance %s has status %q, want Running with zero startup delay", instance.ID, instance.Status)
		}
		if instance.HostAddress != "10.20.0.5" {
			t.Errorf("instance %s host address = %q, want 10.20.0.5", instance.ID, instance.HostAddress)
		}
		if instance.Labels["cluster"] != "shop-c1" {
			t.Errorf("instance %s labels = %v, want cluster=shop-c1", instance.ID, instance.Labels)
		}
	}

	got, err := client.GetInstance(ctx, instances[0].ID)
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	if got.ID != instances[0].ID {
		t.Errorf("GetInstance returned %q, want %q", got.ID, instances[0].ID)
	}

	if err := client.DeleteInstance(ctx, instances[0].ID); err != nil {
		t.Fatalf("DeleteInstance: %v", err)
	}

	// Deleting the workload spec must not remove the remaining
	// instance; instance removal is a separate operation.
	if err := client.DeleteWorkloadSpec(ctx, spec.ID); err != nil {
		t.Fatalf("DeleteWorkloadSpec: %v", err)
	}
	remaining, err := client.QueryInstances(ctx, backend.Selector{"cluster": "shop-c1"})
	if err != nil {
		t.Fatalf("QueryInstances after delete: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("got %d instances after spec deletion, want 1", len(remaining))
	}

	err = client.DeleteWorkloadSpec(ctx, spec.ID)
	var backendErr *backend.Error
	if !errors.As(err, &backendErr) {
		t.Fatalf("second DeleteWorkloadSpec returned %v, want *backend.Error", err)
	}
	if !backendErr.NotFound {
		t.Errorf("second DeleteWorkloadSpec error = %+v, want NotFound", backendErr)
	}
}

func TestMockDuplicateWorkloadRejected(t *testing.T) {
	client := startMock(t, 0)
	ctx := t.Context()

	spec := backend.WorkloadSpec{ID: "gantry-shop-c1-m1", Image: "stratos/tomcat:4.1.1", Replicas: 1}
	if err := client.CreateWorkloadSpec(ctx, spec); err != nil {
		t.Fatalf("CreateWorkloadSpec: %v", err)
	}

	err := client.CreateWorkloadSpec(ctx, spec)
	var backendErr *backend.Error
	if !errors.As(err, &backendErr) {
		t.Fatalf("duplicate create returned %v, want *backend.Error", err)
	}
	if backendErr.StatusCode != 409 {
		t.Errorf("duplicate create status = %d, want 409", backendErr.StatusCode)
	}
	if backendErr.NotFound {
		t.Errorf("duplicate create error marked NotFound: %+v", backendErr)
	}
}

func TestMockStartupDelay(t *testing.T) {
	client := startMock(t, time.Hour)
	ctx := t.Context()

	spec := backend.WorkloadSpec{ID: "gantry-shop-c1-m1", Image: "stratos/tomcat:4.1.1", Replicas: 1}
	if err := client.CreateWorkloadSpec(ctx, spec); err != nil {
		t.Fatalf("CreateWorkloadSpec: %v", err)
	}

	instances, err := client.QueryInstances(ctx, nil)
	if err != nil {
		t.Fatalf("QueryInstances: %v", err)
	}
	if len(instances) != 1 {
		t.Fatalf("got %d instances, want 1", len(instances))
	}
	if instances[0].Status != "Pending" {
		t.Errorf("instance status = %q, want Pending before the startup delay elapses", instances[0].Status)
	}
}

func TestMockSelectorFiltering(t *testing.T) {
	client := startMock(t, 0)
	ctx := t.Context()

	for _, cluster := range []string{"shop-c1", "pay-c1"} {
		spec := backend.WorkloadSpec{
			ID:       "gantry-" + cluster + "-m1",
			Image:    "stratos/tomcat:4.1.1",
			Replicas: 1,
			Labels:   map[string]string{"cluster": cluster, "application": "shop"},
		}
		if err := client.CreateWorkloadSpec(ctx, spec); err != nil {
			t.Fatalf("CreateWorkloadSpec %s: %v", spec.ID, err)
		}
	}

	matched, err := client.QueryInstances(ctx, backend.Selector{"cluster": "shop-c1"})
	if err != nil {
		t.Fatalf("QueryInstances: %v", err)
	}
	if len(matched) != 1 {
		t.Fatalf("selector cluster=shop-c1 matched %d instances, want 1", len(matched))
	}
	if matched[0].Labels["cluster"] != "shop-c1" {
		t.Errorf("matched instance labels = %v, want cluster=shop-c1", matched[0].Labels)
	}

	all, err := client.QueryInstances(ctx, nil)
	if err != nil {
		t.Fatalf("QueryInstances all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("empty selector matched %d instances, want 2", len(all))
	}
}

func TestMockServiceLifecycle(t *testing.T) {
	client := startMock(t, 0)
	ctx := t.Context()

	spec := backend.ServiceSpec{
		ID:            "shop-c1-http",
		Protocol:      "tcp",
		Port:          4500,
		ContainerPort: 8080,
	}
	if err := client.CreateService(ctx, spec); err != nil {
		t.Fatalf("CreateService: %v", err)
	}

	err := client.CreateService(ctx, spec)
	var backendErr *backend.Error
	if !errors.As(err, &backendErr) {
		t.Fatalf("duplicate CreateService returned %v, want *backend.Error", err)
	}
	if backendErr.StatusCode != 409 {
		t.Errorf("duplicate CreateService status = %d, want 409", backendErr.StatusCode)
	}

	if err := client.DeleteService(ctx, spec.ID); err != nil {
		t.Fatalf("DeleteService: %v", err)
	}

	err = client.DeleteService(ctx, spec.ID)
	if !errors.As(err, &backendErr) {
		t.Fatalf("second DeleteService returned %v, want *backend.Error", err)
	}
	if !backendErr.NotFound {
		t.Errorf("second DeleteService error = %+v, want NotFound", backendErr)
	}
}

func TestMockInstanceNotFound(t *testing.T) {
	client := startMock(t, 0)
	ctx := t.Context()

	_, err := client.GetInstance(ctx, "absent")
	var backendErr *backend.Error
	if !errors.As(err, &backendErr) {
		t.Fatalf("GetInstance returned %v, want *backend.Error", err)
	}
	if !backendErr.NotFound {
		t.Errorf("GetInstance error = %+v, want NotFound", backendErr)
	}

	err = client.DeleteInstance(ctx, "absent")
	if !errors.As(err, &backendErr) {
		t.Fatalf("DeleteInstance returned %v, want *backend.Error", err)
	}
	if !backendErr.NotFound {
		t.Errorf("DeleteInstance error = %+v, want NotFound", backendErr)
	}
}

func TestParseSelector(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
		want    backend.Selector
	}{
		{
			name:    "empty",
			encoded: "",
			want:    backend.Selector{},
		},
		{
			name:    "single pair",
			encoded: "cluster=shop-c1",
			want:    backend.Selector{"cluster": "shop-c1"},
		},
		{
			name:    "multiple pairs",
			encoded: "application=shop,cluster=shop-c1",
			want:    backend.Selector{"application": "shop", "cluster": "shop-c1"},
		},
		{
			name:    "malformed pairs skipped",
			encoded: "novalue,=orphan,cluster=shop-c1",
			want:    backend.Selector{"cluster": "shop-c1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseSelector(tt.encoded)
			if len(got) != len(tt.want) {
				t.Fatalf("parseSelector(%q) = %v, want %v", tt.encoded, got, tt.want)
			}
			for key, want := range tt.want {
				if got[key] != want {
					t.Errorf("parseSelector(%q)[%s] = %q, want %q", tt.encoded, key, got[key], want)
				}
			}
		})
	}
}
