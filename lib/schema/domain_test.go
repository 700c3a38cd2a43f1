// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"bytes"
	"testing"

	"github.com/gantry-project/gantry/lib/codec"
	"github.com/gantry-project/gantry/lib/payload"
	"github.com/gantry-project/gantry/lib/portpool"
)

func TestSnapshotSortOrdersByID(t *testing.T) {
	snapshot := &StateSnapshot{
		Members: []Member{
			{MemberID: "m-2"}, {MemberID: "m-1"}, {MemberID: "m-3"},
		},
		Clusters: []Cluster{
			{ClusterID: "b"}, {ClusterID: "a"},
		},
		BackendClusters: []BackendCluster{
			{BackendID: "k2"}, {BackendID: "k1"},
		},
	}
	snapshot.Sort()

	if snapshot.Members[0].MemberID != "m-1" || snapshot.Members[2].MemberID != "m-3" {
		t.Errorf("members not sorted: %+v", snapshot.Members)
	}
	if snapshot.Clusters[0].ClusterID != "a" {
		t.Errorf("clusters not sorted: %+v", snapshot.Clusters)
	}
	if snapshot.BackendClusters[0].BackendID != "k1" {
		t.Errorf("backend clusters not sorted: %+v", snapshot.BackendClusters)
	}
}

func TestSnapshotEncodingDeterministic(t *testing.T) {
	pool, err := portpool.New(4000, 4010)
	if err != nil {
		t.Fatal(err)
	}
	pool.Allocate()
	pool.Allocate()

	snapshot := &StateSnapshot{
		FormatVersion: CurrentFormatVersion,
		TakenAt:       1767225600000,
		Members: []Member{{
			MemberID:      "app.c1-member-1",
			ClusterID:     "app.c1",
			CartridgeType: "php",
			PartitionID:   "p1",
			InitTime:      1767225600000,
			Payload:       payload.Parse("a=1,b=2"),
		}},
		Clusters: []Cluster{{
			ClusterID:     "app.c1",
			CartridgeType: "php",
			Properties:    map[string]string{PropertyBackendClusterID: "kube-1"},
			Services: []ProxyService{
				{ID: "app-c1-http-8080", ClusterID: "app.c1", Protocol: "http", Port: 4000, ContainerPort: 8080},
			},
		}},
		BackendClusters: []BackendCluster{{
			BackendID:  "kube-1",
			MasterHost: "10.0.0.1",
			MasterPort: 8080,
			Ports:      pool,
		}},
	}
	snapshot.Sort()

	first, err := codec.Marshal(snapshot)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := codec.Marshal(snapshot)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("snapshot encoding is not deterministic")
	}

	var decoded StateSnapshot
	if err := codec.Unmarshal(first, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(decoded.Members) != 1 || decoded.Members[0].MemberID != "app.c1-member-1" {
		t.Errorf("decoded members = %+v", decoded.Members)
	}
	if got := decoded.BackendClusters[0].Ports.InUse(); got != 2 {
		t.Errorf("decoded pool InUse() = %d, want 2", got)
	}
	if got := decoded.Members[0].Payload.String(); got != "a=1,b=2" {
		t.Errorf("decoded payload = %q, want %q", got, "a=1,b=2")
	}
}

func TestClusterSetProperty(t *testing.T) {
	var cluster Cluster
	cluster.SetProperty(PropertyBackendClusterID, "kube-1")

	if got := cluster.Property(PropertyBackendClusterID); got != "kube-1" {
		t.Errorf("Property = %q, want %q", got, "kube-1")
	}
	if got := cluster.Property("absent"); got != "" {
		t.Errorf("Property(absent) = %q, want empty", got)
	}
}
