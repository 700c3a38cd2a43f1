// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"reflect"
	"testing"

	"github.com/gantry-project/gantry/backend"
	"github.com/gantry-project/gantry/lib/payload"
	"github.com/gantry-project/gantry/lib/schema"
)

func TestBuildWorkloadSpec(t *testing.T) {
	t.Parallel()

	member := &schema.Member{
		MemberID:  "app.c1-m1",
		ClusterID: "app.c1",
		Payload: payload.Payload{
			{Name: "APPLICATION_ID", Value: "shop"},
			{Name: "CLUSTER_ID", Value: "app.c1"},
		},
	}
	cartridge := &schema.Cartridge{
		Type: "tomcat",
		PortMappings: []schema.PortMapping{
			{Protocol: "http", ContainerPort: 8080},
			{Protocol: "https", ContainerPort: 8443},
		},
		Properties: map[string]string{"image": "stratos/tomcat:4.1.1"},
	}

	spec := buildWorkloadSpec(member, cartridge)

	if spec.ID != "app.c1-m1" {
		t.Errorf("spec.ID = %q, want %q", spec.ID, "app.c1-m1")
	}
	if spec.Image != "stratos/tomcat:4.1.1" {
		t.Errorf("spec.Image = %q, want %q", spec.Image, "stratos/tomcat:4.1.1")
	}
	if spec.Replicas != 1 {
		t.Errorf("spec.Replicas = %d, want 1", spec.Replicas)
	}
	wantLabels := map[string]string{"cluster": "app.c1", "member": "app.c1-m1"}
	if !reflect.DeepEqual(spec.Labels, wantLabels) {
		t.Errorf("spec.Labels = %v, want %v", spec.Labels, wantLabels)
	}
	wantPorts := []backend.ContainerPort{
		{Protocol: "http", Port: 8080},
		{Protocol: "https", Port: 8443},
	}
	if !reflect.DeepEqual(spec.Ports, wantPorts) {
		t.Errorf("spec.Ports = %v, want %v", spec.Ports, wantPorts)
	}
	wantEnvironment := []backend.EnvVar{
		{Name: "APPLICATION_ID", Value: "shop"},
		{Name: "CLUSTER_ID", Value: "app.c1"},
	}
	if !reflect.DeepEqual(spec.Environment, wantEnvironment) {
		t.Errorf("spec.Environment = %v, want %v", spec.Environment, wantEnvironment)
	}
}

func TestBuildWorkloadSpecMinimal(t *testing.T) {
	t.Parallel()

	member := &schema.Member{MemberID: "m1", ClusterID: "c1"}
	cartridge := &schema.Cartridge{Type: "worker", Properties: map[string]string{"image": "worker:1"}}

	spec := buildWorkloadSpec(member, cartridge)

	if spec.Ports != nil {
		t.Errorf("spec.Ports = %v, want nil", spec.Ports)
	}
	if spec.Environment != nil {
		t.Errorf("spec.Environment = %v, want nil", spec.Environment)
	}
	if spec.Replicas != 1 {
		t.Errorf("spec.Replicas = %d, want 1", spec.Replicas)
	}
}
