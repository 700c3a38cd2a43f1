// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"github.com/gantry-project/gantry/backend"
	"github.com/gantry-project/gantry/lib/schema"
)

// buildWorkloadSpec assembles the replication spec for one member. The
// spec id is the member id, so workload deletion needs no extra
// bookkeeping. Replicas is always one: the member is the unit of
// scale, and scaling a cluster means starting more members.
func buildWorkloadSpec(member *schema.Member, cartridge *schema.Cartridge) backend.WorkloadSpec {
	spec := backend.WorkloadSpec{
		ID:       member.MemberID,
		Image:    cartridge.Property(schema.PropertyImage),
		Replicas: 1,
		Labels: map[string]string{
			backend.LabelCluster: member.ClusterID,
			backend.LabelMember:  member.MemberID,
		},
	}
	for _, mapping := range cartridge.PortMappings {
		spec.Ports = append(spec.Ports, backend.ContainerPort{
			Protocol: mapping.Protocol,
			Port:     mapping.ContainerPort,
		})
	}
	for _, parameter := range member.Payload {
		spec.Environment = append(spec.Environment, backend.EnvVar{
			Name:  parameter.Name,
			Value: parameter.Value,
		})
	}
	return spec
}
