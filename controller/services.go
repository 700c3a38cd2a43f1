// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/gantry-project/gantry/backend"
	"github.com/gantry-project/gantry/lib/schema"
)

// serviceID derives the backend service id for one exposed port.
// Backend object names cannot contain dots, so cluster ids like
// "app.web.c1" are flattened to "app-web-c1".
func serviceID(clusterID, protocol string, containerPort int) string {
	return strings.ReplaceAll(fmt.Sprintf("%s-%s-%d", clusterID, protocol, containerPort), ".", "-")
}

// provisionServices creates one proxy service per port mapping,
// allocating each proxy-side port from the backend cluster's pool.
// The services created so far are returned even on failure so the
// caller can record the partial result or roll it back. Pool
// exhaustion yields a *PortExhaustedError; a backend create failure
// releases that mapping's port before returning.
func (c *Controller) provisionServices(ctx context.Context, client backend.Client, backendCluster *schema.BackendCluster, clusterID string, mappings []schema.PortMapping) ([]schema.ProxyService, error) {
	var created []schema.ProxyService
	for _, mapping := range mappings {
		port, ok := backendCluster.Ports.Allocate()
		if !ok {
			return created, &PortExhaustedError{
				BackendClusterID: backendCluster.BackendID,
				Lower:            backendCluster.Ports.Lower,
				Upper:            backendCluster.Ports.Upper,
			}
		}
		spec := backend.ServiceSpec{
			ID:            serviceID(clusterID, mapping.Protocol, mapping.ContainerPort),
			Protocol:      mapping.Protocol,
			Port:          port,
			ContainerPort: mapping.ContainerPort,
			Selector:      backend.Selector{backend.LabelCluster: clusterID},
		}
		if err := client.CreateService(ctx, spec); err != nil {
			backendCluster.Ports.Deallocate(port)
			return created, fmt.Errorf("controller: creating service %s: %w", spec.ID, err)
		}
		created = append(created, schema.ProxyService{
			ID:            spec.ID,
			ClusterID:     clusterID,
			Protocol:      mapping.Protocol,
			Port:          port,
			ContainerPort: mapping.ContainerPort,
		})
		c.logger.Info("provisioned proxy service",
			"service", spec.ID,
			"cluster", clusterID,
			"port", port,
			"container_port", mapping.ContainerPort)
	}
	return created, nil
}

// deprovisionServices deletes proxy services best-effort and returns
// the survivors. A service whose delete succeeds, or that the backend
// no longer knows, has its port returned to the pool; a service whose
// delete fails is kept with its port still allocated so a later
// deprovision can retry it.
func (c *Controller) deprovisionServices(ctx context.Context, client backend.Client, backendCluster *schema.BackendCluster, services []schema.ProxyService) []schema.ProxyService {
	var survivors []schema.ProxyService
	for _, service := range services {
		if err := client.DeleteService(ctx, service.ID); err != nil && !backend.IsNotFound(err) {
			c.logger.Warn("could not delete proxy service",
				"service", service.ID,
				"cluster", service.ClusterID,
				"error", err)
			survivors = append(survivors, service)
			continue
		}
		backendCluster.Ports.Deallocate(service.Port)
		c.logger.Info("deleted proxy service",
			"service", service.ID,
			"cluster", service.ClusterID,
			"port", service.Port)
	}
	return survivors
}

// pendingMappings filters a cartridge's port mappings to those without
// an existing proxy service, so starting a second member of a cluster
// reuses the services the first member provisioned.
func pendingMappings(cartridge *schema.Cartridge, existing []schema.ProxyService) []schema.PortMapping {
	var pending []schema.PortMapping
	for _, mapping := range cartridge.PortMappings {
		provisioned := false
		for _, service := range existing {
			if service.Protocol == mapping.Protocol && service.ContainerPort == mapping.ContainerPort {
				provisioned = true
				break
			}
		}
		if !provisioned {
			pending = append(pending, mapping)
		}
	}
	return pending
}
