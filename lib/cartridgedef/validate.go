// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package cartridgedef

import (
	"fmt"
	"strconv"

	"github.com/gantry-project/gantry/lib/schema"
)

// Validate checks a Catalog for structural issues. Returns a list of
// human-readable issue descriptions. An empty list means the catalog
// is valid.
//
// Structural checks include:
//   - At least one cartridge is required
//   - Each cartridge must have a non-empty Type, unique across the catalog
//   - Each cartridge must carry an image property
//   - Port mapping protocols must be "tcp" or "udp"
//   - Container ports must be in 1-65535
//   - Port mappings must be unique per cartridge
//   - min.replicas (when present) must be a positive integer
func Validate(catalog *Catalog) []string {
	var issues []string

	if len(catalog.Cartridges) == 0 {
		issues = append(issues, "catalog has no cartridges (at least one is required)")
	}

	// Cartridge types must be unique across the catalog. Start
	// requests resolve cartridges by type; a duplicate would make the
	// lookup depend on declaration order.
	types := make(map[string]int, len(catalog.Cartridges))
	for index, cartridge := range catalog.Cartridges {
		if cartridge.Type != "" {
			if firstIndex, exists := types[cartridge.Type]; exists {
				issues = append(issues, fmt.Sprintf(
					"cartridges[%d] %q: duplicate cartridge type (first used at cartridges[%d])",
					index, cartridge.Type, firstIndex,
				))
			} else {
				types[cartridge.Type] = index
			}
		}
	}

	for index, cartridge := range catalog.Cartridges {
		prefix := fmt.Sprintf("cartridges[%d]", index)
		issues = append(issues, validateCartridge(cartridge, prefix)...)
	}

	return issues
}

// validateCartridge checks a single cartridge definition for
// structural issues. The prefix identifies the cartridge's position
// (e.g., "cartridges[0]") for error messages.
func validateCartridge(cartridge schema.Cartridge, prefix string) []string {
	var issues []string

	if cartridge.Type == "" {
		issues = append(issues, fmt.Sprintf("%s: type is required", prefix))
	} else {
		prefix = fmt.Sprintf("%s %q", prefix, cartridge.Type)
	}

	if cartridge.Property(schema.PropertyImage) == "" {
		issues = append(issues, fmt.Sprintf("%s: properties[%q] is required", prefix, schema.PropertyImage))
	}

	// Duplicate mappings would produce colliding proxy service IDs,
	// which embed the protocol and container port.
	mappings := make(map[schema.PortMapping]int, len(cartridge.PortMappings))
	for index, mapping := range cartridge.PortMappings {
		mappingPrefix := fmt.Sprintf("%s: port_mappings[%d]", prefix, index)

		switch mapping.Protocol {
		case "tcp", "udp":
			// Valid.
		default:
			issues = append(issues, fmt.Sprintf(
				"%s: protocol must be \"tcp\" or \"udp\", got %q", mappingPrefix, mapping.Protocol))
		}

		if mapping.ContainerPort < 1 || mapping.ContainerPort > 65535 {
			issues = append(issues, fmt.Sprintf(
				"%s: container_port must be in 1-65535, got %d", mappingPrefix, mapping.ContainerPort))
		}

		if firstIndex, exists := mappings[mapping]; exists {
			issues = append(issues, fmt.Sprintf(
				"%s: duplicate port mapping (first declared at port_mappings[%d])", mappingPrefix, firstIndex))
		} else {
			mappings[mapping] = index
		}
	}

	if value := cartridge.Property(schema.PropertyMinReplicas); value != "" {
		replicas, err := strconv.Atoi(value)
		if err != nil || replicas < 1 {
			issues = append(issues, fmt.Sprintf(
				"%s: properties[%q] must be a positive integer, got %q",
				prefix, schema.PropertyMinReplicas, value))
		}
	}

	return issues
}
