// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package cartridgedef provides parsing and validation for Gantry
// cartridge catalogs. A cartridge describes a deployable workload
// type: the container image to run, the ports it exposes, and
// free-form properties consumed by the workload builder.
//
// Catalogs are authored on disk as JSONC files (JSON extended with
// comments and trailing commas). The typical flow:
//
//  1. ReadFile or Parse: JSONC bytes → Catalog
//  2. Validate: structural checks (unique types, image property, port mappings)
//  3. Get: look up a cartridge by type when a start request arrives
package cartridgedef

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/tidwall/jsonc"

	"github.com/gantry-project/gantry/lib/schema"
)

// Catalog is the on-disk collection of cartridge definitions.
type Catalog struct {
	Cartridges []schema.Cartridge `json:"cartridges"`
}

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals the result into a Catalog. The input format is plain
// JSON extended with // line comments, /* block comments */, and
// trailing commas.
func Parse(data []byte) (*Catalog, error) {
	stripped := jsonc.ToJSON(data)

	var catalog Catalog
	if err := json.Unmarshal(stripped, &catalog); err != nil {
		return nil, fmt.Errorf("parsing cartridge catalog: %w", err)
	}

	return &catalog, nil
}

// ReadFile reads a JSONC catalog file from disk and parses it into a
// Catalog. Returns a descriptive error if the file cannot be read or
// the JSON is malformed.
func ReadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	catalog, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return catalog, nil
}

// Get returns the cartridge with the given type.
func (c *Catalog) Get(cartridgeType string) (schema.Cartridge, bool) {
	for _, cartridge := range c.Cartridges {
		if cartridge.Type == cartridgeType {
			return cartridge, true
		}
	}
	return schema.Cartridge{}, false
}

// Types returns the catalog's cartridge types, sorted.
func (c *Catalog) Types() []string {
	types := make([]string, 0, len(c.Cartridges))
	for _, cartridge := range c.Cartridges {
		types = append(types, cartridge.Type)
	}
	sort.Strings(types)
	return types
}
