// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package payload implements the dynamic payload handed to workloads
// at start.
//
// The wire format is a single line of comma-separated name=value
// entries:
//
//	MB_IP=10.0.0.5,CLUSTER_ID=app.c1,TOKEN=abc
//
// Parse is lenient: an entry that does not split into exactly a name
// and a value, or whose name is empty, is silently dropped. Parameter
// order is preserved end to end; the workload builder emits payload
// entries into the container environment in declaration order.
package payload

import "strings"

// Parameter is one name/value entry of a payload.
type Parameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Payload is an ordered parameter list.
type Payload []Parameter

// Parse decodes the comma-separated name=value wire format. Malformed
// entries are dropped without error.
func Parse(s string) Payload {
	if s == "" {
		return nil
	}
	var p Payload
	for _, entry := range strings.Split(s, ",") {
		parts := strings.Split(entry, "=")
		if len(parts) != 2 || parts[0] == "" {
			continue
		}
		p = append(p, Parameter{Name: parts[0], Value: parts[1]})
	}
	return p
}

// String encodes the payload back to the wire format.
func (p Payload) String() string {
	entries := make([]string, len(p))
	for i, parameter := range p {
		entries[i] = parameter.Name + "=" + parameter.Value
	}
	return strings.Join(entries, ",")
}

// Lookup returns the value of the first parameter with the given name.
func (p Payload) Lookup(name string) (string, bool) {
	for _, parameter := range p {
		if parameter.Name == name {
			return parameter.Value, true
		}
	}
	return "", false
}

// Add returns a payload with the parameter appended. The receiver is
// not modified.
func (p Payload) Add(name, value string) Payload {
	out := make(Payload, len(p), len(p)+1)
	copy(out, p)
	return append(out, Parameter{Name: name, Value: value})
}

// Clone returns an independent copy.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	copy(out, p)
	return out
}
