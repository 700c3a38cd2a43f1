// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package backendtest provides an in-memory backend.Client for tests.
//
// The fake records every call, supports per-operation and per-resource
// failure injection, and by default materializes instances for each
// submitted workload spec the way a scheduler would. Tests drive
// instance status transitions explicitly via SetInstanceStatus.
package backendtest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/gantry-project/gantry/backend"
)

// Fake is an in-memory backend.Client. The zero value is not usable;
// call New.
type Fake struct {
	// ScheduleInstances controls whether CreateWorkloadSpec
	// materializes instances for the spec (default true). Disable to
	// simulate a backend that accepts specs but never schedules.
	ScheduleInstances bool

	// HostAddress is assigned to every materialized instance.
	HostAddress string

	mu        sync.Mutex
	workloads map[string]backend.WorkloadSpec
	instances map[string]backend.Instance
	services  map[string]backend.ServiceSpec
	calls     []string
	failures  map[string]error
}

var _ backend.Client = (*Fake)(nil)

// New returns an empty fake with instance scheduling enabled.
func New() *Fake {
	return &Fake{
		ScheduleInstances: true,
		HostAddress:       "10.244.0.5",
		workloads:         make(map[string]backend.WorkloadSpec),
		instances:         make(map[string]backend.Instance),
		services:          make(map[string]backend.ServiceSpec),
		failures:          make(map[string]error),
	}
}

// Fail injects err for every future call of op ("create-service",
// "delete-workload-spec", ...).
func (f *Fake) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = err
}

// FailRef injects err only for calls of op targeting ref.
func (f *Fake) FailRef(op, ref string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op+" "+ref] = err
}

// injected returns the error to inject for op on ref, if any. Caller
// must hold f.mu.
func (f *Fake) injected(op, ref string) error {
	if err, ok := f.failures[op+" "+ref]; ok {
		return err
	}
	return f.failures[op]
}

// record appends to the call log. Caller must hold f.mu.
func (f *Fake) record(op, ref string) {
	f.calls = append(f.calls, op+" "+ref)
}

// Calls returns the call log, one "op ref" entry per backend call in
// order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many calls of op were made.
func (f *Fake) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	prefix := op + " "
	for _, call := range f.calls {
		if len(call) >= len(prefix) && call[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (f *Fake) CreateWorkloadSpec(ctx context.Context, spec backend.WorkloadSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create-workload-spec", spec.ID)
	if err := f.injected("create-workload-spec", spec.ID); err != nil {
		return err
	}
	if _, exists := f.workloads[spec.ID]; exists {
		return &backend.Error{Op: "create-workload-spec", Ref: spec.ID, StatusCode: 409, Message: "already exists"}
	}
	f.workloads[spec.ID] = spec
	if f.ScheduleInstances {
		for i := 0; i < spec.Replicas; i++ {
			instance := backend.Instance{
				ID:          fmt.Sprintf("%s-%s", spec.ID, uuid.NewString()),
				Status:      "Pending",
				HostAddress: f.HostAddress,
				Labels:      cloneLabels(spec.Labels),
			}
			f.instances[instance.ID] = instance
		}
	}
	return nil
}

func (f *Fake) DeleteWorkloadSpec(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete-workload-spec", id)
	if err := f.injected("delete-workload-spec", id); err != nil {
		return err
	}
	if _, exists := f.workloads[id]; !exists {
		return &backend.Error{Op: "delete-workload-spec", Ref: id, StatusCode: 404, NotFound: true, Message: "no such workload spec"}
	}
	delete(f.workloads, id)
	return nil
}

func (f *Fake) QueryInstances(ctx context.Context, selector backend.Selector) ([]backend.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("query-instances", selectorString(selector))
	if err := f.injected("query-instances", selectorString(selector)); err != nil {
		return nil, err
	}
	var matched []backend.Instance
	for _, instance := range f.instances {
		if matches(instance.Labels, selector) {
			matched = append(matched, instance)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched, nil
}

func (f *Fake) GetInstance(ctx context.Context, id string) (*backend.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("get-instance", id)
	if err := f.injected("get-instance", id); err != nil {
		return nil, err
	}
	instance, exists := f.instances[id]
	if !exists {
		return nil, &backend.Error{Op: "get-instance", Ref: id, StatusCode: 404, NotFound: true, Message: "no such instance"}
	}
	out := instance
	out.Labels = cloneLabels(instance.Labels)
	return &out, nil
}

func (f *Fake) DeleteInstance(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete-instance", id)
	if err := f.injected("delete-instance", id); err != nil {
		return err
	}
	if _, exists := f.instances[id]; !exists {
		return &backend.Error{Op: "delete-instance", Ref: id, StatusCode: 404, NotFound: true, Message: "no such instance"}
	}
	delete(f.instances, id)
	return nil
}

func (f *Fake) CreateService(ctx context.Context, spec backend.ServiceSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create-service", spec.ID)
	if err := f.injected("create-service", spec.ID); err != nil {
		return err
	}
	if _, exists := f.services[spec.ID]; exists {
		return &backend.Error{Op: "create-service", Ref: spec.ID, StatusCode: 409, Message: "already exists"}
	}
	f.services[spec.ID] = spec
	return nil
}

func (f *Fake) DeleteService(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete-service", id)
	if err := f.injected("delete-service", id); err != nil {
		return err
	}
	if _, exists := f.services[id]; !exists {
		return &backend.Error{Op: "delete-service", Ref: id, StatusCode: 404, NotFound: true, Message: "no such service"}
	}
	delete(f.services, id)
	return nil
}

// AddInstance registers an instance directly, bypassing workload spec
// scheduling. Use it to simulate strays from earlier runs.
func (f *Fake) AddInstance(instance backend.Instance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instances[instance.ID] = instance
}

// SetInstanceStatus transitions an instance's status. Returns false
// when the instance does not exist.
func (f *Fake) SetInstanceStatus(id, status string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	instance, exists := f.instances[id]
	if !exists {
		return false
	}
	instance.Status = status
	f.instances[id] = instance
	return true
}

// Instances returns all registered instances sorted by id.
func (f *Fake) Instances() []backend.Instance {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]backend.Instance, 0, len(f.instances))
	for _, instance := range f.instances {
		out = append(out, instance)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Services returns all registered services sorted by id.
func (f *Fake) Services() []backend.ServiceSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]backend.ServiceSpec, 0, len(f.services))
	for _, service := range f.services {
		out = append(out, service)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Workloads returns all registered workload specs sorted by id.
func (f *Fake) Workloads() []backend.WorkloadSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]backend.WorkloadSpec, 0, len(f.workloads))
	for _, workload := range f.workloads {
		out = append(out, workload)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Workload returns the workload spec with the given id.
func (f *Fake) Workload(id string) (backend.WorkloadSpec, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	workload, exists := f.workloads[id]
	return workload, exists
}

func matches(labels map[string]string, selector backend.Selector) bool {
	for key, want := range selector {
		if labels[key] != want {
			return false
		}
	}
	return true
}

func selectorString(selector backend.Selector) string {
	keys := make([]string, 0, len(selector))
	for key := range selector {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := ""
	for i, key := range keys {
		if i > 0 {
			out += ","
		}
		out += key + "=" + selector[key]
	}
	return out
}

func cloneLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return nil
	}
	out := make(map[string]string, len(labels))
	for key, value := range labels {
		out[key] = value
	}
	return out
}
