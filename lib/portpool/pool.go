// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package portpool allocates proxy ports from a bounded range.
//
// Each backend cluster owns one Pool. Ports are handed out
// sequentially with wraparound: the cursor advances past every
// allocation, scans to the end of the range, and wraps to the start.
// Allocation fails only when every port in the range is taken.
//
// A Pool is not safe for concurrent use; callers serialize access
// through the state store lock. All fields are exported so a Pool
// embeds directly into registry snapshots.
package portpool

import (
	"fmt"
	"sort"
)

// Pool tracks port allocations for one backend cluster.
type Pool struct {
	// Lower and Upper bound the allocatable range, inclusive.
	Lower int `json:"lower"`
	Upper int `json:"upper"`

	// Next is the scan cursor: the first candidate considered by the
	// next Allocate call.
	Next int `json:"next"`

	// Allocated holds the ports currently handed out.
	Allocated map[int]bool `json:"allocated,omitempty"`
}

// New returns a Pool over the inclusive range [lower, upper].
func New(lower, upper int) (*Pool, error) {
	if lower <= 0 || upper <= 0 || lower > upper {
		return nil, fmt.Errorf("portpool: invalid range [%d, %d]", lower, upper)
	}
	return &Pool{
		Lower:     lower,
		Upper:     upper,
		Next:      lower,
		Allocated: make(map[int]bool),
	}, nil
}

// Allocate hands out the next free port. The second return is false
// when the range is exhausted; the pool is left unchanged in that
// case.
func (p *Pool) Allocate() (int, bool) {
	if p.Allocated == nil {
		p.Allocated = make(map[int]bool)
	}
	if p.Next < p.Lower || p.Next > p.Upper {
		p.Next = p.Lower
	}
	size := p.Upper - p.Lower + 1
	for i := 0; i < size; i++ {
		candidate := p.Next
		p.Next++
		if p.Next > p.Upper {
			p.Next = p.Lower
		}
		if !p.Allocated[candidate] {
			p.Allocated[candidate] = true
			return candidate, true
		}
	}
	return 0, false
}

// Deallocate returns a port to the pool. Deallocating a port that is
// not allocated, or lies outside the range, is a no-op.
func (p *Pool) Deallocate(port int) {
	delete(p.Allocated, port)
}

// InUse reports how many ports are currently allocated.
func (p *Pool) InUse() int { return len(p.Allocated) }

// Capacity reports the size of the range.
func (p *Pool) Capacity() int { return p.Upper - p.Lower + 1 }

// Ports returns the allocated ports in ascending order.
func (p *Pool) Ports() []int {
	ports := make([]int, 0, len(p.Allocated))
	for port := range p.Allocated {
		ports = append(ports, port)
	}
	sort.Ints(ports)
	return ports
}

// Clone returns an independent copy of the pool.
func (p *Pool) Clone() *Pool {
	allocated := make(map[int]bool, len(p.Allocated))
	for port := range p.Allocated {
		allocated[port] = true
	}
	return &Pool{Lower: p.Lower, Upper: p.Upper, Next: p.Next, Allocated: allocated}
}
