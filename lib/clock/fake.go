// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock initialized to the given time. Time stands
// still until Advance is called.
//
// FakeClock is safe for concurrent use by multiple goroutines.
func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{now: initial}
	c.registered = sync.NewCond(&c.mu)
	return c
}

// FakeClock is a deterministic Clock for tests. Timers, tickers, and
// sleeps block until Advance moves the clock past their deadline.
type FakeClock struct {
	mu         sync.Mutex
	now        time.Time
	pending    []*fakeTimer
	registered *sync.Cond
}

// fakeTimer is one pending After, Sleep, or ticker deadline.
type fakeTimer struct {
	at time.Time
	ch chan time.Time

	// period is non-zero for tickers; on firing the deadline is
	// rescheduled at at + period.
	period time.Duration

	stopped bool
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After returns a channel that receives once the clock advances past
// d. If d <= 0 the channel receives immediately without registering a
// timer.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.pending = append(c.pending, &fakeTimer{at: c.now.Add(d), ch: ch})
	c.registered.Broadcast()
	return ch
}

// NewTicker returns a Ticker firing every d fake seconds. Panics if
// d <= 0.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	timer := &fakeTimer{at: c.now.Add(d), ch: ch, period: d}
	c.pending = append(c.pending, timer)
	c.registered.Broadcast()

	return &Ticker{
		C: ch,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			timer.stopped = true
		},
	}
}

// Sleep blocks the calling goroutine until the clock advances past d.
// If d <= 0 it returns immediately.
func (c *FakeClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	<-c.After(d)
}

// Advance moves the clock forward by d and fires every pending timer
// whose deadline falls within the new time, in deadline order. Channel
// sends are non-blocking: a tick that finds its buffer full is dropped,
// matching time.Ticker. Tickers whose period divides the advance fire
// once per elapsed period.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now
	c.mu.Unlock()

	for {
		due := c.takeDue(target)
		if len(due) == 0 {
			return
		}
		sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
		for _, timer := range due {
			select {
			case timer.ch <- target:
			default:
			}
		}
	}
}

// takeDue removes timers due at or before target from the pending
// list, rescheduling tickers for their next period, and returns them.
func (c *FakeClock) takeDue(target time.Time) []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due, keep []*fakeTimer
	for _, timer := range c.pending {
		if timer.stopped {
			continue
		}
		if timer.at.After(target) {
			keep = append(keep, timer)
			continue
		}
		due = append(due, timer)
		// Tickers stay pending at their next period; one-shots are
		// dropped from the list.
		if timer.period > 0 {
			timer.at = timer.at.Add(timer.period)
			keep = append(keep, timer)
		}
	}
	c.pending = keep
	return due
}

// WaitForTimers blocks until at least n timers, tickers, or sleeps are
// pending. Call it before Advance when the timer is registered by a
// separate goroutine.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pendingLocked() < n {
		c.registered.Wait()
	}
}

// PendingCount returns the number of active pending timers.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

// pendingLocked counts active timers. Caller must hold c.mu.
func (c *FakeClock) pendingLocked() int {
	n := 0
	for _, timer := range c.pending {
		if !timer.stopped {
			n++
		}
	}
	return n
}
