// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeNow(t *testing.T) {
	c := Fake(epoch)
	if got := c.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	c.Advance(7 * time.Second)
	want := epoch.Add(7 * time.Second)
	if got := c.Now(); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	c := Fake(epoch)
	ch := c.After(3 * time.Second)

	select {
	case <-ch:
		t.Fatal("After fired before Advance")
	default:
	}

	c.Advance(3 * time.Second)

	select {
	case <-ch:
	default:
		t.Fatal("After did not fire after Advance")
	}
}

func TestFakeAfterImmediateForNonPositive(t *testing.T) {
	c := Fake(epoch)
	for _, d := range []time.Duration{0, -time.Second} {
		select {
		case <-c.After(d):
		default:
			t.Fatalf("After(%v) did not fire immediately", d)
		}
	}
}

func TestFakeAfterPartialAdvance(t *testing.T) {
	c := Fake(epoch)
	ch := c.After(5 * time.Second)

	c.Advance(3 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before its deadline")
	default:
	}

	c.Advance(2 * time.Second)
	select {
	case <-ch:
	default:
		t.Fatal("After did not fire at the exact deadline")
	}
}

func TestFakeTickerFiresPerInterval(t *testing.T) {
	c := Fake(epoch)
	ticker := c.NewTicker(time.Second)
	defer ticker.Stop()

	for i := 0; i < 3; i++ {
		c.Advance(time.Second)
		select {
		case <-ticker.C:
		default:
			t.Fatalf("tick %d not delivered", i+1)
		}
	}
}

func TestFakeTickerStop(t *testing.T) {
	c := Fake(epoch)
	ticker := c.NewTicker(time.Second)

	ticker.Stop()
	c.Advance(5 * time.Second)

	select {
	case <-ticker.C:
		t.Fatal("ticker fired after Stop")
	default:
	}
}

func TestFakeTickerDropsBackloggedTicks(t *testing.T) {
	c := Fake(epoch)
	ticker := c.NewTicker(time.Second)
	defer ticker.Stop()

	// Five intervals elapse without a read; the buffer holds one.
	c.Advance(5 * time.Second)

	select {
	case <-ticker.C:
	default:
		t.Fatal("expected one buffered tick")
	}
	select {
	case <-ticker.C:
		t.Fatal("expected the remaining ticks to be dropped")
	default:
	}
}

func TestFakeTickerPanicsOnNonPositive(t *testing.T) {
	c := Fake(epoch)
	defer func() {
		if recover() == nil {
			t.Fatal("NewTicker(0) should panic")
		}
	}()
	c.NewTicker(0)
}

func TestFakeSleepBlocksUntilAdvance(t *testing.T) {
	c := Fake(epoch)

	done := make(chan struct{})
	go func() {
		c.Sleep(3 * time.Second)
		close(done)
	}()

	c.WaitForTimers(1)
	c.Advance(3 * time.Second)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Sleep did not return after Advance")
	}
}

func TestFakeSleepNonPositiveReturns(t *testing.T) {
	c := Fake(epoch)
	c.Sleep(0)
	c.Sleep(-time.Second)
}

func TestFakeWaitForTimers(t *testing.T) {
	c := Fake(epoch)
	for i := 0; i < 3; i++ {
		go c.Sleep(5 * time.Second)
	}

	c.WaitForTimers(3)

	if got := c.PendingCount(); got != 3 {
		t.Fatalf("PendingCount() = %d, want 3", got)
	}
}

func TestFakePendingCountExcludesStoppedAndFired(t *testing.T) {
	c := Fake(epoch)
	ticker := c.NewTicker(time.Second)
	c.After(2 * time.Second)

	if got := c.PendingCount(); got != 2 {
		t.Fatalf("PendingCount() = %d, want 2", got)
	}

	ticker.Stop()
	if got := c.PendingCount(); got != 1 {
		t.Fatalf("PendingCount() after Stop = %d, want 1", got)
	}

	c.Advance(2 * time.Second)
	if got := c.PendingCount(); got != 0 {
		t.Fatalf("PendingCount() after firing = %d, want 0", got)
	}
}

func TestFakeConcurrentRegistration(t *testing.T) {
	c := Fake(epoch)
	const goroutines = 10

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			c.After(time.Second)
			c.Now()
		}()
	}
	wg.Wait()

	c.WaitForTimers(goroutines)
	c.Advance(time.Second)
}

func TestClockImplementations(t *testing.T) {
	var _ Clock = Real()
	var _ Clock = (*FakeClock)(nil)
}
