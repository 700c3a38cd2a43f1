// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// Production code accepts a Clock parameter (or carries a Clock field)
// instead of calling time.Now, time.After, time.NewTicker, or time.Sleep
// directly. Real() provides standard library behavior. Fake() provides a
// deterministic clock for tests that advances only when Advance is
// called.
//
// When a goroutine under test registers a timer on a FakeClock, use
// WaitForTimers to block until the registration lands before calling
// Advance. That removes the race between timer registration and time
// advancement that otherwise forces tests onto real sleeps.
package clock
