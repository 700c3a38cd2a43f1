// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns a string of the form "prefix-N" where N is a
// monotonically increasing integer. Use this instead of time.Now()
// when tests need member IDs, cluster IDs, or request IDs that must
// stay distinguishable across parallel tests.
//
//	memberID := testutil.UniqueID("member") // "member-1", "member-2", ...
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, uniqueCounter.Add(1))
}
