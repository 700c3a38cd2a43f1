// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"testing"
)

func TestAddAccessURLDeduplicates(t *testing.T) {
	content := &InstanceActivatedContent{}
	content.AddAccessURL("http://10.0.0.1:4000")
	content.AddAccessURL("http://10.0.0.1:4001")
	content.AddAccessURL("http://10.0.0.1:4000")

	want := []string{"http://10.0.0.1:4000", "http://10.0.0.1:4001"}
	if len(content.AccessURLs) != len(want) {
		t.Fatalf("AccessURLs = %v, want %v", content.AccessURLs, want)
	}
	for i := range want {
		if content.AccessURLs[i] != want[i] {
			t.Fatalf("AccessURLs = %v, want %v", content.AccessURLs, want)
		}
	}
}

func TestAddLoadBalancerAddressDeduplicates(t *testing.T) {
	content := &InstanceActivatedContent{}
	content.AddLoadBalancerAddress("10.0.0.1")
	content.AddLoadBalancerAddress("10.0.0.1")

	if len(content.LoadBalancerAddresses) != 1 {
		t.Fatalf("LoadBalancerAddresses = %v, want one entry", content.LoadBalancerAddresses)
	}
}
