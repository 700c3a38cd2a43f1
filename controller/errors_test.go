// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"errors"
	"testing"
	"time"
)

func TestErrorRendering(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "validation with both ids",
			err:  &ValidationError{ClusterID: "app.c1", MemberID: "app.c1-m1", Reason: "partition id is required"},
			want: "controller: partition id is required: [cluster-id] app.c1 [member-id] app.c1-m1",
		},
		{
			name: "validation with cluster only",
			err:  &ValidationError{ClusterID: "app.c1", Reason: "cluster is not registered"},
			want: "controller: cluster is not registered: [cluster-id] app.c1",
		},
		{
			name: "validation without ids",
			err:  &ValidationError{Reason: "member id is required"},
			want: "controller: member id is required",
		},
		{
			name: "port exhausted",
			err:  &PortExhaustedError{BackendClusterID: "kube-1", Lower: 4500, Upper: 4509},
			want: `controller: proxy port range [4500, 4509] of backend cluster "kube-1" is exhausted`,
		},
		{
			name: "provisioning timeout with zero observed",
			err:  &ProvisioningTimeoutError{ClusterID: "app.c1", MemberID: "app.c1-m1", Observed: 0, Elapsed: 2 * time.Minute},
			want: "controller: observed 0 instances after 2m0s (want exactly 1): [cluster-id] app.c1 [member-id] app.c1-m1",
		},
		{
			name: "provisioning timeout with extras",
			err:  &ProvisioningTimeoutError{ClusterID: "app.c1", MemberID: "app.c1-m1", Observed: 3, Elapsed: 5 * time.Second},
			want: "controller: observed 3 instances after 5s (want exactly 1): [cluster-id] app.c1 [member-id] app.c1-m1",
		},
		{
			name: "termination failed",
			err:  &TerminationFailedError{ClusterID: "app.c1", MemberID: "app.c1-m1", Err: errors.New("connection refused")},
			want: "controller: could not terminate member: [cluster-id] app.c1 [member-id] app.c1-m1: connection refused",
		},
		{
			name: "start failed",
			err:  &StartFailedError{MemberID: "app.c1-m1", Err: errors.New("boom")},
			want: "controller: could not start member: [member-id] app.c1-m1: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")

	var startErr *StartFailedError
	err := error(&StartFailedError{ClusterID: "app.c1", MemberID: "m1", Err: cause})
	if !errors.As(err, &startErr) {
		t.Fatal("errors.As did not match *StartFailedError")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find the wrapped cause in StartFailedError")
	}

	var terminationErr *TerminationFailedError
	err = &TerminationFailedError{ClusterID: "app.c1", MemberID: "m1", Err: cause}
	if !errors.As(err, &terminationErr) {
		t.Fatal("errors.As did not match *TerminationFailedError")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find the wrapped cause in TerminationFailedError")
	}
}

func TestIDSuffix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		clusterID string
		memberID  string
		want      string
	}{
		{"app.c1", "m1", ": [cluster-id] app.c1 [member-id] m1"},
		{"app.c1", "", ": [cluster-id] app.c1"},
		{"", "m1", ": [member-id] m1"},
		{"", "", ""},
	}
	for _, tt := range tests {
		if got := idSuffix(tt.clusterID, tt.memberID); got != tt.want {
			t.Errorf("idSuffix(%q, %q) = %q, want %q", tt.clusterID, tt.memberID, got, tt.want)
		}
	}
}
