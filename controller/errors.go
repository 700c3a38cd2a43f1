// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"fmt"
	"time"
)

// ValidationError reports a request that references something the
// controller does not know: a missing cluster context, an unknown
// partition or cartridge, an empty id. Raised before any backend call
// is made; the request had no side effects.
type ValidationError struct {
	ClusterID string
	MemberID  string
	Reason    string
}

func (e *ValidationError) Error() string {
	return "controller: " + e.Reason + idSuffix(e.ClusterID, e.MemberID)
}

// PortExhaustedError reports that a backend cluster's proxy port range
// has no free port left. Provisioning aborts; services created for
// earlier port mappings of the same call remain standing.
type PortExhaustedError struct {
	BackendClusterID string
	Lower            int
	Upper            int
}

func (e *PortExhaustedError) Error() string {
	return fmt.Sprintf("controller: proxy port range [%d, %d] of backend cluster %q is exhausted",
		e.Lower, e.Upper, e.BackendClusterID)
}

// ProvisioningTimeoutError reports that the bounded provisioning poll
// did not observe exactly one instance for the started member. The
// cluster has already been rolled back through the terminate path when
// this error surfaces.
type ProvisioningTimeoutError struct {
	ClusterID string
	MemberID  string

	// Observed is the instance count seen by the final poll: zero when
	// the ceiling elapsed with nothing scheduled, more than one when
	// the backend materialized extras.
	Observed int

	// Elapsed is how long the poll ran.
	Elapsed time.Duration
}

func (e *ProvisioningTimeoutError) Error() string {
	return fmt.Sprintf("controller: observed %d instances after %s (want exactly 1)%s",
		e.Observed, e.Elapsed, idSuffix(e.ClusterID, e.MemberID))
}

// TerminationFailedError reports that the member's workload spec could
// not be deleted. The member is retained in the store so termination
// can be retried; instance deletions attempted before the failure are
// not undone.
type TerminationFailedError struct {
	ClusterID string
	MemberID  string
	Err       error
}

func (e *TerminationFailedError) Error() string {
	return fmt.Sprintf("controller: could not terminate member%s: %v",
		idSuffix(e.ClusterID, e.MemberID), e.Err)
}

func (e *TerminationFailedError) Unwrap() error { return e.Err }

// StartFailedError wraps any start workflow failure outside the closed
// taxonomy (backend call errors, client construction, rollback-free
// spec submission failures).
type StartFailedError struct {
	ClusterID string
	MemberID  string
	Err       error
}

func (e *StartFailedError) Error() string {
	return fmt.Sprintf("controller: could not start member%s: %v",
		idSuffix(e.ClusterID, e.MemberID), e.Err)
}

func (e *StartFailedError) Unwrap() error { return e.Err }

// idSuffix renders the bracketed id trailer used across lifecycle
// errors and logs, e.g. ": [cluster-id] app.c1 [member-id] app.c1-m1".
// Empty ids are omitted; both empty yields "".
func idSuffix(clusterID, memberID string) string {
	s := ""
	if clusterID != "" {
		s += " [cluster-id] " + clusterID
	}
	if memberID != "" {
		s += " [member-id] " + memberID
	}
	if s == "" {
		return ""
	}
	return ":" + s
}
