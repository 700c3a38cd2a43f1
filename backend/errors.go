// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"errors"
	"fmt"
)

// Error is a structured failure from a backend operation. Callers use
// errors.As to extract it:
//
//	var backendErr *backend.Error
//	if errors.As(err, &backendErr) {
//	    if backendErr.NotFound { ... }
//	}
type Error struct {
	// Op is the failed operation, e.g. "create-service".
	Op string

	// Ref identifies the resource the operation targeted.
	Ref string

	// StatusCode is the HTTP status of the backend response, when the
	// failure came from the backend API rather than transport.
	StatusCode int

	// NotFound marks failures caused by the target resource not
	// existing. Deletion paths treat these as already-done.
	NotFound bool

	// Message is the backend's description of the failure.
	Message string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("backend: %s %s: %d: %s", e.Op, e.Ref, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend: %s %s: %s", e.Op, e.Ref, e.Message)
}

// IsNotFound reports whether err wraps a *Error marking a missing
// resource.
func IsNotFound(err error) bool {
	var backendErr *Error
	return errors.As(err, &backendErr) && backendErr.NotFound
}
