// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package socket

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/gantry-project/gantry/lib/codec"
	"github.com/gantry-project/gantry/lib/testutil"
)

func TestClientCall(t *testing.T) {
	t.Parallel()

	socketPath := testSocketPath(t)
	server := NewServer(socketPath, testLogger())

	server.Handle("member-terminate", func(ctx context.Context, raw []byte) (any, error) {
		var request struct {
			MemberID string `cbor:"member_id"`
		}
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		return map[string]any{"member_id": request.MemberID, "removed": true}, nil
	})
	startServer(t, server, socketPath)

	client := NewClient(socketPath)

	var result struct {
		MemberID string `cbor:"member_id"`
		Removed  bool   `cbor:"removed"`
	}
	err := client.Call(t.Context(), "member-terminate", map[string]any{"member_id": "shop.c1-m1"}, &result)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.MemberID != "shop.c1-m1" {
		t.Errorf("member_id: got %q, want shop.c1-m1", result.MemberID)
	}
	if !result.Removed {
		t.Error("removed: got false, want true")
	}
}

func TestClientCallNilResult(t *testing.T) {
	t.Parallel()

	socketPath := testSocketPath(t)
	server := NewServer(socketPath, testLogger())

	server.Handle("ping", func(ctx context.Context, raw []byte) (any, error) {
		return map[string]any{"pong": true}, nil
	})
	startServer(t, server, socketPath)

	client := NewClient(socketPath)

	// Call with nil result should succeed and discard the data.
	if err := client.Call(t.Context(), "ping", nil, nil); err != nil {
		t.Fatalf("Call with nil result: %v", err)
	}
}

func TestClientCallNoResponseData(t *testing.T) {
	t.Parallel()

	socketPath := testSocketPath(t)
	server := NewServer(socketPath, testLogger())

	server.Handle("noop", func(ctx context.Context, raw []byte) (any, error) {
		return nil, nil
	})
	startServer(t, server, socketPath)

	client := NewClient(socketPath)

	// Call with a result target but server returns no data; should
	// succeed without decoding.
	var result map[string]any
	if err := client.Call(t.Context(), "noop", nil, &result); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result != nil {
		t.Errorf("result should be nil when server returns no data, got %v", result)
	}
}

func TestClientCallServerError(t *testing.T) {
	t.Parallel()

	socketPath := testSocketPath(t)
	server := NewServer(socketPath, testLogger())

	server.Handle("member-start", func(ctx context.Context, raw []byte) (any, error) {
		return nil, fmt.Errorf("cluster %q is not registered", "shop.c1")
	})
	startServer(t, server, socketPath)

	client := NewClient(socketPath)

	err := client.Call(t.Context(), "member-start", nil, nil)
	if err == nil {
		t.Fatal("expected error from failing handler")
	}

	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("expected *CallError, got %T: %v", err, err)
	}
	if callErr.Action != "member-start" {
		t.Errorf("error action: got %q, want member-start", callErr.Action)
	}
	if callErr.Message != `cluster "shop.c1" is not registered` {
		t.Errorf("error message: got %q", callErr.Message)
	}
}

func TestClientCallUnknownAction(t *testing.T) {
	t.Parallel()

	socketPath := testSocketPath(t)
	server := NewServer(socketPath, testLogger())
	startServer(t, server, socketPath)

	client := NewClient(socketPath)

	err := client.Call(t.Context(), "nonexistent", nil, nil)
	if err == nil {
		t.Fatal("expected error for unknown action")
	}

	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("expected *CallError, got %T: %v", err, err)
	}
}

func TestClientCallConnectionFailure(t *testing.T) {
	t.Parallel()

	// No server listening at this path.
	socketPath := filepath.Join(testutil.SocketDir(t), "absent.sock")
	client := NewClient(socketPath)

	err := client.Call(t.Context(), "status", nil, nil)
	if err == nil {
		t.Fatal("expected error when no server is listening")
	}

	// Transport failures are plain errors, not server-reported ones.
	var callErr *CallError
	if errors.As(err, &callErr) {
		t.Fatalf("expected transport error, got *CallError: %v", err)
	}
}
