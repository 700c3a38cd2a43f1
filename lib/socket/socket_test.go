// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package socket

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gantry-project/gantry/lib/codec"
	"github.com/gantry-project/gantry/lib/testutil"
)

// dialRequest sends one CBOR request over a fresh connection and
// decodes the response envelope.
func dialRequest(socketPath string, request any) (Response, error) {
	var response Response

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return response, err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return response, err
	}
	// Half-close so the server sees EOF when it drains the connection.
	conn.(*net.UnixConn).CloseWrite()

	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		return response, err
	}
	return response, nil
}

// roundTrip is dialRequest with test-failure plumbing.
func roundTrip(t *testing.T, socketPath string, request any) Response {
	t.Helper()
	response, err := dialRequest(socketPath, request)
	if err != nil {
		t.Fatalf("request over %s: %v", filepath.Base(socketPath), err)
	}
	return response
}

// payload decodes the data field of a response into T.
func payload[T any](t *testing.T, response Response) T {
	t.Helper()
	var v T
	if err := codec.Unmarshal(response.Data, &v); err != nil {
		t.Fatalf("decoding response data: %v", err)
	}
	return v
}

func testSocketPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(testutil.SocketDir(t), "test.sock")
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// waitForSocket blocks until the socket file exists, so tests don't
// race the server's listen setup.
func waitForSocket(t *testing.T, path string) {
	t.Helper()
	for {
		if _, err := os.Stat(path); err == nil {
			return
		}
		if t.Context().Err() != nil {
			t.Fatalf("socket %s did not appear before test context expired", path)
		}
		runtime.Gosched()
	}
}

// startServer runs Serve on a background goroutine and blocks until
// the socket is accepting connections. Cleanup stops the server and
// fails the test if Serve reported an error.
func startServer(t *testing.T, server *Server, socketPath string) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve returned error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Serve did not return after shutdown")
		}
	})

	waitForSocket(t, socketPath)
}

func TestServerStatus(t *testing.T) {
	t.Parallel()

	socketPath := testSocketPath(t)
	server := NewServer(socketPath, testLogger())
	server.Handle("controller-status", func(ctx context.Context, raw []byte) (any, error) {
		return map[string]any{"clusters": 3, "members": 7, "ports_leased": 12}, nil
	})
	startServer(t, server, socketPath)

	response := roundTrip(t, socketPath, map[string]string{"action": "controller-status"})
	if !response.OK {
		t.Fatalf("ok=false: %s", response.Error)
	}

	got := payload[map[string]uint64](t, response)
	want := map[string]uint64{"clusters": 3, "members": 7, "ports_leased": 12}
	if !maps.Equal(got, want) {
		t.Errorf("status payload: got %v, want %v", got, want)
	}
}

func TestServerUnknownAction(t *testing.T) {
	t.Parallel()

	socketPath := testSocketPath(t)
	server := NewServer(socketPath, testLogger())
	server.Handle("member-list", func(ctx context.Context, raw []byte) (any, error) {
		return nil, nil
	})
	startServer(t, server, socketPath)

	response := roundTrip(t, socketPath, map[string]string{"action": "member-purge"})
	if response.OK {
		t.Fatal("ok=true for an unregistered action")
	}
	if want := `unknown action "member-purge"`; response.Error != want {
		t.Errorf("error: got %q, want %q", response.Error, want)
	}
}

func TestServerMissingAction(t *testing.T) {
	t.Parallel()

	socketPath := testSocketPath(t)
	server := NewServer(socketPath, testLogger())
	startServer(t, server, socketPath)

	response := roundTrip(t, socketPath, map[string]string{"cluster_id": "shop.c1"})
	if response.OK {
		t.Fatal("ok=true for a request with no action field")
	}
	if want := "missing required field: action"; response.Error != want {
		t.Errorf("error: got %q, want %q", response.Error, want)
	}
}

func TestServerRejectsMalformedRequest(t *testing.T) {
	t.Parallel()

	socketPath := testSocketPath(t)
	server := NewServer(socketPath, testLogger())
	startServer(t, server, socketPath)

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	// 0xff is a lone CBOR break code, invalid outside an
	// indefinite-length item.
	if _, err := conn.Write([]byte{0xff, 0xff, 0xff}); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.(*net.UnixConn).CloseWrite()

	var response Response
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if response.OK {
		t.Error("ok=true for a malformed request")
	}
	if !strings.HasPrefix(response.Error, "invalid request") {
		t.Errorf("error: got %q, want an invalid request message", response.Error)
	}
}

func TestServerHandlerError(t *testing.T) {
	t.Parallel()

	socketPath := testSocketPath(t)
	server := NewServer(socketPath, testLogger())
	server.Handle("member-terminate", func(ctx context.Context, raw []byte) (any, error) {
		return nil, fmt.Errorf("member shop.c1-m9 not found")
	})
	startServer(t, server, socketPath)

	response := roundTrip(t, socketPath, map[string]string{"action": "member-terminate"})
	if response.OK {
		t.Fatal("ok=true for a failing handler")
	}
	if want := "member shop.c1-m9 not found"; response.Error != want {
		t.Errorf("error: got %q, want %q", response.Error, want)
	}
}

func TestServerNilResult(t *testing.T) {
	t.Parallel()

	socketPath := testSocketPath(t)
	server := NewServer(socketPath, testLogger())
	server.Handle("registry-flush", func(ctx context.Context, raw []byte) (any, error) {
		return nil, nil
	})
	startServer(t, server, socketPath)

	response := roundTrip(t, socketPath, map[string]string{"action": "registry-flush"})
	if !response.OK {
		t.Fatalf("ok=false: %s", response.Error)
	}
	if len(response.Data) != 0 {
		t.Errorf("data: got %d bytes, want none", len(response.Data))
	}
}

func TestServerHandlerSeesRequestFields(t *testing.T) {
	t.Parallel()

	socketPath := testSocketPath(t)
	server := NewServer(socketPath, testLogger())
	server.Handle("member-start", func(ctx context.Context, raw []byte) (any, error) {
		var request struct {
			ClusterID string `cbor:"cluster_id"`
			MemberID  string `cbor:"member_id"`
		}
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		return map[string]string{"started": request.ClusterID + "/" + request.MemberID}, nil
	})
	startServer(t, server, socketPath)

	response := roundTrip(t, socketPath, map[string]string{
		"action":     "member-start",
		"cluster_id": "shop.c1",
		"member_id":  "shop.c1-m1",
	})
	if !response.OK {
		t.Fatalf("ok=false: %s", response.Error)
	}

	got := payload[map[string]string](t, response)
	if got["started"] != "shop.c1/shop.c1-m1" {
		t.Errorf("started: got %q, want %q", got["started"], "shop.c1/shop.c1-m1")
	}
}

func TestServerConcurrentRequests(t *testing.T) {
	t.Parallel()

	socketPath := testSocketPath(t)
	server := NewServer(socketPath, testLogger())
	server.Handle("port-lease", func(ctx context.Context, raw []byte) (any, error) {
		var request struct {
			Seq int `cbor:"seq"`
		}
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		return map[string]int{"port": 4500 + request.Seq}, nil
	})
	startServer(t, server, socketPath)

	var group errgroup.Group
	for i := range 16 {
		group.Go(func() error {
			response, err := dialRequest(socketPath, map[string]any{"action": "port-lease", "seq": i})
			if err != nil {
				return fmt.Errorf("request %d: %w", i, err)
			}
			if !response.OK {
				return fmt.Errorf("request %d: %s", i, response.Error)
			}
			var lease struct {
				Port int `cbor:"port"`
			}
			if err := codec.Unmarshal(response.Data, &lease); err != nil {
				return fmt.Errorf("request %d: decoding data: %w", i, err)
			}
			if lease.Port != 4500+i {
				return fmt.Errorf("request %d: port %d, want %d", i, lease.Port, 4500+i)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		t.Error(err)
	}
}

func TestServerGracefulShutdown(t *testing.T) {
	t.Parallel()

	socketPath := testSocketPath(t)
	server := NewServer(socketPath, testLogger())

	// Handler that blocks until released.
	handlerStarted := make(chan struct{})
	handlerRelease := make(chan struct{})
	server.Handle("drain", func(ctx context.Context, raw []byte) (any, error) {
		close(handlerStarted)
		<-handlerRelease
		return map[string]bool{"drained": true}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveDone := make(chan struct{})
	go func() {
		defer close(serveDone)
		server.Serve(ctx)
	}()

	waitForSocket(t, socketPath)

	type callResult struct {
		response Response
		err      error
	}
	results := make(chan callResult, 1)
	go func() {
		response, err := dialRequest(socketPath, map[string]string{"action": "drain"})
		results <- callResult{response, err}
	}()

	<-handlerStarted

	// Shutdown begins while the handler is still running. Serve must
	// not return until the handler completes.
	cancel()
	select {
	case <-serveDone:
		t.Fatal("Serve returned while a handler was still active")
	case <-time.After(50 * time.Millisecond):
	}

	close(handlerRelease)

	result := testutil.RequireReceive(t, results, 5*time.Second, "response after handler release")
	if result.err != nil {
		t.Fatalf("request failed: %v", result.err)
	}
	if !result.response.OK {
		t.Errorf("ok=false after release: %s", result.response.Error)
	}

	testutil.RequireClosed(t, serveDone, 5*time.Second, "Serve return after handler completion")

	if _, err := os.Stat(socketPath); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("socket file after shutdown: stat err %v, want not-exist", err)
	}
}

func TestServerRemovesStaleSocket(t *testing.T) {
	t.Parallel()

	socketPath := testSocketPath(t)

	// Leave a leftover file at the socket path, as a crashed daemon
	// would. Serve must remove it before listening.
	if err := os.WriteFile(socketPath, nil, 0600); err != nil {
		t.Fatalf("creating stale socket file: %v", err)
	}

	server := NewServer(socketPath, testLogger())
	server.Handle("ping", func(ctx context.Context, raw []byte) (any, error) {
		return nil, nil
	})
	startServer(t, server, socketPath)

	// The stale file satisfies waitForSocket before the listener is
	// up, so retry the dial until the server answers.
	deadline := time.Now().Add(5 * time.Second)
	var response Response
	for {
		var err error
		response, err = dialRequest(socketPath, map[string]string{"action": "ping"})
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never replaced the stale socket: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !response.OK {
		t.Errorf("ok=false over replaced socket: %s", response.Error)
	}
}

func TestHandleDuplicatePanics(t *testing.T) {
	t.Parallel()

	server := NewServer("/tmp/unused.sock", testLogger())
	server.Handle("member-list", func(ctx context.Context, raw []byte) (any, error) {
		return nil, nil
	})

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("no panic on duplicate Handle registration")
		}
		if msg, ok := r.(string); !ok || !strings.Contains(msg, `duplicate handler for action "member-list"`) {
			t.Errorf("panic value: got %v", r)
		}
	}()
	server.Handle("member-list", func(ctx context.Context, raw []byte) (any, error) {
		return nil, nil
	})
}
