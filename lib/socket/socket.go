// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package socket implements the CBOR request-response protocol the
// controller serves on its Unix socket. Each connection carries
// exactly one request and one response: the client writes a CBOR map
// containing an "action" field plus action-specific fields, the
// server routes it to the registered handler and writes a Response
// envelope, and the connection closes.
package socket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/gantry-project/gantry/lib/codec"
)

const (
	// readTimeout bounds the wait for the client's request. A
	// well-behaved client writes it immediately after connecting.
	readTimeout = 30 * time.Second

	// writeTimeout bounds the response write.
	writeTimeout = 10 * time.Second

	// maxRequestSize caps a single CBOR request at 1 MB, generous for
	// any lifecycle request; the largest field a client sends is a
	// member's payload parameter string.
	maxRequestSize = 1024 * 1024
)

// ActionFunc processes a socket request for a specific action. The raw
// parameter is the full CBOR request (including the "action" field).
// The handler decodes action-specific fields from this raw message.
//
// Return a value to include in the success response, or an error for
// a failure response. If the returned value is nil, the response
// contains only {ok: true}. If non-nil, the value is marshaled as
// CBOR and placed in the response's "data" field.
type ActionFunc func(ctx context.Context, raw []byte) (any, error)

// Response is the wire-format envelope for all socket protocol
// responses. Handlers return a result value (or nil) and an error;
// the server wraps these into a Response before encoding.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// Server serves the socket protocol on a Unix socket. Actions are
// registered with Handle before calling Serve. Unknown actions
// receive an error response.
type Server struct {
	path     string
	handlers map[string]ActionFunc
	logger   *slog.Logger

	// inflight counts connections whose handler is still running, so
	// Serve can drain them before returning.
	inflight sync.WaitGroup
}

// NewServer creates a server that will listen on path. Register
// actions with Handle before calling Serve.
func NewServer(path string, logger *slog.Logger) *Server {
	return &Server{
		path:     path,
		handlers: make(map[string]ActionFunc),
		logger:   logger,
	}
}

// Handle registers a handler for the given action name. Panics if the
// action is already registered.
func (s *Server) Handle(action string, handler ActionFunc) {
	if _, exists := s.handlers[action]; exists {
		panic(fmt.Sprintf("socket.Server: duplicate handler for action %q", action))
	}
	s.handlers[action] = handler
}

// Serve accepts connections on the Unix socket and dispatches requests
// to registered action handlers. Blocks until ctx is cancelled, then
// stops accepting and waits for in-flight handlers to finish.
//
// A stale socket file at the configured path is removed before
// listening, and the socket file is removed again on return.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.path, err)
	}

	listener, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.path, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.path)
	}()

	// Accept has no context form; closing the listener is how the
	// cancellation reaches it.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("socket server listening", "path", s.path)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			s.serveConn(ctx, conn)
		}()
	}

	s.inflight.Wait()
	return nil
}

// serveConn runs one request-response cycle and closes the
// connection. A connection that closes without sending anything gets
// no response.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	response := s.exchange(ctx, conn)
	if response == nil {
		return
	}

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		// The client is gone or stalled; it already has its answer in
		// the error case and can retry in the success case.
		s.logger.Debug("response write failed", "error", err)
	}
}

// exchange reads the request, routes it, and builds the response
// envelope. A nil return means the client sent nothing.
func (s *Server) exchange(ctx context.Context, conn net.Conn) *Response {
	conn.SetReadDeadline(time.Now().Add(readTimeout))

	// One CBOR value is the whole request: CBOR is self-delimiting,
	// so there is no framing to parse. The LimitReader keeps an
	// oversized or malicious request from exhausting memory.
	var raw codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return failure(fmt.Sprintf("invalid request: %v", err))
	}

	var header struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(raw, &header); err != nil {
		return failure(fmt.Sprintf("invalid request: %v", err))
	}
	if header.Action == "" {
		return failure("missing required field: action")
	}

	handler, exists := s.handlers[header.Action]
	if !exists {
		return failure(fmt.Sprintf("unknown action %q", header.Action))
	}

	started := time.Now()
	result, err := handler(ctx, []byte(raw))
	if err != nil {
		s.logger.Debug("action failed",
			"action", header.Action,
			"elapsed", time.Since(started),
			"error", err,
		)
		return failure(err.Error())
	}
	s.logger.Debug("action handled",
		"action", header.Action,
		"elapsed", time.Since(started),
	)

	response := &Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			return failure(fmt.Sprintf("internal: marshaling response: %v", err))
		}
		response.Data = data
	}
	return response
}

func failure(message string) *Response {
	return &Response{OK: false, Error: message}
}
