// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package socket

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net"
	"time"

	"github.com/gantry-project/gantry/lib/codec"
)

// dialTimeout bounds the connect phase only. Once the connection is
// up, the response deadline takes over.
const dialTimeout = 5 * time.Second

// responseReadTimeout caps the wait for a reply once the request is
// written. It exceeds the server's read and write deadlines combined,
// so a slow handler times out on the server side first.
const responseReadTimeout = 45 * time.Second

// maxResponseSize bounds a decoded reply, mirroring the server's
// request cap.
const maxResponseSize = 1024 * 1024

// CallError carries a failure the server reported (ok=false in the
// response envelope): the action that failed and the server's
// message.
type CallError struct {
	Action  string
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("server error on %q: %s", e.Action, e.Message)
}

// Client sends CBOR requests to a controller socket. Each Call opens
// a new connection (matching the server's one-request-per-connection
// model), sends the request, reads the response, and closes the
// connection.
type Client struct {
	socketPath string
}

// NewClient creates a client for the controller socket at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// Call invokes action on the server and decodes the response.
//
// fields carries the handler-specific request fields, nil when the
// action takes none. The client injects the "action" key itself, so
// the caller must not supply one. A non-nil result receives the
// CBOR-decoded response data when the server sent any.
//
// Server-reported failures (response ok=false) come back as a
// *CallError carrying the server's message. Connection and encoding
// problems are plain errors.
func (c *Client) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	request := make(map[string]any, len(fields)+1)
	maps.Copy(request, fields)
	request["action"] = action

	response, err := c.send(ctx, request)
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, err)
	}

	if !response.OK {
		return &CallError{
			Action:  action,
			Message: response.Error,
		}
	}

	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding %q response data: %w", action, err)
		}
	}

	return nil
}

// send dials a fresh connection for the request and runs the exchange
// on it.
func (c *Client) send(ctx context.Context, request map[string]any) (*Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("dialing: %w", err)
	}
	defer conn.Close()

	return transact(conn, request)
}

// transact writes one request on conn and reads the response under
// the response deadline. The write side is half-closed after the
// request so the server sees a clean EOF if it drains past the CBOR
// value.
func transact(conn net.Conn, request map[string]any) (*Response, error) {
	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	conn.SetReadDeadline(time.Now().Add(responseReadTimeout))
	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &response, nil
}
