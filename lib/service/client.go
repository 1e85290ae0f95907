// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bureau-foundation/inbox/lib/codec"
)

// DefaultDialTimeout is the maximum time to wait for a connection to
// the service socket. It covers only the connect phase.
const DefaultDialTimeout = 5 * time.Second

// DefaultResponseTimeout is how long the client waits for the server
// to send a response after writing the request. Matched to the
// server's readTimeout + writeTimeout.
const DefaultResponseTimeout = 45 * time.Second

// maxResponseSize is the maximum size of a single CBOR response.
// Matches the server's maxRequestSize for symmetry.
const maxResponseSize = 1024 * 1024

// ServiceError is returned by Call when the server responds with
// ok=false. It wraps the server's error message and the action that
// failed.
type ServiceError struct {
	Action  string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service error on %q: %s", e.Action, e.Message)
}

// ServiceClient sends CBOR requests to a service socket. Each Call
// opens a new connection (matching the server's one-request-per-
// connection model), sends the request, reads the response, and
// closes the connection.
type ServiceClient struct {
	socketPath      string
	dialTimeout     time.Duration
	responseTimeout time.Duration
}

// NewServiceClient creates a client for the socket at socketPath with
// the default timeouts.
func NewServiceClient(socketPath string) *ServiceClient {
	return &ServiceClient{
		socketPath:      socketPath,
		dialTimeout:     DefaultDialTimeout,
		responseTimeout: DefaultResponseTimeout,
	}
}

// WithResponseTimeout returns a copy of the client that waits at most
// timeout for each response.
func (c *ServiceClient) WithResponseTimeout(timeout time.Duration) *ServiceClient {
	copied := *c
	copied.responseTimeout = timeout
	return &copied
}

// SocketPath returns the socket the client talks to.
func (c *ServiceClient) SocketPath() string { return c.socketPath }

// Call sends a CBOR request to the service and decodes the response.
//
// The fields parameter carries handler-specific request fields: a
// map[string]any or any struct the codec can encode as a map. The
// client adds "action" automatically. Pass nil for actions that take
// no additional parameters.
//
// On success (response ok=true), if result is non-nil and the
// response contains data, the data is CBOR-decoded into result.
//
// On failure (response ok=false), returns a *ServiceError containing
// the server's error message. Connection and encoding errors are
// returned as plain errors (not *ServiceError).
func (c *ServiceClient) Call(ctx context.Context, action string, fields any, result any) error {
	request, err := buildRequest(action, fields)
	if err != nil {
		return err
	}

	response, err := c.send(ctx, request)
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, err)
	}

	if !response.OK {
		return &ServiceError{
			Action:  action,
			Message: response.Error,
		}
	}

	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}

	return nil
}

// buildRequest constructs the CBOR request map from the caller's
// fields, then injects "action".
func buildRequest(action string, fields any) (map[string]any, error) {
	request := make(map[string]any)
	switch typed := fields.(type) {
	case nil:
	case map[string]any:
		for key, value := range typed {
			request[key] = value
		}
	default:
		data, err := codec.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("encoding %q request: %w", action, err)
		}
		if err := codec.Unmarshal(data, &request); err != nil {
			return nil, fmt.Errorf("%q request fields must encode as a map: %w", action, err)
		}
	}
	request["action"] = action
	return request, nil
}

// send connects to the socket, writes the request, and reads the
// response. Each call creates a new connection.
func (c *ServiceClient) send(ctx context.Context, request any) (*Response, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	// Abort the exchange if the caller gives up.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, contextError(ctx, fmt.Errorf("writing request: %w", err))
	}

	// Half-close the write side. CBOR is self-delimiting so this
	// isn't strictly necessary, but it lets the server's read side
	// see EOF cleanly.
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	conn.SetReadDeadline(time.Now().Add(c.responseTimeout))
	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		return nil, contextError(ctx, fmt.Errorf("reading response: %w", err))
	}

	return &response, nil
}

func (c *ServiceClient) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, contextError(ctx, fmt.Errorf("connecting: %w", err))
	}
	return conn, nil
}

// contextError prefers the context's error when the connection was
// closed because the context ended.
func contextError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return err
}

// Stream is an open stream connection. Frames are read with Recv.
type Stream struct {
	conn    net.Conn
	decoder *codec.Decoder
	ctx     context.Context
	stop    func() bool
}

// OpenStream sends a stream request and waits for the server's
// acknowledgement. The stream is closed when ctx is cancelled or Close
// is called.
func (c *ServiceClient) OpenStream(ctx context.Context, action string, fields any) (*Stream, error) {
	request, err := buildRequest(action, fields)
	if err != nil {
		return nil, err
	}
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening %q stream on %s: %w", action, c.socketPath, err)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	fail := func(err error) (*Stream, error) {
		stop()
		conn.Close()
		return nil, contextError(ctx, fmt.Errorf("opening %q stream on %s: %w", action, c.socketPath, err))
	}

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return fail(fmt.Errorf("writing request: %w", err))
	}

	decoder := codec.NewDecoder(conn)
	conn.SetReadDeadline(time.Now().Add(c.responseTimeout))
	var ack Response
	if err := decoder.Decode(&ack); err != nil {
		return fail(fmt.Errorf("reading acknowledgement: %w", err))
	}
	if !ack.OK {
		stop()
		conn.Close()
		return nil, &ServiceError{Action: action, Message: ack.Error}
	}
	conn.SetReadDeadline(time.Time{})

	return &Stream{conn: conn, decoder: decoder, ctx: ctx, stop: stop}, nil
}

// Recv decodes the next frame into frame. It blocks until a frame
// arrives, the connection fails, or the stream's context ends.
func (s *Stream) Recv(frame any) error {
	if err := s.decoder.Decode(frame); err != nil {
		if errors.Is(err, io.EOF) {
			return contextError(s.ctx, io.EOF)
		}
		return contextError(s.ctx, fmt.Errorf("reading frame: %w", err))
	}
	return nil
}

// Close ends the stream.
func (s *Stream) Close() error {
	s.stop()
	return s.conn.Close()
}
