// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"io"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/inbox/lib/codec"
	"github.com/bureau-foundation/inbox/lib/testutil"
)

// --- Request/response tests ---

func TestClientCall(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())

	server.Handle("status", func(ctx context.Context, raw []byte) (any, error) {
		return map[string]any{"uptime_seconds": 42}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		server.Serve(ctx)
	}()
	waitForSocket(t, socketPath)

	client := NewServiceClient(socketPath)

	var result map[string]any
	if err := client.Call(ctx, "status", nil, &result); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result["uptime_seconds"] != uint64(42) {
		t.Errorf("uptime_seconds: got %v (%T), want 42", result["uptime_seconds"], result["uptime_seconds"])
	}

	cancel()
	wg.Wait()
}

func TestClientCallStructFields(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())

	server.Handle("activate", func(ctx context.Context, raw []byte) (any, error) {
		var request struct {
			Action   string `cbor:"action"`
			SourceID string `cbor:"source_id"`
		}
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		return map[string]any{"action": request.Action, "source_id": request.SourceID}, nil
	})
	serve(t, server, socketPath)

	type activateRequest struct {
		SourceID string `json:"source_id"`
	}

	client := NewServiceClient(socketPath)
	var result map[string]string
	if err := client.Call(context.Background(), "activate", activateRequest{SourceID: "inbox"}, &result); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result["action"] != "activate" {
		t.Errorf("action = %q, want activate", result["action"])
	}
	if result["source_id"] != "inbox" {
		t.Errorf("source_id = %q, want inbox", result["source_id"])
	}
}

func TestClientCallRejectsNonMapFields(t *testing.T) {
	client := NewServiceClient(filepath.Join(t.TempDir(), "unused.sock"))
	if err := client.Call(context.Background(), "status", []string{"a"}, nil); err == nil {
		t.Fatal("expected error for fields that do not encode as a map")
	}
}

func TestClientCallNilResult(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())

	server.Handle("ping", func(ctx context.Context, raw []byte) (any, error) {
		return map[string]any{"pong": true}, nil
	})
	serve(t, server, socketPath)

	client := NewServiceClient(socketPath)

	// Call with nil result: succeeds and discards the data.
	if err := client.Call(context.Background(), "ping", nil, nil); err != nil {
		t.Fatalf("Call with nil result: %v", err)
	}
}

func TestClientCallNoResponseData(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())

	server.Handle("noop", func(ctx context.Context, raw []byte) (any, error) {
		return nil, nil
	})
	serve(t, server, socketPath)

	client := NewServiceClient(socketPath)

	var result map[string]any
	if err := client.Call(context.Background(), "noop", nil, &result); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result != nil {
		t.Errorf("result should be nil when server returns no data, got %v", result)
	}
}

func TestClientCallServiceError(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())

	server.Handle("fail", func(ctx context.Context, raw []byte) (any, error) {
		return nil, errors.New("something broke")
	})
	serve(t, server, socketPath)

	client := NewServiceClient(socketPath)
	err := client.Call(context.Background(), "fail", nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}

	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected *ServiceError, got %T: %v", err, err)
	}
	if serviceErr.Action != "fail" {
		t.Errorf("error action: got %q, want fail", serviceErr.Action)
	}
	if serviceErr.Message != "something broke" {
		t.Errorf("error message: got %q, want 'something broke'", serviceErr.Message)
	}
}

func TestClientCallUnknownAction(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())

	server.Handle("known", func(ctx context.Context, raw []byte) (any, error) {
		return nil, nil
	})
	serve(t, server, socketPath)

	client := NewServiceClient(socketPath)
	err := client.Call(context.Background(), "unknown", nil, nil)
	if err == nil {
		t.Fatal("expected error for unknown action")
	}

	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected *ServiceError, got %T: %v", err, err)
	}
}

func TestClientCallConnectionRefused(t *testing.T) {
	// Socket path that doesn't exist.
	client := NewServiceClient(filepath.Join(t.TempDir(), "nonexistent.sock"))

	err := client.Call(context.Background(), "status", nil, nil)
	if err == nil {
		t.Fatal("expected error for connection refused")
	}

	// Not a ServiceError: it's a connection failure.
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		t.Fatalf("connection failure should not be *ServiceError, got %v", serviceErr)
	}
}

func TestClientCallContextCancelled(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())

	handlerStarted := make(chan struct{})
	server.Handle("hang", func(ctx context.Context, raw []byte) (any, error) {
		close(handlerStarted)
		<-ctx.Done()
		return nil, nil
	})
	serve(t, server, socketPath)

	client := NewServiceClient(socketPath)
	callCtx, cancelCall := context.WithCancel(context.Background())

	result := make(chan error, 1)
	go func() {
		result <- client.Call(callCtx, "hang", nil, nil)
	}()

	<-handlerStarted
	cancelCall()

	err := testutil.RequireReceive(t, result, 5*time.Second, "Call did not return after cancellation")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestClientResponseTimeout(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())

	server.Handle("hang", func(ctx context.Context, raw []byte) (any, error) {
		<-ctx.Done()
		return nil, nil
	})
	serve(t, server, socketPath)

	client := NewServiceClient(socketPath).WithResponseTimeout(50 * time.Millisecond)
	if client.SocketPath() != socketPath {
		t.Errorf("SocketPath = %q, want %q", client.SocketPath(), socketPath)
	}
	err := client.Call(context.Background(), "hang", nil, nil)
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("expected a timeout error, got %v", err)
	}
}

func TestClientConcurrentCalls(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())

	server.Handle("echo", func(ctx context.Context, raw []byte) (any, error) {
		var request struct {
			Value int `cbor:"value"`
		}
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		return map[string]any{"value": request.Value}, nil
	})
	serve(t, server, socketPath)

	client := NewServiceClient(socketPath)

	const concurrency = 10
	var clientWg sync.WaitGroup
	for i := range concurrency {
		clientWg.Add(1)
		go func() {
			defer clientWg.Done()
			var result struct {
				Value int `cbor:"value"`
			}
			if err := client.Call(context.Background(), "echo", map[string]any{"value": i}, &result); err != nil {
				t.Errorf("call %d: %v", i, err)
				return
			}
			if result.Value != i {
				t.Errorf("call %d: got value %d", i, result.Value)
			}
		}()
	}
	clientWg.Wait()
}

// --- Stream tests ---

func TestClientOpenStream(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())

	server.HandleStream("count", func(ctx context.Context, raw []byte, conn net.Conn) {
		var request struct {
			Limit int `cbor:"limit"`
		}
		codec.Unmarshal(raw, &request)
		encoder := codec.NewEncoder(conn)
		for i := range request.Limit {
			if err := encoder.Encode(map[string]int{"n": i}); err != nil {
				return
			}
		}
	})
	serve(t, server, socketPath)

	client := NewServiceClient(socketPath)
	stream, err := client.OpenStream(context.Background(), "count", map[string]any{"limit": 3})
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	defer stream.Close()

	for i := range 3 {
		var frame struct {
			N int `cbor:"n"`
		}
		if err := stream.Recv(&frame); err != nil {
			t.Fatalf("Recv %d: %v", i, err)
		}
		if frame.N != i {
			t.Errorf("frame %d: n = %d", i, frame.N)
		}
	}

	// The handler returned, so the server closed the connection.
	var frame map[string]any
	if err := stream.Recv(&frame); !errors.Is(err, io.EOF) {
		t.Errorf("Recv after handler returned: got %v, want io.EOF", err)
	}
}

func TestClientOpenStreamUnknownAction(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())
	server.Handle("status", func(ctx context.Context, raw []byte) (any, error) {
		return nil, nil
	})
	serve(t, server, socketPath)

	client := NewServiceClient(socketPath)
	_, err := client.OpenStream(context.Background(), "subscribe", nil)

	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected *ServiceError, got %T: %v", err, err)
	}
	if serviceErr.Action != "subscribe" {
		t.Errorf("error action: got %q, want subscribe", serviceErr.Action)
	}
}

func TestClientStreamContextCancelled(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())

	server.HandleStream("idle", func(ctx context.Context, raw []byte, conn net.Conn) {
		// Block until the client goes away.
		buffer := make([]byte, 1)
		conn.Read(buffer)
	})
	serve(t, server, socketPath)

	client := NewServiceClient(socketPath)
	streamCtx, cancelStream := context.WithCancel(context.Background())
	stream, err := client.OpenStream(streamCtx, "idle", nil)
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	defer stream.Close()

	result := make(chan error, 1)
	go func() {
		var frame map[string]any
		result <- stream.Recv(&frame)
	}()

	cancelStream()
	err = testutil.RequireReceive(t, result, 5*time.Second, "Recv did not return after cancellation")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
