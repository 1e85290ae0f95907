// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/inbox/lib/codec"
	"github.com/bureau-foundation/inbox/lib/testutil"
)

// sendRequest connects to a Unix socket, sends a CBOR request, and
// returns the decoded response envelope.
func sendRequest(t *testing.T, socketPath string, request any) Response {
	t.Helper()

	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to socket: %v", err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		t.Fatalf("writing request: %v", err)
	}

	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	var response Response
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return response
}

// decodeData unmarshals the Data field of a response into the given
// target. Fails the test if decoding fails.
func decodeData(t *testing.T, response Response, target any) {
	t.Helper()
	if len(response.Data) == 0 {
		t.Fatal("response has no data to decode")
	}
	if err := codec.Unmarshal(response.Data, target); err != nil {
		t.Fatalf("decoding response data: %v", err)
	}
}

func testSocketPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(testutil.SocketDir(t), "test.sock")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

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

// serve runs server until the test ends.
func serve(t *testing.T, server *SocketServer, socketPath string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Serve(ctx); err != nil {
			t.Errorf("Serve returned error: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	waitForSocket(t, socketPath)
}

func TestSocketServerStatus(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())

	server.Handle("status", func(ctx context.Context, raw []byte) (any, error) {
		return map[string]any{
			"uptime_seconds": 42,
			"applications":   3,
		}, nil
	})
	serve(t, server, socketPath)

	response := sendRequest(t, socketPath, map[string]string{"action": "status"})

	if !response.OK {
		t.Errorf("expected ok=true, got false")
	}

	var data map[string]any
	decodeData(t, response, &data)
	if data["uptime_seconds"] != uint64(42) {
		t.Errorf("expected uptime_seconds=42, got %v (%T)", data["uptime_seconds"], data["uptime_seconds"])
	}
	if data["applications"] != uint64(3) {
		t.Errorf("expected applications=3, got %v (%T)", data["applications"], data["applications"])
	}
}

func TestSocketServerUnknownAction(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())
	server.Handle("status", func(ctx context.Context, raw []byte) (any, error) {
		return nil, nil
	})
	serve(t, server, socketPath)

	response := sendRequest(t, socketPath, map[string]string{"action": "nonexistent"})

	if response.OK {
		t.Errorf("expected ok=false, got true")
	}
	if !strings.Contains(response.Error, "nonexistent") {
		t.Errorf("expected error naming the action, got %q", response.Error)
	}
}

func TestSocketServerMissingAction(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())
	serve(t, server, socketPath)

	response := sendRequest(t, socketPath, map[string]string{"foo": "bar"})

	if response.OK {
		t.Errorf("expected ok=false, got true")
	}
	if response.Error != "missing required field: action" {
		t.Errorf("unexpected error %q", response.Error)
	}
}

func TestSocketServerInvalidCBOR(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())
	serve(t, server, socketPath)

	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	defer conn.Close()

	// Send garbage bytes that aren't valid CBOR.
	conn.Write([]byte{0xff, 0xfe, 0xfd, 0xfc, 0xfb})

	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	var response Response
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		t.Fatalf("decoding error response: %v", err)
	}
	if response.OK {
		t.Errorf("expected ok=false for invalid CBOR, got true")
	}
}

func TestSocketServerHandlerError(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())
	server.Handle("fail", func(ctx context.Context, raw []byte) (any, error) {
		return nil, fmt.Errorf("something broke")
	})
	serve(t, server, socketPath)

	response := sendRequest(t, socketPath, map[string]string{"action": "fail"})

	if response.OK {
		t.Errorf("expected ok=false, got true")
	}
	if response.Error != "something broke" {
		t.Errorf("expected error='something broke', got %q", response.Error)
	}
}

func TestSocketServerNilResult(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())
	server.Handle("noop", func(ctx context.Context, raw []byte) (any, error) {
		return nil, nil
	})
	serve(t, server, socketPath)

	response := sendRequest(t, socketPath, map[string]string{"action": "noop"})

	if !response.OK {
		t.Errorf("expected ok=true, got false")
	}
	if len(response.Data) != 0 {
		t.Errorf("expected no data in response, got %d bytes", len(response.Data))
	}
}

func TestSocketServerConcurrentRequests(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())
	server.Handle("echo", func(ctx context.Context, raw []byte) (any, error) {
		var request struct {
			Value int `cbor:"value"`
		}
		codec.Unmarshal(raw, &request)
		return map[string]any{"value": request.Value}, nil
	})
	serve(t, server, socketPath)

	const concurrency = 20
	var clientWg sync.WaitGroup
	for i := range concurrency {
		clientWg.Add(1)
		go func() {
			defer clientWg.Done()
			response := sendRequest(t, socketPath, map[string]any{
				"action": "echo",
				"value":  i,
			})
			if !response.OK {
				t.Errorf("request %d: expected ok=true", i)
			}
			var data map[string]any
			decodeData(t, response, &data)
			if data["value"] != uint64(i) {
				t.Errorf("request %d: expected value=%d, got %v", i, i, data["value"])
			}
		}()
	}
	clientWg.Wait()
}

func TestSocketServerGracefulShutdown(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())

	handlerStarted := make(chan struct{})
	handlerRelease := make(chan struct{})
	server.Handle("slow", func(ctx context.Context, raw []byte) (any, error) {
		close(handlerStarted)
		<-handlerRelease
		return map[string]any{"completed": true}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.Serve(ctx)
	}()

	waitForSocket(t, socketPath)

	responseChan := make(chan Response, 1)
	go func() {
		responseChan <- sendRequest(t, socketPath, map[string]string{"action": "slow"})
	}()

	<-handlerStarted
	close(handlerRelease)
	cancel()

	// The in-flight request still completes.
	response := <-responseChan
	if !response.OK {
		t.Errorf("expected ok=true for in-flight request, got false")
	}

	if err := testutil.RequireReceive(t, serveDone, 5*time.Second, "Serve did not return after cancellation"); err != nil {
		t.Errorf("Serve returned error: %v", err)
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Error("socket file not cleaned up after Serve returned")
	}
}

func TestSocketServerDuplicateHandlerPanics(t *testing.T) {
	noop := func(ctx context.Context, raw []byte) (any, error) { return nil, nil }
	stream := func(ctx context.Context, raw []byte, conn net.Conn) {}

	tests := []struct {
		name     string
		register func(server *SocketServer)
	}{
		{"handle twice", func(server *SocketServer) {
			server.Handle("foo", noop)
			server.Handle("foo", noop)
		}},
		{"stream twice", func(server *SocketServer) {
			server.HandleStream("foo", stream)
			server.HandleStream("foo", stream)
		}},
		{"stream after handle", func(server *SocketServer) {
			server.Handle("foo", noop)
			server.HandleStream("foo", stream)
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			defer func() {
				message, _ := recover().(string)
				if !strings.Contains(message, `duplicate handler for action "foo"`) {
					t.Errorf("expected duplicate-handler panic, got %q", message)
				}
			}()
			test.register(NewSocketServer("/tmp/unused.sock", testLogger()))
		})
	}
}

func TestSocketServerPeerCredentials(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())
	server.Handle("whoami", func(ctx context.Context, raw []byte) (any, error) {
		peer, ok := PeerFromContext(ctx)
		if !ok {
			return nil, fmt.Errorf("no peer credentials")
		}
		return map[string]any{"pid": peer.PID, "uid": peer.UID}, nil
	})
	serve(t, server, socketPath)

	response := sendRequest(t, socketPath, map[string]string{"action": "whoami"})
	if !response.OK {
		t.Fatalf("whoami failed: %s", response.Error)
	}
	var data struct {
		PID int32  `cbor:"pid"`
		UID uint32 `cbor:"uid"`
	}
	decodeData(t, response, &data)
	if data.PID != int32(os.Getpid()) {
		t.Errorf("peer pid = %d, want %d", data.PID, os.Getpid())
	}
	if data.UID != uint32(os.Getuid()) {
		t.Errorf("peer uid = %d, want %d", data.UID, os.Getuid())
	}
}

func TestSocketServerStreamHandler(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())

	server.HandleStream("subscribe", func(ctx context.Context, raw []byte, conn net.Conn) {
		var request struct {
			Prefix string `cbor:"prefix"`
		}
		codec.Unmarshal(raw, &request)
		encoder := codec.NewEncoder(conn)
		for i := range 3 {
			if err := encoder.Encode(map[string]any{
				"sequence": i,
				"name":     fmt.Sprintf("%s-%d", request.Prefix, i),
			}); err != nil {
				return
			}
		}
	})
	serve(t, server, socketPath)

	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(map[string]any{
		"action": "subscribe",
		"prefix": "frame",
	}); err != nil {
		t.Fatalf("writing request: %v", err)
	}

	decoder := codec.NewDecoder(conn)
	var ack Response
	if err := decoder.Decode(&ack); err != nil || !ack.OK {
		t.Fatalf("acknowledgement = %+v, %v", ack, err)
	}
	for i := range 3 {
		var frame map[string]any
		if err := decoder.Decode(&frame); err != nil {
			t.Fatalf("reading frame %d: %v", i, err)
		}
		if frame["sequence"] != uint64(i) {
			t.Errorf("frame %d: expected sequence=%d, got %v", i, i, frame["sequence"])
		}
		if want := fmt.Sprintf("frame-%d", i); frame["name"] != want {
			t.Errorf("frame %d: expected name=%s, got %v", i, want, frame["name"])
		}
	}
}

func TestSocketServerStreamHandlerGracefulShutdown(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())

	handlerStarted := make(chan struct{})
	server.HandleStream("subscribe", func(ctx context.Context, raw []byte, conn net.Conn) {
		close(handlerStarted)
		<-ctx.Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.Serve(ctx)
	}()
	waitForSocket(t, socketPath)

	client := NewServiceClient(socketPath)
	stream, err := client.OpenStream(context.Background(), "subscribe", nil)
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	defer stream.Close()

	<-handlerStarted
	cancel()

	// The server closes the connection on shutdown.
	var frame map[string]any
	if err := stream.Recv(&frame); err == nil {
		t.Errorf("Recv after shutdown returned frame %v", frame)
	}
	if err := testutil.RequireReceive(t, serveDone, 5*time.Second, "Serve did not return after cancellation"); err != nil {
		t.Errorf("Serve returned error: %v", err)
	}
}

func TestSocketServerStreamCoexistsWithRequestResponse(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())

	server.Handle("status", func(ctx context.Context, raw []byte) (any, error) {
		return map[string]any{"ok": true}, nil
	})
	release := make(chan struct{})
	server.HandleStream("subscribe", func(ctx context.Context, raw []byte, conn net.Conn) {
		select {
		case <-release:
		case <-ctx.Done():
		}
	})
	serve(t, server, socketPath)

	client := NewServiceClient(socketPath)
	stream, err := client.OpenStream(context.Background(), "subscribe", nil)
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	defer stream.Close()

	// A long-lived stream does not block other requests.
	response := sendRequest(t, socketPath, map[string]string{"action": "status"})
	if !response.OK {
		t.Errorf("status during stream failed: %s", response.Error)
	}
	close(release)
}
