// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messagingmenu

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/bureau-foundation/inbox/lib/clock"
	"github.com/bureau-foundation/inbox/lib/codec"
	"github.com/bureau-foundation/inbox/lib/schema"
	"github.com/bureau-foundation/inbox/lib/service"
	"github.com/bureau-foundation/inbox/lib/testutil"
)

const testTimeout = 5 * time.Second

var epoch = time.Unix(1700000000, 0)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func newTestApp(t *testing.T, fake *clock.FakeClock) *App {
	t.Helper()
	app, err := New(Config{
		DesktopID:  "chat.desktop",
		SocketPath: filepath.Join(testutil.SocketDir(t), "chat.sock"),
		Logger:     testLogger(),
		Clock:      fake,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return app
}

// serveApp runs app until the test ends and returns a client for its
// socket.
func serveApp(t *testing.T, app *App) *service.ServiceClient {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := app.Serve(ctx); err != nil {
			t.Errorf("Serve: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	waitForSocket(t, app.socketPath)
	return service.NewServiceClient(app.socketPath)
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

func TestNewRequiresIdentity(t *testing.T) {
	if _, err := New(Config{SocketPath: "/tmp/x.sock"}); err == nil {
		t.Error("expected error without DesktopID")
	}
	if _, err := New(Config{DesktopID: "chat.desktop"}); err == nil {
		t.Error("expected error without SocketPath")
	}

	first, _ := New(Config{DesktopID: "chat.desktop", SocketPath: "/tmp/x.sock"})
	second, _ := New(Config{DesktopID: "chat.desktop", SocketPath: "/tmp/x.sock"})
	if first.Instance() == "" || first.Instance() == second.Instance() {
		t.Errorf("instances %q and %q should be distinct and non-empty", first.Instance(), second.Instance())
	}
}

func TestSourceOrdering(t *testing.T) {
	app := newTestApp(t, clock.Fake(epoch))

	for _, step := range []struct {
		position int
		id       string
	}{
		{-1, "a"},
		{-1, "c"},
		{1, "b"},
		{0, "first"},
		{99, "last"},
	} {
		if err := app.InsertSource(step.position, schema.Source{ID: step.id, Label: step.id}); err != nil {
			t.Fatalf("InsertSource(%d, %s): %v", step.position, step.id, err)
		}
	}

	var ids []string
	for _, source := range app.Sources() {
		ids = append(ids, source.ID)
	}
	want := []string{"first", "a", "b", "c", "last"}
	if len(ids) != len(want) {
		t.Fatalf("sources = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("sources = %v, want %v", ids, want)
		}
	}
}

func TestSourceChanges(t *testing.T) {
	app := newTestApp(t, clock.Fake(epoch))

	if err := app.AppendSource(schema.Source{ID: "inbox", Label: "Inbox"}); err != nil {
		t.Fatal(err)
	}
	if err := app.AppendSource(schema.Source{ID: "inbox"}); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate AppendSource error = %v, want ErrExists", err)
	}
	if err := app.AppendSource(schema.Source{}); err == nil {
		t.Error("AppendSource without id: expected error")
	}

	// No count, time or text: the source is stamped with the clock.
	if got := app.Sources()[0].Time; got != epoch.UnixNano() {
		t.Errorf("default time = %d, want %d", got, epoch.UnixNano())
	}

	later := epoch.Add(time.Hour)
	steps := []error{
		app.SetSourceCount("inbox", 4),
		app.SetSourceTime("inbox", later),
		app.SetSourceText("inbox", "2 new"),
		app.SetSourceLabel("inbox", "Mail"),
		app.DrawAttention("inbox"),
	}
	for i, err := range steps {
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	got := app.Sources()[0]
	want := schema.Source{ID: "inbox", Label: "Mail", Count: 4, Time: later.UnixNano(), Text: "2 new", DrawsAttention: true}
	if got != want {
		t.Errorf("source = %+v, want %+v", got, want)
	}

	if err := app.RemoveAttention("inbox"); err != nil || app.Sources()[0].DrawsAttention {
		t.Errorf("RemoveAttention: %v, draws attention %v", err, app.Sources()[0].DrawsAttention)
	}
	if err := app.SetSourceCount("missing", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetSourceCount(missing) error = %v, want ErrNotFound", err)
	}

	if !app.HasSource("inbox") || !app.RemoveSource("inbox") {
		t.Fatal("inbox should exist and be removed")
	}
	if app.HasSource("inbox") || app.RemoveSource("inbox") {
		t.Error("inbox still present after RemoveSource")
	}
}

func TestMessages(t *testing.T) {
	app := newTestApp(t, clock.Fake(epoch))

	if err := app.AddMessage(schema.Message{ID: "m1", Title: "Hello"}); err != nil {
		t.Fatal(err)
	}
	if err := app.AddMessage(schema.Message{ID: "m1"}); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate AddMessage error = %v, want ErrExists", err)
	}
	if err := app.AddMessage(schema.Message{ID: "m2", Time: 42}); err != nil {
		t.Fatal(err)
	}

	messages := app.Messages()
	if len(messages) != 2 || messages[0].Time != epoch.UnixNano() || messages[1].Time != 42 {
		t.Errorf("messages = %+v", messages)
	}
	if !app.RemoveMessage("m1") || app.HasMessage("m1") || app.RemoveMessage("m1") {
		t.Error("RemoveMessage(m1) did not remove exactly once")
	}
}

func TestServeHelloAndLists(t *testing.T) {
	app := newTestApp(t, clock.Fake(epoch))
	app.AppendSource(schema.Source{ID: "inbox", Label: "Inbox", Count: 3})
	app.AppendSource(schema.Source{ID: "work", Label: "Work", Count: 1})
	app.AddMessage(schema.Message{ID: "m1", Title: "Hello"})
	client := serveApp(t, app)

	var hello schema.HelloResponse
	if err := client.Call(t.Context(), schema.AppActionHello, nil, &hello); err != nil {
		t.Fatalf("hello: %v", err)
	}
	if hello.DesktopID != "chat.desktop" || hello.Instance != app.Instance() || hello.PID != os.Getpid() {
		t.Errorf("hello = %+v", hello)
	}

	var sources []schema.Source
	if err := client.Call(t.Context(), schema.AppActionListSources, nil, &sources); err != nil {
		t.Fatalf("list-sources: %v", err)
	}
	if len(sources) != 2 || sources[0].ID != "inbox" || sources[1].ID != "work" || sources[0].Count != 3 {
		t.Errorf("sources = %+v", sources)
	}

	var messages []schema.Message
	if err := client.Call(t.Context(), schema.AppActionListMessages, nil, &messages); err != nil {
		t.Fatalf("list-messages: %v", err)
	}
	if len(messages) != 1 || messages[0].Title != "Hello" {
		t.Errorf("messages = %+v", messages)
	}
}

func TestServeActivations(t *testing.T) {
	app := newTestApp(t, clock.Fake(epoch))
	app.AppendSource(schema.Source{ID: "inbox", Label: "Inbox", Count: 3})
	app.AddMessage(schema.Message{ID: "m1", Title: "Hello", Actions: []schema.ActionSpec{
		{Name: "reply", Label: "Reply", ParameterType: "s"},
	}})
	app.AddMessage(schema.Message{ID: "m2", Title: "Later"})

	activatedSources := make(chan string, 1)
	app.OnActivateSource(func(sourceID string) { activatedSources <- sourceID })
	type messageActivation struct {
		id, action string
		parameter  any
	}
	activatedMessages := make(chan messageActivation, 2)
	app.OnActivateMessage(func(messageID, action string, parameter any) {
		activatedMessages <- messageActivation{messageID, action, parameter}
	})
	client := serveApp(t, app)

	if err := client.Call(t.Context(), schema.AppActionActivateSource, schema.ActivateSourceRequest{SourceID: "inbox"}, nil); err != nil {
		t.Fatalf("activate-source: %v", err)
	}
	if got := testutil.RequireReceive(t, activatedSources, testTimeout); got != "inbox" {
		t.Errorf("activated source %q, want inbox", got)
	}
	if app.HasSource("inbox") {
		t.Error("activated source was not removed")
	}

	if err := client.Call(t.Context(), schema.AppActionActivateMessage, schema.ActivateMessageRequest{
		MessageID:  "m1",
		Action:     "reply",
		Parameters: []any{"on my way"},
	}, nil); err != nil {
		t.Fatalf("activate-message: %v", err)
	}
	got := testutil.RequireReceive(t, activatedMessages, testTimeout)
	if got.id != "m1" || got.action != "reply" || got.parameter != "on my way" {
		t.Errorf("activation = %+v", got)
	}

	if err := client.Call(t.Context(), schema.AppActionActivateMessage, schema.ActivateMessageRequest{MessageID: "m2"}, nil); err != nil {
		t.Fatalf("activate-message: %v", err)
	}
	got = testutil.RequireReceive(t, activatedMessages, testTimeout)
	if got.id != "m2" || got.action != "" || got.parameter != nil {
		t.Errorf("activation = %+v", got)
	}
	if len(app.Messages()) != 0 {
		t.Errorf("activated messages were not removed: %+v", app.Messages())
	}

	err := client.Call(t.Context(), schema.AppActionActivateMessage, schema.ActivateMessageRequest{
		MessageID:  "m3",
		Parameters: []any{1, 2},
	}, nil)
	var serviceErr *service.ServiceError
	if !errors.As(err, &serviceErr) {
		t.Errorf("two parameters: got %v, want *service.ServiceError", err)
	}
}

func TestServeDismiss(t *testing.T) {
	app := newTestApp(t, clock.Fake(epoch))
	app.AppendSource(schema.Source{ID: "inbox", Label: "Inbox", Count: 3})
	app.AppendSource(schema.Source{ID: "work", Label: "Work", Count: 1})
	app.AddMessage(schema.Message{ID: "m1"})
	dismissed := make(chan schema.DismissRequest, 1)
	app.OnDismiss(func(sourceIDs, messageIDs []string) {
		dismissed <- schema.DismissRequest{SourceIDs: sourceIDs, MessageIDs: messageIDs}
	})
	client := serveApp(t, app)

	if err := client.Call(t.Context(), schema.AppActionDismiss, schema.DismissRequest{
		SourceIDs:  []string{"inbox", "unknown"},
		MessageIDs: []string{"m1"},
	}, nil); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if app.HasSource("inbox") || app.HasMessage("m1") {
		t.Error("dismissed items still present")
	}
	if !app.HasSource("work") {
		t.Error("work was not dismissed but is gone")
	}
	got := testutil.RequireReceive(t, dismissed, testTimeout, "OnDismiss callback")
	if len(got.SourceIDs) != 2 || len(got.MessageIDs) != 1 || got.MessageIDs[0] != "m1" {
		t.Errorf("OnDismiss got %+v", got)
	}
}

func TestSubscribeStream(t *testing.T) {
	fake := clock.Fake(epoch)
	app := newTestApp(t, fake)
	client := serveApp(t, app)

	stream, err := client.OpenStream(t.Context(), schema.AppActionSubscribe, nil)
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	defer stream.Close()

	recv := func() schema.AppFrame {
		t.Helper()
		var frame schema.AppFrame
		if err := stream.Recv(&frame); err != nil {
			t.Fatalf("Recv: %v", err)
		}
		return frame
	}

	if frame := recv(); frame.Type != schema.AppFrameReady {
		t.Fatalf("first frame = %q, want ready", frame.Type)
	}

	app.InsertSource(0, schema.Source{ID: "inbox", Label: "Inbox", Count: 2})
	app.SetSourceCount("inbox", 5)
	app.AddMessage(schema.Message{ID: "m1", Title: "Hello"})
	app.RemoveMessage("m1")
	app.RemoveSource("inbox")

	if frame := recv(); frame.Type != schema.AppFrameSourceAdded || frame.Source == nil || frame.Source.ID != "inbox" || frame.Position != 0 {
		t.Errorf("frame = %+v, want source_added inbox at 0", frame)
	}
	if frame := recv(); frame.Type != schema.AppFrameSourceChanged || frame.Source == nil || frame.Source.Count != 5 {
		t.Errorf("frame = %+v, want source_changed count 5", frame)
	}
	if frame := recv(); frame.Type != schema.AppFrameMessageAdded || frame.Message == nil || frame.Message.Title != "Hello" {
		t.Errorf("frame = %+v, want message_added", frame)
	}
	if frame := recv(); frame.Type != schema.AppFrameMessageRemoved || frame.MessageID != "m1" {
		t.Errorf("frame = %+v, want message_removed m1", frame)
	}
	if frame := recv(); frame.Type != schema.AppFrameSourceRemoved || frame.SourceID != "inbox" {
		t.Errorf("frame = %+v, want source_removed inbox", frame)
	}

	// The heartbeat ticker is created once ready has been written.
	fake.WaitForTimers(1)
	fake.Advance(DefaultHeartbeatInterval)
	if frame := recv(); frame.Type != schema.AppFrameHeartbeat {
		t.Errorf("frame = %+v, want heartbeat", frame)
	}
}

func TestRegisterWithHub(t *testing.T) {
	hubSocket := filepath.Join(testutil.SocketDir(t), "hub.sock")
	requests := make(chan string, 2)
	hub := service.NewSocketServer(hubSocket, testLogger())
	hub.Handle(schema.HubActionRegister, func(ctx context.Context, raw []byte) (any, error) {
		var request schema.RegisterRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		requests <- "register " + request.DesktopID + " " + filepath.Base(request.SocketPath)
		return schema.RegisterResponse{AppID: "chat"}, nil
	})
	hub.Handle(schema.HubActionUnregister, func(ctx context.Context, raw []byte) (any, error) {
		var request schema.UnregisterRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		requests <- "unregister " + request.DesktopID
		return nil, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Serve(ctx)
	waitForSocket(t, hubSocket)

	app, err := New(Config{
		DesktopID:     "chat.desktop",
		SocketPath:    filepath.Join(testutil.SocketDir(t), "chat.sock"),
		HubSocketPath: hubSocket,
		Logger:        testLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}

	id, err := app.Register(t.Context())
	if err != nil || id != "chat" {
		t.Fatalf("Register = %q, %v", id, err)
	}
	if got := testutil.RequireReceive(t, requests, testTimeout); got != "register chat.desktop chat.sock" {
		t.Errorf("hub saw %q", got)
	}
	if err := app.Unregister(t.Context()); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if got := testutil.RequireReceive(t, requests, testTimeout); got != "unregister chat.desktop" {
		t.Errorf("hub saw %q", got)
	}

	standalone := newTestApp(t, clock.Fake(epoch))
	if _, err := standalone.Register(t.Context()); err == nil {
		t.Error("Register without a hub socket: expected error")
	}
}
