// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package applist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/inbox/lib/schema"
	"github.com/bureau-foundation/inbox/lib/testutil"
)

const testTimeout = 5 * time.Second

// staticDescriptors resolves a fixed set of desktop ids.
type staticDescriptors map[string]*schema.Descriptor

func (d staticDescriptors) Resolve(identity string) (*schema.Descriptor, error) {
	descriptor, ok := d[identity]
	if !ok {
		return nil, fmt.Errorf("%s is not installed", identity)
	}
	return descriptor, nil
}

func testDescriptors() staticDescriptors {
	return staticDescriptors{
		"chat.desktop": {
			DesktopID: "chat.desktop",
			Name:      "Chat",
			Icon:      "chat",
			Actions:   []schema.DescriptorAction{{ID: "compose", Name: "Compose"}},
		},
		"mail.client.desktop": {DesktopID: "mail.client.desktop", Name: "Mail", Icon: "/usr/share/mail.png"},
		"news.desktop":        {DesktopID: "news.desktop", Name: "News", Icon: "news"},
	}
}

// forwardedCall is one call the registry sent to an application.
type forwardedCall struct {
	method     string
	id         string
	action     string
	parameters []any
	sourceIDs  []string
	messageIDs []string
}

// fakeChannel is an in-memory Channel. The test drives remote events
// through events() once subscribed is closed.
type fakeChannel struct {
	target   Target
	sources  []schema.Source
	messages []schema.Message
	callErr  error

	// List calls named in holdLists ("sources", "messages") announce
	// themselves on listing and then block until release is closed,
	// whatever happens to their context.
	holdLists map[string]bool
	listing   chan string
	release   chan struct{}

	calls      chan forwardedCall
	subscribed chan struct{}
	watched    chan struct{}
	closed     chan struct{}

	mu        sync.Mutex
	listeners RemoteEvents
	onLost    func()
	closeOnce sync.Once
}

func newFakeChannel(target Target) *fakeChannel {
	return &fakeChannel{
		target:     target,
		holdLists:  make(map[string]bool),
		listing:    make(chan string, 4),
		release:    make(chan struct{}),
		calls:      make(chan forwardedCall, 64),
		subscribed: make(chan struct{}),
		watched:    make(chan struct{}),
		closed:     make(chan struct{}),
	}
}

func (c *fakeChannel) ListSources(ctx context.Context) ([]schema.Source, error) {
	c.holdList("sources")
	return c.sources, nil
}

func (c *fakeChannel) ListMessages(ctx context.Context) ([]schema.Message, error) {
	c.holdList("messages")
	return c.messages, nil
}

func (c *fakeChannel) holdList(name string) {
	if !c.holdLists[name] {
		return
	}
	c.listing <- name
	<-c.release
}

func (c *fakeChannel) ActivateSource(ctx context.Context, sourceID string) error {
	c.calls <- forwardedCall{method: "activate-source", id: sourceID}
	return c.callErr
}

func (c *fakeChannel) ActivateMessage(ctx context.Context, messageID, action string, parameters []any) error {
	c.calls <- forwardedCall{method: "activate-message", id: messageID, action: action, parameters: parameters}
	return c.callErr
}

func (c *fakeChannel) Dismiss(ctx context.Context, sourceIDs, messageIDs []string) error {
	c.calls <- forwardedCall{method: "dismiss", sourceIDs: sourceIDs, messageIDs: messageIDs}
	return c.callErr
}

func (c *fakeChannel) Subscribe(ctx context.Context, events RemoteEvents) error {
	c.mu.Lock()
	c.listeners = events
	c.mu.Unlock()
	close(c.subscribed)
	return nil
}

func (c *fakeChannel) WatchLiveness(ctx context.Context, onLost func()) {
	c.mu.Lock()
	c.onLost = onLost
	c.mu.Unlock()
	close(c.watched)
}

func (c *fakeChannel) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeChannel) events() RemoteEvents {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listeners
}

// lose simulates the application process exiting.
func (c *fakeChannel) lose() {
	c.mu.Lock()
	onLost := c.onLost
	c.mu.Unlock()
	onLost()
}

// fakeTransport hands out fakeChannels. Channels for a socket path can
// be prepared with prepare; OpenChannel for a path listed in hold
// blocks until the context is cancelled.
type fakeTransport struct {
	mu       sync.Mutex
	prepared map[string]*fakeChannel
	hold     map[string]bool
	failWith map[string]error
	opened   chan *fakeChannel
	attempts chan Target
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		prepared: make(map[string]*fakeChannel),
		hold:     make(map[string]bool),
		failWith: make(map[string]error),
		opened:   make(chan *fakeChannel, 16),
		attempts: make(chan Target, 16),
	}
}

func (f *fakeTransport) prepare(socketPath string) *fakeChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	channel := newFakeChannel(Target{SocketPath: socketPath})
	f.prepared[socketPath] = channel
	return channel
}

func (f *fakeTransport) OpenChannel(ctx context.Context, target Target) (Channel, error) {
	f.attempts <- target
	f.mu.Lock()
	hold := f.hold[target.SocketPath]
	failure := f.failWith[target.SocketPath]
	channel := f.prepared[target.SocketPath]
	if channel == nil {
		channel = newFakeChannel(target)
	}
	f.mu.Unlock()

	if hold {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if failure != nil {
		return nil, failure
	}
	f.opened <- channel
	return channel, nil
}

// fakeLauncher records launches. When gate is set, Launch blocks until
// it is closed.
type fakeLauncher struct {
	launches chan string
	gate     chan struct{}
}

func (l *fakeLauncher) Launch(descriptor *schema.Descriptor) error {
	l.launches <- descriptor.DesktopID
	if l.gate != nil {
		<-l.gate
	}
	return nil
}

func (l *fakeLauncher) LaunchAction(descriptor *schema.Descriptor, action string) error {
	l.launches <- descriptor.DesktopID + "#" + action
	return errors.New("launch failures are only logged")
}

// eventLog records registry events for assertions. Listeners run
// under the registry lock; the log has its own lock for the test
// goroutine.
type eventLog struct {
	mu     sync.Mutex
	events []Event
	notify chan Event
}

func (l *eventLog) record(event Event) {
	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
	select {
	case l.notify <- event:
	default:
	}
}

func (l *eventLog) snapshot() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func (l *eventLog) kinds() []string {
	var kinds []string
	for _, event := range l.snapshot() {
		kinds = append(kinds, describeEvent(event))
	}
	return kinds
}

func (l *eventLog) reset() {
	l.mu.Lock()
	l.events = nil
	l.mu.Unlock()
}

func describeEvent(event Event) string {
	switch {
	case event.SourceID != "":
		return fmt.Sprintf("%s(%s,%s)", event.Kind, event.AppID, event.SourceID)
	case event.MessageID != "":
		return fmt.Sprintf("%s(%s,%s)", event.Kind, event.AppID, event.MessageID)
	case event.AppID != "":
		return fmt.Sprintf("%s(%s)", event.Kind, event.AppID)
	}
	return string(event.Kind)
}

type harness struct {
	registry  *Registry
	transport *fakeTransport
	launcher  *fakeLauncher
	log       *eventLog
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		transport: newFakeTransport(),
		launcher:  &fakeLauncher{launches: make(chan string, 8)},
		log:       &eventLog{notify: make(chan Event, 256)},
	}
	registry, err := New(Config{
		Descriptors: testDescriptors(),
		Transport:   h.transport,
		Launcher:    h.launcher,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(registry.Close)
	registry.Subscribe(h.log.record)
	h.registry = registry
	return h
}

func (h *harness) add(t *testing.T, identity string) Application {
	t.Helper()
	application, err := h.registry.Add(identity)
	if err != nil {
		t.Fatalf("Add(%q): %v", identity, err)
	}
	return application
}

// connect runs SetRemote and waits until the session has subscribed
// and armed its liveness watch.
func (h *harness) connect(t *testing.T, appID string, channel *fakeChannel) {
	t.Helper()
	h.registry.SetRemote(appID, channel.target)
	testutil.RequireClosed(t, channel.watched, testTimeout, "waiting for %s session setup", appID)
}

func requireCall(t *testing.T, channel *fakeChannel) forwardedCall {
	t.Helper()
	return testutil.RequireReceive[forwardedCall](t, channel.calls, testTimeout, "waiting for forwarded call")
}
