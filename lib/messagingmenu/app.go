// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messagingmenu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/inbox/lib/clock"
	"github.com/bureau-foundation/inbox/lib/schema"
	"github.com/bureau-foundation/inbox/lib/service"
)

var (
	// ErrExists is returned when adding an item whose id is taken.
	ErrExists = errors.New("already exists")

	// ErrNotFound is returned when changing an item that does not
	// exist.
	ErrNotFound = errors.New("not found")
)

// DefaultHeartbeatInterval is the time between heartbeat frames on a
// subscribe stream. It is well inside the hub's default heartbeat
// timeout.
const DefaultHeartbeatInterval = 10 * time.Second

// Config configures an App.
type Config struct {
	// DesktopID identifies the application, e.g. "chat.desktop".
	DesktopID string

	// SocketPath is where the App serves the application protocol.
	SocketPath string

	// HubSocketPath is the hub's socket, used by Register and
	// Unregister. Optional if the App never registers itself.
	HubSocketPath string

	Logger            *slog.Logger
	Clock             clock.Clock
	HeartbeatInterval time.Duration
}

// App holds an application's sources and messages and serves them to
// the hub. All methods are safe for concurrent use.
type App struct {
	desktopID         string
	socketPath        string
	instance          string
	hub               *service.ServiceClient
	logger            *slog.Logger
	clock             clock.Clock
	heartbeatInterval time.Duration

	mu                sync.Mutex
	sources           []schema.Source
	messages          []schema.Message
	subscribers       []*subscriber
	onActivateSource  func(sourceID string)
	onActivateMessage func(messageID, action string, parameter any)
	onDismiss         func(sourceIDs, messageIDs []string)
}

// New creates an App. Call Serve to start answering the hub.
func New(config Config) (*App, error) {
	if config.DesktopID == "" {
		return nil, errors.New("messagingmenu: DesktopID is required")
	}
	if config.SocketPath == "" {
		return nil, errors.New("messagingmenu: SocketPath is required")
	}

	app := &App{
		desktopID:         config.DesktopID,
		socketPath:        config.SocketPath,
		instance:          uuid.NewString(),
		logger:            config.Logger,
		clock:             config.Clock,
		heartbeatInterval: config.HeartbeatInterval,
	}
	if config.HubSocketPath != "" {
		app.hub = service.NewServiceClient(config.HubSocketPath)
	}
	if app.logger == nil {
		app.logger = slog.Default()
	}
	app.logger = app.logger.With("desktop_id", config.DesktopID)
	if app.clock == nil {
		app.clock = clock.Real()
	}
	if app.heartbeatInterval <= 0 {
		app.heartbeatInterval = DefaultHeartbeatInterval
	}
	return app, nil
}

// DesktopID returns the identity the App was created with.
func (a *App) DesktopID() string { return a.desktopID }

// SocketPath returns the socket Serve listens on.
func (a *App) SocketPath() string { return a.socketPath }

// Instance returns the random id of this App, reported to the hub in
// hello.
func (a *App) Instance() string { return a.instance }

// Serve answers the hub on the App's socket until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	server := service.NewSocketServer(a.socketPath, a.logger)
	server.Handle(schema.AppActionHello, a.handleHello)
	server.Handle(schema.AppActionListSources, a.handleListSources)
	server.Handle(schema.AppActionListMessages, a.handleListMessages)
	server.Handle(schema.AppActionActivateSource, a.handleActivateSource)
	server.Handle(schema.AppActionActivateMessage, a.handleActivateMessage)
	server.Handle(schema.AppActionDismiss, a.handleDismiss)
	server.HandleStream(schema.AppActionSubscribe, a.handleSubscribe)
	return server.Serve(ctx)
}

// Register asks the hub to show this application and connect to its
// socket. Returns the id the hub knows the application by.
func (a *App) Register(ctx context.Context) (string, error) {
	if a.hub == nil {
		return "", errors.New("messagingmenu: no hub socket configured")
	}
	var response schema.RegisterResponse
	if err := a.hub.Call(ctx, schema.HubActionRegister, schema.RegisterRequest{
		DesktopID:  a.desktopID,
		SocketPath: a.socketPath,
	}, &response); err != nil {
		return "", fmt.Errorf("registering %s: %w", a.desktopID, err)
	}
	a.logger.Info("registered with hub", "app", response.AppID)
	return response.AppID, nil
}

// Unregister removes the application from the hub.
func (a *App) Unregister(ctx context.Context) error {
	if a.hub == nil {
		return errors.New("messagingmenu: no hub socket configured")
	}
	if err := a.hub.Call(ctx, schema.HubActionUnregister, schema.UnregisterRequest{
		DesktopID: a.desktopID,
	}, nil); err != nil {
		return fmt.Errorf("unregistering %s: %w", a.desktopID, err)
	}
	return nil
}

// OnActivateSource sets the function called when the user activates a
// source. The source has already been removed when it runs.
func (a *App) OnActivateSource(callback func(sourceID string)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onActivateSource = callback
}

// OnActivateMessage sets the function called when the user activates a
// message (action empty) or one of its actions. parameter is nil for
// actions without a parameter.
func (a *App) OnActivateMessage(callback func(messageID, action string, parameter any)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onActivateMessage = callback
}

// OnDismiss sets the function called when the user dismisses items
// without activating them. The items have already been removed when
// it runs.
func (a *App) OnDismiss(callback func(sourceIDs, messageIDs []string)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onDismiss = callback
}

// --- Sources ---

// AppendSource adds a source after the existing ones. A source with no
// count, time or text gets the current time.
func (a *App) AppendSource(source schema.Source) error {
	return a.InsertSource(-1, source)
}

// InsertSource adds a source at position, or appends it when position
// is negative or past the end.
func (a *App) InsertSource(position int, source schema.Source) error {
	if source.ID == "" {
		return errors.New("source id is required")
	}
	if source.Count == 0 && source.Time == 0 && source.Text == "" {
		source.Time = a.clock.Now().UnixNano()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sourceIndexLocked(source.ID) >= 0 {
		return fmt.Errorf("source %q: %w", source.ID, ErrExists)
	}
	if position < 0 || position > len(a.sources) {
		a.sources = append(a.sources, source)
	} else {
		a.sources = slices.Insert(a.sources, position, source)
	}
	a.broadcastLocked(schema.AppFrame{Type: schema.AppFrameSourceAdded, Position: position, Source: &source})
	return nil
}

// SetSourceCount replaces the source's count.
func (a *App) SetSourceCount(sourceID string, count uint32) error {
	return a.changeSource(sourceID, func(source *schema.Source) { source.Count = count })
}

// SetSourceTime replaces the source's time.
func (a *App) SetSourceTime(sourceID string, at time.Time) error {
	return a.changeSource(sourceID, func(source *schema.Source) { source.Time = at.UnixNano() })
}

// SetSourceText replaces the source's text.
func (a *App) SetSourceText(sourceID, text string) error {
	return a.changeSource(sourceID, func(source *schema.Source) { source.Text = text })
}

// SetSourceLabel replaces the source's label.
func (a *App) SetSourceLabel(sourceID, label string) error {
	return a.changeSource(sourceID, func(source *schema.Source) { source.Label = label })
}

// DrawAttention marks the source as needing the user's attention.
func (a *App) DrawAttention(sourceID string) error {
	return a.changeSource(sourceID, func(source *schema.Source) { source.DrawsAttention = true })
}

// RemoveAttention clears DrawAttention.
func (a *App) RemoveAttention(sourceID string) error {
	return a.changeSource(sourceID, func(source *schema.Source) { source.DrawsAttention = false })
}

func (a *App) changeSource(sourceID string, change func(*schema.Source)) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	index := a.sourceIndexLocked(sourceID)
	if index < 0 {
		return fmt.Errorf("source %q: %w", sourceID, ErrNotFound)
	}
	change(&a.sources[index])
	source := a.sources[index]
	a.broadcastLocked(schema.AppFrame{Type: schema.AppFrameSourceChanged, Source: &source})
	return nil
}

// RemoveSource removes a source. Reports whether it existed.
func (a *App) RemoveSource(sourceID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.removeSourceLocked(sourceID)
}

func (a *App) removeSourceLocked(sourceID string) bool {
	index := a.sourceIndexLocked(sourceID)
	if index < 0 {
		return false
	}
	a.sources = slices.Delete(a.sources, index, index+1)
	a.broadcastLocked(schema.AppFrame{Type: schema.AppFrameSourceRemoved, SourceID: sourceID})
	return true
}

// HasSource reports whether a source with the given id exists.
func (a *App) HasSource(sourceID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sourceIndexLocked(sourceID) >= 0
}

// Sources returns the current sources in order.
func (a *App) Sources() []schema.Source {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.sources)
}

func (a *App) sourceIndexLocked(sourceID string) int {
	return slices.IndexFunc(a.sources, func(source schema.Source) bool { return source.ID == sourceID })
}

// --- Messages ---

// AddMessage publishes a message. A message without a time gets the
// current time.
func (a *App) AddMessage(message schema.Message) error {
	if message.ID == "" {
		return errors.New("message id is required")
	}
	if message.Time == 0 {
		message.Time = a.clock.Now().UnixNano()
	}
	message.Actions = slices.Clone(message.Actions)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.messageIndexLocked(message.ID) >= 0 {
		return fmt.Errorf("message %q: %w", message.ID, ErrExists)
	}
	a.messages = append(a.messages, message)
	a.broadcastLocked(schema.AppFrame{Type: schema.AppFrameMessageAdded, Message: &message})
	return nil
}

// RemoveMessage removes a message. Reports whether it existed.
func (a *App) RemoveMessage(messageID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.removeMessageLocked(messageID)
}

func (a *App) removeMessageLocked(messageID string) bool {
	index := a.messageIndexLocked(messageID)
	if index < 0 {
		return false
	}
	a.messages = slices.Delete(a.messages, index, index+1)
	a.broadcastLocked(schema.AppFrame{Type: schema.AppFrameMessageRemoved, MessageID: messageID})
	return true
}

// HasMessage reports whether a message with the given id exists.
func (a *App) HasMessage(messageID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.messageIndexLocked(messageID) >= 0
}

// Messages returns the current messages in the order they were added.
func (a *App) Messages() []schema.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.messages)
}

func (a *App) messageIndexLocked(messageID string) int {
	return slices.IndexFunc(a.messages, func(message schema.Message) bool { return message.ID == messageID })
}

// --- Subscribers ---

// subscriber is one hub connection's subscribe stream.
type subscriber struct {
	channel    chan schema.AppFrame
	overflowed atomic.Bool
}

// subscriberChannelSize bounds the frames buffered for a slow hub.
// A subscriber that falls further behind is sent an error frame and
// disconnected.
const subscriberChannelSize = 256

// broadcastLocked queues frame for every subscriber without blocking.
func (a *App) broadcastLocked(frame schema.AppFrame) {
	for _, subscriber := range a.subscribers {
		select {
		case subscriber.channel <- frame:
		default:
			subscriber.overflowed.Store(true)
		}
	}
}

func (a *App) removeSubscriberLocked(target *subscriber) {
	a.subscribers = slices.DeleteFunc(a.subscribers, func(existing *subscriber) bool {
		return existing == target
	})
}
