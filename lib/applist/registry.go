// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package applist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/bureau-foundation/inbox/lib/capability"
	"github.com/bureau-foundation/inbox/lib/schema"
)

// ErrUnknownApplication is returned by Add when the descriptor
// provider cannot resolve the identity. The provider's error is
// wrapped alongside it.
var ErrUnknownApplication = errors.New("unknown application")

// Event is one entry of the registry's event stream.
type Event = schema.Event

// Application is a point-in-time snapshot of one registry entry.
type Application = schema.Application

// Names of the root and per-application commands.
const (
	CommandMessages  = "messages"
	CommandRemoveAll = "remove-all"
	CommandLaunch    = "launch"

	PrefixSources        = "src"
	PrefixMessages       = "msg"
	PrefixMessageActions = "msg-actions"
)

const (
	iconIdle      = "indicator-messages"
	iconAttention = "indicator-messages-new"
)

// Config holds the registry's collaborators. Descriptors and Transport
// are required.
type Config struct {
	Descriptors DescriptorProvider
	Transport   Transport

	// Launcher runs the static launch and desktop action commands.
	// Nil disables them: invoking one logs a warning.
	Launcher Launcher

	Logger *slog.Logger
}

// Registry owns every known application and the root command
// namespace. Create one with New and release it with Close.
type Registry struct {
	descriptors DescriptorProvider
	transport   Transport
	launcher    Launcher
	logger      *slog.Logger

	// ctx is the parent of every session context. Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	// background tracks session setup and forwarded-call goroutines.
	background sync.WaitGroup

	mu             sync.Mutex
	applications   map[string]*entry
	root           *capability.Namespace
	rootActions    *capability.Map
	drawsAttention bool
	listeners      []listener
	observers      []stateObserver
	nextID         uint64
}

type listener struct {
	id       uint64
	callback func(Event)
}

type stateObserver struct {
	id       uint64
	callback capability.Observer
}

// entry is the registry's record of one application.
type entry struct {
	id         string
	descriptor *schema.Descriptor

	// namespace is the application's subtree of the root namespace:
	// actions as its local map plus the three item groups.
	namespace *capability.Namespace
	actions   *capability.Map
	items     *items

	// session is nil when the application is not connected and no
	// connection attempt is in progress.
	session *session
}

// items holds everything a session publishes. The whole struct is
// replaced when the session ends.
type items struct {
	sources        *capability.Map
	sourceDetails  map[string]schema.Source
	messages       *capability.Map
	messageDetails map[string]schema.Message
	messageActions *capability.Namespace
}

// session is one connection to a running application. channel is nil
// until OpenChannel completes.
type session struct {
	target  Target
	ctx     context.Context
	cancel  context.CancelFunc
	channel Channel
}

// New returns an empty registry.
func New(config Config) (*Registry, error) {
	if config.Descriptors == nil {
		return nil, errors.New("applist: Descriptors is required")
	}
	if config.Transport == nil {
		return nil, errors.New("applist: Transport is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		descriptors:  config.Descriptors,
		transport:    config.Transport,
		launcher:     config.Launcher,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		applications: make(map[string]*entry),
		root:         capability.NewNamespace(),
		rootActions:  capability.NewMap(logger),
	}

	r.rootActions.Insert(capability.NewStateful(CommandMessages, capability.NoParameter, indicatorState(false), nil))
	r.rootActions.Insert(capability.New(CommandRemoveAll, capability.NoParameter, func(string, any) {
		r.removeAllLocked()
	}))
	r.root.Insert("", r.rootActions)
	r.root.Observe(r.notifyStateLocked)
	return r, nil
}

func indicatorState(drawsAttention bool) schema.IndicatorState {
	icon := iconIdle
	if drawsAttention {
		icon = iconAttention
	}
	return schema.IndicatorState{
		Icon:           icon,
		Accessible:     "Messages",
		Visible:        true,
		DrawsAttention: drawsAttention,
	}
}

// Add registers the application identified by identity (a desktop id
// such as "chat.desktop"). Adding an application that is already
// registered returns the existing entry and emits nothing.
func (r *Registry) Add(identity string) (Application, error) {
	id := CanonicalID(identity)
	if id == "" {
		return Application{}, fmt.Errorf("%w %q: empty application id", ErrUnknownApplication, identity)
	}

	r.mu.Lock()
	if existing, ok := r.applications[id]; ok {
		snapshot := existing.snapshotLocked()
		r.mu.Unlock()
		return snapshot, nil
	}
	r.mu.Unlock()

	descriptor, err := r.descriptors.Resolve(identity)
	if err != nil {
		return Application{}, fmt.Errorf("%w %q: %w", ErrUnknownApplication, identity, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another caller may have added it while the descriptor was being
	// resolved.
	if existing, ok := r.applications[id]; ok {
		return existing.snapshotLocked(), nil
	}

	e := r.newEntryLocked(id, descriptor)
	r.applications[id] = e
	r.root.Insert(id, e.namespace)
	r.logger.Info("application added", "app", id, "desktop_id", descriptor.DesktopID)
	r.emitLocked(Event{Kind: schema.EventAppAdded, AppID: id, Descriptor: descriptor})
	return e.snapshotLocked(), nil
}

func (r *Registry) newEntryLocked(id string, descriptor *schema.Descriptor) *entry {
	logger := r.logger.With("app", id)
	e := &entry{
		id:         id,
		descriptor: descriptor,
		namespace:  capability.NewNamespace(),
		actions:    capability.NewMap(logger),
	}

	e.actions.Insert(capability.NewStateful(CommandLaunch, capability.NoParameter, false, func(string, any) {
		r.launch(e, "")
	}))
	for _, action := range descriptor.Actions {
		e.actions.Insert(capability.New(action.ID, capability.NoParameter, func(name string, _ any) {
			r.launch(e, name)
		}))
	}
	e.namespace.Insert("", e.actions)
	r.resetItemsLocked(e)
	return e
}

func (r *Registry) launch(e *entry, action string) {
	if r.launcher == nil {
		r.logger.Warn("no launcher configured", "app", e.id, "action", action)
		return
	}
	descriptor, id := e.descriptor, e.id
	r.background.Add(1)
	go func() {
		defer r.background.Done()
		var err error
		if action == "" {
			err = r.launcher.Launch(descriptor)
		} else {
			err = r.launcher.LaunchAction(descriptor, action)
		}
		if err != nil {
			r.logger.Warn("unable to launch application", "app", id, "action", action, "error", err)
		}
	}()
}

// resetItemsLocked installs fresh, empty item groups for e. Command
// paths that resolved into the previous groups miss from now on.
func (r *Registry) resetItemsLocked(e *entry) {
	logger := r.logger.With("app", e.id)
	e.items = &items{
		sources:        capability.NewMap(logger),
		sourceDetails:  make(map[string]schema.Source),
		messages:       capability.NewMap(logger),
		messageDetails: make(map[string]schema.Message),
		messageActions: capability.NewNamespace(),
	}
	e.namespace.Insert(PrefixSources, e.items.sources)
	e.namespace.Insert(PrefixMessages, e.items.messages)
	e.namespace.Insert(PrefixMessageActions, e.items.messageActions)
}

// Remove forgets an application. A connected (or connecting)
// application is torn down first, which emits app-stopped. Unknown ids
// are ignored.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.applications[CanonicalID(id)]
	if !ok {
		return
	}
	r.teardownLocked(e)
	r.root.Remove(e.id)
	delete(r.applications, e.id)
	r.updateAttentionLocked()
	r.logger.Info("application removed", "app", e.id)
}

// SetRemote connects a registered application at target. Any existing
// session is torn down first. The connection is established in the
// background; its outcome is visible through the event stream.
func (r *Registry) SetRemote(id string, target Target) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.applications[CanonicalID(id)]
	if !ok {
		r.logger.Warn("not a registered application", "app", id)
		return
	}
	if r.ctx.Err() != nil {
		return
	}

	if e.session != nil {
		r.logger.Warn("replacing application session",
			"app", e.id,
			"previous", e.session.target.SocketPath,
			"socket", target.SocketPath,
		)
		r.teardownLocked(e)
	}

	ctx, cancel := context.WithCancel(r.ctx)
	s := &session{target: target, ctx: ctx, cancel: cancel}
	e.session = s

	r.background.Add(1)
	go r.establish(e, s)
}

// establish runs session setup: open, subscribe, list sources, list
// messages, watch liveness. After every step that may block it checks
// that s is still e's session and drops the result otherwise. Changes
// arriving while the lists are fetched are queued and replayed after
// both lists have been applied.
func (r *Registry) establish(e *entry, s *session) {
	defer r.background.Done()
	logger := r.logger.With("app", e.id, "socket", s.target.SocketPath)

	channel, err := r.transport.OpenChannel(s.ctx, s.target)
	if err != nil {
		if cancelled(s.ctx, err) {
			return
		}
		logger.Warn("could not connect to application", "error", err)
		r.vanished(e, s)
		return
	}

	r.mu.Lock()
	if !r.currentLocked(e, s) {
		r.mu.Unlock()
		channel.Close()
		return
	}
	s.channel = channel
	r.mu.Unlock()

	events := &sessionEvents{registry: r, entry: e, session: s}
	if err := channel.Subscribe(s.ctx, events); err != nil && !cancelled(s.ctx, err) {
		logger.Warn("could not subscribe to application changes", "error", err)
	}

	sources, err := channel.ListSources(s.ctx)
	if err != nil && !cancelled(s.ctx, err) {
		logger.Warn("could not fetch the list of sources", "error", err)
	}
	if !r.withSession(e, s, func() {
		for position, source := range sources {
			r.addSourceLocked(e, position, source)
		}
	}) {
		return
	}

	messages, err := channel.ListMessages(s.ctx)
	if err != nil && !cancelled(s.ctx, err) {
		logger.Warn("could not fetch the list of messages", "error", err)
	}
	if !r.withSession(e, s, func() {
		for _, message := range messages {
			r.addMessageLocked(e, message)
		}
	}) {
		return
	}

	if !events.goLive() {
		return
	}
	channel.WatchLiveness(s.ctx, func() { r.vanished(e, s) })
	logger.Debug("application session established")
}

// currentLocked reports whether s is still e's live session and e is
// still registered.
func (r *Registry) currentLocked(e *entry, s *session) bool {
	return r.applications[e.id] == e && e.session == s && s.ctx.Err() == nil
}

// withSession runs fn under the lock if s is still current.
func (r *Registry) withSession(e *entry, s *session, fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.currentLocked(e, s) {
		return false
	}
	fn()
	return true
}

// vanished handles the application behind s going away.
func (r *Registry) vanished(e *entry, s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.currentLocked(e, s) {
		return
	}
	r.logger.Info("application went away", "app", e.id)
	r.teardownLocked(e)
}

// teardownLocked ends e's session, if any, and discards everything it
// published. app-stopped is emitted only when a session existed.
func (r *Registry) teardownLocked(e *entry) {
	s := e.session
	if s != nil {
		e.session = nil
		s.cancel()
		if s.channel != nil {
			if err := s.channel.Close(); err != nil {
				r.logger.Debug("closing application channel", "app", e.id, "error", err)
			}
		}
	}

	r.resetItemsLocked(e)
	r.updateAttentionLocked()

	if s != nil {
		r.emitLocked(Event{Kind: schema.EventAppStopped, AppID: e.id})
	}
}

// Close cancels every session without emitting events and waits for
// background work to finish. The registry must not be used afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	for _, e := range r.applications {
		if s := e.session; s != nil {
			e.session = nil
			s.cancel()
			if s.channel != nil {
				s.channel.Close()
			}
		}
	}
	r.cancel()
	r.mu.Unlock()

	r.background.Wait()
}

// forwardLocked sends a best-effort call to e's application in the
// background. Nothing is sent when the application is not connected.
// Failures are logged and never retried.
func (r *Registry) forwardLocked(e *entry, call string, send func(ctx context.Context, channel Channel) error) {
	s := e.session
	if s == nil || s.channel == nil {
		return
	}
	id := e.id
	r.background.Add(1)
	go func() {
		defer r.background.Done()
		if err := send(s.ctx, s.channel); err != nil && !cancelled(s.ctx, err) {
			r.logger.Warn("forwarded call failed", "app", id, "call", call, "error", err)
		}
	}()
}

func cancelled(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) || ctx.Err() != nil
}

// sessionEvents routes one session's remote changes into the
// registry. Changes arriving after the session ended are dropped.
type sessionEvents struct {
	registry *Registry
	entry    *entry
	session  *session

	// Until live, changes are queued in arrival order.
	mu      sync.Mutex
	live    bool
	pending []func()
}

func (h *sessionEvents) apply(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.live {
		h.pending = append(h.pending, fn)
		return
	}
	h.registry.withSession(h.entry, h.session, fn)
}

// goLive replays the queued changes and applies later ones directly.
// It reports whether the session is still current.
func (h *sessionEvents) goLive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	pending := h.pending
	h.pending = nil
	h.live = true
	return h.registry.withSession(h.entry, h.session, func() {
		for _, fn := range pending {
			fn()
		}
	})
}

func (h *sessionEvents) SourceAdded(position int, source schema.Source) {
	h.apply(func() { h.registry.addSourceLocked(h.entry, position, source) })
}

func (h *sessionEvents) SourceChanged(source schema.Source) {
	h.apply(func() { h.registry.changeSourceLocked(h.entry, source) })
}

func (h *sessionEvents) SourceRemoved(sourceID string) {
	h.apply(func() { h.registry.removeSourceLocked(h.entry, sourceID) })
}

func (h *sessionEvents) MessageAdded(message schema.Message) {
	h.apply(func() { h.registry.addMessageLocked(h.entry, message) })
}

func (h *sessionEvents) MessageRemoved(messageID string) {
	h.apply(func() { h.registry.removeMessageLocked(h.entry, messageID) })
}

// Subscribe registers callback for every registry event. Callbacks run
// with the registry locked, in emission order, and must not call back
// into the registry. The returned function unregisters.
func (r *Registry) Subscribe(callback func(Event)) (cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subscribeLocked(callback)
}

func (r *Registry) subscribeLocked(callback func(Event)) func() {
	r.nextID++
	id := r.nextID
	r.listeners = append(r.listeners, listener{id: id, callback: callback})
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.listeners = slices.DeleteFunc(r.listeners, func(l listener) bool { return l.id == id })
	}
}

// ObserveState registers callback for state changes of any command,
// named by full path. Same rules as Subscribe.
func (r *Registry) ObserveState(callback capability.Observer) (cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.observers = append(r.observers, stateObserver{id: id, callback: callback})
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.observers = slices.DeleteFunc(r.observers, func(o stateObserver) bool { return o.id == id })
	}
}

func (r *Registry) emitLocked(event Event) {
	for _, l := range r.listeners {
		l.callback(event)
	}
}

func (r *Registry) notifyStateLocked(name string, state any) {
	for _, o := range r.observers {
		o.callback(name, state)
	}
}
