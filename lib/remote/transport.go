// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/inbox/lib/applist"
	"github.com/bureau-foundation/inbox/lib/clock"
	"github.com/bureau-foundation/inbox/lib/schema"
	"github.com/bureau-foundation/inbox/lib/service"
)

const (
	// DefaultHeartbeatTimeout is how long a subscribe stream may stay
	// silent before the application is considered gone. Applications
	// send heartbeats every 10 seconds.
	DefaultHeartbeatTimeout = 30 * time.Second

	// DefaultCallTimeout bounds each request-response call.
	DefaultCallTimeout = 10 * time.Second
)

// SocketTransport opens channels to applications serving the
// application protocol on a Unix socket. The zero value uses the real
// clock, the default logger, and the default timeouts.
type SocketTransport struct {
	Clock            clock.Clock
	Logger           *slog.Logger
	HeartbeatTimeout time.Duration
	CallTimeout      time.Duration
}

var _ applist.Transport = (*SocketTransport)(nil)

// OpenChannel greets the application at target and returns a channel
// to it. The hello exchange confirms something is serving the
// application protocol on the socket.
func (t *SocketTransport) OpenChannel(ctx context.Context, target applist.Target) (applist.Channel, error) {
	client := service.NewServiceClient(target.SocketPath).WithResponseTimeout(t.callTimeout())

	var hello schema.HelloResponse
	if err := client.Call(ctx, schema.AppActionHello, nil, &hello); err != nil {
		return nil, err
	}

	logger := t.logger().With("socket", target.SocketPath, "desktop_id", hello.DesktopID)
	logger.Debug("application channel open", "instance", hello.Instance, "pid", hello.PID)

	return &channel{
		client:           client,
		hello:            hello,
		clock:            t.clock(),
		logger:           logger,
		heartbeatTimeout: t.heartbeatTimeout(),
		lost:             make(chan struct{}),
		closed:           make(chan struct{}),
	}, nil
}

func (t *SocketTransport) clock() clock.Clock {
	if t.Clock == nil {
		return clock.Real()
	}
	return t.Clock
}

func (t *SocketTransport) logger() *slog.Logger {
	if t.Logger == nil {
		return slog.Default()
	}
	return t.Logger
}

func (t *SocketTransport) heartbeatTimeout() time.Duration {
	if t.HeartbeatTimeout <= 0 {
		return DefaultHeartbeatTimeout
	}
	return t.HeartbeatTimeout
}

func (t *SocketTransport) callTimeout() time.Duration {
	if t.CallTimeout <= 0 {
		return DefaultCallTimeout
	}
	return t.CallTimeout
}

// channel is one open connection to an application.
type channel struct {
	client           *service.ServiceClient
	hello            schema.HelloResponse
	clock            clock.Clock
	logger           *slog.Logger
	heartbeatTimeout time.Duration

	mu           sync.Mutex
	stream       *service.Stream
	cancelStream context.CancelFunc

	lostOnce  sync.Once
	lost      chan struct{}
	closeOnce sync.Once
	closed    chan struct{}
}

func (c *channel) ListSources(ctx context.Context) ([]schema.Source, error) {
	var sources []schema.Source
	if err := c.client.Call(ctx, schema.AppActionListSources, nil, &sources); err != nil {
		return nil, err
	}
	return sources, nil
}

func (c *channel) ListMessages(ctx context.Context) ([]schema.Message, error) {
	var messages []schema.Message
	if err := c.client.Call(ctx, schema.AppActionListMessages, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *channel) ActivateSource(ctx context.Context, sourceID string) error {
	return c.client.Call(ctx, schema.AppActionActivateSource, schema.ActivateSourceRequest{
		SourceID: sourceID,
	}, nil)
}

func (c *channel) ActivateMessage(ctx context.Context, messageID, action string, parameters []any) error {
	return c.client.Call(ctx, schema.AppActionActivateMessage, schema.ActivateMessageRequest{
		MessageID:  messageID,
		Action:     action,
		Parameters: parameters,
	}, nil)
}

func (c *channel) Dismiss(ctx context.Context, sourceIDs, messageIDs []string) error {
	return c.client.Call(ctx, schema.AppActionDismiss, schema.DismissRequest{
		SourceIDs:  sourceIDs,
		MessageIDs: messageIDs,
	}, nil)
}

// Subscribe opens the subscribe stream and waits for its ready frame.
// Frames after ready are dispatched to events by a reader goroutine.
func (c *channel) Subscribe(ctx context.Context, events applist.RemoteEvents) error {
	select {
	case <-c.closed:
		return errors.New("channel closed")
	default:
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := c.client.OpenStream(streamCtx, schema.AppActionSubscribe, nil)
	if err != nil {
		cancel()
		return err
	}

	// The same timer guards the ready frame and every frame after it.
	heartbeat := c.clock.AfterFunc(c.heartbeatTimeout, func() {
		c.logger.Warn("application heartbeat timed out", "timeout", c.heartbeatTimeout)
		c.markLost()
		cancel()
	})

	var ready schema.AppFrame
	if err := stream.Recv(&ready); err != nil {
		heartbeat.Stop()
		cancel()
		stream.Close()
		return fmt.Errorf("waiting for ready frame: %w", err)
	}
	if ready.Type != schema.AppFrameReady {
		heartbeat.Stop()
		cancel()
		stream.Close()
		if ready.Type == schema.AppFrameError {
			return fmt.Errorf("subscribe refused: %s", ready.Error)
		}
		return fmt.Errorf("expected %q frame, got %q", schema.AppFrameReady, ready.Type)
	}
	heartbeat.Reset(c.heartbeatTimeout)

	c.mu.Lock()
	if c.cancelStream != nil {
		c.cancelStream()
	}
	c.stream = stream
	c.cancelStream = cancel
	c.mu.Unlock()

	go c.readFrames(streamCtx, stream, heartbeat, events)
	return nil
}

// readFrames dispatches frames in arrival order until the stream ends.
// An end the subscriber did not ask for marks the channel lost.
func (c *channel) readFrames(ctx context.Context, stream *service.Stream, heartbeat *clock.Timer, events applist.RemoteEvents) {
	defer stream.Close()
	defer heartbeat.Stop()

	for {
		var frame schema.AppFrame
		if err := stream.Recv(&frame); err != nil {
			if ctx.Err() == nil {
				if !errors.Is(err, io.EOF) {
					c.logger.Debug("subscribe stream failed", "error", err)
				}
				c.markLost()
			}
			return
		}
		heartbeat.Reset(c.heartbeatTimeout)

		switch frame.Type {
		case schema.AppFrameHeartbeat:
		case schema.AppFrameSourceAdded:
			if frame.Source == nil {
				c.logger.Warn("source_added frame without source")
				continue
			}
			events.SourceAdded(frame.Position, *frame.Source)
		case schema.AppFrameSourceChanged:
			if frame.Source == nil {
				c.logger.Warn("source_changed frame without source")
				continue
			}
			events.SourceChanged(*frame.Source)
		case schema.AppFrameSourceRemoved:
			events.SourceRemoved(frame.SourceID)
		case schema.AppFrameMessageAdded:
			if frame.Message == nil {
				c.logger.Warn("message_added frame without message")
				continue
			}
			events.MessageAdded(*frame.Message)
		case schema.AppFrameMessageRemoved:
			events.MessageRemoved(frame.MessageID)
		case schema.AppFrameError:
			c.logger.Warn("application ended subscribe stream", "error", frame.Error)
			c.markLost()
			return
		default:
			c.logger.Debug("ignoring unknown frame type", "type", frame.Type)
		}
	}
}

// WatchLiveness calls onLost once the channel is lost, unless ctx ends
// or the channel is closed first. Without an active subscription the
// application is probed with hello once per heartbeat timeout.
func (c *channel) WatchLiveness(ctx context.Context, onLost func()) {
	go func() {
		ticker := c.clock.NewTicker(c.heartbeatTimeout)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.closed:
				return
			case <-c.lost:
				if ctx.Err() == nil {
					onLost()
				}
				return
			case <-ticker.C:
				if c.subscribed() {
					continue
				}
				if err := c.client.Call(ctx, schema.AppActionHello, nil, nil); err != nil && ctx.Err() == nil {
					c.logger.Debug("liveness probe failed", "error", err)
					c.markLost()
				}
			}
		}
	}()
}

func (c *channel) subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}

func (c *channel) markLost() {
	c.lostOnce.Do(func() { close(c.lost) })
}

// Close ends the subscription. Calls in flight run to completion.
func (c *channel) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelStream != nil {
		c.cancelStream()
		c.cancelStream = nil
	}
	return nil
}
