// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messagingmenu

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/bureau-foundation/inbox/lib/codec"
	"github.com/bureau-foundation/inbox/lib/schema"
)

func (a *App) handleHello(ctx context.Context, raw []byte) (any, error) {
	return schema.HelloResponse{
		DesktopID: a.desktopID,
		Instance:  a.instance,
		PID:       os.Getpid(),
	}, nil
}

func (a *App) handleListSources(ctx context.Context, raw []byte) (any, error) {
	return a.Sources(), nil
}

func (a *App) handleListMessages(ctx context.Context, raw []byte) (any, error) {
	return a.Messages(), nil
}

func (a *App) handleActivateSource(ctx context.Context, raw []byte) (any, error) {
	var request schema.ActivateSourceRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	a.mu.Lock()
	removed := a.removeSourceLocked(request.SourceID)
	callback := a.onActivateSource
	a.mu.Unlock()

	if !removed {
		a.logger.Debug("activation for unknown source", "source", request.SourceID)
	}
	if callback != nil {
		callback(request.SourceID)
	}
	return nil, nil
}

func (a *App) handleActivateMessage(ctx context.Context, raw []byte) (any, error) {
	var request schema.ActivateMessageRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if len(request.Parameters) > 1 {
		return nil, fmt.Errorf("expected at most one parameter, got %d", len(request.Parameters))
	}
	var parameter any
	if len(request.Parameters) == 1 {
		parameter = request.Parameters[0]
	}

	a.mu.Lock()
	removed := a.removeMessageLocked(request.MessageID)
	callback := a.onActivateMessage
	a.mu.Unlock()

	if !removed {
		a.logger.Debug("activation for unknown message", "message", request.MessageID)
	}
	if callback != nil {
		callback(request.MessageID, request.Action, parameter)
	}
	return nil, nil
}

func (a *App) handleDismiss(ctx context.Context, raw []byte) (any, error) {
	var request schema.DismissRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	a.mu.Lock()
	for _, sourceID := range request.SourceIDs {
		a.removeSourceLocked(sourceID)
	}
	for _, messageID := range request.MessageIDs {
		a.removeMessageLocked(messageID)
	}
	callback := a.onDismiss
	a.mu.Unlock()

	a.logger.Debug("dismissed items",
		"sources", len(request.SourceIDs),
		"messages", len(request.MessageIDs),
	)
	if callback != nil {
		callback(request.SourceIDs, request.MessageIDs)
	}
	return nil, nil
}

// handleSubscribe registers a subscriber, writes the ready frame, and
// forwards changes with periodic heartbeats until the hub disconnects
// or the App shuts down. Changes made while ready is being written are
// buffered and follow it.
func (a *App) handleSubscribe(ctx context.Context, raw []byte, conn net.Conn) {
	encoder := codec.NewEncoder(conn)

	sub := &subscriber{channel: make(chan schema.AppFrame, subscriberChannelSize)}
	a.mu.Lock()
	a.subscribers = append(a.subscribers, sub)
	a.mu.Unlock()

	a.logger.Debug("subscribe stream started")
	defer func() {
		a.mu.Lock()
		a.removeSubscriberLocked(sub)
		a.mu.Unlock()
		a.logger.Debug("subscribe stream ended")
	}()

	if err := encoder.Encode(schema.AppFrame{Type: schema.AppFrameReady}); err != nil {
		return
	}

	heartbeat := a.clock.NewTicker(a.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case frame := <-sub.channel:
			if sub.overflowed.Load() {
				a.logger.Warn("subscriber fell behind, closing stream")
				encoder.Encode(schema.AppFrame{Type: schema.AppFrameError, Error: "subscriber fell behind"})
				return
			}
			if err := encoder.Encode(frame); err != nil {
				a.logger.Debug("subscribe stream write error", "error", err)
				return
			}

		case <-heartbeat.C:
			if err := encoder.Encode(schema.AppFrame{Type: schema.AppFrameHeartbeat}); err != nil {
				a.logger.Debug("subscribe stream heartbeat error", "error", err)
				return
			}
		}
	}
}
