// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/bureau-foundation/inbox/lib/applist"
	"github.com/bureau-foundation/inbox/lib/codec"
	"github.com/bureau-foundation/inbox/lib/schema"
)

// subscriberChannelSize is the buffer size for the per-subscriber
// frame channel. If it fills, frames are dropped and the subscriber
// is marked for resync.
const subscriberChannelSize = 256

// subscriber is one connected subscribe stream. Registry callbacks
// run with the registry locked, so send never blocks.
type subscriber struct {
	channel chan schema.HubFrame
	resync  atomic.Bool
}

func newSubscriber() *subscriber {
	return &subscriber{channel: make(chan schema.HubFrame, subscriberChannelSize)}
}

func (s *subscriber) send(frame schema.HubFrame) {
	select {
	case s.channel <- frame:
	default:
		s.resync.Store(true)
	}
}

// attach registers sub for indicator changes and registry events and
// returns the application snapshot the events follow, plus a function
// that detaches both.
func (h *Hub) attach(sub *subscriber) ([]schema.Application, func()) {
	stopIndicator := h.registry.ObserveState(func(name string, state any) {
		if name != applist.CommandMessages {
			return
		}
		indicator, ok := state.(schema.IndicatorState)
		if !ok {
			return
		}
		sub.send(schema.HubFrame{Type: schema.HubFrameIndicator, Indicator: &indicator})
	})
	applications, stopEvents := h.registry.SnapshotAndSubscribe(func(event applist.Event) {
		sub.send(schema.HubFrame{Type: schema.HubFrameEvent, Event: &event})
	})
	return applications, func() {
		stopEvents()
		stopIndicator()
	}
}

// writeSnapshot writes the state, indicator and caught_up frames.
func (h *Hub) writeSnapshot(encoder *codec.Encoder, applications []schema.Application) error {
	if err := encoder.Encode(schema.HubFrame{
		Type:         schema.HubFrameState,
		Applications: applications,
	}); err != nil {
		return err
	}
	indicator := h.registry.IndicatorState()
	if err := encoder.Encode(schema.HubFrame{
		Type:      schema.HubFrameIndicator,
		Indicator: &indicator,
	}); err != nil {
		return err
	}
	return encoder.Encode(schema.HubFrame{Type: schema.HubFrameCaughtUp})
}

// handleSubscribe is the stream handler for the "subscribe" action.
// It writes a snapshot of every application, then forwards registry
// events and indicator changes until the client disconnects or the
// hub shuts down.
//
// The snapshot and the event subscription are taken atomically, so
// events buffered in the subscriber channel apply on top of the
// snapshot. On overflow the subscription is replaced: the stream
// writes a resync frame and a fresh snapshot, then resumes.
func (h *Hub) handleSubscribe(ctx context.Context, raw []byte, conn net.Conn) {
	h.streams.Add(1)
	defer h.streams.Done()

	encoder := codec.NewEncoder(conn)

	sub := newSubscriber()
	applications, detach := h.attach(sub)
	defer func() { detach() }()

	h.metrics.Subscribers.Inc()
	defer h.metrics.Subscribers.Dec()

	h.logger.Info("subscribe stream started", "applications", len(applications))
	defer h.logger.Info("subscribe stream ended")

	if err := h.writeSnapshot(encoder, applications); err != nil {
		h.logger.Debug("subscribe stream write error during snapshot", "error", err)
		return
	}

	heartbeat := h.clock.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case frame := <-sub.channel:
			if sub.resync.Load() {
				// Frames were dropped. Everything still buffered is
				// stale relative to a fresh snapshot.
				detach()
				h.metrics.Resyncs.Inc()

				if err := encoder.Encode(schema.HubFrame{Type: schema.HubFrameResync}); err != nil {
					h.logger.Debug("subscribe stream write error", "error", err)
					return
				}

				sub = newSubscriber()
				applications, detach = h.attach(sub)
				if err := h.writeSnapshot(encoder, applications); err != nil {
					h.logger.Debug("subscribe stream write error during resync", "error", err)
					return
				}
				continue
			}

			if err := encoder.Encode(frame); err != nil {
				h.logger.Debug("subscribe stream write error", "error", err)
				return
			}

		case <-heartbeat.C:
			if err := encoder.Encode(schema.HubFrame{Type: schema.HubFrameHeartbeat}); err != nil {
				h.logger.Debug("subscribe stream heartbeat error", "error", err)
				return
			}
		}
	}
}
