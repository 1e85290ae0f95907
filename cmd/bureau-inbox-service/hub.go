// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/inbox/lib/applist"
	"github.com/bureau-foundation/inbox/lib/clock"
	"github.com/bureau-foundation/inbox/lib/metrics"
	"github.com/bureau-foundation/inbox/lib/schema"
	"github.com/bureau-foundation/inbox/lib/service"
	"github.com/bureau-foundation/inbox/lib/version"
)

// heartbeatInterval is the time between heartbeat frames on a
// subscribe stream. Clients should consider the hub gone if nothing
// arrives within twice this interval.
const heartbeatInterval = 30 * time.Second

// Hub serves the registry on the hub socket.
type Hub struct {
	registry  *applist.Registry
	metrics   *metrics.HubMetrics
	clock     clock.Clock
	startedAt time.Time
	logger    *slog.Logger

	// ownerUID is the only user allowed to register and unregister
	// applications.
	ownerUID uint32

	// heartbeatInterval is a field so tests can shorten it.
	heartbeatInterval time.Duration

	stopEvents func()

	// streams tracks open subscribe streams so Close can wait for them.
	streams sync.WaitGroup
}

func newHub(registry *applist.Registry, hubMetrics *metrics.HubMetrics, clk clock.Clock, logger *slog.Logger) *Hub {
	return &Hub{
		registry:          registry,
		metrics:           hubMetrics,
		clock:             clk,
		startedAt:         clk.Now(),
		logger:            logger,
		ownerUID:          uint32(os.Getuid()),
		heartbeatInterval: heartbeatInterval,
		stopEvents:        registry.Subscribe(hubMetrics.ObserveEvent),
	}
}

// Close stops counting registry events. Streams end when the socket
// server's context is cancelled; Close waits for them.
func (h *Hub) Close() {
	h.stopEvents()
	h.streams.Wait()
}

// registerActions registers all socket API actions on the server.
// Every request/response action is instrumented.
func (h *Hub) registerActions(server *service.SocketServer) {
	actions := []struct {
		name    string
		handler service.ActionFunc
	}{
		{schema.HubActionStatus, h.handleStatus},

		// Called by applications.
		{schema.HubActionRegister, h.handleRegister},
		{schema.HubActionUnregister, h.handleUnregister},

		// Queries.
		{schema.HubActionListApplications, h.handleListApplications},
		{schema.HubActionGetApplication, h.handleGetApplication},
		{schema.HubActionListCommands, h.handleListCommands},
		{schema.HubActionDescribeCommand, h.handleDescribeCommand},

		// User actions.
		{schema.HubActionInvoke, h.handleInvoke},
		{schema.HubActionChangeState, h.handleChangeState},
		{schema.HubActionRemoveAll, h.handleRemoveAll},
	}
	for _, action := range actions {
		server.Handle(action.name, h.metrics.Instrument(action.name, action.handler))
	}

	server.HandleStream(schema.HubActionSubscribe, h.handleSubscribe)
}

// handleStatus returns a health summary.
func (h *Hub) handleStatus(ctx context.Context, raw []byte) (any, error) {
	applications := h.registry.Applications()
	running := 0
	for _, application := range applications {
		if application.Running {
			running++
		}
	}
	return schema.StatusResponse{
		UptimeSeconds:  h.clock.Now().Sub(h.startedAt).Seconds(),
		Applications:   len(applications),
		Running:        running,
		Commands:       len(h.registry.ListCommands()),
		DrawsAttention: h.registry.DrawsAttention(),
		Version:        version.Info(),
	}, nil
}
