// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/bureau-foundation/inbox/lib/applist"
	"github.com/bureau-foundation/inbox/lib/capability"
	"github.com/bureau-foundation/inbox/lib/codec"
	"github.com/bureau-foundation/inbox/lib/schema"
	"github.com/bureau-foundation/inbox/lib/service"
)

// handleRegister adds the calling application and connects to its
// socket. Registering again replaces the previous session, which is
// how a restarted application reclaims its entry.
func (h *Hub) handleRegister(ctx context.Context, raw []byte) (any, error) {
	peer, err := h.authorizePeer(ctx, schema.HubActionRegister)
	if err != nil {
		return nil, err
	}

	var request schema.RegisterRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if request.DesktopID == "" {
		return nil, errors.New("missing required field: desktop_id")
	}
	if request.SocketPath == "" {
		return nil, errors.New("missing required field: socket_path")
	}
	if !filepath.IsAbs(request.SocketPath) {
		return nil, fmt.Errorf("socket_path must be absolute, got %q", request.SocketPath)
	}

	application, err := h.registry.Add(request.DesktopID)
	if err != nil {
		return nil, err
	}

	h.logger.Info("application registered",
		"app", application.ID,
		"socket", request.SocketPath,
		"pid", peer.PID,
		"uid", peer.UID,
	)

	h.registry.SetRemote(application.ID, applist.Target{SocketPath: request.SocketPath})
	return schema.RegisterResponse{AppID: application.ID}, nil
}

// handleUnregister removes an application and everything it published.
func (h *Hub) handleUnregister(ctx context.Context, raw []byte) (any, error) {
	if _, err := h.authorizePeer(ctx, schema.HubActionUnregister); err != nil {
		return nil, err
	}

	var request schema.UnregisterRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if request.DesktopID == "" {
		return nil, errors.New("missing required field: desktop_id")
	}
	if _, ok := h.registry.Application(request.DesktopID); !ok {
		return nil, fmt.Errorf("application %q is not registered", request.DesktopID)
	}
	h.registry.Remove(request.DesktopID)
	h.logger.Info("application unregistered", "app", applist.CanonicalID(request.DesktopID))
	return nil, nil
}

// authorizePeer rejects callers not running as the hub's user.
// Connections without kernel credentials are rejected too.
func (h *Hub) authorizePeer(ctx context.Context, action string) (service.Peer, error) {
	peer, ok := service.PeerFromContext(ctx)
	if !ok {
		return service.Peer{}, errors.New("peer credentials unavailable")
	}
	if peer.UID != h.ownerUID {
		h.logger.Warn("rejected request from another user",
			"action", action,
			"pid", peer.PID,
			"uid", peer.UID,
		)
		return service.Peer{}, fmt.Errorf("uid %d does not own this hub", peer.UID)
	}
	return peer, nil
}

func (h *Hub) handleListApplications(ctx context.Context, raw []byte) (any, error) {
	return h.registry.Applications(), nil
}

func (h *Hub) handleGetApplication(ctx context.Context, raw []byte) (any, error) {
	var request schema.ApplicationRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if request.ID == "" {
		return nil, errors.New("missing required field: id")
	}
	application, ok := h.registry.Application(request.ID)
	if !ok {
		return nil, fmt.Errorf("application %q is not registered", request.ID)
	}
	return application, nil
}

// handleListCommands describes every command in the namespace. A
// command retracted between listing and describing is skipped.
func (h *Hub) handleListCommands(ctx context.Context, raw []byte) (any, error) {
	names := h.registry.ListCommands()
	commands := make([]schema.CommandInfo, 0, len(names))
	for _, name := range names {
		info, ok := h.registry.DescribeCommand(name)
		if !ok {
			continue
		}
		commands = append(commands, commandInfo(info))
	}
	return commands, nil
}

func (h *Hub) handleDescribeCommand(ctx context.Context, raw []byte) (any, error) {
	request, err := decodeCommandRequest(raw)
	if err != nil {
		return nil, err
	}
	info, ok := h.registry.DescribeCommand(request.Name)
	if !ok {
		return nil, fmt.Errorf("no command %q", request.Name)
	}
	return commandInfo(info), nil
}

// handleInvoke runs a command. A missing command is reported through
// Found rather than as an error.
func (h *Hub) handleInvoke(ctx context.Context, raw []byte) (any, error) {
	request, err := decodeCommandRequest(raw)
	if err != nil {
		return nil, err
	}
	found, err := h.registry.Invoke(request.Name, request.Parameter)
	if err != nil {
		return nil, err
	}
	return schema.CommandResponse{Found: found}, nil
}

func (h *Hub) handleChangeState(ctx context.Context, raw []byte) (any, error) {
	request, err := decodeCommandRequest(raw)
	if err != nil {
		return nil, err
	}
	found, err := h.registry.ChangeState(request.Name, request.Parameter)
	if err != nil {
		return nil, err
	}
	return schema.CommandResponse{Found: found}, nil
}

func (h *Hub) handleRemoveAll(ctx context.Context, raw []byte) (any, error) {
	h.registry.RemoveAll()
	return nil, nil
}

func decodeCommandRequest(raw []byte) (schema.CommandRequest, error) {
	var request schema.CommandRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return request, fmt.Errorf("invalid request: %w", err)
	}
	if request.Name == "" {
		return request, errors.New("missing required field: name")
	}
	return request, nil
}

func commandInfo(info capability.Info) schema.CommandInfo {
	return schema.CommandInfo{
		Name:          info.Name,
		ParameterType: string(info.ParameterType),
		Stateful:      info.Stateful,
		State:         info.State,
	}
}
