// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/inbox/lib/config"
	"github.com/bureau-foundation/inbox/lib/service"
)

// socketEnvironmentVariable overrides the hub socket path.
const socketEnvironmentVariable = "BUREAU_INBOX_SOCKET"

// defaultCallTimeout bounds a single request to the hub. The hub
// forwards activations to applications with its own, shorter timeout.
const defaultCallTimeout = 15 * time.Second

// hubConnection holds the flags every hub command shares.
type hubConnection struct {
	SocketPath string
	Timeout    time.Duration
}

// AddFlags registers --socket and --timeout.
func (c *hubConnection) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.SocketPath, "socket", "", "hub socket path (default $"+socketEnvironmentVariable+" or the configured hub socket)")
	flagSet.DurationVar(&c.Timeout, "timeout", defaultCallTimeout, "timeout for each request to the hub")
}

// connect returns a client for the hub socket. The socket is resolved
// from --socket, then BUREAU_INBOX_SOCKET, then the hub configuration
// named by BUREAU_INBOX_CONFIG, then the built-in default.
func (c *hubConnection) connect() (*service.ServiceClient, error) {
	socketPath, err := resolveSocketPath(c.SocketPath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(socketPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("hub socket %s does not exist (is bureau-inbox-service running?)", socketPath)
		}
		return nil, fmt.Errorf("hub socket %s: %w", socketPath, err)
	}
	return service.NewServiceClient(socketPath), nil
}

// callContext bounds one request by --timeout.
func (c *hubConnection) callContext(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return context.WithTimeout(parent, timeout)
}

func resolveSocketPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if fromEnvironment := os.Getenv(socketEnvironmentVariable); fromEnvironment != "" {
		return fromEnvironment, nil
	}
	if os.Getenv(config.EnvironmentVariable) != "" {
		cfg, err := config.Load()
		if err != nil {
			return "", fmt.Errorf("loading hub configuration: %w", err)
		}
		return cfg.Paths.Socket, nil
	}
	cfg := config.Default()
	cfg.ExpandVariables()
	return cfg.Paths.Socket, nil
}
