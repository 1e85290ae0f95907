// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package applist

import (
	"context"

	"github.com/bureau-foundation/inbox/lib/schema"
)

// DescriptorProvider resolves a desktop identity ("chat.desktop") to
// the application's static descriptor. Resolve returns an error when
// the application is not installed.
type DescriptorProvider interface {
	Resolve(identity string) (*schema.Descriptor, error)
}

// Target is where a running application can be reached.
type Target struct {
	SocketPath string
}

// Transport opens channels to running applications.
type Transport interface {
	// OpenChannel connects to the application at target. It must
	// return promptly with ctx.Err() once ctx is cancelled.
	OpenChannel(ctx context.Context, target Target) (Channel, error)
}

// Channel is an open connection to one application. Every call is
// bounded by the transport's own timeouts as well as ctx.
type Channel interface {
	ListSources(ctx context.Context) ([]schema.Source, error)
	ListMessages(ctx context.Context) ([]schema.Message, error)
	ActivateSource(ctx context.Context, sourceID string) error

	// ActivateMessage activates a message (action empty, parameters
	// empty) or one of its sub-actions.
	ActivateMessage(ctx context.Context, messageID, action string, parameters []any) error

	Dismiss(ctx context.Context, sourceIDs, messageIDs []string) error

	// Subscribe starts delivering the application's changes to events.
	// It returns once the subscription is established. Events are
	// delivered from a single goroutine in arrival order until ctx is
	// cancelled or the channel is lost.
	Subscribe(ctx context.Context, events RemoteEvents) error

	// WatchLiveness arranges for onLost to be called once, from a
	// transport goroutine, when the application goes away. It does
	// not block. onLost is not called after ctx is cancelled.
	WatchLiveness(ctx context.Context, onLost func())

	Close() error
}

// RemoteEvents receives an application's changes.
type RemoteEvents interface {
	SourceAdded(position int, source schema.Source)
	SourceChanged(source schema.Source)
	SourceRemoved(sourceID string)
	MessageAdded(message schema.Message)
	MessageRemoved(messageID string)
}

// Launcher starts applications for the static "launch" and desktop
// action commands.
type Launcher interface {
	Launch(descriptor *schema.Descriptor) error
	LaunchAction(descriptor *schema.Descriptor, action string) error
}
