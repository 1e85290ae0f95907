// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// EventKind discriminates registry events.
type EventKind string

const (
	// EventAppAdded: an application entry was created. Descriptor is
	// set.
	EventAppAdded EventKind = "app-added"

	// EventAppStopped: the application's session went away, either
	// because it was removed, replaced, or its process disappeared.
	EventAppStopped EventKind = "app-stopped"

	// EventSourceAdded carries SourceID, Label, Icon and State.
	EventSourceAdded EventKind = "source-added"

	// EventSourceChanged carries SourceID and the new State.
	EventSourceChanged EventKind = "source-changed"

	EventSourceRemoved EventKind = "source-removed"

	// EventMessageAdded carries the message fields, the application's
	// symbolic icon in AppIcon, and the registered sub-actions.
	EventMessageAdded EventKind = "message-added"

	EventMessageRemoved EventKind = "message-removed"

	// EventRemoveAll is emitted before any per-item removal of a bulk
	// dismissal. AppID is empty.
	EventRemoveAll EventKind = "remove-all"
)

// Event is one entry of the registry's public event stream. Which
// fields are set depends on Kind.
type Event struct {
	Kind           EventKind          `json:"kind"`
	AppID          string             `json:"app_id,omitempty"`
	Descriptor     *Descriptor        `json:"descriptor,omitempty"`
	SourceID       string             `json:"source_id,omitempty"`
	Label          string             `json:"label,omitempty"`
	Icon           string             `json:"icon,omitempty"`
	State          *SourceState       `json:"state,omitempty"`
	MessageID      string             `json:"message_id,omitempty"`
	AppIcon        string             `json:"app_icon,omitempty"`
	Title          string             `json:"title,omitempty"`
	Subtitle       string             `json:"subtitle,omitempty"`
	Body           string             `json:"body,omitempty"`
	Actions        []ActionDescriptor `json:"actions,omitempty"`
	Time           int64              `json:"time,omitempty"`
	DrawsAttention bool               `json:"draws_attention,omitempty"`
}
