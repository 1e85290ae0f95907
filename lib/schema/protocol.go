// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// Actions served by a client application on its own socket.
const (
	AppActionHello           = "hello"
	AppActionListSources     = "list-sources"
	AppActionListMessages    = "list-messages"
	AppActionActivateSource  = "activate-source"
	AppActionActivateMessage = "activate-message"
	AppActionDismiss         = "dismiss"
	AppActionSubscribe       = "subscribe"
)

// Actions served by the hub.
const (
	HubActionStatus           = "status"
	HubActionRegister         = "register"
	HubActionUnregister       = "unregister"
	HubActionListApplications = "list-applications"
	HubActionGetApplication   = "get-application"
	HubActionListCommands     = "list-commands"
	HubActionDescribeCommand  = "describe-command"
	HubActionInvoke           = "invoke"
	HubActionChangeState      = "change-state"
	HubActionRemoveAll        = "remove-all"
	HubActionSubscribe        = "subscribe"
)

// HelloResponse identifies the application behind a socket.
type HelloResponse struct {
	DesktopID string `json:"desktop_id"`
	Instance  string `json:"instance"`
	PID       int    `json:"pid,omitempty"`
}

// ActivateSourceRequest is the body of activate-source.
type ActivateSourceRequest struct {
	SourceID string `json:"source_id"`
}

// ActivateMessageRequest is the body of activate-message. Action is
// empty for activation of the message itself; Parameters holds at most
// one element.
type ActivateMessageRequest struct {
	MessageID  string `json:"message_id"`
	Action     string `json:"action,omitempty"`
	Parameters []any  `json:"parameters,omitempty"`
}

// DismissRequest is the body of dismiss.
type DismissRequest struct {
	SourceIDs  []string `json:"source_ids,omitempty"`
	MessageIDs []string `json:"message_ids,omitempty"`
}

// AppFrameType discriminates frames on an application's subscribe
// stream.
type AppFrameType string

const (
	// AppFrameReady is the first frame of a stream. Changes after it
	// are live.
	AppFrameReady AppFrameType = "ready"

	// AppFrameSourceAdded carries Source and Position. Position is a
	// hint; a negative value means append.
	AppFrameSourceAdded   AppFrameType = "source_added"
	AppFrameSourceChanged AppFrameType = "source_changed"
	AppFrameSourceRemoved AppFrameType = "source_removed"

	AppFrameMessageAdded   AppFrameType = "message_added"
	AppFrameMessageRemoved AppFrameType = "message_removed"

	// AppFrameHeartbeat is a liveness probe. The hub considers the
	// application gone if no frame arrives within its heartbeat
	// timeout.
	AppFrameHeartbeat AppFrameType = "heartbeat"

	// AppFrameError is terminal. The connection closes after it.
	AppFrameError AppFrameType = "error"
)

// AppFrame is a single CBOR value written on an application's
// subscribe stream.
type AppFrame struct {
	Type      AppFrameType `json:"type"`
	Position  int          `json:"position,omitempty"`
	Source    *Source      `json:"source,omitempty"`
	SourceID  string       `json:"source_id,omitempty"`
	Message   *Message     `json:"message,omitempty"`
	MessageID string       `json:"message_id,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// RegisterRequest asks the hub to add an application and connect to
// its socket.
type RegisterRequest struct {
	DesktopID  string `json:"desktop_id"`
	SocketPath string `json:"socket_path"`
}

// RegisterResponse returns the canonical id the application was
// registered under.
type RegisterResponse struct {
	AppID string `json:"app_id"`
}

// UnregisterRequest asks the hub to forget an application.
type UnregisterRequest struct {
	DesktopID string `json:"desktop_id"`
}

// ApplicationRequest names one application by id or desktop id.
type ApplicationRequest struct {
	ID string `json:"id"`
}

// Application is a snapshot of one registry entry.
type Application struct {
	ID         string      `json:"id"`
	Descriptor *Descriptor `json:"descriptor"`
	Running    bool        `json:"running"`
	Sources    []Source    `json:"sources,omitempty"`
	Messages   []Message   `json:"messages,omitempty"`
}

// CommandInfo describes one command in the hub's namespace.
type CommandInfo struct {
	Name          string `json:"name"`
	ParameterType string `json:"parameter_type,omitempty"`
	Stateful      bool   `json:"stateful,omitempty"`
	State         any    `json:"state,omitempty"`
}

// CommandRequest names a command and optionally carries a parameter
// (invoke) or a new state (change-state).
type CommandRequest struct {
	Name      string `json:"name"`
	Parameter any    `json:"parameter,omitempty"`
}

// CommandResponse reports whether the named command existed.
type CommandResponse struct {
	Found bool `json:"found"`
}

// StatusResponse is the hub's unauthenticated health summary.
type StatusResponse struct {
	UptimeSeconds  float64 `json:"uptime_seconds"`
	Applications   int     `json:"applications"`
	Running        int     `json:"running"`
	Commands       int     `json:"commands"`
	DrawsAttention bool    `json:"draws_attention"`
	Version        string  `json:"version"`
}

// HubFrameType discriminates frames on the hub's subscribe stream.
type HubFrameType string

const (
	// HubFrameState carries the current snapshot of every application
	// in Applications. Sent first, and again after a resync.
	HubFrameState HubFrameType = "state"

	// HubFrameCaughtUp follows the snapshot. Live events follow.
	HubFrameCaughtUp HubFrameType = "caught_up"

	HubFrameEvent HubFrameType = "event"

	// HubFrameIndicator carries a new IndicatorState for the root
	// "messages" command.
	HubFrameIndicator HubFrameType = "indicator"

	HubFrameHeartbeat HubFrameType = "heartbeat"

	// HubFrameResync indicates the subscriber fell behind and events
	// were dropped. A fresh snapshot follows.
	HubFrameResync HubFrameType = "resync"

	HubFrameError HubFrameType = "error"
)

// HubFrame is a single CBOR value written on the hub's subscribe
// stream.
type HubFrame struct {
	Type         HubFrameType    `json:"type"`
	Event        *Event          `json:"event,omitempty"`
	Applications []Application   `json:"applications,omitempty"`
	Indicator    *IndicatorState `json:"indicator,omitempty"`
	Message      string          `json:"message,omitempty"`
}
