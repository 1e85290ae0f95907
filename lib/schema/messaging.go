// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// Source is a per-application bucket of unread items, such as a
// folder or a contact. Time is Unix nanoseconds.
type Source struct {
	ID             string `json:"id"`
	Label          string `json:"label,omitempty"`
	Icon           string `json:"icon,omitempty"`
	Count          uint32 `json:"count,omitempty"`
	Time           int64  `json:"time,omitempty"`
	Text           string `json:"text,omitempty"`
	DrawsAttention bool   `json:"draws_attention,omitempty"`
}

// State returns the mutable part of the source.
func (s Source) State() SourceState {
	return SourceState{
		Count:          s.Count,
		Time:           s.Time,
		Text:           s.Text,
		DrawsAttention: s.DrawsAttention,
	}
}

// SourceState is the observable state of a source capability. Label
// and icon are fixed when the source is added; only these fields
// change afterwards.
type SourceState struct {
	Count          uint32 `json:"count"`
	Time           int64  `json:"time"`
	Text           string `json:"text,omitempty"`
	DrawsAttention bool   `json:"draws_attention"`
}

// Message is one discrete notification belonging to an application.
// Time is Unix nanoseconds.
type Message struct {
	ID             string       `json:"id"`
	Icon           string       `json:"icon,omitempty"`
	Title          string       `json:"title,omitempty"`
	Subtitle       string       `json:"subtitle,omitempty"`
	Body           string       `json:"body,omitempty"`
	Time           int64        `json:"time,omitempty"`
	Actions        []ActionSpec `json:"actions,omitempty"`
	DrawsAttention bool         `json:"draws_attention,omitempty"`
}

// ActionSpec is an additional action an application attaches to a
// message, such as an inline reply. ParameterType uses the single
// letter codes of lib/capability; empty means the action takes no
// parameter. ParameterHint is opaque to the hub and passed through to
// presentation layers (for example a list of canned replies).
type ActionSpec struct {
	Name          string `json:"name"`
	Label         string `json:"label,omitempty"`
	ParameterType string `json:"parameter_type,omitempty"`
	ParameterHint any    `json:"parameter_hint,omitempty"`
}

// ActionDescriptor is an ActionSpec after registration: Name is the
// fully-qualified command path that invokes it.
type ActionDescriptor struct {
	Name          string `json:"name"`
	Label         string `json:"label,omitempty"`
	ParameterType string `json:"parameter_type,omitempty"`
	ParameterHint any    `json:"parameter_hint,omitempty"`
}

// Descriptor is the static description of an installed application.
// DesktopID is the raw identity it was resolved from ("chat.desktop").
type Descriptor struct {
	DesktopID string             `json:"desktop_id"`
	Name      string             `json:"name"`
	Icon      string             `json:"icon,omitempty"`
	Exec      string             `json:"exec,omitempty"`
	Actions   []DescriptorAction `json:"actions,omitempty"`
}

// DescriptorAction is a static application action, such as "compose"
// or "new-window".
type DescriptorAction struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Exec string `json:"exec,omitempty"`
}

// Action returns the descriptor action with the given id.
func (d *Descriptor) Action(id string) (DescriptorAction, bool) {
	for _, action := range d.Actions {
		if action.ID == id {
			return action, true
		}
	}
	return DescriptorAction{}, false
}

// IndicatorState is the state of the hub's root "messages" command:
// what a panel indicator should show.
type IndicatorState struct {
	Label          string `json:"label"`
	Icon           string `json:"icon"`
	Accessible     string `json:"accessible"`
	Visible        bool   `json:"visible"`
	DrawsAttention bool   `json:"draws_attention"`
}
