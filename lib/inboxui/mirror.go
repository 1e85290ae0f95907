// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inboxui

import (
	"slices"
	"strings"

	"github.com/bureau-foundation/inbox/lib/applist"
	"github.com/bureau-foundation/inbox/lib/capability"
	"github.com/bureau-foundation/inbox/lib/schema"
)

// Mirror is a local copy of the hub's applications, kept current by
// applying subscribe-stream frames in order. Not safe for concurrent
// use.
type Mirror struct {
	applications []schema.Application
	indicator    schema.IndicatorState
	caughtUp     bool
}

// Applications returns the mirrored applications, sorted by id. The
// slice must not be modified.
func (m *Mirror) Applications() []schema.Application { return m.applications }

// Indicator returns the last indicator state seen.
func (m *Mirror) Indicator() schema.IndicatorState { return m.indicator }

// CaughtUp reports whether the current snapshot is complete.
func (m *Mirror) CaughtUp() bool { return m.caughtUp }

// Apply folds one frame into the mirror.
func (m *Mirror) Apply(frame schema.HubFrame) {
	switch frame.Type {
	case schema.HubFrameState:
		m.applications = slices.Clone(frame.Applications)
		m.caughtUp = false
	case schema.HubFrameCaughtUp:
		m.caughtUp = true
	case schema.HubFrameResync:
		m.caughtUp = false
	case schema.HubFrameIndicator:
		if frame.Indicator != nil {
			m.indicator = *frame.Indicator
		}
	case schema.HubFrameEvent:
		if frame.Event != nil {
			m.applyEvent(*frame.Event)
		}
	}
}

func (m *Mirror) applyEvent(event schema.Event) {
	if event.Kind == schema.EventAppAdded {
		if m.find(event.AppID) == nil {
			m.applications = append(m.applications, schema.Application{ID: event.AppID, Descriptor: event.Descriptor})
			slices.SortFunc(m.applications, func(a, b schema.Application) int { return strings.Compare(a.ID, b.ID) })
		}
		return
	}

	application := m.find(event.AppID)
	if application == nil {
		return
	}
	switch event.Kind {
	case schema.EventAppStopped:
		application.Running = false
		application.Sources = nil
		application.Messages = nil

	case schema.EventSourceAdded:
		source := schema.Source{ID: event.SourceID, Label: event.Label, Icon: event.Icon}
		if event.State != nil {
			source.Count = event.State.Count
			source.Time = event.State.Time
			source.Text = event.State.Text
			source.DrawsAttention = event.State.DrawsAttention
		}
		application.Sources = append(application.Sources, source)

	case schema.EventSourceChanged:
		index := slices.IndexFunc(application.Sources, func(s schema.Source) bool { return s.ID == event.SourceID })
		if index >= 0 && event.State != nil {
			source := &application.Sources[index]
			source.Count = event.State.Count
			source.Time = event.State.Time
			source.Text = event.State.Text
			source.DrawsAttention = event.State.DrawsAttention
		}

	case schema.EventSourceRemoved:
		application.Sources = slices.DeleteFunc(application.Sources, func(s schema.Source) bool { return s.ID == event.SourceID })

	case schema.EventMessageAdded:
		application.Messages = append(application.Messages, messageFromEvent(event))

	case schema.EventMessageRemoved:
		application.Messages = slices.DeleteFunc(application.Messages, func(message schema.Message) bool { return message.ID == event.MessageID })
	}
}

func (m *Mirror) find(id string) *schema.Application {
	for index := range m.applications {
		if m.applications[index].ID == id {
			return &m.applications[index]
		}
	}
	return nil
}

// messageFromEvent rebuilds a message from message-added. Action names
// in the event are full command paths; the mirror keeps the short
// name, as snapshots do.
func messageFromEvent(event schema.Event) schema.Message {
	message := schema.Message{
		ID:             event.MessageID,
		Icon:           event.Icon,
		Title:          event.Title,
		Subtitle:       event.Subtitle,
		Body:           event.Body,
		Time:           event.Time,
		DrawsAttention: event.DrawsAttention,
	}
	prefix := MessageActionPrefix(event.AppID, event.MessageID)
	for _, action := range event.Actions {
		message.Actions = append(message.Actions, schema.ActionSpec{
			Name:          strings.TrimPrefix(action.Name, prefix),
			Label:         action.Label,
			ParameterType: action.ParameterType,
			ParameterHint: action.ParameterHint,
		})
	}
	return message
}

// Command paths for items in the hub namespace.

func LaunchCommand(appID string) string {
	return join(appID, applist.CommandLaunch)
}

func SourceCommand(appID, sourceID string) string {
	return join(appID, applist.PrefixSources, sourceID)
}

func MessageCommand(appID, messageID string) string {
	return join(appID, applist.PrefixMessages, messageID)
}

// MessageActionPrefix is the path prefix of a message's actions,
// including the trailing delimiter.
func MessageActionPrefix(appID, messageID string) string {
	return join(appID, applist.PrefixMessageActions, messageID) + capability.Delimiter
}

func join(parts ...string) string { return strings.Join(parts, capability.Delimiter) }
