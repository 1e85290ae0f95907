// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package applist

import (
	"context"
	"slices"
	"strings"

	"github.com/bureau-foundation/inbox/lib/capability"
	"github.com/bureau-foundation/inbox/lib/schema"
)

// AddSource adds a source to a registered application. position is a
// placement hint for presentation layers; the registry keeps sources
// in arrival order.
func (r *Registry) AddSource(appID string, position int, source schema.Source) {
	r.withEntry(appID, func(e *entry) { r.addSourceLocked(e, position, source) })
}

// ChangeSource replaces the state of an existing source.
func (r *Registry) ChangeSource(appID string, source schema.Source) {
	r.withEntry(appID, func(e *entry) { r.changeSourceLocked(e, source) })
}

// RemoveSource removes a source without notifying the application.
func (r *Registry) RemoveSource(appID, sourceID string) {
	r.withEntry(appID, func(e *entry) { r.removeSourceLocked(e, sourceID) })
}

// AddMessage adds a message and its sub-actions to a registered
// application.
func (r *Registry) AddMessage(appID string, message schema.Message) {
	r.withEntry(appID, func(e *entry) { r.addMessageLocked(e, message) })
}

// RemoveMessage removes a message without notifying the application.
func (r *Registry) RemoveMessage(appID, messageID string) {
	r.withEntry(appID, func(e *entry) { r.removeMessageLocked(e, messageID) })
}

// RemoveAll dismisses every source and message of every application.
// remove-all is emitted first, then the per-item removals, and each
// connected application receives one combined dismiss call.
func (r *Registry) RemoveAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeAllLocked()
}

func (r *Registry) withEntry(appID string, fn func(e *entry)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.applications[CanonicalID(appID)]
	if !ok {
		r.logger.Warn("not a registered application", "app", appID)
		return
	}
	fn(e)
}

func (r *Registry) addSourceLocked(e *entry, position int, source schema.Source) {
	if source.ID == "" {
		r.logger.Warn("ignoring source without id", "app", e.id)
		return
	}

	current := e.items
	activate := func(name string, parameter any) {
		if e.items != current {
			return
		}
		r.activateSourceLocked(e, name, parameter.(bool))
	}
	if !current.sources.Insert(capability.NewStateful(source.ID, capability.Boolean, source.State(), activate)) {
		return
	}
	current.sourceDetails[source.ID] = source
	r.updateAttentionLocked()

	state := source.State()
	r.emitLocked(Event{
		Kind:     schema.EventSourceAdded,
		AppID:    e.id,
		SourceID: source.ID,
		Label:    source.Label,
		Icon:     source.Icon,
		State:    &state,
	})
}

func (r *Registry) changeSourceLocked(e *entry, source schema.Source) {
	current := e.items
	if !current.sources.Has(source.ID) {
		r.logger.Warn("change for unknown source", "app", e.id, "source", source.ID)
		return
	}
	state := source.State()
	if err := current.sources.ChangeState(source.ID, state); err != nil {
		r.logger.Warn("changing source state", "app", e.id, "source", source.ID, "error", err)
		return
	}

	previous := current.sourceDetails[source.ID]
	if source.Label == "" {
		source.Label = previous.Label
	}
	if source.Icon == "" {
		source.Icon = previous.Icon
	}
	current.sourceDetails[source.ID] = source

	r.emitLocked(Event{
		Kind:     schema.EventSourceChanged,
		AppID:    e.id,
		SourceID: source.ID,
		Label:    source.Label,
		Icon:     source.Icon,
		State:    &state,
	})
}

func (r *Registry) activateSourceLocked(e *entry, sourceID string, activate bool) {
	if activate {
		r.forwardLocked(e, "activate-source", func(ctx context.Context, channel Channel) error {
			return channel.ActivateSource(ctx, sourceID)
		})
	} else {
		r.forwardLocked(e, "dismiss", func(ctx context.Context, channel Channel) error {
			return channel.Dismiss(ctx, []string{sourceID}, nil)
		})
	}
	r.removeSourceLocked(e, sourceID)
}

func (r *Registry) removeSourceLocked(e *entry, sourceID string) {
	current := e.items
	if !current.sources.Remove(sourceID) {
		return
	}
	delete(current.sourceDetails, sourceID)
	r.updateAttentionLocked()
	r.emitLocked(Event{Kind: schema.EventSourceRemoved, AppID: e.id, SourceID: sourceID})
}

func (r *Registry) addMessageLocked(e *entry, message schema.Message) {
	if message.ID == "" {
		r.logger.Warn("ignoring message without id", "app", e.id)
		return
	}

	current := e.items
	activate := func(name string, parameter any) {
		if e.items != current {
			return
		}
		r.activateMessageLocked(e, name, parameter.(bool))
	}
	if !current.messages.Insert(capability.New(message.ID, capability.Boolean, activate)) {
		return
	}

	messageID := message.ID
	subActions := capability.NewMap(r.logger.With("app", e.id, "message", messageID))
	var descriptors []schema.ActionDescriptor
	for _, spec := range message.Actions {
		if spec.Name == "" {
			r.logger.Warn("message action is missing a name", "app", e.id, "message", messageID)
			continue
		}
		parameterType := capability.ParameterType(spec.ParameterType)
		if !parameterType.Valid() {
			r.logger.Warn("message action has an unsupported parameter type",
				"app", e.id,
				"message", messageID,
				"action", spec.Name,
				"parameter_type", spec.ParameterType,
			)
			continue
		}
		invoke := func(name string, parameter any) {
			if e.items != current {
				return
			}
			r.activateMessageActionLocked(e, messageID, name, parameter)
		}
		if !subActions.Insert(capability.New(spec.Name, parameterType, invoke)) {
			continue
		}
		descriptors = append(descriptors, schema.ActionDescriptor{
			Name:          strings.Join([]string{e.id, PrefixMessageActions, messageID, spec.Name}, capability.Delimiter),
			Label:         spec.Label,
			ParameterType: spec.ParameterType,
			ParameterHint: spec.ParameterHint,
		})
	}
	current.messageActions.Insert(messageID, subActions)
	current.messageDetails[messageID] = message
	r.updateAttentionLocked()

	r.emitLocked(Event{
		Kind:           schema.EventMessageAdded,
		AppID:          e.id,
		AppIcon:        symbolicIcon(e.descriptor.Icon),
		MessageID:      messageID,
		Icon:           message.Icon,
		Title:          message.Title,
		Subtitle:       message.Subtitle,
		Body:           message.Body,
		Actions:        descriptors,
		Time:           message.Time,
		DrawsAttention: message.DrawsAttention,
	})
}

func (r *Registry) activateMessageLocked(e *entry, messageID string, activate bool) {
	if activate {
		r.forwardLocked(e, "activate-message", func(ctx context.Context, channel Channel) error {
			return channel.ActivateMessage(ctx, messageID, "", nil)
		})
	} else {
		r.forwardLocked(e, "dismiss", func(ctx context.Context, channel Channel) error {
			return channel.Dismiss(ctx, nil, []string{messageID})
		})
	}
	r.removeMessageLocked(e, messageID)
}

func (r *Registry) activateMessageActionLocked(e *entry, messageID, action string, parameter any) {
	var parameters []any
	if parameter != nil {
		parameters = []any{parameter}
	}
	r.forwardLocked(e, "activate-message", func(ctx context.Context, channel Channel) error {
		return channel.ActivateMessage(ctx, messageID, action, parameters)
	})
	r.removeMessageLocked(e, messageID)
}

func (r *Registry) removeMessageLocked(e *entry, messageID string) {
	current := e.items
	if !current.messages.Remove(messageID) {
		return
	}
	current.messageActions.Remove(messageID)
	delete(current.messageDetails, messageID)
	r.updateAttentionLocked()
	r.emitLocked(Event{Kind: schema.EventMessageRemoved, AppID: e.id, MessageID: messageID})
}

func (r *Registry) removeAllLocked() {
	r.emitLocked(Event{Kind: schema.EventRemoveAll})

	for _, id := range r.sortedIDsLocked() {
		e := r.applications[id]
		sourceIDs := e.items.sources.Names()
		messageIDs := e.items.messages.Names()
		for _, sourceID := range sourceIDs {
			r.removeSourceLocked(e, sourceID)
		}
		for _, messageID := range messageIDs {
			r.removeMessageLocked(e, messageID)
		}
		r.forwardLocked(e, "dismiss", func(ctx context.Context, channel Channel) error {
			return channel.Dismiss(ctx, sourceIDs, messageIDs)
		})
	}
}

// updateAttentionLocked recomputes whether any application has
// sources or messages, and updates the "messages" command when the
// answer changes.
func (r *Registry) updateAttentionLocked() {
	attention := false
	for _, e := range r.applications {
		if e.items.sources.Count() > 0 || e.items.messages.Count() > 0 {
			attention = true
			break
		}
	}
	if attention == r.drawsAttention {
		return
	}
	r.drawsAttention = attention
	if err := r.rootActions.ChangeState(CommandMessages, indicatorState(attention)); err != nil {
		r.logger.Error("updating indicator state", "error", err)
	}
}

func (r *Registry) sortedIDsLocked() []string {
	ids := make([]string, 0, len(r.applications))
	for id := range r.applications {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
