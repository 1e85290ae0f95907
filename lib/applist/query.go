// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package applist

import (
	"errors"

	"github.com/bureau-foundation/inbox/lib/capability"
	"github.com/bureau-foundation/inbox/lib/schema"
)

// ListApplications returns the ids of every registered application,
// sorted.
func (r *Registry) ListApplications() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedIDsLocked()
}

// GetApplication returns the descriptor of the application with the
// given id or desktop identity, or nil if it is not registered.
func (r *Registry) GetApplication(id string) *schema.Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.applications[CanonicalID(id)]
	if !ok {
		return nil
	}
	return e.descriptor
}

// Application returns a snapshot of one application.
func (r *Registry) Application(id string) (Application, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.applications[CanonicalID(id)]
	if !ok {
		return Application{}, false
	}
	return e.snapshotLocked(), true
}

// Applications returns snapshots of every application, sorted by id.
func (r *Registry) Applications() []Application {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applicationsLocked()
}

// SnapshotAndSubscribe atomically captures every application and
// registers callback for all later events, so no event falls between
// the snapshot and the first callback.
func (r *Registry) SnapshotAndSubscribe(callback func(Event)) ([]Application, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applicationsLocked(), r.subscribeLocked(callback)
}

func (r *Registry) applicationsLocked() []Application {
	ids := r.sortedIDsLocked()
	applications := make([]Application, 0, len(ids))
	for _, id := range ids {
		applications = append(applications, r.applications[id].snapshotLocked())
	}
	return applications
}

func (e *entry) snapshotLocked() Application {
	snapshot := Application{
		ID:         e.id,
		Descriptor: e.descriptor,
		Running:    e.session != nil,
	}
	for _, id := range e.items.sources.Names() {
		source := e.items.sourceDetails[id]
		if state, ok := e.items.sources.State(id); ok {
			current := state.(schema.SourceState)
			source.Count = current.Count
			source.Time = current.Time
			source.Text = current.Text
			source.DrawsAttention = current.DrawsAttention
		}
		snapshot.Sources = append(snapshot.Sources, source)
	}
	for _, id := range e.items.messages.Names() {
		snapshot.Messages = append(snapshot.Messages, e.items.messageDetails[id])
	}
	return snapshot
}

// DrawsAttention reports whether any application has a source or a
// message.
func (r *Registry) DrawsAttention() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drawsAttention
}

// IndicatorState returns the current state of the "messages" command.
func (r *Registry) IndicatorState() schema.IndicatorState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return indicatorState(r.drawsAttention)
}

// ListCommands returns every command path in the namespace: the root
// commands first, then each application's in registration order.
func (r *Registry) ListCommands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.root.ListAll()
}

// Invoke runs the command at name. found is false, with a nil error,
// when nothing is registered there: a command retracted between
// listing and invocation is expected, not a failure.
func (r *Registry) Invoke(name string, parameter any) (found bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return foundResult(r.root.Invoke(name, parameter))
}

// ChangeState requests a new state for the command at name, with the
// same found semantics as Invoke.
func (r *Registry) ChangeState(name string, state any) (found bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return foundResult(r.root.ChangeState(name, state))
}

func foundResult(err error) (bool, error) {
	if errors.Is(err, capability.ErrNotFound) {
		return false, nil
	}
	return true, err
}

// DescribeCommand returns the command at name.
func (r *Registry) DescribeCommand(name string) (capability.Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.root.Describe(name)
}
