// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"fmt"
	"log/slog"
	"reflect"
)

// Observer receives state changes. name is relative to the group the
// observer is attached to.
type Observer func(name string, state any)

// Group is a Map or a Namespace: anything that can be inserted into a
// Namespace.
type Group interface {
	// ListAll returns every capability name reachable from the group,
	// relative to it.
	ListAll() []string

	resolve(path string) (*Map, string)
	setObserver(observer Observer)
}

// Map is a flat set of capabilities keyed by local name, iterated in
// insertion order.
type Map struct {
	logger       *slog.Logger
	names        []string
	capabilities map[string]*Capability
	observer     Observer
}

// NewMap returns an empty map. Duplicate insertions are reported on
// logger; a nil logger discards them.
func NewMap(logger *slog.Logger) *Map {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Map{
		logger:       logger,
		capabilities: make(map[string]*Capability),
	}
}

// Insert adds capability under its name. A name that is already
// present is a caller bug: it is logged and the map is left unchanged.
func (m *Map) Insert(capability *Capability) bool {
	if _, exists := m.capabilities[capability.name]; exists {
		m.logger.Warn("capability already registered", "name", capability.name)
		return false
	}
	m.capabilities[capability.name] = capability
	m.names = append(m.names, capability.name)
	return true
}

// Remove deletes the named capability. Reports whether it was present.
func (m *Map) Remove(name string) bool {
	if _, exists := m.capabilities[name]; !exists {
		return false
	}
	delete(m.capabilities, name)
	for i, existing := range m.names {
		if existing == name {
			m.names = append(m.names[:i], m.names[i+1:]...)
			break
		}
	}
	return true
}

// Has reports whether name is present.
func (m *Map) Has(name string) bool {
	_, exists := m.capabilities[name]
	return exists
}

// Count returns the number of capabilities.
func (m *Map) Count() int { return len(m.names) }

// Names returns a copy of the capability names in insertion order.
func (m *Map) Names() []string {
	return append([]string(nil), m.names...)
}

// ListAll is Names; it satisfies Group.
func (m *Map) ListAll() []string { return m.Names() }

// Invoke checks parameter against the capability's declared type and
// runs its handler. The handler may remove the capability from m.
func (m *Map) Invoke(name string, parameter any) error {
	capability, exists := m.capabilities[name]
	if !exists {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if !capability.parameterType.Accepts(parameter) {
		return fmt.Errorf("%w: %q expects %q, got %T", ErrParameterType, name, capability.parameterType, parameter)
	}
	if capability.handler != nil {
		capability.handler(name, parameter)
	}
	return nil
}

// ChangeState replaces the capability's state and notifies the
// observer.
func (m *Map) ChangeState(name string, state any) error {
	capability, exists := m.capabilities[name]
	if !exists {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if !capability.stateful {
		return fmt.Errorf("%w: %q", ErrStateless, name)
	}
	if capability.state != nil && reflect.TypeOf(state) != reflect.TypeOf(capability.state) {
		return fmt.Errorf("%w: %q holds %T, got %T", ErrStateType, name, capability.state, state)
	}
	capability.state = state
	if m.observer != nil {
		m.observer(name, state)
	}
	return nil
}

// State returns the capability's current state. ok is false for
// missing or stateless capabilities.
func (m *Map) State(name string) (state any, ok bool) {
	capability, exists := m.capabilities[name]
	if !exists || !capability.stateful {
		return nil, false
	}
	return capability.state, true
}

// Describe returns the capability's Info under its local name.
func (m *Map) Describe(name string) (Info, bool) {
	capability, exists := m.capabilities[name]
	if !exists {
		return Info{}, false
	}
	return capability.info(name), true
}

func (m *Map) resolve(path string) (*Map, string) { return m, path }

func (m *Map) setObserver(observer Observer) { m.observer = observer }
