// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"fmt"
	"strings"
)

// Delimiter separates path segments.
const Delimiter = "."

// Namespace composes groups under prefixes, plus an optional local map
// whose names appear unprefixed.
type Namespace struct {
	local    *Map
	prefixes []string
	children map[string]Group
	observer Observer
}

// NewNamespace returns an empty namespace.
func NewNamespace() *Namespace {
	return &Namespace{children: make(map[string]Group)}
}

// Insert places group under prefix, replacing whatever was there. The
// empty prefix installs the namespace's local map and requires a *Map.
func (n *Namespace) Insert(prefix string, group Group) {
	if prefix == "" {
		local, ok := group.(*Map)
		if !ok {
			panic(fmt.Sprintf("capability.Namespace: local group must be *Map, got %T", group))
		}
		if n.local != nil {
			n.local.setObserver(nil)
		}
		n.local = local
		local.setObserver(n.notify)
		return
	}

	if previous, exists := n.children[prefix]; exists {
		previous.setObserver(nil)
	} else {
		n.prefixes = append(n.prefixes, prefix)
	}
	n.children[prefix] = group
	group.setObserver(func(name string, state any) {
		n.notify(prefix+Delimiter+name, state)
	})
}

// Remove deletes the group under prefix. The empty prefix removes the
// local map. No-op if absent.
func (n *Namespace) Remove(prefix string) {
	if prefix == "" {
		if n.local != nil {
			n.local.setObserver(nil)
			n.local = nil
		}
		return
	}
	child, exists := n.children[prefix]
	if !exists {
		return
	}
	child.setObserver(nil)
	delete(n.children, prefix)
	for i, existing := range n.prefixes {
		if existing == prefix {
			n.prefixes = append(n.prefixes[:i], n.prefixes[i+1:]...)
			break
		}
	}
}

// Lookup returns the group registered under prefix.
func (n *Namespace) Lookup(prefix string) (Group, bool) {
	if prefix == "" {
		if n.local == nil {
			return nil, false
		}
		return n.local, true
	}
	group, exists := n.children[prefix]
	return group, exists
}

// Resolve walks path down the tree and returns the map that owns its
// final segment along with the name local to that map. ok is false when
// no map owns the path. Whether the map actually contains the name is
// the map's concern.
func (n *Namespace) Resolve(path string) (owner *Map, name string, ok bool) {
	owner, name = n.resolve(path)
	return owner, name, owner != nil
}

func (n *Namespace) resolve(path string) (*Map, string) {
	for i := strings.LastIndex(path, Delimiter); i > 0; i = strings.LastIndex(path[:i], Delimiter) {
		if child, exists := n.children[path[:i]]; exists {
			return child.resolve(path[i+len(Delimiter):])
		}
	}
	if n.local != nil {
		return n.local, path
	}
	return nil, ""
}

// ListAll returns every reachable name: local names first, then each
// child in insertion order with its prefix prepended.
func (n *Namespace) ListAll() []string {
	var names []string
	if n.local != nil {
		names = append(names, n.local.Names()...)
	}
	for _, prefix := range n.prefixes {
		for _, name := range n.children[prefix].ListAll() {
			names = append(names, prefix+Delimiter+name)
		}
	}
	return names
}

// Invoke resolves path and invokes the capability there.
func (n *Namespace) Invoke(path string, parameter any) error {
	owner, name := n.resolve(path)
	if owner == nil {
		return fmt.Errorf("%w: %q", ErrNotFound, path)
	}
	return owner.Invoke(name, parameter)
}

// ChangeState resolves path and changes the capability's state.
func (n *Namespace) ChangeState(path string, state any) error {
	owner, name := n.resolve(path)
	if owner == nil {
		return fmt.Errorf("%w: %q", ErrNotFound, path)
	}
	return owner.ChangeState(name, state)
}

// State resolves path and returns the capability's state.
func (n *Namespace) State(path string) (any, bool) {
	owner, name := n.resolve(path)
	if owner == nil {
		return nil, false
	}
	return owner.State(name)
}

// Describe resolves path and returns the capability's Info, named by
// its full path.
func (n *Namespace) Describe(path string) (Info, bool) {
	owner, name := n.resolve(path)
	if owner == nil {
		return Info{}, false
	}
	info, ok := owner.Describe(name)
	if ok {
		info.Name = path
	}
	return info, ok
}

// Observe attaches observer to this namespace. It receives every state
// change below it, named by path relative to this namespace. Passing
// nil detaches.
func (n *Namespace) Observe(observer Observer) { n.observer = observer }

func (n *Namespace) setObserver(observer Observer) { n.observer = observer }

func (n *Namespace) notify(name string, state any) {
	if n.observer != nil {
		n.observer(name, state)
	}
}
