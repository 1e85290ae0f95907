// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inboxui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the inbox view.
type KeyMap struct {
	Up   key.Binding
	Down key.Binding
	Home key.Binding
	End  key.Binding

	// Activate opens the selected item: launches an application,
	// activates a source or message, or runs a message action.
	Activate key.Binding

	// Dismiss removes the selected source or message without
	// activating it.
	Dismiss key.Binding

	// DismissAll clears every source and message.
	DismissAll key.Binding

	Quit key.Binding
}

// DefaultKeyMap is the built-in key binding set, with vim-style
// navigation alongside the arrow keys.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	Home: key.NewBinding(
		key.WithKeys("g", "home"),
		key.WithHelp("g", "top"),
	),
	End: key.NewBinding(
		key.WithKeys("G", "end"),
		key.WithHelp("G", "bottom"),
	),
	Activate: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "open"),
	),
	Dismiss: key.NewBinding(
		key.WithKeys("x", "delete"),
		key.WithHelp("x", "dismiss"),
	),
	DismissAll: key.NewBinding(
		key.WithKeys("D"),
		key.WithHelp("D", "dismiss all"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// helpBindings are shown in the footer, in order.
func (keys KeyMap) helpBindings() []key.Binding {
	return []key.Binding{keys.Up, keys.Down, keys.Activate, keys.Dismiss, keys.DismissAll, keys.Quit}
}
