// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inboxui

import "github.com/charmbracelet/lipgloss"

// Theme defines the colors of the inbox views. All colors are ANSI
// 256-color codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Attention marks the indicator and items that draw attention.
	Attention lipgloss.Color

	// Running and Stopped color the application state marker.
	Running lipgloss.Color
	Stopped lipgloss.Color

	HeaderForeground lipgloss.Color
	HelpText         lipgloss.Color
	ErrorText        lipgloss.Color
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	Attention: lipgloss.Color("208"), // orange

	Running: lipgloss.Color("114"), // green
	Stopped: lipgloss.Color("245"), // gray

	HeaderForeground: lipgloss.Color("255"),
	HelpText:         lipgloss.Color("241"),
	ErrorText:        lipgloss.Color("196"),
}

// Styles are the lipgloss styles derived from a Theme.
type Styles struct {
	Header    lipgloss.Style
	Normal    lipgloss.Style
	Faint     lipgloss.Style
	Selected  lipgloss.Style
	Attention lipgloss.Style
	Running   lipgloss.Style
	Stopped   lipgloss.Style
	Help      lipgloss.Style
	Error     lipgloss.Style
}

// NewStyles builds the styles for theme.
func NewStyles(theme Theme) Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(theme.HeaderForeground),
		Normal:    lipgloss.NewStyle().Foreground(theme.NormalText),
		Faint:     lipgloss.NewStyle().Foreground(theme.FaintText),
		Selected:  lipgloss.NewStyle().Background(theme.SelectedBackground).Foreground(theme.SelectedForeground),
		Attention: lipgloss.NewStyle().Bold(true).Foreground(theme.Attention),
		Running:   lipgloss.NewStyle().Foreground(theme.Running),
		Stopped:   lipgloss.NewStyle().Foreground(theme.Stopped),
		Help:      lipgloss.NewStyle().Foreground(theme.HelpText),
		Error:     lipgloss.NewStyle().Foreground(theme.ErrorText),
	}
}
