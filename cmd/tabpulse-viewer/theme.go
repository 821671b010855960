// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/tabpulse/tabpulse/lib/presence"
)

// Theme is the viewer's color palette. ANSI 256-color codes for broad
// terminal compatibility.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	Header lipgloss.Color
	Border lipgloss.Color

	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	StateActive lipgloss.Color
	StateIdle   lipgloss.Color
	StateStale  lipgloss.Color

	ErrorText lipgloss.Color
}

// DefaultTheme is the built-in dark-terminal scheme.
var DefaultTheme = Theme{
	NormalText:         lipgloss.Color("252"),
	FaintText:          lipgloss.Color("243"),
	Header:             lipgloss.Color("39"),
	Border:             lipgloss.Color("238"),
	SelectedBackground: lipgloss.Color("237"),
	SelectedForeground: lipgloss.Color("255"),
	StateActive:        lipgloss.Color("42"),
	StateIdle:          lipgloss.Color("178"),
	StateStale:         lipgloss.Color("245"),
	ErrorText:          lipgloss.Color("203"),
}

// StateColor maps a presence state to its display color.
func (theme Theme) StateColor(state presence.State) lipgloss.Color {
	switch state {
	case presence.StateActive:
		return theme.StateActive
	case presence.StateIdle:
		return theme.StateIdle
	case presence.StateStale:
		return theme.StateStale
	default:
		return theme.FaintText
	}
}
