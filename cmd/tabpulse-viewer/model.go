// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/tabpulse/tabpulse/lib/presence"
)

// viewMsg carries a fresh registry view into the update loop.
type viewMsg presence.View

// tickMsg drives the once-a-second re-render that ages display
// states between polls.
type tickMsg time.Time

// model is the viewer's bubbletea model. It owns no presence logic:
// views arrive over the watch channel, refresh requests go out
// through the refresh callback, and classification is recomputed at
// render time from each record's LastSeen.
type model struct {
	userID  string
	watch   <-chan presence.View
	refresh func()
	now     func() time.Time

	view     presence.View
	rows     []row
	selected int

	width  int
	height int

	keys  KeyMap
	theme Theme
}

// row is one selectable line: a device header or a tab.
type row struct {
	isHeader bool
	deviceID string
	record   presence.Record
}

func newModel(userID string, watch <-chan presence.View, refresh func()) model {
	return model{
		userID:  userID,
		watch:   watch,
		refresh: refresh,
		now:     time.Now,
		keys:    DefaultKeyMap,
		theme:   DefaultTheme,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.waitForView(), tick())
}

// waitForView blocks on the watch channel until the registry
// publishes the next view.
func (m model) waitForView() tea.Cmd {
	return func() tea.Msg {
		view, ok := <-m.watch
		if !ok {
			return tea.Quit()
		}
		return viewMsg(view)
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case viewMsg:
		m.view = presence.View(msg)
		m.rows = buildRows(m.view)
		if m.selected >= len(m.rows) {
			m.selected = max(0, len(m.rows)-1)
		}
		return m, m.waitForView()

	case tickMsg:
		// Re-render only; display states are recomputed in View.
		return m, tick()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			m.selected = m.moveSelection(-1)
		case key.Matches(msg, m.keys.Down):
			m.selected = m.moveSelection(1)
		case key.Matches(msg, m.keys.Refresh):
			m.refresh()
		}
		return m, nil
	}
	return m, nil
}

// moveSelection steps over device headers so the cursor only lands on
// tabs.
func (m model) moveSelection(direction int) int {
	index := m.selected
	for {
		index += direction
		if index < 0 || index >= len(m.rows) {
			return m.selected
		}
		if !m.rows[index].isHeader {
			return index
		}
	}
}

// buildRows flattens the grouped view into selectable lines.
func buildRows(view presence.View) []row {
	var rows []row
	for _, group := range view.Groups {
		rows = append(rows, row{isHeader: true, deviceID: group.DeviceID})
		for _, record := range group.Records {
			rows = append(rows, row{deviceID: group.DeviceID, record: record})
		}
	}
	return rows
}

func (m model) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	now := m.now()

	var b strings.Builder

	headerStyle := lipgloss.NewStyle().Foreground(m.theme.Header).Bold(true)
	b.WriteString(headerStyle.Render(fmt.Sprintf("tabpulse · %s (%d tabs)", m.userID, m.view.Tabs())))
	b.WriteString("\n")

	if m.view.Err != nil {
		errStyle := lipgloss.NewStyle().Foreground(m.theme.ErrorText)
		b.WriteString(errStyle.Render("fetch failed, showing last known view: " + m.view.Err.Error()))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(m.rows) == 0 {
		faint := lipgloss.NewStyle().Foreground(m.theme.FaintText)
		b.WriteString(faint.Render("no tabs yet"))
		b.WriteString("\n")
	}

	deviceStyle := lipgloss.NewStyle().Foreground(m.theme.NormalText).Bold(true)
	faintStyle := lipgloss.NewStyle().Foreground(m.theme.FaintText)
	selectedStyle := lipgloss.NewStyle().
		Background(m.theme.SelectedBackground).
		Foreground(m.theme.SelectedForeground)

	for i, r := range m.rows {
		if r.isHeader {
			b.WriteString(deviceStyle.Render("▸ " + r.deviceID))
			b.WriteString("\n")
			continue
		}

		state := presence.DisplayState(r.record.LastSeen, now)
		stateStyle := lipgloss.NewStyle().Foreground(m.theme.StateColor(state))

		line := fmt.Sprintf("  %s %-8s %s  %s",
			stateStyle.Render("●"),
			state,
			r.record.TabID,
			faintStyle.Render(formatAge(now.Sub(r.record.LastSeen))),
		)
		line = ansi.Truncate(line, width, "…")
		if i == m.selected {
			line = selectedStyle.Render(ansi.Strip(line))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(faintStyle.Render(helpLine(m.keys)))
	return b.String()
}

func helpLine(keys KeyMap) string {
	parts := []string{
		keys.Up.Help().Key + " " + keys.Up.Help().Desc,
		keys.Down.Help().Key + " " + keys.Down.Help().Desc,
		keys.Refresh.Help().Key + " " + keys.Refresh.Help().Desc,
		keys.Quit.Help().Key + " " + keys.Quit.Help().Desc,
	}
	return strings.Join(parts, "  ·  ")
}

// formatAge renders elapsed time compactly for a table cell.
func formatAge(elapsed time.Duration) string {
	if elapsed < 0 {
		elapsed = 0
	}
	switch {
	case elapsed < time.Minute:
		return fmt.Sprintf("%ds", int(elapsed.Seconds()))
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm", int(elapsed.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(elapsed.Hours()))
	}
}
