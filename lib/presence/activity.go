// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"sync"
	"time"
)

// ActivityMonitor tracks the last user activity timestamp and the
// current focus flag for one tab. Event methods are fire-and-forget:
// they never block, tolerate arbitrary bursts, and tolerate long
// silences from a fully backgrounded tab. State is only read at
// heartbeat tick boundaries via Snapshot, so a blur immediately
// followed by a refocus within one tick never surfaces as a state
// change.
type ActivityMonitor struct {
	mu           sync.Mutex
	lastActivity time.Time
	focused      bool
}

// NewActivityMonitor returns a monitor that starts focused with
// activity at now. A freshly opened tab is Active by definition.
func NewActivityMonitor(now time.Time) *ActivityMonitor {
	return &ActivityMonitor{
		lastActivity: now,
		focused:      true,
	}
}

// Focus records the window gaining focus. Sets the focus flag and
// refreshes the activity timestamp.
func (m *ActivityMonitor) Focus(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.focused = true
	m.lastActivity = now
}

// Blur records the window losing focus. Clears the focus flag but
// leaves the activity timestamp alone, so focus loss alone can never
// advance a tab past Idle.
func (m *ActivityMonitor) Blur() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.focused = false
}

// Visible records the document becoming visible. Same effect as
// Focus.
func (m *ActivityMonitor) Visible(now time.Time) {
	m.Focus(now)
}

// Hidden records the document becoming hidden. Same effect as Blur.
func (m *ActivityMonitor) Hidden() {
	m.Blur()
}

// Input records a user interaction event (pointer down, key down,
// touch start). Refreshes the activity timestamp without touching the
// focus flag.
func (m *ActivityMonitor) Input(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActivity = now
}

// Snapshot returns the last activity timestamp and the focus flag as
// a consistent pair.
func (m *ActivityMonitor) Snapshot() (lastActivity time.Time, focused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActivity, m.focused
}
