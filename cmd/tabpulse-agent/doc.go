// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

// The tabpulse-agent daemon tracks presence for one tab. It resolves
// the device and tab identifiers, runs the heartbeat session that
// publishes this tab's record to the presence service, polls the
// registry for the user's other tabs, and listens on its own Unix
// socket for activity events (focus, blur, visible, hidden, input)
// reported by whatever is driving the tab.
package main
