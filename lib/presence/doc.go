// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

// Package presence implements per-tab presence tracking: activity
// observation, state classification, the heartbeat session that
// publishes a tab's presence record, and the registry that polls the
// shared store and groups what it finds by device.
//
// A tab is Active while it has focus and recent user activity, Idle
// once activity stops or focus leaves, and Stale after half an hour
// without any activity. Classification happens at read time from the
// recorded last-activity timestamp, so a record written by a crashed
// session decays naturally without anyone cleaning it up.
package presence
