// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

// tabpulse-viewer is a terminal UI over the registry: a live, grouped
// view of one user's tabs across devices, refreshed by the registry
// poller and re-classified every second so states age visibly without
// waiting for a poll.
package main
