// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

// The tabpulse CLI inspects and drives the presence system: listing a
// user's tabs grouped by device, reporting activity events to a local
// agent, and checking service health.
package main
