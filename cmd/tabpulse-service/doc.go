// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

// The tabpulse-service daemon owns the shared presence store: a
// SQLite database of per-tab presence records, exposed to agents and
// the CLI over a Unix socket speaking the one-shot CBOR protocol.
// Agents upsert their records here on every heartbeat; registries
// query by user; "status" reports operational counters.
package main
