// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity manages the stable identifiers that key presence
// records: a per-device identifier persisted in the state directory,
// and per-tab identifiers persisted in the session directory.
//
// The device identifier survives restarts; tab identifiers live only
// as long as the session directory does. Both are UUIDs generated on
// first use and written atomically so a crash never leaves a
// half-written identifier behind. When the backing directory is not
// writable the store falls back to an ephemeral in-memory identifier
// and logs a warning; presence reporting continues, it just won't be
// correlated across restarts.
package identity
