// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens SQLite connection pools with the pragmas
// every Tabpulse database wants: WAL journaling, a busy timeout, and
// durable-enough synchronous mode. Callers Take a connection, use it,
// and Put it back; the pool serializes nothing beyond what SQLite
// itself serializes.
package sqlitepool
