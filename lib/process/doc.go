// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds shared binary-entrypoint helpers.
package process
