// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Tabpulse packages.
package testutil
