// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command tree for the tabpulse CLI: nested
// command dispatch over pflag flag sets, structured help output, and
// typo suggestions for unknown subcommands.
package cli
