// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Tabpulse
// components.
//
// Configuration comes from a single YAML file specified by the
// TABPULSE_CONFIG environment variable or a --config flag. There is
// no automatic discovery and environment variables never override
// file values, which keeps the effective configuration deterministic
// and auditable. The only expansion performed is ${HOME}-style path
// variables for portability.
//
// All components tolerate a missing config file by falling back to
// Default(): the agent and viewer are meant to run with zero setup on
// a developer machine.
package config
