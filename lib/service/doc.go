// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

// Package service implements the one-shot CBOR request protocol the
// Tabpulse processes speak over Unix domain sockets. A client dials,
// writes one CBOR request map containing an "action" field plus
// action-specific fields, and reads back one response envelope
// {ok, error?, data?}. The connection then closes; there is no
// session state between calls.
//
// CBOR is self-delimiting, so the protocol needs no framing. Both
// sides bound reads to keep a misbehaving peer from exhausting
// memory.
package service
