// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the wire codec for the Tabpulse socket protocol.
//
// All socket traffic (presence upserts, registry queries, activity
// notifications) is CBOR encoded with Core Deterministic Encoding
// (RFC 8949 §4.2): sorted map keys, smallest integer forms, no
// indefinite-length items. The same presence record always encodes to
// the same bytes, which keeps upserts comparable and logs diffable.
//
// Consumers import only this package, never fxamacker/cbor directly;
// the Encoder, Decoder, and RawMessage aliases exist for that reason.
package codec
