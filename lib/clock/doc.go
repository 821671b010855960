// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for the heartbeat and polling loops.
//
// Production code injects [Real]; tests inject [Fake] and drive it
// with [FakeClock.Advance] for deterministic timer behavior. The
// presence session and registry poller both take a Clock rather than
// calling the time package directly, which is what makes their
// threshold arithmetic and tick scheduling testable without sleeping.
//
// The interface covers exactly what the presence loops need: Now for
// elapsed-time classification, NewTicker for the heartbeat and poll
// cadences, After and AfterFunc for one-shot delays.
package clock
