// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"context"
	"time"
)

// State classifies how recently a tab was used.
type State string

const (
	// StateActive means the tab is focused with activity in the last
	// five minutes.
	StateActive State = "active"

	// StateIdle means the tab is unfocused, or has seen no activity
	// for more than five minutes but less than thirty.
	StateIdle State = "idle"

	// StateStale means no activity for more than thirty minutes. A
	// stale record is last-known history, not a live tab.
	StateStale State = "stale"
)

// Classification thresholds. Focus loss alone caps at Idle; only
// elapsed inactivity produces Stale.
const (
	IdleThreshold  = 5 * time.Minute
	StaleThreshold = 30 * time.Minute
)

// Classify computes the presence state from elapsed time since the
// last user activity and the current focus flag. Pure: the same
// inputs always give the same state, so re-evaluating after a missed
// tick self-corrects rather than compounding drift.
func Classify(elapsed time.Duration, focused bool) State {
	return classify(elapsed, focused, IdleThreshold, StaleThreshold)
}

func classify(elapsed time.Duration, focused bool, idle, stale time.Duration) State {
	switch {
	case elapsed > stale:
		return StateStale
	case elapsed > idle || !focused:
		return StateIdle
	default:
		return StateActive
	}
}

// DisplayState classifies a stored record for display from its
// LastSeen timestamp alone. This intentionally ignores the persisted
// State and IsActive fields: the reader's clock and the writer's
// clock differ, so the two classifications can disagree for a moment
// around a threshold. They use the same thresholds and converge
// within one poll interval.
func DisplayState(lastSeen, now time.Time) State {
	elapsed := now.Sub(lastSeen)
	switch {
	case elapsed > StaleThreshold:
		return StateStale
	case elapsed > IdleThreshold:
		return StateIdle
	default:
		return StateActive
	}
}

// Record is one tab's presence row in the shared store, keyed by
// (UserID, DeviceID, TabID). The owning tab is the only writer;
// records are upserted on every heartbeat and never deleted, aging
// into Stale instead.
type Record struct {
	UserID    string    `cbor:"user_id" json:"user_id"`
	DeviceID  string    `cbor:"device_id" json:"device_id"`
	TabID     string    `cbor:"tab_id" json:"tab_id"`
	UserAgent string    `cbor:"user_agent" json:"user_agent"`
	IsActive  bool      `cbor:"is_active" json:"is_active"`
	LastSeen  time.Time `cbor:"last_seen" json:"last_seen"`
	State     State     `cbor:"state" json:"state"`
	CreatedAt time.Time `cbor:"created_at" json:"created_at"`
}

// Store is the shared presence store: an upsert/query surface keyed
// by the identity triple. Implementations are the SQLite-backed
// service and its socket client.
type Store interface {
	// Upsert writes the full record, overwriting any existing row
	// with the same (UserID, DeviceID, TabID). Last writer wins.
	Upsert(ctx context.Context, record Record) error

	// QueryUser returns every record owned by userID across all
	// devices and tabs, ordered by device then creation time.
	QueryUser(ctx context.Context, userID string) ([]Record, error)
}
