// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tabpulse/tabpulse/lib/clock"
)

// DefaultHeartbeat is the interval between presence upserts.
const DefaultHeartbeat = 30 * time.Second

// SessionConfig configures a presence session for one tab.
type SessionConfig struct {
	UserID    string
	DeviceID  string
	TabID     string
	UserAgent string

	// Heartbeat is the upsert interval. Zero means DefaultHeartbeat.
	Heartbeat time.Duration

	// IdleThreshold and StaleThreshold override the classification
	// cutoffs. Zero means the package defaults (IdleThreshold and
	// StaleThreshold constants).
	IdleThreshold  time.Duration
	StaleThreshold time.Duration

	Monitor *ActivityMonitor
	Store   Store
	Clock   clock.Clock
	Logger  *slog.Logger
}

// Session owns one tab's presence lifecycle: it samples the activity
// monitor on every heartbeat tick, classifies the tab, and upserts
// the resulting record to the shared store. Constructed per signed-in
// user and torn down by canceling the context passed to Run, so no
// writes outlive a sign-out.
type Session struct {
	userID    string
	deviceID  string
	tabID     string
	userAgent string
	heartbeat time.Duration
	idle      time.Duration
	stale     time.Duration
	createdAt time.Time

	monitor *ActivityMonitor
	store   Store
	clock   clock.Clock
	logger  *slog.Logger

	mu        sync.Mutex
	lastState State
	current   Record
}

// NewSession validates the configuration and returns a session ready
// to run. A missing user identifier is a refusal, not a degradation:
// without it every row would be malformed.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.UserID == "" {
		return nil, fmt.Errorf("presence session requires a signed-in user identifier")
	}
	if cfg.DeviceID == "" {
		return nil, fmt.Errorf("presence session requires a device identifier")
	}
	if cfg.TabID == "" {
		return nil, fmt.Errorf("presence session requires a tab identifier")
	}
	if cfg.Monitor == nil {
		return nil, fmt.Errorf("presence session requires an activity monitor")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("presence session requires a store")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	heartbeat := cfg.Heartbeat
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	idle := cfg.IdleThreshold
	if idle <= 0 {
		idle = IdleThreshold
	}
	stale := cfg.StaleThreshold
	if stale <= 0 {
		stale = StaleThreshold
	}
	if idle >= stale {
		return nil, fmt.Errorf("idle threshold %v must be below stale threshold %v", idle, stale)
	}

	return &Session{
		userID:    cfg.UserID,
		deviceID:  cfg.DeviceID,
		tabID:     cfg.TabID,
		userAgent: cfg.UserAgent,
		heartbeat: heartbeat,
		idle:      idle,
		stale:     stale,
		createdAt: cfg.Clock.Now(),
		monitor:   cfg.Monitor,
		store:     cfg.Store,
		clock:     cfg.Clock,
		logger:    cfg.Logger,

		// A tab is Active at creation. Seeding lastState keeps the
		// first publish of a fresh tab out of the transition log.
		lastState: StateActive,
	}, nil
}

// Run publishes presence once immediately, so a newly opened tab is
// visible without waiting a full interval, then on every heartbeat
// tick until the context is canceled. Always returns ctx.Err().
func (s *Session) Run(ctx context.Context) error {
	s.publish(ctx)

	ticker := s.clock.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.publish(ctx)
		}
	}
}

// publish samples the monitor, classifies, and upserts. A failed
// write is logged and dropped; the next tick writes fresh data, so
// failures self-heal within one interval.
func (s *Session) publish(ctx context.Context) {
	now := s.clock.Now()
	lastActivity, focused := s.monitor.Snapshot()
	state := classify(now.Sub(lastActivity), focused, s.idle, s.stale)

	record := Record{
		UserID:    s.userID,
		DeviceID:  s.deviceID,
		TabID:     s.tabID,
		UserAgent: s.userAgent,
		IsActive:  state == StateActive,
		LastSeen:  now,
		State:     state,
		CreatedAt: s.createdAt,
	}

	s.mu.Lock()
	changed := state != s.lastState
	previous := s.lastState
	s.lastState = state
	s.current = record
	s.mu.Unlock()

	if changed {
		s.logger.Info("presence state changed",
			"tab", s.tabID,
			"from", string(previous),
			"to", string(state))
	}

	if err := s.store.Upsert(ctx, record); err != nil {
		s.logger.Warn("presence write failed, will retry next tick",
			"tab", s.tabID,
			"error", err)
	}
}

// Record returns the most recently published record. Zero before the
// first publish.
func (s *Session) Record() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Activity returns the session's activity monitor, for wiring up
// event sources.
func (s *Session) Activity() *ActivityMonitor {
	return s.monitor
}
