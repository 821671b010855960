// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tabpulse/tabpulse/lib/clock"
	"github.com/tabpulse/tabpulse/lib/testutil"
)

var sessionEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// fakeStore records upserts on a channel and serves canned query
// results.
type fakeStore struct {
	mu        sync.Mutex
	records   []Record
	queryErr  error
	upsertErr error
	upserts   chan Record
}

func newFakeStore() *fakeStore {
	return &fakeStore{upserts: make(chan Record, 16)}
}

func (s *fakeStore) Upsert(ctx context.Context, record Record) error {
	s.mu.Lock()
	err := s.upsertErr
	s.upsertErr = nil
	s.mu.Unlock()
	s.upserts <- record
	return err
}

func (s *fakeStore) QueryUser(ctx context.Context, userID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	out := make([]Record, 0, len(s.records))
	for _, record := range s.records {
		if record.UserID == userID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (s *fakeStore) failNextUpsert(err error) {
	s.mu.Lock()
	s.upsertErr = err
	s.mu.Unlock()
}

func (s *fakeStore) setRecords(records []Record) {
	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
}

func (s *fakeStore) setQueryErr(err error) {
	s.mu.Lock()
	s.queryErr = err
	s.mu.Unlock()
}

// syncBuffer is a goroutine-safe bytes.Buffer for capturing log
// output written from the component under test.
type syncBuffer struct {
	mu     sync.Mutex
	buffer bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.String()
}

func testLogger() (*slog.Logger, *syncBuffer) {
	buffer := &syncBuffer{}
	return slog.New(slog.NewTextHandler(buffer, nil)), buffer
}

func baseConfig(store *fakeStore, c clock.Clock, monitor *ActivityMonitor, logger *slog.Logger) SessionConfig {
	return SessionConfig{
		UserID:    "user-1",
		DeviceID:  "device-1",
		TabID:     "tab-1",
		UserAgent: "tabpulse-test/1.0",
		Monitor:   monitor,
		Store:     store,
		Clock:     c,
		Logger:    logger,
	}
}

// startSession runs the session in the background and returns its
// exit channel. Cleanup cancels and waits for exit.
func startSession(t *testing.T, session *Session) chan error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("session did not exit after cancel")
		}
	})
	return done
}

// --- construction ---

func TestNewSessionValidation(t *testing.T) {
	store := newFakeStore()
	monitor := NewActivityMonitor(sessionEpoch)

	tests := []struct {
		name   string
		mutate func(*SessionConfig)
	}{
		{"missing user", func(c *SessionConfig) { c.UserID = "" }},
		{"missing device", func(c *SessionConfig) { c.DeviceID = "" }},
		{"missing tab", func(c *SessionConfig) { c.TabID = "" }},
		{"missing monitor", func(c *SessionConfig) { c.Monitor = nil }},
		{"missing store", func(c *SessionConfig) { c.Store = nil }},
		{"idle at or above stale", func(c *SessionConfig) {
			c.IdleThreshold = time.Hour
			c.StaleThreshold = time.Hour
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig(store, clock.Fake(sessionEpoch), monitor, slog.Default())
			tt.mutate(&cfg)
			if _, err := NewSession(cfg); err == nil {
				t.Error("expected construction error")
			}
		})
	}
}

// --- publishing ---

func TestSessionPublishesImmediately(t *testing.T) {
	fc := clock.Fake(sessionEpoch)
	store := newFakeStore()
	logger, _ := testLogger()
	session, err := NewSession(baseConfig(store, fc, NewActivityMonitor(sessionEpoch), logger))
	if err != nil {
		t.Fatal(err)
	}
	startSession(t, session)

	record := testutil.RequireReceive(t, store.upserts, 5*time.Second, "initial upsert")
	if record.UserID != "user-1" || record.DeviceID != "device-1" || record.TabID != "tab-1" {
		t.Errorf("identity triple = (%s, %s, %s)", record.UserID, record.DeviceID, record.TabID)
	}
	if record.State != StateActive || !record.IsActive {
		t.Errorf("fresh tab state = %v (active=%v), want Active", record.State, record.IsActive)
	}
	if !record.LastSeen.Equal(sessionEpoch) || !record.CreatedAt.Equal(sessionEpoch) {
		t.Errorf("timestamps = %v / %v, want %v", record.LastSeen, record.CreatedAt, sessionEpoch)
	}
}

func TestSessionHeartbeatCadence(t *testing.T) {
	fc := clock.Fake(sessionEpoch)
	store := newFakeStore()
	logger, _ := testLogger()
	session, err := NewSession(baseConfig(store, fc, NewActivityMonitor(sessionEpoch), logger))
	if err != nil {
		t.Fatal(err)
	}
	startSession(t, session)

	testutil.RequireReceive(t, store.upserts, 5*time.Second, "initial upsert")
	fc.WaitForWaiters(1)

	fc.Advance(30 * time.Second)
	record := testutil.RequireReceive(t, store.upserts, 5*time.Second, "first tick upsert")
	if !record.LastSeen.Equal(sessionEpoch.Add(30 * time.Second)) {
		t.Errorf("LastSeen = %v, want epoch+30s", record.LastSeen)
	}
	if !record.CreatedAt.Equal(sessionEpoch) {
		t.Errorf("CreatedAt drifted to %v", record.CreatedAt)
	}
}

func TestSessionFourMinutesFocusedStaysActive(t *testing.T) {
	// Focus held, no interaction for four minutes: still Active.
	fc := clock.Fake(sessionEpoch)
	store := newFakeStore()
	logger, _ := testLogger()
	monitor := NewActivityMonitor(sessionEpoch.Add(-4 * time.Minute))
	session, err := NewSession(baseConfig(store, fc, monitor, logger))
	if err != nil {
		t.Fatal(err)
	}
	startSession(t, session)

	record := testutil.RequireReceive(t, store.upserts, 5*time.Second, "upsert")
	if record.State != StateActive {
		t.Errorf("state = %v, want Active", record.State)
	}
}

func TestSessionCustomThresholds(t *testing.T) {
	// With a 1m/2m configuration, 90 focused seconds without input is
	// already Idle and 3 minutes is Stale; the defaults would call
	// both Active.
	tests := []struct {
		name     string
		inactive time.Duration
		want     State
	}{
		{"within idle", 30 * time.Second, StateActive},
		{"past idle", 90 * time.Second, StateIdle},
		{"past stale", 3 * time.Minute, StateStale},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := clock.Fake(sessionEpoch)
			store := newFakeStore()
			logger, _ := testLogger()
			cfg := baseConfig(store, fc, NewActivityMonitor(sessionEpoch.Add(-tt.inactive)), logger)
			cfg.IdleThreshold = time.Minute
			cfg.StaleThreshold = 2 * time.Minute
			session, err := NewSession(cfg)
			if err != nil {
				t.Fatal(err)
			}
			startSession(t, session)

			record := testutil.RequireReceive(t, store.upserts, 5*time.Second, "upsert")
			if record.State != tt.want {
				t.Errorf("after %v inactive: state = %v, want %v", tt.inactive, record.State, tt.want)
			}
		})
	}
}

func TestSessionBlurredTabReportsIdle(t *testing.T) {
	// Blurred 30 seconds ago with no refocus: Idle on the next tick.
	fc := clock.Fake(sessionEpoch)
	store := newFakeStore()
	logger, _ := testLogger()
	monitor := NewActivityMonitor(sessionEpoch.Add(-30 * time.Second))
	monitor.Blur()
	session, err := NewSession(baseConfig(store, fc, monitor, logger))
	if err != nil {
		t.Fatal(err)
	}
	startSession(t, session)

	record := testutil.RequireReceive(t, store.upserts, 5*time.Second, "upsert")
	if record.State != StateIdle {
		t.Errorf("state = %v, want Idle", record.State)
	}
	if record.IsActive {
		t.Error("idle record marked active")
	}
}

func TestSessionStaleThenKeypressRecovers(t *testing.T) {
	// Idle for 31 minutes: Stale. A single keypress brings the next
	// heartbeat back to Active.
	fc := clock.Fake(sessionEpoch)
	store := newFakeStore()
	logger, _ := testLogger()
	monitor := NewActivityMonitor(sessionEpoch.Add(-31 * time.Minute))
	session, err := NewSession(baseConfig(store, fc, monitor, logger))
	if err != nil {
		t.Fatal(err)
	}
	startSession(t, session)

	record := testutil.RequireReceive(t, store.upserts, 5*time.Second, "stale upsert")
	if record.State != StateStale {
		t.Fatalf("state = %v, want Stale", record.State)
	}

	fc.WaitForWaiters(1)
	monitor.Input(fc.Now())
	fc.Advance(30 * time.Second)

	record = testutil.RequireReceive(t, store.upserts, 5*time.Second, "recovered upsert")
	if record.State != StateActive {
		t.Errorf("state after keypress = %v, want Active", record.State)
	}
}

func TestSessionBlurRefocusWithinTickInvisible(t *testing.T) {
	// State is sampled at tick boundaries only: a blur immediately
	// undone by a refocus never publishes Idle.
	fc := clock.Fake(sessionEpoch)
	store := newFakeStore()
	logger, logs := testLogger()
	monitor := NewActivityMonitor(sessionEpoch)
	session, err := NewSession(baseConfig(store, fc, monitor, logger))
	if err != nil {
		t.Fatal(err)
	}
	startSession(t, session)

	testutil.RequireReceive(t, store.upserts, 5*time.Second, "initial upsert")
	fc.WaitForWaiters(1)

	monitor.Blur()
	monitor.Focus(fc.Now())
	fc.Advance(30 * time.Second)

	record := testutil.RequireReceive(t, store.upserts, 5*time.Second, "tick upsert")
	if record.State != StateActive {
		t.Errorf("state = %v, want Active", record.State)
	}
	if strings.Contains(logs.String(), `to=idle`) {
		t.Errorf("intra-tick blur leaked into the log: %s", logs.String())
	}
}

func TestSessionFirstPublishLogsNoTransitionWhenActive(t *testing.T) {
	// A tab is Active at creation, so the first publish of a fresh
	// focused tab is not a transition and must stay out of the log.
	fc := clock.Fake(sessionEpoch)
	store := newFakeStore()
	logger, logs := testLogger()
	session, err := NewSession(baseConfig(store, fc, NewActivityMonitor(sessionEpoch), logger))
	if err != nil {
		t.Fatal(err)
	}
	startSession(t, session)

	testutil.RequireReceive(t, store.upserts, 5*time.Second, "initial upsert")
	if strings.Contains(logs.String(), "presence state changed") {
		t.Errorf("fresh Active tab logged a transition: %s", logs.String())
	}
}

func TestSessionFirstPublishLogsTransitionWhenIdle(t *testing.T) {
	// A tab that starts blurred genuinely transitions away from the
	// creation state, and that does belong in the log.
	fc := clock.Fake(sessionEpoch)
	store := newFakeStore()
	logger, logs := testLogger()
	monitor := NewActivityMonitor(sessionEpoch)
	monitor.Blur()
	session, err := NewSession(baseConfig(store, fc, monitor, logger))
	if err != nil {
		t.Fatal(err)
	}
	startSession(t, session)

	testutil.RequireReceive(t, store.upserts, 5*time.Second, "initial upsert")
	if !strings.Contains(logs.String(), "from=active") || !strings.Contains(logs.String(), "to=idle") {
		t.Errorf("blurred first publish not logged as active to idle: %s", logs.String())
	}
}

func TestSessionWriteFailureRetriesNextTick(t *testing.T) {
	fc := clock.Fake(sessionEpoch)
	store := newFakeStore()
	store.failNextUpsert(errors.New("network unreachable"))
	logger, logs := testLogger()
	session, err := NewSession(baseConfig(store, fc, NewActivityMonitor(sessionEpoch), logger))
	if err != nil {
		t.Fatal(err)
	}
	done := startSession(t, session)

	testutil.RequireReceive(t, store.upserts, 5*time.Second, "failed upsert attempt")
	fc.WaitForWaiters(1)

	select {
	case err := <-done:
		t.Fatalf("session exited on write failure: %v", err)
	default:
	}

	fc.Advance(30 * time.Second)
	record := testutil.RequireReceive(t, store.upserts, 5*time.Second, "retry upsert")
	if !record.LastSeen.Equal(sessionEpoch.Add(30 * time.Second)) {
		t.Errorf("retry carries stale data: LastSeen = %v", record.LastSeen)
	}
	if !strings.Contains(logs.String(), "presence write failed") {
		t.Errorf("write failure not logged: %s", logs.String())
	}
}

func TestSessionRecordAccessor(t *testing.T) {
	fc := clock.Fake(sessionEpoch)
	store := newFakeStore()
	logger, _ := testLogger()
	session, err := NewSession(baseConfig(store, fc, NewActivityMonitor(sessionEpoch), logger))
	if err != nil {
		t.Fatal(err)
	}

	if got := session.Record(); got.UserID != "" {
		t.Errorf("record before first publish = %+v, want zero", got)
	}

	startSession(t, session)
	published := testutil.RequireReceive(t, store.upserts, 5*time.Second, "upsert")
	if got := session.Record(); got != published {
		t.Errorf("Record() = %+v, want %+v", got, published)
	}
}

func TestSessionStopsOnCancel(t *testing.T) {
	fc := clock.Fake(sessionEpoch)
	store := newFakeStore()
	logger, _ := testLogger()
	session, err := NewSession(baseConfig(store, fc, NewActivityMonitor(sessionEpoch), logger))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	testutil.RequireReceive(t, store.upserts, 5*time.Second, "initial upsert")
	cancel()

	err = testutil.RequireReceive(t, done, 5*time.Second, "session exit")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}
}
