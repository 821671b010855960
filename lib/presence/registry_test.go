// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tabpulse/tabpulse/lib/clock"
	"github.com/tabpulse/tabpulse/lib/testutil"
)

var registryEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func testRecords() []Record {
	return []Record{
		{UserID: "user-1", DeviceID: "laptop", TabID: "tab-a", LastSeen: registryEpoch},
		{UserID: "user-1", DeviceID: "phone", TabID: "tab-b", LastSeen: registryEpoch},
		{UserID: "user-1", DeviceID: "laptop", TabID: "tab-c", LastSeen: registryEpoch},
	}
}

func startRegistry(t *testing.T, registry *Registry) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- registry.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("registry did not exit after cancel")
		}
	})
}

// --- grouping ---

func TestGroupByDevice(t *testing.T) {
	groups := GroupByDevice(testRecords())

	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	// First-appearance order: laptop appears before phone.
	if groups[0].DeviceID != "laptop" || groups[1].DeviceID != "phone" {
		t.Errorf("group order = [%s, %s]", groups[0].DeviceID, groups[1].DeviceID)
	}
	if len(groups[0].Records) != 2 || len(groups[1].Records) != 1 {
		t.Errorf("group sizes = [%d, %d], want [2, 1]",
			len(groups[0].Records), len(groups[1].Records))
	}
	// Intra-group order follows input order.
	if groups[0].Records[0].TabID != "tab-a" || groups[0].Records[1].TabID != "tab-c" {
		t.Errorf("laptop tabs = [%s, %s]",
			groups[0].Records[0].TabID, groups[0].Records[1].TabID)
	}
}

func TestGroupByDeviceEmpty(t *testing.T) {
	if groups := GroupByDevice(nil); len(groups) != 0 {
		t.Errorf("got %d groups for no records", len(groups))
	}
}

func TestViewTabs(t *testing.T) {
	view := View{Groups: GroupByDevice(testRecords())}
	if view.Tabs() != 3 {
		t.Errorf("Tabs() = %d, want 3", view.Tabs())
	}
}

// --- polling ---

func TestRegistryFetchesImmediately(t *testing.T) {
	fc := clock.Fake(registryEpoch)
	store := newFakeStore()
	store.setRecords(testRecords())
	logger, _ := testLogger()
	registry := NewRegistry(RegistryConfig{
		UserID: "user-1", Store: store, Clock: fc, Logger: logger,
	})
	watch := registry.Watch()
	startRegistry(t, registry)

	view := testutil.RequireReceive(t, watch, 5*time.Second, "initial view")
	if view.Tabs() != 3 || len(view.Groups) != 2 {
		t.Errorf("view = %d tabs in %d groups, want 3 in 2", view.Tabs(), len(view.Groups))
	}
	if view.Err != nil {
		t.Errorf("unexpected view error: %v", view.Err)
	}
}

func TestRegistryPollPicksUpChanges(t *testing.T) {
	fc := clock.Fake(registryEpoch)
	store := newFakeStore()
	store.setRecords(testRecords()[:1])
	logger, _ := testLogger()
	registry := NewRegistry(RegistryConfig{
		UserID: "user-1", Store: store, Clock: fc, Logger: logger,
	})
	watch := registry.Watch()
	startRegistry(t, registry)

	view := testutil.RequireReceive(t, watch, 5*time.Second, "initial view")
	if view.Tabs() != 1 {
		t.Fatalf("initial view has %d tabs, want 1", view.Tabs())
	}

	store.setRecords(testRecords())
	fc.WaitForWaiters(1)
	fc.Advance(3 * time.Second)

	view = testutil.RequireReceive(t, watch, 5*time.Second, "polled view")
	if view.Tabs() != 3 {
		t.Errorf("polled view has %d tabs, want 3", view.Tabs())
	}
}

func TestRegistryScopedToUser(t *testing.T) {
	fc := clock.Fake(registryEpoch)
	store := newFakeStore()
	store.setRecords(append(testRecords(),
		Record{UserID: "user-2", DeviceID: "laptop", TabID: "tab-x"}))
	logger, _ := testLogger()
	registry := NewRegistry(RegistryConfig{
		UserID: "user-1", Store: store, Clock: fc, Logger: logger,
	})
	watch := registry.Watch()
	startRegistry(t, registry)

	view := testutil.RequireReceive(t, watch, 5*time.Second, "view")
	if view.Tabs() != 3 {
		t.Errorf("view includes foreign records: %d tabs, want 3", view.Tabs())
	}
}

func TestRegistryRefreshTriggersFetch(t *testing.T) {
	fc := clock.Fake(registryEpoch)
	store := newFakeStore()
	store.setRecords(testRecords()[:1])
	logger, _ := testLogger()
	registry := NewRegistry(RegistryConfig{
		UserID: "user-1", Store: store, Clock: fc, Logger: logger,
	})
	watch := registry.Watch()
	startRegistry(t, registry)

	testutil.RequireReceive(t, watch, 5*time.Second, "initial view")

	// No clock advance: only Refresh drives the second fetch.
	store.setRecords(testRecords())
	registry.Refresh()

	view := testutil.RequireReceive(t, watch, 5*time.Second, "refreshed view")
	if view.Tabs() != 3 {
		t.Errorf("refreshed view has %d tabs, want 3", view.Tabs())
	}
}

// --- failure handling ---

func TestRegistryFetchFailureKeepsPreviousView(t *testing.T) {
	fc := clock.Fake(registryEpoch)
	store := newFakeStore()
	store.setRecords(testRecords())
	logger, logs := testLogger()
	registry := NewRegistry(RegistryConfig{
		UserID: "user-1", Store: store, Clock: fc, Logger: logger,
	})
	watch := registry.Watch()
	startRegistry(t, registry)

	testutil.RequireReceive(t, watch, 5*time.Second, "initial view")

	store.setQueryErr(errors.New("connection refused"))
	registry.Refresh()

	view := testutil.RequireReceive(t, watch, 5*time.Second, "failed view")
	if view.Err == nil {
		t.Error("view does not carry the fetch error")
	}
	if view.Tabs() != 3 {
		t.Errorf("failed fetch cleared the view: %d tabs, want 3", view.Tabs())
	}
	if logs.String() == "" {
		t.Error("fetch failure not logged")
	}

	// Recovery clears the error flag.
	store.setQueryErr(nil)
	registry.Refresh()
	view = testutil.RequireReceive(t, watch, 5*time.Second, "recovered view")
	if view.Err != nil {
		t.Errorf("recovered view still carries error: %v", view.Err)
	}
}

// --- fetch ordering ---

// slowFirstStore stalls the first QueryUser until released and
// answers it with stale data; later calls return the full set
// immediately.
type slowFirstStore struct {
	entered chan struct{}
	gate    chan struct{}

	mu    sync.Mutex
	calls int
}

func (s *slowFirstStore) Upsert(ctx context.Context, record Record) error { return nil }

func (s *slowFirstStore) QueryUser(ctx context.Context, userID string) ([]Record, error) {
	s.mu.Lock()
	s.calls++
	first := s.calls == 1
	s.mu.Unlock()

	if first {
		s.entered <- struct{}{}
		<-s.gate
		return testRecords()[:1], nil
	}
	return testRecords(), nil
}

func TestRegistryDiscardsSupersededFetch(t *testing.T) {
	fc := clock.Fake(registryEpoch)
	store := &slowFirstStore{
		entered: make(chan struct{}, 1),
		gate:    make(chan struct{}),
	}
	logger, _ := testLogger()
	registry := NewRegistry(RegistryConfig{
		UserID: "user-1", Store: store, Clock: fc, Logger: logger,
	})

	// The first fetch stalls inside the store with stale data.
	slowDone := make(chan struct{})
	go func() {
		registry.fetch(context.Background())
		close(slowDone)
	}()
	testutil.RequireReceive(t, store.entered, 5*time.Second, "slow fetch entered")

	// A later fetch completes first with the full set.
	registry.fetch(context.Background())
	if got := registry.Snapshot(); got.Tabs() != 3 {
		t.Fatalf("fast fetch produced %d tabs, want 3", got.Tabs())
	}

	// Releasing the slow fetch must not roll the view back.
	close(store.gate)
	testutil.RequireClosed(t, slowDone, 5*time.Second, "slow fetch completion")

	if got := registry.Snapshot(); got.Tabs() != 3 {
		t.Errorf("superseded fetch rolled the view back to %d tabs", got.Tabs())
	}
}
