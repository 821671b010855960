// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tabpulse/tabpulse/lib/clock"
)

// DefaultPollInterval is the registry poll cadence.
const DefaultPollInterval = 3 * time.Second

// DeviceGroup is the presence records of one device, in the order the
// store returned them.
type DeviceGroup struct {
	DeviceID string
	Records  []Record
}

// View is one complete registry refresh: the user's records grouped
// by device. When a fetch fails the previous groups are retained and
// Err carries the failure so the UI can flag it without flickering to
// empty.
type View struct {
	Groups    []DeviceGroup
	Err       error
	FetchedAt time.Time
}

// Tabs returns the total record count across all groups.
func (v View) Tabs() int {
	total := 0
	for _, group := range v.Groups {
		total += len(group.Records)
	}
	return total
}

// GroupByDevice partitions records by DeviceID. Groups appear in
// first-appearance order and records keep their input order, so the
// store's ordering flows through to the UI unchanged.
func GroupByDevice(records []Record) []DeviceGroup {
	var groups []DeviceGroup
	index := make(map[string]int)
	for _, record := range records {
		i, ok := index[record.DeviceID]
		if !ok {
			i = len(groups)
			index[record.DeviceID] = i
			groups = append(groups, DeviceGroup{DeviceID: record.DeviceID})
		}
		groups[i].Records = append(groups[i].Records, record)
	}
	return groups
}

// RegistryConfig configures a registry poller.
type RegistryConfig struct {
	UserID string
	Store  Store
	Clock  clock.Clock
	Logger *slog.Logger

	// PollInterval is the fetch cadence. Zero means
	// DefaultPollInterval.
	PollInterval time.Duration
}

// Registry polls the shared store for all of one user's presence
// records and republishes them as grouped views. Each refresh rebuilds
// the view wholesale. Fetches carry a generation number and a result
// is discarded when a newer fetch has already been applied, so slow
// responses can never roll the view backwards.
type Registry struct {
	userID   string
	store    Store
	clock    clock.Clock
	logger   *slog.Logger
	interval time.Duration

	refresh chan struct{}

	mu         sync.Mutex
	view       View
	generation uint64
	applied    uint64
	watchers   []chan View
}

// NewRegistry returns a registry poller for userID. It does nothing
// until Run is called.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Registry{
		userID:   cfg.UserID,
		store:    cfg.Store,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		interval: interval,
		refresh:  make(chan struct{}, 1),
	}
}

// Run fetches immediately, then on every poll tick and on every
// Refresh signal, until the context is canceled. Always returns
// ctx.Err().
func (r *Registry) Run(ctx context.Context) error {
	r.fetch(ctx)

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.fetch(ctx)
		case <-r.refresh:
			r.fetch(ctx)
		}
	}
}

// Refresh requests an immediate fetch, for reacting to a locally
// observed presence change without waiting for the next tick.
// Multiple pending requests coalesce into one fetch.
func (r *Registry) Refresh() {
	select {
	case r.refresh <- struct{}{}:
	default:
	}
}

// Snapshot returns the current view.
func (r *Registry) Snapshot() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// Watch returns a channel receiving each new view. The channel holds
// only the latest view: a subscriber that lags sees intermediate
// views dropped, never a stall of the poller.
func (r *Registry) Watch() <-chan View {
	ch := make(chan View, 1)
	r.mu.Lock()
	r.watchers = append(r.watchers, ch)
	view := r.view
	applied := r.applied
	r.mu.Unlock()
	if applied > 0 {
		ch <- view
	}
	return ch
}

func (r *Registry) fetch(ctx context.Context) {
	r.mu.Lock()
	r.generation++
	generation := r.generation
	r.mu.Unlock()

	records, err := r.store.QueryUser(ctx, r.userID)
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if generation < r.applied {
		// A newer fetch already landed; this result is stale.
		return
	}
	r.applied = generation

	if err != nil {
		r.logger.Warn("registry fetch failed, keeping previous view",
			"user", r.userID,
			"error", err)
		r.view.Err = err
		r.view.FetchedAt = now
	} else {
		r.view = View{
			Groups:    GroupByDevice(records),
			FetchedAt: now,
		}
	}

	for _, ch := range r.watchers {
		select {
		case ch <- r.view:
		default:
			// Drop the stale buffered view, then publish the new one.
			select {
			case <-ch:
			default:
			}
			ch <- r.view
		}
	}
}
