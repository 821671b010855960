// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tabpulse/tabpulse/lib/clock"
	"github.com/tabpulse/tabpulse/lib/codec"
	"github.com/tabpulse/tabpulse/lib/presence"
	"github.com/tabpulse/tabpulse/lib/service"
)

// Agent bundles one tab's presence components: the activity monitor
// fed by socket events, the heartbeat session, and the registry
// poller.
type Agent struct {
	monitor  *presence.ActivityMonitor
	session  *presence.Session
	registry *presence.Registry
	clock    clock.Clock
	logger   *slog.Logger
}

// AgentConfig configures an agent.
type AgentConfig struct {
	UserID    string
	DeviceID  string
	TabID     string
	UserAgent string

	Heartbeat    time.Duration
	PollInterval time.Duration

	// IdleThreshold and StaleThreshold override the classification
	// cutoffs. Zero means the package defaults.
	IdleThreshold  time.Duration
	StaleThreshold time.Duration

	Store  presence.Store
	Clock  clock.Clock
	Logger *slog.Logger
}

// NewAgent builds the monitor, session, and registry for one tab.
func NewAgent(cfg AgentConfig) (*Agent, error) {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	monitor := presence.NewActivityMonitor(cfg.Clock.Now())

	session, err := presence.NewSession(presence.SessionConfig{
		UserID:    cfg.UserID,
		DeviceID:  cfg.DeviceID,
		TabID:     cfg.TabID,
		UserAgent: cfg.UserAgent,
		Heartbeat: cfg.Heartbeat,

		IdleThreshold:  cfg.IdleThreshold,
		StaleThreshold: cfg.StaleThreshold,

		Monitor:   monitor,
		Store:     cfg.Store,
		Clock:     cfg.Clock,
		Logger:    cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	registry := presence.NewRegistry(presence.RegistryConfig{
		UserID:       cfg.UserID,
		Store:        cfg.Store,
		Clock:        cfg.Clock,
		Logger:       cfg.Logger,
		PollInterval: cfg.PollInterval,
	})

	return &Agent{
		monitor:  monitor,
		session:  session,
		registry: registry,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
	}, nil
}

// Run drives the session and registry until ctx is canceled.
func (a *Agent) Run(ctx context.Context) error {
	sessionDone := make(chan error, 1)
	go func() {
		sessionDone <- a.session.Run(ctx)
	}()

	err := a.registry.Run(ctx)
	<-sessionDone
	return err
}

// registerActions attaches the agent's socket handlers.
func (a *Agent) registerActions(srv *service.Server) {
	srv.Handle("activity", a.handleActivity)
	srv.Handle("status", a.handleStatus)
}

// handleActivity applies one activity event to the monitor. Events
// mirror the browser signals: focus and visible set the focus flag
// and refresh activity, blur and hidden clear the flag, input
// refreshes activity only. Every event also nudges the registry so
// the local view catches changes without waiting out the poll
// interval.
func (a *Agent) handleActivity(ctx context.Context, raw []byte) (any, error) {
	var request struct {
		Event string `cbor:"event"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("decoding activity request: %w", err)
	}

	now := a.clock.Now()
	switch request.Event {
	case "focus":
		a.monitor.Focus(now)
	case "visible":
		a.monitor.Visible(now)
	case "blur":
		a.monitor.Blur()
	case "hidden":
		a.monitor.Hidden()
	case "input":
		a.monitor.Input(now)
	default:
		return nil, fmt.Errorf("unknown activity event %q", request.Event)
	}

	a.registry.Refresh()
	return nil, nil
}

// tabStatus is one tab in the status reply, classified for display
// from its LastSeen.
type tabStatus struct {
	TabID     string    `cbor:"tab_id"`
	UserAgent string    `cbor:"user_agent"`
	State     string    `cbor:"state"`
	LastSeen  time.Time `cbor:"last_seen"`
}

type deviceStatus struct {
	DeviceID string      `cbor:"device_id"`
	Tabs     []tabStatus `cbor:"tabs"`
}

type statusReply struct {
	Record     presence.Record `cbor:"record"`
	Devices    []deviceStatus  `cbor:"devices"`
	FetchError string          `cbor:"fetch_error,omitempty"`
}

func (a *Agent) handleStatus(ctx context.Context, raw []byte) (any, error) {
	view := a.registry.Snapshot()
	now := a.clock.Now()

	reply := statusReply{Record: a.session.Record()}
	if view.Err != nil {
		reply.FetchError = view.Err.Error()
	}
	for _, group := range view.Groups {
		device := deviceStatus{DeviceID: group.DeviceID}
		for _, record := range group.Records {
			device.Tabs = append(device.Tabs, tabStatus{
				TabID:     record.TabID,
				UserAgent: record.UserAgent,
				State:     string(presence.DisplayState(record.LastSeen, now)),
				LastSeen:  record.LastSeen,
			})
		}
		reply.Devices = append(reply.Devices, device)
	}
	return reply, nil
}
