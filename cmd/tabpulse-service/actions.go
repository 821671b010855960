// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tabpulse/tabpulse/lib/clock"
	"github.com/tabpulse/tabpulse/lib/codec"
	"github.com/tabpulse/tabpulse/lib/presence"
	"github.com/tabpulse/tabpulse/lib/service"
)

// PresenceService wires the store to the socket protocol. Counters
// are atomics so the status handler reads them without locking out
// the write path.
type PresenceService struct {
	store     *Store
	clock     clock.Clock
	logger    *slog.Logger
	startedAt time.Time

	upserts atomic.Uint64
	queries atomic.Uint64
}

// NewPresenceService returns a service over store.
func NewPresenceService(store *Store, clk clock.Clock, logger *slog.Logger) *PresenceService {
	return &PresenceService{
		store:     store,
		clock:     clk,
		logger:    logger,
		startedAt: clk.Now(),
	}
}

// registerActions attaches the service's handlers to the socket
// server.
func (p *PresenceService) registerActions(srv *service.Server) {
	srv.Handle("upsert", p.handleUpsert)
	srv.Handle("query", p.handleQuery)
	srv.Handle("status", p.handleStatus)
}

func (p *PresenceService) handleUpsert(ctx context.Context, raw []byte) (any, error) {
	var request struct {
		Record presence.Record `cbor:"record"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("decoding upsert request: %w", err)
	}

	if err := p.store.Upsert(ctx, request.Record); err != nil {
		return nil, err
	}
	p.upserts.Add(1)
	return nil, nil
}

func (p *PresenceService) handleQuery(ctx context.Context, raw []byte) (any, error) {
	var request struct {
		UserID string `cbor:"user_id"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("decoding query request: %w", err)
	}
	if request.UserID == "" {
		return nil, fmt.Errorf("missing required field: user_id")
	}

	records, err := p.store.QueryUser(ctx, request.UserID)
	if err != nil {
		return nil, err
	}
	p.queries.Add(1)
	return map[string]any{"records": records}, nil
}

// statusResponse is the reply for the "status" action: aggregate
// operational numbers only, no per-user data.
type statusResponse struct {
	Records       int    `cbor:"records"`
	Users         int    `cbor:"users"`
	Upserts       uint64 `cbor:"upserts"`
	Queries       uint64 `cbor:"queries"`
	UptimeSeconds int64  `cbor:"uptime_seconds"`
}

func (p *PresenceService) handleStatus(ctx context.Context, raw []byte) (any, error) {
	records, users, err := p.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return statusResponse{
		Records:       records,
		Users:         users,
		Upserts:       p.upserts.Load(),
		Queries:       p.queries.Load(),
		UptimeSeconds: int64(p.clock.Now().Sub(p.startedAt).Seconds()),
	}, nil
}

// runRetention prunes rows older than the retention horizon once an
// hour until ctx is canceled. Only started when retention is
// configured; the default keeps all rows.
func (p *PresenceService) runRetention(ctx context.Context, retention time.Duration) {
	ticker := p.clock.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			horizon := p.clock.Now().Add(-retention)
			removed, err := p.store.Prune(ctx, horizon)
			if err != nil {
				p.logger.Error("retention prune failed", "error", err)
				continue
			}
			if removed > 0 {
				p.logger.Info("retention prune", "removed", removed, "horizon", horizon)
			}
		}
	}
}
