// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tabpulse/tabpulse/lib/clock"
	"github.com/tabpulse/tabpulse/lib/presence"
	"github.com/tabpulse/tabpulse/lib/service"
	"github.com/tabpulse/tabpulse/lib/testutil"
)

// startService spins up a store, the presence service, and a socket
// server, returning a remote store client for it.
func startService(t *testing.T, fc *clock.FakeClock) (*presence.RemoteStore, *service.Client) {
	t.Helper()
	store := openTestStore(t)
	presenceService := NewPresenceService(store, fc, slog.New(slog.DiscardHandler))

	socketPath := filepath.Join(testutil.SocketDir(t), "service.sock")
	srv := service.NewServer(socketPath, slog.New(slog.DiscardHandler))
	presenceService.registerActions(srv)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		testutil.RequireClosed(t, done, 5*time.Second, "service shutdown")
	})

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(socketPath); err == nil {
			return presence.NewRemoteStore(socketPath), service.NewClient(socketPath)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("socket %s never appeared", socketPath)
	return nil, nil
}

func TestUpsertQueryOverSocket(t *testing.T) {
	fc := clock.Fake(storeEpoch)
	remote, _ := startService(t, fc)
	ctx := context.Background()

	record := sampleRecord("tab-a", storeEpoch)
	if err := remote.Upsert(ctx, record); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	records, err := remote.QueryUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("QueryUser: %v", err)
	}
	if len(records) != 1 || records[0].TabID != "tab-a" {
		t.Errorf("records = %+v", records)
	}
	if !records[0].LastSeen.Equal(storeEpoch) {
		t.Errorf("LastSeen = %v, want %v", records[0].LastSeen, storeEpoch)
	}
}

func TestUpsertRejectsIncompleteRecord(t *testing.T) {
	fc := clock.Fake(storeEpoch)
	remote, _ := startService(t, fc)

	err := remote.Upsert(context.Background(), presence.Record{UserID: "user-1"})
	var callErr *service.CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("error %v is not a *CallError", err)
	}
}

func TestQueryRequiresUserID(t *testing.T) {
	fc := clock.Fake(storeEpoch)
	_, client := startService(t, fc)

	err := client.Call(context.Background(), "query", nil, nil)
	var callErr *service.CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("error %v is not a *CallError", err)
	}
}

func TestStatusAction(t *testing.T) {
	fc := clock.Fake(storeEpoch)
	remote, client := startService(t, fc)
	ctx := context.Background()

	if err := remote.Upsert(ctx, sampleRecord("tab-a", storeEpoch)); err != nil {
		t.Fatal(err)
	}
	if _, err := remote.QueryUser(ctx, "user-1"); err != nil {
		t.Fatal(err)
	}

	fc.Advance(90 * time.Second)

	var status statusResponse
	if err := client.Call(ctx, "status", nil, &status); err != nil {
		t.Fatalf("status call: %v", err)
	}
	if status.Records != 1 || status.Users != 1 {
		t.Errorf("status counts = (%d, %d), want (1, 1)", status.Records, status.Users)
	}
	if status.Upserts != 1 || status.Queries != 1 {
		t.Errorf("status ops = (%d upserts, %d queries), want (1, 1)", status.Upserts, status.Queries)
	}
	if status.UptimeSeconds != 90 {
		t.Errorf("uptime = %ds, want 90", status.UptimeSeconds)
	}
}

func TestRetentionSweep(t *testing.T) {
	store := openTestStore(t)
	fc := clock.Fake(storeEpoch)
	presenceService := NewPresenceService(store, fc, slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	old := sampleRecord("tab-old", storeEpoch.Add(-10*24*time.Hour))
	fresh := sampleRecord("tab-fresh", storeEpoch)
	for _, record := range []presence.Record{old, fresh} {
		if err := store.Upsert(ctx, record); err != nil {
			t.Fatal(err)
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		presenceService.runRetention(ctx, 7*24*time.Hour)
	}()
	fc.WaitForWaiters(1)
	fc.Advance(time.Hour)

	// The sweep runs on the ticker goroutine; poll until it lands.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		records, err := store.QueryUser(ctx, "user-1")
		if err != nil {
			t.Fatal(err)
		}
		if len(records) == 1 {
			if records[0].TabID != "tab-fresh" {
				t.Errorf("wrong survivor: %+v", records[0])
			}
			cancel()
			testutil.RequireClosed(t, done, 5*time.Second, "retention exit")
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("retention sweep never removed the old row")
}
