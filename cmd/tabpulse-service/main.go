// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/tabpulse/tabpulse/lib/clock"
	"github.com/tabpulse/tabpulse/lib/config"
	"github.com/tabpulse/tabpulse/lib/process"
	"github.com/tabpulse/tabpulse/lib/service"
	"github.com/tabpulse/tabpulse/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)
	pflag.StringVar(&configPath, "config", "", "path to the config file (default: $TABPULSE_CONFIG)")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		version.Print("tabpulse-service")
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := OpenStore(StoreConfig{
		Path:     cfg.Service.DatabasePath,
		PoolSize: cfg.Service.PoolSize,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	presenceService := NewPresenceService(store, clock.Real(), logger)

	srv := service.NewServer(cfg.Service.SocketPath, logger)
	presenceService.registerActions(srv)

	if cfg.Service.RetentionDays > 0 {
		retention := time.Duration(cfg.Service.RetentionDays) * 24 * time.Hour
		go presenceService.runRetention(ctx, retention)
		logger.Info("retention enabled", "days", cfg.Service.RetentionDays)
	}

	socketDone := make(chan error, 1)
	go func() {
		socketDone <- srv.Serve(ctx)
	}()

	logger.Info("presence service running",
		"socket", cfg.Service.SocketPath,
		"database", cfg.Service.DatabasePath,
	)

	// A socket failure before shutdown means the service is running
	// but unreachable; exit non-zero rather than idle in that state.
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		if err := <-socketDone; err != nil {
			logger.Error("socket server error", "error", err)
		}
		return nil
	case err := <-socketDone:
		if err == nil {
			return fmt.Errorf("service socket closed unexpectedly")
		}
		return fmt.Errorf("service socket: %w", err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
