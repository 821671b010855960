// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/tabpulse/tabpulse/lib/clock"
	"github.com/tabpulse/tabpulse/lib/config"
	"github.com/tabpulse/tabpulse/lib/presence"
	"github.com/tabpulse/tabpulse/lib/process"
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
		userID      string
		showVersion bool
	)
	pflag.StringVar(&configPath, "config", "", "path to the config file (default: $TABPULSE_CONFIG)")
	pflag.StringVar(&userID, "user", "", "user identifier to watch (required)")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		version.Print("tabpulse-viewer")
		return nil
	}
	if userID == "" {
		return fmt.Errorf("--user is required")
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// The TUI owns the terminal; keep log noise out of it.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	registry := presence.NewRegistry(presence.RegistryConfig{
		UserID:       userID,
		Store:        presence.NewRemoteStore(cfg.Service.SocketPath),
		Clock:        clock.Real(),
		Logger:       logger,
		PollInterval: cfg.Presence.Poll(),
	})
	watch := registry.Watch()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	registryDone := make(chan error, 1)
	go func() {
		registryDone <- registry.Run(ctx)
	}()

	program := tea.NewProgram(
		newModel(userID, watch, registry.Refresh),
		tea.WithAltScreen(),
	)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running viewer: %w", err)
	}

	cancel()
	<-registryDone
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
