// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/tabpulse/tabpulse/lib/clock"
	"github.com/tabpulse/tabpulse/lib/config"
	"github.com/tabpulse/tabpulse/lib/identity"
	"github.com/tabpulse/tabpulse/lib/presence"
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
		userID      string
		tabName     string
		userAgent   string
		showVersion bool
	)
	pflag.StringVar(&configPath, "config", "", "path to the config file (default: $TABPULSE_CONFIG)")
	pflag.StringVar(&userID, "user", "", "signed-in user identifier (required)")
	pflag.StringVar(&tabName, "tab", "main", "tab name, distinguishing tabs on this device")
	pflag.StringVar(&userAgent, "user-agent", "", "user agent string to report (default: tabpulse-agent/<version>)")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		version.Print("tabpulse-agent")
		return nil
	}
	if userID == "" {
		return fmt.Errorf("--user is required: presence cannot initialize without a signed-in user")
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if userAgent == "" {
		userAgent = "tabpulse-agent/" + version.Version
	}

	identities := identity.NewStore(cfg.Paths.State, cfg.Paths.Session, logger)
	deviceID := identities.DeviceID()
	tabID := identities.TabID(tabName)

	agent, err := NewAgent(AgentConfig{
		UserID:       userID,
		DeviceID:     deviceID,
		TabID:        tabID,
		UserAgent:    userAgent,
		Heartbeat:    cfg.Presence.Heartbeat(),
		PollInterval: cfg.Presence.Poll(),

		IdleThreshold:  cfg.Presence.IdleThreshold(),
		StaleThreshold: cfg.Presence.StaleThreshold(),

		Store:        presence.NewRemoteStore(cfg.Service.SocketPath),
		Clock:        clock.Real(),
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agentSocket := filepath.Join(cfg.Paths.Session, "agent-"+tabName+".sock")
	srv := service.NewServer(agentSocket, logger)
	agent.registerActions(srv)

	socketDone := make(chan error, 1)
	go func() {
		socketDone <- srv.Serve(ctx)
	}()

	logger.Info("agent running",
		"user", userID,
		"device", deviceID,
		"tab", tabID,
		"socket", agentSocket,
	)

	agentDone := make(chan error, 1)
	go func() {
		agentDone <- agent.Run(ctx)
	}()

	// A socket failure before shutdown means the agent is running but
	// unreachable; exit non-zero rather than idle in that state.
	select {
	case <-ctx.Done():
		<-agentDone
		if err := <-socketDone; err != nil {
			logger.Error("socket server error", "error", err)
		}
		return nil
	case err := <-socketDone:
		stop()
		<-agentDone
		if err == nil {
			return fmt.Errorf("activity socket closed unexpectedly")
		}
		return fmt.Errorf("activity socket: %w", err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
