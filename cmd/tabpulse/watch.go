// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/tabpulse/tabpulse/cmd/tabpulse/cli"
	"github.com/tabpulse/tabpulse/lib/presence"
)

func watchCommand() *cli.Command {
	var (
		configPath string
		userID     string
	)
	return &cli.Command{
		Name:    "watch",
		Summary: "Continuously print a user's tabs as views arrive",
		Description: `Poll the presence service and reprint the device-grouped table on
every registry refresh. Views scroll; interrupt to stop.

When a fetch fails the last known view is kept and the failure is
printed above it, so a flaky service never blanks the output.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("watch", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the config file")
			flags.StringVar(&userID, "user", "", "user identifier (required)")
			return flags
		},
		Run: func(args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Fetch failures surface inside each view; a second copy
			// from the registry's own logger would just be noise here.
			registry := presence.NewRegistry(presence.RegistryConfig{
				UserID:       userID,
				Store:        presence.NewRemoteStore(cfg.Service.SocketPath),
				PollInterval: cfg.Presence.Poll(),
				Logger:       slog.New(slog.DiscardHandler),
			})
			views := registry.Watch()

			done := make(chan error, 1)
			go func() {
				done <- registry.Run(ctx)
			}()

			for {
				select {
				case <-ctx.Done():
					<-done
					return nil
				case view := <-views:
					printView(os.Stdout, view, time.Now())
				}
			}
		},
	}
}

// printView writes one registry view: a timestamp line, the fetch
// failure if any, and the grouped table.
func printView(w io.Writer, view presence.View, now time.Time) {
	fmt.Fprintf(w, "%s  %d tabs\n", view.FetchedAt.Format("15:04:05"), view.Tabs())
	if view.Err != nil {
		fmt.Fprintf(w, "fetch failed: %v (showing last known view)\n", view.Err)
	}
	if len(view.Groups) > 0 {
		printGroups(w, view.Groups, now)
	}
	fmt.Fprintln(w)
}
