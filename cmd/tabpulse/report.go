// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/tabpulse/tabpulse/cmd/tabpulse/cli"
	"github.com/tabpulse/tabpulse/lib/service"
)

// validEvents are the activity events an agent accepts.
var validEvents = map[string]bool{
	"focus":   true,
	"blur":    true,
	"visible": true,
	"hidden":  true,
	"input":   true,
}

func reportCommand() *cli.Command {
	var (
		configPath string
		tabName    string
		event      string
	)
	return &cli.Command{
		Name:    "report",
		Summary: "Report an activity event to a local agent",
		Description: `Send one activity event to the agent for a tab on this device.

Events: focus, blur, visible, hidden, input. Focus and visible mark
the tab focused and refresh its activity; blur and hidden unfocus it;
input refreshes activity only.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("report", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the config file")
			flags.StringVar(&tabName, "tab", "main", "tab name the agent was started with")
			flags.StringVar(&event, "event", "", "activity event (required)")
			return flags
		},
		Run: func(args []string) error {
			if event == "" {
				return fmt.Errorf("--event is required")
			}
			if !validEvents[event] {
				return fmt.Errorf("unknown event %q (want focus, blur, visible, hidden, or input)", event)
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			agentSocket := filepath.Join(cfg.Paths.Session, "agent-"+tabName+".sock")
			client := service.NewClient(agentSocket)
			return client.Call(context.Background(), "activity", map[string]any{"event": event}, nil)
		},
	}
}
