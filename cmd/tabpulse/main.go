// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/tabpulse/tabpulse/cmd/tabpulse/cli"
	"github.com/tabpulse/tabpulse/lib/config"
	"github.com/tabpulse/tabpulse/lib/version"
)

func main() {
	if err := root().Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func root() *cli.Command {
	return &cli.Command{
		Name: "tabpulse",
		Description: `Tabpulse: per-tab presence tracking.

Inspect which tabs are open across a user's devices, report activity
events to a local agent, and check the presence service.`,
		Subcommands: []*cli.Command{
			listCommand(),
			watchCommand(),
			reportCommand(),
			statusCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Printf("tabpulse %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "List a user's tabs grouped by device",
				Command:     "tabpulse list --user alice",
			},
			{
				Description: "Follow a user's tabs as they change",
				Command:     "tabpulse watch --user alice",
			},
			{
				Description: "Report a keypress to the local agent for tab \"main\"",
				Command:     "tabpulse report --event input",
			},
			{
				Description: "Check the presence service",
				Command:     "tabpulse status",
			},
		},
	}
}

// loadConfig resolves the config for a subcommand: an explicit
// --config path wins, otherwise $TABPULSE_CONFIG, otherwise defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
