// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/tabpulse/tabpulse/cmd/tabpulse/cli"
	"github.com/tabpulse/tabpulse/lib/presence"
)

func listCommand() *cli.Command {
	var (
		configPath string
		userID     string
		jsonOutput bool
	)
	return &cli.Command{
		Name:    "list",
		Summary: "List a user's tabs grouped by device",
		Description: `List every presence record for a user, grouped by device.

States are classified from each record's last-seen timestamp: active
within five minutes, idle within thirty, stale beyond that.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("list", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the config file")
			flags.StringVar(&userID, "user", "", "user identifier (required)")
			flags.BoolVar(&jsonOutput, "json", false, "emit JSON instead of a table")
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

			store := presence.NewRemoteStore(cfg.Service.SocketPath)
			records, err := store.QueryUser(context.Background(), userID)
			if err != nil {
				return err
			}
			groups := presence.GroupByDevice(records)

			if jsonOutput {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(groups)
			}

			if len(groups) == 0 {
				fmt.Printf("no tabs for %s\n", userID)
				return nil
			}
			printGroups(os.Stdout, groups, time.Now())
			return nil
		},
	}
}

func printGroups(w io.Writer, groups []presence.DeviceGroup, now time.Time) {
	tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "DEVICE\tTAB\tSTATE\tLAST SEEN\tUSER AGENT")
	for _, group := range groups {
		for _, record := range group.Records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				group.DeviceID,
				record.TabID,
				presence.DisplayState(record.LastSeen, now),
				formatAge(now.Sub(record.LastSeen)),
				record.UserAgent,
			)
		}
	}
	tw.Flush()
}

// formatAge renders an elapsed duration the way a person reads it:
// "12s ago", "4m ago", "2h15m ago".
func formatAge(elapsed time.Duration) string {
	if elapsed < 0 {
		elapsed = 0
	}
	switch {
	case elapsed < time.Minute:
		return fmt.Sprintf("%ds ago", int(elapsed.Seconds()))
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm ago", int(elapsed.Minutes()))
	default:
		hours := int(elapsed.Hours())
		minutes := int(elapsed.Minutes()) - hours*60
		return fmt.Sprintf("%dh%dm ago", hours, minutes)
	}
}
