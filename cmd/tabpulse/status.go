// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/tabpulse/tabpulse/cmd/tabpulse/cli"
	"github.com/tabpulse/tabpulse/lib/service"
)

// serviceStatus mirrors the service's "status" response.
type serviceStatus struct {
	Records       int    `cbor:"records" json:"records"`
	Users         int    `cbor:"users" json:"users"`
	Upserts       uint64 `cbor:"upserts" json:"upserts"`
	Queries       uint64 `cbor:"queries" json:"queries"`
	UptimeSeconds int64  `cbor:"uptime_seconds" json:"uptime_seconds"`
}

func statusCommand() *cli.Command {
	var (
		configPath string
		jsonOutput bool
	)
	return &cli.Command{
		Name:    "status",
		Summary: "Show presence service status",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("status", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to the config file")
			flags.BoolVar(&jsonOutput, "json", false, "emit JSON instead of text")
			return flags
		},
		Run: func(args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			client := service.NewClient(cfg.Service.SocketPath)
			var status serviceStatus
			if err := client.Call(context.Background(), "status", nil, &status); err != nil {
				return err
			}

			if jsonOutput {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(status)
			}

			fmt.Printf("records:  %d\n", status.Records)
			fmt.Printf("users:    %d\n", status.Users)
			fmt.Printf("upserts:  %d\n", status.Upserts)
			fmt.Printf("queries:  %d\n", status.Queries)
			fmt.Printf("uptime:   %ds\n", status.UptimeSeconds)
			return nil
		},
	}
}
