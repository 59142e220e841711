//
// Date: 2026-02-14
// Copyright (c) 2026. All rights reserved.
//

package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the stockstream service processes.
// Each of ingest/persist/fanout/serve is a subcommand rather than a
// standalone binary, matching the teacher's single-CLI layout.
var rootCmd = &cobra.Command{
	Use:   "stockstream",
	Short: "Realtime equity market data ingest, persistence, and query processes",
	Long:  "stockstream ingests realtime trades and bars from an upstream feed, durably logs them, persists and broadcasts them, and serves query endpoints over HTTP.",
}

// Execute runs the root command and exits with a non-zero status code
// if any error occurs during command execution.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// init loads environment variables from a .env file, if present,
// before any subcommand runs.
func init() {
	cobra.OnInitialize(loadEnv)
}

// loadEnv attempts to load environment variables from a .env file in
// the current working directory. Errors are silently ignored since the
// .env file is optional.
func loadEnv() {
	_ = godotenv.Load()
}
