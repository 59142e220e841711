//
// Date: 2026-02-14
// Copyright (c) 2026. All rights reserved.
//

package cmd

import (
	"fmt"

	"github.com/mya15oct/stock-backend/internal/config"
	"github.com/spf13/cobra"
)

// configCmd is the parent command for configuration-related
// subcommands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the process configuration",
}

// configShowCmd loads Config from the environment and prints it with
// every secret masked, for operators to verify what a worker process
// would actually start with.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the current environment-derived configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		masked := cfg.Masked()
		fmt.Printf("DB:              %s:%d/%s (user=%s)\n", masked.DBHost, masked.DBPort, masked.DBName, masked.DBUser)
		fmt.Printf("DB Password:     %s\n", masked.DBPassword)
		fmt.Printf("Redis:           %s:%d\n", masked.RedisHost, masked.RedisPort)
		fmt.Printf("Redis Stream Max: %d\n", masked.RedisStreamMaxLen)
		fmt.Printf("Kafka Brokers:   %s\n", masked.KafkaBootstrapServers)
		fmt.Printf("Kafka Auto Commit: %t\n", masked.KafkaEnableAutoCommit)
		fmt.Printf("Alpaca Base URL: %s\n", masked.AlpacaBaseURL)
		fmt.Printf("Alpaca Key:      %s\n", masked.AlpacaAPIKey)
		fmt.Printf("Alpaca Secret:   %s\n", masked.AlpacaSecretKey)
		fmt.Printf("Allowed Origins: %v\n", masked.AllowedOrigins)
		fmt.Printf("EOD Vendor URL:  %s\n", masked.EODVendorBaseURL)
		fmt.Printf("EOD Vendor Key:  %s\n", masked.EODVendorAPIKey)
		fmt.Printf("EOD Archive Bucket: %s\n", masked.EODArchiveBucket)
		fmt.Printf("EOD Archive S3 Endpoint: %s\n", masked.EODArchiveS3Endpoint)
		fmt.Printf("EOD Archive S3 Access Key: %s\n", masked.EODArchiveS3AccessKey)
		fmt.Printf("EOD Archive S3 Secret Key: %s\n", masked.EODArchiveS3SecretKey)
		return nil
	},
}

// init registers the config subcommands with the root command.
func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
