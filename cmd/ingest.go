//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mya15oct/stock-backend/internal/config"
	"github.com/mya15oct/stock-backend/internal/ingest"
	"github.com/mya15oct/stock-backend/internal/logging"
	"github.com/mya15oct/stock-backend/internal/streamlog"
	"github.com/mya15oct/stock-backend/internal/validation"
)

var ingestSymbols string

// ingestCmd runs the ingest producer (C4): it connects to the upstream
// realtime feed, subscribes to the configured symbol set, and
// republishes every trade and bar onto the durable log. On shutdown it
// drops any in-flight message (SPEC_FULL.md §5).
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Stream realtime trades and bars into the durable log",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("ingest: load config: %w", err)
		}

		symbols, err := validation.ParseSymbolsCSV(ingestSymbols)
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		tradesProducer := streamlog.NewProducer([]string{cfg.KafkaBootstrapServers}, streamlog.TopicTrades)
		defer tradesProducer.Close()
		barsProducer := streamlog.NewProducer([]string{cfg.KafkaBootstrapServers}, streamlog.TopicBars)
		defer barsProducer.Close()

		producer := &ingest.Producer{
			BaseURL: cfg.AlpacaBaseURL,
			APIKey:  cfg.AlpacaAPIKey,
			Secret:  cfg.AlpacaSecretKey,
			Trades:  tradesProducer,
			Bars:    barsProducer,
		}

		logging.Info(ctx, "ingest_starting", map[string]any{"symbols": len(symbols)})
		return producer.Run(ctx, symbols)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSymbols, "symbols", "", "comma-separated symbol list to subscribe to")
	ingestCmd.MarkFlagRequired("symbols")
	rootCmd.AddCommand(ingestCmd)
}
