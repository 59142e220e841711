//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mya15oct/stock-backend/internal/config"
	"github.com/mya15oct/stock-backend/internal/logging"
	"github.com/mya15oct/stock-backend/internal/persist"
	"github.com/mya15oct/stock-backend/internal/store"
)

// persistCmd runs the persistence worker (C5): the single consumer
// group that writes every trade and bar to PostgreSQL and commits its
// Kafka offset only after a successful write. On shutdown it finishes
// its in-flight transaction before returning (SPEC_FULL.md §5).
var persistCmd = &cobra.Command{
	Use:   "persist",
	Short: "Persist realtime trades and bars from the durable log to PostgreSQL",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("persist: load config: %w", err)
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		storeCfg := store.DefaultConfig()
		storeCfg.DSN = cfg.DSN()
		db, err := store.Connect(ctx, storeCfg)
		if err != nil {
			return fmt.Errorf("persist: connect store: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("persist: migrate: %w", err)
		}

		worker, err := persist.NewWorker([]string{cfg.KafkaBootstrapServers}, db, cfg.KafkaEnableAutoCommit)
		if err != nil {
			return fmt.Errorf("persist: %w", err)
		}

		logging.Info(ctx, "persist_starting", nil)
		return worker.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(persistCmd)
}
