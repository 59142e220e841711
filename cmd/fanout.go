//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/mya15oct/stock-backend/internal/broadcast"
	"github.com/mya15oct/stock-backend/internal/config"
	"github.com/mya15oct/stock-backend/internal/fanout"
	"github.com/mya15oct/stock-backend/internal/logging"
)

// fanoutCmd runs the broadcast fan-out worker (C6): an independent
// consumer group that republishes trades and bars onto the capped
// Redis Streams. It auto-commits and exits immediately on shutdown,
// since duplicate delivery on restart is harmless (SPEC_FULL.md §5).
var fanoutCmd = &cobra.Command{
	Use:   "fanout",
	Short: "Republish trades and bars from the durable log onto the broadcast streams",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("fanout: load config: %w", err)
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr()})
		defer redisClient.Close()

		publisher := broadcast.NewPublisher(redisClient, cfg.RedisStreamMaxLen)
		worker := fanout.NewWorker([]string{cfg.KafkaBootstrapServers}, publisher)

		logging.Info(ctx, "fanout_starting", nil)
		return worker.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(fanoutCmd)
}
