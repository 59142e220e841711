//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/mya15oct/stock-backend/internal/archive"
	"github.com/mya15oct/stock-backend/internal/backfill"
	"github.com/mya15oct/stock-backend/internal/broadcast"
	"github.com/mya15oct/stock-backend/internal/config"
	"github.com/mya15oct/stock-backend/internal/httpapi"
	"github.com/mya15oct/stock-backend/internal/logging"
	"github.com/mya15oct/stock-backend/internal/query"
	"github.com/mya15oct/stock-backend/internal/store"
)

var servePort string

// serveCmd runs the query HTTP surface (C9): a stateless read layer
// over the relational store, the broadcast cache facets, and (for
// stale EOD data) the auto-backfill service.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the quote, EOD, volume, and candle query endpoints over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("serve: load config: %w", err)
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		storeCfg := store.DefaultConfig()
		storeCfg.DSN = cfg.DSN()
		db, err := store.Connect(ctx, storeCfg)
		if err != nil {
			return fmt.Errorf("serve: connect store: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("serve: migrate: %w", err)
		}

		backfillSvc := &backfill.Service{
			Store:  db,
			Vendor: backfill.NewVendorClient(cfg.EODVendorBaseURL, cfg.EODVendorAPIKey),
		}
		if cfg.EODArchiveBucket != "" {
			backfillSvc.Archiver = archive.NewUploader(cfg.EODArchiveS3AccessKey, cfg.EODArchiveS3SecretKey, cfg.EODArchiveS3Endpoint, cfg.EODArchiveBucket)
		}

		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr()})
		defer redisClient.Close()
		cache := broadcast.WrapRedisClient(redisClient)

		querySvc := &query.Service{
			Store:       db,
			Backfiller:  backfillSvc,
			VolumeCache: broadcast.NewVolumeCache(cache),
			CandleCache: broadcast.NewCandleCache(cache),
		}

		mux := http.NewServeMux()
		httpapi.NewServer(querySvc).Routes(mux)

		server := &http.Server{
			Addr:    ":" + servePort,
			Handler: httpapi.CORS(cfg.AllowedOrigins, mux),
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			server.Shutdown(shutdownCtx)
		}()

		logging.Info(ctx, "serve_starting", map[string]any{"port": servePort})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "HTTP port to listen on")
	rootCmd.AddCommand(serveCmd)
}
