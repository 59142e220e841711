//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

// Package store is the relational store (C3): the PostgreSQL-backed
// symbol registry, realtime trade/bar tables, and EOD price table, and
// the queries the worker and query layers read and write them through.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps a pooled PostgreSQL connection.
type DB struct {
	*sql.DB
}

// Connect opens a pooled connection to PostgreSQL via pgx's
// database/sql driver, retrying with a fixed delay up to
// cfg.RetryAttempts times before giving up. It pings the connection
// before returning to fail fast on misconfiguration.
func Connect(ctx context.Context, cfg Config) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	var pingErr error
	for attempt := 1; attempt <= cfg.RetryAttempts; attempt++ {
		pingErr = sqlDB.PingContext(ctx)
		if pingErr == nil {
			return &DB{sqlDB}, nil
		}

		if attempt == cfg.RetryAttempts {
			break
		}

		select {
		case <-ctx.Done():
			sqlDB.Close()
			return nil, ctx.Err()
		case <-time.After(cfg.RetryDelay):
		}
	}

	sqlDB.Close()
	return nil, fmt.Errorf("store: connect after %d attempts: %w", cfg.RetryAttempts, pingErr)
}

// HealthCheck pings the database with a bounded timeout, independent
// of the caller's own context deadline.
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}
