//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

// Package retry implements the shared retry/error helpers (C11): bounded
// exponential backoff for calls that should give up after a fixed
// number of attempts, and unbounded backoff for long-running reconnect
// loops that must keep trying until they succeed or the context is
// canceled.
package retry

import (
	"context"
	"time"

	"github.com/mya15oct/stock-backend/internal/logging"
)

// Config controls a backoff schedule: the delay doubles after each
// failed attempt, capped at MaxDelay.
type Config struct {
	MaxAttempts int // Do treats 0 as 1; Unbounded ignores it
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultConfig mirrors the bounded 3-attempt/1s-base backoff the
// pack's database connection helper uses for transient infrastructure
// calls (Kafka publish, Redis XADD, DB write).
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// Do runs fn, retrying on error up to cfg.MaxAttempts times with
// exponential backoff. It returns the last error if every attempt
// fails, or ctx.Err() if the context is canceled before an attempt or
// during a backoff wait. A MaxAttempts of 0 is treated as 1 (a single
// attempt, no retry).
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	delay := cfg.BaseDelay

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == attempts {
			break
		}

		if err := sleep(ctx, delay); err != nil {
			return err
		}
		delay = nextDelay(delay, cfg.MaxDelay)
	}

	return lastErr
}

// Unbounded retries fn indefinitely with exponential backoff until it
// succeeds or ctx is canceled. It is used by ingest's WebSocket
// reconnect loop, which must keep trying rather than give up.
func Unbounded(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	delay := cfg.BaseDelay
	if delay <= 0 {
		delay = 1 * time.Second
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := fn(ctx); err == nil {
			return nil
		}

		if err := sleep(ctx, delay); err != nil {
			return err
		}
		delay = nextDelay(delay, cfg.MaxDelay)
	}
}

// safeCall runs fn, logging and swallowing any error rather than
// propagating it to the caller. It mirrors original_source's
// safe_db_call/safe_kafka_call/safe_redis_call: a thin wrapper around an
// outer worker loop's infrastructure calls so one transient failure logs
// and moves on instead of killing the loop. component names which
// dependency failed (db, kafka, redis) for the log event.
func safeCall(ctx context.Context, component, op string, fn func(ctx context.Context) error) bool {
	if err := fn(ctx); err != nil {
		logging.Error(ctx, "safe_"+component+"_call_failed", map[string]any{
			"op": op, "error": err.Error(),
		})
		return false
	}
	return true
}

// SafeDBCall runs fn against the relational store, logging and
// swallowing any error. It returns false when fn failed so callers can
// skip dependent work (e.g. a commit) without the outer loop exiting.
func SafeDBCall(ctx context.Context, op string, fn func(ctx context.Context) error) bool {
	return safeCall(ctx, "db", op, fn)
}

// SafeKafkaCall runs fn against the durable log (fetch, commit, publish,
// close), logging and swallowing any error.
func SafeKafkaCall(ctx context.Context, op string, fn func(ctx context.Context) error) bool {
	return safeCall(ctx, "kafka", op, fn)
}

// SafeRedisCall runs fn against the broadcast stream store, logging and
// swallowing any error.
func SafeRedisCall(ctx context.Context, op string, fn func(ctx context.Context) error) bool {
	return safeCall(ctx, "redis", op, fn)
}

func nextDelay(current, max time.Duration) time.Duration {
	next := current * 2
	if max > 0 && next > max {
		return max
	}
	return next
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
