//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

package store

import (
	"errors"
	"time"
)

// ErrInvalidDSN is returned when a Config has no DSN to connect with.
var ErrInvalidDSN = errors.New("store: DSN must not be empty")

// Config controls how Connect opens and pools the PostgreSQL
// connection, and how many times it retries the initial connection
// before giving up.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	RetryAttempts   int
	RetryDelay      time.Duration
}

// DefaultConfig returns conservative pool and retry defaults suitable
// for a single long-running worker process.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
		RetryAttempts:   3,
		RetryDelay:      1 * time.Second,
	}
}

// Validate fills in any zero-valued fields from DefaultConfig and
// returns ErrInvalidDSN if DSN is empty.
func (c *Config) Validate() error {
	if c.DSN == "" {
		return ErrInvalidDSN
	}

	def := DefaultConfig()
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = def.MaxOpenConns
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = def.MaxIdleConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = def.ConnMaxLifetime
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = def.ConnMaxIdleTime
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = def.RetryAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = def.RetryDelay
	}

	return nil
}
