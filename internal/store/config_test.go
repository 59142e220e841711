//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

package store

import "testing"

func TestConfigValidateRejectsEmptyDSN(t *testing.T) {
	cfg := Config{}
	if err := cfg.Validate(); err != ErrInvalidDSN {
		t.Fatalf("expected ErrInvalidDSN, got %v", err)
	}
}

func TestConfigValidateFillsDefaults(t *testing.T) {
	cfg := Config{DSN: "postgres://localhost/test"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	def := DefaultConfig()
	if cfg.MaxOpenConns != def.MaxOpenConns {
		t.Errorf("expected MaxOpenConns %d, got %d", def.MaxOpenConns, cfg.MaxOpenConns)
	}
	if cfg.RetryAttempts != def.RetryAttempts {
		t.Errorf("expected RetryAttempts %d, got %d", def.RetryAttempts, cfg.RetryAttempts)
	}
}

func TestConfigValidatePreservesExplicitValues(t *testing.T) {
	cfg := Config{DSN: "postgres://localhost/test", MaxOpenConns: 50, RetryAttempts: 7}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxOpenConns != 50 {
		t.Errorf("expected MaxOpenConns to stay 50, got %d", cfg.MaxOpenConns)
	}
	if cfg.RetryAttempts != 7 {
		t.Errorf("expected RetryAttempts to stay 7, got %d", cfg.RetryAttempts)
	}
}
