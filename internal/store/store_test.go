//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

package store

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/mya15oct/stock-backend/internal/marketdata"
)

func trade(symbol string, price, size float64, ts time.Time) marketdata.Trade {
	raw, _ := json.Marshal(ts.Format(time.RFC3339Nano))
	return marketdata.Trade{Symbol: symbol, Price: price, Size: size, Timestamp: raw}
}

func TestRoundTo2(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{12.3, 12.3},
		{12.34, 12.34},
		{-12.34, -12.34},
		{0, 0},
	}

	for _, tc := range cases {
		if got := roundTo2(tc.in); got != tc.want {
			t.Errorf("roundTo2(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestPqStringArray(t *testing.T) {
	got := pqStringArray([]string{"AAPL", "MSFT"})
	want := `{"AAPL","MSFT"}`
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestPqStringArrayEmpty(t *testing.T) {
	if got := pqStringArray(nil); got != "{}" {
		t.Errorf("expected {}, got %s", got)
	}
}

// TestIntegrationWriteTradeCumulativeVolume exercises the cumulative
// volume invariant (P1/P2) against a real PostgreSQL instance. It is
// skipped unless STORE_TEST_DSN is set, since this package has no
// in-process fake for database/sql's driver interface.
func TestIntegrationWriteTradeCumulativeVolume(t *testing.T) {
	dsn := os.Getenv("STORE_TEST_DSN")
	if dsn == "" {
		t.Skip("STORE_TEST_DSN not set; skipping integration test")
	}

	ctx := context.Background()
	db, err := Connect(ctx, Config{DSN: dsn})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	sym := "ZZZTEST"
	ts := time.Now().UTC()

	if err := db.WriteTrade(ctx, trade(sym, 10, 5, ts)); err != nil {
		t.Fatalf("write first trade: %v", err)
	}
	if err := db.WriteTrade(ctx, trade(sym, 11, 3, ts.Add(time.Second))); err != nil {
		t.Fatalf("write second trade: %v", err)
	}

	volumes, err := db.AccumulatedVolumes(ctx, []string{sym})
	if err != nil {
		t.Fatalf("accumulated volumes: %v", err)
	}
	if volumes[sym] != 8 {
		t.Errorf("expected cumulative volume 8, got %v", volumes[sym])
	}

	// Replaying the first trade must be a no-op (idempotent replay, P3).
	if err := db.WriteTrade(ctx, trade(sym, 10, 5, ts)); err != nil {
		t.Fatalf("replay first trade: %v", err)
	}
	volumes, err = db.AccumulatedVolumes(ctx, []string{sym})
	if err != nil {
		t.Fatalf("accumulated volumes after replay: %v", err)
	}
	if volumes[sym] != 8 {
		t.Errorf("expected cumulative volume to stay 8 after replay, got %v", volumes[sym])
	}
}
