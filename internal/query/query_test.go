//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mya15oct/stock-backend/internal/broadcast"
	"github.com/mya15oct/stock-backend/internal/marketdata"
	"github.com/mya15oct/stock-backend/internal/store"
	"github.com/mya15oct/stock-backend/internal/validation"
)

// fakeRedis is an in-memory stand-in for broadcast.RedisCache, with no
// TTL expiry — good enough for exercising cache-hit/cache-miss behavior
// without a live Redis server.
type fakeRedis struct {
	values map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string)}
}

func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", errors.New("redis: nil")
	}
	return v, nil
}

func (f *fakeRedis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.values[key] = value
	return nil
}

type fakeStore struct {
	prices       map[string]float64
	closes       map[string]float64
	eod          map[string]store.EODRow
	volumes      map[string]float64
	volumeCalls  int
	candles      map[string][]marketdata.Bar
	history      map[string][]store.EODRow
	lastEODQuery []string
	lastDays     int
}

func (f *fakeStore) LastTradePrice(ctx context.Context, symbol string) (float64, bool, error) {
	p, ok := f.prices[symbol]
	return p, ok, nil
}

func (f *fakeStore) AccumulatedVolumes(ctx context.Context, symbols []string) (map[string]float64, error) {
	f.volumeCalls++
	out := map[string]float64{}
	for _, s := range symbols {
		if v, ok := f.volumes[s]; ok {
			out[s] = v
		}
	}
	return out, nil
}

func (f *fakeStore) PreviousCloses(ctx context.Context, symbols []string) (map[string]float64, error) {
	out := map[string]float64{}
	for _, s := range symbols {
		if v, ok := f.closes[s]; ok {
			out[s] = v
		}
	}
	return out, nil
}

func (f *fakeStore) LatestEOD(ctx context.Context, symbols []string, targetDate time.Time) (map[string]store.EODRow, []string, error) {
	f.lastEODQuery = symbols
	found := map[string]store.EODRow{}
	var missing []string
	for _, s := range symbols {
		if row, ok := f.eod[s]; ok {
			found[s] = row
		} else {
			missing = append(missing, s)
		}
	}
	return found, missing, nil
}

func (f *fakeStore) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]marketdata.Bar, error) {
	return f.candles[symbol], nil
}

func (f *fakeStore) PriceHistory(ctx context.Context, symbol string, days int) ([]store.EODRow, error) {
	f.lastDays = days
	return f.history[symbol], nil
}

type fakeBackfiller struct {
	calls   [][]string
	writeOn map[string]store.EODRow
	target  *fakeStore
}

func (f *fakeBackfiller) Backfill(ctx context.Context, missing []string, targetDate time.Time) (int, error) {
	f.calls = append(f.calls, missing)
	for _, sym := range missing {
		if row, ok := f.writeOn[sym]; ok {
			f.target.eod[sym] = row
		}
	}
	return len(missing), nil
}

func newService(fs *fakeStore, bf Backfiller) *Service {
	cache := newFakeRedis()
	return &Service{
		Store:       fs,
		Backfiller:  bf,
		VolumeCache: broadcast.NewVolumeCache(cache),
		CandleCache: broadcast.NewCandleCache(cache),
		Now:         func() time.Time { return time.Date(2026, 2, 16, 12, 0, 0, 0, time.UTC) },
	}
}

func TestGetQuoteUnknownSymbolReturnsNil(t *testing.T) {
	fs := &fakeStore{prices: map[string]float64{}}
	svc := newService(fs, nil)

	quote, err := svc.GetQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote != nil {
		t.Errorf("expected nil quote for unknown symbol, got %+v", quote)
	}
}

func TestGetQuoteComputesChangeAndPercent(t *testing.T) {
	fs := &fakeStore{
		prices: map[string]float64{"AAPL": 110},
		closes: map[string]float64{"AAPL": 100},
	}
	svc := newService(fs, nil)

	quote, err := svc.GetQuote(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote == nil {
		t.Fatalf("expected non-nil quote")
	}
	if quote.Symbol != "AAPL" {
		t.Errorf("expected normalized symbol AAPL, got %s", quote.Symbol)
	}
	if quote.Change != 10 {
		t.Errorf("expected change 10, got %v", quote.Change)
	}
	if quote.PercentChange != 10 {
		t.Errorf("expected percent change 10, got %v", quote.PercentChange)
	}
	if quote.PE != nil || quote.EPS != nil {
		t.Errorf("expected nil PE/EPS, got %v, %v", quote.PE, quote.EPS)
	}
}

func TestGetQuoteInvalidSymbol(t *testing.T) {
	svc := newService(&fakeStore{}, nil)
	if _, err := svc.GetQuote(context.Background(), "bad$"); err == nil {
		t.Fatalf("expected validation error")
	} else if _, ok := err.(*validation.Error); !ok {
		t.Errorf("expected *validation.Error, got %T", err)
	}
}

func TestGetPreviousClosesBatchEmptyInput(t *testing.T) {
	svc := newService(&fakeStore{}, nil)
	got, err := svc.GetPreviousClosesBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty map, got %v", got)
	}
}

func TestGetLatestEODBatchTriggersBackfillForMissing(t *testing.T) {
	fs := &fakeStore{eod: map[string]store.EODRow{
		"AAPL": {Symbol: "AAPL", Close: 150},
	}}
	bf := &fakeBackfiller{target: fs, writeOn: map[string]store.EODRow{
		"MSFT": {Symbol: "MSFT", Close: 300},
	}}
	svc := newService(fs, bf)

	got, err := svc.GetLatestEODBatch(context.Background(), []string{"AAPL", "MSFT"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(bf.calls) != 1 || len(bf.calls[0]) != 1 || bf.calls[0][0] != "MSFT" {
		t.Fatalf("expected backfill called once for [MSFT], got %v", bf.calls)
	}

	if got["AAPL"].Close != 150 {
		t.Errorf("expected AAPL close 150, got %v", got["AAPL"])
	}
	if got["MSFT"].Close != 300 {
		t.Errorf("expected MSFT close 300 after backfill, got %v", got["MSFT"])
	}
}

func TestGetAccumulatedVolumesUsesCache(t *testing.T) {
	fs := &fakeStore{volumes: map[string]float64{"AAPL": 1000}}
	svc := newService(fs, nil)

	got, err := svc.GetAccumulatedVolumes(context.Background(), []string{"AAPL"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["AAPL"] != 1000 {
		t.Errorf("expected 1000, got %v", got["AAPL"])
	}
	if fs.volumeCalls != 1 {
		t.Errorf("expected 1 store call, got %d", fs.volumeCalls)
	}

	// Second call within the TTL window should be served from cache.
	if _, err := svc.GetAccumulatedVolumes(context.Background(), []string{"AAPL"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fs.volumeCalls != 1 {
		t.Errorf("expected cache hit to avoid a second store call, got %d calls", fs.volumeCalls)
	}
}

func TestGetPriceHistoryMapsPeriodToDays(t *testing.T) {
	fs := &fakeStore{history: map[string][]store.EODRow{
		"AAPL": {{Symbol: "AAPL", Close: 150}},
	}}
	svc := newService(fs, nil)

	got, err := svc.GetPriceHistory(context.Background(), "AAPL", "5d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 row, got %d", len(got))
	}
	if fs.lastDays != 5 {
		t.Errorf("expected period 5d to map to 5 days, got %d", fs.lastDays)
	}
}

func TestGetCandlesCachesResult(t *testing.T) {
	fs := &fakeStore{candles: map[string][]marketdata.Bar{
		"AAPL": {{Symbol: "AAPL", Close: 150}},
	}}
	svc := newService(fs, nil)

	bars, err := svc.GetCandles(context.Background(), "AAPL", "1m", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}

	// With the store emptied, a repeat call must be served from cache.
	fs.candles = nil
	bars, err = svc.GetCandles(context.Background(), "AAPL", "1m", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 1 {
		t.Errorf("expected cached 1 bar, got %d", len(bars))
	}
}
