//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mya15oct/stock-backend/internal/broadcast"
	"github.com/mya15oct/stock-backend/internal/marketdata"
	"github.com/mya15oct/stock-backend/internal/query"
	"github.com/mya15oct/stock-backend/internal/store"
)

// fakeRedis is an in-memory stand-in for broadcast.RedisCache.
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
	prices        map[string]float64
	closes        map[string]float64
	lastTimeframe string
	lastLimit     int
}

func (f *fakeStore) LastTradePrice(ctx context.Context, symbol string) (float64, bool, error) {
	p, ok := f.prices[symbol]
	return p, ok, nil
}

func (f *fakeStore) AccumulatedVolumes(ctx context.Context, symbols []string) (map[string]float64, error) {
	return map[string]float64{}, nil
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
	return map[string]store.EODRow{}, nil, nil
}

func (f *fakeStore) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]marketdata.Bar, error) {
	f.lastTimeframe = timeframe
	f.lastLimit = limit
	return []marketdata.Bar{{Symbol: symbol, Close: 1}}, nil
}

func (f *fakeStore) PriceHistory(ctx context.Context, symbol string, days int) ([]store.EODRow, error) {
	return []store.EODRow{{Symbol: symbol}}, nil
}

func newTestServer() *Server {
	cache := newFakeRedis()
	svc := &query.Service{
		Store:       &fakeStore{prices: map[string]float64{"AAPL": 110}, closes: map[string]float64{"AAPL": 100}},
		VolumeCache: broadcast.NewVolumeCache(cache),
		CandleCache: broadcast.NewCandleCache(cache),
	}
	return NewServer(svc)
}

func TestHandleQuoteFound(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/quote?symbol=AAPL", nil)
	rec := httptest.NewRecorder()

	s.handleQuote(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if got["Symbol"] != "AAPL" {
		t.Errorf("expected symbol AAPL, got %v", got["Symbol"])
	}
}

func TestHandleQuoteNotFound(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/quote?symbol=MSFT", nil)
	rec := httptest.NewRecorder()

	s.handleQuote(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleQuoteInvalidSymbol(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/quote?symbol=bad$", nil)
	rec := httptest.NewRecorder()

	s.handleQuote(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleCandlesDefaultsAndCapsLimit(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/candles?symbol=AAPL&limit=5000", nil)
	rec := httptest.NewRecorder()

	s.handleCandles(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	fs := s.Query.Store.(*fakeStore)
	if fs.lastTimeframe != "1m" {
		t.Errorf("expected default timeframe 1m, got %q", fs.lastTimeframe)
	}
	if fs.lastLimit != 1000 {
		t.Errorf("expected limit capped at 1000, got %d", fs.lastLimit)
	}
}

func TestHandleCandlesRejectsBadLimit(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/candles?symbol=AAPL&limit=notanumber", nil)
	rec := httptest.NewRecorder()

	s.handleCandles(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCORSSetsAllowOriginForAllowedOrigin(t *testing.T) {
	handler := CORS([]string{"https://app.example.com"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("expected allow-origin header, got %q", got)
	}
}

func TestCORSOmitsHeaderForDisallowedOrigin(t *testing.T) {
	handler := CORS([]string{"https://app.example.com"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no allow-origin header, got %q", got)
	}
}
