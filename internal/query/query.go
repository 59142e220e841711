//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

// Package query implements the query contracts (C9): stateless read
// operations over the relational store, the broadcast cache facets,
// and (for stale EOD data) the auto-backfill service.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mya15oct/stock-backend/internal/broadcast"
	"github.com/mya15oct/stock-backend/internal/calendar"
	"github.com/mya15oct/stock-backend/internal/marketdata"
	"github.com/mya15oct/stock-backend/internal/store"
	"github.com/mya15oct/stock-backend/internal/validation"
)

// Store is the subset of *store.DB the query layer reads through.
type Store interface {
	LastTradePrice(ctx context.Context, symbol string) (float64, bool, error)
	AccumulatedVolumes(ctx context.Context, symbols []string) (map[string]float64, error)
	PreviousCloses(ctx context.Context, symbols []string) (map[string]float64, error)
	LatestEOD(ctx context.Context, symbols []string, targetDate time.Time) (map[string]store.EODRow, []string, error)
	Candles(ctx context.Context, symbol, timeframe string, limit int) ([]marketdata.Bar, error)
	PriceHistory(ctx context.Context, symbol string, days int) ([]store.EODRow, error)
}

// Backfiller is the subset of *backfill.Service the query layer
// invokes when get_latest_eod_batch finds stale or missing rows.
type Backfiller interface {
	Backfill(ctx context.Context, missing []string, targetDate time.Time) (int, error)
}

// Service wires the store, caches, and backfiller into the C9 contract
// functions.
type Service struct {
	Store       Store
	Backfiller  Backfiller
	VolumeCache *broadcast.VolumeCache
	CandleCache *broadcast.CandleCache

	// Now defaults to time.Now when nil; overridable for tests.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Quote is the result of GetQuote. PE and EPS are nil when unknown;
// this implementation never fabricates a placeholder value for them
// (SPEC_FULL.md §9, decision 2).
type Quote struct {
	Symbol        string
	Price         float64
	PreviousClose float64
	Change        float64
	PercentChange float64
	PE            *float64
	EPS           *float64
}

// GetQuote returns the latest trade price for symbol alongside its
// most recent EOD close. Returns a *validation.Error for an invalid
// symbol.
func (s *Service) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	sym, err := validation.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	price, ok, err := s.Store.LastTradePrice(ctx, sym)
	if err != nil {
		return nil, fmt.Errorf("query: get_quote: %w", err)
	}
	if !ok {
		return nil, nil
	}

	closes, err := s.Store.PreviousCloses(ctx, []string{sym})
	if err != nil {
		return nil, fmt.Errorf("query: get_quote: %w", err)
	}

	quote := &Quote{Symbol: sym, Price: price}
	if prevClose, ok := closes[sym]; ok {
		quote.PreviousClose = prevClose
		quote.Change = price - prevClose
		if prevClose != 0 {
			quote.PercentChange = roundTo2((price - prevClose) / prevClose * 100)
		}
	}

	return quote, nil
}

// GetPreviousClosesBatch returns the most recent EOD close for every
// valid symbol in symbols. Unknown symbols are simply absent from the
// result; an empty input returns an empty map, never an error.
func (s *Service) GetPreviousClosesBatch(ctx context.Context, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	normalized, err := validation.NormalizeSymbols(symbols)
	if err != nil {
		return nil, err
	}

	closes, err := s.Store.PreviousCloses(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("query: get_previous_closes_batch: %w", err)
	}
	return closes, nil
}

// EODResult is a single symbol's end-of-day price, with the internal
// trading_date field stripped before it ever reaches the caller (only
// used internally to detect staleness).
type EODResult struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	PctChange float64
}

// GetLatestEODBatch returns the latest EOD row for every valid symbol
// in symbols. Any symbol missing or stale for the current latest
// trading date triggers an auto-backfill run before the final result
// is assembled.
func (s *Service) GetLatestEODBatch(ctx context.Context, symbols []string) (map[string]EODResult, error) {
	if len(symbols) == 0 {
		return map[string]EODResult{}, nil
	}

	normalized, err := validation.NormalizeSymbols(symbols)
	if err != nil {
		return nil, err
	}

	targetDate, err := calendar.LatestTradingDate(s.now())
	if err != nil {
		return nil, fmt.Errorf("query: get_latest_eod_batch: %w", err)
	}

	found, missing, err := s.Store.LatestEOD(ctx, normalized, targetDate)
	if err != nil {
		return nil, fmt.Errorf("query: get_latest_eod_batch: %w", err)
	}

	if len(missing) > 0 && s.Backfiller != nil {
		if _, err := s.Backfiller.Backfill(ctx, missing, targetDate); err != nil {
			return nil, fmt.Errorf("query: get_latest_eod_batch backfill: %w", err)
		}

		refreshed, _, err := s.Store.LatestEOD(ctx, missing, targetDate)
		if err != nil {
			return nil, fmt.Errorf("query: get_latest_eod_batch refresh: %w", err)
		}
		for symbol, row := range refreshed {
			found[symbol] = row
		}
	}

	results := make(map[string]EODResult, len(found))
	for symbol, row := range found {
		results[symbol] = EODResult{
			Open: row.Open, High: row.High, Low: row.Low,
			Close: row.Close, Volume: row.Volume, PctChange: row.PctChange,
		}
	}
	return results, nil
}

// GetAccumulatedVolumes returns the lifetime cumulative trade volume
// for every valid symbol in symbols, served through a 2-second TTL
// cache in front of the relational store. Per SPEC_FULL.md §9, this is
// always the cumulative volume column, never a single trade's size.
func (s *Service) GetAccumulatedVolumes(ctx context.Context, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	normalized, err := validation.NormalizeSymbols(symbols)
	if err != nil {
		return nil, err
	}

	result := make(map[string]float64, len(normalized))
	var uncached []string

	for _, sym := range normalized {
		if v, ok := s.VolumeCache.Get(ctx, sym); ok {
			result[sym] = v
		} else {
			uncached = append(uncached, sym)
		}
	}

	if len(uncached) > 0 {
		fresh, err := s.Store.AccumulatedVolumes(ctx, uncached)
		if err != nil {
			return nil, fmt.Errorf("query: get_accumulated_volumes: %w", err)
		}
		for _, sym := range uncached {
			v := fresh[sym]
			result[sym] = v
			s.VolumeCache.Set(ctx, sym, v)
		}
	}

	// A symbol with no trade history (or no registry row at all) never
	// appears in the store result; spec.md §4.6 requires it be reported
	// as 0.0 rather than omitted.
	for _, sym := range normalized {
		if _, ok := result[sym]; !ok {
			result[sym] = 0
		}
	}

	return result, nil
}

// GetCandles returns up to limit of the most recent bars for
// (symbol, timeframe), oldest first, served through the candle cache.
func (s *Service) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]marketdata.Bar, error) {
	sym, err := validation.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	cacheTimeframe := fmt.Sprintf("%s:%d", timeframe, limit)

	if cached, ok := s.CandleCache.Get(ctx, sym, cacheTimeframe); ok {
		var bars []marketdata.Bar
		if err := json.Unmarshal(cached, &bars); err == nil {
			return bars, nil
		}
	}

	bars, err := s.Store.Candles(ctx, sym, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("query: get_candles: %w", err)
	}

	if data, err := json.Marshal(bars); err == nil {
		s.CandleCache.Set(ctx, sym, cacheTimeframe, data)
	}

	return bars, nil
}

// periodDays maps a human period string to the number of trading days
// of EOD history to return.
var periodDays = map[string]int{
	"1d": 1, "5d": 5, "1m": 30, "3m": 90,
	"6m": 180, "ytd": 365, "1y": 365, "5y": 1825, "max": 3650,
}

// GetPriceHistory returns up to the period's mapped number of EOD rows
// for symbol, oldest first. An unrecognized period defaults to "1y".
func (s *Service) GetPriceHistory(ctx context.Context, symbol, period string) ([]store.EODRow, error) {
	sym, err := validation.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	days, ok := periodDays[period]
	if !ok {
		days = periodDays["1y"]
	}

	history, err := s.Store.PriceHistory(ctx, sym, days)
	if err != nil {
		return nil, fmt.Errorf("query: get_price_history: %w", err)
	}
	return history, nil
}

func roundTo2(v float64) float64 {
	scaled := v * 100
	if scaled >= 0 {
		return float64(int64(scaled+0.5)) / 100
	}
	return float64(int64(scaled-0.5)) / 100
}
