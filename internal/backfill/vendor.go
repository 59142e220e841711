//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

// Package backfill is the EOD auto-backfill component (C8): EOD rows
// for the symbols a caller reports as missing or stale are fetched from
// an external vendor in bounded-concurrency chunks and upserted through
// the store, which computes a fresh percent change.
package backfill

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

// maxChunkSize is the largest symbol batch sent to the vendor in a
// single HTTP request.
const maxChunkSize = 200

// VendorBar is a single symbol's EOD OHLCV bar as returned by the
// vendor.
type VendorBar struct {
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
}

// vendorResponse is the vendor's batch payload: a list of bars per
// symbol.
type vendorResponse struct {
	Bars map[string][]VendorBar `json:"bars"`
}

// VendorClient fetches batched EOD bars from the configured vendor,
// wrapped in a circuit breaker so a degraded vendor stops being
// hammered by every backfill-triggering query.
type VendorClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

// NewVendorClient builds a VendorClient against baseURL, authenticated
// with apiKey. The breaker trips once at least 3 requests have been
// made and either the failure ratio reaches 60% or 5 consecutive
// requests have failed, mirroring the pack's shared circuit breaker
// defaults for an outbound dependency call.
func NewVendorClient(baseURL, apiKey string) *VendorClient {
	settings := gobreaker.Settings{
		Name:        "eod-vendor",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && (failureRatio >= 0.6 || counts.ConsecutiveFailures >= 5)
		},
	}

	return &VendorClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		breaker:    gobreaker.NewCircuitBreaker[[]byte](settings),
	}
}

// FetchEODBars requests EOD bars for symbols on date, keyed by symbol.
// When the vendor lists several bars for a symbol, the last one is
// used. Symbols the vendor has no bar for (e.g. a holiday, per
// SPEC_FULL.md §9's holiday-unaware stance) are simply absent from the
// result, not an error.
func (v *VendorClient) FetchEODBars(ctx context.Context, symbols []string, date time.Time) (map[string]VendorBar, error) {
	if len(symbols) > maxChunkSize {
		return nil, fmt.Errorf("backfill: chunk of %d symbols exceeds max %d", len(symbols), maxChunkSize)
	}

	body, err := v.breaker.Execute(func() ([]byte, error) {
		return v.doRequest(ctx, symbols, date)
	})
	if err != nil {
		return nil, fmt.Errorf("backfill: vendor request: %w", err)
	}

	var payload vendorResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("backfill: decode vendor response: %w", err)
	}

	bars := make(map[string]VendorBar, len(payload.Bars))
	for symbol, list := range payload.Bars {
		if len(list) > 0 {
			bars[symbol] = list[len(list)-1]
		}
	}
	return bars, nil
}

func (v *VendorClient) doRequest(ctx context.Context, symbols []string, date time.Time) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/v1/eod/batch", strings.TrimRight(v.baseURL, "/"))

	q := url.Values{}
	q.Set("symbols", strings.Join(symbols, ","))
	q.Set("date", date.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", v.apiKey)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vendor returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
