//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

package backfill

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeStore struct {
	mu      sync.Mutex
	upserts map[string]VendorBar
	failOn  string
}

func newFakeStore() *fakeStore {
	return &fakeStore{upserts: map[string]VendorBar{}}
}

func (f *fakeStore) UpsertEOD(ctx context.Context, symbol string, date time.Time, open, high, low, close, volume float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn == symbol {
		return errors.New("simulated upsert failure")
	}
	f.upserts[symbol] = VendorBar{Open: open, High: high, Low: low, Close: close, Volume: volume}
	return nil
}

type fakeVendor struct {
	mu      sync.Mutex
	calls   [][]string
	bars    map[string]VendorBar
	failFor string
}

func (f *fakeVendor) FetchEODBars(ctx context.Context, symbols []string, date time.Time) (map[string]VendorBar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, symbols)

	for _, s := range symbols {
		if s == f.failFor {
			return nil, errors.New("simulated vendor failure")
		}
	}

	out := map[string]VendorBar{}
	for _, s := range symbols {
		if bar, ok := f.bars[s]; ok {
			out[s] = bar
		}
	}
	return out, nil
}

func TestBackfillWritesAllMissingSymbols(t *testing.T) {
	store := newFakeStore()
	vendor := &fakeVendor{bars: map[string]VendorBar{
		"AAPL": {Open: 150, Close: 152},
		"MSFT": {Open: 300, Close: 298},
	}}

	svc := &Service{Store: store, Vendor: vendor}

	written, err := svc.Backfill(context.Background(), []string{"AAPL", "MSFT"}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if written != 2 {
		t.Errorf("expected 2 rows written, got %d", written)
	}

	if _, ok := store.upserts["AAPL"]; !ok {
		t.Errorf("expected AAPL to be upserted")
	}
	if _, ok := store.upserts["MSFT"]; !ok {
		t.Errorf("expected MSFT to be upserted")
	}
}

func TestBackfillChunksAt200Symbols(t *testing.T) {
	symbols := make([]string, 450)
	bars := map[string]VendorBar{}
	for i := range symbols {
		symbols[i] = "SYM" + string(rune('A'+i%26))
		bars[symbols[i]] = VendorBar{Open: 1, Close: 1}
	}

	store := newFakeStore()
	vendor := &fakeVendor{bars: bars}
	svc := &Service{Store: store, Vendor: vendor}

	if _, err := svc.Backfill(context.Background(), symbols, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	vendor.mu.Lock()
	defer vendor.mu.Unlock()
	if len(vendor.calls) != 3 {
		t.Fatalf("expected 3 chunk calls for 450 symbols, got %d", len(vendor.calls))
	}
	for _, call := range vendor.calls {
		if len(call) > maxChunkSize {
			t.Errorf("expected chunk size <= %d, got %d", maxChunkSize, len(call))
		}
	}
}

func TestBackfillSwallowsVendorErrorsAsPartialSuccess(t *testing.T) {
	store := newFakeStore()
	vendor := &fakeVendor{
		bars:    map[string]VendorBar{"AAPL": {Open: 1, Close: 2}},
		failFor: "BADSYM",
	}
	svc := &Service{Store: store, Vendor: vendor}

	// Two independent chunks: one fails entirely, the other succeeds.
	// The first chunk is AAPL plus symbols without a bar; BADSYM lands
	// alone in the second chunk, whose vendor call fails.
	symbols := []string{"AAPL"}
	for i := 1; i < maxChunkSize; i++ {
		symbols = append(symbols, fmt.Sprintf("NOBAR%d", i))
	}
	symbols = append(symbols, "BADSYM")

	written, err := svc.Backfill(context.Background(), symbols, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if written != 1 {
		t.Errorf("expected 1 row written, got %d", written)
	}
}

func TestBackfillNoMissingSymbolsIsNoop(t *testing.T) {
	svc := &Service{Store: newFakeStore(), Vendor: &fakeVendor{}}
	written, err := svc.Backfill(context.Background(), nil, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if written != 0 {
		t.Errorf("expected 0 rows written for empty input, got %d", written)
	}
}

func TestChunkSymbols(t *testing.T) {
	symbols := make([]string, 5)
	for i := range symbols {
		symbols[i] = "S"
	}

	chunks := chunkSymbols(symbols, 2)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 2 || len(chunks[1]) != 2 || len(chunks[2]) != 1 {
		t.Errorf("unexpected chunk sizes: %v", chunks)
	}
}
