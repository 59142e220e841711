//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

package backfill

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mya15oct/stock-backend/internal/logging"
)

// maxConcurrentChunks bounds how many vendor chunk requests run at
// once (SPEC_FULL.md §5).
const maxConcurrentChunks = 4

// Store is the subset of *store.DB Service needs. Determining which
// symbols are missing or stale is the caller's responsibility (see
// internal/query, which already holds the result of its own
// store.LatestEOD call and passes the missing subset straight through
// to Backfill).
type Store interface {
	UpsertEOD(ctx context.Context, symbol string, date time.Time, open, high, low, close, volume float64) error
}

// Vendor is the subset of *VendorClient Service needs.
type Vendor interface {
	FetchEODBars(ctx context.Context, symbols []string, date time.Time) (map[string]VendorBar, error)
}

// Archiver is the subset of *archive.Uploader Service needs. A nil
// Archiver disables archival (it is an optional, best-effort export).
type Archiver interface {
	ArchiveEOD(ctx context.Context, date time.Time, symbol string, bar VendorBar) error
}

// Service runs the auto-backfill algorithm: fetch the caller-supplied
// missing/stale symbols from the vendor in bounded-concurrency chunks,
// and upsert the result.
type Service struct {
	Store    Store
	Vendor   Vendor
	Archiver Archiver
}

// Backfill writes targetDate EOD rows for every symbol in missing that
// the vendor returns a bar for, and returns how many rows were written.
// Vendor, upsert and archival errors are logged and swallowed per
// symbol/chunk, so the returned error is always nil.
func (s *Service) Backfill(ctx context.Context, missing []string, targetDate time.Time) (int, error) {
	if len(missing) == 0 {
		return 0, nil
	}

	chunks := chunkSymbols(missing, maxChunkSize)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentChunks)

	var mu sync.Mutex
	written := 0

	for _, chunk := range chunks {
		chunk := chunk
		g.Go(func() error {
			bars, err := s.Vendor.FetchEODBars(gctx, chunk, targetDate)
			if err != nil {
				logging.Warn(gctx, "backfill_vendor_chunk_failed", map[string]any{
					"chunk_size": len(chunk), "error": err.Error(),
				})
				return nil
			}

			for symbol, bar := range bars {
				if err := s.Store.UpsertEOD(gctx, symbol, targetDate, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume); err != nil {
					logging.Warn(gctx, "backfill_upsert_failed", map[string]any{"symbol": symbol, "error": err.Error()})
					continue
				}

				mu.Lock()
				written++
				mu.Unlock()

				if s.Archiver != nil {
					if err := s.Archiver.ArchiveEOD(gctx, targetDate, symbol, bar); err != nil {
						logging.Warn(gctx, "backfill_archive_failed", map[string]any{"symbol": symbol, "error": err.Error()})
					}
				}
			}

			return nil
		})
	}

	// errgroup.Wait only returns non-nil if a Go func returned a
	// non-nil error, which this loop never does (failures are
	// swallowed per-chunk above), so the error is always nil here.
	_ = g.Wait()

	return written, nil
}

// chunkSymbols splits symbols into groups of at most size entries.
func chunkSymbols(symbols []string, size int) [][]string {
	var chunks [][]string
	for i := 0; i < len(symbols); i += size {
		end := i + size
		if end > len(symbols) {
			end = len(symbols)
		}
		chunks = append(chunks, symbols[i:end])
	}
	return chunks
}
