//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mya15oct/stock-backend/internal/logging"
	"github.com/mya15oct/stock-backend/internal/marketdata"
)

// EODRow is a single end-of-day price record.
type EODRow struct {
	Symbol      string
	TradingDate time.Time
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
	PctChange   float64
}

// ResolveOrCreateStockID returns the stock_id for symbol, inserting a
// new registry row if one does not already exist. Concurrent callers
// racing to insert the same new symbol are resolved via ON CONFLICT DO
// NOTHING followed by a re-SELECT, matching the original writer's
// get_or_create behavior.
func (db *DB) ResolveOrCreateStockID(ctx context.Context, symbol string) (int64, error) {
	if id, ok, err := db.lookupStockID(ctx, symbol); err != nil {
		return 0, err
	} else if ok {
		return id, nil
	}

	var id int64
	err := db.QueryRowContext(ctx,
		`INSERT INTO stocks (symbol, exchange) VALUES ($1, $2) ON CONFLICT (symbol) DO NOTHING RETURNING stock_id`,
		symbol, defaultExchange,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("store: insert stock %s: %w", symbol, err)
	}

	// Another writer won the race; the row now exists.
	if id, ok, err := db.lookupStockID(ctx, symbol); err != nil {
		return 0, err
	} else if ok {
		return id, nil
	}

	return 0, fmt.Errorf("store: stock %s not found after insert race", symbol)
}

// defaultExchange is assigned to a registry row created on the fly
// (backfill's auto-created symbols have no other exchange signal
// available). spec.md §4.5 step 3.
const defaultExchange = "NASDAQ"

func (db *DB) lookupStockID(ctx context.Context, symbol string) (int64, bool, error) {
	var id int64
	err := db.QueryRowContext(ctx, `SELECT stock_id FROM stocks WHERE symbol = $1`, symbol).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("store: lookup stock %s: %w", symbol, err)
	}
	return id, true, nil
}

// WriteTrade persists a single trade, maintaining the lifetime
// cumulative-volume invariant: the new row's volume is the previous
// row's volume plus this trade's size. The previous volume is read and
// the new row inserted within a single transaction, and the insert is
// idempotent under replay via ON CONFLICT (stock_id, ts) DO NOTHING.
func (db *DB) WriteTrade(ctx context.Context, trade marketdata.Trade) error {
	ts, fellBack := marketdata.ParseTimestamp(trade.Timestamp, time.Now())
	if fellBack {
		logging.Warn(ctx, "store_timestamp_fallback", map[string]any{"symbol": trade.Symbol})
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin write trade: %w", err)
	}
	defer tx.Rollback()

	stockID, err := db.resolveOrCreateStockIDTx(ctx, tx, trade.Symbol)
	if err != nil {
		return err
	}

	var previousVolume float64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(volume, 0) FROM stock_trades_realtime
		 WHERE stock_id = $1 ORDER BY ts DESC, trade_id DESC LIMIT 1`,
		stockID,
	).Scan(&previousVolume)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("store: read previous volume for %s: %w", trade.Symbol, err)
	}

	accumulatedVolume := previousVolume + trade.Size

	_, err = tx.ExecContext(ctx,
		`INSERT INTO stock_trades_realtime (stock_id, ts, price, size, volume)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (stock_id, ts) DO NOTHING`,
		stockID, ts, trade.Price, trade.Size, accumulatedVolume,
	)
	if err != nil {
		return fmt.Errorf("store: insert trade for %s: %w", trade.Symbol, err)
	}

	return tx.Commit()
}

// WriteBar upserts a single bar, overwriting any existing row for the
// same (stock_id, ts, timeframe) with the latest revision's OHLCV
// values (last-write-wins).
func (db *DB) WriteBar(ctx context.Context, bar marketdata.Bar) error {
	ts, fellBack := marketdata.ParseTimestamp(bar.Timestamp, time.Now())
	if fellBack {
		logging.Warn(ctx, "store_timestamp_fallback", map[string]any{"symbol": bar.Symbol})
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin write bar: %w", err)
	}
	defer tx.Rollback()

	stockID, err := db.resolveOrCreateStockIDTx(ctx, tx, bar.Symbol)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO stock_bars_staging
			(stock_id, timeframe, ts, open, high, low, close, volume, trade_count, vwap)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (stock_id, ts, timeframe) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			trade_count = EXCLUDED.trade_count,
			vwap = EXCLUDED.vwap`,
		stockID, bar.Timeframe, ts, bar.Open, bar.High, bar.Low, bar.Close,
		bar.Volume, bar.TradeCount, bar.VWAP,
	)
	if err != nil {
		return fmt.Errorf("store: upsert bar for %s: %w", bar.Symbol, err)
	}

	return tx.Commit()
}

// resolveOrCreateStockIDTx is ResolveOrCreateStockID's body run within
// an existing transaction, so WriteTrade/WriteBar see a consistent
// view of the registry alongside their own insert.
func (db *DB) resolveOrCreateStockIDTx(ctx context.Context, tx *sql.Tx, symbol string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT stock_id FROM stocks WHERE symbol = $1`, symbol).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("store: lookup stock %s: %w", symbol, err)
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO stocks (symbol, exchange) VALUES ($1, $2) ON CONFLICT (symbol) DO NOTHING RETURNING stock_id`,
		symbol, defaultExchange,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("store: insert stock %s: %w", symbol, err)
	}

	err = tx.QueryRowContext(ctx, `SELECT stock_id FROM stocks WHERE symbol = $1`, symbol).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: stock %s not found after insert race: %w", symbol, err)
	}
	return id, nil
}

// LastTradePrice returns the most recent trade price for symbol.
func (db *DB) LastTradePrice(ctx context.Context, symbol string) (float64, bool, error) {
	var price float64
	err := db.QueryRowContext(ctx,
		`SELECT t.price FROM stock_trades_realtime t
		 JOIN stocks s ON s.stock_id = t.stock_id
		 WHERE s.symbol = $1
		 ORDER BY t.ts DESC, t.trade_id DESC LIMIT 1`,
		symbol,
	).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("store: last trade price for %s: %w", symbol, err)
	}
	return price, true, nil
}

// AccumulatedVolumes returns the latest cumulative volume for each
// active symbol in symbols, keyed by symbol. A symbol with no trade
// history (or no registry row at all) is simply absent here; the
// query layer fills those in as 0.0 before returning to callers.
func (db *DB) AccumulatedVolumes(ctx context.Context, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	rows, err := db.QueryContext(ctx,
		`SELECT s.symbol, t.volume
		 FROM stocks s
		 JOIN LATERAL (
			SELECT volume FROM stock_trades_realtime
			WHERE stock_id = s.stock_id
			ORDER BY ts DESC, trade_id DESC LIMIT 1
		 ) t ON true
		 WHERE s.symbol = ANY($1) AND s.delisted IS FALSE`,
		pqStringArray(symbols),
	)
	if err != nil {
		return nil, fmt.Errorf("store: accumulated volumes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64, len(symbols))
	for rows.Next() {
		var symbol string
		var volume float64
		if err := rows.Scan(&symbol, &volume); err != nil {
			return nil, fmt.Errorf("store: scan accumulated volume: %w", err)
		}
		out[symbol] = volume
	}
	return out, rows.Err()
}

// PreviousCloses returns the most recent EOD close for each symbol in
// symbols, keyed by symbol. Unknown symbols are omitted.
func (db *DB) PreviousCloses(ctx context.Context, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	rows, err := db.QueryContext(ctx,
		`SELECT s.symbol, e.close
		 FROM stocks s
		 JOIN LATERAL (
			SELECT close FROM stock_eod_prices
			WHERE stock_id = s.stock_id
			ORDER BY trading_date DESC LIMIT 1
		 ) e ON true
		 WHERE s.symbol = ANY($1)`,
		pqStringArray(symbols),
	)
	if err != nil {
		return nil, fmt.Errorf("store: previous closes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64, len(symbols))
	for rows.Next() {
		var symbol string
		var close float64
		if err := rows.Scan(&symbol, &close); err != nil {
			return nil, fmt.Errorf("store: scan previous close: %w", err)
		}
		out[symbol] = close
	}
	return out, rows.Err()
}

// LatestEOD returns each symbol's most recent EOD row (stale rows
// included), and separately the subset of symbols that are missing or
// stale (absent entirely, or dated before targetDate).
func (db *DB) LatestEOD(ctx context.Context, symbols []string, targetDate time.Time) (map[string]EODRow, []string, error) {
	if len(symbols) == 0 {
		return map[string]EODRow{}, nil, nil
	}

	rows, err := db.QueryContext(ctx,
		`SELECT s.symbol, e.trading_date, e.open, e.high, e.low, e.close, e.volume, e.pct_change
		 FROM stocks s
		 JOIN LATERAL (
			SELECT trading_date, open, high, low, close, volume, pct_change
			FROM stock_eod_prices
			WHERE stock_id = s.stock_id
			ORDER BY trading_date DESC LIMIT 1
		 ) e ON true
		 WHERE s.symbol = ANY($1)`,
		pqStringArray(symbols),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("store: latest eod: %w", err)
	}
	defer rows.Close()

	found := make(map[string]EODRow, len(symbols))
	for rows.Next() {
		var r EODRow
		if err := rows.Scan(&r.Symbol, &r.TradingDate, &r.Open, &r.High, &r.Low, &r.Close, &r.Volume, &r.PctChange); err != nil {
			return nil, nil, fmt.Errorf("store: scan eod row: %w", err)
		}
		found[r.Symbol] = r
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	missing := make([]string, 0)
	for _, symbol := range symbols {
		row, ok := found[symbol]
		if !ok || row.TradingDate.Before(targetDate) {
			missing = append(missing, symbol)
		}
	}

	return found, missing, nil
}

// UpsertEOD writes or overwrites the EOD row for (symbol, date),
// recomputing pct_change from open/close rather than trusting any
// caller-supplied value.
func (db *DB) UpsertEOD(ctx context.Context, symbol string, date time.Time, open, high, low, close, volume float64) error {
	stockID, err := db.ResolveOrCreateStockID(ctx, symbol)
	if err != nil {
		return err
	}

	pctChange := 0.0
	if open != 0 {
		pctChange = roundTo2((close - open) / open * 100)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO stock_eod_prices (stock_id, trading_date, open, high, low, close, volume, pct_change)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (stock_id, trading_date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			pct_change = EXCLUDED.pct_change`,
		stockID, date, open, high, low, close, volume, pctChange,
	)
	if err != nil {
		return fmt.Errorf("store: upsert eod for %s: %w", symbol, err)
	}
	return nil
}

// Candles returns the most recent limit bars for (symbol, timeframe),
// oldest first.
func (db *DB) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]marketdata.Bar, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT b.ts, b.open, b.high, b.low, b.close, b.volume, b.trade_count, b.vwap
		 FROM stock_bars_staging b
		 JOIN stocks s ON s.stock_id = b.stock_id
		 WHERE s.symbol = $1 AND b.timeframe = $2
		 ORDER BY b.ts DESC LIMIT $3`,
		symbol, timeframe, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: candles for %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []marketdata.Bar
	for rows.Next() {
		b := marketdata.Bar{Symbol: symbol, Timeframe: timeframe}
		var ts time.Time
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.TradeCount, &b.VWAP); err != nil {
			return nil, fmt.Errorf("store: scan candle: %w", err)
		}
		raw, err := json.Marshal(ts.Format(time.RFC3339Nano))
		if err != nil {
			return nil, fmt.Errorf("store: encode candle timestamp: %w", err)
		}
		b.Timestamp = raw
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

// PriceHistory returns up to `days` most recent EOD rows for symbol,
// oldest first.
func (db *DB) PriceHistory(ctx context.Context, symbol string, days int) ([]EODRow, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT e.trading_date, e.open, e.high, e.low, e.close, e.volume, e.pct_change
		 FROM stock_eod_prices e
		 JOIN stocks s ON s.stock_id = e.stock_id
		 WHERE s.symbol = $1
		 ORDER BY e.trading_date DESC LIMIT $2`,
		symbol, days,
	)
	if err != nil {
		return nil, fmt.Errorf("store: price history for %s: %w", symbol, err)
	}
	defer rows.Close()

	var history []EODRow
	for rows.Next() {
		r := EODRow{Symbol: symbol}
		if err := rows.Scan(&r.TradingDate, &r.Open, &r.High, &r.Low, &r.Close, &r.Volume, &r.PctChange); err != nil {
			return nil, fmt.Errorf("store: scan price history row: %w", err)
		}
		history = append(history, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history, nil
}

func roundTo2(v float64) float64 {
	return float64(int64(v*100+sign(v)*0.5)) / 100
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// pqStringArray formats a Go string slice as a PostgreSQL text array
// literal for use with ANY($1) on a pgx-stdlib connection, which does
// not automatically encode Go slices.
func pqStringArray(symbols []string) string {
	out := "{"
	for i, s := range symbols {
		if i > 0 {
			out += ","
		}
		out += `"` + s + `"`
	}
	return out + "}"
}
