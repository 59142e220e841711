//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

// Package broadcast is the broadcast stream store (C2): capped Redis
// Streams that the fan-out worker publishes to and downstream
// consumers (out of scope) subscribe from, plus the short-lived
// caches the query layer reads through.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Stream keys for the two realtime feeds.
const (
	StreamTrades = "trades_stream"
	StreamBars   = "bars_stream"
)

// streamPayload is the field set written to each Redis Streams entry:
// the symbol and the JSON-encoded message, both as raw bytes.
type streamPayload struct {
	Symbol []byte
	Data   []byte
}

// Publisher publishes trade and bar messages onto capped Redis
// Streams.
type Publisher struct {
	client *redis.Client
	maxLen int64
}

// NewPublisher builds a Publisher against client, capping every stream
// at maxLen entries (approximate trimming, matching the upstream
// feed's own capped-stream behavior).
func NewPublisher(client *redis.Client, maxLen int64) *Publisher {
	return &Publisher{client: client, maxLen: maxLen}
}

// PublishTrade appends a trade message to the trades stream.
func (p *Publisher) PublishTrade(ctx context.Context, symbol string, message []byte) error {
	return p.xadd(ctx, StreamTrades, symbol, message)
}

// PublishBar appends a bar message to the bars stream.
func (p *Publisher) PublishBar(ctx context.Context, symbol string, message []byte) error {
	return p.xadd(ctx, StreamBars, symbol, message)
}

func (p *Publisher) xadd(ctx context.Context, stream, symbol string, message []byte) error {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"symbol": symbol,
			"data":   message,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", stream, err)
	}
	return nil
}

// volumeCacheTTL is how long an accumulated-volume or candle lookup is
// cached before the next query re-reads the relational store.
const volumeCacheTTL = 2 * time.Second

// RedisCache is the minimal key-value subset of *redis.Client the TTL
// caches read and write through — narrowed so tests can substitute an
// in-memory fake instead of a live Redis server.
type RedisCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// WrapRedisClient adapts a *redis.Client to RedisCache.
func WrapRedisClient(client *redis.Client) RedisCache {
	return redisClientAdapter{client}
}

type redisClientAdapter struct {
	client *redis.Client
}

func (a redisClientAdapter) Get(ctx context.Context, key string) (string, error) {
	return a.client.Get(ctx, key).Result()
}

func (a redisClientAdapter) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return a.client.Set(ctx, key, value, ttl).Err()
}

// VolumeCache is a short-lived cache in front of internal/store's
// cumulative-volume query, keyed by symbol and backed by C2's
// key-value facet (the same Redis instance the stream fan-out writes
// to). It exists so a burst of query_contract callers hitting the same
// symbol within the same couple seconds doesn't each re-hit PostgreSQL,
// and so the cache is shared across horizontally-scaled serve
// replicas rather than being per-process.
type VolumeCache struct {
	client RedisCache
}

// NewVolumeCache builds a VolumeCache against client.
func NewVolumeCache(client RedisCache) *VolumeCache {
	return &VolumeCache{client: client}
}

// Get returns the cached volume for symbol and true on a cache hit. A
// miss or a Redis error both report false, matching C9's "cache reads
// are lock-free reads against C2" contract — a degraded cache never
// blocks a read, it just falls through to the store.
func (c *VolumeCache) Get(ctx context.Context, symbol string) (float64, bool) {
	val, err := c.client.Get(ctx, volumeCacheKey(symbol))
	if err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Set stores volume for symbol with a volumeCacheTTL expiry.
func (c *VolumeCache) Set(ctx context.Context, symbol string, volume float64) {
	c.client.Set(ctx, volumeCacheKey(symbol), strconv.FormatFloat(volume, 'f', -1, 64), volumeCacheTTL)
}

func volumeCacheKey(symbol string) string {
	return "cache:volume:" + symbol
}

// CandleCache caches the most recent candle payload per (symbol,
// timeframe) pair, backed by the same Redis key-value facet as
// VolumeCache, so repeated get_candles calls for the actively-
// streaming window don't each round-trip to PostgreSQL.
type CandleCache struct {
	client RedisCache
}

// NewCandleCache builds a CandleCache against client.
func NewCandleCache(client RedisCache) *CandleCache {
	return &CandleCache{client: client}
}

// Get returns the cached candle payload for (symbol, timeframe) and
// true on a cache hit.
func (c *CandleCache) Get(ctx context.Context, symbol, timeframe string) (json.RawMessage, bool) {
	val, err := c.client.Get(ctx, candleCacheKey(symbol, timeframe))
	if err != nil {
		return nil, false
	}
	return json.RawMessage(val), true
}

// Set stores the candle payload for (symbol, timeframe) with a
// volumeCacheTTL expiry.
func (c *CandleCache) Set(ctx context.Context, symbol, timeframe string, data json.RawMessage) {
	c.client.Set(ctx, candleCacheKey(symbol, timeframe), string(data), volumeCacheTTL)
}

func candleCacheKey(symbol, timeframe string) string {
	return "cache:candle:" + symbol + ":" + timeframe
}
