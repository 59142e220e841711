//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

// Package marketdata holds the wire types shared by the ingest
// producer, the durable log, and the persistence/fan-out workers:
// trades, bars, and the inbound WebSocket frame shapes they are
// decoded from.
package marketdata

import (
	"encoding/json"
	"time"
)

// Trade is a single realtime trade print for a symbol. Timestamp is
// forwarded exactly as the upstream feed sent it (an ISO-8601 string or
// an int64 nanosecond epoch) — the producer does not normalize it; C5
// parses it on write (SPEC_FULL.md §4.1, §7).
type Trade struct {
	Symbol    string          `json:"symbol"`
	Price     float64         `json:"price"`
	Size      float64         `json:"size"`
	Timestamp json.RawMessage `json:"timestamp"`
	Exchange  string          `json:"exchange,omitempty"`
}

// Bar is a single aggregate (1-minute by default) OHLCV bar for a
// symbol, as published by the upstream feed's bar channel. Timestamp is
// forwarded raw, same as Trade.Timestamp.
type Bar struct {
	Symbol     string          `json:"symbol"`
	Timeframe  string          `json:"timeframe"`
	Open       float64         `json:"open"`
	High       float64         `json:"high"`
	Low        float64         `json:"low"`
	Close      float64         `json:"close"`
	Volume     float64         `json:"volume"`
	TradeCount int64           `json:"trade_count,omitempty"`
	VWAP       float64         `json:"vwap,omitempty"`
	Timestamp  json.RawMessage `json:"timestamp"`
}

// rawFrame is the shape of a single element in the JSON array the feed
// sends over the WebSocket. The "T" field tags its meaning: "success"/
// "subscription" are control messages, "t" is a trade, "b" is a bar.
type rawFrame struct {
	Type      string          `json:"T"`
	Msg       string          `json:"msg"`
	Symbol    string          `json:"S"`
	Price     float64         `json:"p"`
	Size      float64         `json:"s"`
	Open      float64         `json:"o"`
	High      float64         `json:"h"`
	Low       float64         `json:"l"`
	Close     float64         `json:"c"`
	Volume    float64         `json:"v"`
	TradeCnt  int64           `json:"n"`
	VWAP      float64         `json:"vw"`
	Timestamp json.RawMessage `json:"t"`
}

// FrameKind identifies what ParseFrames decoded a raw array element
// into.
type FrameKind int

const (
	// KindOther covers control frames (auth success, subscription ack)
	// and anything else callers don't need to act on.
	KindOther FrameKind = iota
	KindTrade
	KindBar
)

// Frame is one decoded element from an inbound WebSocket message.
type Frame struct {
	Kind  FrameKind
	Trade Trade
	Bar   Bar
}

// ParseFrames decodes a raw WebSocket message (a JSON array of tagged
// objects) into a slice of Frame. It forwards each entry's "t" field
// through untouched — the producer does not normalize timestamps
// (SPEC_FULL.md §4.1); parsing with the ISO-8601/int64-ns fallback
// happens downstream in C5 via ParseTimestamp.
func ParseFrames(message []byte) ([]Frame, error) {
	var raws []rawFrame
	if err := json.Unmarshal(message, &raws); err != nil {
		return nil, err
	}

	frames := make([]Frame, 0, len(raws))

	for _, r := range raws {
		switch r.Type {
		case "t":
			frames = append(frames, Frame{
				Kind: KindTrade,
				Trade: Trade{
					Symbol:    r.Symbol,
					Price:     r.Price,
					Size:      r.Size,
					Timestamp: r.Timestamp,
				},
			})
		case "b":
			frames = append(frames, Frame{
				Kind: KindBar,
				Bar: Bar{
					Symbol:     r.Symbol,
					Timeframe:  "1m",
					Open:       r.Open,
					High:       r.High,
					Low:        r.Low,
					Close:      r.Close,
					Volume:     r.Volume,
					TradeCount: r.TradeCnt,
					VWAP:       r.VWAP,
					Timestamp:  r.Timestamp,
				},
			})
		default:
			frames = append(frames, Frame{Kind: KindOther})
		}
	}

	return frames, nil
}

// ParseTimestamp decodes a raw "t" field that may be an ISO-8601
// string or an int64 count of nanoseconds since the epoch. If raw is
// empty or neither form parses, it returns now and true (fell back).
func ParseTimestamp(raw json.RawMessage, now time.Time) (time.Time, bool) {
	if len(raw) == 0 {
		return now, true
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, asString); err == nil {
			return t, false
		}
		return now, true
	}

	var asInt int64
	if err := json.Unmarshal(raw, &asInt); err == nil {
		return time.Unix(0, asInt), false
	}

	return now, true
}
