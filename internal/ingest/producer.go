//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mya15oct/stock-backend/internal/logging"
	"github.com/mya15oct/stock-backend/internal/marketdata"
	"github.com/mya15oct/stock-backend/internal/retry"
)

// Publisher is the subset of streamlog.Producer behavior Producer
// needs, one per destination topic.
type Publisher interface {
	Publish(ctx context.Context, symbol string, value []byte) error
}

// queueDepth bounds the channel between the WebSocket reader and the
// publisher goroutine, so a slow or retrying publish never blocks the
// reader (SPEC_FULL.md §5).
const queueDepth = 4096

// Producer connects to the upstream feed, decodes incoming frames, and
// republishes them onto the durable log. The WS reader and the
// publisher run on separate goroutines joined by a bounded channel.
type Producer struct {
	BaseURL string
	APIKey  string
	Secret  string

	Trades Publisher
	Bars   Publisher
}

// Run connects, subscribes to symbols, and streams until ctx is
// canceled. It reconnects with unbounded exponential backoff on any
// connection failure, matching the at-least-once "never give up"
// requirement for the realtime ingest path.
func (p *Producer) Run(ctx context.Context, symbols []string) error {
	queue := make(chan marketdata.Frame, queueDepth)

	publisherDone := make(chan struct{})
	go func() {
		defer close(publisherDone)
		p.runPublisher(ctx, queue)
	}()

	err := retry.Unbounded(ctx, retry.Config{BaseDelay: time.Second, MaxDelay: 30 * time.Second}, func(ctx context.Context) error {
		return p.runOnce(ctx, symbols, queue)
	})

	close(queue)
	<-publisherDone
	return err
}

// runOnce performs a single connect/subscribe/listen cycle. A non-nil
// return means the connection dropped and the caller should reconnect;
// a nil return means ctx was canceled and the caller should stop.
func (p *Producer) runOnce(ctx context.Context, symbols []string, queue chan<- marketdata.Frame) error {
	client := NewClient(p.BaseURL, p.APIKey, p.Secret)

	if err := client.Connect(ctx); err != nil {
		logging.Warn(ctx, "ingest_connect_failed", map[string]any{"error": err.Error()})
		return err
	}
	defer client.Close()

	if err := client.Subscribe(symbols); err != nil {
		logging.Warn(ctx, "ingest_subscribe_failed", map[string]any{"error": err.Error()})
		return err
	}

	logging.Info(ctx, "ingest_connected", map[string]any{"symbols": len(symbols)})

	stopOnCancel := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			client.Close()
		case <-stopOnCancel:
		}
	}()
	defer close(stopOnCancel)

	listenErr := client.Listen(func(message []byte) {
		frames, err := marketdata.ParseFrames(message)
		if err != nil {
			logging.Warn(ctx, "ingest_decode_failed", map[string]any{"error": err.Error()})
			return
		}
		for _, f := range frames {
			if f.Kind == marketdata.KindOther {
				continue
			}
			select {
			case queue <- f:
			case <-ctx.Done():
				return
			}
		}
	})

	if ctx.Err() != nil {
		return nil
	}
	if listenErr == nil {
		// The upstream closed the connection normally; report it as a
		// drop so the caller reconnects.
		return errors.New("ingest: upstream closed the connection")
	}
	return listenErr
}

// runPublisher drains queue, publishing each frame to the appropriate
// topic with a bounded retry. A frame that exhausts its retries is
// logged and dropped without blocking the reader.
func (p *Producer) runPublisher(ctx context.Context, queue <-chan marketdata.Frame) {
	cfg := retry.DefaultConfig()

	for frame := range queue {
		switch frame.Kind {
		case marketdata.KindTrade:
			p.publishTrade(ctx, cfg, frame.Trade)
		case marketdata.KindBar:
			p.publishBar(ctx, cfg, frame.Bar)
		}
	}
}

func (p *Producer) publishTrade(ctx context.Context, cfg retry.Config, trade marketdata.Trade) {
	data, err := json.Marshal(trade)
	if err != nil {
		logging.Error(ctx, "ingest_marshal_trade_failed", map[string]any{"symbol": trade.Symbol, "error": err.Error()})
		return
	}

	err = retry.Do(ctx, cfg, func(ctx context.Context) error {
		return p.Trades.Publish(ctx, trade.Symbol, data)
	})
	if err != nil {
		logging.Error(ctx, "ingest_publish_trade_dropped", map[string]any{"symbol": trade.Symbol, "error": err.Error()})
	}
}

func (p *Producer) publishBar(ctx context.Context, cfg retry.Config, bar marketdata.Bar) {
	data, err := json.Marshal(bar)
	if err != nil {
		logging.Error(ctx, "ingest_marshal_bar_failed", map[string]any{"symbol": bar.Symbol, "error": err.Error()})
		return
	}

	err = retry.Do(ctx, cfg, func(ctx context.Context) error {
		return p.Bars.Publish(ctx, bar.Symbol, data)
	})
	if err != nil {
		logging.Error(ctx, "ingest_publish_bar_dropped", map[string]any{"symbol": bar.Symbol, "error": err.Error()})
	}
}
