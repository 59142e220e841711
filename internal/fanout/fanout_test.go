//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	kafka "github.com/segmentio/kafka-go"

	"github.com/mya15oct/stock-backend/internal/marketdata"
	"github.com/mya15oct/stock-backend/internal/streamlog"
)

type fakeConsumer struct {
	mu            sync.Mutex
	messages      []kafka.Message
	idx           int
	committed     int
	fetchFailures int
}

func (f *fakeConsumer) Fetch(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchFailures > 0 {
		f.fetchFailures--
		return kafka.Message{}, errors.New("simulated broker hiccup")
	}
	if f.idx >= len(f.messages) {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := f.messages[f.idx]
	f.idx++
	return msg, nil
}

func (f *fakeConsumer) Commit(ctx context.Context, msg kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed++
	return nil
}

func (f *fakeConsumer) Close() error { return nil }

type fakeBroadcaster struct {
	mu     sync.Mutex
	trades []string
	bars   []string
}

func (f *fakeBroadcaster) PublishTrade(ctx context.Context, symbol string, message []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trades = append(f.trades, symbol)
	return nil
}

func (f *fakeBroadcaster) PublishBar(ctx context.Context, symbol string, message []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bars = append(f.bars, symbol)
	return nil
}

func TestWorkerBroadcastsBothTopicsAndAutoCommits(t *testing.T) {
	trade, _ := json.Marshal(marketdata.Trade{Symbol: "AAPL"})
	bar, _ := json.Marshal(marketdata.Bar{Symbol: "MSFT"})

	fc := &fakeConsumer{messages: []kafka.Message{
		{Topic: streamlog.TopicTrades, Value: trade},
		{Topic: streamlog.TopicBars, Value: bar},
	}}
	fb := &fakeBroadcaster{}
	w := &Worker{consumer: fc, broadcaster: fb}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for {
		fc.mu.Lock()
		committed := fc.committed
		fc.mu.Unlock()
		if committed == 2 {
			break
		}
	}

	cancel()
	<-done

	fb.mu.Lock()
	defer fb.mu.Unlock()
	if len(fb.trades) != 1 || fb.trades[0] != "AAPL" {
		t.Errorf("expected 1 trade broadcast for AAPL, got %v", fb.trades)
	}
	if len(fb.bars) != 1 || fb.bars[0] != "MSFT" {
		t.Errorf("expected 1 bar broadcast for MSFT, got %v", fb.bars)
	}
}

func TestWorkerSurvivesTransientFetchError(t *testing.T) {
	trade, _ := json.Marshal(marketdata.Trade{Symbol: "AAPL"})

	fc := &fakeConsumer{
		fetchFailures: 2,
		messages:      []kafka.Message{{Topic: streamlog.TopicTrades, Value: trade}},
	}
	fb := &fakeBroadcaster{}
	w := &Worker{consumer: fc, broadcaster: fb}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for {
		fc.mu.Lock()
		committed := fc.committed
		fc.mu.Unlock()
		if committed == 1 {
			break
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("expected Run to exit cleanly on cancellation, got %v", err)
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	if len(fb.trades) != 1 {
		t.Errorf("expected the worker to keep processing past transient fetch errors, got %v", fb.trades)
	}
}
