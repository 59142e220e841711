//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

// Package fanout is the broadcast fan-out worker (C6): an independent
// consumer group that republishes trades and bars onto the broadcast
// stream store. Duplicate delivery is acceptable here, so the
// underlying consumer auto-commits.
package fanout

import (
	"context"
	"encoding/json"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/mya15oct/stock-backend/internal/logging"
	"github.com/mya15oct/stock-backend/internal/marketdata"
	"github.com/mya15oct/stock-backend/internal/retry"
	"github.com/mya15oct/stock-backend/internal/streamlog"
)

// fetchRetryDelay is the pause between fetch attempts after a transient
// error, so a degraded broker doesn't spin the loop hot.
const fetchRetryDelay = 500 * time.Millisecond

// Broadcaster is the subset of *broadcast.Publisher the worker needs.
type Broadcaster interface {
	PublishTrade(ctx context.Context, symbol string, message []byte) error
	PublishBar(ctx context.Context, symbol string, message []byte) error
}

type consumer interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
	Close() error
}

// Worker runs the independent broadcast consumer group.
type Worker struct {
	consumer    consumer
	broadcaster Broadcaster
}

// NewWorker builds a Worker reading both topics in GroupBroadcastFanout
// with automatic commit.
func NewWorker(brokers []string, broadcaster Broadcaster) *Worker {
	c := streamlog.NewConsumer(streamlog.ConsumerConfig{
		Brokers:      brokers,
		GroupID:      streamlog.GroupBroadcastFanout,
		Topics:       []string{streamlog.TopicTrades, streamlog.TopicBars},
		ManualCommit: false,
	})

	return &Worker{consumer: c, broadcaster: broadcaster}
}

// Run processes messages until ctx is canceled, exiting immediately on
// cancellation (no in-flight work to finish, per SPEC_FULL.md §5).
func (w *Worker) Run(ctx context.Context) error {
	defer w.consumer.Close()

	for {
		msg, err := w.consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logging.Error(ctx, "fanout_fetch_failed", map[string]any{"error": err.Error()})
			if sleepErr := sleepOrDone(ctx, fetchRetryDelay); sleepErr != nil {
				return nil
			}
			continue
		}

		retry.SafeRedisCall(ctx, "broadcast", func(ctx context.Context) error {
			return w.broadcast(ctx, msg)
		})

		retry.SafeKafkaCall(ctx, "commit", func(ctx context.Context) error {
			return w.consumer.Commit(ctx, msg)
		})
	}
}

// sleepOrDone pauses for d, returning ctx.Err() early if ctx is canceled
// first.
func sleepOrDone(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (w *Worker) broadcast(ctx context.Context, msg kafka.Message) error {
	switch msg.Topic {
	case streamlog.TopicTrades:
		var trade marketdata.Trade
		if err := json.Unmarshal(msg.Value, &trade); err != nil {
			return err
		}
		return w.broadcaster.PublishTrade(ctx, trade.Symbol, msg.Value)
	case streamlog.TopicBars:
		var bar marketdata.Bar
		if err := json.Unmarshal(msg.Value, &bar); err != nil {
			return err
		}
		return w.broadcaster.PublishBar(ctx, bar.Symbol, msg.Value)
	default:
		logging.Warn(ctx, "fanout_unknown_topic", map[string]any{"topic": msg.Topic})
		return nil
	}
}
