//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

// Package persist is the persistence worker (C5): a single consumer
// group reading both the trades and bars topics and writing each
// message to the relational store, committing its offset only after a
// successful write.
package persist

import (
	"context"
	"encoding/json"
	"errors"

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

// ErrAutoCommitNotAllowed is returned by NewWorker when asked to start
// with Kafka auto-commit enabled. Manual commit is required so an
// offset only advances once its message's write has actually
// committed to PostgreSQL.
var ErrAutoCommitNotAllowed = errors.New("persist: refusing to start with KAFKA_ENABLE_AUTO_COMMIT=true")

// Store is the subset of *store.DB the worker needs.
type Store interface {
	WriteTrade(ctx context.Context, trade marketdata.Trade) error
	WriteBar(ctx context.Context, bar marketdata.Bar) error
}

// consumer is the subset of *streamlog.Consumer the worker needs,
// narrowed for testability.
type consumer interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
	Close() error
}

// Worker runs the single-consumer-group persistence loop.
type Worker struct {
	consumer consumer
	store    Store
}

// NewWorker builds a Worker reading brokers in GroupDatabasePersistence
// with manual commit. autoCommitRequested mirrors the operator-visible
// KAFKA_ENABLE_AUTO_COMMIT setting; the worker refuses to start if it
// is true, since this process must never lose the at-least-once
// guarantee manual commit provides.
func NewWorker(brokers []string, store Store, autoCommitRequested bool) (*Worker, error) {
	if autoCommitRequested {
		return nil, ErrAutoCommitNotAllowed
	}

	c := streamlog.NewConsumer(streamlog.ConsumerConfig{
		Brokers:      brokers,
		GroupID:      streamlog.GroupDatabasePersistence,
		Topics:       []string{streamlog.TopicTrades, streamlog.TopicBars},
		ManualCommit: true,
	})

	return &Worker{consumer: c, store: store}, nil
}

// Run processes messages until ctx is canceled. On cancellation it
// finishes any in-flight message's write and commit before returning,
// matching the differentiated shutdown semantics in SPEC_FULL.md §5.
func (w *Worker) Run(ctx context.Context) error {
	defer w.consumer.Close()

	for {
		msg, err := w.consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logging.Error(ctx, "persist_fetch_failed", map[string]any{"error": err.Error()})
			if sleepErr := sleepOrDone(ctx, fetchRetryDelay); sleepErr != nil {
				return nil
			}
			continue
		}

		// The write and its commit run detached from ctx's cancellation,
		// so a shutdown signal arriving mid-message does not abort them.
		workCtx := context.WithoutCancel(ctx)

		if err := w.process(workCtx, msg); err != nil {
			logging.Error(ctx, "persist_write_failed", map[string]any{
				"topic": msg.Topic, "error": err.Error(),
			})
			continue
		}

		retry.SafeKafkaCall(workCtx, "commit", func(ctx context.Context) error {
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

func (w *Worker) process(ctx context.Context, msg kafka.Message) error {
	switch msg.Topic {
	case streamlog.TopicTrades:
		var trade marketdata.Trade
		if err := json.Unmarshal(msg.Value, &trade); err != nil {
			return err
		}
		return w.store.WriteTrade(ctx, trade)
	case streamlog.TopicBars:
		var bar marketdata.Bar
		if err := json.Unmarshal(msg.Value, &bar); err != nil {
			return err
		}
		return w.store.WriteBar(ctx, bar)
	default:
		logging.Warn(ctx, "persist_unknown_topic", map[string]any{"topic": msg.Topic})
		return nil
	}
}
