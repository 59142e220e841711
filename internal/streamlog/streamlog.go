//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

// Package streamlog is the durable message log (C1): symbol-keyed
// Kafka topics that decouple the ingest producer from the persistence
// and fan-out workers.
package streamlog

import (
	"context"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"
)

// Topic names for the two realtime feeds this system carries.
const (
	TopicTrades = "stock_trades_realtime"
	TopicBars   = "stock_bars_staging"
)

// Consumer group names. database-persistence commits manually, only
// after a successful write; broadcast-fanout auto-commits since
// duplicate delivery is harmless for a best-effort broadcast.
const (
	GroupDatabasePersistence = "database-persistence"
	GroupBroadcastFanout     = "broadcast-fanout"
)

// Producer publishes symbol-keyed messages to a topic with
// RequireAll acks and bounded retries, matching the durability the
// persistence worker depends on to never silently lose a write.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer builds a Producer for topic against the given brokers.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  3,
			Async:        false,
		},
	}
}

// Publish writes a single symbol-keyed message. The symbol is used as
// the partition key so that all messages for a given symbol land on
// the same partition and are processed in order by a single consumer.
func (p *Producer) Publish(ctx context.Context, symbol string, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(symbol),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.writer.Topic, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer wraps a kafka.Reader configured for either manual or
// automatic offset commit, depending on the consumer group's delivery
// guarantee needs.
type Consumer struct {
	reader *kafka.Reader
	manual bool
}

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topics  []string
	// ManualCommit, when true, disables kafka-go's interval-based commit
	// flushing (CommitInterval=0): offsets are only advanced when the
	// caller explicitly calls Commit after a message is fully processed.
	ManualCommit bool
}

// NewConsumer builds a Consumer from cfg. GroupTopics (kafka-go's
// multi-topic reader) is used so a single consumer group can read both
// the trades and bars topics.
func NewConsumer(cfg ConsumerConfig) *Consumer {
	readerCfg := kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		MinBytes:    1,
		MaxBytes:    10e6,
	}
	if cfg.ManualCommit {
		readerCfg.CommitInterval = 0
	} else {
		readerCfg.CommitInterval = time.Second
	}

	return &Consumer{
		reader: kafka.NewReader(readerCfg),
		manual: cfg.ManualCommit,
	}
}

// Fetch blocks until the next message is available or ctx is canceled.
// Unlike ReadMessage, FetchMessage does not implicitly commit, which is
// required for the manual-commit persistence worker.
func (c *Consumer) Fetch(ctx context.Context) (kafka.Message, error) {
	return c.reader.FetchMessage(ctx)
}

// Commit advances the consumer group's offset past msg. Callers using
// ManualCommit must call this only after msg has been durably
// processed; callers using automatic commit may call it immediately
// after Fetch.
func (c *Consumer) Commit(ctx context.Context, msg kafka.Message) error {
	return c.reader.CommitMessages(ctx, msg)
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
