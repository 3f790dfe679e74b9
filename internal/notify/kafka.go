package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const publishTimeout = 5 * time.Second

// KafkaPublisher writes events to a Kafka topic keyed by correlation id, so
// every event of one request or loan lands on the same partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher returns a publisher for topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			Compression:  kafka.Snappy,
		},
	}
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := eventMessage(e)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing %s to kafka: %w", e.EventType, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func eventMessage(e Event) (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(e.CorrelationID),
		Value: value,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.EventType)},
		},
	}, nil
}

// messageReader is the part of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	retryMin = 200 * time.Millisecond
	retryMax = 10 * time.Second
)

// KafkaConsumer reads events from a consumer group and hands them to a
// Handler. A failing event is retried with backoff until it succeeds, and
// its offset is committed only then, so later events never commit past it.
type KafkaConsumer struct {
	reader   messageReader
	retryMin time.Duration
	retryMax time.Duration
}

// NewKafkaConsumer returns a consumer for topic in group.
func NewKafkaConsumer(brokers []string, group, topic string) *KafkaConsumer {
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			GroupID:  group,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		retryMin: retryMin,
		retryMax: retryMax,
	}
}

// Run consumes until ctx is cancelled.
func (c *KafkaConsumer) Run(ctx context.Context, h Handler) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("reading from kafka: %w", err)
		}

		var e Event
		if err := json.Unmarshal(m.Value, &e); err != nil {
			// Undecodable messages never get better; skip them.
			slog.Warn("dropping malformed event", "offset", m.Offset, "partition", m.Partition, "error", err)
			c.commit(ctx, m)
			continue
		}

		if !c.handle(ctx, h, e) {
			return nil
		}
		c.commit(ctx, m)
	}
}

// handle runs h until it succeeds. It returns false if ctx ends first.
func (c *KafkaConsumer) handle(ctx context.Context, h Handler, e Event) bool {
	wait := c.retryMin
	for attempt := 1; ; attempt++ {
		err := h(ctx, e)
		if err == nil {
			return true
		}
		slog.Error("failed to handle event", "event", e.EventType, "id", e.EventID, "attempt", attempt, "retry_in", wait, "error", err)

		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
		wait = min(wait*2, c.retryMax)
	}
}
func (c *KafkaConsumer) commit(ctx context.Context, m kafka.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		slog.Error("failed to commit offset", "offset", m.Offset, "error", err)
	}
}

// Close closes the reader.
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
