package main

import (
	"context"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/gudangmitra/gudang/internal/config"
	"github.com/gudangmitra/gudang/internal/notify"
)

// queueSize bounds the in-process event queue.
const queueSize = 256

// eventPipeline is the publisher handed to the workflow plus whatever
// consumes from it.
type eventPipeline struct {
	publisher notify.Publisher
	closers   []func()
}

// Close flushes and releases the pipeline, publisher first.
func (p *eventPipeline) Close() {
	for _, c := range p.closers {
		c()
	}
}

// startEvents wires the notification path. With Kafka brokers configured,
// events go through the topic and a consumer group writes notifications;
// otherwise an in-process dispatcher does. Redis, when configured, shares
// dedup state between consumers.
func startEvents(ctx context.Context, cfg config.Config, database *sqlx.DB) (*eventPipeline, error) {
	consumer := &notify.Consumer{DB: database, Dedup: notify.NewMemoryDeduper(notify.DedupTTL)}
	p := &eventPipeline{}

	var closeRedis func()
	if cfg.RedisAddr != "" {
		rdb, err := notify.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		consumer.Dedup = &notify.RedisDeduper{Client: rdb, Service: cfg.ServiceName, TTL: notify.DedupTTL}
		slog.Info("event dedup via redis", "addr", cfg.RedisAddr)
		closeRedis = func() { rdb.Close() }
	}

	if len(cfg.KafkaBrokers) == 0 {
		d := notify.NewDispatcher(consumer.Handle, queueSize)
		p.publisher = d
		p.closers = append(p.closers, d.Close)
		if closeRedis != nil {
			p.closers = append(p.closers, closeRedis)
		}
		slog.Info("events delivered in process", "queue", queueSize)
		return p, nil
	}

	pub := notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	sub := notify.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaGroup, cfg.KafkaTopic)

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := sub.Run(runCtx, consumer.Handle); err != nil {
			slog.Error("event consumer stopped", "error", err)
		}
	}()

	p.publisher = pub
	p.closers = append(p.closers,
		func() {
			if err := pub.Close(); err != nil {
				slog.Error("failed to close kafka writer", "error", err)
			}
		},
		func() {
			cancel()
			<-done
			if err := sub.Close(); err != nil {
				slog.Error("failed to close kafka reader", "error", err)
			}
		},
	)
	if closeRedis != nil {
		p.closers = append(p.closers, closeRedis)
	}
	slog.Info("events delivered via kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic, "group", cfg.KafkaGroup)
	return p, nil
}
