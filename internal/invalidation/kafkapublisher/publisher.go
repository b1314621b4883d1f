// Package kafkapublisher writes tile invalidation events to Kafka.
package kafkapublisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/vtile-mapcss/internal/invalidation"
)

type Publisher struct {
	topic  string
	prod   sarama.SyncProducer
	logger *slog.Logger
}

// New dials the brokers. Sends wait for all in-sync replicas.
func New(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll

	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafkapublisher: create producer: %w", err)
	}
	return NewWithProducer(prod, topic, logger), nil
}

func NewWithProducer(prod sarama.SyncProducer, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{topic: topic, prod: prod, logger: logger}
}

// Publish validates ev and sends it. A non-empty key lets consumers drop
// older events for the same entity.
func (p *Publisher) Publish(ctx context.Context, key string, ev invalidation.Event) (partition int32, offset int64, err error) {
	if err := ev.Validate(); err != nil {
		return 0, 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return 0, 0, fmt.Errorf("kafkapublisher: marshal: %w", err)
	}
	msg := &sarama.ProducerMessage{Topic: p.topic, Value: sarama.ByteEncoder(b)}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}
	partition, offset, err = p.prod.SendMessage(msg)
	if err != nil {
		return 0, 0, fmt.Errorf("kafkapublisher: send: %w", err)
	}
	p.logger.InfoContext(ctx, "published invalidation",
		"topic", p.topic, "partition", partition, "offset", offset, "op", ev.Op)
	return partition, offset, nil
}

func (p *Publisher) Close() error {
	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("kafkapublisher: close producer: %w", err)
	}
	return nil
}
