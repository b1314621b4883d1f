// Package kafkaconsumer applies tile invalidation events read from a
// Kafka topic.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/vtile-mapcss/internal/invalidation"
	mylog "github.com/mohammed-shakir/vtile-mapcss/internal/logger"
)

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	proc   *invalidation.Processor
	dedupe *tsDedupe

	mu       sync.RWMutex
	assigned map[string][]int32
	started  bool
}

func New(cfg Config, logger *slog.Logger, proc *invalidation.Processor) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		cfg:    cfg,
		logger: logger,
		proc:   proc,
		dedupe: newTSDedupe(cfg.DedupeSize),
	}
}

// Start joins the consumer group and blocks until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	if c.proc == nil {
		return errors.New("kafkaconsumer: missing processor")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	c.mu.Lock()
	c.started = true
	c.mu.Unlock()

	handler := &groupHandler{process: c.ProcessOne, onAssign: c.setAssigned}
	ctx = mylog.WithComponent(ctx, "kafka_consumer")

	c.logger.InfoContext(ctx, "kafka invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	backoff := c.cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	for {
		if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
			c.logger.ErrorContext(ctx, "kafka consumer error",
				"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "err", err)
			select {
			case <-ctx.Done():
			case <-time.After(backoff):
			}
		}
		if ctx.Err() != nil {
			c.logger.InfoContext(ctx, "kafka invalidation consumer shutting down")
			return nil
		}
	}
}

// ProcessOne applies a single message. Malformed events are logged and
// skipped so they cannot block the partition.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.logger.ErrorContext(ctx, "kafka error",
			"kind", "decode",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"err", err)
		return nil
	}

	// keyed messages carry a per-entity ordering; unkeyed ones are never deduped
	key := string(msg.Key)
	if key != "" && c.dedupe.seen(key, ev.TS) {
		c.logger.DebugContext(ctx, "stale invalidation event (skipping)",
			"key", key, "ts", ev.TS, "offset", msg.Offset)
		return nil
	}

	n, err := c.proc.Process(ctx, "kafka", ev)
	switch {
	case errors.Is(err, invalidation.ErrInvalidEvent), errors.Is(err, invalidation.ErrTooManyTiles):
		c.logger.WarnContext(ctx, "dropping invalidation event",
			"partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	case err != nil:
		return err
	}
	if key != "" {
		c.dedupe.record(key, ev.TS)
	}
	c.logger.DebugContext(ctx, "applied invalidation event",
		"partition", msg.Partition, "offset", msg.Offset, "keys", n)
	return nil
}

func (c *Consumer) setAssigned(claims map[string][]int32) {
	c.mu.Lock()
	c.assigned = claims
	c.mu.Unlock()
}

// Readiness reports whether the consumer currently owns any partition.
func (c *Consumer) Readiness() (bool, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.started {
		return false, "not started"
	}
	n := 0
	for _, parts := range c.assigned {
		n += len(parts)
	}
	if n == 0 {
		return false, "no partitions assigned"
	}
	return true, fmt.Sprintf("%d partitions assigned", n)
}
