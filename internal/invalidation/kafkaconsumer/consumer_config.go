package kafkaconsumer

import (
	"strings"
	"time"

	"github.com/mohammed-shakir/vtile-mapcss/internal/core/config"
)

type Config struct {
	Brokers             []string
	Topic               string
	GroupID             string
	SessionTimeout      time.Duration
	Heartbeat           time.Duration
	RebalanceTimeout    time.Duration
	RetryBackoff        time.Duration
	InitialOffsetOldest bool
	DedupeSize          int
}

// FromConfig derives consumer settings from the service configuration.
func FromConfig(c config.InvalidationCfg) Config {
	topic := c.Topic
	if topic == "" {
		topic = "tile-invalidation"
	}
	group := c.GroupID
	if group == "" {
		group = "tile-invalidator"
	}
	brokers := splitCSV(c.Brokers)
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}
	return Config{
		Brokers:             brokers,
		Topic:               topic,
		GroupID:             group,
		SessionTimeout:      30 * time.Second,
		Heartbeat:           3 * time.Second,
		RebalanceTimeout:    30 * time.Second,
		RetryBackoff:        2 * time.Second,
		InitialOffsetOldest: true,
		DedupeSize:          4096,
	}
}

func splitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
