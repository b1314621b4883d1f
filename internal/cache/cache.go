// Package cache stores rendered tiles. Backends implement Interface; Tiered
// chains them so a fast local tier fronts a shared one.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/multierr"

	"github.com/mohammed-shakir/vtile-mapcss/internal/core/observability"
)

type Interface interface {
	// Get reports ok=false with a nil error when the key is absent.
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// PrefixDeleter is implemented by stores that can drop a key range.
type PrefixDeleter interface {
	DelPrefix(ctx context.Context, prefix string) (int, error)
}

// Tier is a named backend; the name labels metrics and logs.
type Tier struct {
	Name  string
	Store Interface
}

// Tiered reads tiers in order and backfills faster tiers on a hit further
// down. Writes and deletes go to every tier.
type Tiered struct {
	tiers []Tier
	log   *slog.Logger
}

func NewTiered(log *slog.Logger, tiers ...Tier) *Tiered {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	ts := make([]Tier, 0, len(tiers))
	for _, t := range tiers {
		if t.Store != nil {
			ts = append(ts, t)
		}
	}
	return &Tiered{tiers: ts, log: log}
}

func (t *Tiered) Len() int { return len(t.tiers) }

// Lookup returns the value and the name of the tier that served it. Tier
// errors are logged and treated as misses so a broken shared cache only
// costs a render.
func (t *Tiered) Lookup(ctx context.Context, key string, ttl time.Duration) ([]byte, string, bool) {
	for i, tier := range t.tiers {
		val, ok, err := tier.Store.Get(ctx, key)
		if err != nil {
			observability.IncCacheError(tier.Name)
			t.log.WarnContext(ctx, "cache get failed", "tier", tier.Name, "key", key, "err", err)
			continue
		}
		if !ok {
			observability.IncCacheMiss(tier.Name)
			continue
		}
		observability.IncCacheHit(tier.Name)
		for _, up := range t.tiers[:i] {
			if err := up.Store.Set(ctx, key, val, ttl); err != nil {
				t.log.WarnContext(ctx, "cache backfill failed", "tier", up.Name, "key", key, "err", err)
			}
		}
		return val, tier.Name, true
	}
	return nil, "", false
}

func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, _, ok := t.Lookup(ctx, key, 0)
	return val, ok, nil
}

func (t *Tiered) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	var err error
	for _, tier := range t.tiers {
		err = multierr.Append(err, tier.Store.Set(ctx, key, val, ttl))
	}
	return err
}

func (t *Tiered) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	var err error
	for _, tier := range t.tiers {
		err = multierr.Append(err, tier.Store.Del(ctx, keys...))
	}
	return err
}

// DelPrefix purges prefix from every tier that supports it and returns the
// number of keys removed across tiers.
func (t *Tiered) DelPrefix(ctx context.Context, prefix string) (int, error) {
	var (
		n   int
		err error
	)
	for _, tier := range t.tiers {
		pd, ok := tier.Store.(PrefixDeleter)
		if !ok {
			continue
		}
		c, e := pd.DelPrefix(ctx, prefix)
		n += c
		if e != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", tier.Name, e))
		}
	}
	return n, err
}
