package invalidation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/paulmach/orb/maptile"

	"github.com/mohammed-shakir/vtile-mapcss/internal/core/observability"
)

// Invalidator drops cached renders of tiles and reports how many keys it
// targeted.
type Invalidator interface {
	Invalidate(ctx context.Context, tiles []maptile.Tile) (int, error)
}

// Processor validates events and applies them to an Invalidator. It is
// shared by every event transport.
type Processor struct {
	target Invalidator
	rng    Range
	logger *slog.Logger
}

func NewProcessor(target Invalidator, r Range, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Processor{target: target, rng: r, logger: logger}
}

// ProcessJSON decodes and applies one event; source labels metrics.
func (p *Processor) ProcessJSON(ctx context.Context, source string, body []byte) (int, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return 0, fmt.Errorf("%w: json decode: %v", ErrInvalidEvent, err)
	}
	return p.Process(ctx, source, ev)
}

func (p *Processor) Process(ctx context.Context, source string, ev Event) (int, error) {
	start := time.Now()
	if err := ev.Validate(); err != nil {
		return 0, err
	}
	tiles, err := Tiles(ev, p.rng)
	if err != nil {
		return 0, fmt.Errorf("expand event: %w", err)
	}
	if len(tiles) == 0 {
		p.logger.DebugContext(ctx, "no tiles to invalidate (skipping)", "op", ev.Op, "layer", ev.Layer)
		return 0, nil
	}
	n, err := p.target.Invalidate(ctx, tiles)
	if err != nil {
		return 0, fmt.Errorf("invalidate: %w", err)
	}
	observability.AddInvalidatedTiles(source, n)
	p.logger.InfoContext(ctx, "invalidated tiles",
		"source", source,
		"op", ev.Op,
		"layer", ev.Layer,
		"tiles", len(tiles),
		"keys", n,
		"dur", time.Since(start).String())
	return n, nil
}
