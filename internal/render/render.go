// Package render turns a decoded vector tile into paint calls on a Canvas,
// resolving each feature's style through a MapCSS stylesheet.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/multierr"

	"github.com/mohammed-shakir/vtile-mapcss/internal/mapcss"
	"github.com/mohammed-shakir/vtile-mapcss/internal/mvt"
)

var (
	ErrInvalidTileSize = errors.New("render: invalid tile size")
	ErrNilTile         = errors.New("render: nil tile")
)

// MaxTileSize bounds the tile edge in pixels.
const MaxTileSize = 8192

// Stats describes one render. FeatureErrs aggregates the per-feature
// errors that were recovered by skipping the feature.
type Stats struct {
	Features      int
	Painted       int
	Skipped       int
	Casings       int
	Labels        int
	LabelsDropped int
	Duration      time.Duration
	FeatureErrs   error
}

// Renderer paints tiles. Styles is read only while rendering, so one
// Renderer may serve concurrent renders on separate canvases.
type Renderer struct {
	Styles *mapcss.Stylesheet
	// Shaper is optional; without it no labels are drawn.
	Shaper TextShaper
	Logger *slog.Logger
}

func New(styles *mapcss.Stylesheet, shaper TextShaper, logger *slog.Logger) *Renderer {
	return &Renderer{Styles: styles, Shaper: shaper, Logger: logger}
}

func (r *Renderer) log() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}

// Render paints tile t scaled to tileSize pixels at zoom onto c. The render
// runs to completion once started; ctx is only checked before it begins.
// Features with malformed geometry are skipped and reported in Stats.
func (r *Renderer) Render(ctx context.Context, t *mvt.Tile, tileSize, zoom int, c Canvas) (Stats, error) {
	var stats Stats
	if tileSize <= 0 || tileSize > MaxTileSize {
		return stats, fmt.Errorf("%w: %d", ErrInvalidTileSize, tileSize)
	}
	if t == nil {
		return stats, ErrNilTile
	}
	if c == nil {
		return stats, errors.New("render: nil canvas")
	}
	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("render: %w", err)
	}

	start := time.Now()
	log := r.log()
	styles := r.Styles
	if styles == nil {
		styles = mapcss.NewStylesheet()
	}

	plan := Classify(t, styles, zoom)
	stats.Features = plan.Len()
	p := &painter{c: c, tileSize: float64(tileSize)}

	if err := p.background(styles.Style(mapcss.KindCanvas, nil, zoom)); err != nil {
		return stats, fmt.Errorf("render background: %w", err)
	}

	var labels []pendingLabel
	for _, id := range RenderOrder() {
		for _, it := range plan.Casings(id) {
			err := p.casing(it)
			switch {
			case err == nil:
				stats.Casings++
			case errors.Is(err, mvt.ErrMalformedGeometry):
				// counted once by the main pass
			default:
				return stats, fmt.Errorf("render %s casing: %w", id, err)
			}
		}

		for _, it := range plan.Main(id) {
			paths, err := p.feature(it)
			if err != nil {
				if !errors.Is(err, mvt.ErrMalformedGeometry) {
					return stats, fmt.Errorf("render %s: %w", id, err)
				}
				stats.Skipped++
				stats.FeatureErrs = multierr.Append(stats.FeatureErrs,
					fmt.Errorf("layer %q feature %d: %w", it.Layer.Name, it.Feature.ID, err))
				log.Debug("skip feature", "layer", it.Layer.Name, "id", it.Feature.ID, "err", err)
				continue
			}
			stats.Painted++

			if r.Shaper == nil {
				continue
			}
			if text, ok := labelText(it.Style, it.Tags); ok {
				labels = append(labels, pendingLabel{text: text, style: it.Style, geom: it.Feature.Type, paths: paths})
			}
		}
	}

	r.paintLabels(p, labels, &stats)

	stats.Duration = time.Since(start)
	log.Debug("tile rendered",
		"zoom", zoom, "size", tileSize,
		"features", stats.Features, "painted", stats.Painted, "skipped", stats.Skipped,
		"labels", stats.Labels, "labels_dropped", stats.LabelsDropped,
		"dur", stats.Duration.String())
	return stats, nil
}

// paintLabels places collected labels greedily in collection order and
// paints them above every geometry layer.
func (r *Renderer) paintLabels(p *painter, labels []pendingLabel, stats *Stats) {
	var col Collider
	for _, l := range labels {
		shaped, err := r.Shaper.Shape(l.text, fontFor(l.style))
		if err != nil {
			stats.LabelsDropped++
			stats.FeatureErrs = multierr.Append(stats.FeatureErrs, fmt.Errorf("shape %q: %w", l.text, err))
			continue
		}

		pl, ok := Anchor(l.geom, l.paths, shaped.Width, l.style.Enum("text-position"))
		if !ok {
			stats.LabelsDropped++
			continue
		}
		pl.Y += l.style.Num("text-offset")

		w, h := labelSize(shaped, l.style, pl.Angle)
		pl, ok = col.Place(pl, w, h, l.geom == mvt.GeomPoint)
		if !ok {
			stats.LabelsDropped++
			continue
		}

		if err := p.paintLabel(shaped, l.style, pl); err != nil {
			stats.LabelsDropped++
			stats.FeatureErrs = multierr.Append(stats.FeatureErrs, fmt.Errorf("paint label %q: %w", l.text, err))
			continue
		}
		stats.Labels++
	}
}

// Result is delivered by RenderAsync.
type Result struct {
	Stats Stats
	Err   error
}

// RenderAsync runs Render on its own goroutine. The returned channel yields
// exactly one Result and is then closed. The render cannot be cancelled once
// it has started.
func (r *Renderer) RenderAsync(ctx context.Context, t *mvt.Tile, tileSize, zoom int, c Canvas) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		stats, err := r.Render(ctx, t, tileSize, zoom, c)
		ch <- Result{Stats: stats, Err: err}
	}()
	return ch
}
