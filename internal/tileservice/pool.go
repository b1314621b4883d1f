package tileservice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mohammed-shakir/vtile-mapcss/internal/core/observability"
	"github.com/mohammed-shakir/vtile-mapcss/internal/mapcss"
	"github.com/mohammed-shakir/vtile-mapcss/internal/mvt"
	"github.com/mohammed-shakir/vtile-mapcss/internal/render"
	"github.com/mohammed-shakir/vtile-mapcss/internal/render/ggcanvas"
)

// PNGCanvas is a render target that can be encoded once painted.
type PNGCanvas interface {
	render.Canvas
	EncodePNG(w io.Writer) error
	Close() error
}

type CanvasFactory func(size int) (PNGCanvas, error)

// ggCanvas draws with gg. Text can only be drawn by a gg shaper, so any
// other shaper needs its own CanvasFactory.
func ggCanvas(shaper render.TextShaper) (CanvasFactory, error) {
	var gs *ggcanvas.Shaper
	if shaper != nil {
		var ok bool
		if gs, ok = shaper.(*ggcanvas.Shaper); !ok {
			return nil, fmt.Errorf("shaper %T cannot draw on the gg canvas, set WithCanvas", shaper)
		}
	}
	return func(size int) (PNGCanvas, error) {
		return ggcanvas.New(size, size, gs)
	}, nil
}

type job struct {
	ctx   context.Context
	tile  *mvt.Tile
	size  int
	zoom  int
	sheet *mapcss.Stylesheet
	out   chan<- rendered
}

type rendered struct {
	png   []byte
	stats render.Stats
	err   error
}

func (s *Service) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.quit:
			return
		case j := <-s.jobs:
			// result channel is buffered; never blocks
			j.out <- s.renderPNG(j)
		}
	}
}

// submit hands a job to the pool and waits for its result.
func (s *Service) submit(ctx context.Context, j job) (rendered, error) {
	out := make(chan rendered, 1)
	j.out = out
	select {
	case s.jobs <- j:
	case <-ctx.Done():
		return rendered{}, fmt.Errorf("queue render: %w", ctx.Err())
	case <-s.quit:
		return rendered{}, ErrClosed
	}
	select {
	case r := <-out:
		return r, r.err
	case <-ctx.Done():
		return rendered{}, fmt.Errorf("await render: %w", ctx.Err())
	case <-s.quit:
		return rendered{}, ErrClosed
	}
}

func (s *Service) renderPNG(j job) rendered {
	done := observability.TrackRender()
	defer done()

	c, err := s.canvas(j.size)
	if err != nil {
		return rendered{err: fmt.Errorf("canvas: %w", err)}
	}
	defer func() { _ = c.Close() }()

	r := render.New(j.sheet, s.shaper, s.logger)
	stats, err := r.Render(j.ctx, j.tile, j.size, j.zoom, c)
	if err != nil {
		return rendered{stats: stats, err: err}
	}
	observability.ObserveRender(observability.RenderSample{
		Size:          j.size,
		Duration:      stats.Duration,
		Painted:       stats.Painted,
		Skipped:       stats.Skipped,
		Labels:        stats.Labels,
		LabelsDropped: stats.LabelsDropped,
	})

	start := time.Now()
	var buf bytes.Buffer
	if err := c.EncodePNG(&buf); err != nil {
		return rendered{stats: stats, err: fmt.Errorf("encode png: %w", err)}
	}
	s.logger.DebugContext(j.ctx, "tile encoded", "bytes", buf.Len(), "encode_dur", time.Since(start).String())
	return rendered{png: buf.Bytes(), stats: stats}
}
