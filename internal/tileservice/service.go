// Package tileservice turns z/x/y requests into PNG tiles: cache lookup,
// upstream fetch, decode, render on a bounded worker pool, encode and
// cache fill. The active stylesheet can be swapped while serving.
package tileservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mohammed-shakir/vtile-mapcss/internal/cache"
	"github.com/mohammed-shakir/vtile-mapcss/internal/cache/keys"
	"github.com/mohammed-shakir/vtile-mapcss/internal/core/config"
	"github.com/mohammed-shakir/vtile-mapcss/internal/core/observability"
	"github.com/mohammed-shakir/vtile-mapcss/internal/mapcss"
	"github.com/mohammed-shakir/vtile-mapcss/internal/render"
	"github.com/mohammed-shakir/vtile-mapcss/internal/source"
)

var (
	ErrBadSize  = errors.New("tile size not served")
	ErrClosed   = errors.New("tile service closed")
	// ErrUpstream wraps failures fetching the source tile.
	ErrUpstream = errors.New("fetch source tile")
)

type styleState struct {
	sheet    *mapcss.Stylesheet
	path     string
	loadedAt time.Time
}

type Service struct {
	logger *slog.Logger
	cfg    config.Config
	src    source.Interface
	cache  *cache.Tiered
	shaper render.TextShaper
	canvas CanvasFactory

	style atomic.Pointer[styleState]
	group singleflight.Group

	jobs     chan job
	quit     chan struct{}
	wg       sync.WaitGroup
	started  atomic.Bool
	draining atomic.Bool
	stopOnce sync.Once
}

type Option func(*Service)

// WithCache sets the rendered tile cache; without it every request renders.
func WithCache(c *cache.Tiered) Option {
	return func(s *Service) { s.cache = c }
}

// WithShaper enables labels. A shaper other than *ggcanvas.Shaper also
// needs WithCanvas.
func WithShaper(sh render.TextShaper) Option {
	return func(s *Service) { s.shaper = sh }
}

func WithCanvas(f CanvasFactory) Option {
	return func(s *Service) { s.canvas = f }
}

func New(cfg config.Config, logger *slog.Logger, src source.Interface, sheet *mapcss.Stylesheet, opts ...Option) (*Service, error) {
	if src == nil {
		return nil, errors.New("tile source is required")
	}
	if sheet == nil {
		return nil, errors.New("stylesheet is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if len(cfg.TileSizes) == 0 {
		cfg.TileSizes = []int{cfg.TileSize}
	}
	if cfg.RenderWorkers <= 0 {
		cfg.RenderWorkers = 4
	}
	if cfg.RenderQueue < 0 {
		cfg.RenderQueue = 0
	}
	s := &Service{
		logger: logger,
		cfg:    cfg,
		src:    src,
		cache:  cache.NewTiered(logger),
		jobs:   make(chan job, cfg.RenderQueue),
		quit:   make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.canvas == nil {
		f, err := ggCanvas(s.shaper)
		if err != nil {
			return nil, err
		}
		s.canvas = f
	}
	s.style.Store(&styleState{sheet: sheet, path: cfg.Stylesheet, loadedAt: time.Now()})
	observability.ObserveStylesheetLoad(nil, sheet.NumStyles())
	return s, nil
}

// Start launches the render workers. Once ctx is done the service reports
// not ready but keeps rendering for in-flight requests; workers stop on
// Close.
func (s *Service) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.wg.Add(s.cfg.RenderWorkers)
	for range s.cfg.RenderWorkers {
		go s.worker()
	}
	go func() {
		select {
		case <-ctx.Done():
			s.draining.Store(true)
			s.logger.Info("render workers draining")
		case <-s.quit:
		}
	}()
	s.logger.Info("render workers started", "workers", s.cfg.RenderWorkers, "queue", s.cfg.RenderQueue)
}

func (s *Service) Close() {
	s.stopOnce.Do(func() {
		close(s.quit)
		s.wg.Wait()
	})
}

// Stylesheet returns the stylesheet new requests render with.
func (s *Service) Stylesheet() *mapcss.Stylesheet {
	return s.style.Load().sheet
}

// Reload parses the stylesheet file again and swaps it in. On error the
// previous stylesheet stays active. Renders already running keep the sheet
// they started with.
func (s *Service) Reload(ctx context.Context) (int, error) {
	path := s.style.Load().path
	if path == "" {
		return 0, errors.New("no stylesheet path configured")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	start := time.Now()
	sheet, err := mapcss.LoadFile(path)
	if err != nil {
		observability.ObserveStylesheetLoad(err, 0)
		s.logger.WarnContext(ctx, "stylesheet reload failed, keeping previous", "path", path, "err", err)
		return 0, fmt.Errorf("reload stylesheet: %w", err)
	}
	observability.ObserveStylesheetLoad(nil, sheet.NumStyles())
	prev := s.style.Swap(&styleState{sheet: sheet, path: path, loadedAt: time.Now()})
	s.logger.InfoContext(ctx, "stylesheet reloaded",
		"path", path,
		"selectors", sheet.NumStyles(),
		"hash", fmt.Sprintf("%016x", sheet.Hash()),
		"previous_hash", fmt.Sprintf("%016x", prev.sheet.Hash()),
		"dur", time.Since(start).String())
	if old := prev.sheet.Hash(); old != sheet.Hash() {
		s.purgeStyle(ctx, old)
	}
	return sheet.NumStyles(), nil
}

// purgeStyle drops tiles rendered under a replaced stylesheet. Their keys
// can no longer be requested, so failures only cost cache space.
func (s *Service) purgeStyle(ctx context.Context, hash uint64) {
	if s.cache.Len() == 0 {
		return
	}
	n, err := s.cache.DelPrefix(ctx, keys.StylePrefix(hash))
	if err != nil {
		s.logger.WarnContext(ctx, "purge of replaced stylesheet tiles incomplete", "hash", fmt.Sprintf("%016x", hash), "purged", n, "err", err)
		return
	}
	s.logger.InfoContext(ctx, "purged replaced stylesheet tiles", "hash", fmt.Sprintf("%016x", hash), "purged", n)
}

// Readiness reports whether render workers are running and the service
// is not shutting down.
func (s *Service) Readiness() (bool, string) {
	select {
	case <-s.quit:
		return false, "closed"
	default:
	}
	if !s.started.Load() {
		return false, "workers not started"
	}
	if s.draining.Load() {
		return false, "shutting down"
	}
	st := s.style.Load()
	return true, fmt.Sprintf("stylesheet %016x, %d selectors", st.sheet.Hash(), st.sheet.NumStyles())
}
