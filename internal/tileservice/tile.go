package tileservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb/maptile"

	"github.com/mohammed-shakir/vtile-mapcss/internal/cache/keys"
	"github.com/mohammed-shakir/vtile-mapcss/internal/logger"
	"github.com/mohammed-shakir/vtile-mapcss/internal/mvt"
	"github.com/mohammed-shakir/vtile-mapcss/internal/render"
	"github.com/mohammed-shakir/vtile-mapcss/internal/source"
)

type Request struct {
	Z, X, Y int
	// Size is the edge in pixels; zero means the configured default.
	Size int
}

type Result struct {
	PNG []byte
	// Served is the cache tier name, or "render".
	Served    string
	StyleHash uint64
	// Stats is nil for cache hits.
	Stats *render.Stats
}

const servedRender = "render"

func (s *Service) validate(req *Request) (maptile.Tile, error) {
	if req.Size == 0 {
		req.Size = s.cfg.TileSize
	}
	if !s.allowsSize(req.Size) {
		return maptile.Tile{}, fmt.Errorf("%w: %d", ErrBadSize, req.Size)
	}
	return source.Tile(req.Z, req.X, req.Y, s.cfg.MaxZoom)
}

func (s *Service) allowsSize(size int) bool {
	for _, v := range s.cfg.TileSizes {
		if v == size {
			return true
		}
	}
	return false
}

// Render returns the PNG for req. Concurrent requests for the same tile
// share one render; the shared render is not canceled when one caller
// gives up so the cache still gets filled.
func (s *Service) Render(ctx context.Context, req Request) (Result, error) {
	t, err := s.validate(&req)
	if err != nil {
		return Result{}, err
	}
	if !s.started.Load() {
		return Result{}, errors.New("render workers not started")
	}
	ctx = logger.WithTile(ctx, req.Z, req.X, req.Y)

	st := s.style.Load()
	hash := st.sheet.Hash()
	key := keys.Key(hash, req.Z, req.X, req.Y, req.Size)

	if png, tier, ok := s.lookup(ctx, key); ok {
		s.logger.DebugContext(logger.WithCacheOutcome(ctx, "hit"), "tile served from cache", "tier", tier)
		return Result{PNG: png, Served: tier, StyleHash: hash}, nil
	}

	ch := s.group.DoChan(key, func() (any, error) {
		wctx := logger.WithCacheOutcome(context.WithoutCancel(ctx), "miss")
		return s.produce(wctx, t, req, st, key)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return Result{}, r.Err
		}
		res := r.Val.(Result)
		return res, nil
	case <-ctx.Done():
		return Result{}, fmt.Errorf("render %d/%d/%d: %w", req.Z, req.X, req.Y, ctx.Err())
	}
}

func (s *Service) lookup(ctx context.Context, key string) ([]byte, string, bool) {
	if s.cache.Len() == 0 {
		return nil, "", false
	}
	cctx, cancel := s.withOpTimeout(ctx)
	defer cancel()
	return s.cache.Lookup(cctx, key, s.cfg.CacheTTL)
}

func (s *Service) withOpTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.CacheOpTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.CacheOpTimeout)
}

func (s *Service) produce(ctx context.Context, t maptile.Tile, req Request, st *styleState, key string) (Result, error) {
	start := time.Now()
	tile, err := s.fetch(ctx, t)
	if err != nil {
		return Result{}, err
	}
	fetchDur := time.Since(start)

	r, err := s.submit(ctx, job{ctx: ctx, tile: tile, size: req.Size, zoom: req.Z, sheet: st.sheet})
	if err != nil {
		return Result{}, fmt.Errorf("render %d/%d/%d: %w", req.Z, req.X, req.Y, err)
	}
	if r.stats.FeatureErrs != nil {
		s.logger.WarnContext(ctx, "features skipped", "skipped", r.stats.Skipped, "err", r.stats.FeatureErrs)
	}

	if s.cache.Len() > 0 {
		cctx, cancel := s.withOpTimeout(ctx)
		if err := s.cache.Set(cctx, key, r.png, s.cfg.CacheTTL); err != nil {
			s.logger.WarnContext(ctx, "cache fill failed", "key", key, "err", err)
		}
		cancel()
	}

	stats := r.stats
	s.logger.InfoContext(ctx, "tile rendered",
		"size", req.Size,
		"features", stats.Features,
		"painted", stats.Painted,
		"labels", stats.Labels,
		"bytes", len(r.png),
		"fetch_dur", fetchDur.String(),
		"render_dur", stats.Duration.String(),
		"total_dur", time.Since(start).String())
	return Result{PNG: r.png, Served: servedRender, StyleHash: st.sheet.Hash(), Stats: &stats}, nil
}

// fetch loads and decodes the source tile. A tile missing upstream renders
// as background only.
func (s *Service) fetch(ctx context.Context, t maptile.Tile) (*mvt.Tile, error) {
	fctx := ctx
	if s.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()
	}
	raw, err := s.src.Fetch(fctx, t)
	if errors.Is(err, source.ErrNotFound) {
		s.logger.DebugContext(ctx, "source tile missing, rendering empty tile")
		return &mvt.Tile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	tile, err := mvt.Decode(raw)
	if err != nil {
		return nil, err
	}
	return tile, nil
}

// Info fetches and describes the source tile, followed by how many items
// the active stylesheet paints at its zoom.
func (s *Service) Info(ctx context.Context, z, x, y int) (string, error) {
	t, err := source.Tile(z, x, y, s.cfg.MaxZoom)
	if err != nil {
		return "", err
	}
	tile, err := s.fetch(ctx, t)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := mvt.DumpInfo(&buf, tile); err != nil {
		return "", err
	}
	sheet := s.Stylesheet()
	plan := render.Classify(tile, sheet, z)
	fmt.Fprintf(&buf, "styled items at z%d: %d (stylesheet %016x)\n", z, plan.Len(), sheet.Hash())
	return buf.String(), nil
}

// Keys lists the cache keys of every served size of t under the active
// stylesheet.
func (s *Service) Keys(t maptile.Tile) []string {
	hash := s.Stylesheet().Hash()
	out := make([]string, 0, len(s.cfg.TileSizes))
	for _, size := range s.cfg.TileSizes {
		out = append(out, keys.Key(hash, int(t.Z), int(t.X), int(t.Y), size))
	}
	return out
}

// Invalidate drops the cached renders of tiles and returns how many keys
// were targeted.
func (s *Service) Invalidate(ctx context.Context, tiles []maptile.Tile) (int, error) {
	if s.cache.Len() == 0 || len(tiles) == 0 {
		return 0, nil
	}
	ks := make([]string, 0, len(tiles)*len(s.cfg.TileSizes))
	for _, t := range tiles {
		ks = append(ks, s.Keys(t)...)
	}
	cctx, cancel := s.withOpTimeout(ctx)
	defer cancel()
	if err := s.cache.Del(cctx, ks...); err != nil {
		return 0, fmt.Errorf("invalidate %d keys: %w", len(ks), err)
	}
	return len(ks), nil
}
