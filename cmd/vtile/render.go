package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/paulmach/orb/maptile"
	cli "github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/vtile-mapcss/internal/core/httpclient"
	"github.com/mohammed-shakir/vtile-mapcss/internal/mapcss"
	"github.com/mohammed-shakir/vtile-mapcss/internal/mvt"
	"github.com/mohammed-shakir/vtile-mapcss/internal/render"
	"github.com/mohammed-shakir/vtile-mapcss/internal/render/ggcanvas"
	"github.com/mohammed-shakir/vtile-mapcss/internal/source"
)

// deepest zoom accepted on the command line
const cliMaxZoom = 30

func openSource(ctx context.Context, location string) (source.Interface, error) {
	return source.Open(location, httpclient.NewOutbound(), source.WithLogger(loggerFrom(ctx)))
}

func parseTiles(args []string) ([]maptile.Tile, error) {
	if len(args) == 0 {
		return nil, errors.New("no tiles given")
	}
	out := make([]maptile.Tile, 0, len(args))
	for _, a := range args {
		t, err := source.ParseTile(a, cliMaxZoom)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// fetchTile returns an empty tile for addresses the source does not have.
func fetchTile(ctx context.Context, src source.Interface, t maptile.Tile) (*mvt.Tile, error) {
	data, err := src.Fetch(ctx, t)
	if errors.Is(err, source.ErrNotFound) {
		return &mvt.Tile{}, nil
	}
	if err != nil {
		return nil, err
	}
	return mvt.Decode(data)
}

func runRender(ctx context.Context, cmd *cli.Command) error {
	log := loggerFrom(ctx).With("cmd", "render")
	if cmd.NArg() < 2 {
		return errors.New("usage: vtile render --style FILE SOURCE Z/X/Y...")
	}
	tiles, err := parseTiles(cmd.Args().Slice()[1:])
	if err != nil {
		return err
	}
	size := cmd.Int("size")
	if size <= 0 {
		return fmt.Errorf("size must be positive, got %d", size)
	}

	sheet, err := mapcss.LoadFile(cmd.String("style"))
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.String("style"), err)
	}
	src, err := openSource(ctx, cmd.Args().First())
	if err != nil {
		return err
	}

	var (
		shaper *ggcanvas.Shaper
		ts     render.TextShaper
	)
	if !cmd.Bool("no-labels") {
		if shaper, err = ggcanvas.NewShaper(64); err != nil {
			return fmt.Errorf("load fonts: %w", err)
		}
		ts = shaper
	}
	r := render.New(sheet, ts, log)

	outDir := cmd.String("out")
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var mu sync.Mutex
	w := cmd.Root().Writer
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, cmd.Int("jobs")))
	for _, t := range tiles {
		g.Go(func() error {
			path := filepath.Join(outDir, fmt.Sprintf("%d-%d-%d.png", t.Z, t.X, t.Y))
			stats, err := renderFile(gctx, r, src, shaper, t, size, path)
			if err != nil {
				return fmt.Errorf("tile %d/%d/%d: %w", t.Z, t.X, t.Y, err)
			}
			if stats.FeatureErrs != nil {
				log.Warn("features skipped", "tile", fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y), "err", stats.FeatureErrs)
			}
			mu.Lock()
			defer mu.Unlock()
			_, _ = fmt.Fprintf(w, "%s\tfeatures=%d painted=%d labels=%d dropped=%d %s\n",
				path, stats.Features, stats.Painted, stats.Labels, stats.LabelsDropped, stats.Duration)
			return nil
		})
	}
	return g.Wait()
}

func renderFile(ctx context.Context, r *render.Renderer, src source.Interface, shaper *ggcanvas.Shaper, t maptile.Tile, size int, path string) (render.Stats, error) {
	tile, err := fetchTile(ctx, src, t)
	if err != nil {
		return render.Stats{}, err
	}
	c, err := ggcanvas.New(size, size, shaper)
	if err != nil {
		return render.Stats{}, err
	}
	defer func() { _ = c.Close() }()

	stats, err := r.Render(ctx, tile, size, int(t.Z), c)
	if err != nil {
		return stats, err
	}
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return stats, err
	}
	if err := c.EncodePNG(f); err != nil {
		_ = f.Close()
		return stats, err
	}
	return stats, f.Close()
}

func runInfo(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 2 {
		return errors.New("usage: vtile info [--style FILE] SOURCE Z/X/Y")
	}
	t, err := source.ParseTile(cmd.Args().Get(1), cliMaxZoom)
	if err != nil {
		return err
	}
	src, err := openSource(ctx, cmd.Args().First())
	if err != nil {
		return err
	}
	tile, err := fetchTile(ctx, src, t)
	if err != nil {
		return err
	}
	w := cmd.Root().Writer
	if err := mvt.DumpInfo(w, tile); err != nil {
		return err
	}
	if path := cmd.String("style"); path != "" {
		sheet, err := mapcss.LoadFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		plan := render.Classify(tile, sheet, int(t.Z))
		_, _ = fmt.Fprintf(w, "styled items at z%d: %d\n", t.Z, plan.Len())
	}
	return nil
}
