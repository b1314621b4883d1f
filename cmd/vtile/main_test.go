package main

import (
	"bytes"
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var buf bytes.Buffer
	app.Writer = &buf
	app.ErrWriter = &buf
	err := app.Run(context.Background(), append([]string{"vtile"}, args...))
	return buf.String(), err
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestCheck_ReportsPositions(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.mapcss")
	bad := filepath.Join(dir, "bad.mapcss")
	writeFile(t, good, []byte("way[highway] { color: #ff0000; width: 2; }\n"))
	writeFile(t, bad, []byte("way { color: 3; }\n"))

	out, err := runApp(t, "check", good, bad)
	if err == nil {
		t.Fatal("expected an error for bad.mapcss")
	}
	if !strings.Contains(out, "good.mapcss: ok, 1 selectors") {
		t.Fatalf("missing ok line:\n%s", out)
	}
	if !strings.Contains(out, "bad.mapcss:1:") {
		t.Fatalf("missing position line:\n%s", out)
	}
}

func TestCheck_ListsProperties(t *testing.T) {
	out, err := runApp(t, "check", "--properties")
	if err != nil {
		t.Fatalf("check --properties: %v\n%s", err, out)
	}
	for _, want := range []string{"text-position", "keyword", "text-color", "color"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i := 1; i < len(lines); i++ {
		prev, cur := strings.Fields(lines[i-1])[0], strings.Fields(lines[i])[0]
		if prev > cur {
			t.Fatalf("properties not sorted: %q before %q", prev, cur)
		}
	}
}

func TestRender_WritesPNG(t *testing.T) {
	dir := t.TempDir()
	style := filepath.Join(dir, "style.mapcss")
	writeFile(t, style, []byte("canvas { fill-color: #ffffff; }\nway[water] { fill-color: #0000ff; }\n"))

	water := geojson.NewFeatureCollection()
	poly := geojson.NewFeature(orb.Polygon{{{0, 0}, {2048, 0}, {2048, 2048}, {0, 2048}, {0, 0}}})
	water.Append(poly)
	data, err := mvt.Marshal(mvt.NewLayers(map[string]*geojson.FeatureCollection{"water": water}))
	if err != nil {
		t.Fatal(err)
	}
	tiles := filepath.Join(dir, "tiles")
	writeFile(t, filepath.Join(tiles, "3", "4", "2.mvt"), data)
	outDir := filepath.Join(dir, "out")

	out, err := runApp(t, "render", "--style", style, "--size", "64", "--out", outDir, "--no-labels", tiles, "3/4/2", "3/0/0")
	if err != nil {
		t.Fatalf("render: %v\n%s", err, out)
	}
	for _, name := range []string{"3-4-2.png", "3-0-0.png"} {
		png, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !bytes.HasPrefix(png, []byte("\x89PNG")) {
			t.Fatalf("%s is not a PNG", name)
		}
	}
	if !strings.Contains(out, "3-4-2.png") {
		t.Fatalf("missing summary line:\n%s", out)
	}

	if _, err := runApp(t, "render", "--style", style, tiles, "3/9/0"); err == nil {
		t.Fatal("expected invalid tile error")
	}
}

func TestMakeTilePool(t *testing.T) {
	pool := makeTilePool(64, 10, 12, rand.New(rand.NewSource(1)))
	if len(pool) != 64 {
		t.Fatalf("pool=%d want 64", len(pool))
	}
	seen := map[string]bool{}
	for _, tl := range pool {
		if tl.Z < 10 || tl.Z > 12 {
			t.Fatalf("tile %v outside zoom range", tl)
		}
		k := tileURL("http://h/", tl, 0)
		if seen[k] {
			t.Fatalf("duplicate tile %v", tl)
		}
		seen[k] = true
	}
}

func TestTileURL(t *testing.T) {
	got := tileURL("http://localhost:8090/", sampleTile(), 512)
	if got != "http://localhost:8090/tiles/5/17/9.png?size=512" {
		t.Fatalf("url=%s", got)
	}
}

func TestPercentile(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5}
	if p := percentile(vals, 50); p != 3 {
		t.Fatalf("p50=%v", p)
	}
	if p := percentile(vals, 100); p != 5 {
		t.Fatalf("p100=%v", p)
	}
	if p := percentile(nil, 95); p != 0 {
		t.Fatalf("empty p95=%v", p)
	}
}

func TestParseBBox(t *testing.T) {
	bb, err := parseBBox("18.0, 59.3,18.1,59.4")
	if err != nil || bb.X2 != 18.1 || bb.SRID != "EPSG:4326" {
		t.Fatalf("bbox=%+v err=%v", bb, err)
	}
	if _, err := parseBBox("1,2,3"); err == nil {
		t.Fatal("expected error")
	}
}

func sampleTile() maptile.Tile { return maptile.New(17, 9, 5) }
