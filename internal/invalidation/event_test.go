package invalidation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

func mustTS() time.Time { return time.Date(2025, 10, 26, 12, 30, 45, 0, time.UTC) }

func TestEvent_Validate(t *testing.T) {
	bbox := &BBox{X1: 11, Y1: 55, X2: 12, Y2: 56, SRID: "EPSG:4326"}
	tests := []struct {
		name string
		ev   Event
		ok   bool
	}{
		{"bbox", Event{Version: 1, Op: "delete", TS: mustTS(), BBox: bbox}, true},
		{"tiles", Event{Version: 1, Op: "insert", TS: mustTS(), Tiles: []TileRef{{Z: 3, X: 7, Y: 0}}}, true},
		{"both", Event{Version: 1, Op: "update", TS: mustTS(), BBox: bbox, Tiles: []TileRef{{}}}, false},
		{"neither", Event{Version: 1, Op: "update", TS: mustTS()}, false},
		{"version", Event{Version: 2, Op: "update", TS: mustTS(), BBox: bbox}, false},
		{"op", Event{Version: 1, Op: "upsert", TS: mustTS(), BBox: bbox}, false},
		{"ts", Event{Version: 1, Op: "update", BBox: bbox}, false},
		{"srid", Event{Version: 1, Op: "update", TS: mustTS(), BBox: &BBox{X1: 11, Y1: 55, X2: 12, Y2: 56, SRID: "EPSG:3857"}}, false},
		{"flat bbox", Event{Version: 1, Op: "update", TS: mustTS(), BBox: &BBox{X1: 11, Y1: 55, X2: 11, Y2: 56, SRID: "EPSG:4326"}}, false},
		{"tile outside zoom", Event{Version: 1, Op: "update", TS: mustTS(), Tiles: []TileRef{{Z: 3, X: 8, Y: 0}}}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.ev.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidEvent) {
				t.Fatalf("err=%v want ErrInvalidEvent", err)
			}
		})
	}
}

func TestTiles_BBoxAcrossZooms(t *testing.T) {
	// a small box around Stockholm
	ev := Event{BBox: &BBox{X1: 18.0, Y1: 59.3, X2: 18.1, Y2: 59.35, SRID: "EPSG:4326"}}
	tiles, err := Tiles(ev, Range{MinZoom: 0, MaxZoom: 10})
	if err != nil {
		t.Fatalf("Tiles: %v", err)
	}
	perZoom := map[maptile.Zoom]int{}
	for _, tl := range tiles {
		perZoom[tl.Z]++
	}
	for z := maptile.Zoom(0); z <= 10; z++ {
		if perZoom[z] == 0 {
			t.Fatalf("zoom %d has no tiles", z)
		}
	}
	if perZoom[0] != 1 {
		t.Fatalf("zoom 0 tiles=%d want 1", perZoom[0])
	}
	found := false
	center := maptile.At(orb.Point{18.05, 59.32}, 10)
	for _, tl := range tiles {
		if tl == center {
			found = true
		}
	}
	if !found {
		t.Fatalf("center tile %v missing", center)
	}
}

func TestTiles_WholeWorldClampsEdges(t *testing.T) {
	ev := Event{BBox: &BBox{X1: -180, Y1: -90, X2: 180, Y2: 90, SRID: "EPSG:4326"}}
	tiles, err := Tiles(ev, Range{MinZoom: 2, MaxZoom: 2})
	if err != nil {
		t.Fatalf("Tiles: %v", err)
	}
	if len(tiles) != 16 {
		t.Fatalf("tiles=%d want 16", len(tiles))
	}
	for _, tl := range tiles {
		if tl.X > 3 || tl.Y > 3 {
			t.Fatalf("tile %v outside zoom 2 grid", tl)
		}
	}

	if _, err := Tiles(ev, Range{MinZoom: 0, MaxZoom: 12, MaxTiles: 1000}); !errors.Is(err, ErrTooManyTiles) {
		t.Fatalf("err=%v want ErrTooManyTiles", err)
	}
}

func TestTiles_ExplicitFilteredByRange(t *testing.T) {
	ev := Event{Tiles: []TileRef{{Z: 2, X: 1, Y: 1}, {Z: 9, X: 3, Y: 4}, {Z: 15, X: 0, Y: 0}}}
	tiles, err := Tiles(ev, Range{MinZoom: 0, MaxZoom: 14})
	if err != nil {
		t.Fatal(err)
	}
	want := []maptile.Tile{maptile.New(1, 1, 2), maptile.New(3, 4, 9)}
	if len(tiles) != len(want) || tiles[0] != want[0] || tiles[1] != want[1] {
		t.Fatalf("tiles=%v want %v", tiles, want)
	}
}

type recordingTarget struct {
	got []maptile.Tile
	err error
}

func (r *recordingTarget) Invalidate(_ context.Context, tiles []maptile.Tile) (int, error) {
	r.got = append(r.got, tiles...)
	return 2 * len(tiles), r.err
}

func TestProcessor_ProcessJSON(t *testing.T) {
	rt := &recordingTarget{}
	p := NewProcessor(rt, Range{MinZoom: 0, MaxZoom: 14}, nil)
	ctx := context.Background()

	n, err := p.ProcessJSON(ctx, "http", []byte(`{"version":1,"op":"update","ts":"2025-10-26T12:00:00Z","tiles":[{"z":4,"x":8,"y":5}]}`))
	if err != nil || n != 2 {
		t.Fatalf("ProcessJSON = %d, %v", n, err)
	}
	if len(rt.got) != 1 || rt.got[0] != maptile.New(8, 5, 4) {
		t.Fatalf("target got %v", rt.got)
	}

	if _, err := p.ProcessJSON(ctx, "http", []byte(`{nope`)); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("err=%v want ErrInvalidEvent", err)
	}

	rt.err = errors.New("redis down")
	if _, err := p.ProcessJSON(ctx, "http", []byte(`{"version":1,"op":"delete","ts":"2025-10-26T12:00:00Z","tiles":[{"z":1,"x":0,"y":0}]}`)); err == nil {
		t.Fatal("expected target error")
	}
}
