package invalidation

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// web mercator latitude limit
const maxLat = 85.05112877980659

var ErrTooManyTiles = errors.New("invalidation covers too many tiles")

// Range bounds the zoom levels a bbox expands to and caps the tile count.
type Range struct {
	MinZoom  int
	MaxZoom  int
	MaxTiles int
}

// DefaultMaxTiles caps one event's expansion.
const DefaultMaxTiles = 250_000

// Tiles lists the tiles an event touches. Explicit tiles are kept when
// their zoom lies in the range; a bbox is covered at every zoom of it.
func Tiles(ev Event, r Range) ([]maptile.Tile, error) {
	if r.MaxTiles <= 0 {
		r.MaxTiles = DefaultMaxTiles
	}
	if len(ev.Tiles) > 0 {
		out := make([]maptile.Tile, 0, len(ev.Tiles))
		for _, t := range ev.Tiles {
			if t.Z < r.MinZoom || t.Z > r.MaxZoom {
				continue
			}
			out = append(out, maptile.New(uint32(t.X), uint32(t.Y), maptile.Zoom(t.Z)))
		}
		return out, nil
	}
	if ev.BBox == nil {
		return nil, invalid("missing bbox or tiles")
	}
	b := orb.Bound{
		Min: orb.Point{ev.BBox.X1, clampLat(ev.BBox.Y1)},
		Max: orb.Point{ev.BBox.X2, clampLat(ev.BBox.Y2)},
	}

	var out []maptile.Tile
	for z := r.MinZoom; z <= r.MaxZoom; z++ {
		ts, err := tilesInBound(b, maptile.Zoom(z), r.MaxTiles-len(out))
		if err != nil {
			return nil, fmt.Errorf("zoom %d: %w", z, err)
		}
		out = append(out, ts...)
	}
	return out, nil
}

func clampLat(lat float64) float64 {
	switch {
	case lat > maxLat:
		return maxLat
	case lat < -maxLat:
		return -maxLat
	}
	return lat
}

func tilesInBound(b orb.Bound, z maptile.Zoom, budget int) ([]maptile.Tile, error) {
	minT := maptile.At(b.Min, z)
	maxT := maptile.At(b.Max, z)

	minX, maxX := minT.X, maxT.X
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	// tile y grows southward, so the bbox max latitude has the smaller y
	minY, maxY := minT.Y, maxT.Y
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	// the east and south edges land one past the last tile
	last := uint32(1)<<uint32(z) - 1
	maxX = min(maxX, last)
	maxY = min(maxY, last)

	n := int(maxX-minX+1) * int(maxY-minY+1)
	if n > budget {
		return nil, fmt.Errorf("%w: %d tiles", ErrTooManyTiles, n)
	}
	out := make([]maptile.Tile, 0, n)
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			out = append(out, maptile.New(x, y, z))
		}
	}
	return out, nil
}
