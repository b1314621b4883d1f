// Package source fetches encoded vector tiles by z/x/y, either from an
// upstream HTTP tile server or from a z/x/y directory tree on disk.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/paulmach/orb/maptile"
)

var (
	ErrNotFound    = errors.New("tile not found")
	ErrInvalidTile = errors.New("invalid tile address")
)

type Interface interface {
	Fetch(ctx context.Context, t maptile.Tile) ([]byte, error)
}

// Tile validates a z/x/y address against the zoom limit and the tile
// count at that zoom.
func Tile(z, x, y, maxZoom int) (maptile.Tile, error) {
	if z < 0 || z > maxZoom || z > 31 {
		return maptile.Tile{}, fmt.Errorf("%w: zoom %d outside 0..%d", ErrInvalidTile, z, maxZoom)
	}
	n := 1 << uint(z)
	if x < 0 || y < 0 || x >= n || y >= n {
		return maptile.Tile{}, fmt.Errorf("%w: %d/%d/%d", ErrInvalidTile, z, x, y)
	}
	return maptile.New(uint32(x), uint32(y), maptile.Zoom(z)), nil
}

// Open picks the source kind from the location: anything with a scheme is
// a URL template, everything else a directory.
func Open(location string, client *http.Client, opts ...HTTPOption) (Interface, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, errors.New("tile source location is empty")
	}
	if strings.Contains(location, "://") {
		return NewHTTP(client, location, opts...)
	}
	return NewDir(location)
}

// ParseTile reads a "z/x/y" address.
func ParseTile(s string, maxZoom int) (maptile.Tile, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return maptile.Tile{}, fmt.Errorf("%w: %q is not z/x/y", ErrInvalidTile, s)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return maptile.Tile{}, fmt.Errorf("%w: %q is not z/x/y", ErrInvalidTile, s)
		}
		v[i] = n
	}
	return Tile(v[0], v[1], v[2], maxZoom)
}
