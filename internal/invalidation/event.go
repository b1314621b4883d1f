// Package invalidation turns data change events into the set of tiles
// whose cached renders must be dropped.
package invalidation

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidEvent = errors.New("invalid invalidation event")

type Event struct {
	Version int       `json:"version"`
	Op      string    `json:"op"`
	Layer   string    `json:"layer,omitempty"`
	TS      time.Time `json:"ts"`
	Source  string    `json:"source,omitempty"`
	BBox    *BBox     `json:"bbox,omitempty"`
	Tiles   []TileRef `json:"tiles,omitempty"`
}

type BBox struct {
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	X2   float64 `json:"x2"`
	Y2   float64 `json:"y2"`
	SRID string  `json:"srid"`
}

type TileRef struct {
	Z int `json:"z"`
	X int `json:"x"`
	Y int `json:"y"`
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidEvent, fmt.Sprintf(format, args...))
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return invalid("version must be 1")
	}
	switch e.Op {
	case "insert", "update", "delete":
	default:
		return invalid("op must be insert|update|delete")
	}
	if e.TS.IsZero() {
		return invalid("ts is required")
	}
	hasBBox := e.BBox != nil
	hasTiles := len(e.Tiles) > 0
	if hasBBox == hasTiles {
		return invalid("exactly one of bbox or tiles is required")
	}
	if hasTiles {
		for _, t := range e.Tiles {
			if t.Z < 0 || t.Z > 30 {
				return invalid("tile zoom %d out of range", t.Z)
			}
			n := 1 << uint(t.Z)
			if t.X < 0 || t.Y < 0 || t.X >= n || t.Y >= n {
				return invalid("tile %d/%d/%d out of range", t.Z, t.X, t.Y)
			}
		}
		return nil
	}
	bb := *e.BBox
	if strings.ToUpper(strings.TrimSpace(bb.SRID)) != "EPSG:4326" {
		return invalid("bbox.srid must be EPSG:4326")
	}
	if !(bb.X1 >= -180 && bb.X1 <= 180 && bb.X2 >= -180 && bb.X2 <= 180) {
		return invalid("bbox longitude out of range")
	}
	if !(bb.Y1 >= -90 && bb.Y1 <= 90 && bb.Y2 >= -90 && bb.Y2 <= 90) {
		return invalid("bbox latitude out of range")
	}
	if !(bb.X2 > bb.X1 && bb.Y2 > bb.Y1) {
		return invalid("bbox must satisfy x2>x1 and y2>y1")
	}
	return nil
}
