package render

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/vtile-mapcss/internal/mapcss"
	"github.com/mohammed-shakir/vtile-mapcss/internal/mvt"
)

// Placement is a label centre in device pixels and its rotation in radians.
type Placement struct {
	X, Y  float64
	Angle float64
}

// PathBounds is the bounding box of every vertex in paths.
func PathBounds(paths []orb.LineString) (orb.Bound, bool) {
	var (
		b  orb.Bound
		ok bool
	)
	for _, ls := range paths {
		if len(ls) == 0 {
			continue
		}
		if !ok {
			b, ok = ls.Bound(), true
			continue
		}
		b = b.Union(ls.Bound())
	}
	return b, ok
}

// LongestSegment finds the longest straight segment across all paths.
func LongestSegment(paths []orb.LineString) (a, b orb.Point, length float64, ok bool) {
	for _, ls := range paths {
		for i := 1; i < len(ls); i++ {
			d := math.Hypot(ls[i][0]-ls[i-1][0], ls[i][1]-ls[i-1][1])
			if d > length {
				a, b, length, ok = ls[i-1], ls[i], d, true
			}
		}
	}
	return a, b, length, ok
}

// UprightAngle is the direction of a->b folded into (-pi/2, pi/2] so text
// along it never reads upside down.
func UprightAngle(a, b orb.Point) float64 {
	angle := math.Atan2(b[1]-a[1], b[0]-a[0])
	if angle > math.Pi/2 {
		angle -= math.Pi
	} else if angle <= -math.Pi/2 {
		angle += math.Pi
	}
	return angle
}

// RotatedBounds is the size of the axis aligned box around a w x h
// rectangle rotated by angle about its centre.
func RotatedBounds(w, h, angle float64) (float64, float64) {
	cos, sin := math.Cos(angle), math.Sin(angle)
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range [4][2]float64{{-w / 2, -h / 2}, {w / 2, -h / 2}, {w / 2, h / 2}, {-w / 2, h / 2}} {
		x := c[0]*cos - c[1]*sin
		y := c[0]*sin + c[1]*cos
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	return maxX - minX, maxY - minY
}

// Anchor computes where a label of width textW goes on a feature. Points
// anchor at their first vertex, polygons at their bbox centre, lines on the midpoint of their longest segment when the
// text fits along it. Lines with text-position line follow the segment.
func Anchor(geom mvt.GeomType, paths []orb.LineString, textW float64, pos mapcss.Enum) (Placement, bool) {
	switch geom {
	case mvt.GeomPoint:
		if len(paths) == 0 || len(paths[0]) == 0 {
			return Placement{}, false
		}
		p := paths[0][0]
		return Placement{X: p[0], Y: p[1]}, true

	case mvt.GeomPolygon:
		b, ok := PathBounds(paths)
		if !ok {
			return Placement{}, false
		}
		c := b.Center()
		return Placement{X: c[0], Y: c[1]}, true

	case mvt.GeomLineString:
		a, b, length, ok := LongestSegment(paths)
		if !ok || textW > length {
			return Placement{}, false
		}
		pl := Placement{X: (a[0] + b[0]) / 2, Y: (a[1] + b[1]) / 2}
		if pos == mapcss.TextPositionLine {
			pl.Angle = UprightAngle(a, b)
		}
		return pl, true
	}
	return Placement{}, false
}

func boxAt(x, y, w, h float64) orb.Bound {
	return orb.Bound{Min: orb.Point{x - w/2, y - h/2}, Max: orb.Point{x + w/2, y + h/2}}
}

// Collider keeps the boxes of placed labels. Placement is greedy: the first
// label to claim space keeps it.
type Collider struct {
	boxes []orb.Bound
}

// overlaps is true when a and b share interior area. Boxes that only
// touch do not collide.
func overlaps(a, b orb.Bound) bool {
	return a.Min[0] < b.Max[0] && b.Min[0] < a.Max[0] &&
		a.Min[1] < b.Max[1] && b.Min[1] < a.Max[1]
}

func (c *Collider) free(b orb.Bound) bool {
	for _, o := range c.boxes {
		if overlaps(o, b) {
			return false
		}
	}
	return true
}

// Place reserves a w x h box for pl. When shift is set and the centred box
// is taken, the box is tried above, below, right and left of the anchor.
// It returns the centre that was reserved.
func (c *Collider) Place(pl Placement, w, h float64, shift bool) (Placement, bool) {
	offsets := [][2]float64{{0, 0}}
	if shift {
		offsets = append(offsets, [2]float64{0, -h}, [2]float64{0, h}, [2]float64{w, 0}, [2]float64{-w, 0})
	}
	for _, o := range offsets {
		cand := Placement{X: pl.X + o[0], Y: pl.Y + o[1], Angle: pl.Angle}
		b := boxAt(cand.X, cand.Y, w, h)
		if c.free(b) {
			c.boxes = append(c.boxes, b)
			return cand, true
		}
	}
	return Placement{}, false
}

// Len is the number of reserved boxes.
func (c *Collider) Len() int { return len(c.boxes) }
