package render

import (
	"errors"
	"math"
	"unicode/utf8"

	"github.com/mohammed-shakir/vtile-mapcss/internal/mvt"
)

type event struct {
	surface int
	op      string
	rgba    [4]float64
	width   float64
	dash    []float64
	cap     LineCap
	join    LineJoin
	path    [][2]float64
	text    string
	x, y    float64
	srcW    int
	srcH    int
}

type paintLog struct {
	events   []event
	surfaces int
}

// fakeCanvas records paint calls. Offscreen surfaces share the log of the
// canvas that created them.
type fakeCanvas struct {
	id    int
	w, h  int
	log   *paintLog
	m     [6]float64
	stack [][6]float64
	rgba  [4]float64
	width float64
	dash  []float64
	cap   LineCap
	join  LineJoin
	path  [][2]float64
}

func newFakeCanvas(w, h int) *fakeCanvas {
	return &fakeCanvas{w: w, h: h, log: &paintLog{}, m: [6]float64{1, 0, 0, 1, 0, 0}}
}

func (c *fakeCanvas) apply(x, y float64) [2]float64 {
	m := c.m
	return [2]float64{m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]}
}

func (c *fakeCanvas) mul(n [6]float64) {
	m := c.m
	c.m = [6]float64{
		m[0]*n[0] + m[2]*n[1],
		m[1]*n[0] + m[3]*n[1],
		m[0]*n[2] + m[2]*n[3],
		m[1]*n[2] + m[3]*n[3],
		m[0]*n[4] + m[2]*n[5] + m[4],
		m[1]*n[4] + m[3]*n[5] + m[5],
	}
}

func (c *fakeCanvas) record(op string) {
	c.log.events = append(c.log.events, event{
		surface: c.id, op: op, rgba: c.rgba, width: c.width,
		dash: c.dash, cap: c.cap, join: c.join, path: c.path,
	})
}

func (c *fakeCanvas) Width() int  { return c.w }
func (c *fakeCanvas) Height() int { return c.h }
func (c *fakeCanvas) Save()       { c.stack = append(c.stack, c.m) }
func (c *fakeCanvas) Restore() {
	if n := len(c.stack); n > 0 {
		c.m = c.stack[n-1]
		c.stack = c.stack[:n-1]
	}
}
func (c *fakeCanvas) Scale(sx, sy float64)     { c.mul([6]float64{sx, 0, 0, sy, 0, 0}) }
func (c *fakeCanvas) Translate(x, y float64)   { c.mul([6]float64{1, 0, 0, 1, x, y}) }
func (c *fakeCanvas) Rotate(a float64)         { c.mul([6]float64{math.Cos(a), math.Sin(a), -math.Sin(a), math.Cos(a), 0, 0}) }
func (c *fakeCanvas) MoveTo(x, y float64)      { c.path = append(c.path, c.apply(x, y)) }
func (c *fakeCanvas) LineTo(x, y float64)      { c.path = append(c.path, c.apply(x, y)) }
func (c *fakeCanvas) ClosePath()               {}
func (c *fakeCanvas) SetLineWidth(w float64)   { c.width = w }
func (c *fakeCanvas) SetLineCap(cp LineCap)    { c.cap = cp }
func (c *fakeCanvas) SetLineJoin(j LineJoin)   { c.join = j }
func (c *fakeCanvas) Clip()                    { c.path = nil }
func (c *fakeCanvas) SetSourceRGBA(r, g, b, a float64) {
	c.rgba = [4]float64{r, g, b, a}
}
func (c *fakeCanvas) SetDash(p []float64, _ float64) { c.dash = p }

func (c *fakeCanvas) Rectangle(x, y, w, h float64) {
	c.MoveTo(x, y)
	c.LineTo(x+w, y)
	c.LineTo(x+w, y+h)
	c.LineTo(x, y+h)
}

func (c *fakeCanvas) Stroke() error {
	c.record("stroke")
	c.path = nil
	return nil
}

func (c *fakeCanvas) StrokePreserve() error {
	c.record("stroke")
	return nil
}

func (c *fakeCanvas) Fill() error {
	c.record("fill")
	c.path = nil
	return nil
}

var errNoInk = errors.New("out of ink")

func (c *fakeCanvas) DrawText(t ShapedText, x, y float64) error {
	if t.Text == "NOINK" {
		return errNoInk
	}
	c.log.events = append(c.log.events, event{surface: c.id, op: "text", rgba: c.rgba, text: t.Text, x: x, y: y})
	return nil
}

func (c *fakeCanvas) NewSurface(w, h int) (Canvas, error) {
	if w <= 0 || h <= 0 {
		return nil, errors.New("bad surface size")
	}
	c.log.surfaces++
	return &fakeCanvas{id: c.log.surfaces, w: w, h: h, log: c.log, m: [6]float64{1, 0, 0, 1, 0, 0}}, nil
}

func (c *fakeCanvas) Composite(src Canvas, x, y float64) error {
	p := c.apply(x, y)
	c.log.events = append(c.log.events, event{
		surface: c.id, op: "composite", x: p[0], y: p[1], srcW: src.Width(), srcH: src.Height(),
	})
	return nil
}

// main returns the events painted on the tile canvas itself.
func (c *fakeCanvas) main() []event {
	var out []event
	for _, e := range c.log.events {
		if e.surface == 0 {
			out = append(out, e)
		}
	}
	return out
}

// fixedShaper gives every rune 6px of width and a 12px line.
type fixedShaper struct{}

func (fixedShaper) Shape(text string, font FontDesc) (ShapedText, error) {
	if text == "BOOM" {
		return ShapedText{}, errors.New("no glyphs")
	}
	return ShapedText{
		Text:   text,
		Font:   font,
		Width:  6 * float64(utf8.RuneCountInString(text)),
		Height: 12,
		Ascent: 9,
	}, nil
}

// tile building helpers

func zz(n int32) uint32 { return uint32((n << 1) ^ (n >> 31)) }

func cmd(id, count uint32) uint32 { return id | count<<3 }

// polyGeom encodes a closed square with corner (x, y) and side s in tile
// units, starting from the origin cursor.
func polyGeom(x, y, s int32) []uint32 {
	return []uint32{
		cmd(1, 1), zz(x), zz(y),
		cmd(2, 3), zz(s), zz(0), zz(0), zz(s), zz(-s), zz(0),
		cmd(7, 1),
	}
}

// lineGeom encodes an open polyline through absolute points.
func lineGeom(pts ...[2]int32) []uint32 {
	out := []uint32{cmd(1, 1), zz(pts[0][0]), zz(pts[0][1]), cmd(2, uint32(len(pts)-1))}
	for i := 1; i < len(pts); i++ {
		out = append(out, zz(pts[i][0]-pts[i-1][0]), zz(pts[i][1]-pts[i-1][1]))
	}
	return out
}

func pointGeom(x, y int32) []uint32 {
	return []uint32{cmd(1, 1), zz(x), zz(y)}
}

// layerBuilder assembles a layer with string tags.
type layerBuilder struct {
	l    mvt.Layer
	keys map[string]uint32
	vals map[string]uint32
}

func newLayer(name string) *layerBuilder {
	return &layerBuilder{
		l:    mvt.Layer{Name: name, Extent: mvt.DefaultExtent},
		keys: map[string]uint32{},
		vals: map[string]uint32{},
	}
}

func (b *layerBuilder) add(id uint64, typ mvt.GeomType, geom []uint32, kv ...string) *layerBuilder {
	f := mvt.Feature{ID: id, Type: typ, Geometry: geom}
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := b.keys[kv[i]]
		if !ok {
			k = uint32(len(b.l.Keys))
			b.keys[kv[i]] = k
			b.l.Keys = append(b.l.Keys, kv[i])
		}
		v, ok := b.vals[kv[i+1]]
		if !ok {
			v = uint32(len(b.l.Values))
			b.vals[kv[i+1]] = v
			b.l.Values = append(b.l.Values, mvt.StringValue(kv[i+1]))
		}
		f.Tags = append(f.Tags, k, v)
	}
	b.l.Features = append(b.l.Features, f)
	return b
}

func (b *layerBuilder) layer() mvt.Layer { return b.l }
