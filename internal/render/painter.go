package render

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mohammed-shakir/vtile-mapcss/internal/mapcss"
	"github.com/mohammed-shakir/vtile-mapcss/internal/mvt"
)

type stroke struct {
	color   mapcss.Color
	opacity float64
	width   float64
	dash    []float64
	cap     LineCap
	join    LineJoin
}

func lineCap(e mapcss.Enum) LineCap {
	switch e {
	case mapcss.LineCapRound:
		return CapRound
	case mapcss.LineCapSquare:
		return CapSquare
	default:
		return CapButt
	}
}

func lineJoin(e mapcss.Enum) LineJoin {
	switch e {
	case mapcss.LineJoinMiter:
		return JoinMiter
	case mapcss.LineJoinBevel:
		return JoinBevel
	default:
		return JoinRound
	}
}

func mainStroke(st *mapcss.Style) stroke {
	return stroke{
		color:   st.Color("color"),
		opacity: st.Num("opacity"),
		width:   st.Num("width"),
		dash:    st.Dash("dashes").Pattern(),
		cap:     lineCap(st.Enum("linecap")),
		join:    lineJoin(st.Enum("linejoin")),
	}
}

// casingStroke widens the line by casing-width on each side. Casing dash,
// cap and join fall back to the line's own values when unset.
func casingStroke(st *mapcss.Style) stroke {
	s := mainStroke(st)
	s.color = st.Color("casing-color")
	s.opacity = st.Num("casing-opacity")
	s.width = st.Num("width") + 2*st.Num("casing-width")
	if st.Has("casing-dashes") {
		s.dash = st.Dash("casing-dashes").Pattern()
	}
	if st.Has("casing-linecap") {
		s.cap = lineCap(st.Enum("casing-linecap"))
	}
	if st.Has("casing-linejoin") {
		s.join = lineJoin(st.Enum("casing-linejoin"))
	}
	return s
}

func (s stroke) visible() bool { return s.width > 0 && s.opacity > 0 }

// painter draws classified features onto one canvas. It is not safe for
// concurrent use.
type painter struct {
	c        Canvas
	tileSize float64
}

func (p *painter) scale(l *mvt.Layer) float64 {
	ext := l.Extent
	if ext == 0 {
		ext = mvt.DefaultExtent
	}
	return p.tileSize / float64(ext)
}

func (p *painter) background(st *mapcss.Style) error {
	fc := st.Color("fill-color")
	p.c.SetSourceRGBA(fc.R, fc.G, fc.B, st.Num("fill-opacity"))
	p.c.Rectangle(0, 0, float64(p.c.Width()), float64(p.c.Height()))
	return p.c.Fill()
}

// emit adds the feature path to the canvas in tile units under a scale
// transform. The cursor follows vector tile rules: it starts at the origin
// and ClosePath does not move it.
func (p *painter) emit(ops []mvt.PathOp, scale float64) {
	p.c.Save()
	p.c.Scale(scale, scale)
	var x, y int64
	for _, op := range ops {
		switch op.Op {
		case mvt.OpMoveBy:
			x += int64(op.DX)
			y += int64(op.DY)
			p.c.MoveTo(float64(x), float64(y))
		case mvt.OpLineBy:
			x += int64(op.DX)
			y += int64(op.DY)
			p.c.LineTo(float64(x), float64(y))
		case mvt.OpClose:
			p.c.ClosePath()
		}
	}
	p.c.Restore()
}

func (p *painter) setStroke(s stroke) {
	p.c.SetSourceRGBA(s.color.R, s.color.G, s.color.B, s.opacity)
	p.c.SetLineWidth(s.width)
	p.c.SetDash(s.dash, 0)
	p.c.SetLineCap(s.cap)
	p.c.SetLineJoin(s.join)
}

// casing paints the wider under-stroke of a line.
func (p *painter) casing(it Item) error {
	if it.Feature.Type != mvt.GeomLineString {
		return nil
	}
	ops, err := mvt.DecodePath(it.Feature.Geometry)
	if err != nil {
		return err
	}
	s := casingStroke(it.Style)
	if !s.visible() {
		return nil
	}
	p.emit(ops, p.scale(it.Layer))
	p.setStroke(s)
	if err := p.c.Stroke(); err != nil {
		return fmt.Errorf("stroke casing: %w", err)
	}
	return nil
}

// feature runs the main pass for one item and returns its device space
// paths for label placement.
func (p *painter) feature(it Item) ([]orb.LineString, error) {
	ops, err := mvt.DecodePath(it.Feature.Geometry)
	if err != nil {
		return nil, err
	}
	scale := p.scale(it.Layer)
	st := it.Style

	switch it.Feature.Type {
	case mvt.GeomPolygon:
		p.emit(ops, scale)
		if s := mainStroke(st); s.visible() {
			p.setStroke(s)
			if err := p.c.StrokePreserve(); err != nil {
				return nil, fmt.Errorf("stroke polygon: %w", err)
			}
		}
		fc := st.Color("fill-color")
		p.c.SetSourceRGBA(fc.R, fc.G, fc.B, st.Num("fill-opacity"))
		if err := p.c.Fill(); err != nil {
			return nil, fmt.Errorf("fill polygon: %w", err)
		}
	case mvt.GeomLineString:
		s := mainStroke(st)
		if s.visible() {
			p.emit(ops, scale)
			p.setStroke(s)
			if err := p.c.Stroke(); err != nil {
				return nil, fmt.Errorf("stroke line: %w", err)
			}
		}
	}
	return mvt.Absolute(ops, scale), nil
}

// pendingLabel is a label collected during the geometry passes.
type pendingLabel struct {
	text  string
	style *mapcss.Style
	geom  mvt.GeomType
	paths []orb.LineString
}

// labelText resolves the text property against the feature tags and applies
// text-transform.
func labelText(st *mapcss.Style, tags map[string]string) (string, bool) {
	key := st.Str("text")
	if key == "" {
		return "", false
	}
	s := tags[key]
	if s == "" {
		return "", false
	}
	switch st.Enum("text-transform") {
	case mapcss.TextTransformUppercase:
		s = cases.Upper(language.Und).String(s)
	case mapcss.TextTransformLowercase:
		s = cases.Lower(language.Und).String(s)
	case mapcss.TextTransformCapitalize:
		s = cases.Title(language.Und).String(s)
	}
	return s, true
}

func fontFor(st *mapcss.Style) FontDesc {
	return FontDesc{
		Family:    st.Str("font-family"),
		Size:      st.Num("font-size"),
		Bold:      st.Enum("font-weight") == mapcss.FontWeightBold,
		Italic:    st.Enum("font-style") == mapcss.FontStyleItalic,
		SmallCaps: st.Enum("font-variant") == mapcss.FontVariantSmallCaps,
	}
}

// halo directions, unit length.
var haloOffsets = [8][2]float64{
	{-1, -1}, {0, -1}, {1, -1}, {-1, 0}, {1, 0}, {-1, 1}, {0, 1}, {1, 1},
}

func labelPad(st *mapcss.Style) int {
	return int(math.Ceil(math.Max(st.Num("text-halo-radius"), 0))) + 1
}

// labelSize is the box a label occupies once rotated.
func labelSize(t ShapedText, st *mapcss.Style, angle float64) (float64, float64) {
	pad := float64(2 * labelPad(st))
	w, h := math.Ceil(t.Width)+pad, math.Ceil(t.Height)+pad
	if angle == 0 {
		return w, h
	}
	return RotatedBounds(w, h, angle)
}

// paintLabel renders the text on an offscreen surface, rotates it onto a
// second surface sized to the rotated box when needed, and composites the
// result centred on pl.
func (p *painter) paintLabel(t ShapedText, st *mapcss.Style, pl Placement) error {
	pad := labelPad(st)
	w := int(math.Ceil(t.Width)) + 2*pad
	h := int(math.Ceil(t.Height)) + 2*pad

	surf, err := p.c.NewSurface(w, h)
	if err != nil {
		return fmt.Errorf("label surface: %w", err)
	}
	x0, y0 := float64(pad), float64(pad)+t.Ascent
	alpha := st.Num("text-opacity")

	if r := st.Num("text-halo-radius"); r > 0 {
		hc := st.Color("text-halo-color")
		surf.SetSourceRGBA(hc.R, hc.G, hc.B, alpha)
		for _, o := range haloOffsets {
			if err := surf.DrawText(t, x0+o[0]*r, y0+o[1]*r); err != nil {
				return fmt.Errorf("label halo: %w", err)
			}
		}
	}

	tc := st.Color("text-color")
	surf.SetSourceRGBA(tc.R, tc.G, tc.B, alpha)
	if err := surf.DrawText(t, x0, y0); err != nil {
		return fmt.Errorf("label text: %w", err)
	}
	if st.Enum("text-decoration") == mapcss.TextDecorationUnderline {
		surf.SetLineWidth(math.Max(1, t.Font.Size/14))
		surf.SetDash(nil, 0)
		surf.MoveTo(x0, y0+2)
		surf.LineTo(x0+t.Width, y0+2)
		if err := surf.Stroke(); err != nil {
			return fmt.Errorf("label underline: %w", err)
		}
	}

	out, sw, sh := surf, float64(w), float64(h)
	if pl.Angle != 0 {
		rw, rh := RotatedBounds(sw, sh, pl.Angle)
		rot, err := p.c.NewSurface(int(math.Ceil(rw)), int(math.Ceil(rh)))
		if err != nil {
			return fmt.Errorf("label rotate surface: %w", err)
		}
		rot.Translate(math.Ceil(rw)/2, math.Ceil(rh)/2)
		rot.Rotate(pl.Angle)
		if err := rot.Composite(surf, -sw/2, -sh/2); err != nil {
			return fmt.Errorf("label rotate: %w", err)
		}
		out, sw, sh = rot, math.Ceil(rw), math.Ceil(rh)
	}

	if err := p.c.Composite(out, math.Round(pl.X-sw/2), math.Round(pl.Y-sh/2)); err != nil {
		return fmt.Errorf("label composite: %w", err)
	}
	return nil
}
