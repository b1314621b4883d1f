// Package ggcanvas implements the render canvas and text shaper on the gg
// software rasterizer.
package ggcanvas

import (
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/gogpu/gg"

	"github.com/mohammed-shakir/vtile-mapcss/internal/render"
)

var ErrForeignSurface = errors.New("ggcanvas: surface from another backend")

// Canvas wraps one gg context. It is not safe for concurrent use.
type Canvas struct {
	dc     *gg.Context
	shaper *Shaper
}

var _ render.Canvas = (*Canvas)(nil)

// New allocates a w x h canvas. shaper draws text and may be nil when no
// labels are painted.
func New(w, h int, shaper *Shaper) (*Canvas, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("ggcanvas: invalid size %dx%d", w, h)
	}
	return &Canvas{dc: gg.NewContext(w, h), shaper: shaper}, nil
}

func (c *Canvas) Width() int  { return c.dc.Width() }
func (c *Canvas) Height() int { return c.dc.Height() }

func (c *Canvas) Save()    { c.dc.Push() }
func (c *Canvas) Restore() { c.dc.Pop() }

func (c *Canvas) Scale(sx, sy float64)   { c.dc.Scale(sx, sy) }
func (c *Canvas) Translate(x, y float64) { c.dc.Translate(x, y) }
func (c *Canvas) Rotate(angle float64)   { c.dc.Rotate(angle) }

func (c *Canvas) MoveTo(x, y float64)          { c.dc.MoveTo(x, y) }
func (c *Canvas) LineTo(x, y float64)          { c.dc.LineTo(x, y) }
func (c *Canvas) ClosePath()                   { c.dc.ClosePath() }
func (c *Canvas) Rectangle(x, y, w, h float64) { c.dc.DrawRectangle(x, y, w, h) }

func (c *Canvas) SetSourceRGBA(r, g, b, a float64) { c.dc.SetRGBA(r, g, b, a) }
func (c *Canvas) SetLineWidth(w float64)           { c.dc.SetLineWidth(w) }

func (c *Canvas) SetDash(pattern []float64, offset float64) {
	if len(pattern) == 0 {
		c.dc.ClearDash()
		return
	}
	c.dc.SetDash(pattern...)
	c.dc.SetDashOffset(offset)
}

func (c *Canvas) SetLineCap(lc render.LineCap) {
	switch lc {
	case render.CapRound:
		c.dc.SetLineCap(gg.LineCapRound)
	case render.CapSquare:
		c.dc.SetLineCap(gg.LineCapSquare)
	default:
		c.dc.SetLineCap(gg.LineCapButt)
	}
}

func (c *Canvas) SetLineJoin(j render.LineJoin) {
	switch j {
	case render.JoinMiter:
		c.dc.SetLineJoin(gg.LineJoinMiter)
	case render.JoinBevel:
		c.dc.SetLineJoin(gg.LineJoinBevel)
	default:
		c.dc.SetLineJoin(gg.LineJoinRound)
	}
}

func (c *Canvas) Stroke() error         { return c.dc.Stroke() }
func (c *Canvas) StrokePreserve() error { return c.dc.StrokePreserve() }
func (c *Canvas) Fill() error           { return c.dc.Fill() }
func (c *Canvas) Clip()                 { c.dc.Clip() }

func (c *Canvas) DrawText(t render.ShapedText, x, y float64) error {
	if c.shaper == nil {
		return errors.New("ggcanvas: no shaper for text")
	}
	face, err := c.shaper.face(t.Font)
	if err != nil {
		return err
	}
	c.dc.SetFont(face)
	c.dc.DrawString(t.Text, x, y)
	return nil
}

func (c *Canvas) NewSurface(w, h int) (render.Canvas, error) {
	return New(w, h, c.shaper)
}

func (c *Canvas) Composite(src render.Canvas, x, y float64) error {
	s, ok := src.(*Canvas)
	if !ok {
		return ErrForeignSurface
	}
	c.dc.DrawImage(gg.ImageBufFromImage(s.dc.Image()), x, y)
	return nil
}

func (c *Canvas) Image() image.Image { return c.dc.Image() }

func (c *Canvas) EncodePNG(w io.Writer) error {
	if err := c.dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func (c *Canvas) Close() error { return c.dc.Close() }
