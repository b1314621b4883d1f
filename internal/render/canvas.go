package render

type LineCap int

const (
	CapButt LineCap = iota
	CapRound
	CapSquare
)

type LineJoin int

const (
	JoinMiter LineJoin = iota
	JoinRound
	JoinBevel
)

// Canvas is a stateful immediate mode path canvas. Path coordinates are
// transformed by the current matrix when they are added, so a path built
// under Save/Scale keeps its device position after Restore.
type Canvas interface {
	Width() int
	Height() int

	// Save and Restore push and pop the transform and clip.
	Save()
	Restore()
	Scale(sx, sy float64)
	Translate(x, y float64)
	Rotate(angle float64)

	MoveTo(x, y float64)
	LineTo(x, y float64)
	ClosePath()
	Rectangle(x, y, w, h float64)

	SetSourceRGBA(r, g, b, a float64)
	SetLineWidth(w float64)
	SetDash(pattern []float64, offset float64)
	SetLineCap(c LineCap)
	SetLineJoin(j LineJoin)

	Stroke() error
	StrokePreserve() error
	Fill() error
	Clip()

	// DrawText paints shaped text with its baseline origin at x, y in
	// device space using the current source colour.
	DrawText(t ShapedText, x, y float64) error

	// NewSurface returns an empty offscreen canvas.
	NewSurface(w, h int) (Canvas, error)
	// Composite paints src with its origin at x, y under the current
	// transform.
	Composite(src Canvas, x, y float64) error
}

// FontDesc selects a face for shaping.
type FontDesc struct {
	Family    string
	Size      float64
	Bold      bool
	Italic    bool
	SmallCaps bool
}

// ShapedText is the measured form of a string in one face.
type ShapedText struct {
	Text   string
	Font   FontDesc
	Width  float64
	Height float64
	// Ascent is the distance from the top of the box to the baseline.
	Ascent float64
}

type TextShaper interface {
	Shape(text string, font FontDesc) (ShapedText, error)
}
