package ggcanvas

import (
	"fmt"
	"math"
	"strings"

	"github.com/gogpu/gg/text"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/gofont/gosmallcaps"

	"github.com/mohammed-shakir/vtile-mapcss/internal/render"
)

const DefaultFaceCacheSize = 64

type variant int

const (
	sansRegular variant = iota
	sansBold
	sansItalic
	sansBoldItalic
	sansSmallCaps
	monoRegular
	monoBold
)

type faceKey struct {
	v    variant
	size float64
}

// Shaper measures text with the Go font family. Any family name containing
// "mono" uses Go Mono, everything else Go sans. Faces are cached per
// variant and size. Shaper is safe for concurrent use.
type Shaper struct {
	sources map[variant]*text.FontSource
	faces   *lru.Cache[faceKey, text.Face]
}

var _ render.TextShaper = (*Shaper)(nil)

func NewShaper(cacheSize int) (*Shaper, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultFaceCacheSize
	}
	faces, err := lru.New[faceKey, text.Face](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("face cache: %w", err)
	}

	fonts := map[variant][]byte{
		sansRegular:    goregular.TTF,
		sansBold:       gobold.TTF,
		sansItalic:     goitalic.TTF,
		sansBoldItalic: gobolditalic.TTF,
		sansSmallCaps:  gosmallcaps.TTF,
		monoRegular:    gomono.TTF,
		monoBold:       gomonobold.TTF,
	}
	s := &Shaper{sources: make(map[variant]*text.FontSource, len(fonts)), faces: faces}
	for v, data := range fonts {
		src, err := text.NewFontSource(data)
		if err != nil {
			return nil, fmt.Errorf("load font %d: %w", v, err)
		}
		s.sources[v] = src
	}
	return s, nil
}

func variantFor(fd render.FontDesc) variant {
	if strings.Contains(strings.ToLower(fd.Family), "mono") {
		if fd.Bold {
			return monoBold
		}
		return monoRegular
	}
	switch {
	case fd.SmallCaps:
		return sansSmallCaps
	case fd.Bold && fd.Italic:
		return sansBoldItalic
	case fd.Bold:
		return sansBold
	case fd.Italic:
		return sansItalic
	}
	return sansRegular
}

func (s *Shaper) face(fd render.FontDesc) (text.Face, error) {
	size := fd.Size
	if size <= 0 || math.IsNaN(size) {
		return nil, fmt.Errorf("ggcanvas: invalid font size %v", fd.Size)
	}
	key := faceKey{v: variantFor(fd), size: size}
	if f, ok := s.faces.Get(key); ok {
		return f, nil
	}
	f := s.sources[key.v].Face(size)
	s.faces.Add(key, f)
	return f, nil
}

// Shape measures str in the face selected by fd.
func (s *Shaper) Shape(str string, fd render.FontDesc) (render.ShapedText, error) {
	face, err := s.face(fd)
	if err != nil {
		return render.ShapedText{}, err
	}
	w, h := text.Measure(str, face)
	m := face.Metrics()
	return render.ShapedText{
		Text:   str,
		Font:   fd,
		Width:  w,
		Height: h,
		Ascent: m.Ascent,
	}, nil
}

// CachedFaces reports how many faces are held.
func (s *Shaper) CachedFaces() int { return s.faces.Len() }
