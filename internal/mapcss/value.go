// Package mapcss implements the MapCSS stylesheet language: typed property
// values, selectors with tag and zoom tests, the last-match-wins cascade and
// the stylesheet parser.
package mapcss

import (
	"fmt"
	"strconv"
	"strings"
)

type ValueType int

const (
	TypeNumber ValueType = iota + 1
	TypeColor
	TypeDash
	TypeEnum
	TypeString
)

func (t ValueType) String() string {
	switch t {
	case TypeNumber:
		return "number"
	case TypeColor:
		return "color"
	case TypeDash:
		return "dashes"
	case TypeEnum:
		return "keyword"
	case TypeString:
		return "string"
	default:
		return "unknown"
	}
}

// Color channels are in 0..1.
type Color struct {
	R, G, B float64
}

// MaxDashes is the longest dash pattern a declaration may carry.
const MaxDashes = 4

type Dash struct {
	Lengths [MaxDashes]float64
	N       int
}

// Pattern returns the used part of the dash lengths, nil for a solid line.
func (d Dash) Pattern() []float64 {
	if d.N == 0 {
		return nil
	}
	out := make([]float64, d.N)
	copy(out, d.Lengths[:d.N])
	return out
}

// Enum is a keyword value. Each keyword property owns a contiguous group.
type Enum int

const (
	LineCapNone Enum = iota
	LineCapRound
	LineCapSquare

	LineJoinMiter
	LineJoinRound
	LineJoinBevel

	FontWeightNormal
	FontWeightBold

	FontStyleNormal
	FontStyleItalic

	FontVariantNormal
	FontVariantSmallCaps

	TextDecorationNone
	TextDecorationUnderline

	TextTransformNone
	TextTransformUppercase
	TextTransformLowercase
	TextTransformCapitalize

	TextPositionCenter
	TextPositionLine
)

var enumNames = map[Enum]string{
	LineCapNone:             "none",
	LineCapRound:            "round",
	LineCapSquare:           "square",
	LineJoinMiter:           "miter",
	LineJoinRound:           "round",
	LineJoinBevel:           "bevel",
	FontWeightNormal:        "normal",
	FontWeightBold:          "bold",
	FontStyleNormal:         "normal",
	FontStyleItalic:         "italic",
	FontVariantNormal:       "normal",
	FontVariantSmallCaps:    "small-caps",
	TextDecorationNone:      "none",
	TextDecorationUnderline: "underline",
	TextTransformNone:       "none",
	TextTransformUppercase:  "uppercase",
	TextTransformLowercase:  "lowercase",
	TextTransformCapitalize: "capitalize",
	TextPositionCenter:      "center",
	TextPositionLine:        "line",
}

func (e Enum) String() string {
	if s, ok := enumNames[e]; ok {
		return s
	}
	return "Enum(" + strconv.Itoa(int(e)) + ")"
}

// Value is a tagged union; only the field selected by Type is meaningful.
// Values hold no references, so assignment copies them.
type Value struct {
	Type  ValueType
	Num   float64
	Color Color
	Dash  Dash
	Enum  Enum
	Str   string
}

func Number(n float64) Value    { return Value{Type: TypeNumber, Num: n} }
func RGB(r, g, b float64) Value { return Value{Type: TypeColor, Color: Color{R: r, G: g, B: b}} }
func Keyword(e Enum) Value      { return Value{Type: TypeEnum, Enum: e} }
func String(s string) Value     { return Value{Type: TypeString, Str: s} }
func Dashes(lengths ...float64) Value {
	v := Value{Type: TypeDash}
	for i, l := range lengths {
		if i == MaxDashes {
			break
		}
		v.Dash.Lengths[i] = l
		v.Dash.N++
	}
	return v
}

func (v Value) String() string {
	switch v.Type {
	case TypeNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case TypeColor:
		return fmt.Sprintf("#%02x%02x%02x", channel(v.Color.R), channel(v.Color.G), channel(v.Color.B))
	case TypeDash:
		if v.Dash.N == 0 {
			return "none"
		}
		parts := make([]string, v.Dash.N)
		for i := range parts {
			parts[i] = strconv.FormatFloat(v.Dash.Lengths[i], 'g', -1, 64)
		}
		return strings.Join(parts, ",")
	case TypeEnum:
		return v.Enum.String()
	case TypeString:
		return strconv.Quote(v.Str)
	}
	return "<invalid>"
}

func channel(c float64) uint8 {
	switch {
	case c <= 0:
		return 0
	case c >= 1:
		return 255
	}
	return uint8(c*255 + 0.5)
}
