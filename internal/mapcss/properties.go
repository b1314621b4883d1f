package mapcss

import "sort"

type property struct {
	typ ValueType
	// keywords lists the accepted enum keywords for TypeEnum properties.
	keywords map[string]Enum
	def      *Value
}

func def(v Value) *Value { return &v }

var (
	lineCaps = map[string]Enum{
		"none": LineCapNone, "butt": LineCapNone, "round": LineCapRound, "square": LineCapSquare,
	}
	lineJoins = map[string]Enum{
		"miter": LineJoinMiter, "round": LineJoinRound, "bevel": LineJoinBevel,
	}
)

// catalog is the fixed property set. Properties without a default are only
// present on a Style after a declaration sets them.
var catalog = map[string]property{
	"width":           {typ: TypeNumber, def: def(Number(1))},
	"z-index":         {typ: TypeNumber, def: def(Number(0))},
	"opacity":         {typ: TypeNumber, def: def(Number(1))},
	"fill-opacity":    {typ: TypeNumber, def: def(Number(1))},
	"casing-opacity":  {typ: TypeNumber, def: def(Number(1))},
	"casing-width":    {typ: TypeNumber, def: def(Number(0))},
	"fill-color":      {typ: TypeColor, def: def(RGB(0.5, 0.5, 0.5))},
	"color":           {typ: TypeColor, def: def(RGB(0, 0, 0))},
	"casing-color":    {typ: TypeColor, def: def(RGB(0, 0, 0))},
	"dashes":          {typ: TypeDash, def: def(Dashes())},
	"casing-dashes":   {typ: TypeDash},
	"linecap":         {typ: TypeEnum, keywords: lineCaps, def: def(Keyword(LineCapNone))},
	"casing-linecap":  {typ: TypeEnum, keywords: lineCaps},
	"linejoin":        {typ: TypeEnum, keywords: lineJoins, def: def(Keyword(LineJoinRound))},
	"casing-linejoin": {typ: TypeEnum, keywords: lineJoins},

	"font-family": {typ: TypeString, def: def(String("DejaVu"))},
	"font-size":   {typ: TypeNumber, def: def(Number(12))},
	"font-weight": {typ: TypeEnum, def: def(Keyword(FontWeightNormal)), keywords: map[string]Enum{
		"normal": FontWeightNormal, "bold": FontWeightBold,
	}},
	"font-style": {typ: TypeEnum, def: def(Keyword(FontStyleNormal)), keywords: map[string]Enum{
		"normal": FontStyleNormal, "italic": FontStyleItalic,
	}},
	"font-variant": {typ: TypeEnum, def: def(Keyword(FontVariantNormal)), keywords: map[string]Enum{
		"normal": FontVariantNormal, "small-caps": FontVariantSmallCaps,
	}},
	"text-decoration": {typ: TypeEnum, def: def(Keyword(TextDecorationNone)), keywords: map[string]Enum{
		"none": TextDecorationNone, "underline": TextDecorationUnderline,
	}},
	"text-transform": {typ: TypeEnum, def: def(Keyword(TextTransformNone)), keywords: map[string]Enum{
		"none":       TextTransformNone,
		"uppercase":  TextTransformUppercase,
		"lowercase":  TextTransformLowercase,
		"capitalize": TextTransformCapitalize,
	}},
	"text-position": {typ: TypeEnum, def: def(Keyword(TextPositionCenter)), keywords: map[string]Enum{
		"center": TextPositionCenter, "line": TextPositionLine,
	}},
	"text":             {typ: TypeString},
	"text-color":       {typ: TypeColor, def: def(RGB(0, 0, 0))},
	"text-halo-color":  {typ: TypeColor, def: def(RGB(0, 0, 0))},
	"text-opacity":     {typ: TypeNumber, def: def(Number(1))},
	"text-offset":      {typ: TypeNumber, def: def(Number(0))},
	"text-halo-radius": {typ: TypeNumber, def: def(Number(0))},
}

// PropertyType returns the expected value type of a catalog property.
func PropertyType(name string) (ValueType, bool) {
	p, ok := catalog[name]
	return p.typ, ok
}

// Properties lists the catalog names in sorted order.
func Properties() []string {
	names := make([]string, 0, len(catalog))
	for n := range catalog {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
