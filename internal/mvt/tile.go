// Package mvt holds the decoded Mapbox vector tile tree and the geometry
// command decoder used by the renderer.
package mvt

import (
	"strconv"
)

const DefaultExtent = 4096

type GeomType int

const (
	GeomUnknown GeomType = iota
	GeomPoint
	GeomLineString
	GeomPolygon
)

func (g GeomType) String() string {
	switch g {
	case GeomPoint:
		return "Point"
	case GeomLineString:
		return "LineString"
	case GeomPolygon:
		return "Polygon"
	default:
		return "Unknown"
	}
}

type ValueKind int

const (
	ValueString ValueKind = iota
	ValueFloat
	ValueDouble
	ValueInt
	ValueUint
	ValueSint
	ValueBool
)

// Value is one entry of a layer's value table.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Int  int64
	Uint uint64
	Bool bool
}

func StringValue(s string) Value { return Value{Kind: ValueString, Str: s} }

func (v Value) IsString() bool { return v.Kind == ValueString }

func (v Value) String() string {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueFloat, ValueDouble:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case ValueInt, ValueSint:
		return strconv.FormatInt(v.Int, 10)
	case ValueUint:
		return strconv.FormatUint(v.Uint, 10)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	}
	return ""
}

type Feature struct {
	ID       uint64
	Type     GeomType
	Geometry []uint32
	// Tags alternates key and value indexes into the layer tables.
	Tags []uint32
}

type Layer struct {
	Name     string
	Extent   uint32
	Features []Feature
	Keys     []string
	Values   []Value
}

// Tag resolves the i-th tag pair of f. ok is false for an out of range pair.
func (l *Layer) Tag(f *Feature, i int) (key string, val Value, ok bool) {
	if 2*i+1 >= len(f.Tags) {
		return "", Value{}, false
	}
	k, v := f.Tags[2*i], f.Tags[2*i+1]
	if int(k) >= len(l.Keys) || int(v) >= len(l.Values) {
		return "", Value{}, false
	}
	return l.Keys[k], l.Values[v], true
}

// NumTags is the number of tag pairs on f.
func (f *Feature) NumTags() int { return len(f.Tags) / 2 }

type Tile struct {
	Layers []Layer
}

// NumFeatures counts features across all layers.
func (t *Tile) NumFeatures() int {
	n := 0
	for i := range t.Layers {
		n += len(t.Layers[i].Features)
	}
	return n
}
