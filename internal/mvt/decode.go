package mvt

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/paulmach/orb/encoding/mvt/vectortile"
)

// ErrTileDecode reports a tile payload that is not a vector tile.
var ErrTileDecode = errors.New("mvt: tile decode failed")

func isGzipped(data []byte) bool {
	return len(data) > 2 && data[0] == 0x1f && data[1] == 0x8b
}

// Decode parses a protobuf vector tile, gunzipping it first when needed.
// No partial tile is returned on error.
func Decode(data []byte) (*Tile, error) {
	if isGzipped(data) {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %v", ErrTileDecode, err)
		}
		raw, err := io.ReadAll(zr)
		_ = zr.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: gunzip: %v", ErrTileDecode, err)
		}
		data = raw
	}

	vt := &vectortile.Tile{}
	if err := vt.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTileDecode, err)
	}
	return fromProto(vt), nil
}

func fromProto(vt *vectortile.Tile) *Tile {
	t := &Tile{Layers: make([]Layer, 0, len(vt.Layers))}
	for _, pl := range vt.Layers {
		if pl == nil {
			continue
		}
		l := Layer{
			Name:     pl.GetName(),
			Extent:   pl.GetExtent(),
			Keys:     pl.Keys,
			Values:   make([]Value, len(pl.Values)),
			Features: make([]Feature, 0, len(pl.Features)),
		}
		if l.Extent == 0 {
			l.Extent = DefaultExtent
		}
		for i, pv := range pl.Values {
			l.Values[i] = valueFromProto(pv)
		}
		for _, pf := range pl.Features {
			if pf == nil {
				continue
			}
			l.Features = append(l.Features, Feature{
				ID:       pf.GetId(),
				Type:     geomTypeFromProto(pf.GetType()),
				Geometry: pf.Geometry,
				Tags:     pf.Tags,
			})
		}
		t.Layers = append(t.Layers, l)
	}
	return t
}

func geomTypeFromProto(gt vectortile.Tile_GeomType) GeomType {
	switch gt {
	case vectortile.Tile_POINT:
		return GeomPoint
	case vectortile.Tile_LINESTRING:
		return GeomLineString
	case vectortile.Tile_POLYGON:
		return GeomPolygon
	default:
		return GeomUnknown
	}
}

func valueFromProto(v *vectortile.Tile_Value) Value {
	switch {
	case v == nil:
		return Value{}
	case v.StringValue != nil:
		return StringValue(*v.StringValue)
	case v.FloatValue != nil:
		return Value{Kind: ValueFloat, Num: float64(*v.FloatValue)}
	case v.DoubleValue != nil:
		return Value{Kind: ValueDouble, Num: *v.DoubleValue}
	case v.IntValue != nil:
		return Value{Kind: ValueInt, Int: *v.IntValue}
	case v.UintValue != nil:
		return Value{Kind: ValueUint, Uint: *v.UintValue}
	case v.SintValue != nil:
		return Value{Kind: ValueSint, Int: *v.SintValue}
	case v.BoolValue != nil:
		return Value{Kind: ValueBool, Bool: *v.BoolValue}
	}
	return Value{}
}
