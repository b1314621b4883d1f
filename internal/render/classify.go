package render

import (
	"sort"

	"github.com/mohammed-shakir/vtile-mapcss/internal/mapcss"
	"github.com/mohammed-shakir/vtile-mapcss/internal/mvt"
)

// LayerID values are in paint order.
type LayerID int

const (
	LayerEarth LayerID = iota
	LayerLanduse
	LayerWater
	LayerLanduseNature
	LayerPlaces
	LayerRoads
	LayerBuildings
	LayerBridgeTunnel
	LayerPOI

	numLayers
)

var layerNames = [numLayers]string{
	"earth", "landuse", "water", "landuse-nature", "places", "roads", "buildings", "bridge-tunnel", "poi",
}

func (l LayerID) String() string {
	if l >= 0 && l < numLayers {
		return layerNames[l]
	}
	return "unknown"
}

// RenderOrder lists every layer in paint order.
func RenderOrder() []LayerID {
	out := make([]LayerID, numLayers)
	for i := range out {
		out[i] = LayerID(i)
	}
	return out
}

// LayerFor maps a tile layer name to its render layer and primary tag key.
func LayerFor(name string) (LayerID, string) {
	switch name {
	case "water":
		return LayerWater, "water"
	case "earth":
		return LayerEarth, "earth"
	case "places":
		return LayerPlaces, "place"
	case "landuse":
		return LayerLanduse, "landuse"
	case "roads":
		return LayerRoads, "road"
	case "buildings":
		return LayerBuildings, "building"
	default:
		return LayerPOI, "poi"
	}
}

// KindFor maps a geometry type to the selector kind queried for it. Areas
// and lines are both ways; selectors tell them apart with the area tag.
func KindFor(t mvt.GeomType) mapcss.Kind {
	switch t {
	case mvt.GeomPolygon, mvt.GeomLineString:
		return mapcss.KindWay
	default:
		return mapcss.KindNode
	}
}

// Reassign moves tunnels and bridges out of the roads layer and natural
// landuse into its own layer.
func Reassign(id LayerID, tags map[string]string) LayerID {
	switch id {
	case LayerRoads:
		if tags["is_tunnel"] == "yes" || tags["is_bridge"] == "yes" {
			return LayerBridgeTunnel
		}
	case LayerLanduse:
		switch tags["landuse"] {
		case "wood", "scrub", "rock":
			return LayerLanduseNature
		}
	}
	return id
}

// Item is one feature queued for painting.
type Item struct {
	Layer   *mvt.Layer
	Feature *mvt.Feature
	Style   *mapcss.Style
	Tags    map[string]string
	ZIndex  float64
}

// Plan holds the classified features of one tile.
type Plan struct {
	casings [numLayers][]Item
	main    [numLayers][]Item
}

func (p *Plan) Casings(id LayerID) []Item { return p.casings[id] }
func (p *Plan) Main(id LayerID) []Item    { return p.main[id] }

// Len counts main bucket entries.
func (p *Plan) Len() int {
	n := 0
	for i := range p.main {
		n += len(p.main[i])
	}
	return n
}

// Classify resolves a style for every feature of the tile and buckets it.
// Buckets are sorted by z-index, ties keep tile order.
func Classify(t *mvt.Tile, ss *mapcss.Stylesheet, zoom int) *Plan {
	p := &Plan{}
	for li := range t.Layers {
		l := &t.Layers[li]
		base, primary := LayerFor(l.Name)

		for fi := range l.Features {
			f := &l.Features[fi]
			tags := BuildTags(l, f, primary)
			st := ss.Style(KindFor(f.Type), tags, zoom)
			it := Item{Layer: l, Feature: f, Style: st, Tags: tags, ZIndex: st.Num("z-index")}

			id := Reassign(base, tags)
			if st.Num("casing-width") > 0 {
				p.casings[id] = append(p.casings[id], it)
			}
			p.main[id] = append(p.main[id], it)
		}
	}

	for i := range p.main {
		sortByZ(p.casings[i])
		sortByZ(p.main[i])
	}
	return p
}

func sortByZ(items []Item) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].ZIndex < items[j].ZIndex })
}
