package render

import "github.com/mohammed-shakir/vtile-mapcss/internal/mvt"

// BuildTags resolves a feature's string tags. The "kind" tag is stored under
// primaryKey, primaryKey is always present, and "area" is synthesized from
// the geometry type.
func BuildTags(l *mvt.Layer, f *mvt.Feature, primaryKey string) map[string]string {
	tags := make(map[string]string, f.NumTags()+2)
	for i := 0; i < f.NumTags(); i++ {
		k, v, ok := l.Tag(f, i)
		if !ok || !v.IsString() {
			continue
		}
		if k == "kind" {
			k = primaryKey
		}
		tags[k] = v.Str
	}
	if _, ok := tags[primaryKey]; !ok {
		tags[primaryKey] = ""
	}

	switch f.Type {
	case mvt.GeomPolygon:
		tags["area"] = "yes"
	case mvt.GeomLineString:
		tags["area"] = "no"
	}
	return tags
}
