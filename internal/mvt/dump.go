package mvt

import (
	"bufio"
	"fmt"
	"io"
)

// DumpInfo writes a human readable listing of every layer, feature and tag.
func DumpInfo(w io.Writer, t *Tile) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "layers: %d\n", len(t.Layers))
	for li := range t.Layers {
		l := &t.Layers[li]
		fmt.Fprintf(bw, "layer %q extent=%d features=%d keys=%d values=%d\n",
			l.Name, l.Extent, len(l.Features), len(l.Keys), len(l.Values))
		for fi := range l.Features {
			f := &l.Features[fi]
			fmt.Fprintf(bw, "  feature id=%d type=%s geometry=%d\n", f.ID, f.Type, len(f.Geometry))
			for i := 0; i < f.NumTags(); i++ {
				k, v, ok := l.Tag(f, i)
				if !ok {
					fmt.Fprintf(bw, "    <bad tag pair %d>\n", i)
					continue
				}
				fmt.Fprintf(bw, "    %s=%s\n", k, v)
			}
		}
	}
	return bw.Flush()
}
