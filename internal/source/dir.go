package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/paulmach/orb/maptile"
)

// extensions probed in order for each tile
var tileExts = []string{".mvt", ".pbf"}

// Dir reads <root>/<z>/<x>/<y>.mvt (or .pbf).
type Dir struct {
	root string
}

func NewDir(root string) (*Dir, error) {
	st, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("tile directory: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("tile directory %s: not a directory", root)
	}
	return &Dir{root: root}, nil
}

func (d *Dir) Path(t maptile.Tile, ext string) string {
	return filepath.Join(d.root,
		strconv.Itoa(int(t.Z)),
		strconv.FormatUint(uint64(t.X), 10),
		strconv.FormatUint(uint64(t.Y), 10)+ext)
}

func (d *Dir) Fetch(ctx context.Context, t maptile.Tile) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, ext := range tileExts {
		p := d.Path(t, ext)
		b, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: %d/%d/%d", ErrNotFound, t.Z, t.X, t.Y)
}
