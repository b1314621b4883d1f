// Package keys builds cache keys for rendered tiles.
package keys

import "fmt"

const prefix = "vtile"

// Key addresses one rendered tile. The stylesheet hash is part of the key
// so a reload never serves tiles painted with the previous rules.
func Key(styleHash uint64, z, x, y, size int) string {
	return fmt.Sprintf("%s:%016x:%d:%d:%d@%d", prefix, styleHash, z, x, y, size)
}

// StylePrefix matches every key rendered under one stylesheet.
func StylePrefix(styleHash uint64) string {
	return fmt.Sprintf("%s:%016x:", prefix, styleHash)
}
