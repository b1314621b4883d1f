package mvt

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

// ErrMalformedGeometry reports a command stream that cannot be decoded.
var ErrMalformedGeometry = errors.New("mvt: malformed geometry")

const (
	cmdMoveTo    = 1
	cmdLineTo    = 2
	cmdClosePath = 7
)

type OpKind uint8

const (
	OpMoveBy OpKind = iota + 1
	OpLineBy
	OpClose
)

func (k OpKind) String() string {
	switch k {
	case OpMoveBy:
		return "MoveBy"
	case OpLineBy:
		return "LineBy"
	case OpClose:
		return "Close"
	default:
		return fmt.Sprintf("OpKind(%d)", uint8(k))
	}
}

// PathOp is one relative drawing operation. DX and DY are zero for OpClose.
type PathOp struct {
	Op     OpKind
	DX, DY int32
}

func MoveBy(dx, dy int32) PathOp { return PathOp{Op: OpMoveBy, DX: dx, DY: dy} }
func LineBy(dx, dy int32) PathOp { return PathOp{Op: OpLineBy, DX: dx, DY: dy} }
func Close() PathOp              { return PathOp{Op: OpClose} }

func zigzag(v uint32) int32 {
	return int32(v>>1) ^ -int32(v&1)
}

// DecodePath turns a feature's packed command stream into relative path
// operations. The stream must start with a command integer; MoveTo and
// LineTo consume two zigzag encoded parameters per repetition.
func DecodePath(cmds []uint32) ([]PathOp, error) {
	ops := make([]PathOp, 0, len(cmds)/2+1)

	for i := 0; i < len(cmds); {
		id := cmds[i] & 0x7
		count := int(cmds[i] >> 3)
		i++

		switch id {
		case cmdMoveTo, cmdLineTo:
			if count > (len(cmds)-i)/2 {
				return nil, fmt.Errorf("%w: command %d at %d wants %d pairs, %d values left",
					ErrMalformedGeometry, id, i-1, count, len(cmds)-i)
			}
			kind := OpLineBy
			if id == cmdMoveTo {
				kind = OpMoveBy
			}
			for n := 0; n < count; n++ {
				ops = append(ops, PathOp{Op: kind, DX: zigzag(cmds[i]), DY: zigzag(cmds[i+1])})
				i += 2
			}
		case cmdClosePath:
			for n := 0; n < count; n++ {
				ops = append(ops, Close())
			}
		default:
			return nil, fmt.Errorf("%w: unknown command %d at %d", ErrMalformedGeometry, id, i-1)
		}
	}
	return ops, nil
}

// Absolute resolves relative ops into absolute sub-paths scaled by scale.
// The cursor starts at the origin and ClosePath leaves it where it is, so a
// following MoveBy is relative to the last vertex of the closed ring.
func Absolute(ops []PathOp, scale float64) []orb.LineString {
	var (
		out    []orb.LineString
		cur    orb.LineString
		cx, cy int64
	)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, cur)
		}
		cur = nil
	}
	for _, op := range ops {
		switch op.Op {
		case OpMoveBy:
			flush()
			cx += int64(op.DX)
			cy += int64(op.DY)
			cur = orb.LineString{{float64(cx) * scale, float64(cy) * scale}}
		case OpLineBy:
			cx += int64(op.DX)
			cy += int64(op.DY)
			cur = append(cur, orb.Point{float64(cx) * scale, float64(cy) * scale})
		case OpClose:
			if len(cur) > 1 && !cur[0].Equal(cur[len(cur)-1]) {
				cur = append(cur, cur[0])
			}
		}
	}
	flush()
	return out
}
