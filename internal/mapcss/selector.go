package mapcss

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the target a selector applies to.
type Kind int

const (
	KindCanvas Kind = iota
	KindNode
	KindWay
	KindArea
	KindLine

	numKinds
)

var kindNames = [numKinds]string{"canvas", "node", "way", "area", "line"}

func (k Kind) String() string {
	if k >= 0 && k < numKinds {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseKind maps a selector keyword to its Kind.
func ParseKind(s string) (Kind, bool) {
	for i, n := range kindNames {
		if n == s {
			return Kind(i), true
		}
	}
	return 0, false
}

type Operator int

const (
	OpIsSet Operator = iota
	OpIsNotSet
	OpEquals
	OpNotEquals
)

// Test is one tag predicate of a selector.
type Test struct {
	Op    Operator
	Tag   string
	Value string
}

// Match evaluates the test against tags. NotEquals requires the tag to be
// present: an absent tag has no value to differ from.
func (t Test) Match(tags map[string]string) bool {
	v, ok := tags[t.Tag]
	switch t.Op {
	case OpIsSet:
		return ok
	case OpIsNotSet:
		return !ok
	case OpEquals:
		return ok && v == t.Value
	case OpNotEquals:
		return ok && v != t.Value
	}
	return false
}

func (t Test) String() string {
	switch t.Op {
	case OpIsNotSet:
		return "[!" + t.Tag + "]"
	case OpEquals:
		return "[" + t.Tag + "=" + t.Value + "]"
	case OpNotEquals:
		return "[" + t.Tag + "!=" + t.Value + "]"
	}
	return "[" + t.Tag + "]"
}

// ZoomRange bounds are inclusive.
type ZoomRange struct {
	Min, Max int
}

// MaxZoom is the upper bound of an open ended zoom range.
const MaxZoom = 30

func (z ZoomRange) Contains(zoom int) bool {
	return zoom >= z.Min && zoom <= z.Max
}

type Declaration struct {
	Property string
	Value    Value
}

// Selector is one parsed rule. It is not modified after parsing.
type Selector struct {
	Kind  Kind
	Tests []Test
	Zoom  *ZoomRange
	Decls []Declaration
	// Line is the 1-based source line of the selector keyword.
	Line int
}

// Matches applies the zoom test then the tag tests. A selector without
// tests matches any tag set.
func (s *Selector) Matches(tags map[string]string, zoom int) bool {
	if s.Zoom != nil && !s.Zoom.Contains(zoom) {
		return false
	}
	for _, t := range s.Tests {
		if !t.Match(tags) {
			return false
		}
	}
	return true
}

// Apply overwrites every declared property on st.
func (s *Selector) Apply(st *Style) {
	for _, d := range s.Decls {
		st.Set(d.Property, d.Value)
	}
}

func (s *Selector) String() string {
	var b strings.Builder
	b.WriteString(s.Kind.String())
	for _, t := range s.Tests {
		b.WriteString(t.String())
	}
	if s.Zoom != nil {
		fmt.Fprintf(&b, "|z%d-%d", s.Zoom.Min, s.Zoom.Max)
	}
	b.WriteString(" {")
	for _, d := range s.Decls {
		fmt.Fprintf(&b, " %s: %s;", d.Property, d.Value)
	}
	b.WriteString(" }")
	return b.String()
}
