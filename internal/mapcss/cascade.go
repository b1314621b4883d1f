package mapcss

import (
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Stylesheet stores selectors partitioned by kind in source order. Equal
// selectors are kept as separate entries so later rules override earlier
// ones property by property.
//
// A Stylesheet is safe for concurrent Style calls once loading is done.
// Load must not overlap with readers.
type Stylesheet struct {
	byKind [numKinds][]*Selector
	count  int
	hash   uint64
}

func NewStylesheet() *Stylesheet {
	return &Stylesheet{}
}

// Parse builds a new stylesheet from MapCSS source.
func Parse(src string) (*Stylesheet, error) {
	ss := NewStylesheet()
	if err := ss.Load(src); err != nil {
		return nil, err
	}
	return ss, nil
}

// LoadFile reads and parses a stylesheet file.
func LoadFile(path string) (*Stylesheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stylesheet: %w", err)
	}
	ss, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ss, nil
}

// Load replaces the stored selectors with the ones parsed from src. The
// previous selectors are discarded first; on a parse error the stylesheet
// is left empty.
func (ss *Stylesheet) Load(src string) error {
	ss.Reset()
	sels, err := parse(src)
	if err != nil {
		return err
	}
	for _, s := range sels {
		ss.Add(s)
	}
	ss.hash = xxhash.Sum64String(src)
	return nil
}

// Reset drops every selector.
func (ss *Stylesheet) Reset() {
	for k := range ss.byKind {
		ss.byKind[k] = nil
	}
	ss.count = 0
	ss.hash = 0
}

// Add appends a selector to its kind's list.
func (ss *Stylesheet) Add(s *Selector) {
	if s == nil || s.Kind < 0 || s.Kind >= numKinds {
		return
	}
	ss.byKind[s.Kind] = append(ss.byKind[s.Kind], s)
	ss.count++
}

// Style resolves the style for a target: defaults first, then every matching
// selector of kind in source order, each overwriting the properties it
// declares. tags may be nil.
func (ss *Stylesheet) Style(kind Kind, tags map[string]string, zoom int) *Style {
	st := NewStyle()
	if kind < 0 || kind >= numKinds {
		return st
	}
	for _, s := range ss.byKind[kind] {
		if s.Matches(tags, zoom) {
			s.Apply(st)
		}
	}
	return st
}

// NumStyles is the number of stored selectors, duplicates included.
func (ss *Stylesheet) NumStyles() int { return ss.count }

// Selectors returns the stored selectors of one kind in source order.
func (ss *Stylesheet) Selectors(kind Kind) []*Selector {
	if kind < 0 || kind >= numKinds {
		return nil
	}
	return ss.byKind[kind]
}

// Hash identifies the loaded source; zero when nothing is loaded.
func (ss *Stylesheet) Hash() uint64 { return ss.hash }
