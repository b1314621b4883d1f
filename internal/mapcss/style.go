package mapcss

// Style is the resolved set of property values for one feature. A fresh
// Style is owned by its caller and shares nothing with the stylesheet.
type Style struct {
	props map[string]Value
}

// NewStyle returns a Style holding every catalog default.
func NewStyle() *Style {
	s := &Style{props: make(map[string]Value, len(catalog))}
	for name, p := range catalog {
		if p.def != nil {
			s.props[name] = *p.def
		}
	}
	return s
}

// Get returns the value of name. ok is false only for a property without a
// default that no declaration has set, or a name outside the catalog.
func (s *Style) Get(name string) (Value, bool) {
	v, ok := s.props[name]
	return v, ok
}

// Has reports whether name carries a value.
func (s *Style) Has(name string) bool {
	_, ok := s.props[name]
	return ok
}

// Set replaces the value of name.
func (s *Style) Set(name string, v Value) {
	s.props[name] = v
}

func (s *Style) Num(name string) float64 {
	return s.props[name].Num
}

func (s *Style) Color(name string) Color {
	return s.props[name].Color
}

func (s *Style) Dash(name string) Dash {
	return s.props[name].Dash
}

func (s *Style) Enum(name string) Enum {
	return s.props[name].Enum
}

func (s *Style) Str(name string) string {
	return s.props[name].Str
}

// Len is the number of properties carrying a value.
func (s *Style) Len() int { return len(s.props) }
