package mapcss

import (
	"strconv"
	"strings"

	"github.com/tdewolff/parse/v2/css"
	"golang.org/x/image/colornames"
)

// parser is a recursive descent parser over:
//
//	rule     := selector (',' selector)* '{' decl* '}'
//	selector := kind ('[' test (',' test)* ']')* ('|' zoom)?
//	test     := '!' tag | tag (('=' | '!=') value)?
//	zoom     := 'z' [min] ['-' [max]]
//	decl     := property ':' value ';'
type parser struct {
	lx  *lexer
	tok token
}

func parse(src string) ([]*Selector, error) {
	p := &parser{lx: newLexer(src)}
	p.next()

	var out []*Selector
	for !p.tok.eof {
		sels, err := p.rule()
		if err != nil {
			return nil, err
		}
		out = append(out, sels...)
	}
	return out, nil
}

func (p *parser) next() { p.tok = p.lx.next() }

func (p *parser) rule() ([]*Selector, error) {
	var sels []*Selector
	for {
		s, err := p.selector()
		if err != nil {
			return nil, err
		}
		sels = append(sels, s)
		if p.tok.tt != css.CommaToken {
			break
		}
		p.next()
	}

	if p.tok.tt != css.LeftBraceToken {
		return nil, syntaxError(p.tok, "'{'")
	}
	p.next()

	var decls []Declaration
	for p.tok.tt != css.RightBraceToken {
		d, err := p.declaration()
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
	}
	p.next()

	for _, s := range sels {
		s.Decls = decls
	}
	return sels, nil
}

func (p *parser) selector() (*Selector, error) {
	if p.tok.tt != css.IdentToken {
		return nil, syntaxError(p.tok, "canvas, node, way, area or line")
	}
	kind, ok := ParseKind(p.tok.text)
	if !ok {
		return nil, syntaxError(p.tok, "canvas, node, way, area or line")
	}
	s := &Selector{Kind: kind, Line: p.tok.line}
	p.next()

	for p.tok.tt == css.LeftBracketToken {
		p.next()
		for {
			t, err := p.test()
			if err != nil {
				return nil, err
			}
			s.Tests = append(s.Tests, t)
			if p.tok.tt != css.CommaToken {
				break
			}
			p.next()
		}
		if p.tok.tt != css.RightBracketToken {
			return nil, syntaxError(p.tok, "']'")
		}
		p.next()
	}

	if p.tok.delim('|') {
		p.next()
		z, err := p.zoom()
		if err != nil {
			return nil, err
		}
		s.Zoom = z
	}
	return s, nil
}

func (p *parser) test() (Test, error) {
	if p.tok.delim('!') {
		p.next()
		if p.tok.tt != css.IdentToken {
			return Test{}, syntaxError(p.tok, "tag name")
		}
		t := Test{Op: OpIsNotSet, Tag: p.tok.text}
		p.next()
		return t, nil
	}

	if p.tok.tt != css.IdentToken {
		return Test{}, syntaxError(p.tok, "tag name or '!'")
	}
	t := Test{Op: OpIsSet, Tag: p.tok.text}
	p.next()

	switch {
	case p.tok.delim('='):
		t.Op = OpEquals
		p.next()
	case p.tok.delim('!'):
		p.next()
		if !p.tok.delim('=') {
			return Test{}, syntaxError(p.tok, "'='")
		}
		t.Op = OpNotEquals
		p.next()
	default:
		return t, nil
	}

	switch p.tok.tt {
	case css.IdentToken, css.NumberToken, css.DimensionToken, css.PercentageToken:
		t.Value = p.tok.text
	case css.StringToken:
		t.Value = unquote(p.tok.text)
	default:
		return Test{}, syntaxError(p.tok, "tag value")
	}
	p.next()
	return t, nil
}

// zoom accepts z5, z10-15, z10- and z-15. Missing bounds are open.
func (p *parser) zoom() (*ZoomRange, error) {
	tok := p.tok
	if tok.tt != css.IdentToken || (tok.text[0] != 'z' && tok.text[0] != 'Z') {
		return nil, syntaxError(tok, "zoom range")
	}
	body := tok.text[1:]
	z := &ZoomRange{Min: 0, Max: MaxZoom}

	lo, hi, ranged := strings.Cut(body, "-")
	if lo != "" {
		n, err := strconv.Atoi(lo)
		if err != nil || n < 0 {
			return nil, syntaxError(tok, "zoom range")
		}
		z.Min = n
		if !ranged {
			z.Max = n
		}
	}
	if hi != "" {
		n, err := strconv.Atoi(hi)
		if err != nil || n < 0 {
			return nil, syntaxError(tok, "zoom range")
		}
		z.Max = n
	}
	if lo == "" && !ranged {
		return nil, syntaxError(tok, "zoom range")
	}
	if z.Min > z.Max {
		return nil, syntaxError(tok, "zoom range with min <= max")
	}
	p.next()
	return z, nil
}

func (p *parser) declaration() (Declaration, error) {
	if p.tok.tt != css.IdentToken {
		return Declaration{}, syntaxError(p.tok, "property name")
	}
	prop, ok := catalog[p.tok.text]
	if !ok {
		return Declaration{}, syntaxError(p.tok, "property name")
	}
	d := Declaration{Property: p.tok.text}
	p.next()

	if p.tok.tt != css.ColonToken {
		return Declaration{}, syntaxError(p.tok, "':'")
	}
	p.next()

	v, err := p.value(prop)
	if err != nil {
		return Declaration{}, err
	}
	d.Value = v

	switch p.tok.tt {
	case css.SemicolonToken:
		p.next()
	case css.RightBraceToken:
	default:
		return Declaration{}, syntaxError(p.tok, "';'")
	}
	return d, nil
}

func (p *parser) value(prop property) (Value, error) {
	switch prop.typ {
	case TypeNumber:
		return p.number()
	case TypeColor:
		return p.color()
	case TypeDash:
		return p.dashes()
	case TypeEnum:
		if p.tok.tt != css.IdentToken {
			return Value{}, typeError(p.tok, TypeEnum)
		}
		e, ok := prop.keywords[strings.ToLower(p.tok.text)]
		if !ok {
			return Value{}, typeError(p.tok, TypeEnum)
		}
		p.next()
		return Keyword(e), nil
	case TypeString:
		switch p.tok.tt {
		case css.StringToken:
			v := String(unquote(p.tok.text))
			p.next()
			return v, nil
		case css.IdentToken:
			v := String(p.tok.text)
			p.next()
			return v, nil
		}
		return Value{}, typeError(p.tok, TypeString)
	}
	return Value{}, typeError(p.tok, prop.typ)
}

func (p *parser) float() (float64, bool) {
	text := p.tok.text
	switch p.tok.tt {
	case css.NumberToken:
	case css.DimensionToken:
		if !strings.HasSuffix(text, "px") {
			return 0, false
		}
		text = strings.TrimSuffix(text, "px")
	default:
		return 0, false
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func (p *parser) number() (Value, error) {
	f, ok := p.float()
	if !ok {
		return Value{}, typeError(p.tok, TypeNumber)
	}
	p.next()
	return Number(f), nil
}

func (p *parser) dashes() (Value, error) {
	if p.tok.tt == css.IdentToken && strings.EqualFold(p.tok.text, "none") {
		p.next()
		return Dashes(), nil
	}
	v := Value{Type: TypeDash}
	for {
		f, ok := p.float()
		if !ok || f < 0 || v.Dash.N == MaxDashes {
			return Value{}, typeError(p.tok, TypeDash)
		}
		v.Dash.Lengths[v.Dash.N] = f
		v.Dash.N++
		p.next()

		if p.tok.tt == css.CommaToken {
			p.next()
			continue
		}
		if p.tok.tt != css.NumberToken && p.tok.tt != css.DimensionToken {
			return v, nil
		}
	}
}

func (p *parser) color() (Value, error) {
	tok := p.tok
	switch tok.tt {
	case css.HashToken:
		c, ok := parseHex(tok.text[1:])
		if !ok {
			return Value{}, typeError(tok, TypeColor)
		}
		p.next()
		return Value{Type: TypeColor, Color: c}, nil
	case css.IdentToken:
		rgba, ok := colornames.Map[strings.ToLower(tok.text)]
		if !ok {
			return Value{}, typeError(tok, TypeColor)
		}
		p.next()
		return RGB(float64(rgba.R)/255, float64(rgba.G)/255, float64(rgba.B)/255), nil
	case css.FunctionToken:
		if !strings.EqualFold(tok.text, "rgb(") {
			return Value{}, typeError(tok, TypeColor)
		}
		p.next()
		var ch [3]float64
		for i := range ch {
			if i > 0 {
				if p.tok.tt != css.CommaToken {
					return Value{}, syntaxError(p.tok, "','")
				}
				p.next()
			}
			f, ok := p.float()
			if !ok || f < 0 || f > 255 {
				return Value{}, typeError(p.tok, TypeColor)
			}
			ch[i] = f / 255
			p.next()
		}
		if p.tok.tt != css.RightParenthesisToken {
			return Value{}, syntaxError(p.tok, "')'")
		}
		p.next()
		return RGB(ch[0], ch[1], ch[2]), nil
	}
	return Value{}, typeError(tok, TypeColor)
}

func parseHex(s string) (Color, bool) {
	var n [6]byte
	switch len(s) {
	case 3:
		for i := 0; i < 3; i++ {
			n[2*i], n[2*i+1] = s[i], s[i]
		}
	case 6:
		copy(n[:], s)
	default:
		return Color{}, false
	}
	var rgb [3]float64
	for i := range rgb {
		v, err := strconv.ParseUint(string(n[2*i:2*i+2]), 16, 8)
		if err != nil {
			return Color{}, false
		}
		rgb[i] = float64(v) / 255
	}
	return Color{R: rgb[0], G: rgb[1], B: rgb[2]}, true
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') {
		q := s[0]
		s = s[1:]
		if s[len(s)-1] == q {
			s = s[:len(s)-1]
		}
	}
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
