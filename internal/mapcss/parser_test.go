package mapcss

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse_ErrorPositions(t *testing.T) {
	cases := []struct {
		name      string
		src       string
		kind      error
		line, col int
	}{
		{"unknown kind", "foo { width: 1; }", ErrSyntax, 1, 0},
		{"unknown kind later", "way {\n}\nbad {}", ErrSyntax, 3, 0},
		{"missing brace", "way {}\n\nway}", ErrSyntax, 3, 3},
		{"wrong value type", "way {\n  width: 1;\n   color: 12;\n}", ErrType, 3, 10},
		{"unknown property", "way {\n width: 1;\n color: red;\nfoo: 2;\n}", ErrSyntax, 4, 0},
		{"unknown property indented", "node {}\n\n\nway {\n  width: 2;\n\n    bogus: 1;\n}", ErrSyntax, 7, 4},
		{"missing colon", "way { width 2; }", ErrSyntax, 1, 12},
		{"bad enum", "way { linecap: wobbly; }", ErrType, 1, 15},
		{"too many dashes", "way { dashes: 1,2,3,4,5; }", ErrType, 1, 22},
		{"bad zoom", "way|z9-3 { width: 1; }", ErrSyntax, 1, 4},
		{"unterminated", "way { width: 1;", ErrSyntax, 1, 15},
		{"unclosed test", "way[highway { }", ErrSyntax, 1, 12},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.src)
			if !errors.Is(err, tc.kind) {
				t.Fatalf("err=%v want %v", err, tc.kind)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("err %T is not *ParseError", err)
			}
			if pe.Line != tc.line || pe.Column != tc.col {
				t.Fatalf("at %d:%d want %d:%d (%s)", pe.Line, pe.Column, tc.line, tc.col, pe.Msg)
			}
		})
	}
}

func TestParse_ErrorMessage(t *testing.T) {
	_, err := Parse("way {\n}\nbad {}")
	if err == nil || !strings.HasPrefix(err.Error(), "Unexpected token 'bad' at 3:0, expected: ") {
		t.Fatalf("message=%v", err)
	}
	_, err = Parse("way { width: red; }")
	if err == nil || !strings.HasPrefix(err.Error(), "Unexpected type at 1:13") {
		t.Fatalf("message=%v", err)
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestParse_Values(t *testing.T) {
	ss := mustParse(t, `
/* every value form */
way {
  width: 2.5;
  casing-width: 1px;
  z-index: -3;
  color: #f00;
  fill-color: #336699;
  casing-color: rgb(255, 128, 0);
  text-color: navy;
  dashes: 4, 2;
  casing-dashes: 1 2 3;
  linecap: round;
  casing-linecap: butt;
  linejoin: bevel;
  font-family: "Go Mono";
  font-weight: bold;
  font-style: italic;
  font-variant: small-caps;
  text-decoration: underline;
  text-transform: uppercase;
  text-position: line;
  text: name
}
`)
	st := ss.Style(KindWay, nil, 0)

	if st.Num("width") != 2.5 || st.Num("casing-width") != 1 || st.Num("z-index") != -3 {
		t.Fatalf("numbers: %v %v %v", st.Num("width"), st.Num("casing-width"), st.Num("z-index"))
	}
	if c := st.Color("color"); c != (Color{1, 0, 0}) {
		t.Fatalf("color=%+v", c)
	}
	if c := st.Color("fill-color"); !near(c.R, 0x33/255.0) || !near(c.G, 0x66/255.0) || !near(c.B, 0x99/255.0) {
		t.Fatalf("fill-color=%+v", c)
	}
	if c := st.Color("casing-color"); c.R != 1 || !near(c.G, 128/255.0) || c.B != 0 {
		t.Fatalf("casing-color=%+v", c)
	}
	if c := st.Color("text-color"); c.R != 0 || c.G != 0 || !near(c.B, 128/255.0) {
		t.Fatalf("text-color=%+v", c)
	}
	if d := st.Dash("dashes"); d.N != 2 || d.Lengths[0] != 4 || d.Lengths[1] != 2 {
		t.Fatalf("dashes=%+v", d)
	}
	if p := st.Dash("casing-dashes").Pattern(); len(p) != 3 || p[2] != 3 {
		t.Fatalf("casing-dashes=%v", p)
	}

	enums := map[string]Enum{
		"linecap": LineCapRound, "casing-linecap": LineCapNone, "linejoin": LineJoinBevel,
		"font-weight": FontWeightBold, "font-style": FontStyleItalic, "font-variant": FontVariantSmallCaps,
		"text-decoration": TextDecorationUnderline, "text-transform": TextTransformUppercase,
		"text-position": TextPositionLine,
	}
	for name, want := range enums {
		if got := st.Enum(name); got != want {
			t.Fatalf("%s=%v want %v", name, got, want)
		}
	}
	if st.Str("font-family") != "Go Mono" || st.Str("text") != "name" {
		t.Fatalf("strings: %q %q", st.Str("font-family"), st.Str("text"))
	}
}

func TestParse_SelectorList(t *testing.T) {
	ss := mustParse(t, `way, area[building] { width: 2; }`)
	if ss.NumStyles() != 2 {
		t.Fatalf("NumStyles=%d want 2", ss.NumStyles())
	}
	if got := ss.Style(KindWay, map[string]string{"area": "yes"}, 1).Num("width"); got != 2 {
		t.Fatalf("way width=%v", got)
	}
	if got := ss.Style(KindArea, map[string]string{"building": "yes"}, 1).Num("width"); got != 2 {
		t.Fatalf("area width=%v", got)
	}
	if got := ss.Style(KindArea, nil, 1).Num("width"); got != 1 {
		t.Fatalf("area without building width=%v", got)
	}
}

func TestParse_ZoomForms(t *testing.T) {
	cases := map[string]ZoomRange{
		"z5":     {5, 5},
		"z10-15": {10, 15},
		"z12-":   {12, MaxZoom},
		"z-4":    {0, 4},
	}
	for form, want := range cases {
		ss := mustParse(t, "node|"+form+" { width: 2; }")
		got := ss.Selectors(KindNode)[0].Zoom
		if got == nil || *got != want {
			t.Fatalf("%s: zoom=%v want %v", form, got, want)
		}
	}
}

func TestParse_TestForms(t *testing.T) {
	ss := mustParse(t, `node[name][!ref][kind="ice cream"][rank!=3] {}`)
	sel := ss.Selectors(KindNode)[0]
	want := []Test{
		{Op: OpIsSet, Tag: "name"},
		{Op: OpIsNotSet, Tag: "ref"},
		{Op: OpEquals, Tag: "kind", Value: "ice cream"},
		{Op: OpNotEquals, Tag: "rank", Value: "3"},
	}
	if len(sel.Tests) != len(want) {
		t.Fatalf("tests=%v", sel.Tests)
	}
	for i := range want {
		if sel.Tests[i] != want[i] {
			t.Fatalf("test %d=%+v want %+v", i, sel.Tests[i], want[i])
		}
	}
	if sel.Line != 1 || len(sel.Decls) != 0 {
		t.Fatalf("line=%d decls=%d", sel.Line, len(sel.Decls))
	}
}

func TestParse_Empty(t *testing.T) {
	ss := mustParse(t, "  /* nothing */ \n")
	if ss.NumStyles() != 0 {
		t.Fatalf("NumStyles=%d", ss.NumStyles())
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.mapcss")
	if err := os.WriteFile(good, []byte("canvas { fill-color: white; }"), 0o644); err != nil {
		t.Fatal(err)
	}
	ss, err := LoadFile(good)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if c := ss.Style(KindCanvas, nil, 0).Color("fill-color"); c != (Color{1, 1, 1}) {
		t.Fatalf("fill-color=%+v", c)
	}

	bad := filepath.Join(dir, "bad.mapcss")
	if err := os.WriteFile(bad, []byte("way {"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(bad); !errors.Is(err, ErrSyntax) || !strings.Contains(err.Error(), "bad.mapcss") {
		t.Fatalf("err=%v", err)
	}
	if _, err := LoadFile(filepath.Join(dir, "missing.mapcss")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v", err)
	}
}
