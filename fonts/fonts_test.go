package fonts

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/wudi/pdftext/ir/raw"
)

// memResolver serves objects from a map. Streams are returned undecoded.
type memResolver map[int]raw.Object

func (m memResolver) Resolve(obj raw.Object) raw.Object {
	if ref, ok := obj.(raw.Ref); ok {
		return m[ref.Num]
	}
	return obj
}

func (m memResolver) Stream(_ context.Context, obj raw.Object) ([]byte, *raw.Dict, error) {
	st, ok := m.Resolve(obj).(*raw.Stream)
	if !ok {
		return nil, nil, errors.New("not a stream")
	}
	return st.Data, st.Dict, nil
}

func dict(kv ...interface{}) *raw.Dict {
	d := raw.NewDict()
	for i := 0; i+1 < len(kv); i += 2 {
		d.Set(kv[i].(string), kv[i+1].(raw.Object))
	}
	return d
}

func nums(vals ...float64) *raw.Array {
	arr := raw.NewArray()
	for _, v := range vals {
		arr.Items = append(arr.Items, raw.Real(v))
	}
	return arr
}

func text(glyphs []Glyph) string {
	var s string
	for _, g := range glyphs {
		s += g.Text
	}
	return s
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestStandardFontWidthsAndDescent(t *testing.T) {
	f, err := Load(context.Background(), memResolver{}, dict(
		"Type", raw.Name("Font"), "Subtype", raw.Name("Type1"),
		"BaseFont", raw.Name("Helvetica"), "Encoding", raw.Name("WinAnsiEncoding"),
	))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	glyphs := f.Decode([]byte("Hi !"))
	if text(glyphs) != "Hi !" {
		t.Fatalf("unexpected text %q", text(glyphs))
	}
	want := []float64{0.722, 0.222, 0.278, 0.278}
	for i, g := range glyphs {
		if !near(g.Width, want[i]) {
			t.Fatalf("glyph %d: expected width %v, got %v", i, want[i], g.Width)
		}
	}
	if !glyphs[2].WordSpace || glyphs[0].WordSpace {
		t.Fatalf("word space flag misassigned: %+v", glyphs)
	}
	if !near(f.Descent(), -0.207) {
		t.Fatalf("unexpected descent %v", f.Descent())
	}
}

func TestCourierIsMonospaced(t *testing.T) {
	f, _ := Load(context.Background(), memResolver{}, dict("Subtype", raw.Name("Type1"), "BaseFont", raw.Name("Courier")))
	for _, g := range f.Decode([]byte("iW")) {
		if !near(g.Width, 0.6) {
			t.Fatalf("expected 0.6, got %v", g.Width)
		}
	}
}

func TestWidthsArrayAndMissingWidth(t *testing.T) {
	r := memResolver{5: dict("Type", raw.Name("FontDescriptor"), "MissingWidth", raw.Int(250), "Descent", raw.Int(-300))}
	f, _ := Load(context.Background(), r, dict(
		"Subtype", raw.Name("TrueType"), "BaseFont", raw.Name("ABCDEF+Custom"),
		"FirstChar", raw.Int(65), "Widths", nums(600, 700),
		"FontDescriptor", raw.NewRef(5, 0),
	))
	if f.Name != "Custom" {
		t.Fatalf("subset prefix not stripped: %q", f.Name)
	}
	g := f.Decode([]byte("ABC"))
	if !near(g[0].Width, 0.6) || !near(g[1].Width, 0.7) || !near(g[2].Width, 0.25) {
		t.Fatalf("unexpected widths %+v", g)
	}
	if !near(f.Descent(), -0.3) {
		t.Fatalf("unexpected descent %v", f.Descent())
	}
}

func TestDifferencesOverrideBaseEncoding(t *testing.T) {
	diffs := raw.NewArray(raw.Int(65), raw.Name("eacute"), raw.Name("fi"), raw.Int(100), raw.Name("uni263A"))
	f, _ := Load(context.Background(), memResolver{}, dict(
		"Subtype", raw.Name("Type1"), "BaseFont", raw.Name("Custom"),
		"Encoding", dict("BaseEncoding", raw.Name("MacRomanEncoding"), "Differences", diffs),
	))
	if got := text(f.Decode([]byte{65, 66, 67, 100, 0x8E})); got != "éﬁC☺é" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestStandardEncodingQuotes(t *testing.T) {
	f, _ := Load(context.Background(), memResolver{}, dict("Subtype", raw.Name("Type1"), "BaseFont", raw.Name("Custom")))
	if got := text(f.Decode([]byte("`a'"))); got != "‘a’" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestUndefinedCodeFallsBackToCID(t *testing.T) {
	f, _ := Load(context.Background(), memResolver{}, dict("Subtype", raw.Name("Type1"), "BaseFont", raw.Name("Custom")))
	if got := text(f.Decode([]byte{3})); got != "(cid:3)" {
		t.Fatalf("unexpected text %q", got)
	}
}

const toUnicode = `/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
/CMapName /Test-UCS def
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
2 beginbfchar
<0003> <0020>
<0011> <00660069>
endbfchar
2 beginbfrange
<0024> <0026> <0041>
<0030> <0031> [<0078> /eacute]
endbfrange
endcmap
CMapName currentdict /CMap defineresource pop
end
end`

func TestType0WithToUnicode(t *testing.T) {
	r := memResolver{
		7: raw.NewStream(raw.NewDict(), []byte(toUnicode)),
		8: dict("Subtype", raw.Name("CIDFontType2"), "DW", raw.Int(500),
			"W", raw.NewArray(raw.Int(36), nums(600, 650), raw.Int(48), raw.Int(49), raw.Int(900))),
	}
	f, err := Load(context.Background(), r, dict(
		"Subtype", raw.Name("Type0"), "BaseFont", raw.Name("Noto"),
		"Encoding", raw.Name("Identity-H"), "ToUnicode", raw.NewRef(7, 0),
		"DescendantFonts", raw.NewArray(raw.NewRef(8, 0)),
	))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	glyphs := f.Decode([]byte{0x00, 0x24, 0x00, 0x25, 0x00, 0x03, 0x00, 0x11, 0x00, 0x30, 0x00, 0x31, 0x00, 0x26})
	if got := text(glyphs); got != "AB fixéC" {
		t.Fatalf("unexpected text %q", got)
	}
	wantW := []float64{0.6, 0.65, 0.5, 0.5, 0.9, 0.9, 0.5}
	for i, g := range glyphs {
		if !near(g.Width, wantW[i]) {
			t.Fatalf("glyph %d: expected width %v, got %v", i, wantW[i], g.Width)
		}
		if g.WordSpace {
			t.Fatalf("composite glyph flagged for word spacing")
		}
	}
}

func TestType0WithoutToUnicodeUsesCodeValue(t *testing.T) {
	f, _ := Load(context.Background(), memResolver{}, dict(
		"Subtype", raw.Name("Type0"), "Encoding", raw.Name("Identity-H"),
		"DescendantFonts", raw.NewArray(dict("Subtype", raw.Name("CIDFontType0"))),
	))
	glyphs := f.Decode([]byte{0x00, 0x41, 0x00, 0x05})
	if glyphs[0].Text != "A" || glyphs[1].Text != "(cid:5)" {
		t.Fatalf("unexpected glyphs %+v", glyphs)
	}
	if !near(glyphs[0].Width, 1) {
		t.Fatalf("expected default width 1, got %v", glyphs[0].Width)
	}
}

func TestType3FontMatrixScalesWidths(t *testing.T) {
	f, _ := Load(context.Background(), memResolver{}, dict(
		"Subtype", raw.Name("Type3"), "FontMatrix", nums(0.01, 0, 0, 0.01, 0, 0),
		"FontBBox", nums(0, -20, 100, 80), "FirstChar", raw.Int(97), "Widths", nums(50),
	))
	g := f.Decode([]byte("a"))
	if !near(g[0].Width, 0.5) {
		t.Fatalf("expected 0.5, got %v", g[0].Width)
	}
	if !near(f.Descent(), -0.2) {
		t.Fatalf("expected -0.2, got %v", f.Descent())
	}
}

func TestLoadRejectsNonDictionary(t *testing.T) {
	if _, err := Load(context.Background(), memResolver{}, raw.Int(3)); err == nil {
		t.Fatalf("expected error")
	}
}

func TestGlyphText(t *testing.T) {
	cases := map[string]string{
		"A":           "A",
		"eacute":      "é",
		"uni00410042": "AB",
		"u1F600":      "😀",
		"f_f_i":       "ffi",
		"a.sc":        "a",
		"emdash":      "—",
	}
	for name, want := range cases {
		got, ok := GlyphText(name)
		if !ok || got != want {
			t.Fatalf("%s: expected %q, got %q (%v)", name, want, got, ok)
		}
	}
	for _, name := range []string{"", "g123", "uniZZZZ", "notaglyph"} {
		if _, ok := GlyphText(name); ok {
			t.Fatalf("%q should not resolve", name)
		}
	}
}
