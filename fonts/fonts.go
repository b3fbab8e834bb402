// Package fonts decodes the bytes of PDF text strings into glyphs: the
// Unicode text of each character code and its advance width.
package fonts

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/image/font/sfnt"

	"github.com/wudi/pdftext/ir/raw"
)

// Resolver gives access to the objects of the document a font lives in.
type Resolver interface {
	Resolve(obj raw.Object) raw.Object
	Stream(ctx context.Context, obj raw.Object) ([]byte, *raw.Dict, error)
}

// Glyph is one decoded character code.
type Glyph struct {
	Code      int
	Text      string
	Width     float64 // text space units, before font size scaling
	WordSpace bool    // single-byte code 32, which receives word spacing
}

type widthRange struct {
	lo, hi int
	w      float64
}

// Font is a loaded font resource.
type Font struct {
	Name    string // BaseFont without a subset prefix
	Subtype string

	composite bool
	toUnicode *CMap
	encoding  *CMap // code to CID for composite fonts, nil for Identity
	table     *encodingTable
	std       *stdMetrics
	gidRunes  map[int]rune
	cidToGID  []byte

	widths   map[int]float64
	wRanges  []widthRange
	defWidth float64
	hscale   float64
	vscale   float64
	descent  float64
}

// Load reads the font dictionary obj. Missing or damaged entries fall back
// to defaults; only a non-dictionary is an error.
func Load(ctx context.Context, r Resolver, obj raw.Object) (*Font, error) {
	d := dictOf(r, obj)
	if d == nil {
		return nil, fmt.Errorf("font is not a dictionary")
	}
	f := &Font{
		Subtype: nameOf(r, d, "Subtype"),
		Name:    stripSubset(nameOf(r, d, "BaseFont")),
		widths:  make(map[int]float64),
		hscale:  0.001,
		vscale:  0.001,
	}
	if tu, ok := d.Get("ToUnicode"); ok {
		if data, _, err := r.Stream(ctx, tu); err == nil {
			f.toUnicode = ParseCMap(data)
		}
	}
	if f.Subtype == "Type0" {
		f.loadComposite(ctx, r, d)
	} else {
		f.loadSimple(ctx, r, d)
	}
	return f, nil
}

func (f *Font) loadSimple(ctx context.Context, r Resolver, d *raw.Dict) {
	f.std = standardFonts[f.Name]
	desc := dictOf(r, get(d, "FontDescriptor"))
	if f.Subtype == "Type3" {
		if m, ok := numbers(r, get(d, "FontMatrix")); ok && len(m) == 6 {
			f.hscale, f.vscale = m[0], m[3]
		}
		if bbox, ok := numbers(r, get(d, "FontBBox")); ok && len(bbox) == 4 {
			f.descent = bbox[1]
		}
	}

	table := *standardEncoding
	encObj := r.Resolve(get(d, "Encoding"))
	switch enc := encObj.(type) {
	case raw.Name:
		if base, ok := baseEncoding(string(enc)); ok {
			table = *base
		}
	case *raw.Dict:
		if base, ok := baseEncoding(nameOf(r, enc, "BaseEncoding")); ok {
			table = *base
		}
		applyDifferences(&table, r, get(enc, "Differences"))
	default:
		if f.Subtype == "Type1" && desc != nil {
			if ff, ok := desc.Get("FontFile"); ok {
				if data, _, err := r.Stream(ctx, ff); err == nil {
					if builtin := type1Encoding(data); builtin != nil {
						table = encodingTable{}
						for code, name := range builtin {
							table[code], _ = GlyphText(name)
						}
					}
				}
			}
		}
	}
	f.table = &table

	if first, ok := number(r, get(d, "FirstChar")); ok {
		if ws, ok := numbers(r, get(d, "Widths")); ok {
			for i, w := range ws {
				f.widths[int(first)+i] = w
			}
		}
	}
	if f.std != nil {
		f.descent = f.std.descent
	}
	if desc != nil {
		if mw, ok := number(r, get(desc, "MissingWidth")); ok {
			f.defWidth = mw
		}
		if dv, ok := number(r, get(desc, "Descent")); ok && f.Subtype != "Type3" {
			f.descent = dv
		}
	}
}

func applyDifferences(t *encodingTable, r Resolver, obj raw.Object) {
	arr, ok := r.Resolve(obj).(*raw.Array)
	if !ok {
		return
	}
	code := -1
	for _, item := range arr.Items {
		switch v := r.Resolve(item).(type) {
		case raw.Number:
			code = int(v.Int())
		case raw.Name:
			if code >= 0 && code < 256 {
				t[code], _ = GlyphText(string(v))
				code++
			}
		}
	}
}

func (f *Font) loadComposite(ctx context.Context, r Resolver, d *raw.Dict) {
	f.composite = true
	f.defWidth = 1000
	if enc, ok := r.Resolve(get(d, "Encoding")).(*raw.Stream); ok {
		if data, _, err := r.Stream(ctx, enc); err == nil {
			f.encoding = ParseCMap(data)
		}
	}
	desc := r.Resolve(get(d, "DescendantFonts"))
	if arr, ok := desc.(*raw.Array); ok && arr.Len() > 0 {
		desc = r.Resolve(arr.Items[0])
	}
	cid := dictOf(r, desc)
	if cid == nil {
		return
	}
	if dw, ok := number(r, get(cid, "DW")); ok {
		f.defWidth = dw
	}
	f.parseW(r, get(cid, "W"))
	fd := dictOf(r, get(cid, "FontDescriptor"))
	if fd == nil {
		return
	}
	if dv, ok := number(r, get(fd, "Descent")); ok {
		f.descent = dv
	}
	if f.toUnicode != nil {
		return
	}
	if m, ok := cid.Get("CIDToGIDMap"); ok {
		if data, _, err := r.Stream(ctx, m); err == nil {
			f.cidToGID = data
		}
	}
	if ff, ok := fd.Get("FontFile2"); ok {
		if data, _, err := r.Stream(ctx, ff); err == nil {
			f.gidRunes = reverseCmap(data)
		}
	}
}

// parseW reads a CIDFont /W array: "c [w1 w2 ...]" and "c1 c2 w" entries.
func (f *Font) parseW(r Resolver, obj raw.Object) {
	arr, ok := r.Resolve(obj).(*raw.Array)
	if !ok {
		return
	}
	items := arr.Items
	for i := 0; i < len(items); {
		first, ok := r.Resolve(items[i]).(raw.Number)
		if !ok || i+1 >= len(items) {
			return
		}
		switch next := r.Resolve(items[i+1]).(type) {
		case *raw.Array:
			for j, w := range next.Items {
				if n, ok := r.Resolve(w).(raw.Number); ok {
					f.widths[int(first.Int())+j] = n.Float()
				}
			}
			i += 2
		case raw.Number:
			if i+2 >= len(items) {
				return
			}
			w, ok := r.Resolve(items[i+2]).(raw.Number)
			if !ok {
				return
			}
			f.wRanges = append(f.wRanges, widthRange{lo: int(first.Int()), hi: int(next.Int()), w: w.Float()})
			i += 3
		default:
			return
		}
	}
}

// reverseCmap maps glyph indices of a TrueType program back to the first
// BMP rune that selects them.
func reverseCmap(data []byte) map[int]rune {
	font, err := sfnt.Parse(data)
	if err != nil {
		return nil
	}
	var buf sfnt.Buffer
	out := make(map[int]rune)
	for r := rune(0x20); r <= 0xFFFF; r++ {
		if r >= 0xD800 && r <= 0xDFFF {
			continue
		}
		gid, err := font.GlyphIndex(&buf, r)
		if err != nil || gid == 0 {
			continue
		}
		if _, seen := out[int(gid)]; !seen {
			out[int(gid)] = r
		}
	}
	return out
}

// Composite reports whether the font uses multi-byte codes.
func (f *Font) Composite() bool { return f.composite }

// Descent returns the font's descent in text space units.
func (f *Font) Descent() float64 { return f.descent * f.vscale }

// Decode splits a string operand into glyphs.
func (f *Font) Decode(data []byte) []Glyph {
	if !f.composite {
		out := make([]Glyph, len(data))
		for i, b := range data {
			code := int(b)
			text := f.simpleText(code)
			out[i] = Glyph{Code: code, Text: text, Width: f.simpleWidth(code, text) * f.hscale, WordSpace: code == 32}
		}
		return out
	}
	var codes [][]byte
	if f.encoding != nil && f.encoding.HasCodespace() {
		codes = f.encoding.Split(data, 2)
	} else {
		codes = splitFixed(data, 2)
	}
	out := make([]Glyph, 0, len(codes))
	for _, code := range codes {
		cid := int(codeValue(code))
		if f.encoding != nil {
			cid = f.encoding.CID(code)
		}
		out = append(out, Glyph{Code: int(codeValue(code)), Text: f.compositeText(code, cid), Width: f.cidWidth(cid) * f.hscale})
	}
	return out
}

func (f *Font) simpleText(code int) string {
	if f.toUnicode != nil {
		if s, ok := f.toUnicode.Lookup([]byte{byte(code)}); ok {
			return s
		}
	}
	if s := f.table[code]; s != "" {
		return s
	}
	return cidText(code)
}

func (f *Font) simpleWidth(code int, text string) float64 {
	if w, ok := f.widths[code]; ok {
		return w
	}
	if f.std != nil {
		if w, ok := f.std.width(text); ok {
			return w
		}
	}
	return f.defWidth
}

func (f *Font) compositeText(code []byte, cid int) string {
	if f.toUnicode != nil {
		if s, ok := f.toUnicode.Lookup(code); ok {
			return s
		}
	}
	if f.gidRunes != nil {
		gid := cid
		if n := 2*cid + 1; cid >= 0 && n < len(f.cidToGID) {
			gid = int(f.cidToGID[2*cid])<<8 | int(f.cidToGID[n])
		}
		if r, ok := f.gidRunes[gid]; ok {
			return string(r)
		}
	}
	v := codeValue(code)
	if v >= 0x20 && (v < 0xD800 || v > 0xDFFF) && v <= 0xFFFF {
		return string(rune(v))
	}
	return cidText(int(v))
}

func (f *Font) cidWidth(cid int) float64 {
	if w, ok := f.widths[cid]; ok {
		return w
	}
	for i := len(f.wRanges) - 1; i >= 0; i-- {
		if r := f.wRanges[i]; cid >= r.lo && cid <= r.hi {
			return r.w
		}
	}
	return f.defWidth
}

func cidText(code int) string { return fmt.Sprintf("(cid:%d)", code) }

// stripSubset removes the six-letter tag of a subset font name.
func stripSubset(name string) string {
	if len(name) > 7 && name[6] == '+' && strings.ToUpper(name[:6]) == name[:6] {
		return name[7:]
	}
	return name
}

func get(d *raw.Dict, key string) raw.Object {
	if d == nil {
		return nil
	}
	v, _ := d.Get(key)
	return v
}

func dictOf(r Resolver, obj raw.Object) *raw.Dict {
	if obj == nil {
		return nil
	}
	switch v := r.Resolve(obj).(type) {
	case *raw.Dict:
		return v
	case *raw.Stream:
		return v.Dict
	}
	return nil
}

func nameOf(r Resolver, d *raw.Dict, key string) string {
	n, _ := r.Resolve(get(d, key)).(raw.Name)
	return string(n)
}

func number(r Resolver, obj raw.Object) (float64, bool) {
	n, ok := r.Resolve(obj).(raw.Number)
	return n.Float(), ok
}

func numbers(r Resolver, obj raw.Object) ([]float64, bool) {
	arr, ok := r.Resolve(obj).(*raw.Array)
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, arr.Len())
	for _, item := range arr.Items {
		v, ok := number(r, item)
		if !ok {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}
