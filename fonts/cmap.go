package fonts

import (
	"bytes"
	"io"

	"golang.org/x/text/encoding/unicode"

	"github.com/wudi/pdftext/ir/raw"
	"github.com/wudi/pdftext/recovery"
	"github.com/wudi/pdftext/scanner"
)

type codespace struct {
	lo, hi []byte
}

func (cs codespace) match(b []byte) bool {
	if len(b) < len(cs.lo) {
		return false
	}
	for i := range cs.lo {
		if b[i] < cs.lo[i] || b[i] > cs.hi[i] {
			return false
		}
	}
	return true
}

// codeKey combines the byte length and value of a code, so that <41> and
// <0041> stay distinct.
type codeKey uint64

func keyOf(b []byte) codeKey {
	return codeKey(uint64(len(b))<<32 | uint64(codeValue(b)))
}

func codeValue(b []byte) uint32 {
	var v uint32
	for _, c := range b {
		v = v<<8 | uint32(c)
	}
	return v
}

type bfRange struct {
	n      int
	lo, hi uint32
	base   []byte   // destination of lo, incremented across the range
	names  []string // explicit destinations, one per code
}

type cidRange struct {
	n      int
	lo, hi uint32
	cid    int
}

// CMap holds the mappings of a ToUnicode or encoding CMap.
type CMap struct {
	Name     string
	spaces   []codespace
	chars    map[codeKey]string
	ranges   []bfRange
	cidChars map[codeKey]int
	cidRngs  []cidRange
}

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// ParseCMap reads the codespace, bfchar, bfrange, cidchar and cidrange
// sections of a CMap program. Unreadable entries are skipped.
func ParseCMap(data []byte) *CMap {
	m := &CMap{chars: make(map[codeKey]string), cidChars: make(map[codeKey]int)}
	cfg := scanner.Config{Recovery: recovery.NewLenientStrategy(nil)}
	r := raw.NewObjectReader(scanner.New(bytes.NewReader(data), cfg))
	var operands []raw.Object
	for {
		tok, err := r.Next()
		if err != nil {
			if err != io.EOF {
				return m
			}
			break
		}
		if tok.Type != scanner.TokenKeyword {
			obj, err := r.Object(tok)
			if err == nil {
				operands = append(operands, obj)
			}
			continue
		}
		switch tok.Str {
		case "endcodespacerange":
			for i := 0; i+1 < len(operands); i += 2 {
				lo, ok1 := bytesOf(operands[i])
				hi, ok2 := bytesOf(operands[i+1])
				if ok1 && ok2 && len(lo) == len(hi) && len(lo) > 0 && len(lo) <= 4 {
					m.spaces = append(m.spaces, codespace{lo: lo, hi: hi})
				}
			}
		case "endbfchar":
			for i := 0; i+1 < len(operands); i += 2 {
				src, ok := bytesOf(operands[i])
				if !ok || len(src) == 0 || len(src) > 4 {
					continue
				}
				if dst, ok := destination(operands[i+1]); ok {
					m.chars[keyOf(src)] = dst
				}
			}
		case "endbfrange":
			for i := 0; i+2 < len(operands); i += 3 {
				m.addBFRange(operands[i], operands[i+1], operands[i+2])
			}
		case "endcidchar":
			for i := 0; i+1 < len(operands); i += 2 {
				src, ok := bytesOf(operands[i])
				cid, ok2 := operands[i+1].(raw.Number)
				if ok && ok2 && len(src) > 0 && len(src) <= 4 {
					m.cidChars[keyOf(src)] = int(cid.Int())
				}
			}
		case "endcidrange":
			for i := 0; i+2 < len(operands); i += 3 {
				lo, ok1 := bytesOf(operands[i])
				hi, ok2 := bytesOf(operands[i+1])
				cid, ok3 := operands[i+2].(raw.Number)
				if ok1 && ok2 && ok3 && len(lo) == len(hi) && len(lo) > 0 && len(lo) <= 4 {
					m.cidRngs = append(m.cidRngs, cidRange{n: len(lo), lo: codeValue(lo), hi: codeValue(hi), cid: int(cid.Int())})
				}
			}
		case "def":
			if len(operands) == 2 {
				if k, ok := operands[0].(raw.Name); ok && k == "CMapName" {
					if v, ok := operands[1].(raw.Name); ok {
						m.Name = string(v)
					}
				}
			}
		}
		operands = operands[:0]
	}
	return m
}

func (m *CMap) addBFRange(loObj, hiObj, dstObj raw.Object) {
	lo, ok1 := bytesOf(loObj)
	hi, ok2 := bytesOf(hiObj)
	if !ok1 || !ok2 || len(lo) != len(hi) || len(lo) == 0 || len(lo) > 4 {
		return
	}
	rng := bfRange{n: len(lo), lo: codeValue(lo), hi: codeValue(hi)}
	if rng.hi < rng.lo {
		return
	}
	switch d := dstObj.(type) {
	case raw.String:
		rng.base = append([]byte(nil), d.Bytes...)
	case *raw.Array:
		for _, item := range d.Items {
			s, _ := destination(item)
			rng.names = append(rng.names, s)
		}
	default:
		return
	}
	m.ranges = append(m.ranges, rng)
}

func bytesOf(o raw.Object) ([]byte, bool) {
	s, ok := o.(raw.String)
	return s.Bytes, ok
}

// destination decodes a bf destination: UTF-16BE bytes or a glyph name.
func destination(o raw.Object) (string, bool) {
	switch v := o.(type) {
	case raw.String:
		return decodeUTF16(v.Bytes), true
	case raw.Name:
		return GlyphText(string(v))
	}
	return "", false
}

func decodeUTF16(b []byte) string {
	switch len(b) {
	case 0:
		return ""
	case 1:
		return string(rune(b[0]))
	}
	out, err := utf16be.NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return string(out)
}

// Split cuts data into codes using the codespace ranges. Bytes matching no
// range are consumed fallback bytes at a time.
func (m *CMap) Split(data []byte, fallback int) [][]byte {
	var out [][]byte
	for len(data) > 0 {
		n := 0
		for _, cs := range m.spaces {
			if cs.match(data) {
				n = len(cs.lo)
				break
			}
		}
		if n == 0 {
			n = fallback
		}
		if n > len(data) {
			n = len(data)
		}
		out = append(out, data[:n])
		data = data[n:]
	}
	return out
}

func splitFixed(data []byte, n int) [][]byte {
	out := make([][]byte, 0, (len(data)+n-1)/n)
	for len(data) > 0 {
		k := n
		if k > len(data) {
			k = len(data)
		}
		out = append(out, data[:k])
		data = data[k:]
	}
	return out
}

// HasCodespace reports whether the CMap declared codespace ranges.
func (m *CMap) HasCodespace() bool { return len(m.spaces) > 0 }

// Lookup returns the Unicode text of code.
func (m *CMap) Lookup(code []byte) (string, bool) {
	if s, ok := m.chars[keyOf(code)]; ok {
		return s, true
	}
	v := codeValue(code)
	for i := len(m.ranges) - 1; i >= 0; i-- {
		r := m.ranges[i]
		if r.n != len(code) || v < r.lo || v > r.hi {
			continue
		}
		off := v - r.lo
		if r.names != nil {
			if int(off) < len(r.names) && r.names[off] != "" {
				return r.names[off], true
			}
			return "", false
		}
		return decodeUTF16(increment(r.base, off)), true
	}
	return "", false
}

// increment adds off to the last code unit of dst.
func increment(dst []byte, off uint32) []byte {
	out := append([]byte(nil), dst...)
	switch {
	case len(out) == 0:
	case len(out) == 1:
		out[0] += byte(off)
	default:
		n := len(out)
		v := uint32(out[n-2])<<8 | uint32(out[n-1])
		v += off
		out[n-2], out[n-1] = byte(v>>8), byte(v)
	}
	return out
}

// CID returns the CID of code in an encoding CMap. Unmapped codes use the
// code value, which is the Identity mapping.
func (m *CMap) CID(code []byte) int {
	if cid, ok := m.cidChars[keyOf(code)]; ok {
		return cid
	}
	v := codeValue(code)
	for i := len(m.cidRngs) - 1; i >= 0; i-- {
		r := m.cidRngs[i]
		if r.n == len(code) && v >= r.lo && v <= r.hi {
			return r.cid + int(v-r.lo)
		}
	}
	return int(v)
}
