package document

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"github.com/wudi/pdftext/ir/raw"
)

// Metadata is the document information dictionary plus structural facts.
type Metadata struct {
	Title     string
	Author    string
	Subject   string
	Keywords  string
	Creator   string
	Producer  string
	Version   string
	PageCount int
}

// Metadata returns the Info dictionary strings of the newest revision.
func (d *Document) Metadata() Metadata {
	m := Metadata{Version: d.raw.Version, PageCount: len(d.pages)}
	info := d.Dict(d.raw.Trailer.KV["Info"])
	if info == nil {
		return m
	}
	str := func(key string) string {
		s, ok := d.Get(info, key).(raw.String)
		if !ok {
			return ""
		}
		return strings.TrimSpace(DecodeTextString(s.Bytes))
	}
	m.Title = str("Title")
	m.Author = str("Author")
	m.Subject = str("Subject")
	m.Keywords = str("Keywords")
	m.Creator = str("Creator")
	m.Producer = str("Producer")
	return m
}

var utf16Decoder = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)

// DecodeTextString decodes a PDF text string: UTF-16BE when it starts with
// a byte order mark, UTF-8 with its BOM, PDFDocEncoding otherwise.
func DecodeTextString(b []byte) string {
	switch {
	case bytes.HasPrefix(b, []byte{0xFE, 0xFF}):
		out, err := utf16Decoder.NewDecoder().Bytes(b)
		if err == nil {
			return string(out)
		}
	case bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}):
		return string(b[3:])
	}
	var sb strings.Builder
	for _, c := range b {
		if r, ok := pdfDocDiffs[c]; ok {
			sb.WriteRune(r)
			continue
		}
		sb.WriteRune(rune(c))
	}
	return sb.String()
}

// pdfDocDiffs lists where PDFDocEncoding departs from Latin-1.
var pdfDocDiffs = map[byte]rune{
	0x18: '˘', 0x19: 'ˇ', 0x1A: 'ˆ', 0x1B: '˙', 0x1C: '˝', 0x1D: '˛', 0x1E: '˚', 0x1F: '˜',
	0x80: '•', 0x81: '†', 0x82: '‡', 0x83: '…', 0x84: '—', 0x85: '–', 0x86: 'ƒ', 0x87: '⁄',
	0x88: '‹', 0x89: '›', 0x8A: '−', 0x8B: '‰', 0x8C: '„', 0x8D: '“', 0x8E: '”', 0x8F: '‘',
	0x90: '’', 0x91: '‚', 0x92: '™', 0x93: 'ﬁ', 0x94: 'ﬂ', 0x95: 'Ł', 0x96: 'Œ', 0x97: 'Š',
	0x98: 'Ÿ', 0x99: 'Ž', 0x9A: 'ı', 0x9B: 'ł', 0x9C: 'œ', 0x9D: 'š', 0x9E: 'ž', 0xA0: '€',
}
