package fonts

import (
	"unicode"

	"golang.org/x/text/encoding/charmap"
)

// encodingTable maps single-byte codes to text. Empty entries are undefined.
type encodingTable [256]string

// standardHigh lists StandardEncoding above the ASCII range.
var standardHigh = map[byte]string{
	161: "exclamdown", 162: "cent", 163: "sterling", 164: "fraction", 165: "yen",
	166: "florin", 167: "section", 168: "currency", 169: "quotesingle",
	170: "quotedblleft", 171: "guillemotleft", 172: "guilsinglleft",
	173: "guilsinglright", 174: "fi", 175: "fl", 177: "endash", 178: "dagger",
	179: "daggerdbl", 180: "periodcentered", 182: "paragraph", 183: "bullet",
	184: "quotesinglbase", 185: "quotedblbase", 186: "quotedblright",
	187: "guillemotright", 188: "ellipsis", 189: "perthousand",
	191: "questiondown", 193: "grave", 194: "acute", 195: "circumflex",
	196: "tilde", 197: "macron", 198: "breve", 199: "dotaccent", 200: "dieresis",
	202: "ring", 203: "cedilla", 205: "hungarumlaut", 206: "ogonek", 207: "caron",
	208: "emdash", 225: "AE", 227: "ordfeminine", 232: "Lslash", 233: "Oslash",
	234: "OE", 235: "ordmasculine", 241: "ae", 245: "dotlessi", 248: "lslash",
	249: "oslash", 250: "oe", 251: "germandbls",
}

var (
	standardEncoding = buildStandard()
	winAnsiEncoding  = fromCharmap(charmap.Windows1252)
	macRomanEncoding = fromCharmap(charmap.Macintosh)
)

func buildStandard() *encodingTable {
	var t encodingTable
	for i, name := range asciiNames {
		t[32+i], _ = GlyphText(name)
	}
	t['\''] = "’"
	t['`'] = "‘"
	for code, name := range standardHigh {
		t[code], _ = GlyphText(name)
	}
	return &t
}

func fromCharmap(cm *charmap.Charmap) *encodingTable {
	var t encodingTable
	for c := 32; c < 256; c++ {
		r := cm.DecodeByte(byte(c))
		if r == unicode.ReplacementChar || unicode.IsControl(r) {
			continue
		}
		t[c] = string(r)
	}
	return &t
}

// baseEncoding returns the table for a predefined encoding name.
func baseEncoding(name string) (*encodingTable, bool) {
	switch name {
	case "WinAnsiEncoding":
		return winAnsiEncoding, true
	case "MacRomanEncoding":
		return macRomanEncoding, true
	case "StandardEncoding":
		return standardEncoding, true
	}
	return nil, false
}
