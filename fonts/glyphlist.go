package fonts

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// asciiNames are the glyph names of codes 32 through 126.
var asciiNames = strings.Fields(`space exclam quotedbl numbersign dollar percent
ampersand quotesingle parenleft parenright asterisk plus comma hyphen period
slash zero one two three four five six seven eight nine colon semicolon less
equal greater question at A B C D E F G H I J K L M N O P Q R S T U V W X Y Z
bracketleft backslash bracketright asciicircum underscore grave a b c d e f g
h i j k l m n o p q r s t u v w x y z braceleft bar braceright asciitilde`)

// latin1Names are the glyph names of U+00A1 through U+00FF. Soft hyphen
// has no glyph of its own.
var latin1Names = strings.Fields(`exclamdown cent sterling currency yen
brokenbar section dieresis copyright ordfeminine guillemotleft logicalnot -
registered macron degree plusminus twosuperior threesuperior acute mu
paragraph periodcentered cedilla onesuperior ordmasculine guillemotright
onequarter onehalf threequarters questiondown Agrave Aacute Acircumflex Atilde
Adieresis Aring AE Ccedilla Egrave Eacute Ecircumflex Edieresis Igrave Iacute
Icircumflex Idieresis Eth Ntilde Ograve Oacute Ocircumflex Otilde Odieresis
multiply Oslash Ugrave Uacute Ucircumflex Udieresis Yacute Thorn germandbls
agrave aacute acircumflex atilde adieresis aring ae ccedilla egrave eacute
ecircumflex edieresis igrave iacute icircumflex idieresis eth ntilde ograve
oacute ocircumflex otilde odieresis divide oslash ugrave uacute ucircumflex
udieresis yacute thorn ydieresis`)

var extraGlyphs = map[string]rune{
	"quoteleft": '‘', "quoteright": '’', "quotedblleft": '“', "quotedblright": '”',
	"quotesinglbase": '‚', "quotedblbase": '„', "guilsinglleft": '‹', "guilsinglright": '›',
	"bullet": '•', "endash": '–', "emdash": '—', "ellipsis": '…',
	"dagger": '†', "daggerdbl": '‡', "perthousand": '‰', "trademark": '™',
	"fi": 'ﬁ', "fl": 'ﬂ', "ff": 'ﬀ', "ffi": 'ﬃ', "ffl": 'ﬄ',
	"fraction": '⁄', "florin": 'ƒ', "Euro": '€', "minus": '−',
	"OE": 'Œ', "oe": 'œ', "Scaron": 'Š', "scaron": 'š', "Zcaron": 'Ž', "zcaron": 'ž',
	"Ydieresis": 'Ÿ', "Lslash": 'Ł', "lslash": 'ł', "dotlessi": 'ı',
	"circumflex": 'ˆ', "tilde": '˜', "breve": '˘', "dotaccent": '˙', "ring": '˚',
	"ogonek": '˛', "caron": 'ˇ', "hungarumlaut": '˝',
	"nbspace": '\u00a0', "sfthyphen": '\u00ad', "hyphensoft": '\u00ad',
	"copyrightserif": '©', "registerserif": '®', "trademarkserif": '™',
	"mu1": 'µ', "Omega": 'Ω', "Delta": 'Δ', "pi": 'π', "alpha": 'α', "beta": 'β',
	"summation": '∑', "product": '∏', "radical": '√', "infinity": '∞',
	"notequal": '≠', "lessequal": '≤', "greaterequal": '≥', "approxequal": '≈',
	"partialdiff": '∂', "integral": '∫', "lozenge": '◊', "arrowright": '→',
	"arrowleft": '←', "arrowup": '↑', "arrowdown": '↓', "checkmark": '✓',
}

var glyphRunes = buildGlyphRunes()

func buildGlyphRunes() map[string]rune {
	m := make(map[string]rune, len(asciiNames)+len(latin1Names)+len(extraGlyphs))
	for i, n := range asciiNames {
		m[n] = rune(32 + i)
	}
	for i, n := range latin1Names {
		if n != "-" {
			m[n] = rune(0xA1 + i)
		}
	}
	for n, r := range extraGlyphs {
		m[n] = r
	}
	return m
}

// GlyphText maps a glyph name to its Unicode text following the Adobe glyph
// naming rules: known names, uniXXXX sequences, uXXXX[XX] values, and
// ligature components joined by underscores. Suffixes after a period are
// ignored. Unknown names yield false.
func GlyphText(name string) (string, bool) {
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	if name == "" {
		return "", false
	}
	if strings.Contains(name, "_") {
		var sb strings.Builder
		for _, part := range strings.Split(name, "_") {
			s, ok := GlyphText(part)
			if !ok {
				return "", false
			}
			sb.WriteString(s)
		}
		return sb.String(), true
	}
	if r, ok := glyphRunes[name]; ok {
		return string(r), true
	}
	if strings.HasPrefix(name, "uni") && len(name) >= 7 && (len(name)-3)%4 == 0 {
		var sb strings.Builder
		for i := 3; i < len(name); i += 4 {
			v, err := strconv.ParseUint(name[i:i+4], 16, 32)
			if err != nil || (v >= 0xD800 && v <= 0xDFFF) {
				return "", false
			}
			sb.WriteRune(rune(v))
		}
		return sb.String(), true
	}
	if strings.HasPrefix(name, "u") && len(name) >= 5 && len(name) <= 7 {
		v, err := strconv.ParseUint(name[1:], 16, 32)
		if err == nil && utf8.ValidRune(rune(v)) {
			return string(rune(v)), true
		}
	}
	return "", false
}
