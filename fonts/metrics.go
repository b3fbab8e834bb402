package fonts

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// stdMetrics are the AFM widths and descender of a standard 14 font,
// in glyph units.
type stdMetrics struct {
	ascii   [95]float64 // U+0020 through U+007E
	extra   map[rune]float64
	fixed   float64
	descent float64
}

func (m *stdMetrics) width(text string) (float64, bool) {
	if m.fixed > 0 {
		return m.fixed, true
	}
	r := firstRune(text)
	if r >= 32 && r <= 126 {
		return m.ascii[r-32], true
	}
	if w, ok := m.extra[r]; ok {
		return w, true
	}
	// Accented letters take the width of their base letter.
	if d := norm.NFD.String(string(r)); d != string(r) {
		if b := firstRune(d); b >= 32 && b <= 126 {
			return m.ascii[b-32], true
		}
	}
	return 0, false
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return -1
}

func widths(s string) [95]float64 {
	var out [95]float64
	for i, f := range strings.Fields(s) {
		var v float64
		for _, c := range f {
			v = v*10 + float64(c-'0')
		}
		out[i] = v
	}
	return out
}

var (
	helvetica = &stdMetrics{
		ascii: widths(`278 278 355 556 556 889 667 191 333 333 389 584 278 333 278 278
556 556 556 556 556 556 556 556 556 556 278 278 584 584 584 556 1015
667 667 722 722 667 611 778 722 278 500 667 556 833 722 778 667 778 722 667
611 722 667 944 667 667 611 278 278 278 469 556 333
556 556 500 556 556 278 556 556 222 222 500 222 833 556 556 556 556 333 500
278 556 500 722 500 500 500 334 260 334 584`),
		extra: map[rune]float64{
			'‘': 222, '’': 222, '“': 333, '”': 333, '•': 350, '–': 556, '—': 1000,
			'…': 1000, 'ﬁ': 500, 'ﬂ': 500, '©': 737, '®': 737, '°': 400, '·': 278,
			'\u00a0': 278, '€': 556, '™': 1000,
		},
		descent: -207,
	}
	helveticaBold = &stdMetrics{
		ascii: widths(`278 333 474 556 556 889 722 238 333 333 389 584 278 333 278 278
556 556 556 556 556 556 556 556 556 556 333 333 584 584 584 611 975
722 722 722 722 667 611 778 722 278 556 722 611 833 722 778 667 778 722 667
611 722 667 944 667 667 611 333 278 333 584 556 333
556 611 556 611 556 333 611 611 278 278 556 278 889 611 611 611 611 389 556
333 611 556 778 556 556 500 389 280 389 584`),
		extra: map[rune]float64{
			'‘': 278, '’': 278, '“': 500, '”': 500, '•': 350, '–': 556, '—': 1000,
			'…': 1000, 'ﬁ': 611, 'ﬂ': 611, '©': 737, '®': 737, '°': 400, '·': 278,
			'\u00a0': 278, '€': 556, '™': 1000,
		},
		descent: -207,
	}
	timesRoman = &stdMetrics{
		ascii: widths(`250 333 408 500 500 833 778 180 333 333 500 564 250 333 250 278
500 500 500 500 500 500 500 500 500 500 278 278 564 564 564 444 921
722 667 667 722 611 556 722 722 333 389 722 611 889 722 722 556 722 667 556
611 722 722 944 722 722 611 333 278 333 469 500 333
444 500 444 500 444 333 500 500 278 278 500 278 778 500 500 500 500 333 389
278 500 500 722 500 500 444 480 200 480 541`),
		extra: map[rune]float64{
			'‘': 333, '’': 333, '“': 444, '”': 444, '•': 350, '–': 500, '—': 1000,
			'…': 1000, 'ﬁ': 556, 'ﬂ': 556, '©': 760, '®': 760, '°': 400, '·': 250,
			'\u00a0': 250, '€': 500, '™': 980,
		},
		descent: -217,
	}
	timesBold = &stdMetrics{
		ascii: widths(`250 333 555 500 500 1000 833 278 333 333 500 570 250 333 250 278
500 500 500 500 500 500 500 500 500 500 333 333 570 570 570 500 930
722 667 722 722 667 611 778 778 389 500 778 667 944 722 778 611 778 722 556
667 722 722 1000 722 722 667 333 278 333 581 500 333
500 556 444 556 444 333 500 556 278 333 556 278 833 556 500 556 556 444 389
333 556 500 722 500 500 444 394 220 394 520`),
		extra: map[rune]float64{
			'‘': 333, '’': 333, '“': 500, '”': 500, '•': 350, '–': 500, '—': 1000,
			'…': 1000, 'ﬁ': 556, 'ﬂ': 556, '©': 747, '®': 747, '°': 400, '·': 250,
			'\u00a0': 250, '€': 500, '™': 1000,
		},
		descent: -217,
	}
	courier = &stdMetrics{fixed: 600, descent: -157}
)

// standardFonts maps base font names, including common aliases, to their
// metrics. Oblique and italic faces reuse the upright widths.
var standardFonts = map[string]*stdMetrics{
	"Helvetica":              helvetica,
	"Helvetica-Oblique":      helvetica,
	"Helvetica-Bold":         helveticaBold,
	"Helvetica-BoldOblique":  helveticaBold,
	"Arial":                  helvetica,
	"ArialMT":                helvetica,
	"Arial,Italic":           helvetica,
	"Arial-ItalicMT":         helvetica,
	"Arial,Bold":             helveticaBold,
	"Arial-BoldMT":           helveticaBold,
	"Arial,BoldItalic":       helveticaBold,
	"Arial-BoldItalicMT":     helveticaBold,
	"Times-Roman":            timesRoman,
	"Times-Italic":           timesRoman,
	"Times-Bold":             timesBold,
	"Times-BoldItalic":       timesBold,
	"TimesNewRoman":          timesRoman,
	"TimesNewRomanPSMT":      timesRoman,
	"TimesNewRoman,Bold":     timesBold,
	"TimesNewRomanPS-BoldMT": timesBold,
	"Courier":                courier,
	"Courier-Oblique":        courier,
	"Courier-Bold":           courier,
	"Courier-BoldOblique":    courier,
	"CourierNew":             courier,
	"CourierNewPSMT":         courier,
}
