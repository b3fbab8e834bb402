// Package layout turns positioned characters into plain text. With layout
// enabled the text keeps the page geometry: words sit at a column derived
// from their x position and lines at a row derived from their top edge.
package layout

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/wudi/pdftext/extractor"
)

// Options controls word grouping and the character grid of layout text.
type Options struct {
	XTolerance float64 // max horizontal gap inside a word, in points
	YTolerance float64 // max top difference inside a line, in points
	XDensity   float64 // points per output column
	YDensity   float64 // points per output row
	Layout     bool
}

// DefaultOptions are the settings used to decide whether a page has text.
func DefaultOptions() Options {
	return Options{XTolerance: 3, YTolerance: 3, XDensity: 7.25, YDensity: 13}
}

// DashboardOptions are the initial settings of the extraction form.
func DashboardOptions() Options {
	return Options{XTolerance: 2, YTolerance: 4, XDensity: 5, YDensity: 10, Layout: true}
}

// Validate checks that tolerances are not negative and densities are
// positive.
func (o Options) Validate() error {
	var bad []string
	if o.XTolerance < 0 || math.IsNaN(o.XTolerance) {
		bad = append(bad, "x_tolerance must be >= 0")
	}
	if o.YTolerance < 0 || math.IsNaN(o.YTolerance) {
		bad = append(bad, "y_tolerance must be >= 0")
	}
	if !(o.XDensity > 0) || math.IsInf(o.XDensity, 0) {
		bad = append(bad, "x_density must be > 0")
	}
	if !(o.YDensity > 0) || math.IsInf(o.YDensity, 0) {
		bad = append(bad, "y_density must be > 0")
	}
	if len(bad) > 0 {
		return fmt.Errorf("invalid layout options: %s", strings.Join(bad, "; "))
	}
	return nil
}

// Word is a run of adjacent characters on one line.
type Word struct {
	Text   string
	X0, X1 float64
	Top    float64
	Bottom float64
}

var ligatures = map[string]string{
	"ﬀ": "ff",
	"ﬃ": "ffi",
	"ﬄ": "ffl",
	"ﬁ": "fi",
	"ﬂ": "fl",
	"ﬆ": "st",
	"ﬅ": "st",
}

func expand(s string) string {
	if l, ok := ligatures[s]; ok {
		return l
	}
	return s
}

// ClusterObjects groups items whose key lies within tolerance of the
// previous distinct key value. Groups are ordered by key; items keep their
// input order inside a group.
func ClusterObjects[T any](items []T, key func(T) float64, tolerance float64) [][]T {
	if len(items) == 0 {
		return nil
	}
	values := make([]float64, 0, len(items))
	seen := make(map[float64]bool, len(items))
	for _, it := range items {
		v := key(it)
		if !seen[v] {
			seen[v] = true
			values = append(values, v)
		}
	}
	sort.Float64s(values)
	cluster := make(map[float64]int, len(values))
	n := 0
	for i, v := range values {
		if i > 0 && v > values[i-1]+tolerance {
			n++
		}
		cluster[v] = n
	}
	out := make([][]T, n+1)
	for _, it := range items {
		c := cluster[key(it)]
		out[c] = append(out[c], it)
	}
	return out
}

func isSpace(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// beginsWord reports whether cur cannot extend the word that ends in prev.
// Non-upright chars run down the page, so the axes swap.
func beginsWord(prev, cur extractor.Char, opts Options) bool {
	if cur.Upright {
		return cur.X0 < prev.X0 ||
			cur.X0 > prev.X1+opts.XTolerance ||
			cur.Top > prev.Top+opts.YTolerance
	}
	return cur.Top < prev.Top ||
		cur.Top > prev.Bottom+opts.YTolerance ||
		cur.X0 > prev.X0+opts.XTolerance
}

// lines splits a run of chars sharing one orientation into lines. Upright
// lines cluster on top and read left to right; the others cluster on x0
// and read top to bottom. Ties keep content order.
func lines(chars []extractor.Char, opts Options) [][]extractor.Char {
	if chars[0].Upright {
		out := ClusterObjects(chars, func(c extractor.Char) float64 { return c.Top }, opts.YTolerance)
		for _, line := range out {
			sort.SliceStable(line, func(i, j int) bool { return line[i].X0 < line[j].X0 })
		}
		return out
	}
	out := ClusterObjects(chars, func(c extractor.Char) float64 { return c.X0 }, opts.XTolerance)
	for _, line := range out {
		sort.SliceStable(line, func(i, j int) bool { return line[i].Top < line[j].Top })
	}
	return out
}

// Words splits chars into consecutive runs of equal orientation, groups
// each run into lines and splits lines into words at gaps wider than the
// tolerance. Whitespace chars end a word and are dropped.
func Words(chars []extractor.Char, opts Options) []Word {
	var words []Word
	for start := 0; start < len(chars); {
		end := start + 1
		for end < len(chars) && chars[end].Upright == chars[start].Upright {
			end++
		}
		run := append([]extractor.Char(nil), chars[start:end]...)
		start = end
		for _, line := range lines(run, opts) {
			var cur []extractor.Char
			flush := func() {
				if len(cur) > 0 {
					words = append(words, merge(cur))
					cur = nil
				}
			}
			for _, c := range line {
				switch {
				case isSpace(c.Text):
					flush()
				case len(cur) > 0 && beginsWord(cur[len(cur)-1], c, opts):
					flush()
					cur = append(cur, c)
				default:
					cur = append(cur, c)
				}
			}
			flush()
		}
	}
	return words
}

func merge(chars []extractor.Char) Word {
	w := Word{X0: chars[0].X0, X1: chars[0].X1, Top: chars[0].Top, Bottom: chars[0].Bottom}
	var sb strings.Builder
	for _, c := range chars {
		sb.WriteString(expand(c.Text))
		w.X0 = math.Min(w.X0, c.X0)
		w.X1 = math.Max(w.X1, c.X1)
		w.Top = math.Min(w.Top, c.Top)
		w.Bottom = math.Max(w.Bottom, c.Bottom)
	}
	w.Text = sb.String()
	return w
}

// round is Python's round(): halves go to the even neighbour.
func round(v float64) int { return int(math.RoundToEven(v)) }

// Text renders words. With opts.Layout the page is mapped onto a grid of
// pageWidth/XDensity columns and pageHeight/YDensity rows.
func Text(words []Word, pageWidth, pageHeight float64, opts Options) string {
	if len(words) == 0 {
		return ""
	}
	sorted := make([]Word, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Top < sorted[j].Top })
	rows := ClusterObjects(sorted, func(w Word) float64 { return w.Top }, opts.YTolerance)
	// A row sits at the top of its highest word, taken before the x sort.
	tops := make([]float64, len(rows))
	for n, line := range rows {
		tops[n] = line[0].Top
		sort.SliceStable(line, func(i, j int) bool { return line[i].X0 < line[j].X0 })
	}
	if !opts.Layout {
		out := make([]string, len(rows))
		for i, line := range rows {
			parts := make([]string, len(line))
			for j, w := range line {
				parts[j] = w.Text
			}
			out[i] = strings.Join(parts, " ")
		}
		return norm.NFC.String(strings.Join(out, "\n"))
	}

	widthChars := round(pageWidth / opts.XDensity)
	heightChars := round(pageHeight / opts.YDensity)
	blankLine := strings.Repeat(" ", max(widthChars, 0))
	var sb strings.Builder
	// last tracks the final rune written, to find empty rows.
	last := rune(0)
	newline := func() {
		if last == 0 || last == '\n' {
			sb.WriteString(blankLine)
		}
		sb.WriteByte('\n')
		last = '\n'
	}
	newlines := 0
	for i, line := range rows {
		first := 0
		if i > 0 {
			first = 1
		}
		prepend := max(first, round(tops[i]/opts.YDensity)-newlines)
		for k := 0; k < prepend; k++ {
			newline()
		}
		newlines += prepend

		lineLen := 0
		for _, w := range line {
			spaces := max(min(1, lineLen), round(w.X0/opts.XDensity)-lineLen)
			if spaces > 0 {
				sb.WriteString(strings.Repeat(" ", spaces))
				lineLen += spaces
				last = ' '
			}
			sb.WriteString(w.Text)
			if n := utf8.RuneCountInString(w.Text); n > 0 {
				lineLen += n
				last, _ = utf8.DecodeLastRuneInString(w.Text)
			}
		}
		if pad := widthChars - lineLen; pad > 0 {
			sb.WriteString(strings.Repeat(" ", pad))
			last = ' '
		}
	}
	for k := 0; k < heightChars-(newlines+1); k++ {
		if k > 0 {
			sb.WriteString(blankLine)
		}
		sb.WriteByte('\n')
	}
	return norm.NFC.String(strings.TrimSuffix(sb.String(), "\n"))
}

// ExtractText groups chars into words and renders them.
func ExtractText(chars []extractor.Char, pageWidth, pageHeight float64, opts Options) string {
	return Text(Words(chars, opts), pageWidth, pageHeight, opts)
}
