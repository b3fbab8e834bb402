// Package extractor interprets page content streams and reports the
// characters and images they place, in page space with a top-left origin.
package extractor

import (
	"context"
	"sync"

	"github.com/wudi/pdftext/contentstream"
	"github.com/wudi/pdftext/coords"
	"github.com/wudi/pdftext/document"
	"github.com/wudi/pdftext/fonts"
	"github.com/wudi/pdftext/ir/raw"
	"github.com/wudi/pdftext/observability"
	"github.com/wudi/pdftext/recovery"
)

// Char is one rendered character. Coordinates are in points from the
// top-left corner of the displayed page.
type Char struct {
	Text       string
	X0, X1     float64
	Top        float64
	Bottom     float64
	Size       float64
	FontName   string
	Upright    bool
	RenderMode contentstream.TextRenderMode
}

// PageContent is everything the interpreter found on one page.
type PageContent struct {
	Number int
	Width  float64
	Height float64
	Chars  []Char
	Images []ImagePlacement
}

// Extractor interprets the pages of one document. Fonts are loaded once and
// shared between pages; an Extractor is safe for concurrent use.
type Extractor struct {
	doc    *document.Document
	logger observability.Logger

	mu    sync.Mutex
	fonts map[*raw.Dict]*fonts.Font

	fallbackOnce sync.Once
	fallback     *fonts.Font
}

func New(doc *document.Document) *Extractor {
	return &Extractor{
		doc:    doc,
		logger: doc.Logger(),
		fonts:  make(map[*raw.Dict]*fonts.Font),
	}
}

// Page interprets the content of page. Content that fails to decode is an
// error; malformed operators inside decoded content are skipped.
func (e *Extractor) Page(ctx context.Context, page *document.Page) (*PageContent, error) {
	data, err := page.Contents(ctx)
	if err != nil {
		return nil, err
	}
	out := &PageContent{Number: page.Number, Width: page.Width(), Height: page.Height()}
	in := &interpreter{
		e:       e,
		ctx:     ctx,
		out:     out,
		pageTop: out.Height,
		forms:   make(map[*raw.Stream]bool),
	}
	in.gs = newGraphicsState(initialCTM(page.MediaBox, page.Rotate))
	if err := in.run(data, page.Resources, 0); err != nil {
		return nil, err
	}
	return out, nil
}

// initialCTM maps user space to the displayed page: the mediabox origin
// moves to (0, 0) and the page rotation is undone.
func initialCTM(box coords.Rect, rotate int) coords.Matrix {
	switch rotate {
	case 90:
		return coords.Matrix{0, -1, 1, 0, -box.Y0, box.X1}
	case 180:
		return coords.Matrix{-1, 0, 0, -1, box.X1, box.Y1}
	case 270:
		return coords.Matrix{0, 1, -1, 0, box.Y1, -box.X0}
	}
	return coords.Matrix{1, 0, 0, 1, -box.X0, -box.Y0}
}

func (e *Extractor) parser() *contentstream.Parser {
	return contentstream.NewParser(e.doc.Limits().ScannerConfig(recovery.NewLenientStrategy(e.logger)))
}

// font returns the font for a resource entry. Fonts that cannot be loaded
// are replaced by Helvetica so their text still flows.
func (e *Extractor) font(ctx context.Context, obj raw.Object) *fonts.Font {
	d := e.doc.Dict(obj)
	if d == nil {
		return e.fallbackFont(ctx)
	}
	e.mu.Lock()
	f, ok := e.fonts[d]
	e.mu.Unlock()
	if ok {
		return f
	}
	f, err := fonts.Load(ctx, e.doc, d)
	if err != nil {
		e.logger.Debug("font load failed", observability.Error("error", err))
		f = e.fallbackFont(ctx)
	}
	e.mu.Lock()
	e.fonts[d] = f
	e.mu.Unlock()
	return f
}

func (e *Extractor) fallbackFont(ctx context.Context) *fonts.Font {
	e.fallbackOnce.Do(func() {
		d := raw.NewDict()
		d.Set("Subtype", raw.Name("Type1"))
		d.Set("BaseFont", raw.Name("Helvetica"))
		e.fallback, _ = fonts.Load(ctx, e.doc, d)
	})
	return e.fallback
}
