package pipeline

import (
	"context"

	"github.com/wudi/pdftext/document"
	"github.com/wudi/pdftext/extractor"
	"github.com/wudi/pdftext/layout"
	"github.com/wudi/pdftext/observability"
)

// IsScanned reports whether doc needs OCR: some page has no text under the
// default extraction settings, or some page could not be extracted.
func IsScanned(ctx context.Context, doc *document.Document) bool {
	p := New(Config{})
	contents, errs := p.interpret(ctx, doc)
	return detectScanned(ctx, p.cfg.Tracer, contents, errs)
}

func detectScanned(ctx context.Context, tracer observability.Tracer, contents []*extractor.PageContent, errs []error) bool {
	_, span := tracer.StartSpan(ctx, observability.SpanDetect)
	defer span.Finish()
	opts := layout.DefaultOptions()
	for i, pc := range contents {
		if errs[i] != nil || pc == nil {
			span.SetTag("page", i+1)
			span.SetTag("scanned", true)
			return true
		}
		if isBlank(layout.ExtractText(pc.Chars, pc.Width, pc.Height, opts)) {
			span.SetTag("page", pc.Number)
			span.SetTag("scanned", true)
			return true
		}
	}
	span.SetTag("scanned", false)
	return false
}
