package pipeline

import (
	"context"
	"math"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/wudi/pdftext/extractor"
	"github.com/wudi/pdftext/layout"
	"github.com/wudi/pdftext/observability"
	"github.com/wudi/pdftext/ocr"
)

// minOCRPixels skips images too small to hold legible text.
const minOCRPixels = 16

func (p *Pipeline) ocrDocument(ctx context.Context, eng ocr.DocumentEngine, pdf []byte) ([]byte, error) {
	if err := p.ocrSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.ocrSem.Release(1)

	ctx, span := p.cfg.Tracer.StartSpan(ctx, observability.SpanOCR)
	defer span.Finish()
	span.SetTag("ocr.engine", eng.Name())
	out, err := eng.OCRDocument(ctx, pdf)
	if err != nil {
		span.SetError(err)
		return nil, errors.Wrap(err, "error running OCR")
	}
	return out, nil
}

type ocrTarget struct {
	page  *extractor.PageContent
	image extractor.ImagePlacement
}

// ocrImages recognises the images of pages without text and appends the
// recognised words to those pages as chars.
func (p *Pipeline) ocrImages(ctx context.Context, eng ocr.Engine, contents []*extractor.PageContent) error {
	var (
		inputs  []ocr.Input
		targets []ocrTarget
	)
	defaults := layout.DefaultOptions()
	for _, pc := range contents {
		if pc == nil || !isBlank(layout.ExtractText(pc.Chars, pc.Width, pc.Height, defaults)) {
			continue
		}
		for _, img := range pc.Images {
			if img.Width < minOCRPixels || img.Height < minOCRPixels || img.BBox.Width() <= 0 {
				continue
			}
			opts := append([]ocr.InputOption{
				ocr.WithLanguages(p.cfg.Languages...),
				ocr.WithDPI(effectiveDPI(img, p.cfg.DPI)),
			}, p.cfg.InputOptions...)
			in, err := ocr.InputFromPlacement(ctx, img, pc.Number-1, opts...)
			if err != nil {
				log.WithError(err).WithFields(logrus.Fields{"page": pc.Number, "image": img.Name}).Warn("skipping image")
				continue
			}
			inputs = append(inputs, in)
			targets = append(targets, ocrTarget{page: pc, image: img})
		}
	}
	if len(inputs) == 0 {
		return nil
	}

	if err := p.ocrSem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.ocrSem.Release(1)
	ctx, span := p.cfg.Tracer.StartSpan(ctx, observability.SpanOCR)
	defer span.Finish()
	span.SetTag("ocr.engine", eng.Name())
	span.SetTag("ocr.images", len(inputs))

	results, err := ocr.RecognizeImages(ctx, eng, inputs)
	if err != nil {
		span.SetError(err)
		return errors.Wrap(err, "error running OCR")
	}
	for i, res := range results {
		if i >= len(targets) {
			break
		}
		t := targets[i]
		var words []ocr.TextWord
		for _, w := range res.Words() {
			if w.Confidence >= p.cfg.MinConfidence {
				words = append(words, w)
			}
		}
		t.page.Chars = append(t.page.Chars, wordChars(words, t.image)...)
	}
	return nil
}

// effectiveDPI is the resolution the image is painted at, or fallback when
// it cannot be derived.
func effectiveDPI(img extractor.ImagePlacement, fallback int) int {
	w := img.BBox.Width()
	if w <= 0 || img.Width <= 0 {
		return fallback
	}
	dpi := int(math.Round(float64(img.Width) / (w / 72)))
	if dpi < 70 || dpi > 1200 {
		return fallback
	}
	return dpi
}

// wordChars maps pixel word boxes into the image's bbox on the page. Each
// word is split into chars of equal width so word grouping sees the same
// gaps it would in a text layer.
func wordChars(words []ocr.TextWord, img extractor.ImagePlacement) []extractor.Char {
	sx := img.BBox.Width() / float64(img.Width)
	sy := img.BBox.Height() / float64(img.Height)
	var out []extractor.Char
	for _, w := range words {
		n := utf8.RuneCountInString(w.Text)
		if n == 0 {
			continue
		}
		x0 := img.BBox.X0 + w.Bounds.X*sx
		width := w.Bounds.Width * sx
		top := img.BBox.Y0 + w.Bounds.Y*sy
		height := w.Bounds.Height * sy
		step := width / float64(n)
		i := 0
		for _, r := range w.Text {
			out = append(out, extractor.Char{
				Text:     string(r),
				X0:       x0 + float64(i)*step,
				X1:       x0 + float64(i+1)*step,
				Top:      top,
				Bottom:   top + height,
				Size:     height,
				FontName: "OCR",
				Upright:  true,
			})
			i++
		}
	}
	return out
}
