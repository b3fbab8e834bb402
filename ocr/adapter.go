package ocr

import (
	"context"
	"fmt"

	"github.com/wudi/pdftext/extractor"
)

// InputOption adjusts an Input after the image has been encoded.
type InputOption func(*Input)

// WithLanguages sets language hints on the OCR input.
func WithLanguages(langs ...string) InputOption {
	return func(in *Input) { in.Languages = append([]string(nil), langs...) }
}

// WithRegion limits recognition to region, in image pixels. An empty
// region means the whole image.
func WithRegion(region Region) InputOption {
	return func(in *Input) {
		if region.IsEmpty() {
			in.Region = nil
			return
		}
		in.Region = &region
	}
}

// WithDPI sets the resolution Tesseract assumes for the image.
func WithDPI(dpi int) InputOption {
	return func(in *Input) { in.DPI = dpi }
}

// InputFromPlacement renders an image placed on page pageIndex to PNG and
// wraps it as an OCR input. The ID names the page and the image resource
// so results can be matched back to their placement.
func InputFromPlacement(ctx context.Context, p extractor.ImagePlacement, pageIndex int, opts ...InputOption) (Input, error) {
	data, err := p.PNG(ctx)
	if err != nil {
		return Input{}, fmt.Errorf("encode image %s: %w", p.Name, err)
	}
	in := Input{
		ID:        fmt.Sprintf("page-%d-%s", pageIndex, p.Name),
		Image:     data,
		Format:    ImageFormatPNG,
		PageIndex: pageIndex,
	}
	for _, opt := range opts {
		opt(&in)
	}
	return in, nil
}
