package ocr

import "context"

// ImageFormat is the MIME type of Input.Image.
type ImageFormat string

// ImageFormatPNG is what InputFromPlacement produces.
const ImageFormatPNG ImageFormat = "image/png"

// Region is a pixel rectangle with a top-left origin.
type Region struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

func (r Region) IsEmpty() bool { return r.Width <= 0 || r.Height <= 0 }

// Input is one image to recognise.
type Input struct {
	ID        string // echoed in Result.InputID
	Image     []byte
	Format    ImageFormat
	PageIndex int // 0-based page the image is painted on
	DPI       int // 0 lets the engine guess
	Languages []string
	// Region limits recognition to part of the image; nil means all of it.
	// Result bounds stay in whole-image coordinates.
	Region *Region
	// Metadata holds engine variables such as VarPageSegMode.
	Metadata map[string]string
}

// TextWord is one recognised word. Confidence is in [0,1].
type TextWord struct {
	Text       string
	Bounds     Region
	Confidence float64
}

type TextLine struct {
	Text       string
	Bounds     Region
	Words      []TextWord
	Confidence float64
}

type TextBlock struct {
	Text       string
	Bounds     Region
	Lines      []TextLine
	Confidence float64
}

// Result is the recognition output for one Input.
type Result struct {
	InputID   string
	PlainText string
	Blocks    []TextBlock
	Language  string
}

// Engine recognises single images.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, input Input) (Result, error)
}

// BatchEngine is an Engine that can take several images in one call.
type BatchEngine interface {
	Engine
	RecognizeBatch(ctx context.Context, inputs []Input) ([]Result, error)
}

// DocumentEngine adds a text layer to a whole PDF and returns the new
// file. The output is parsed again to extract the recognised text.
type DocumentEngine interface {
	Name() string
	OCRDocument(ctx context.Context, pdf []byte) ([]byte, error)
}

// Words returns every word of the result in reading order.
func (r Result) Words() []TextWord {
	var out []TextWord
	for _, b := range r.Blocks {
		for _, l := range b.Lines {
			out = append(out, l.Words...)
		}
	}
	return out
}
