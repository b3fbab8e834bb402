// Package tesseract recognises page images in-process through libtesseract.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/wudi/pdftext/ocr"
)

// Name is the registry name of the engine.
const Name = "tesseract"

func init() {
	ocr.Register(Name, func(cfg ocr.Config) (ocr.Provider, error) {
		return New(cfg.Languages, cfg.DPI), nil
	})
}

// Engine implements ocr.BatchEngine with one gosseract client per image.
type Engine struct {
	languages     []string
	dpi           int
	clientFactory func() *gosseract.Client
}

// New returns an engine that falls back to languages and dpi for inputs
// that do not set their own.
func New(languages []string, dpi int) *Engine {
	return &Engine{
		languages:     append([]string(nil), languages...),
		dpi:           dpi,
		clientFactory: gosseract.NewClient,
	}
}

func (e *Engine) Name() string { return Name }

// Recognize performs OCR on a single image input.
func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	c := e.clientFactory()
	defer c.Close()
	return e.recognizeWithClient(c, in)
}

// RecognizeBatch processes inputs in order, checking ctx between images.
func (e *Engine) RecognizeBatch(ctx context.Context, inputs []ocr.Input) ([]ocr.Result, error) {
	results := make([]ocr.Result, 0, len(inputs))
	for _, in := range inputs {
		res, err := e.Recognize(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("recognize %s: %w", in.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (e *Engine) recognizeWithClient(c *gosseract.Client, in ocr.Input) (ocr.Result, error) {
	imgData, err := cropImage(in.Image, in.Region)
	if err != nil {
		return ocr.Result{}, err
	}
	if err := c.SetImageFromBytes(imgData); err != nil {
		return ocr.Result{}, fmt.Errorf("set image: %w", err)
	}
	langs := in.Languages
	if len(langs) == 0 {
		langs = e.languages
	}
	if len(langs) > 0 {
		if err := c.SetLanguage(langs...); err != nil {
			return ocr.Result{}, fmt.Errorf("set languages: %w", err)
		}
	}
	dpi := in.DPI
	if dpi <= 0 {
		dpi = e.dpi
	}
	if dpi > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(dpi)); err != nil {
			return ocr.Result{}, fmt.Errorf("set dpi: %w", err)
		}
	}
	for k, v := range in.Metadata {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return ocr.Result{}, fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	text, err := c.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("recognize text: %w", err)
	}
	plain := strings.TrimSpace(text)

	offset := image.Point{}
	if in.Region != nil && !in.Region.IsEmpty() {
		offset = image.Pt(int(math.Round(in.Region.X)), int(math.Round(in.Region.Y)))
	}
	words := extractWords(c, offset)
	lines := groupLines(c, words, offset)
	block := ocr.TextBlock{
		Text:       plain,
		Bounds:     mergeBounds(words),
		Lines:      lines,
		Confidence: averageConfidence(words),
	}
	return ocr.Result{
		InputID:   in.ID,
		PlainText: plain,
		Blocks:    []ocr.TextBlock{block},
		Language:  firstLanguage(langs),
	}, nil
}

// extractWords returns word boxes in the coordinates of the uncropped
// image with confidence scaled to [0,1].
func extractWords(c *gosseract.Client, offset image.Point) []ocr.TextWord {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil
	}
	words := make([]ocr.TextWord, 0, len(boxes))
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		words = append(words, ocr.TextWord{
			Text:       b.Word,
			Bounds:     region(b.Box.Add(offset)),
			Confidence: b.Confidence / 100.0,
		})
	}
	return words
}

// groupLines assigns each word to the text line whose box holds the
// word's centre. Words outside every line get a line of their own.
func groupLines(c *gosseract.Client, words []ocr.TextWord, offset image.Point) []ocr.TextLine {
	boxes, _ := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	lines := make([]ocr.TextLine, len(boxes))
	for i, b := range boxes {
		lines[i].Bounds = region(b.Box.Add(offset))
	}
	for _, w := range words {
		cx := w.Bounds.X + w.Bounds.Width/2
		cy := w.Bounds.Y + w.Bounds.Height/2
		placed := false
		for i := range lines {
			lb := lines[i].Bounds
			if cx >= lb.X && cx <= lb.X+lb.Width && cy >= lb.Y && cy <= lb.Y+lb.Height {
				lines[i].Words = append(lines[i].Words, w)
				placed = true
				break
			}
		}
		if !placed {
			lines = append(lines, ocr.TextLine{Bounds: w.Bounds, Words: []ocr.TextWord{w}})
		}
	}
	out := lines[:0]
	for _, l := range lines {
		if len(l.Words) == 0 {
			continue
		}
		texts := make([]string, len(l.Words))
		for i, w := range l.Words {
			texts[i] = w.Text
		}
		l.Text = strings.Join(texts, " ")
		l.Confidence = averageConfidence(l.Words)
		out = append(out, l)
	}
	return out
}

func region(r image.Rectangle) ocr.Region {
	return ocr.Region{X: float64(r.Min.X), Y: float64(r.Min.Y), Width: float64(r.Dx()), Height: float64(r.Dy())}
}

func averageConfidence(words []ocr.TextWord) float64 {
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}

func mergeBounds(words []ocr.TextWord) ocr.Region {
	if len(words) == 0 {
		return ocr.Region{}
	}
	minX, minY := math.MaxFloat64, math.MaxFloat64
	var maxX, maxY float64
	for _, w := range words {
		minX = math.Min(minX, w.Bounds.X)
		minY = math.Min(minY, w.Bounds.Y)
		maxX = math.Max(maxX, w.Bounds.X+w.Bounds.Width)
		maxY = math.Max(maxY, w.Bounds.Y+w.Bounds.Height)
	}
	return ocr.Region{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func firstLanguage(langs []string) string {
	if len(langs) == 0 {
		return ""
	}
	return langs[0]
}

func cropImage(data []byte, region *ocr.Region) ([]byte, error) {
	if region == nil || region.IsEmpty() {
		return data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode for region: %w", err)
	}
	rect := image.Rect(
		int(math.Round(region.X)),
		int(math.Round(region.Y)),
		int(math.Round(region.X+region.Width)),
		int(math.Round(region.Y+region.Height)),
	).Intersect(img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("region outside image bounds")
	}
	subImg, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	})
	if !ok {
		return nil, fmt.Errorf("image does not support sub-image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, subImg.SubImage(rect)); err != nil {
		return nil, fmt.Errorf("encode cropped image: %w", err)
	}
	return buf.Bytes(), nil
}
