// Package filters decodes PDF stream filters.
package filters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/wudi/pdftext/ir/raw"
)

// ErrOutputLimit is returned when a decoder would produce more than the
// configured MaxDecompressedSize.
var ErrOutputLimit = errors.New("decompressed size exceeds limit")

// Decoder decodes one filter stage. limit bounds the output size; zero
// means unbounded.
type Decoder interface {
	Name() string
	Decode(ctx context.Context, input []byte, params *raw.Dict, limit int64) ([]byte, error)
}

type Limits struct {
	MaxDecompressedSize int64
	MaxDecodeTime       time.Duration
}

// UnsupportedError names a filter the pipeline has no decoder for.
type UnsupportedError struct {
	Filter string
}

func (e UnsupportedError) Error() string { return "unsupported filter: " + e.Filter }

// abbreviations maps the short names allowed in inline images to their
// full filter names.
var abbreviations = map[string]string{
	"AHx": "ASCIIHexDecode",
	"A85": "ASCII85Decode",
	"LZW": "LZWDecode",
	"Fl":  "FlateDecode",
	"RL":  "RunLengthDecode",
	"CCF": "CCITTFaxDecode",
	"DCT": "DCTDecode",
}

// Canonical expands an abbreviated filter name.
func Canonical(name string) string {
	if full, ok := abbreviations[name]; ok {
		return full
	}
	return name
}

type Pipeline struct {
	decoders map[string]Decoder
	limits   Limits
}

// NewPipeline constructs a pipeline with provided decoders and limits.
func NewPipeline(decoders []Decoder, limits Limits) *Pipeline {
	p := &Pipeline{decoders: make(map[string]Decoder, len(decoders)), limits: limits}
	for _, d := range decoders {
		p.decoders[d.Name()] = d
	}
	return p
}

// Default returns a pipeline with every built-in decoder.
func Default(limits Limits) *Pipeline {
	return NewPipeline([]Decoder{
		NewFlateDecoder(),
		NewLZWDecoder(),
		NewASCIIHexDecoder(),
		NewASCII85Decoder(),
		NewRunLengthDecoder(),
		NewCCITTFaxDecoder(),
		NewPassthroughDecoder("DCTDecode"),
		NewPassthroughDecoder("JPXDecode"),
		NewPassthroughDecoder("JBIG2Decode"),
		NewPassthroughDecoder("Crypt"),
	}, limits)
}

// Decode applies filterNames in order. params[i] holds the DecodeParms of
// filter i and may be nil.
func (p *Pipeline) Decode(ctx context.Context, input []byte, filterNames []string, params []*raw.Dict) ([]byte, error) {
	if p.limits.MaxDecodeTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.limits.MaxDecodeTime)
		defer cancel()
	}
	data := input
	for i, name := range filterNames {
		name = Canonical(name)
		dec, ok := p.decoders[name]
		if !ok {
			return nil, UnsupportedError{Filter: name}
		}
		var param *raw.Dict
		if i < len(params) {
			param = params[i]
		}
		out, err := dec.Decode(ctx, data, param, p.limits.MaxDecompressedSize)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if p.limits.MaxDecompressedSize > 0 && int64(len(out)) > p.limits.MaxDecompressedSize {
			return nil, fmt.Errorf("%s: %w", name, ErrOutputLimit)
		}
		data = out
	}
	return data, nil
}

// IsImageCodec reports whether the filter leaves image-codec data (JPEG,
// JPEG 2000, JBIG2) for an image decoder to handle.
func IsImageCodec(name string) bool {
	switch Canonical(name) {
	case "DCTDecode", "JPXDecode", "JBIG2Decode":
		return true
	}
	return false
}

const readChunk = 32 * 1024

// readAll drains r, checking ctx between chunks and failing once more than
// limit bytes are produced. Data read before a decode error is returned
// with the error.
func readAll(ctx context.Context, r io.Reader, limit int64) ([]byte, error) {
	var out []byte
	buf := make([]byte, readChunk)
	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if limit > 0 && int64(len(out)) > limit {
			return nil, ErrOutputLimit
		}
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}
