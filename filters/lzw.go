package filters

import (
	"bytes"
	"compress/lzw"
	"context"
	"errors"
	"io"

	tifflzw "golang.org/x/image/tiff/lzw"

	"github.com/wudi/pdftext/ir/raw"
)

type lzwDecoder struct{}

func NewLZWDecoder() Decoder { return lzwDecoder{} }

func (lzwDecoder) Name() string { return "LZWDecode" }

// Decode handles both code-width conventions. EarlyChange 1, the PDF
// default, widens codes one entry early as TIFF does; EarlyChange 0 is the
// plain variant.
func (lzwDecoder) Decode(ctx context.Context, in []byte, params *raw.Dict, limit int64) ([]byte, error) {
	var r io.ReadCloser
	if intParam(params, "EarlyChange", 1) == 0 {
		r = lzw.NewReader(bytes.NewReader(in), lzw.MSB, 8)
	} else {
		r = tifflzw.NewReader(bytes.NewReader(in), tifflzw.MSB, 8)
	}
	defer r.Close()
	out, err := readAll(ctx, r, limit)
	if err != nil {
		if errors.Is(err, ErrOutputLimit) || ctx.Err() != nil || len(out) == 0 {
			return nil, err
		}
	}
	return applyPredictor(out, params)
}
