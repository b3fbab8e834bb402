package filters

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"context"
	"errors"
	"io"

	"github.com/wudi/pdftext/ir/raw"
)

type flateDecoder struct{}

func NewFlateDecoder() Decoder { return flateDecoder{} }

func (flateDecoder) Name() string { return "FlateDecode" }

// Decode inflates zlib data. Streams written without the zlib header are
// inflated as raw deflate, and a truncated or corrupt tail keeps whatever
// was inflated before it.
func (flateDecoder) Decode(ctx context.Context, in []byte, params *raw.Dict, limit int64) ([]byte, error) {
	out, err := inflate(ctx, in, limit)
	if err != nil {
		return nil, err
	}
	return applyPredictor(out, params)
}

func inflate(ctx context.Context, in []byte, limit int64) ([]byte, error) {
	var out []byte
	var err error
	if zr, zerr := zlib.NewReader(bytes.NewReader(in)); zerr == nil {
		out, err = readAll(ctx, zr, limit)
		zr.Close()
	} else {
		fr := flate.NewReader(bytes.NewReader(in))
		out, err = readAll(ctx, fr, limit)
		fr.Close()
	}
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, ErrOutputLimit), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	case len(out) > 0:
		return out, nil
	case errors.Is(err, io.ErrUnexpectedEOF) && len(in) == 0:
		return nil, nil
	}
	return nil, err
}
