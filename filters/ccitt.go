package filters

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"golang.org/x/image/ccitt"

	"github.com/wudi/pdftext/ir/raw"
)

type ccittDecoder struct{}

func NewCCITTFaxDecoder() Decoder { return ccittDecoder{} }

func (ccittDecoder) Name() string { return "CCITTFaxDecode" }

// Decode produces packed 1-bit rows, MSB first, the layout an image
// dictionary with BitsPerComponent 1 describes. Black pixels are 0 bits
// unless BlackIs1 is set. Two-dimensional Group 3 (K > 0) is not
// supported.
func (ccittDecoder) Decode(ctx context.Context, in []byte, params *raw.Dict, limit int64) ([]byte, error) {
	k := intParam(params, "K", 0)
	columns := intParam(params, "Columns", 1728)
	rows := intParam(params, "Rows", 0)
	if k > 0 {
		return nil, UnsupportedError{Filter: "CCITTFaxDecode K>0"}
	}
	sf := ccitt.Group3
	if k < 0 {
		sf = ccitt.Group4
	}
	height := ccitt.AutoDetectHeight
	if rows > 0 {
		if err := validateNativeImageBounds(columns, rows); err != nil {
			return nil, err
		}
		height = rows
	} else if columns <= 0 || columns > maxNativeImageDimension {
		return nil, fmt.Errorf("invalid CCITT columns %d", columns)
	}
	r := ccitt.NewReader(bytes.NewReader(in), ccitt.MSB, sf, columns, height, &ccitt.Options{
		Align:  boolParam(params, "EncodedByteAlign", false),
		Invert: boolParam(params, "BlackIs1", false),
	})
	out, err := readAll(ctx, r, limit)
	if err != nil {
		if errors.Is(err, ErrOutputLimit) || ctx.Err() != nil {
			return nil, err
		}
		// Keep the complete rows decoded before the damage.
		stride := (columns + 7) / 8
		whole := len(out) / stride * stride
		if whole == 0 {
			return nil, err
		}
		out = out[:whole]
	}
	return out, nil
}
