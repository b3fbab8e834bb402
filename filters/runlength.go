package filters

import (
	"context"

	"github.com/wudi/pdftext/ir/raw"
)

type runLengthDecoder struct{}

func NewRunLengthDecoder() Decoder { return runLengthDecoder{} }

func (runLengthDecoder) Name() string { return "RunLengthDecode" }

// Decode expands PackBits-style runs: a length byte 0-127 copies the next
// n+1 bytes, 129-255 repeats the next byte 257-n times and 128 ends the
// data.
func (runLengthDecoder) Decode(_ context.Context, in []byte, _ *raw.Dict, limit int64) ([]byte, error) {
	var out []byte
	for i := 0; i < len(in); {
		n := int(in[i])
		i++
		switch {
		case n == 128:
			return out, nil
		case n < 128:
			end := i + n + 1
			if end > len(in) {
				end = len(in)
			}
			out = append(out, in[i:end]...)
			i = end
		default:
			if i >= len(in) {
				return out, nil
			}
			for k := 0; k < 257-n; k++ {
				out = append(out, in[i])
			}
			i++
		}
		if limit > 0 && int64(len(out)) > limit {
			return nil, ErrOutputLimit
		}
	}
	return out, nil
}
