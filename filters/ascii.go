package filters

import (
	"bytes"
	"context"
	"encoding/ascii85"
	"fmt"

	"github.com/wudi/pdftext/ir/raw"
)

type asciiHexDecoder struct{}

func NewASCIIHexDecoder() Decoder { return asciiHexDecoder{} }

func (asciiHexDecoder) Name() string { return "ASCIIHexDecode" }

// Decode reads hex digit pairs up to '>', skipping whitespace. A final odd
// digit is padded with 0.
func (asciiHexDecoder) Decode(_ context.Context, in []byte, _ *raw.Dict, _ int64) ([]byte, error) {
	out := make([]byte, 0, len(in)/2)
	var hi byte
	half := false
	for _, c := range in {
		if c == '>' {
			break
		}
		var v byte
		switch {
		case c >= '0' && c <= '9':
			v = c - '0'
		case c >= 'a' && c <= 'f':
			v = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			v = c - 'A' + 10
		case c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0:
			continue
		default:
			return nil, fmt.Errorf("invalid hex digit %q", c)
		}
		if half {
			out = append(out, hi<<4|v)
		} else {
			hi = v
		}
		half = !half
	}
	if half {
		out = append(out, hi<<4)
	}
	return out, nil
}

type ascii85Decoder struct{}

func NewASCII85Decoder() Decoder { return ascii85Decoder{} }

func (ascii85Decoder) Name() string { return "ASCII85Decode" }

// Decode accepts data with or without the "<~" prefix and stops at "~>".
func (ascii85Decoder) Decode(_ context.Context, in []byte, _ *raw.Dict, _ int64) ([]byte, error) {
	data := bytes.TrimSpace(in)
	data = bytes.TrimPrefix(data, []byte("<~"))
	if i := bytes.Index(data, []byte("~>")); i >= 0 {
		data = data[:i]
	} else if i := bytes.IndexByte(data, '~'); i >= 0 {
		data = data[:i]
	}
	out := make([]byte, 4*len(data)/5+4*bytes.Count(data, []byte("z"))+4)
	n, _, err := ascii85.Decode(out, data, true)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}
