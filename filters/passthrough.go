package filters

import (
	"context"

	"github.com/wudi/pdftext/ir/raw"
)

// passthroughDecoder returns its input unchanged. It stands in for image
// codecs whose data is handed to an image decoder, and for the Identity
// crypt filter.
type passthroughDecoder struct{ name string }

func NewPassthroughDecoder(name string) Decoder { return passthroughDecoder{name: name} }

func (d passthroughDecoder) Name() string { return d.name }

func (passthroughDecoder) Decode(_ context.Context, in []byte, _ *raw.Dict, _ int64) ([]byte, error) {
	return in, nil
}
