package filters

import (
	"context"
	"testing"
)

func FuzzFilters(f *testing.F) {
	f.Add([]byte("x\x9c\xcbH\xcd\xc9\xc9\x07\x00\x06,\x02\x15"), "FlateDecode")
	f.Add([]byte("87cURD_*#4DfTZ)+T~>"), "ASCII85Decode")
	f.Add([]byte("68656c6c6f>"), "ASCIIHexDecode")
	f.Add([]byte{2, 'h', 'i', '!', 128}, "RunLengthDecode")
	f.Add([]byte{0xFF, 0x00, 0x10, 0x01}, "CCITTFaxDecode")

	p := Default(Limits{MaxDecompressedSize: 1 << 20})
	f.Fuzz(func(t *testing.T, data []byte, filterName string) {
		// Decoders must fail cleanly on arbitrary input; unknown names only
		// exercise the lookup error.
		_, _ = p.Decode(context.Background(), data, []string{filterName}, nil)
	})
}
