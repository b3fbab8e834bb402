package filters

import (
	"bytes"
	"compress/flate"
	"compress/lzw"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/wudi/pdftext/ir/raw"
)

func zlibBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.Close()
	return buf.Bytes()
}

func predictorParams(predictor, colors, bpc, columns int64) *raw.Dict {
	params := raw.NewDict()
	params.Set("Predictor", raw.Int(predictor))
	params.Set("Colors", raw.Int(colors))
	params.Set("BitsPerComponent", raw.Int(bpc))
	params.Set("Columns", raw.Int(columns))
	return params
}

func TestFlateDecode(t *testing.T) {
	out, err := NewFlateDecoder().Decode(context.Background(), zlibBytes(t, []byte("hello world")), nil, 0)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "hello world" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFlateDecodeRawDeflate(t *testing.T) {
	var buf bytes.Buffer
	w, _ := flate.NewWriter(&buf, flate.BestSpeed)
	w.Write([]byte("no zlib header"))
	w.Close()
	out, err := NewFlateDecoder().Decode(context.Background(), buf.Bytes(), nil, 0)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "no zlib header" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFlateDecodeTruncatedKeepsPrefix(t *testing.T) {
	var data []byte
	for i := 0; i < 20000; i++ {
		data = append(data, fmt.Sprintf("BT (line %d) Tj ET\n", i*7919%100003)...)
	}
	comp := zlibBytes(t, data)
	out, err := NewFlateDecoder().Decode(context.Background(), comp[:len(comp)/2], nil, 0)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(out) == 0 || !bytes.HasPrefix(data, out) {
		t.Fatalf("expected a prefix of the input, got %d bytes", len(out))
	}
}

func TestFlateDecodeWithPNGPredictor(t *testing.T) {
	// Rows: Sub, Up, Average, Paeth.
	rows := []byte{
		1, 10, 12, 20,
		2, 1, 1, 1,
		3, 2, 2, 2,
		4, 0, 0, 0,
	}
	out, err := NewFlateDecoder().Decode(context.Background(), zlibBytes(t, rows), predictorParams(12, 1, 8, 3), 0)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	want := []byte{
		10, 22, 42,
		11, 23, 43,
		7, 17, 32,
		7, 17, 32,
	}
	if !bytes.Equal(out, want) {
		t.Fatalf("predictor output mismatch: got %v want %v", out, want)
	}
}

func TestTIFFPredictor(t *testing.T) {
	out, err := applyPredictor([]byte{1, 2, 3, 1, 1, 1}, predictorParams(2, 3, 8, 2))
	if err != nil {
		t.Fatalf("predictor error: %v", err)
	}
	if !bytes.Equal(out, []byte{1, 2, 3, 2, 3, 4}) {
		t.Fatalf("unexpected output %v", out)
	}
	// 4-bit samples, one component: 0x12 0x10 -> 1, 1+2, 3+1, 4+0
	out, err = applyPredictor([]byte{0x12, 0x10}, predictorParams(2, 1, 4, 4))
	if err != nil {
		t.Fatalf("predictor error: %v", err)
	}
	if !bytes.Equal(out, []byte{0x13, 0x44}) {
		t.Fatalf("unexpected 4-bit output %x", out)
	}
}

func TestLZWDecodeEarlyChange(t *testing.T) {
	input := []byte("hello hello hello")
	var buf bytes.Buffer
	w := lzw.NewWriter(&buf, lzw.MSB, 8)
	w.Write(input)
	w.Close()

	out, err := NewLZWDecoder().Decode(context.Background(), buf.Bytes(), nil, 0)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !bytes.Equal(out, input) {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestLZWDecodeWithoutEarlyChange(t *testing.T) {
	// Long enough to cross the 9 to 10 bit code width boundary, where the
	// two conventions differ.
	var input []byte
	for i := 0; i < 4000; i++ {
		input = append(input, byte(i*7%251), byte(i%13))
	}
	var buf bytes.Buffer
	w := lzw.NewWriter(&buf, lzw.MSB, 8)
	w.Write(input)
	w.Close()

	params := raw.NewDict()
	params.Set("EarlyChange", raw.Int(0))
	out, err := NewLZWDecoder().Decode(context.Background(), buf.Bytes(), params, 0)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !bytes.Equal(out, input) {
		t.Fatalf("round trip mismatch: got %d bytes want %d", len(out), len(input))
	}
}

func TestRunLengthDecode(t *testing.T) {
	// literal run of 3 bytes (len=2), then repeat 'A' 2 times (len=255 => count=2), then EOD 128
	data := []byte{2, 'h', 'i', '!', 255, 'A', 128, 0, 'x'}
	out, err := NewRunLengthDecoder().Decode(context.Background(), data, nil, 0)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "hi!AA" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestASCII85Decode(t *testing.T) {
	for _, in := range []string{"<~87cURD_*#4DfTZ)+T~>", "87cURD_*#4DfTZ)+T~>", "87cURD_*#4D fTZ)+T"} {
		out, err := NewASCII85Decoder().Decode(context.Background(), []byte(in), nil, 0)
		if err != nil {
			t.Fatalf("%q: decode error: %v", in, err)
		}
		if string(out) != "Hello, World!" {
			t.Fatalf("%q: unexpected output: %q", in, out)
		}
	}
	out, err := NewASCII85Decoder().Decode(context.Background(), []byte("z~>"), nil, 0)
	if err != nil || !bytes.Equal(out, []byte{0, 0, 0, 0}) {
		t.Fatalf("z group: got %v, %v", out, err)
	}
}

func TestASCIIHexDecode(t *testing.T) {
	out, err := NewASCIIHexDecoder().Decode(context.Background(), []byte("68 65 6c6C6f2>ignored"), nil, 0)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !bytes.Equal(out, []byte("hello ")) {
		t.Fatalf("unexpected output: %q", out)
	}
	if _, err := NewASCIIHexDecoder().Decode(context.Background(), []byte("6x"), nil, 0); err == nil {
		t.Fatalf("expected invalid digit error")
	}
}

func TestCCITTGroup4WhitePage(t *testing.T) {
	// Eight all-white rows coded as vertical mode V0 ("1"), then EOFB.
	data := []byte{0xFF, 0x00, 0x10, 0x01}
	params := raw.NewDict()
	params.Set("K", raw.Int(-1))
	params.Set("Columns", raw.Int(8))
	params.Set("Rows", raw.Int(8))

	out, err := NewCCITTFaxDecoder().Decode(context.Background(), data, params, 0)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !bytes.Equal(out, bytes.Repeat([]byte{0xFF}, 8)) {
		t.Fatalf("unexpected rows %x", out)
	}

	params.Set("BlackIs1", raw.Bool(true))
	out, err = NewCCITTFaxDecoder().Decode(context.Background(), data, params, 0)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !bytes.Equal(out, make([]byte, 8)) {
		t.Fatalf("expected inverted rows, got %x", out)
	}
}

func TestCCITTTwoDimensionalGroup3Unsupported(t *testing.T) {
	params := raw.NewDict()
	params.Set("K", raw.Int(2))
	_, err := NewCCITTFaxDecoder().Decode(context.Background(), []byte{0}, params, 0)
	var ue UnsupportedError
	if !errors.As(err, &ue) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}

func TestPipelineChainsAndAbbreviations(t *testing.T) {
	hexOfZlib := []byte(strings.ToUpper(hexString(zlibBytes(t, []byte("chained")))) + ">")
	out, err := Default(Limits{}).Decode(context.Background(), hexOfZlib, []string{"AHx", "Fl"}, nil)
	if err != nil {
		t.Fatalf("pipeline decode error: %v", err)
	}
	if string(out) != "chained" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestPipelineImageCodecsPassThrough(t *testing.T) {
	jpegish := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	out, err := Default(Limits{}).Decode(context.Background(), jpegish, []string{"DCT"}, nil)
	if err != nil || !bytes.Equal(out, jpegish) {
		t.Fatalf("expected passthrough, got %v, %v", out, err)
	}
	if !IsImageCodec("DCT") || !IsImageCodec("JPXDecode") || IsImageCodec("FlateDecode") {
		t.Fatalf("IsImageCodec misclassifies filters")
	}
}

func TestUnsupportedFilter(t *testing.T) {
	_, err := Default(Limits{}).Decode(context.Background(), []byte{0x00}, []string{"BogusDecode"}, nil)
	var ue UnsupportedError
	if err == nil || !errors.As(err, &ue) || ue.Filter != "BogusDecode" {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}

func TestPipelineOutputLimit(t *testing.T) {
	comp := zlibBytes(t, bytes.Repeat([]byte{0}, 1<<20))
	_, err := Default(Limits{MaxDecompressedSize: 1024}).Decode(context.Background(), comp, []string{"FlateDecode"}, nil)
	if !errors.Is(err, ErrOutputLimit) {
		t.Fatalf("expected output limit error, got %v", err)
	}
}

func TestPipelineHonoursDeadline(t *testing.T) {
	comp := zlibBytes(t, bytes.Repeat([]byte("x"), 1<<20))
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err := Default(Limits{MaxDecodeTime: time.Minute}).Decode(ctx, comp, []string{"FlateDecode"}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestExtractFilters(t *testing.T) {
	parms := raw.NewDict()
	parms.Set("Predictor", raw.Int(12))
	dict := raw.NewDict()
	dict.Set("Filter", raw.NewArray(raw.Name("ASCII85Decode"), raw.Name("FlateDecode")))
	dict.Set("DecodeParms", raw.NewArray(raw.Null{}, parms))

	names, params := ExtractFilters(dict, nil)
	if strings.Join(names, ",") != "ASCII85Decode,FlateDecode" {
		t.Fatalf("unexpected names %v", names)
	}
	if len(params) != 2 || params[0] != nil || params[1] != parms {
		t.Fatalf("unexpected params %v", params)
	}

	inline := raw.NewDict()
	inline.Set("F", raw.Name("AHx"))
	if names, _ := ExtractFilters(inline, nil); len(names) != 1 || names[0] != "AHx" {
		t.Fatalf("expected abbreviated inline filter, got %v", names)
	}
}

func hexString(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 0, 2*len(b))
	for _, c := range b {
		out = append(out, digits[c>>4], digits[c&0xF])
	}
	return string(out)
}
