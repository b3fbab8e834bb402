// Package contentstream turns page content streams into operations and
// dispatches them to operator handlers.
package contentstream

import (
	"bytes"
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/wudi/pdftext/ir/raw"
	"github.com/wudi/pdftext/recovery"
	"github.com/wudi/pdftext/scanner"
)

// maxOperands bounds the operand stack between two operators. Real
// operators take at most a handful; longer runs are garbage.
const maxOperands = 4096

// Parser splits content streams into operations.
type Parser struct {
	cfg scanner.Config
}

// NewParser returns a parser using cfg for tokenization. A nil recovery
// strategy is replaced by a lenient one so that damaged streams still yield
// their readable operations.
func NewParser(cfg scanner.Config) *Parser {
	if cfg.Recovery == nil {
		cfg.Recovery = recovery.NewLenientStrategy(nil)
	}
	return &Parser{cfg: cfg}
}

// Parse parses data with default settings.
func Parse(data []byte) ([]Operation, error) {
	return NewParser(scanner.Config{}).Parse(context.Background(), data)
}

// Parse returns the operations in data. Operands that cannot be read are
// dropped. The operations read before a fatal error are returned with it.
func (p *Parser) Parse(ctx context.Context, data []byte) ([]Operation, error) {
	r := raw.NewObjectReader(scanner.New(bytes.NewReader(data), p.cfg))
	var ops []Operation
	var operands []raw.Object
	for n := 0; ; n++ {
		if n&0xff == 0 {
			if err := ctx.Err(); err != nil {
				return ops, err
			}
		}
		tok, err := r.Next()
		if err == io.EOF {
			return ops, nil
		}
		if err != nil {
			return ops, errors.Wrap(err, "content stream")
		}
		switch tok.Type {
		case scanner.TokenKeyword:
			switch tok.Str {
			case "BI":
				op, err := inlineImage(r, tok.Pos)
				if err != nil {
					return ops, err
				}
				ops = append(ops, op)
			case "]", ">>", "}", "{", "EI":
				// Stray closers are not operators.
			default:
				ops = append(ops, Operation{Operator: tok.Str, Operands: operands, Pos: tok.Pos})
			}
			operands = nil
		case scanner.TokenInlineImage, scanner.TokenStream:
			// Image data without a BI dictionary carries nothing usable.
			operands = nil
		default:
			obj, err := r.Object(tok)
			if err != nil {
				continue
			}
			if len(operands) < maxOperands {
				operands = append(operands, obj)
			}
		}
	}
}

// inlineImage reads the key/value pairs after BI up to the image data.
func inlineImage(r *raw.ObjectReader, pos int64) (Operation, error) {
	d := raw.NewDict()
	for {
		tok, err := r.Next()
		if err == io.EOF {
			return Operation{Operator: "BI", Operands: []raw.Object{d, raw.Str(nil)}, Pos: pos}, nil
		}
		if err != nil {
			return Operation{}, errors.Wrap(err, "inline image")
		}
		switch tok.Type {
		case scanner.TokenInlineImage:
			return Operation{Operator: "BI", Operands: []raw.Object{d, raw.Str(tok.Bytes)}, Pos: pos}, nil
		case scanner.TokenName:
			vtok, err := r.Next()
			if err != nil {
				if err == io.EOF {
					continue
				}
				return Operation{}, errors.Wrap(err, "inline image")
			}
			if vtok.Type == scanner.TokenInlineImage {
				return Operation{Operator: "BI", Operands: []raw.Object{d, raw.Str(vtok.Bytes)}, Pos: pos}, nil
			}
			v, err := r.Object(vtok)
			if err != nil {
				continue
			}
			d.Set(expandKey(tok.Str), expandValue(v))
		}
	}
}

var inlineKeys = map[string]string{
	"BPC": "BitsPerComponent",
	"CS":  "ColorSpace",
	"D":   "Decode",
	"DP":  "DecodeParms",
	"F":   "Filter",
	"H":   "Height",
	"W":   "Width",
	"IM":  "ImageMask",
	"I":   "Interpolate",
	"L":   "Length",
}

var inlineNames = map[string]string{
	"G":    "DeviceGray",
	"RGB":  "DeviceRGB",
	"CMYK": "DeviceCMYK",
	"I":    "Indexed",
	"AHx":  "ASCIIHexDecode",
	"A85":  "ASCII85Decode",
	"LZW":  "LZWDecode",
	"Fl":   "FlateDecode",
	"RL":   "RunLengthDecode",
	"CCF":  "CCITTFaxDecode",
	"DCT":  "DCTDecode",
}

func expandKey(k string) string {
	if full, ok := inlineKeys[k]; ok {
		return full
	}
	return k
}

func expandValue(v raw.Object) raw.Object {
	switch t := v.(type) {
	case raw.Name:
		if full, ok := inlineNames[string(t)]; ok {
			return raw.Name(full)
		}
	case *raw.Array:
		items := make([]raw.Object, len(t.Items))
		for i, it := range t.Items {
			items[i] = expandValue(it)
		}
		return raw.NewArray(items...)
	}
	return v
}
