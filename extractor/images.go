package extractor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/wudi/pdftext/contentstream"
	"github.com/wudi/pdftext/coords"
	"github.com/wudi/pdftext/document"
	"github.com/wudi/pdftext/filters"
	"github.com/wudi/pdftext/ir/raw"
)

// ImagePlacement is an image painted on a page. BBox uses the same
// top-left origin as Char: Y0 is the top edge and Y1 the bottom edge.
type ImagePlacement struct {
	Name   string
	BBox   coords.Rect
	Width  int
	Height int

	doc       *document.Document
	resources *raw.Dict
	dict      *raw.Dict
	stream    *raw.Stream // nil for inline images
	inline    []byte
}

func (in *interpreter) addImage(name string, dict *raw.Dict, st *raw.Stream, inline []byte) {
	doc := in.e.doc
	w, _ := doc.NumberOf(dict, "Width")
	h, _ := doc.NumberOf(dict, "Height")
	box := in.gs.ctm.TransformRect(coords.Rect{X0: 0, Y0: 0, X1: 1, Y1: 1})
	in.out.Images = append(in.out.Images, ImagePlacement{
		Name:      name,
		BBox:      coords.Rect{X0: box.X0, Y0: in.pageTop - box.Y1, X1: box.X1, Y1: in.pageTop - box.Y0},
		Width:     int(w),
		Height:    int(h),
		doc:       doc,
		resources: in.resources,
		dict:      dict,
		stream:    st,
		inline:    inline,
	})
}

func (in *interpreter) inlineImage(operands []raw.Object) error {
	op := contentstream.Operation{Operator: "BI", Operands: operands}
	dict, data, ok := op.InlineImage()
	if !ok {
		return nil
	}
	in.addImage("inline", dict, nil, data)
	return nil
}

// Inline reports whether the image was defined inside the content stream.
func (p ImagePlacement) Inline() bool { return p.stream == nil }

// Decode returns the pixels of the image. JPEG data is handed to
// image/jpeg; other images are unpacked from their samples.
func (p ImagePlacement) Decode(ctx context.Context) (image.Image, error) {
	var (
		data []byte
		err  error
	)
	if p.stream != nil {
		data, _, err = p.doc.Stream(ctx, p.stream)
	} else {
		data, err = p.doc.DecodeInline(ctx, p.dict, p.inline)
	}
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", p.Name, err)
	}
	names, _ := filters.ExtractFilters(p.dict, p.doc.Resolve)
	if n := len(names); n > 0 {
		switch last := filters.Canonical(names[n-1]); last {
		case "DCTDecode":
			img, err := jpeg.Decode(bytes.NewReader(data))
			if err != nil {
				return nil, fmt.Errorf("image %s: %w", p.Name, err)
			}
			return img, nil
		case "JPXDecode", "JBIG2Decode":
			return nil, filters.UnsupportedError{Filter: last}
		}
	}
	return p.unpack(data)
}

// PNG decodes the image and encodes it as PNG, the format handed to OCR
// engines.
func (p ImagePlacement) PNG(ctx context.Context) ([]byte, error) {
	img, err := p.Decode(ctx)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type colorKind int

const (
	kindGray colorKind = iota
	kindRGB
	kindCMYK
	kindIndexed
)

type colorSpace struct {
	kind   colorKind
	n      int
	invert bool // Separation tints: 1 is full ink
	base   *colorSpace
	hival  int
	lookup []byte
}

func (p ImagePlacement) colorSpace(obj raw.Object, depth int) (*colorSpace, error) {
	if depth > 4 {
		return nil, fmt.Errorf("color space nesting too deep")
	}
	doc := p.doc
	switch v := doc.Resolve(obj).(type) {
	case raw.Name:
		switch v {
		case "DeviceGray", "CalGray", "G":
			return &colorSpace{kind: kindGray, n: 1}, nil
		case "DeviceRGB", "CalRGB", "RGB":
			return &colorSpace{kind: kindRGB, n: 3}, nil
		case "DeviceCMYK", "CMYK":
			return &colorSpace{kind: kindCMYK, n: 4}, nil
		}
		named := doc.Dict(doc.Get(p.resources, "ColorSpace"))
		if named != nil {
			if cs, ok := named.Get(string(v)); ok {
				return p.colorSpace(cs, depth+1)
			}
		}
		return nil, fmt.Errorf("unknown color space %s", v)
	case *raw.Array:
		if v.Len() == 0 {
			break
		}
		family, _ := doc.Name(v.Items[0])
		switch family {
		case "ICCBased":
			n := 3
			if v.Len() > 1 {
				if st := doc.Dict(v.Items[1]); st != nil {
					if num, ok := doc.NumberOf(st, "N"); ok {
						n = int(num)
					}
				}
			}
			switch n {
			case 1:
				return &colorSpace{kind: kindGray, n: 1}, nil
			case 4:
				return &colorSpace{kind: kindCMYK, n: 4}, nil
			}
			return &colorSpace{kind: kindRGB, n: 3}, nil
		case "Indexed", "I":
			if v.Len() < 4 {
				break
			}
			base, err := p.colorSpace(v.Items[1], depth+1)
			if err != nil {
				return nil, err
			}
			hival, _ := doc.Number(v.Items[2])
			var lookup []byte
			switch l := doc.Resolve(v.Items[3]).(type) {
			case raw.String:
				lookup = l.Bytes
			case *raw.Stream:
				lookup, _, err = doc.Stream(context.Background(), l)
				if err != nil {
					return nil, err
				}
			}
			return &colorSpace{kind: kindIndexed, n: 1, base: base, hival: int(hival), lookup: lookup}, nil
		case "Separation":
			return &colorSpace{kind: kindGray, n: 1, invert: true}, nil
		case "CalGray":
			return &colorSpace{kind: kindGray, n: 1}, nil
		case "CalRGB", "Lab":
			return &colorSpace{kind: kindRGB, n: 3}, nil
		}
		return nil, fmt.Errorf("unsupported color space %s", family)
	}
	return nil, fmt.Errorf("missing color space")
}

// unpack converts raw samples into an image. Rows start on byte
// boundaries.
func (p ImagePlacement) unpack(data []byte) (image.Image, error) {
	doc := p.doc
	w, h := p.Width, p.Height
	if err := filters.ValidateImageBounds(w, h); err != nil {
		return nil, err
	}
	mask := false
	if b, ok := doc.Resolve(doc.Get(p.dict, "ImageMask")).(raw.Bool); ok {
		mask = bool(b)
	}
	bpc := 8
	if v, ok := doc.NumberOf(p.dict, "BitsPerComponent"); ok {
		bpc = int(v)
	}
	cs := &colorSpace{kind: kindGray, n: 1}
	if mask {
		bpc = 1
	} else {
		var err error
		if cs, err = p.colorSpace(doc.Get(p.dict, "ColorSpace"), 0); err != nil {
			return nil, fmt.Errorf("image %s: %w", p.Name, err)
		}
	}
	switch bpc {
	case 1, 2, 4, 8, 16:
	default:
		return nil, fmt.Errorf("image %s: unsupported bits per component %d", p.Name, bpc)
	}
	stride := (w*cs.n*bpc + 7) / 8
	// Short data keeps its whole rows; the rest stays blank.
	if len(data) < stride {
		return nil, fmt.Errorf("image %s: %d bytes for %dx%d image", p.Name, len(data), w, h)
	}
	if cs.kind == kindRGB && bpc == 8 && p.decodeArray(cs, bpc) == nil && len(data) >= stride*h {
		return &rgbImage{Pix: data[:stride*h], Stride: stride, Rect: image.Rect(0, 0, w, h)}, nil
	}

	// A mask sample of 0 paints black, which the gray mapping already gives.
	decode := p.decodeArray(cs, bpc)
	maxVal := float64(uint(1)<<uint(bpc) - 1)
	comp := make([]float64, cs.n)
	rows := len(data) / stride
	if rows > h {
		rows = h
	}
	var out image.Image
	gray := cs.kind == kindGray || (cs.kind == kindIndexed && cs.base.kind == kindGray)
	switch {
	case gray:
		img := image.NewGray(image.Rect(0, 0, w, h))
		fill(img.Pix, 0xFF)
		out = img
	case cs.kind == kindCMYK || (cs.kind == kindIndexed && cs.base.kind == kindCMYK):
		out = image.NewCMYK(image.Rect(0, 0, w, h))
	default:
		img := image.NewNRGBA(image.Rect(0, 0, w, h))
		fill(img.Pix, 0xFF)
		out = img
	}
	for y := 0; y < rows; y++ {
		s := samples{data: data[y*stride : (y+1)*stride], bpc: bpc}
		for x := 0; x < w; x++ {
			for i := range comp {
				v := float64(s.next())
				if decode != nil && 2*i+1 < len(decode) {
					v = decode[2*i] + v*(decode[2*i+1]-decode[2*i])/maxVal
				} else if cs.kind != kindIndexed {
					v /= maxVal
				}
				comp[i] = v
			}
			c := comp
			kind := cs.kind
			if cs.kind == kindIndexed {
				c = cs.index(int(comp[0]))
				kind = cs.base.kind
			}
			switch kind {
			case kindGray:
				g := c[0]
				if cs.invert {
					g = 1 - g
				}
				out.(*image.Gray).SetGray(x, y, color.Gray{Y: to8(g)})
			case kindCMYK:
				out.(*image.CMYK).SetCMYK(x, y, color.CMYK{C: to8(c[0]), M: to8(c[1]), Y: to8(c[2]), K: to8(c[3])})
			default:
				out.(*image.NRGBA).SetNRGBA(x, y, color.NRGBA{R: to8(c[0]), G: to8(c[1]), B: to8(c[2]), A: 0xFF})
			}
		}
	}
	return out, nil
}

// decodeArray returns /Decode when it differs from the default mapping.
func (p ImagePlacement) decodeArray(cs *colorSpace, bpc int) []float64 {
	d, ok := p.doc.Numbers(p.doc.Get(p.dict, "Decode"))
	if !ok || len(d) < 2*cs.n {
		return nil
	}
	for i := 0; i < cs.n; i++ {
		hi := 1.0
		if cs.kind == kindIndexed {
			hi = float64(uint(1)<<uint(bpc) - 1)
		}
		if d[2*i] != 0 || d[2*i+1] != hi {
			return d
		}
	}
	return nil
}

// index returns the base color components of palette entry i.
func (cs *colorSpace) index(i int) []float64 {
	if i < 0 {
		i = 0
	}
	if i > cs.hival {
		i = cs.hival
	}
	n := cs.base.n
	out := make([]float64, n)
	for j := 0; j < n; j++ {
		if k := i*n + j; k < len(cs.lookup) {
			out[j] = float64(cs.lookup[k]) / 255
		}
	}
	return out
}

type samples struct {
	data []byte
	bpc  int
	bit  int
}

func (s *samples) next() uint {
	var v uint
	switch s.bpc {
	case 8:
		if i := s.bit / 8; i < len(s.data) {
			v = uint(s.data[i])
		}
	case 16:
		if i := s.bit / 8; i+1 < len(s.data) {
			v = uint(s.data[i])<<8 | uint(s.data[i+1])
		}
	default:
		if i := s.bit / 8; i < len(s.data) {
			shift := 8 - s.bpc - s.bit%8
			v = uint(s.data[i]>>uint(shift)) & (1<<uint(s.bpc) - 1)
		}
	}
	s.bit += s.bpc
	return v
}

func to8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 0xFF
	}
	return uint8(v*255 + 0.5)
}

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}

// rgbImage wraps packed 8-bit RGB samples without copying them.
type rgbImage struct {
	Pix    []byte
	Stride int
	Rect   image.Rectangle
}

func (p *rgbImage) ColorModel() color.Model { return color.RGBAModel }
func (p *rgbImage) Bounds() image.Rectangle { return p.Rect }
func (p *rgbImage) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(p.Rect)) {
		return color.RGBA{}
	}
	i := (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*3
	return color.RGBA{R: p.Pix[i], G: p.Pix[i+1], B: p.Pix[i+2], A: 255}
}
