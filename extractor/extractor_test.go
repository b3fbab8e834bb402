package extractor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/pdftext/contentstream"
	"github.com/wudi/pdftext/document"
	"github.com/wudi/pdftext/internal/pdftest"
)

const eps = 1e-6

func extract(t *testing.T, data []byte) *PageContent {
	t.Helper()
	doc, err := document.Load(context.Background(), bytes.NewReader(data), document.Options{})
	require.NoError(t, err)
	require.NotZero(t, doc.NumPages())
	pc, err := New(doc).Page(context.Background(), doc.Pages()[0])
	require.NoError(t, err)
	return pc
}

func textPage(content string) []byte {
	b := pdftest.New()
	font := b.Helvetica()
	return b.Finish(pdftest.Page{Content: content, Fonts: map[string]int{"F1": font}})
}

func joined(chars []Char) string {
	var sb strings.Builder
	for _, c := range chars {
		sb.WriteString(c.Text)
	}
	return sb.String()
}

func TestCharGeometry(t *testing.T) {
	pc := extract(t, pdftest.TextPDF("Hi"))
	assert.Equal(t, 612.0, pc.Width)
	assert.Equal(t, 792.0, pc.Height)
	require.Len(t, pc.Chars, 2)

	h := pc.Chars[0]
	assert.Equal(t, "H", h.Text)
	assert.InDelta(t, 72, h.X0, eps)
	assert.InDelta(t, 80.664, h.X1, eps)
	assert.InDelta(t, 62.484, h.Top, eps)
	assert.InDelta(t, 74.484, h.Bottom, eps)
	assert.InDelta(t, 12, h.Size, eps)
	assert.Equal(t, "Helvetica", h.FontName)
	assert.True(t, h.Upright)

	assert.InDelta(t, 80.664, pc.Chars[1].X0, eps)
	assert.InDelta(t, 83.328, pc.Chars[1].X1, eps)
}

func TestNextLineUsesLeading(t *testing.T) {
	pc := extract(t, pdftest.TextPDF("A\nB"))
	require.Len(t, pc.Chars, 2)
	assert.InDelta(t, 14, pc.Chars[1].Top-pc.Chars[0].Top, eps)
	assert.InDelta(t, 72, pc.Chars[1].X0, eps)
}

func TestKerningAndSpacing(t *testing.T) {
	pc := extract(t, textPage("BT /F1 12 Tf 72 720 Td [(A) -1000 (B)] TJ ET"))
	require.Len(t, pc.Chars, 2)
	assert.InDelta(t, 92.004, pc.Chars[1].X0, eps)

	pc = extract(t, textPage("BT /F1 12 Tf 1 Tc 72 720 Td (AB) Tj ET"))
	assert.InDelta(t, 81.004, pc.Chars[1].X0, eps)

	pc = extract(t, textPage("BT /F1 12 Tf 5 Tw 72 720 Td (A B) Tj ET"))
	require.Len(t, pc.Chars, 3)
	assert.InDelta(t, 88.34, pc.Chars[2].X0, eps)

	pc = extract(t, textPage("BT /F1 12 Tf 50 Tz 72 720 Td (AB) Tj ET"))
	assert.InDelta(t, 76.002, pc.Chars[1].X0, eps)
}

func TestQuoteOperators(t *testing.T) {
	pc := extract(t, textPage("BT /F1 12 Tf 14 TL 72 720 Td (A) Tj (B) ' 3 1 (C) \" ET"))
	require.Equal(t, "ABC", joined(pc.Chars))
	assert.InDelta(t, pc.Chars[0].Top+14, pc.Chars[1].Top, eps)
	assert.InDelta(t, pc.Chars[0].Top+28, pc.Chars[2].Top, eps)
	assert.InDelta(t, 72, pc.Chars[2].X0, eps)
}

func TestRotatedPage(t *testing.T) {
	b := pdftest.New()
	font := b.Helvetica()
	data := b.Finish(pdftest.Page{
		Content: "BT /F1 12 Tf 72 720 Td (H) Tj ET",
		Fonts:   map[string]int{"F1": font},
		Rotate:  90,
	})
	pc := extract(t, data)
	assert.Equal(t, 792.0, pc.Width)
	assert.Equal(t, 612.0, pc.Height)
	require.Len(t, pc.Chars, 1)
	c := pc.Chars[0]
	assert.InDelta(t, 717.516, c.X0, eps)
	assert.InDelta(t, 729.516, c.X1, eps)
	assert.InDelta(t, 72, c.Top, eps)
	assert.InDelta(t, 80.664, c.Bottom, eps)
	assert.False(t, c.Upright)
}

func TestGraphicsStateStack(t *testing.T) {
	pc := extract(t, textPage("q 1 0 0 1 100 0 cm Q Q BT /F1 12 Tf 72 720 Td (A) Tj ET"))
	require.Len(t, pc.Chars, 1)
	assert.InDelta(t, 72, pc.Chars[0].X0, eps)

	pc = extract(t, textPage("q 2 0 0 2 0 0 cm BT /F1 12 Tf 10 10 Td (A) Tj ET Q"))
	require.Len(t, pc.Chars, 1)
	assert.InDelta(t, 20, pc.Chars[0].X0, eps)
	assert.InDelta(t, 24, pc.Chars[0].Size, eps)
}

func TestInvisibleTextIsExtracted(t *testing.T) {
	pc := extract(t, textPage("BT 3 Tr /F1 12 Tf 72 720 Td (ocr) Tj ET"))
	require.Equal(t, "ocr", joined(pc.Chars))
	assert.Equal(t, contentstream.TextInvisible, pc.Chars[0].RenderMode)
}

func TestFontFallbacks(t *testing.T) {
	pc := extract(t, textPage("BT /F9 12 Tf 72 720 Td (x) Tj ET"))
	require.Len(t, pc.Chars, 1)
	assert.Equal(t, "Helvetica", pc.Chars[0].FontName)

	pc = extract(t, textPage("BT 72 720 Td (x) Tj ET"))
	assert.Empty(t, pc.Chars)
}

func TestMalformedOperatorsAreSkipped(t *testing.T) {
	pc := extract(t, textPage("BT /F1 12 Tf 72 Td (A) Tj /F1 Tf (B) Tj ET"))
	require.Equal(t, "AB", joined(pc.Chars))
	assert.InDelta(t, 0, pc.Chars[0].X0, eps)
}

func TestFormXObject(t *testing.T) {
	b := pdftest.New().Compress(true)
	font := b.Helvetica()
	form := b.Form([4]float64{0, 0, 100, 100}, "1 0 0 1 100 0",
		fmt.Sprintf("<< /Font << /F1 %d 0 R >> >>", font),
		"BT /F1 10 Tf 0 0 Td (X) Tj ET")
	data := b.Finish(pdftest.Page{
		Content:  "BT /F1 20 Tf ET q 1 0 0 1 0 100 cm /Fm1 Do Q",
		XObjects: map[string]int{"Fm1": form},
	})
	pc := extract(t, data)
	require.Len(t, pc.Chars, 1)
	x := pc.Chars[0]
	assert.Equal(t, "X", x.Text)
	assert.InDelta(t, 100, x.X0, eps)
	assert.InDelta(t, 106.67, x.X1, eps)
	assert.InDelta(t, 684.07, x.Top, eps)
}

func TestRecursiveFormIsCut(t *testing.T) {
	b := pdftest.New()
	font := b.Helvetica()
	form := b.Reserve()
	content := "BT /F1 10 Tf 0 0 Td (Y) Tj ET /Fm1 Do"
	b.Set(form, fmt.Sprintf("<< /Type /XObject /Subtype /Form /BBox [0 0 10 10] /Resources << /Font << /F1 %d 0 R >> /XObject << /Fm1 %d 0 R >> >> /Length %d >>\nstream\n%s\nendstream",
		font, form, len(content), content))
	pc := extract(t, b.Finish(pdftest.Page{Content: "/Fm1 Do", XObjects: map[string]int{"Fm1": form}}))
	assert.Equal(t, "Y", joined(pc.Chars))
}

func TestImageXObjectPlacement(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 2))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 30)
	}
	pc := extract(t, pdftest.ImagePDF(img))
	require.Len(t, pc.Images, 1)
	p := pc.Images[0]
	assert.Equal(t, "Im1", p.Name)
	assert.False(t, p.Inline())
	assert.Equal(t, 4, p.Width)
	assert.Equal(t, 2, p.Height)
	assert.InDelta(t, 0, p.BBox.Y0, eps)
	assert.InDelta(t, 792, p.BBox.Y1, eps)
	assert.InDelta(t, 612, p.BBox.X1, eps)

	got, err := p.Decode(context.Background())
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 4, 2), got.Bounds())
	assert.Equal(t, color.Gray{Y: 150}, got.At(1, 1))

	png, err := p.PNG(context.Background())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestJPEGImage(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range src.Pix {
		src.Pix[i] = 128
	}
	b := pdftest.New()
	im := b.JPEGImage(src)
	pc := extract(t, b.Finish(pdftest.Page{Content: "q 8 0 0 8 0 0 cm /Im0 Do Q", XObjects: map[string]int{"Im0": im}}))
	require.Len(t, pc.Images, 1)
	got, err := pc.Images[0].Decode(context.Background())
	require.NoError(t, err)
	y := color.GrayModel.Convert(got.At(3, 3)).(color.Gray).Y
	assert.InDelta(t, 128, float64(y), 3)
}

func TestInlineImages(t *testing.T) {
	cases := []struct {
		name  string
		image string
		check func(t *testing.T, img image.Image)
	}{
		{
			name:  "gray",
			image: "BI /W 2 /H 1 /BPC 8 /CS /G /F /AHx ID 00FF>\nEI",
			check: func(t *testing.T, img image.Image) {
				assert.Equal(t, color.Gray{Y: 0}, img.At(0, 0))
				assert.Equal(t, color.Gray{Y: 255}, img.At(1, 0))
			},
		},
		{
			name:  "inverted 1-bit",
			image: "BI /W 8 /H 1 /BPC 1 /CS /G /D [1 0] /F /AHx ID F0>\nEI",
			check: func(t *testing.T, img image.Image) {
				assert.Equal(t, color.Gray{Y: 0}, img.At(0, 0))
				assert.Equal(t, color.Gray{Y: 255}, img.At(7, 0))
			},
		},
		{
			name:  "indexed",
			image: "BI /W 2 /H 1 /BPC 8 /CS [/I /RGB 1 <FF000000FF00>] /F /AHx ID 0001>\nEI",
			check: func(t *testing.T, img image.Image) {
				assert.Equal(t, color.NRGBA{R: 255, A: 255}, img.At(0, 0))
				assert.Equal(t, color.NRGBA{G: 255, A: 255}, img.At(1, 0))
			},
		},
		{
			name:  "image mask",
			image: "BI /W 4 /H 1 /IM true /F /AHx ID 50>\nEI",
			check: func(t *testing.T, img image.Image) {
				assert.Equal(t, color.Gray{Y: 0}, img.At(0, 0))
				assert.Equal(t, color.Gray{Y: 255}, img.At(1, 0))
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pc := extract(t, textPage("q 20 0 0 10 50 60 cm "+tc.image+" Q"))
			require.Len(t, pc.Images, 1)
			p := pc.Images[0]
			assert.True(t, p.Inline())
			assert.InDelta(t, 50, p.BBox.X0, eps)
			assert.InDelta(t, 70, p.BBox.X1, eps)
			assert.InDelta(t, 722, p.BBox.Y0, eps)
			assert.InDelta(t, 732, p.BBox.Y1, eps)
			img, err := p.Decode(context.Background())
			require.NoError(t, err)
			tc.check(t, img)
		})
	}
}

func TestUnsupportedImageCodec(t *testing.T) {
	b := pdftest.New()
	im := b.AddStream("/Type /XObject /Subtype /Image /Width 1 /Height 1 /ColorSpace /DeviceGray /BitsPerComponent 8 /Filter /JPXDecode", []byte{0})
	pc := extract(t, b.Finish(pdftest.Page{Content: "/Im0 Do", XObjects: map[string]int{"Im0": im}}))
	require.Len(t, pc.Images, 1)
	_, err := pc.Images[0].Decode(context.Background())
	assert.Error(t, err)
}

func TestCancelledContext(t *testing.T) {
	doc, err := document.Load(context.Background(), bytes.NewReader(pdftest.TextPDF(strings.Repeat("line\n", 400))), document.Options{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New(doc).Page(ctx, doc.Pages()[0])
	assert.Error(t, err)
}
