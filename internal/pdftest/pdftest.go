// Package pdftest builds small in-memory PDF files for tests.
package pdftest

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"image"
	"image/jpeg"
	"sort"
	"strings"
)

// Builder accumulates indirect objects and writes a complete file with a
// cross-reference table.
type Builder struct {
	objects  []string
	compress bool
	version  string
}

func New() *Builder { return &Builder{version: "1.7"} }

// Compress makes AddStream Flate-encode stream data.
func (b *Builder) Compress(on bool) *Builder {
	b.compress = on
	return b
}

// Version sets the header version.
func (b *Builder) Version(v string) *Builder {
	b.version = v
	return b
}

// Reserve allocates an object number to be filled in later with Set.
func (b *Builder) Reserve() int {
	b.objects = append(b.objects, "null")
	return len(b.objects)
}

func (b *Builder) Set(num int, body string) { b.objects[num-1] = body }

// Add appends an object and returns its number.
func (b *Builder) Add(body string) int {
	b.objects = append(b.objects, body)
	return len(b.objects)
}

// AddStream appends a stream object. dict holds extra entries without the
// surrounding << >>.
func (b *Builder) AddStream(dict string, data []byte) int {
	if b.compress && !strings.Contains(dict, "/Filter") {
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		w.Write(data)
		w.Close()
		data = buf.Bytes()
		dict += " /Filter /FlateDecode"
	}
	return b.Add(fmt.Sprintf("<< %s /Length %d >>\nstream\n%s\nendstream", dict, len(data), data))
}

// Helvetica adds a standard 14 font with WinAnsi encoding.
func (b *Builder) Helvetica() int {
	return b.Add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
}

// Courier adds the fixed-pitch standard font.
func (b *Builder) Courier() int {
	return b.Add("<< /Type /Font /Subtype /Type1 /BaseFont /Courier >>")
}

// GrayImage adds an 8-bit DeviceGray image XObject.
func (b *Builder) GrayImage(img *image.Gray) int {
	r := img.Bounds()
	data := make([]byte, 0, r.Dx()*r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		data = append(data, img.Pix[img.PixOffset(r.Min.X, y):img.PixOffset(r.Max.X, y)]...)
	}
	return b.AddStream(fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceGray /BitsPerComponent 8", r.Dx(), r.Dy()), data)
}

// JPEGImage adds a DCT-encoded image XObject.
func (b *Builder) JPEGImage(img image.Image) int {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		panic(err)
	}
	r := img.Bounds()
	cs := "/DeviceRGB"
	if _, ok := img.(*image.Gray); ok {
		cs = "/DeviceGray"
	}
	return b.AddStream(fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace %s /BitsPerComponent 8 /Filter /DCTDecode", r.Dx(), r.Dy(), cs), buf.Bytes())
}

// Form adds a Form XObject.
func (b *Builder) Form(bbox [4]float64, matrix string, resources, content string) int {
	dict := fmt.Sprintf("/Type /XObject /Subtype /Form /BBox [%g %g %g %g]", bbox[0], bbox[1], bbox[2], bbox[3])
	if matrix != "" {
		dict += " /Matrix [" + matrix + "]"
	}
	if resources != "" {
		dict += " /Resources " + resources
	}
	return b.AddStream(dict, []byte(content))
}

// Page describes one page for Finish.
type Page struct {
	Content  string
	Fonts    map[string]int
	XObjects map[string]int
	MediaBox [4]float64 // zero means US Letter
	Rotate   int
}

// Resources renders the page resource dictionary.
func (p Page) Resources() string {
	var sb strings.Builder
	sb.WriteString("<<")
	writeMap := func(key string, m map[string]int) {
		if len(m) == 0 {
			return
		}
		names := make([]string, 0, len(m))
		for n := range m {
			names = append(names, n)
		}
		sort.Strings(names)
		sb.WriteString(" /" + key + " <<")
		for _, n := range names {
			fmt.Fprintf(&sb, " /%s %d 0 R", n, m[n])
		}
		sb.WriteString(" >>")
	}
	writeMap("Font", p.Fonts)
	writeMap("XObject", p.XObjects)
	sb.WriteString(" >>")
	return sb.String()
}

// Finish adds the page tree and catalog and returns the file bytes.
func (b *Builder) Finish(pages ...Page) []byte {
	pagesNum := b.Reserve()
	kids := make([]string, 0, len(pages))
	for _, p := range pages {
		content := b.AddStream("", []byte(p.Content))
		box := p.MediaBox
		if box == ([4]float64{}) {
			box = [4]float64{0, 0, 612, 792}
		}
		dict := fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [%g %g %g %g] /Resources %s /Contents %d 0 R",
			pagesNum, box[0], box[1], box[2], box[3], p.Resources(), content)
		if p.Rotate != 0 {
			dict += fmt.Sprintf(" /Rotate %d", p.Rotate)
		}
		kids = append(kids, fmt.Sprintf("%d 0 R", b.Add(dict+" >>")))
	}
	b.Set(pagesNum, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	root := b.Add(fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesNum))
	return b.Bytes(root, "")
}

// Bytes serializes every object. extraTrailer is appended inside the
// trailer dictionary.
func (b *Builder) Bytes(root int, extraTrailer string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xe2\xe3\xcf\xd3\n", b.version)
	offsets := make([]int, len(b.objects))
	for i, body := range b.objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(b.objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R %s>>\nstartxref\n%d\n%%%%EOF\n", len(b.objects)+1, root, extraTrailer, xref)
	return buf.Bytes()
}

// Escape quotes s for use in a literal string.
func Escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

// TextPDF returns a document with one Helvetica page per argument. Lines
// within an argument are separated by "\n" and set 14pt apart.
func TextPDF(pages ...string) []byte {
	b := New()
	font := b.Helvetica()
	var out []Page
	for _, text := range pages {
		var content strings.Builder
		content.WriteString("BT /F1 12 Tf 14 TL 72 720 Td\n")
		for i, line := range strings.Split(text, "\n") {
			if i > 0 {
				content.WriteString("T*\n")
			}
			fmt.Fprintf(&content, "(%s) Tj\n", Escape(line))
		}
		content.WriteString("ET\n")
		out = append(out, Page{Content: content.String(), Fonts: map[string]int{"F1": font}})
	}
	return b.Finish(out...)
}

// ImagePDF returns a single-page document that only paints img over the
// whole page, the shape of a scanned document.
func ImagePDF(img *image.Gray) []byte {
	b := New()
	im := b.GrayImage(img)
	return b.Finish(Page{
		Content:  "q 612 0 0 792 0 0 cm /Im1 Do Q",
		XObjects: map[string]int{"Im1": im},
	})
}
