package document

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/pdftext/internal/pdftest"
	"github.com/wudi/pdftext/ir/raw"
)

func load(t *testing.T, data []byte) *Document {
	t.Helper()
	doc, err := Load(context.Background(), bytes.NewReader(data), Options{})
	require.NoError(t, err)
	return doc
}

func TestLoadTextDocument(t *testing.T) {
	doc := load(t, pdftest.TextPDF("first page", "second page"))
	require.Equal(t, 2, doc.NumPages())
	p := doc.Pages()[1]
	assert.Equal(t, 1, p.Index)
	assert.Equal(t, 2, p.Number)
	assert.Equal(t, 612.0, p.Width())
	assert.Equal(t, 792.0, p.Height())

	data, err := p.Contents(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(data), "(second page) Tj")

	fonts := doc.Dict(p.Resources.KV["Font"])
	require.NotNil(t, fonts)
	assert.Equal(t, "Helvetica", doc.NameOf(doc.Dict(fonts.KV["F1"]), "BaseFont"))
}

func TestLoadCompressedStreams(t *testing.T) {
	b := pdftest.New().Compress(true)
	font := b.Helvetica()
	data := b.Finish(pdftest.Page{Content: "BT /F1 9 Tf (zipped) Tj ET", Fonts: map[string]int{"F1": font}})
	doc := load(t, data)
	content, err := doc.Pages()[0].Contents(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(content), "(zipped) Tj")
}

func TestInheritedAttributesAndRotation(t *testing.T) {
	b := pdftest.New()
	font := b.Helvetica()
	content := b.AddStream("", []byte("BT ET"))
	pages := b.Reserve()
	mid := b.Reserve()
	leaf := b.Add(fmt.Sprintf("<< /Type /Page /Parent %d 0 R /Contents %d 0 R >>", mid, content))
	b.Set(mid, fmt.Sprintf("<< /Type /Pages /Parent %d 0 R /Kids [%d 0 R] /Count 1 /Rotate -90 /CropBox [10 10 200 100] >>", pages, leaf))
	b.Set(pages, fmt.Sprintf("<< /Type /Pages /Kids [%d 0 R] /Count 1 /MediaBox [0 0 300 500] /Resources << /Font << /F1 %d 0 R >> >> >>", mid, font))
	root := b.Add(fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pages))

	doc := load(t, b.Bytes(root, ""))
	require.Equal(t, 1, doc.NumPages())
	p := doc.Pages()[0]
	assert.Equal(t, 270, p.Rotate)
	assert.Equal(t, 300.0, p.MediaBox.Width())
	assert.Equal(t, 190.0, p.CropBox.Width())
	assert.Equal(t, 500.0, p.Width())
	assert.Equal(t, 300.0, p.Height())
	assert.NotNil(t, doc.Dict(p.Resources.KV["Font"]))
}

func TestPageTreeCycleIsBroken(t *testing.T) {
	b := pdftest.New()
	content := b.AddStream("", []byte(""))
	pages := b.Reserve()
	leaf := b.Add(fmt.Sprintf("<< /Type /Page /Parent %d 0 R /Contents %d 0 R >>", pages, content))
	b.Set(pages, fmt.Sprintf("<< /Type /Pages /Kids [%d 0 R %d 0 R %d 0 R] /Count 3 >>", leaf, pages, leaf))
	root := b.Add(fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pages))

	doc := load(t, b.Bytes(root, ""))
	assert.Equal(t, 1, doc.NumPages())
	assert.Equal(t, letter, doc.Pages()[0].MediaBox)
}

func TestCatalogFallbackWithoutRoot(t *testing.T) {
	data := pdftest.TextPDF("x")
	data = bytes.Replace(data, []byte("/Root"), []byte("/Rxxx"), 1)
	doc := load(t, data)
	assert.Equal(t, 1, doc.NumPages())
}

func TestMissingCatalog(t *testing.T) {
	_, err := Load(context.Background(), bytes.NewReader([]byte("%PDF-1.4\n1 0 obj 5 endobj\n")), Options{})
	assert.ErrorIs(t, err, ErrNoCatalog)
}

func TestNotPDF(t *testing.T) {
	_, err := Load(context.Background(), bytes.NewReader([]byte("hello")), Options{})
	assert.ErrorIs(t, err, ErrNotPDF)
}

func TestEncryptedRejected(t *testing.T) {
	b := pdftest.New()
	enc := b.Add("<< /Filter /Standard /V 2 /R 3 >>")
	data := b.Finish(pdftest.Page{Content: ""})
	data = bytes.Replace(data, []byte("trailer\n<<"), []byte(fmt.Sprintf("trailer\n<< /Encrypt %d 0 R", enc)), 1)
	_, err := Load(context.Background(), bytes.NewReader(data), Options{})
	assert.ErrorIs(t, err, ErrEncrypted)
}

func TestObjectStreamsAreInflated(t *testing.T) {
	b := pdftest.New()
	content := b.AddStream("", []byte("BT ET"))
	// Objects 2..4 live in an object stream.
	pagesNum, pageNum, catNum := 3, 4, 5
	entries := []string{
		fmt.Sprintf("<< /Type /Pages /Kids [%d 0 R] /Count 1 >>", pageNum),
		fmt.Sprintf("<< /Type /Page /Parent %d 0 R /Contents %d 0 R /MediaBox [0 0 100 200] >>", pagesNum, content),
		fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesNum),
	}
	var header, body bytes.Buffer
	for i, e := range entries {
		fmt.Fprintf(&header, "%d %d ", pagesNum+i, body.Len())
		body.WriteString(e + "\n")
	}
	stm := b.AddStream(fmt.Sprintf("/Type /ObjStm /N 3 /First %d", header.Len()), append(header.Bytes(), body.Bytes()...))
	require.Equal(t, 2, stm)

	doc := load(t, b.Bytes(catNum, ""))
	require.Equal(t, 1, doc.NumPages())
	assert.Equal(t, 100.0, doc.Pages()[0].Width())
}

func TestStreamDecodeIsMemoised(t *testing.T) {
	doc := load(t, pdftest.TextPDF("memo"))
	contents := doc.Pages()[0].Dict.KV["Contents"]
	a, _, err := doc.Stream(context.Background(), contents)
	require.NoError(t, err)
	b, _, err := doc.Stream(context.Background(), contents)
	require.NoError(t, err)
	require.NotEmpty(t, a)
	assert.Same(t, &a[0], &b[0])

	_, _, err = doc.Stream(context.Background(), raw.Int(3))
	assert.Error(t, err)
}

func TestResolveDanglingAndLoops(t *testing.T) {
	doc := load(t, pdftest.TextPDF("x"))
	assert.Equal(t, raw.Null{}, doc.Resolve(raw.NewRef(999, 0)))

	doc.Raw().Objects[raw.ObjectRef{Num: 900}] = raw.NewRef(901, 0)
	doc.Raw().Objects[raw.ObjectRef{Num: 901}] = raw.NewRef(900, 0)
	assert.Equal(t, raw.Null{}, doc.Resolve(raw.NewRef(900, 0)))
}

func TestMetadata(t *testing.T) {
	b := pdftest.New()
	info := b.Add("<< /Title <FEFF00480069> /Author (Ann \\223Quote\\224) /Producer (pdftest) >>")
	data := b.Finish(pdftest.Page{Content: ""})
	data = bytes.Replace(data, []byte("trailer\n<<"), []byte(fmt.Sprintf("trailer\n<< /Info %d 0 R", info)), 1)

	m := load(t, data).Metadata()
	assert.Equal(t, "Hi", m.Title)
	assert.Equal(t, "Ann ﬁQuoteﬂ", m.Author)
	assert.Equal(t, "pdftest", m.Producer)
	assert.Equal(t, "1.7", m.Version)
	assert.Equal(t, 1, m.PageCount)
}

func TestNormalizeRotation(t *testing.T) {
	for in, want := range map[int]int{0: 0, 90: 90, -90: 270, 450: 90, 180: 180, 45: 0, -270: 90} {
		assert.Equal(t, want, normalizeRotation(in), "rotate %d", in)
	}
}
