package document

import (
	"bytes"
	"context"
	"math"
	"sort"

	"github.com/wudi/pdftext/coords"
	"github.com/wudi/pdftext/ir/raw"
	"github.com/wudi/pdftext/observability"
)

// letter is the page size assumed when no MediaBox is present.
var letter = coords.Rect{X0: 0, Y0: 0, X1: 612, Y1: 792}

// Page is one leaf of the page tree with inherited attributes applied.
type Page struct {
	Index     int // 0-based position in the page tree
	Number    int // 1-based page number
	Dict      *raw.Dict
	Resources *raw.Dict
	MediaBox  coords.Rect
	CropBox   coords.Rect
	Rotate    int // 0, 90, 180 or 270

	doc *Document
}

// Width is the displayed width, after rotation.
func (p *Page) Width() float64 {
	if p.Rotate == 90 || p.Rotate == 270 {
		return p.MediaBox.Height()
	}
	return p.MediaBox.Width()
}

// Height is the displayed height, after rotation.
func (p *Page) Height() float64 {
	if p.Rotate == 90 || p.Rotate == 270 {
		return p.MediaBox.Width()
	}
	return p.MediaBox.Height()
}

// Document returns the document the page belongs to.
func (p *Page) Document() *Document { return p.doc }

// Contents returns the page's content streams concatenated. Streams that
// fail to decode are skipped; an error is returned only when none decode.
func (p *Page) Contents(ctx context.Context) ([]byte, error) {
	var parts []raw.Object
	switch c := p.doc.Resolve(p.Dict.KV["Contents"]).(type) {
	case *raw.Stream:
		parts = []raw.Object{c}
	case *raw.Array:
		parts = c.Items
	}
	var buf bytes.Buffer
	var firstErr error
	decoded := 0
	for _, part := range parts {
		data, _, err := p.doc.Stream(ctx, part)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if firstErr == nil {
				firstErr = err
			}
			p.doc.opts.Logger.Debug("skipping content stream",
				observability.Int("page", p.Number),
				observability.Error("error", err),
			)
			continue
		}
		decoded++
		buf.Write(data)
		buf.WriteByte('\n')
	}
	if decoded == 0 && firstErr != nil {
		return nil, firstErr
	}
	return buf.Bytes(), nil
}

type inherited struct {
	resources raw.Object
	mediaBox  raw.Object
	cropBox   raw.Object
	rotate    raw.Object
}

func (in inherited) from(node *raw.Dict) inherited {
	if v, ok := node.Get("Resources"); ok {
		in.resources = v
	}
	if v, ok := node.Get("MediaBox"); ok {
		in.mediaBox = v
	}
	if v, ok := node.Get("CropBox"); ok {
		in.cropBox = v
	}
	if v, ok := node.Get("Rotate"); ok {
		in.rotate = v
	}
	return in
}

func (d *Document) collectPages() []*Page {
	var leaves []leaf
	seen := make(map[*raw.Dict]bool)
	if root := d.Dict(d.catalog.KV["Pages"]); root != nil {
		d.walk(root, inherited{}, seen, &leaves)
	}
	if len(leaves) == 0 {
		leaves = d.orphanPages()
	}
	pages := make([]*Page, 0, len(leaves))
	for i, l := range leaves {
		pages = append(pages, d.newPage(i, l.dict, l.attrs))
	}
	return pages
}

type leaf struct {
	dict  *raw.Dict
	attrs inherited
}

// walk visits the page tree depth first. seen guards against cycles and
// nodes shared between parents.
func (d *Document) walk(node *raw.Dict, in inherited, seen map[*raw.Dict]bool, out *[]leaf) {
	if seen[node] {
		return
	}
	seen[node] = true
	in = in.from(node)
	kids := d.Array(node.KV["Kids"])
	typ := d.NameOf(node, "Type")
	if typ == "Page" || (kids == nil && typ != "Pages") {
		*out = append(*out, leaf{dict: node, attrs: in})
		return
	}
	if kids == nil {
		return
	}
	for _, kid := range kids.Items {
		if kd := d.Dict(kid); kd != nil {
			d.walk(kd, in, seen, out)
		}
	}
}

// orphanPages finds /Type /Page objects in file order when the page tree is
// missing or empty.
func (d *Document) orphanPages() []leaf {
	type found struct {
		off  int64
		dict *raw.Dict
	}
	var all []found
	for ref, obj := range d.raw.Objects {
		if dict, ok := obj.(*raw.Dict); ok && d.NameOf(dict, "Type") == "Page" {
			all = append(all, found{off: d.raw.Offsets[ref], dict: dict})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].off < all[j].off })
	out := make([]leaf, 0, len(all))
	for _, f := range all {
		out = append(out, leaf{dict: f.dict, attrs: inherited{}.from(f.dict)})
	}
	return out
}

func (d *Document) newPage(index int, dict *raw.Dict, in inherited) *Page {
	p := &Page{Index: index, Number: index + 1, Dict: dict, doc: d}
	p.Resources = d.Dict(in.resources)
	if p.Resources == nil {
		p.Resources = raw.NewDict()
	}
	p.MediaBox = letter
	if r, ok := d.rect(in.mediaBox); ok {
		p.MediaBox = r
	}
	p.CropBox = p.MediaBox
	if r, ok := d.rect(in.cropBox); ok {
		p.CropBox = r
	}
	if v, ok := d.Number(in.rotate); ok {
		p.Rotate = normalizeRotation(int(v))
	}
	return p
}

func (d *Document) rect(obj raw.Object) (coords.Rect, bool) {
	v, ok := d.Numbers(obj)
	if !ok || len(v) != 4 {
		return coords.Rect{}, false
	}
	r := coords.NewRect(v[0], v[1], v[2], v[3])
	if r.Empty() {
		return coords.Rect{}, false
	}
	return r, true
}

// normalizeRotation maps any multiple of 90 into [0, 360). Other values are
// rounded down to a multiple of 90.
func normalizeRotation(deg int) int {
	r := int(math.Floor(float64(deg)/90)) * 90
	r %= 360
	if r < 0 {
		r += 360
	}
	return r
}
