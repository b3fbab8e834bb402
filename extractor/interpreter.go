package extractor

import (
	"context"

	"github.com/wudi/pdftext/contentstream"
	"github.com/wudi/pdftext/coords"
	"github.com/wudi/pdftext/fonts"
	"github.com/wudi/pdftext/ir/raw"
	"github.com/wudi/pdftext/observability"
)

type textState struct {
	font      *fonts.Font
	size      float64
	charSpace float64
	wordSpace float64
	scaling   float64 // percent
	leading   float64 // stored negated, so T* moves by +leading
	rise      float64
	render    contentstream.TextRenderMode
	matrix    coords.Matrix
	lineX     float64
	lineY     float64
}

type graphicsState struct {
	ctm  coords.Matrix
	text textState
}

func newGraphicsState(ctm coords.Matrix) graphicsState {
	return graphicsState{
		ctm:  ctm,
		text: textState{scaling: 100, matrix: coords.Identity()},
	}
}

// interpreter runs one content stream. Form XObjects get a nested
// interpreter with a fresh state.
type interpreter struct {
	e         *Extractor
	ctx       context.Context
	out       *PageContent
	pageTop   float64
	gs        graphicsState
	stack     []graphicsState
	resources *raw.Dict
	depth     int
	forms     map[*raw.Stream]bool
}

func (in *interpreter) run(data []byte, resources *raw.Dict, depth int) error {
	ops, err := in.e.parser().Parse(in.ctx, data)
	if err != nil {
		if ctxErr := in.ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		in.e.logger.Debug("content stream truncated", observability.Error("error", err))
	}
	in.resources = resources
	in.depth = depth
	p := contentstream.NewProcessor()
	in.register(p)
	return p.Process(in.ctx, ops)
}

func (in *interpreter) register(p *contentstream.Processor) {
	p.RegisterHandler("q", in.save)
	p.RegisterHandler("Q", in.restore)
	p.RegisterHandler("cm", in.concat)
	p.RegisterHandler("BT", in.beginText)
	p.RegisterHandler("Tc", in.setFloat(func(ts *textState, v float64) { ts.charSpace = v }))
	p.RegisterHandler("Tw", in.setFloat(func(ts *textState, v float64) { ts.wordSpace = v }))
	p.RegisterHandler("Tz", in.setFloat(func(ts *textState, v float64) { ts.scaling = v }))
	p.RegisterHandler("TL", in.setFloat(func(ts *textState, v float64) { ts.leading = -v }))
	p.RegisterHandler("Ts", in.setFloat(func(ts *textState, v float64) { ts.rise = v }))
	p.RegisterHandler("Tr", in.setFloat(func(ts *textState, v float64) { ts.render = contentstream.TextRenderMode(v) }))
	p.RegisterHandler("Tf", in.setFont)
	p.RegisterHandler("Td", in.moveText)
	p.RegisterHandler("TD", in.moveTextSetLeading)
	p.RegisterHandler("Tm", in.setTextMatrix)
	p.RegisterHandler("T*", in.nextLine)
	p.RegisterHandler("Tj", in.showText)
	p.RegisterHandler("TJ", in.showTextArray)
	p.RegisterHandler("'", in.nextLineShowText)
	p.RegisterHandler(`"`, in.nextLineShowTextSpaced)
	p.RegisterHandler("Do", in.paintXObject)
	p.RegisterHandler("BI", in.inlineImage)
}

func numbers(operands []raw.Object, n int) ([]float64, bool) {
	if len(operands) < n {
		return nil, false
	}
	out := make([]float64, n)
	for i, o := range operands[len(operands)-n:] {
		num, ok := o.(raw.Number)
		if !ok {
			return nil, false
		}
		out[i] = num.Float()
	}
	return out, true
}

func (in *interpreter) save([]raw.Object) error {
	in.stack = append(in.stack, in.gs)
	return nil
}

func (in *interpreter) restore([]raw.Object) error {
	if n := len(in.stack); n > 0 {
		in.gs = in.stack[n-1]
		in.stack = in.stack[:n-1]
	}
	return nil
}

func (in *interpreter) concat(operands []raw.Object) error {
	v, ok := numbers(operands, 6)
	if !ok {
		return nil
	}
	in.gs.ctm = coords.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}.Multiply(in.gs.ctm)
	return nil
}

func (in *interpreter) beginText([]raw.Object) error {
	in.gs.text.matrix = coords.Identity()
	in.gs.text.lineX, in.gs.text.lineY = 0, 0
	return nil
}

func (in *interpreter) setFloat(set func(*textState, float64)) contentstream.Handler {
	return func(operands []raw.Object) error {
		if v, ok := numbers(operands, 1); ok {
			set(&in.gs.text, v[0])
		}
		return nil
	}
}

func (in *interpreter) setFont(operands []raw.Object) error {
	if len(operands) < 2 {
		return nil
	}
	name, ok := operands[len(operands)-2].(raw.Name)
	size, ok2 := operands[len(operands)-1].(raw.Number)
	if !ok || !ok2 {
		return nil
	}
	fontRes := in.e.doc.Dict(in.e.doc.Get(in.resources, "Font"))
	var obj raw.Object
	if fontRes != nil {
		obj, _ = fontRes.Get(string(name))
	}
	in.gs.text.font = in.e.font(in.ctx, obj)
	in.gs.text.size = size.Float()
	return nil
}

func (in *interpreter) translateText(tx, ty float64) {
	ts := &in.gs.text
	ts.matrix = coords.Translate(tx, ty).Multiply(ts.matrix)
	ts.lineX, ts.lineY = 0, 0
}

func (in *interpreter) moveText(operands []raw.Object) error {
	if v, ok := numbers(operands, 2); ok {
		in.translateText(v[0], v[1])
	}
	return nil
}

func (in *interpreter) moveTextSetLeading(operands []raw.Object) error {
	if v, ok := numbers(operands, 2); ok {
		in.translateText(v[0], v[1])
		in.gs.text.leading = v[1]
	}
	return nil
}

func (in *interpreter) setTextMatrix(operands []raw.Object) error {
	if v, ok := numbers(operands, 6); ok {
		in.gs.text.matrix = coords.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}
		in.gs.text.lineX, in.gs.text.lineY = 0, 0
	}
	return nil
}

func (in *interpreter) nextLine([]raw.Object) error {
	in.translateText(0, in.gs.text.leading)
	return nil
}

func (in *interpreter) showText(operands []raw.Object) error {
	if len(operands) == 0 {
		return nil
	}
	in.render(operands[len(operands)-1:])
	return nil
}

func (in *interpreter) showTextArray(operands []raw.Object) error {
	if len(operands) == 0 {
		return nil
	}
	if arr, ok := operands[len(operands)-1].(*raw.Array); ok {
		in.render(arr.Items)
	}
	return nil
}

func (in *interpreter) nextLineShowText(operands []raw.Object) error {
	in.nextLine(nil)
	return in.showText(operands)
}

func (in *interpreter) nextLineShowTextSpaced(operands []raw.Object) error {
	if len(operands) < 3 {
		return nil
	}
	if v, ok := numbers(operands[:len(operands)-1], 2); ok {
		in.gs.text.wordSpace, in.gs.text.charSpace = v[0], v[1]
	}
	return in.nextLineShowText(operands[len(operands)-1:])
}

// render lays out a sequence of strings and kerning adjustments, advancing
// the text line position.
func (in *interpreter) render(seq []raw.Object) {
	ts := &in.gs.text
	if ts.font == nil {
		return
	}
	matrix := ts.matrix.Multiply(in.gs.ctm)
	scaling := ts.scaling * 0.01
	charSpace := ts.charSpace * scaling
	wordSpace := ts.wordSpace * scaling
	if ts.font.Composite() {
		wordSpace = 0
	}
	dxscale := 0.001 * ts.size * scaling
	x, y := ts.lineX, ts.lineY
	needCharSpace := false
	for _, obj := range seq {
		switch v := obj.(type) {
		case raw.Number:
			x -= v.Float() * dxscale
			needCharSpace = true
		case raw.String:
			for _, g := range ts.font.Decode(v.Bytes) {
				if needCharSpace {
					x += charSpace
				}
				x += in.renderChar(coords.Translate(x, y).Multiply(matrix), g, scaling)
				if g.WordSpace && wordSpace != 0 {
					x += wordSpace
				}
				needCharSpace = true
			}
		}
	}
	ts.lineX, ts.lineY = x, y
}

// renderChar records one glyph and returns its advance in text space.
func (in *interpreter) renderChar(m coords.Matrix, g fonts.Glyph, scaling float64) float64 {
	ts := &in.gs.text
	adv := g.Width * ts.size * scaling
	descent := ts.font.Descent() * ts.size
	x0, y0 := m.Apply(0, descent+ts.rise)
	x1, y1 := m.Apply(adv, descent+ts.rise+ts.size)
	box := coords.NewRect(x0, y0, x1, y1)
	in.out.Chars = append(in.out.Chars, Char{
		Text:       g.Text,
		X0:         box.X0,
		X1:         box.X1,
		Top:        in.pageTop - box.Y1,
		Bottom:     in.pageTop - box.Y0,
		Size:       box.Height(),
		FontName:   ts.font.Name,
		Upright:    m[0]*m[3]*scaling > 0 && m[1]*m[2] <= 0,
		RenderMode: ts.render,
	})
	return adv
}

func (in *interpreter) paintXObject(operands []raw.Object) error {
	if len(operands) == 0 {
		return nil
	}
	name, ok := operands[len(operands)-1].(raw.Name)
	if !ok {
		return nil
	}
	doc := in.e.doc
	xobjects := doc.Dict(doc.Get(in.resources, "XObject"))
	if xobjects == nil {
		return nil
	}
	obj, _ := xobjects.Get(string(name))
	st, ok := doc.Resolve(obj).(*raw.Stream)
	if !ok {
		return nil
	}
	switch doc.NameOf(st.Dict, "Subtype") {
	case "Image":
		in.addImage(string(name), st.Dict, st, nil)
	case "Form":
		return in.runForm(string(name), st)
	}
	return nil
}

// runForm interprets a Form XObject with a fresh text state, its own
// resources and its /Matrix applied on top of the current CTM.
func (in *interpreter) runForm(name string, st *raw.Stream) error {
	doc := in.e.doc
	if in.depth+1 > doc.Limits().MaxXObjectDepth || in.forms[st] {
		in.e.logger.Debug("form skipped", observability.String("name", name), observability.Int("depth", in.depth))
		return nil
	}
	data, _, err := doc.Stream(in.ctx, st)
	if err != nil {
		if ctxErr := in.ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		in.e.logger.Debug("form stream unreadable", observability.String("name", name), observability.Error("error", err))
		return nil
	}
	ctm := in.gs.ctm
	if m, ok := doc.Numbers(doc.Get(st.Dict, "Matrix")); ok && len(m) == 6 {
		ctm = coords.Matrix{m[0], m[1], m[2], m[3], m[4], m[5]}.Multiply(ctm)
	}
	resources := doc.Dict(doc.Get(st.Dict, "Resources"))
	if resources == nil {
		resources = in.resources
	}
	child := &interpreter{
		e:       in.e,
		ctx:     in.ctx,
		out:     in.out,
		pageTop: in.pageTop,
		gs:      newGraphicsState(ctm),
		forms:   in.forms,
	}
	in.forms[st] = true
	defer delete(in.forms, st)
	return child.run(data, resources, in.depth+1)
}
