package contentstream

import "github.com/wudi/pdftext/ir/raw"

// TextRenderMode matches PDF text rendering modes set via Tr operator.
type TextRenderMode int

const (
	TextFill TextRenderMode = iota
	TextStroke
	TextFillStroke
	TextInvisible
	TextFillClip
	TextStrokeClip
	TextFillStrokeClip
	TextClip
)

// Operation is one operator together with the operands that preceded it.
type Operation struct {
	Operator string
	Operands []raw.Object
	Pos      int64
}

// InlineImage returns the dictionary and data of a BI operation.
func (op Operation) InlineImage() (*raw.Dict, []byte, bool) {
	if op.Operator != "BI" || len(op.Operands) != 2 {
		return nil, nil, false
	}
	d, ok := op.Operands[0].(*raw.Dict)
	if !ok {
		return nil, nil, false
	}
	s, ok := op.Operands[1].(raw.String)
	if !ok {
		return nil, nil, false
	}
	return d, s.Bytes, true
}
