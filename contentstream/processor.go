package contentstream

import (
	"context"

	"github.com/wudi/pdftext/ir/raw"
)

// Handler executes one operator.
type Handler func(operands []raw.Object) error

// Processor dispatches operations to the handlers registered for their
// operators. Operators without a handler are ignored.
type Processor struct {
	handlers map[string]Handler
}

func NewProcessor() *Processor { return &Processor{handlers: make(map[string]Handler)} }

func (p *Processor) RegisterHandler(op string, h Handler) { p.handlers[op] = h }

// Process runs ops in order and stops at the first handler error.
func (p *Processor) Process(ctx context.Context, ops []Operation) error {
	for i, op := range ops {
		if i&0xff == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		h, ok := p.handlers[op.Operator]
		if !ok {
			continue
		}
		if err := h(op.Operands); err != nil {
			return err
		}
	}
	return nil
}
