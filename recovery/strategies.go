package recovery

import (
	"fmt"
	"sync"

	"github.com/wudi/pdftext/observability"
)

// StrictStrategy fails on the first error.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy {
	return &StrictStrategy{}
}

func (s *StrictStrategy) OnError(ctx Context, err error, location Location) Action {
	return ActionFail
}

// LenientStrategy repairs what the scanner knows how to repair (unterminated
// strings, truncated streams, unbalanced containers) and records every error
// it let through. Uploaded documents are frequently damaged, so this is the
// strategy the loader uses by default.
type LenientStrategy struct {
	mu     sync.Mutex
	logger observability.Logger
	errs   []error
}

func NewLenientStrategy(logger observability.Logger) *LenientStrategy {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &LenientStrategy{logger: logger}
}

func (s *LenientStrategy) OnError(ctx Context, err error, location Location) Action {
	s.mu.Lock()
	s.errs = append(s.errs, fmt.Errorf("[%s] offset %d: %w", location.Component, location.ByteOffset, err))
	s.mu.Unlock()
	s.logger.Debug("recovered malformed input",
		observability.String("component", location.Component),
		observability.Int64("offset", location.ByteOffset),
		observability.Int("object", location.ObjectNum),
		observability.Error("error", err),
	)
	return ActionFix
}

// Errors returns the errors recovered so far.
func (s *LenientStrategy) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errs...)
}
