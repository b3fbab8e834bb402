package ocr

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrUnknownEngine is returned by Lookup for names nothing registered.
var ErrUnknownEngine = errors.New("unknown OCR engine")

// Provider is an Engine or a DocumentEngine.
type Provider interface {
	Name() string
}

// Config carries the settings a Factory may use. Engines ignore the
// fields that do not apply to them.
type Config struct {
	Languages []string
	DPI       int
	Timeout   time.Duration
	Binary    string
	Args      []string
	SkipText  bool
}

// Factory builds a provider from configuration.
type Factory func(cfg Config) (Provider, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a factory available under name. Engines call it from an
// init function; registering a name twice replaces the earlier factory.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Lookup builds the provider registered under name.
func Lookup(name string, cfg Config) (Provider, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownEngine, "%q (registered: %v)", name, Names())
	}
	p, err := f(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "create OCR engine %s", name)
	}
	return p, nil
}

// Names lists the registered engines in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RecognizeImages runs engine over inputs. A BatchEngine receives all
// inputs in one call; other engines are called once per input with the
// context checked in between.
func RecognizeImages(ctx context.Context, engine Engine, inputs []Input) ([]Result, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	if b, ok := engine.(BatchEngine); ok {
		return b.RecognizeBatch(ctx, inputs)
	}
	results := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := engine.Recognize(ctx, in)
		if err != nil {
			return nil, errors.Wrapf(err, "recognize %s", in.ID)
		}
		results = append(results, res)
	}
	return results, nil
}
