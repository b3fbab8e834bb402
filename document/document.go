// Package document loads a PDF into resolved pages ready for content
// interpretation.
package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/wudi/pdftext/filters"
	"github.com/wudi/pdftext/ir/raw"
	"github.com/wudi/pdftext/observability"
	"github.com/wudi/pdftext/recovery"
	"github.com/wudi/pdftext/security"
)

var (
	// ErrEncrypted is returned for documents with an /Encrypt dictionary.
	ErrEncrypted = errors.New("encrypted PDFs are not supported")
	// ErrNotPDF is returned when the input has no %PDF- header.
	ErrNotPDF = raw.ErrNotPDF
	// ErrNoCatalog is returned when no document catalog can be found.
	ErrNoCatalog = errors.New("pdf catalog not found")
)

// maxResolveDepth bounds chains of references to references.
const maxResolveDepth = 32

type Options struct {
	Limits   security.Limits
	Recovery recovery.Strategy
	Logger   observability.Logger
}

func (o Options) withDefaults() Options {
	if o.Limits == (security.Limits{}) {
		o.Limits = security.DefaultLimits()
	}
	if o.Logger == nil {
		o.Logger = observability.NopLogger{}
	}
	if o.Recovery == nil {
		o.Recovery = recovery.NewLenientStrategy(o.Logger)
	}
	return o
}

// Document is a parsed PDF. It is safe for concurrent use once loaded.
type Document struct {
	raw      *raw.Document
	opts     Options
	pipeline *filters.Pipeline
	catalog  *raw.Dict
	pages    []*Page

	mu      sync.Mutex
	decoded map[*raw.Stream]decodeResult
}

type decodeResult struct {
	data []byte
	err  error
}

// Load parses r, inflates object streams, locates the catalog and walks the
// page tree.
func Load(ctx context.Context, r io.ReaderAt, opts Options) (*Document, error) {
	opts = opts.withDefaults()
	if opts.Limits.MaxParseTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Limits.MaxParseTime)
		defer cancel()
	}
	parser := raw.NewParser(raw.ParserConfig{Scanner: opts.Limits.ScannerConfig(opts.Recovery)})
	rd, err := parser.Parse(ctx, r)
	if err != nil {
		return nil, err
	}
	if _, ok := rd.Trailer.Get("Encrypt"); ok {
		return nil, ErrEncrypted
	}
	d := &Document{
		raw:      rd,
		opts:     opts,
		pipeline: filters.Default(opts.Limits.FilterLimits()),
		decoded:  make(map[*raw.Stream]decodeResult),
	}
	d.inflateObjectStreams(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.catalog = d.findCatalog()
	if d.catalog == nil {
		return nil, ErrNoCatalog
	}
	d.pages = d.collectPages()
	return d, nil
}

func (d *Document) Raw() *raw.Document      { return d.raw }
func (d *Document) Version() string         { return d.raw.Version }
func (d *Document) Catalog() *raw.Dict      { return d.catalog }
func (d *Document) Pages() []*Page          { return d.pages }
func (d *Document) NumPages() int           { return len(d.pages) }
func (d *Document) Limits() security.Limits { return d.opts.Limits }
func (d *Document) Logger() observability.Logger {
	return d.opts.Logger
}

// Resolve follows indirect references. Dangling references resolve to
// null.
func (d *Document) Resolve(obj raw.Object) raw.Object {
	for i := 0; i < maxResolveDepth; i++ {
		ref, ok := obj.(raw.Ref)
		if !ok {
			return obj
		}
		target, ok := d.raw.Lookup(raw.ObjectRef(ref))
		if !ok {
			return raw.Null{}
		}
		obj = target
	}
	return raw.Null{}
}

// Stream returns the decoded data and dictionary of a stream object.
// Decoding happens once per stream; later calls reuse the result.
func (d *Document) Stream(ctx context.Context, obj raw.Object) ([]byte, *raw.Dict, error) {
	st, ok := d.Resolve(obj).(*raw.Stream)
	if !ok {
		return nil, nil, fmt.Errorf("expected stream, got %s", typeOf(d.Resolve(obj)))
	}
	d.mu.Lock()
	res, done := d.decoded[st]
	d.mu.Unlock()
	if done {
		return res.data, st.Dict, res.err
	}
	names, params := filters.ExtractFilters(st.Dict, d.Resolve)
	data, err := d.pipeline.Decode(ctx, st.Data, names, params)
	if ctx.Err() == nil {
		d.mu.Lock()
		d.decoded[st] = decodeResult{data: data, err: err}
		d.mu.Unlock()
	}
	return data, st.Dict, err
}

// DecodeInline decodes inline image data with the filters named in its
// (already expanded) dictionary.
func (d *Document) DecodeInline(ctx context.Context, dict *raw.Dict, data []byte) ([]byte, error) {
	names, params := filters.ExtractFilters(dict, d.Resolve)
	return d.pipeline.Decode(ctx, data, names, params)
}

func (d *Document) findCatalog() *raw.Dict {
	if root, ok := d.raw.Trailer.Get("Root"); ok {
		if cat := d.Dict(root); cat != nil {
			return cat
		}
	}
	// Damaged trailers are common; fall back to the newest catalog object.
	var best *raw.Dict
	bestOff := int64(-1)
	for ref, obj := range d.raw.Objects {
		dict, ok := obj.(*raw.Dict)
		if !ok || d.NameOf(dict, "Type") != "Catalog" {
			continue
		}
		if off := d.raw.Offsets[ref]; off > bestOff {
			best, bestOff = dict, off
		}
	}
	return best
}

func typeOf(o raw.Object) string {
	if o == nil {
		return "nothing"
	}
	return o.Type()
}
