// Package pipeline runs the extraction flow for uploaded documents: load,
// decide whether the document is scanned, OCR when it is, and render the
// layout text of every page.
package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/wudi/pdftext/cache"
	"github.com/wudi/pdftext/document"
	"github.com/wudi/pdftext/extractor"
	"github.com/wudi/pdftext/layout"
	"github.com/wudi/pdftext/logging"
	"github.com/wudi/pdftext/observability"
	"github.com/wudi/pdftext/ocr"
	"github.com/wudi/pdftext/security"
)

var log = logging.Log.WithFields(logrus.Fields{"package": "pipeline"})

// Warnings attached to results.
const (
	WarnNoText      = "No text could be extracted from this file."
	WarnOCRDisabled = "The document looks scanned but OCR is disabled."
)

// ErrNotPDF is returned for inputs without a %PDF- header.
var ErrNotPDF = document.ErrNotPDF

// Settings are the user-adjustable extraction parameters.
type Settings struct {
	layout.Options
}

// DefaultSettings are the initial values of the dashboard form.
func DefaultSettings() Settings {
	return Settings{Options: layout.DashboardOptions()}
}

// PageText is the text of one page. Number is 1-based.
type PageText struct {
	Number int    `json:"page"`
	Text   string `json:"text"`
}

// Result is the outcome of processing one document.
type Result struct {
	Name      string        `json:"name"`
	Scanned   bool          `json:"scanned"`
	Engine    string        `json:"engine,omitempty"`
	PageCount int           `json:"page_count"`
	Pages     []PageText    `json:"pages"`
	Warnings  []string      `json:"warnings,omitempty"`
	Duration  time.Duration `json:"duration"`
	Cached    bool          `json:"cached,omitempty"`
}

// Config wires a Pipeline. Zero values select defaults; a nil Engine
// disables OCR.
type Config struct {
	Engine        ocr.Provider
	Languages     []string
	DPI           int
	InputOptions  []ocr.InputOption // extra options for image engines
	MinConfidence float64           // image engine words below it are dropped
	Workers       int
	MaxConcurrent int // concurrent OCR jobs
	Cache         *cache.Cache
	Limits        security.Limits
	Tracer        observability.Tracer
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	cfg    Config
	ocrSem *semaphore.Weighted
	logger observability.Logger
}

func New(cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NopTracer()
	}
	return &Pipeline{
		cfg:    cfg,
		ocrSem: semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger: observability.NewLogrus(log),
	}
}

// EngineName is the configured OCR engine, or "none".
func (p *Pipeline) EngineName() string {
	if p.cfg.Engine == nil {
		return "none"
	}
	return p.cfg.Engine.Name()
}

// Process extracts the text of one document. Errors are wrapped with name.
func (p *Pipeline) Process(ctx context.Context, name string, pdf []byte, s Settings) (res *Result, err error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	ctx, span := p.cfg.Tracer.StartSpan(ctx, observability.SpanProcess)
	span.SetTag("file.name", name)
	span.SetTag("file.size", len(pdf))
	defer func() {
		span.SetError(err)
		span.Finish()
	}()

	key := p.cacheKey(pdf, s)
	if cached, ok := p.fromCache(key); ok {
		cached.Name = name
		span.SetTag("cache.hit", true)
		return cached, nil
	}

	start := time.Now()
	res, err = p.process(ctx, pdf, s)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	res.Name = name
	res.Duration = time.Since(start)
	p.store(key, res)
	log.WithFields(logrus.Fields{
		"file":     name,
		"size":     humanize.Bytes(uint64(len(pdf))),
		"pages":    res.PageCount,
		"scanned":  res.Scanned,
		"engine":   res.Engine,
		"duration": res.Duration,
	}).Info("document processed")
	return res, nil
}

func (p *Pipeline) process(ctx context.Context, pdf []byte, s Settings) (*Result, error) {
	doc, err := p.load(ctx, pdf)
	if err != nil {
		return nil, err
	}
	contents, errs := p.interpret(ctx, doc)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := &Result{PageCount: doc.NumPages(), Scanned: detectScanned(ctx, p.cfg.Tracer, contents, errs)}

	if res.Scanned {
		switch eng := p.cfg.Engine.(type) {
		case nil:
			res.Warnings = append(res.Warnings, WarnOCRDisabled)
		case ocr.DocumentEngine:
			res.Engine = eng.Name()
			out, err := p.ocrDocument(ctx, eng, pdf)
			if err != nil {
				return nil, err
			}
			if doc, err = p.load(ctx, out); err != nil {
				return nil, errors.Wrap(err, "load OCR output")
			}
			res.PageCount = doc.NumPages()
			contents, errs = p.interpret(ctx, doc)
		case ocr.Engine:
			res.Engine = eng.Name()
			if err := p.ocrImages(ctx, eng, contents); err != nil {
				return nil, err
			}
		default:
			return nil, errors.Errorf("OCR engine %s has no usable interface", eng.Name())
		}
	}

	res.Pages = p.render(ctx, contents, errs, s)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(res.Pages) == 0 {
		res.Warnings = append(res.Warnings, WarnNoText)
	}
	return res, nil
}

func (p *Pipeline) load(ctx context.Context, pdf []byte) (*document.Document, error) {
	ctx, span := p.cfg.Tracer.StartSpan(ctx, observability.SpanLoad)
	defer span.Finish()
	doc, err := document.Load(ctx, bytes.NewReader(pdf), document.Options{
		Limits: p.cfg.Limits,
		Logger: p.logger,
	})
	if err != nil {
		span.SetError(err)
		return nil, errors.Wrap(err, "load pdf")
	}
	span.SetTag("pdf.pages", doc.NumPages())
	span.SetTag("pdf.version", doc.Version())
	return doc, nil
}

// interpret runs the content interpreter over every page. A failed page
// leaves a nil entry and its error.
func (p *Pipeline) interpret(ctx context.Context, doc *document.Document) ([]*extractor.PageContent, []error) {
	ex := extractor.New(doc)
	pages := doc.Pages()
	contents := make([]*extractor.PageContent, len(pages))
	errs := make([]error, len(pages))
	for i, page := range pages {
		if ctx.Err() != nil {
			errs[i] = ctx.Err()
			continue
		}
		pc, err := ex.Page(ctx, page)
		if err != nil {
			log.WithError(err).WithField("page", page.Number).Warn("page extraction failed")
			errs[i] = err
			continue
		}
		contents[i] = pc
	}
	return contents, errs
}

func (p *Pipeline) render(ctx context.Context, contents []*extractor.PageContent, errs []error, s Settings) []PageText {
	ctx, span := p.cfg.Tracer.StartSpan(ctx, observability.SpanExtract)
	defer span.Finish()
	pages := []PageText{}
	for i, pc := range contents {
		if pc == nil || errs[i] != nil {
			continue
		}
		_, ps := p.cfg.Tracer.StartSpan(ctx, observability.SpanExtractPage)
		ps.SetTag("page", pc.Number)
		text := layout.ExtractText(pc.Chars, pc.Width, pc.Height, s.Options)
		ps.SetTag("chars", len(pc.Chars))
		ps.Finish()
		if text != "" {
			pages = append(pages, PageText{Number: pc.Number, Text: text})
		}
	}
	span.SetTag("pages", len(pages))
	return pages
}

// File is one named input of ProcessMany.
type File struct {
	Name string
	Data []byte
}

// FileResult pairs a file's result with its error. Exactly one is set.
type FileResult struct {
	Name   string
	Result *Result
	Err    error
}

// ProcessMany processes files concurrently, at most Workers at a time. The
// output keeps the input order and a failed file does not stop the others.
func (p *Pipeline) ProcessMany(ctx context.Context, files []File, s Settings) []FileResult {
	out := make([]FileResult, len(files))
	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)
	for i, f := range files {
		out[i].Name = f.Name
		g.Go(func() error {
			out[i].Result, out[i].Err = p.Process(ctx, f.Name, f.Data, s)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (p *Pipeline) cacheKey(pdf []byte, s Settings) uint64 {
	h := xxhash.New()
	_, _ = h.Write(pdf)
	var b [8]byte
	for _, v := range []float64{s.XTolerance, s.YTolerance, s.XDensity, s.YDensity} {
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
		_, _ = h.Write(b[:])
	}
	if s.Layout {
		_, _ = h.Write([]byte{1})
	} else {
		_, _ = h.Write([]byte{0})
	}
	_, _ = h.WriteString(p.EngineName())
	return h.Sum64()
}

func (p *Pipeline) fromCache(key uint64) (*Result, bool) {
	if p.cfg.Cache == nil {
		return nil, false
	}
	data, ok := p.cfg.Cache.Get(key)
	if !ok {
		return nil, false
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		p.cfg.Cache.Remove(key)
		return nil, false
	}
	res.Cached = true
	return &res, true
}

func (p *Pipeline) store(key uint64, res *Result) {
	if p.cfg.Cache == nil {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	if p.cfg.Cache.Add(key, data) {
		log.WithField("entries", p.cfg.Cache.Len()).Debug("cache evicted entries")
	}
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
