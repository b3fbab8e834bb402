package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/wudi/pdftext/config"
	"github.com/wudi/pdftext/document"
	"github.com/wudi/pdftext/extractor"
	"github.com/wudi/pdftext/internal/app"
	"github.com/wudi/pdftext/logging"
	"github.com/wudi/pdftext/observability"
	"github.com/wudi/pdftext/pipeline"
)

type options struct {
	paths     []string
	json      bool
	metadata  bool
	imagesDir string
	settings  pipeline.Settings
	engine    string
	languages string
	logLevel  string
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "extract: %v\n", err)
		os.Exit(2)
	}
	if err := run(context.Background(), opts); err != nil {
		fmt.Fprintf(os.Stderr, "extract: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: extract [flags] <pdf>...\n")
		flag.PrintDefaults()
	}
	d := pipeline.DefaultSettings()
	flag.BoolVar(&opts.json, "json", false, "Print results as JSON")
	noLayout := flag.Bool("no-layout", false, "Join words with single spaces instead of keeping the page layout")
	flag.Float64Var(&opts.settings.XTolerance, "x-tolerance", d.XTolerance, "Widest gap between letters of one word, in points")
	flag.Float64Var(&opts.settings.YTolerance, "y-tolerance", d.YTolerance, "Widest vertical offset inside one line, in points")
	flag.Float64Var(&opts.settings.XDensity, "x-density", d.XDensity, "Points per output column")
	flag.Float64Var(&opts.settings.YDensity, "y-density", d.YDensity, "Points per output row")
	flag.StringVar(&opts.engine, "engine", "ocrmypdf", "OCR engine: ocrmypdf, tesseract or none")
	flag.StringVar(&opts.languages, "languages", "eng", "OCR languages, joined with +")
	flag.BoolVar(&opts.metadata, "metadata", false, "Print document metadata before the text")
	flag.StringVar(&opts.imagesDir, "images", "", "Write the images of every page as PNG into this directory")
	flag.StringVar(&opts.logLevel, "log-level", "warn", "Log level")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		return options{}, errors.New("missing pdf path")
	}
	opts.paths = flag.Args()
	opts.settings.Layout = !*noLayout
	if err := opts.settings.Validate(); err != nil {
		return options{}, err
	}
	return opts, nil
}

func run(ctx context.Context, opts options) error {
	v, err := config.Init("")
	if err != nil {
		return err
	}
	v.Set("ocr.engine", opts.engine)
	v.Set("ocr.languages", strings.Split(opts.languages, "+"))
	v.Set("log.level", opts.logLevel)
	cfg, err := config.NewFromViper(v)
	if err != nil {
		return err
	}
	logging.SetupLogging(cfg.LogLevel, cfg.LogFormat)
	engine, err := app.Engine(cfg)
	if err != nil {
		return err
	}
	p := app.Pipeline(cfg, engine, nil, observability.NopTracer())

	files := make([]pipeline.File, 0, len(opts.paths))
	for _, path := range opts.paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrap(err, "open pdf")
		}
		files = append(files, pipeline.File{Name: path, Data: data})
	}

	failed := 0
	for _, fr := range p.ProcessMany(ctx, files, opts.settings) {
		if fr.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "extract: %v\n", fr.Err)
			continue
		}
		if opts.metadata || opts.imagesDir != "" {
			if err := inspect(ctx, fr.Name, opts); err != nil {
				return err
			}
		}
		if err := emit(fr.Result, opts.json, len(files) > 1); err != nil {
			return err
		}
	}
	if failed > 0 {
		return errors.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func emit(res *pipeline.Result, asJSON, header bool) error {
	if asJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return errors.Wrap(err, "marshal result")
		}
		fmt.Printf("%s\n", data)
		return nil
	}
	if header {
		fmt.Printf("== %s ==\n", res.Name)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "%s: %s\n", res.Name, w)
	}
	for _, pg := range res.Pages {
		fmt.Printf("--- Page %d ---\n%s\n", pg.Number, pg.Text)
	}
	return nil
}

type imageSummary struct {
	Page   int    `json:"page"`
	Name   string `json:"resource"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Path   string `json:"path,omitempty"`
	Error  string `json:"error,omitempty"`
}

// inspect prints metadata and writes page images for one file.
func inspect(ctx context.Context, path string, opts options) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open pdf")
	}
	defer f.Close()
	doc, err := document.Load(ctx, f, document.Options{})
	if err != nil {
		return errors.Wrap(err, "parse pdf")
	}
	if opts.metadata {
		if err := emitSection("metadata", doc.Metadata()); err != nil {
			return err
		}
	}
	if opts.imagesDir == "" {
		return nil
	}
	summaries, err := writeImages(ctx, filepath.Join(opts.imagesDir, safeName(filepath.Base(path))), doc)
	if err != nil {
		return err
	}
	return emitSection("images", summaries)
}

func writeImages(ctx context.Context, dir string, doc *document.Document) ([]imageSummary, error) {
	ex := extractor.New(doc)
	var summaries []imageSummary
	for _, page := range doc.Pages() {
		pc, err := ex.Page(ctx, page)
		if err != nil {
			return nil, errors.Wrapf(err, "page %d", page.Number)
		}
		for idx, img := range pc.Images {
			s := imageSummary{Page: page.Number, Name: img.Name, Width: img.Width, Height: img.Height}
			data, err := img.PNG(ctx)
			if err != nil {
				s.Error = err.Error()
				summaries = append(summaries, s)
				continue
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrap(err, "create image dir")
			}
			s.Path = filepath.Join(dir, fmt.Sprintf("page-%03d-%d-%s.png", page.Number, idx+1, safeName(img.Name)))
			if err := os.WriteFile(s.Path, data, 0o644); err != nil {
				return nil, errors.Wrapf(err, "write image %q", s.Path)
			}
			summaries = append(summaries, s)
		}
	}
	return summaries, nil
}

func emitSection(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "marshal %s", name)
	}
	fmt.Printf("== %s ==\n%s\n\n", name, data)
	return nil
}

func safeName(name string) string {
	if name == "" {
		return "unnamed"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}
