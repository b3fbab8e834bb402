// Package app builds the OCR engine, cache and pipeline from configuration.
// Both binaries share it.
package app

import (
	"github.com/pkg/errors"

	"github.com/wudi/pdftext/cache"
	"github.com/wudi/pdftext/config"
	"github.com/wudi/pdftext/observability"
	"github.com/wudi/pdftext/ocr"
	_ "github.com/wudi/pdftext/ocr/ocrmypdf"
	_ "github.com/wudi/pdftext/ocr/tesseract"
	"github.com/wudi/pdftext/pipeline"
)

// Engine returns the configured OCR engine, or nil for "none".
func Engine(cfg *config.Config) (ocr.Provider, error) {
	if cfg.OCREngine == "" || cfg.OCREngine == "none" {
		return nil, nil
	}
	return ocr.Lookup(cfg.OCREngine, ocr.Config{
		Languages: cfg.OCRLanguages,
		DPI:       cfg.TesseractDPI,
		Timeout:   cfg.OCRTimeout,
		Binary:    cfg.OCRmyPDFBinary,
		Args:      cfg.OCRmyPDFArgs,
		SkipText:  cfg.OCRmyPDFSkipText,
	})
}

// Cache returns the result cache, or nil when cache.max_size is zero.
func Cache(cfg *config.Config) (*cache.Cache, error) {
	if cfg.CacheMaxSize == 0 {
		return nil, nil
	}
	c, err := cache.New(cfg.CacheShards, cfg.CacheMaxSize)
	return c, errors.Wrap(err, "create cache")
}

// Pipeline wires the engine and cache into a pipeline.
func Pipeline(cfg *config.Config, engine ocr.Provider, c *cache.Cache, tracer observability.Tracer) *pipeline.Pipeline {
	return pipeline.New(pipeline.Config{
		Engine:        engine,
		Languages:     cfg.OCRLanguages,
		DPI:           cfg.TesseractDPI,
		InputOptions: []ocr.InputOption{
			ocr.WithTesseractPSM(cfg.TesseractPSM),
			ocr.WithTesseractWhitelist(cfg.TesseractWhitelist),
		},
		MinConfidence: cfg.TesseractMinConfidence,
		Workers:       cfg.Workers,
		MaxConcurrent: cfg.OCRMaxConcurrent,
		Cache:         c,
		Tracer:        tracer,
	})
}
