// Package ocr defines the contracts OCR engines implement. Image engines
// (Engine, BatchEngine) turn page images into positioned words; document
// engines (DocumentEngine) rewrite a whole PDF with a text layer. Engines
// register themselves by name so the service can pick one from
// configuration.
package ocr
