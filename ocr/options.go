package ocr

import "strconv"

// Tesseract variable names set through Input.Metadata.
const (
	VarPageSegMode = "tessedit_pageseg_mode"
	VarWhitelist   = "tessedit_char_whitelist"
)

func withVariable(name, value string) InputOption {
	return func(in *Input) {
		if in.Metadata == nil {
			in.Metadata = make(map[string]string)
		}
		in.Metadata[name] = value
	}
}

// WithTesseractPSM sets the page segmentation mode. Values outside 0-13
// are ignored so a zero config value leaves Tesseract's default.
func WithTesseractPSM(mode int) InputOption {
	if mode <= 0 || mode > 13 {
		return func(*Input) {}
	}
	return withVariable(VarPageSegMode, strconv.Itoa(mode))
}

// WithTesseractWhitelist restricts recognition to chars. Empty means no
// restriction.
func WithTesseractWhitelist(chars string) InputOption {
	if chars == "" {
		return func(*Input) {}
	}
	return withVariable(VarWhitelist, chars)
}
