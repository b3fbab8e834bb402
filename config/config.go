// Package config loads service settings from an optional YAML file and
// PDFTEXT_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/wudi/pdftext/layout"
)

// EnvPrefix is prepended to environment variable names: server.listen is
// read from PDFTEXT_SERVER_LISTEN.
const EnvPrefix = "PDFTEXT"

type Config struct {
	Listen          string
	MaxUploadSize   uint64
	MaxConnections  int
	ShutdownTimeout time.Duration

	Extract layout.Options
	Workers int

	OCREngine        string
	OCRLanguages     []string
	OCRMaxConcurrent int
	OCRTimeout       time.Duration
	OCRmyPDFBinary   string
	OCRmyPDFArgs     []string
	OCRmyPDFSkipText bool
	TesseractDPI     int
	TesseractPSM     int

	// TesseractWhitelist limits recognised chars; empty allows all.
	TesseractWhitelist string

	TesseractMinConfidence float64

	CacheMaxSize uint64
	CacheShards  int

	LogLevel     string
	LogFormat    string
	OTLPEndpoint string
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	d := layout.DashboardOptions()
	v.SetDefault("server.listen", ":8510")
	v.SetDefault("server.max_upload_size", "64MB")
	v.SetDefault("server.max_connections", 64)
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("extract.x_tolerance", d.XTolerance)
	v.SetDefault("extract.y_tolerance", d.YTolerance)
	v.SetDefault("extract.x_density", d.XDensity)
	v.SetDefault("extract.y_density", d.YDensity)
	v.SetDefault("extract.workers", 4)
	v.SetDefault("ocr.engine", "ocrmypdf")
	v.SetDefault("ocr.languages", []string{"eng"})
	v.SetDefault("ocr.max_concurrent", 2)
	v.SetDefault("ocr.timeout", "10m")
	v.SetDefault("ocr.ocrmypdf.binary", "ocrmypdf")
	v.SetDefault("ocr.ocrmypdf.args", []string{})
	v.SetDefault("ocr.ocrmypdf.skip_text", true)
	v.SetDefault("ocr.tesseract.dpi", 300)
	v.SetDefault("ocr.tesseract.psm", 0)
	v.SetDefault("ocr.tesseract.whitelist", "")
	v.SetDefault("ocr.tesseract.min_confidence", 0.0)
	v.SetDefault("cache.max_size", "128MB")
	v.SetDefault("cache.shards", 16)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("tracing.otlp_endpoint", "")
}

// Init returns a viper instance with defaults, environment overrides and,
// when path is not empty, the YAML file at path.
func Init(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path == "" {
		return v, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "config file %s", path)
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	return v, nil
}

// NewFromViper builds and validates a Config. Every invalid key is named
// in the returned error.
func NewFromViper(v *viper.Viper) (*Config, error) {
	var bad []string
	size := func(key string) uint64 {
		n, err := humanize.ParseBytes(v.GetString(key))
		if err != nil {
			bad = append(bad, fmt.Sprintf("%s: %v", key, err))
		}
		return n
	}
	duration := func(key string) time.Duration {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			bad = append(bad, fmt.Sprintf("%s: %v", key, err))
		}
		return d
	}
	c := &Config{
		Listen:          v.GetString("server.listen"),
		MaxUploadSize:   size("server.max_upload_size"),
		MaxConnections:  v.GetInt("server.max_connections"),
		ShutdownTimeout: duration("server.shutdown_timeout"),

		Extract: layout.Options{
			XTolerance: v.GetFloat64("extract.x_tolerance"),
			YTolerance: v.GetFloat64("extract.y_tolerance"),
			XDensity:   v.GetFloat64("extract.x_density"),
			YDensity:   v.GetFloat64("extract.y_density"),
			Layout:     true,
		},
		Workers: v.GetInt("extract.workers"),

		OCREngine:        strings.ToLower(v.GetString("ocr.engine")),
		OCRLanguages:     v.GetStringSlice("ocr.languages"),
		OCRMaxConcurrent: v.GetInt("ocr.max_concurrent"),
		OCRTimeout:       duration("ocr.timeout"),
		OCRmyPDFBinary:   v.GetString("ocr.ocrmypdf.binary"),
		OCRmyPDFArgs:     v.GetStringSlice("ocr.ocrmypdf.args"),
		OCRmyPDFSkipText: v.GetBool("ocr.ocrmypdf.skip_text"),
		TesseractDPI:     v.GetInt("ocr.tesseract.dpi"),
		TesseractPSM:     v.GetInt("ocr.tesseract.psm"),

		TesseractWhitelist: v.GetString("ocr.tesseract.whitelist"),

		TesseractMinConfidence: v.GetFloat64("ocr.tesseract.min_confidence"),

		CacheMaxSize: size("cache.max_size"),
		CacheShards:  v.GetInt("cache.shards"),

		LogLevel:     v.GetString("log.level"),
		LogFormat:    strings.ToLower(v.GetString("log.format")),
		OTLPEndpoint: v.GetString("tracing.otlp_endpoint"),
	}
	if err := c.validate(bad); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error { return c.validate(nil) }

func (c *Config) validate(bad []string) error {
	if c.Listen == "" {
		bad = append(bad, "server.listen must be set")
	}
	if c.MaxUploadSize == 0 {
		bad = append(bad, "server.max_upload_size must be > 0")
	}
	if c.MaxConnections < 1 {
		bad = append(bad, "server.max_connections must be >= 1")
	}
	if err := c.Extract.Validate(); err != nil {
		bad = append(bad, "extract: "+err.Error())
	}
	if c.Workers < 1 {
		bad = append(bad, "extract.workers must be >= 1")
	}
	switch c.OCREngine {
	case "ocrmypdf", "tesseract", "none":
	default:
		bad = append(bad, fmt.Sprintf("ocr.engine %q must be ocrmypdf, tesseract or none", c.OCREngine))
	}
	if len(c.OCRLanguages) == 0 {
		bad = append(bad, "ocr.languages must not be empty")
	}
	if c.OCRMaxConcurrent < 1 {
		bad = append(bad, "ocr.max_concurrent must be >= 1")
	}
	if c.OCRTimeout < 0 {
		bad = append(bad, "ocr.timeout must not be negative")
	}
	if c.OCREngine == "ocrmypdf" && c.OCRmyPDFBinary == "" {
		bad = append(bad, "ocr.ocrmypdf.binary must be set")
	}
	if c.TesseractPSM < 0 || c.TesseractPSM > 13 {
		bad = append(bad, "ocr.tesseract.psm must be between 0 and 13")
	}
	if c.TesseractMinConfidence < 0 || c.TesseractMinConfidence > 1 {
		bad = append(bad, "ocr.tesseract.min_confidence must be between 0 and 1")
	}
	if c.CacheShards < 1 {
		bad = append(bad, "cache.shards must be >= 1")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		bad = append(bad, fmt.Sprintf("log.format %q must be text or json", c.LogFormat))
	}
	if len(bad) > 0 {
		return errors.Errorf("invalid configuration: %s", strings.Join(bad, "; "))
	}
	return nil
}
