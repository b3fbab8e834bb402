package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v, err := Init("")
	require.NoError(t, err)
	c, err := NewFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, ":8510", c.Listen)
	assert.Equal(t, uint64(64*1000*1000), c.MaxUploadSize)
	assert.Equal(t, 64, c.MaxConnections)
	assert.Equal(t, 15*time.Second, c.ShutdownTimeout)
	assert.Equal(t, 2.0, c.Extract.XTolerance)
	assert.Equal(t, 4.0, c.Extract.YTolerance)
	assert.Equal(t, 5.0, c.Extract.XDensity)
	assert.Equal(t, 10.0, c.Extract.YDensity)
	assert.True(t, c.Extract.Layout)
	assert.Equal(t, "ocrmypdf", c.OCREngine)
	assert.Equal(t, []string{"eng"}, c.OCRLanguages)
	assert.Equal(t, 10*time.Minute, c.OCRTimeout)
	assert.True(t, c.OCRmyPDFSkipText)
	assert.Equal(t, 300, c.TesseractDPI)
	assert.Equal(t, uint64(128*1000*1000), c.CacheMaxSize)
	assert.Equal(t, 16, c.CacheShards)
	assert.Equal(t, "info", c.LogLevel)
}

func TestFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdftext.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  listen: ":9000"
  max_upload_size: 10MiB
ocr:
  engine: tesseract
  languages: [eng, deu]
log:
  format: json
`), 0o600))
	t.Setenv("PDFTEXT_EXTRACT_X_DENSITY", "7.5")

	v, err := Init(path)
	require.NoError(t, err)
	c, err := NewFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, ":9000", c.Listen)
	assert.Equal(t, uint64(10<<20), c.MaxUploadSize)
	assert.Equal(t, "tesseract", c.OCREngine)
	assert.Equal(t, []string{"eng", "deu"}, c.OCRLanguages)
	assert.Equal(t, "json", c.LogFormat)
	assert.Equal(t, 7.5, c.Extract.XDensity)
}

func TestMissingFile(t *testing.T) {
	_, err := Init(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestValidateReportsEveryKey(t *testing.T) {
	v, err := Init("")
	require.NoError(t, err)
	v.Set("server.max_upload_size", "lots")
	v.Set("extract.y_density", 0)
	v.Set("ocr.engine", "magic")
	v.Set("cache.shards", 0)
	_, err = NewFromViper(v)
	require.Error(t, err)
	for _, key := range []string{"server.max_upload_size", "y_density", "ocr.engine", "cache.shards"} {
		assert.Contains(t, err.Error(), key)
	}
	assert.NotContains(t, err.Error(), "ocr.languages")
}
