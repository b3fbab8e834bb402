package ocrmypdf

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/pdftext/internal/pdftest"
	"github.com/wudi/pdftext/ocr"
)

func script(t *testing.T, body string) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(t.TempDir(), "fake-ocrmypdf")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestCommand(t *testing.T) {
	e := &Engine{SkipText: true, Languages: []string{"eng", "deu"}, Args: []string{"--rotate-pages"}}
	assert.Equal(t,
		[]string{"--skip-text", "-l", "eng+deu", "--rotate-pages", "in.pdf", "out.pdf"},
		e.Command("in.pdf", "out.pdf"))
	assert.Equal(t, []string{"a", "b"}, (&Engine{}).Command("a", "b"))
}

func TestOCRDocumentCopiesOutput(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	bin := script(t, `echo "$@" > `+argsFile+`
eval in=\${$(($# - 1))}
eval out=\${$#}
cp "$in" "$out"`)
	e := New(ocr.Config{Binary: bin, Languages: []string{"eng"}, SkipText: true})
	out, err := e.OCRDocument(context.Background(), []byte("%PDF-1.4 test"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 test", string(out))

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(args), "--skip-text -l eng "))
	assert.Contains(t, string(args), "in.pdf")
}

func TestOCRDocumentRemovesTempFiles(t *testing.T) {
	tmp := t.TempDir()
	bin := script(t, `eval out=\${$#}; echo "%PDF" > "$out"`)
	e := New(ocr.Config{Binary: bin})
	e.TempDir = tmp
	_, err := e.OCRDocument(context.Background(), []byte("x"))
	require.NoError(t, err)
	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOCRDocumentExitError(t *testing.T) {
	bin := script(t, `echo "starting" >&2
echo "page already has text! - aborting" >&2
exit 6`)
	_, err := New(ocr.Config{Binary: bin}).OCRDocument(context.Background(), []byte("x"))
	require.Error(t, err)
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 6, exitErr.Code)
	assert.Contains(t, exitErr.Stderr, "page already has text")
	assert.Contains(t, err.Error(), "code 6")
	assert.Contains(t, err.Error(), "page already has text")
}

func TestOCRDocumentTimeout(t *testing.T) {
	bin := script(t, "exec sleep 5")
	e := New(ocr.Config{Binary: bin, Timeout: 100 * time.Millisecond})
	start := time.Now()
	_, err := e.OCRDocument(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestOCRDocumentMissingBinary(t *testing.T) {
	e := New(ocr.Config{Binary: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, e.Available())
	_, err := e.OCRDocument(context.Background(), []byte("x"))
	assert.Error(t, err)
}

func TestTailBuffer(t *testing.T) {
	b := &tailBuffer{max: 10}
	b.Write([]byte("first line\nsecond\n"))
	assert.Equal(t, "second\n", b.String())

	short := &tailBuffer{max: 100}
	short.Write([]byte("only"))
	assert.Equal(t, "only", short.String())
}

func TestRegistry(t *testing.T) {
	p, err := ocr.Lookup(Name, ocr.Config{Languages: []string{"eng"}})
	require.NoError(t, err)
	_, ok := p.(ocr.DocumentEngine)
	assert.True(t, ok)
	assert.Equal(t, Name, p.Name())
}

func TestOCRDocumentRealBinary(t *testing.T) {
	e := New(ocr.Config{Languages: []string{"eng"}, SkipText: true, Timeout: time.Minute})
	if e.Available() != nil {
		t.Skip("ocrmypdf not installed")
	}
	out, err := e.OCRDocument(context.Background(), pdftest.TextPDF("Hello"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "%PDF"))
}
