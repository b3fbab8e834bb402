// Package ocrmypdf adds a text layer to PDF files by running the external
// ocrmypdf program.
package ocrmypdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/wudi/pdftext/ocr"
)

// Name is the registry name of the engine.
const Name = "ocrmypdf"

const stderrTail = 2048

func init() {
	ocr.Register(Name, func(cfg ocr.Config) (ocr.Provider, error) {
		return New(cfg), nil
	})
}

// Engine implements ocr.DocumentEngine.
type Engine struct {
	Binary    string
	Args      []string // extra arguments placed before the file names
	Languages []string
	Timeout   time.Duration
	// SkipText leaves pages that already carry text untouched. Without it
	// ocrmypdf refuses documents where any page has text.
	SkipText bool
	TempDir  string
}

// New returns an engine configured from cfg. An empty binary means
// "ocrmypdf" on PATH.
func New(cfg ocr.Config) *Engine {
	bin := cfg.Binary
	if bin == "" {
		bin = Name
	}
	return &Engine{
		Binary:    bin,
		Args:      append([]string(nil), cfg.Args...),
		Languages: append([]string(nil), cfg.Languages...),
		Timeout:   cfg.Timeout,
		SkipText:  cfg.SkipText,
	}
}

func (e *Engine) Name() string { return Name }

// ExitError reports a non-zero exit of the ocrmypdf process.
type ExitError struct {
	Code   int
	Stderr string // last lines of the process's standard error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("ocrmypdf exited with code %d", e.Code)
	if reason, ok := exitReasons[e.Code]; ok {
		msg += " (" + reason + ")"
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

var exitReasons = map[int]string{
	1: "bad arguments",
	2: "input file is not a valid PDF",
	3: "missing dependency",
	4: "output file is invalid",
	5: "file access error",
	6: "page already has text",
	7: "child process error",
	8: "encrypted PDF",
	9: "invalid configuration",
	10: "PDF/A conversion failed",
	15: "other error",
}

// Command returns the argument list for converting in to out.
func (e *Engine) Command(in, out string) []string {
	var args []string
	if e.SkipText {
		args = append(args, "--skip-text")
	}
	if len(e.Languages) > 0 {
		args = append(args, "-l", strings.Join(e.Languages, "+"))
	}
	args = append(args, e.Args...)
	return append(args, in, out)
}

// Available reports whether the binary can be found.
func (e *Engine) Available() error {
	_, err := exec.LookPath(e.Binary)
	return errors.Wrapf(err, "find %s", e.Binary)
}

// OCRDocument writes pdf to a temporary directory, runs ocrmypdf on it and
// returns the output file. The temporary files are always removed.
func (e *Engine) OCRDocument(ctx context.Context, pdf []byte) ([]byte, error) {
	dir, err := os.MkdirTemp(e.TempDir, "pdftext-ocr-")
	if err != nil {
		return nil, errors.Wrap(err, "create temp dir")
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.pdf")
	out := filepath.Join(dir, "out.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, errors.Wrap(err, "write input")
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	stderr := &tailBuffer{max: stderrTail}
	cmd := exec.CommandContext(ctx, e.Binary, e.Command(in, out)...)
	cmd.Stderr = stderr
	cmd.WaitDelay = time.Second
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrap(ctxErr, "ocrmypdf")
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &ExitError{Code: exitErr.ExitCode(), Stderr: strings.TrimSpace(stderr.String())}
		}
		return nil, errors.Wrapf(err, "run %s", e.Binary)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return nil, errors.Wrap(err, "read ocrmypdf output")
	}
	return data, nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf bytes.Buffer
	cut bool
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if extra := t.buf.Len() - t.max; extra > 0 {
		t.buf.Next(extra)
		t.cut = true
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	s := t.buf.String()
	if t.cut {
		// Drop the partial first line.
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
	}
	return s
}
