// Package raw holds the untyped PDF object model and a linear object parser.
package raw

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrNotPDF is returned when the input has no %PDF- header.
var ErrNotPDF = errors.New("not a PDF: missing %PDF- header")

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
}

// Document is the set of indirect objects found in a file plus the merged
// trailer.
type Document struct {
	Objects map[ObjectRef]Object
	// Offsets records where each object definition starts, so a later
	// revision can be told from an earlier one.
	Offsets map[ObjectRef]int64
	// Trailer merges every trailer and cross-reference stream dictionary;
	// entries from later revisions win.
	Trailer *Dict
	Version string // e.g. "1.7"
}

// Lookup returns the object with the given number, preferring generation
// gen and falling back to any generation.
func (d *Document) Lookup(ref ObjectRef) (Object, bool) {
	if o, ok := d.Objects[ref]; ok {
		return o, true
	}
	for r, o := range d.Objects {
		if r.Num == ref.Num {
			return o, true
		}
	}
	return nil, false
}

// Parser converts bytes into a raw.Document.
type Parser interface {
	Parse(ctx context.Context, r io.ReaderAt) (*Document, error)
}
