package raw

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/wudi/pdftext/recovery"
	"github.com/wudi/pdftext/scanner"
)

// headerSearchWindow is how far into the file the %PDF- marker may appear.
const headerSearchWindow = 1024

// ParserConfig controls raw parsing behavior.
type ParserConfig struct {
	Scanner scanner.Config
}

// NewParser constructs a raw.Parser that reads every "n g obj" definition
// in file order. Cross-reference tables are not consulted; a later
// definition of the same object replaces an earlier one, which is how
// incremental updates are applied.
func NewParser(cfg ParserConfig) Parser {
	return &parserImpl{cfg: cfg}
}

type parserImpl struct {
	cfg ParserConfig
}

type locatable interface {
	SetRecoveryLocation(recovery.Location)
}

func (p *parserImpl) Parse(ctx context.Context, r io.ReaderAt) (*Document, error) {
	version, err := readVersion(r)
	if err != nil {
		return nil, err
	}
	s := scanner.New(r, p.cfg.Scanner)
	tr := &tokenReader{s: s}
	doc := &Document{
		Objects: make(map[ObjectRef]Object),
		Offsets: make(map[ObjectRef]int64),
		Trailer: NewDict(),
		Version: version,
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := tr.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			if err := p.parseTrailer(tr, doc); err != nil {
				return nil, err
			}
			continue
		}
		if tok.Type != scanner.TokenNumber || !tok.IsInt {
			continue
		}

		genTok, err := tr.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if genTok.Type != scanner.TokenNumber || !genTok.IsInt {
			tr.unread(genTok)
			continue
		}
		kwTok, err := tr.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if kwTok.Type != scanner.TokenKeyword || kwTok.Str != "obj" {
			tr.unread(kwTok)
			tr.unread(genTok)
			continue
		}

		ref := ObjectRef{Num: int(tok.Int), Gen: int(genTok.Int)}
		if rc, ok := s.(locatable); ok {
			rc.SetRecoveryLocation(recovery.Location{ObjectNum: ref.Num, ObjectGen: ref.Gen})
		}
		obj, err := p.parseIndirect(tr)
		if err != nil {
			if p.skip(err, ref, tok.Pos) {
				continue
			}
			return nil, fmt.Errorf("parse object %d %d: %w", ref.Num, ref.Gen, err)
		}
		if st, ok := obj.(*Stream); ok && isXRefStream(st.Dict) {
			mergeTrailer(doc.Trailer, st.Dict)
		}
		doc.Objects[ref] = obj
		doc.Offsets[ref] = tok.Pos
	}
	if rc, ok := s.(locatable); ok {
		rc.SetRecoveryLocation(recovery.Location{})
	}
	return doc, nil
}

// parseIndirect reads the body of an indirect object after "obj", including
// an optional stream payload and the closing "endobj".
func (p *parserImpl) parseIndirect(tr *tokenReader) (Object, error) {
	obj, err := parseObject(tr)
	if err != nil {
		return nil, err
	}
	if dict, ok := obj.(*Dict); ok {
		// The length must be known before the scanner reaches "stream".
		if n, ok := dict.Get("Length"); ok {
			if num, ok := n.(Number); ok && num.IsInt && num.I >= 0 {
				tr.s.SetNextStreamLength(num.I)
			}
		}
		next, err := tr.next()
		if err == nil {
			if next.Type == scanner.TokenStream {
				obj = NewStream(dict, next.Bytes)
			} else {
				tr.unread(next)
			}
		}
		tr.s.SetNextStreamLength(-1)
	}
	if t, err := tr.next(); err == nil {
		if t.Type != scanner.TokenKeyword || t.Str != "endobj" {
			tr.unread(t)
		}
	}
	return obj, nil
}

func (p *parserImpl) parseTrailer(tr *tokenReader, doc *Document) error {
	tok, err := tr.next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if tok.Type != scanner.TokenDict {
		tr.unread(tok)
		return nil
	}
	obj, err := parseDict(tr)
	if err != nil {
		if p.skip(err, ObjectRef{}, tok.Pos) {
			return nil
		}
		return fmt.Errorf("parse trailer: %w", err)
	}
	mergeTrailer(doc.Trailer, obj.(*Dict))
	return nil
}

// skip reports whether the recovery strategy lets the parser drop a
// malformed object and carry on.
func (p *parserImpl) skip(err error, ref ObjectRef, offset int64) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	strat := p.cfg.Scanner.Recovery
	if strat == nil {
		return false
	}
	act := strat.OnError(nil, err, recovery.Location{
		ByteOffset: offset,
		ObjectNum:  ref.Num,
		ObjectGen:  ref.Gen,
		Component:  "parser",
	})
	return act == recovery.ActionSkip || act == recovery.ActionFix || act == recovery.ActionWarn
}

func isXRefStream(d *Dict) bool {
	t, ok := d.Get("Type")
	return ok && t == Name("XRef")
}

var trailerKeys = []string{"Root", "Info", "Encrypt", "ID", "Size"}

// mergeTrailer copies the document-level keys of src into dst. Sections
// appear in file order, so later revisions overwrite earlier ones.
func mergeTrailer(dst, src *Dict) {
	for _, k := range trailerKeys {
		if v, ok := src.Get(k); ok {
			dst.Set(k, v)
		}
	}
}

func readVersion(r io.ReaderAt) (string, error) {
	buf := make([]byte, headerSearchWindow)
	n, err := r.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	buf = buf[:n]
	idx := bytes.Index(buf, []byte("%PDF-"))
	if idx < 0 {
		return "", ErrNotPDF
	}
	v := buf[idx+5:]
	end := 0
	for end < len(v) && (v[end] == '.' || (v[end] >= '0' && v[end] <= '9')) {
		end++
	}
	if end == 0 {
		return "", ErrNotPDF
	}
	return string(v[:end]), nil
}

// ParseObject parses a single direct object, such as one entry of an
// object stream.
func ParseObject(data []byte, cfg scanner.Config) (Object, error) {
	tr := &tokenReader{s: scanner.New(bytes.NewReader(data), cfg)}
	return parseObject(tr)
}

func parseObject(tr *tokenReader) (Object, error) {
	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	return objectFromToken(tr, tok)
}

func objectFromToken(tr *tokenReader, tok scanner.Token) (Object, error) {
	switch tok.Type {
	case scanner.TokenName:
		return Name(tok.Str), nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return Int(tok.Int), nil
		}
		return Real(tok.Float), nil
	case scanner.TokenBoolean:
		return Bool(tok.Bool), nil
	case scanner.TokenNull:
		return Null{}, nil
	case scanner.TokenString:
		return String{Bytes: tok.Bytes}, nil
	case scanner.TokenArray:
		return parseArray(tr)
	case scanner.TokenDict:
		return parseDict(tr)
	case scanner.TokenRef:
		return NewRef(int(tok.Int), int(tok.Gen)), nil
	}
	return nil, fmt.Errorf("unexpected %s token %q at offset %d", tok.Type, tok.Str, tok.Pos)
}

func parseArray(tr *tokenReader) (Object, error) {
	arr := &Array{}
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword {
			if tok.Str == "]" {
				return arr, nil
			}
			if isObjectBoundary(tok.Str) {
				tr.unread(tok)
				return nil, fmt.Errorf("unterminated array at offset %d", tok.Pos)
			}
		}
		item, err := objectFromToken(tr, tok)
		if err != nil {
			return nil, err
		}
		arr.Items = append(arr.Items, item)
	}
}

func parseDict(tr *tokenReader) (Object, error) {
	d := NewDict()
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword {
			if tok.Str == ">>" {
				return d, nil
			}
			if isObjectBoundary(tok.Str) {
				tr.unread(tok)
				return nil, fmt.Errorf("unterminated dictionary at offset %d", tok.Pos)
			}
		}
		if tok.Type != scanner.TokenName {
			return nil, fmt.Errorf("expected name in dict, got %s at offset %d", tok.Type, tok.Pos)
		}
		val, err := parseObject(tr)
		if err != nil {
			return nil, err
		}
		// A null value is equivalent to an absent key.
		if _, isNull := val.(Null); isNull {
			continue
		}
		d.Set(tok.Str, val)
	}
}

func isObjectBoundary(kw string) bool {
	return kw == "endobj" || kw == "obj" || kw == "stream" || kw == "endstream" || kw == "trailer" || kw == "xref"
}

// ObjectReader builds objects from a token stream for parsers, such as the
// content stream parser, that interleave objects with their own keywords.
type ObjectReader struct {
	tr *tokenReader
}

func NewObjectReader(s scanner.Scanner) *ObjectReader {
	return &ObjectReader{tr: &tokenReader{s: s}}
}

func (r *ObjectReader) Next() (scanner.Token, error) { return r.tr.next() }

// Object completes the object that starts with tok, reading the rest of an
// array or dictionary from the stream.
func (r *ObjectReader) Object(tok scanner.Token) (Object, error) {
	return objectFromToken(r.tr, tok)
}

type tokenReader struct {
	s   scanner.Scanner
	buf []scanner.Token
}

func (r *tokenReader) next() (scanner.Token, error) {
	if l := len(r.buf); l > 0 {
		t := r.buf[l-1]
		r.buf = r.buf[:l-1]
		return t, nil
	}
	return r.s.Next()
}

func (r *tokenReader) unread(tok scanner.Token) {
	r.buf = append(r.buf, tok)
}
