// Package scanner splits PDF bytes into lexical tokens. It is shared by the
// object parser and the content stream parser.
package scanner

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/wudi/pdftext/recovery"
)

type TokenType int

const (
	TokenDict        TokenType = iota // '<<'
	TokenArray                        // '['
	TokenName                         // '/Name'
	TokenString                       // literal or hex string
	TokenNumber                       // integer or real
	TokenBoolean                      // true/false
	TokenNull                         // null
	TokenRef                          // indirect ref '5 0 R'
	TokenStream                       // payload following the 'stream' keyword
	TokenInlineImage                  // payload between ID and EI (content streams only)
	TokenKeyword                      // obj, endobj, '>>', ']', operators, ...
)

func (t TokenType) String() string {
	switch t {
	case TokenDict:
		return "dict"
	case TokenArray:
		return "array"
	case TokenName:
		return "name"
	case TokenString:
		return "string"
	case TokenNumber:
		return "number"
	case TokenBoolean:
		return "boolean"
	case TokenNull:
		return "null"
	case TokenRef:
		return "ref"
	case TokenStream:
		return "stream"
	case TokenInlineImage:
		return "inline-image"
	case TokenKeyword:
		return "keyword"
	}
	return "unknown"
}

// Token is a single lexical item. Only the fields relevant to Type are set:
// Str for names and keywords, Bytes for strings and payloads, Int/Float/IsInt
// for numbers, Bool for booleans, and Int/Gen for references.
type Token struct {
	Type  TokenType
	Str   string
	Bytes []byte
	Int   int64
	Float float64
	IsInt bool
	Bool  bool
	Gen   int64
	Pos   int64
}

// Number returns the numeric value of a number token as float64.
func (t Token) Number() float64 {
	if t.IsInt {
		return float64(t.Int)
	}
	return t.Float
}

type Scanner interface {
	Next() (Token, error)
	Position() int64
	Seek(offset int64) error
	SetNextStreamLength(n int64)
}

type Config struct {
	MaxNameLength   int
	MaxStringLength int64
	MaxArrayDepth   int
	MaxDictDepth    int
	MaxStreamLength int64
	MaxStreamScan   int64
	MaxInlineImage  int64
	WindowSize      int64
	Recovery        recovery.Strategy
}

type ReaderAt interface {
	ReadAt(p []byte, off int64) (n int, err error)
}

// pdfScanner buffers data from a ReaderAt in fixed-size windows as the
// position advances.
type pdfScanner struct {
	reader        ReaderAt
	data          []byte
	pos           int64
	cfg           Config
	nextStreamLen int64
	chunkSize     int64
	eof           bool
	arrayDepth    int
	dictDepth     int
	nesting       []TokenType
	recLoc        recovery.Location
	lastAction    recovery.Action
}

// New returns a scanner reading from r.
func New(r ReaderAt, cfg Config) Scanner {
	chunk := cfg.WindowSize
	if chunk <= 0 {
		chunk = 64 * 1024
	}
	return &pdfScanner{reader: r, cfg: cfg, nextStreamLen: -1, chunkSize: chunk}
}

func (s *pdfScanner) Position() int64 { return s.pos }

func (s *pdfScanner) Seek(offset int64) error {
	if offset < 0 {
		return errors.New("seek out of range")
	}
	if _, ok := s.at(offset - 1); !ok && offset > 0 {
		return errors.New("seek out of range")
	}
	s.pos = offset
	return nil
}

func (s *pdfScanner) SetNextStreamLength(n int64)               { s.nextStreamLen = n }
func (s *pdfScanner) SetRecoveryLocation(loc recovery.Location) { s.recLoc = loc }

// at returns the byte at offset i, loading more windows as needed.
func (s *pdfScanner) at(i int64) (byte, bool) {
	for i >= int64(len(s.data)) {
		if s.eof || s.loadMore() != nil {
			return 0, false
		}
	}
	if i < 0 {
		return 0, false
	}
	return s.data[i], true
}

func (s *pdfScanner) loadMore() error {
	buf := make([]byte, s.chunkSize)
	n, err := s.reader.ReadAt(buf, int64(len(s.data)))
	if n > 0 {
		s.data = append(s.data, buf[:n]...)
	}
	if err == io.EOF || (err == nil && n == 0) {
		s.eof = true
		return nil
	}
	return err
}

func (s *pdfScanner) loadAll() error {
	for !s.eof {
		if err := s.loadMore(); err != nil {
			return err
		}
	}
	return nil
}

func (s *pdfScanner) Next() (Token, error) {
	for {
		tok, retry, err := s.next()
		if retry {
			continue
		}
		return tok, err
	}
}

func (s *pdfScanner) next() (Token, bool, error) {
	s.skipWSAndComments()
	c, ok := s.at(s.pos)
	if !ok {
		if s.arrayDepth > 0 || s.dictDepth > 0 {
			return s.closeAtEOF()
		}
		return Token{}, false, io.EOF
	}
	start := s.pos
	switch c {
	case '<':
		if n, _ := s.at(s.pos + 1); n == '<' {
			s.pos += 2
			return s.emit(Token{Type: TokenDict, Str: "<<", Pos: start})
		}
		tok, err := s.scanHexString()
		return tok, false, err
	case '>':
		if n, _ := s.at(s.pos + 1); n == '>' {
			s.pos += 2
			return s.emit(Token{Type: TokenKeyword, Str: ">>", Pos: start})
		}
		s.pos++
		return s.emit(Token{Type: TokenKeyword, Str: ">", Pos: start})
	case '[':
		s.pos++
		return s.emit(Token{Type: TokenArray, Str: "[", Pos: start})
	case ']':
		s.pos++
		return s.emit(Token{Type: TokenKeyword, Str: "]", Pos: start})
	case '(':
		tok, err := s.scanLiteralString()
		return tok, false, err
	case '/':
		tok, err := s.scanName()
		return tok, false, err
	}
	if isDigitStart(c) {
		tok, err := s.scanNumberOrRef()
		return tok, false, err
	}
	if !isDelimiter(c) {
		tok, err := s.scanKeyword()
		return tok, false, err
	}
	s.pos++
	return s.emit(Token{Type: TokenKeyword, Str: string(c), Pos: start})
}

// closeAtEOF synthesizes closing tokens for containers left open at the end
// of input when the recovery strategy allows fixing.
func (s *pdfScanner) closeAtEOF() (Token, bool, error) {
	innermost := s.nesting[len(s.nesting)-1]
	kind := innermost.String()
	err := s.recover(fmt.Errorf("unexpected EOF inside %s: %w", kind, io.EOF), kind)
	if s.lastAction != recovery.ActionFix {
		if err == nil {
			return Token{}, false, io.EOF
		}
		return Token{}, false, err
	}
	s.nesting = s.nesting[:len(s.nesting)-1]
	if innermost == TokenArray {
		s.arrayDepth--
		return Token{Type: TokenKeyword, Str: "]", Pos: s.pos}, false, nil
	}
	s.dictDepth--
	return Token{Type: TokenKeyword, Str: ">>", Pos: s.pos}, false, nil
}

func (s *pdfScanner) skipWSAndComments() {
	for {
		c, ok := s.at(s.pos)
		if !ok {
			return
		}
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c != '%' {
			return
		}
		for {
			s.pos++
			c, ok := s.at(s.pos)
			if !ok || isEOL(c) {
				break
			}
		}
	}
}

func (s *pdfScanner) scanName() (Token, error) {
	start := s.pos
	s.pos++
	var out bytes.Buffer
	truncated := false
	for {
		c, ok := s.at(s.pos)
		if !ok || isDelimiter(c) {
			break
		}
		if c == '#' && !truncated {
			hi, okHi := s.at(s.pos + 1)
			lo, okLo := s.at(s.pos + 2)
			if okHi && okLo && isHex(hi) && isHex(lo) {
				out.WriteByte(fromHex(hi)<<4 | fromHex(lo))
				s.pos += 3
				continue
			}
		}
		s.pos++
		if s.cfg.MaxNameLength > 0 && out.Len() >= s.cfg.MaxNameLength {
			if !truncated {
				if err := s.recover(errors.New("name too long"), "name"); err != nil {
					return Token{}, err
				}
				truncated = true
			}
			continue
		}
		out.WriteByte(c)
	}
	tok, _, err := s.emit(Token{Type: TokenName, Str: out.String(), Pos: start})
	return tok, err
}

func (s *pdfScanner) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++
	var buf bytes.Buffer
	depth := 1
	truncated := false
	for depth > 0 {
		c, ok := s.at(s.pos)
		if !ok {
			break
		}
		s.pos++
		switch c {
		case '\\':
			esc, ok := s.at(s.pos)
			if !ok {
				continue
			}
			s.pos++
			switch {
			case esc == '\r':
				if n, _ := s.at(s.pos); n == '\n' {
					s.pos++
				}
			case esc == '\n':
			case esc >= '0' && esc <= '7':
				val := int(esc - '0')
				for k := 0; k < 2; k++ {
					d, ok := s.at(s.pos)
					if !ok || d < '0' || d > '7' {
						break
					}
					val = val<<3 + int(d-'0')
					s.pos++
				}
				buf.WriteByte(byte(val))
			default:
				buf.WriteByte(translateEscape(esc))
			}
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				continue
			}
		}
		if s.cfg.MaxStringLength > 0 && int64(buf.Len()) >= s.cfg.MaxStringLength {
			if !truncated {
				if err := s.recover(errors.New("literal string too long"), "literal"); err != nil {
					return Token{}, err
				}
				truncated = true
			}
			continue
		}
		buf.WriteByte(c)
	}
	if depth != 0 {
		if err := s.recover(errors.New("unterminated literal string"), "literal"); err != nil {
			return Token{}, err
		}
	}
	tok, _, err := s.emit(Token{Type: TokenString, Bytes: buf.Bytes(), Pos: start})
	return tok, err
}

func (s *pdfScanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++
	var nibbles []byte
	closed := false
	for {
		c, ok := s.at(s.pos)
		if !ok {
			break
		}
		s.pos++
		if c == '>' {
			closed = true
			break
		}
		if isWhitespace(c) {
			continue
		}
		nibbles = append(nibbles, c)
	}
	if !closed {
		if err := s.recover(errors.New("unterminated hex string"), "hex"); err != nil {
			return Token{}, err
		}
	}
	if len(nibbles)%2 == 1 {
		nibbles = append(nibbles, '0')
	}
	if limit := s.cfg.MaxStringLength; limit > 0 && int64(len(nibbles)/2) > limit {
		if err := s.recover(errors.New("hex string too long"), "hex"); err != nil {
			return Token{}, err
		}
		nibbles = nibbles[:2*limit]
	}
	out := make([]byte, len(nibbles)/2)
	for i := range out {
		out[i] = fromHex(nibbles[2*i])<<4 | fromHex(nibbles[2*i+1])
	}
	tok, _, err := s.emit(Token{Type: TokenString, Bytes: out, Pos: start})
	return tok, err
}

// consumeEOL skips a single CR, LF or CRLF at the current position and
// reports whether one was present.
func (s *pdfScanner) consumeEOL() bool {
	c, ok := s.at(s.pos)
	if !ok {
		return false
	}
	switch c {
	case '\r':
		s.pos++
		if n, _ := s.at(s.pos); n == '\n' {
			s.pos++
		}
		return true
	case '\n':
		s.pos++
		return true
	}
	return false
}

func (s *pdfScanner) scanStream(start int64) (Token, error) {
	if !s.consumeEOL() {
		if err := s.recover(errors.New("stream missing EOL before data"), "stream"); err != nil {
			return Token{}, err
		}
		s.skipWSAndComments()
	}
	dataStart := s.pos
	declared := s.nextStreamLen
	s.nextStreamLen = -1
	if declared >= 0 {
		tok, ok, err := s.scanStreamWithLength(start, dataStart, declared)
		if err != nil || ok {
			return tok, err
		}
	}

	needle := []byte("endstream")
	end := int64(-1)
	limited, oversized := false, false
	for i := dataStart; ; i++ {
		if s.cfg.MaxStreamScan > 0 && i-dataStart > s.cfg.MaxStreamScan {
			limited = true
			if err := s.recover(errors.New("endstream not found within scan limit"), "stream"); err != nil {
				return Token{}, err
			}
			break
		}
		if !oversized && s.cfg.MaxStreamLength > 0 && i-dataStart > s.cfg.MaxStreamLength {
			if err := s.recover(errors.New("stream too long"), "stream"); err != nil {
				return Token{}, err
			}
			oversized = true
		}
		if _, ok := s.at(i + int64(len(needle)) - 1); !ok {
			break
		}
		if s.data[i] != 'e' || !bytes.Equal(s.data[i:i+int64(len(needle))], needle) {
			continue
		}
		after, ok := s.at(i + int64(len(needle)))
		if (!ok || isDelimiter(after)) && hasStreamBreakBefore(s.data, i, dataStart) {
			end = i
			break
		}
	}
	if end < 0 {
		if err := s.loadAll(); err != nil {
			return Token{}, err
		}
		payload := append([]byte(nil), s.data[dataStart:]...)
		if !limited && s.cfg.MaxStreamScan > 0 && int64(len(payload)) > s.cfg.MaxStreamScan {
			if err := s.recover(errors.New("endstream not found within scan limit"), "stream"); err != nil {
				return Token{}, err
			}
		}
		s.pos = int64(len(s.data))
		return Token{Type: TokenStream, Bytes: payload, Pos: start}, nil
	}
	payloadEnd := end
	if payloadEnd > dataStart && s.data[payloadEnd-1] == '\n' {
		payloadEnd--
	}
	if payloadEnd > dataStart && s.data[payloadEnd-1] == '\r' {
		payloadEnd--
	}
	s.pos = end + int64(len(needle))
	return Token{Type: TokenStream, Bytes: append([]byte(nil), s.data[dataStart:payloadEnd]...), Pos: start}, nil
}

// scanStreamWithLength trusts a declared /Length when "endstream" follows
// it. A wrong length makes the caller fall back to searching.
func (s *pdfScanner) scanStreamWithLength(start, dataStart, length int64) (Token, bool, error) {
	if s.cfg.MaxStreamLength > 0 && length > s.cfg.MaxStreamLength {
		if err := s.recover(errors.New("stream too long"), "stream"); err != nil {
			return Token{}, false, err
		}
	}
	end := dataStart + length
	if _, ok := s.at(end - 1); !ok && length > 0 {
		return Token{}, false, nil
	}
	pos := end
	for {
		c, ok := s.at(pos)
		if !ok || !isWhitespace(c) {
			break
		}
		pos++
	}
	needle := []byte("endstream")
	if _, ok := s.at(pos + int64(len(needle)) - 1); !ok || !bytes.Equal(s.data[pos:pos+int64(len(needle))], needle) {
		return Token{}, false, nil
	}
	s.pos = pos + int64(len(needle))
	return Token{Type: TokenStream, Bytes: append([]byte(nil), s.data[dataStart:end]...), Pos: start}, true, nil
}

// scanInlineImage consumes the bytes after an ID operator up to the first EI
// preceded by whitespace and followed by a delimiter.
func (s *pdfScanner) scanInlineImage(start int64) (Token, error) {
	if c, ok := s.at(s.pos); ok && isWhitespace(c) {
		s.pos++
		s.consumeEOL()
	} else if err := s.recover(errors.New("inline image missing whitespace after ID"), "inline_image"); err != nil {
		return Token{}, err
	}
	dataStart := s.pos
	oversized := false
	for i := dataStart; ; i++ {
		if !oversized && s.cfg.MaxInlineImage > 0 && i-dataStart > s.cfg.MaxInlineImage {
			if err := s.recover(errors.New("inline image too long"), "inline_image"); err != nil {
				return Token{}, err
			}
			oversized = true
		}
		e, ok := s.at(i)
		if !ok {
			if err := s.recover(errors.New("unterminated inline image"), "inline_image"); err != nil {
				return Token{}, err
			}
			s.pos = int64(len(s.data))
			return Token{Type: TokenInlineImage, Bytes: append([]byte(nil), s.data[dataStart:]...), Pos: start}, nil
		}
		if e != 'E' {
			continue
		}
		if n, _ := s.at(i + 1); n != 'I' {
			continue
		}
		if i == dataStart || !isWhitespace(s.data[i-1]) {
			continue
		}
		if after, ok := s.at(i + 2); ok && !isDelimiter(after) {
			continue
		}
		s.pos = i + 2
		return Token{Type: TokenInlineImage, Bytes: append([]byte(nil), s.data[dataStart:i]...), Pos: start}, nil
	}
}

func (s *pdfScanner) scanKeyword() (Token, error) {
	start := s.pos
	for {
		c, ok := s.at(s.pos)
		if !ok || isDelimiter(c) {
			break
		}
		s.pos++
	}
	kw := string(s.data[start:s.pos])
	switch kw {
	case "true", "false":
		return Token{Type: TokenBoolean, Bool: kw == "true", Pos: start}, nil
	case "null":
		return Token{Type: TokenNull, Pos: start}, nil
	case "stream":
		return s.scanStream(start)
	case "ID":
		return s.scanInlineImage(start)
	}
	return Token{Type: TokenKeyword, Str: kw, Pos: start}, nil
}

func (s *pdfScanner) scanNumberOrRef() (Token, error) {
	start := s.pos
	first := s.scanNumberString()
	if first == "" {
		s.pos++
		return Token{Type: TokenKeyword, Str: string(s.data[start]), Pos: start}, nil
	}
	if isUnsignedInt(first) {
		mark := s.pos
		s.skipWSAndComments()
		second := s.scanNumberString()
		if second != "" && isUnsignedInt(second) {
			s.skipWSAndComments()
			if c, ok := s.at(s.pos); ok && c == 'R' {
				if n, ok := s.at(s.pos + 1); !ok || isDelimiter(n) {
					s.pos++
					num, _ := strconv.ParseInt(first, 10, 64)
					gen, _ := strconv.ParseInt(second, 10, 64)
					return Token{Type: TokenRef, Int: num, Gen: gen, Pos: start}, nil
				}
			}
		}
		s.pos = mark
	}
	if i, err := strconv.ParseInt(first, 10, 64); err == nil {
		return Token{Type: TokenNumber, Int: i, IsInt: true, Pos: start}, nil
	}
	f, err := strconv.ParseFloat(normalizeReal(first), 64)
	if err != nil {
		// Malformed reals such as "1.2.3" or "--5" are read as zero the
		// way most viewers do.
		f = 0
	}
	return Token{Type: TokenNumber, Float: f, Pos: start}, nil
}

func (s *pdfScanner) scanNumberString() string {
	start := s.pos
	seenDigit := false
	for {
		c, ok := s.at(s.pos)
		if !ok {
			break
		}
		if c >= '0' && c <= '9' {
			seenDigit = true
		} else if c != '+' && c != '-' && c != '.' {
			break
		}
		s.pos++
	}
	if !seenDigit {
		s.pos = start
		return ""
	}
	return string(s.data[start:s.pos])
}

func normalizeReal(v string) string {
	// "-.5" and "+.5" parse fine; "5." does too. Strip a doubled sign.
	for len(v) > 1 && (v[0] == '+' || v[0] == '-') && (v[1] == '+' || v[1] == '-') {
		v = v[1:]
	}
	return v
}

func isUnsignedInt(v string) bool {
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return false
		}
	}
	return v != ""
}

func (s *pdfScanner) recover(err error, loc string) error {
	s.lastAction = recovery.ActionFail
	if s.cfg.Recovery == nil {
		return err
	}
	location := s.recLoc
	location.ByteOffset = s.pos
	if location.Component != "" {
		location.Component += "->"
	}
	location.Component += "scanner:" + loc
	s.lastAction = s.cfg.Recovery.OnError(nil, err, location)
	switch s.lastAction {
	case recovery.ActionSkip, recovery.ActionFix:
		return nil
	}
	return err
}

// emit tracks container depth. The boolean result asks Next to retry when a
// stray closing token was dropped by recovery.
func (s *pdfScanner) emit(tok Token) (Token, bool, error) {
	switch tok.Type {
	case TokenArray:
		s.arrayDepth++
		s.nesting = append(s.nesting, TokenArray)
		if s.cfg.MaxArrayDepth > 0 && s.arrayDepth > s.cfg.MaxArrayDepth {
			if err := s.recover(errors.New("array depth exceeded"), "array"); err != nil {
				return Token{}, false, err
			}
		}
	case TokenDict:
		s.dictDepth++
		s.nesting = append(s.nesting, TokenDict)
		if s.cfg.MaxDictDepth > 0 && s.dictDepth > s.cfg.MaxDictDepth {
			if err := s.recover(errors.New("dict depth exceeded"), "dict"); err != nil {
				return Token{}, false, err
			}
		}
	case TokenKeyword:
		switch tok.Str {
		case "]":
			if s.arrayDepth == 0 {
				return s.underflow("array")
			}
			s.arrayDepth--
			s.pop(TokenArray)
		case ">>":
			if s.dictDepth == 0 {
				return s.underflow("dict")
			}
			s.dictDepth--
			s.pop(TokenDict)
		}
	}
	return tok, false, nil
}

// pop removes the innermost open container of the given kind.
func (s *pdfScanner) pop(kind TokenType) {
	for i := len(s.nesting) - 1; i >= 0; i-- {
		if s.nesting[i] == kind {
			s.nesting = append(s.nesting[:i], s.nesting[i+1:]...)
			return
		}
	}
}

func (s *pdfScanner) underflow(kind string) (Token, bool, error) {
	err := s.recover(errors.New(kind+" depth underflow"), kind)
	if err != nil {
		return Token{}, false, err
	}
	return Token{}, true, nil
}

func isDigitStart(c byte) bool { return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') }

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}

func isEOL(c byte) bool { return c == '\r' || c == '\n' }

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return isWhitespace(c)
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func fromHex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	}
	return 0
}

func translateEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	}
	return c
}

// hasStreamBreakBefore reports whether offset i is preceded by a line break
// or whitespace, making it a safe candidate for an endstream marker.
func hasStreamBreakBefore(data []byte, i, dataStart int64) bool {
	if i == dataStart {
		return true
	}
	return isWhitespace(data[i-1])
}
