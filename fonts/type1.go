package fonts

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
)

// type1Encoding reads the built-in encoding of an embedded Type 1 font
// program from its clear-text portion: the "dup <code> /<glyph> put"
// entries. Programs wrapped in PFB segments are unwrapped first.
func type1Encoding(data []byte) map[int]string {
	if len(data) > 6 && data[0] == 0x80 {
		if l1, err := parsePFB(data); err == nil && 6+l1 <= len(data) {
			data = data[6 : 6+l1]
		}
	}
	if i := bytes.Index(data, []byte("eexec")); i >= 0 {
		data = data[:i]
	}
	if bytes.Contains(data, []byte("/Encoding StandardEncoding")) {
		return nil
	}
	fields := bytes.Fields(data)
	enc := make(map[int]string)
	for i := 0; i+3 < len(fields); i++ {
		if string(fields[i]) != "dup" || string(fields[i+3]) != "put" {
			continue
		}
		code, err := strconv.Atoi(string(fields[i+1]))
		name := fields[i+2]
		if err != nil || code < 0 || code > 255 || len(name) < 2 || name[0] != '/' {
			continue
		}
		enc[code] = string(name[1:])
		i += 3
	}
	if len(enc) == 0 {
		return nil
	}
	return enc
}

// parsePFB returns the length of the first (ASCII) segment of a PFB file.
func parsePFB(data []byte) (int, error) {
	r := bytes.NewReader(data)
	if err := checkHeader(r, 1); err != nil {
		return 0, err
	}
	l1, err := readLength(r)
	if err != nil {
		return 0, err
	}
	return int(l1), nil
}

func checkHeader(r *bytes.Reader, expectedType byte) error {
	b, err := r.ReadByte()
	if err != nil {
		return err
	}
	if b != 0x80 {
		return fmt.Errorf("invalid pfb header byte: %x", b)
	}
	t, err := r.ReadByte()
	if err != nil {
		return err
	}
	if t != expectedType {
		return fmt.Errorf("expected pfb segment type %d, got %d", expectedType, t)
	}
	return nil
}

func readLength(r io.Reader) (uint32, error) {
	var l uint32
	if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
		return 0, err
	}
	return l, nil
}
