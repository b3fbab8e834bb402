package document

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/wudi/pdftext/ir/raw"
	"github.com/wudi/pdftext/observability"
)

// inflateObjectStreams adds the objects packed in /Type /ObjStm streams to
// the object table. An entry replaces an existing definition only when its
// object stream appears later in the file.
func (d *Document) inflateObjectStreams(ctx context.Context) {
	type objStm struct {
		ref raw.ObjectRef
		st  *raw.Stream
	}
	var streams []objStm
	for ref, obj := range d.raw.Objects {
		if st, ok := obj.(*raw.Stream); ok && d.NameOf(st.Dict, "Type") == "ObjStm" {
			streams = append(streams, objStm{ref: ref, st: st})
		}
	}
	sort.Slice(streams, func(i, j int) bool {
		return d.raw.Offsets[streams[i].ref] < d.raw.Offsets[streams[j].ref]
	})
	for _, s := range streams {
		if ctx.Err() != nil {
			return
		}
		objects, err := d.decodeObjectStream(ctx, s.st)
		if err != nil {
			d.opts.Logger.Warn("skipping object stream",
				observability.Int("object", s.ref.Num),
				observability.Error("error", err),
			)
			continue
		}
		off := d.raw.Offsets[s.ref]
		for num, obj := range objects {
			key := raw.ObjectRef{Num: num}
			if prev, exists := d.raw.Offsets[key]; exists && prev > off {
				continue
			}
			d.raw.Objects[key] = obj
			d.raw.Offsets[key] = off
		}
	}
}

func (d *Document) decodeObjectStream(ctx context.Context, st *raw.Stream) (map[int]raw.Object, error) {
	data, dict, err := d.Stream(ctx, st)
	if err != nil {
		return nil, err
	}
	n, _ := d.NumberOf(dict, "N")
	first, _ := d.NumberOf(dict, "First")
	count, start := int(n), int(first)
	if count <= 0 {
		return nil, fmt.Errorf("invalid object stream count %d", count)
	}
	if start < 0 || start > len(data) {
		return nil, fmt.Errorf("invalid object stream /First %d", start)
	}
	header := tokenizeInts(data[:start])
	if len(header) < 2*count {
		count = len(header) / 2
	}
	body := data[start:]
	cfg := d.opts.Limits.ScannerConfig(d.opts.Recovery)
	objects := make(map[int]raw.Object, count)
	for i := 0; i < count; i++ {
		num, off := header[2*i], header[2*i+1]
		if off < 0 || off > len(body) {
			continue
		}
		end := len(body)
		if i+1 < count {
			if next := header[2*i+3]; next >= off && next <= len(body) {
				end = next
			}
		}
		obj, err := raw.ParseObject(body[off:end], cfg)
		if err != nil {
			d.opts.Logger.Debug("skipping damaged object stream entry",
				observability.Int("object", num),
				observability.Error("error", err),
			)
			continue
		}
		objects[num] = obj
	}
	return objects, nil
}

// tokenizeInts reads the whitespace separated integers of an object stream
// header.
func tokenizeInts(b []byte) []int {
	var out []int
	start := -1
	for i := 0; i <= len(b); i++ {
		digit := i < len(b) && b[i] >= '0' && b[i] <= '9'
		if digit && start < 0 {
			start = i
		}
		if !digit && start >= 0 {
			v, err := strconv.Atoi(string(b[start:i]))
			if err == nil {
				out = append(out, v)
			}
			start = -1
		}
	}
	return out
}
