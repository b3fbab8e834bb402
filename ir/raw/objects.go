package raw

import "sort"

type Name string

func (Name) Type() string { return "name" }

type Number struct {
	I     int64
	F     float64
	IsInt bool
}

func (Number) Type() string { return "number" }

func (n Number) Int() int64 {
	if n.IsInt {
		return n.I
	}
	return int64(n.F)
}

func (n Number) Float() float64 {
	if n.IsInt {
		return float64(n.I)
	}
	return n.F
}

type Bool bool

func (Bool) Type() string { return "boolean" }

type Null struct{}

func (Null) Type() string { return "null" }

type String struct {
	Bytes []byte
	Hex   bool
}

func (String) Type() string { return "string" }

type Array struct{ Items []Object }

func (*Array) Type() string { return "array" }

func (a *Array) Len() int {
	if a == nil {
		return 0
	}
	return len(a.Items)
}

func (a *Array) Get(i int) (Object, bool) {
	if a == nil || i < 0 || i >= len(a.Items) {
		return nil, false
	}
	return a.Items[i], true
}

type Dict struct{ KV map[string]Object }

func (*Dict) Type() string { return "dict" }

func (d *Dict) Get(key string) (Object, bool) {
	if d == nil {
		return nil, false
	}
	o, ok := d.KV[key]
	return o, ok
}

func (d *Dict) Set(key string, value Object) {
	if d.KV == nil {
		d.KV = make(map[string]Object)
	}
	d.KV[key] = value
}

func (d *Dict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.KV)
}

// Keys returns the keys in sorted order.
func (d *Dict) Keys() []string {
	if d == nil {
		return nil
	}
	keys := make([]string, 0, len(d.KV))
	for k := range d.KV {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Stream is an undecoded stream: its dictionary plus the bytes between
// "stream" and "endstream".
type Stream struct {
	Dict *Dict
	Data []byte
}

func (*Stream) Type() string { return "stream" }

type Ref ObjectRef

func (Ref) Type() string { return "ref" }

// Helpers
func Int(i int64) Number                     { return Number{I: i, IsInt: true} }
func Real(f float64) Number                  { return Number{F: f} }
func Str(b []byte) String                    { return String{Bytes: b} }
func NewArray(items ...Object) *Array        { return &Array{Items: items} }
func NewDict() *Dict                         { return &Dict{KV: make(map[string]Object)} }
func NewStream(d *Dict, data []byte) *Stream { return &Stream{Dict: d, Data: data} }
func NewRef(num, gen int) Ref                { return Ref{Num: num, Gen: gen} }
