package document

import (
	"github.com/wudi/pdftext/ir/raw"
)

// Dict resolves obj to a dictionary. A stream yields its dictionary.
func (d *Document) Dict(obj raw.Object) *raw.Dict {
	switch v := d.Resolve(obj).(type) {
	case *raw.Dict:
		return v
	case *raw.Stream:
		return v.Dict
	}
	return nil
}

// Array resolves obj to an array.
func (d *Document) Array(obj raw.Object) *raw.Array {
	a, _ := d.Resolve(obj).(*raw.Array)
	return a
}

// Number resolves obj to a number.
func (d *Document) Number(obj raw.Object) (float64, bool) {
	n, ok := d.Resolve(obj).(raw.Number)
	if !ok {
		return 0, false
	}
	return n.Float(), true
}

// Name resolves obj to a name.
func (d *Document) Name(obj raw.Object) (string, bool) {
	n, ok := d.Resolve(obj).(raw.Name)
	return string(n), ok
}

// Get returns the resolved value of key in dict, or nil.
func (d *Document) Get(dict *raw.Dict, key string) raw.Object {
	o, ok := dict.Get(key)
	if !ok {
		return nil
	}
	return d.Resolve(o)
}

// NameOf returns the name stored under key, or "".
func (d *Document) NameOf(dict *raw.Dict, key string) string {
	n, _ := d.Name(d.Get(dict, key))
	return n
}

// NumberOf returns the number stored under key.
func (d *Document) NumberOf(dict *raw.Dict, key string) (float64, bool) {
	return d.Number(d.Get(dict, key))
}

// Numbers resolves an array of numbers. Non-numeric entries fail the
// conversion.
func (d *Document) Numbers(obj raw.Object) ([]float64, bool) {
	arr := d.Array(obj)
	if arr == nil {
		return nil, false
	}
	out := make([]float64, 0, arr.Len())
	for _, item := range arr.Items {
		v, ok := d.Number(item)
		if !ok {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}
