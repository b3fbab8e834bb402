package filters

import "github.com/wudi/pdftext/ir/raw"

// ExtractFilters reads Filter and DecodeParms entries from a stream
// dictionary. Inline image dictionaries use the abbreviated keys F and DP.
// Resolution of indirect references is left to resolve, which may be nil.
func ExtractFilters(dict *raw.Dict, resolve func(raw.Object) raw.Object) ([]string, []*raw.Dict) {
	if resolve == nil {
		resolve = func(o raw.Object) raw.Object { return o }
	}
	get := func(keys ...string) raw.Object {
		for _, k := range keys {
			if o, ok := dict.Get(k); ok {
				return resolve(o)
			}
		}
		return nil
	}

	var names []string
	switch f := get("Filter", "F").(type) {
	case raw.Name:
		names = append(names, string(f))
	case *raw.Array:
		for _, item := range f.Items {
			if n, ok := resolve(item).(raw.Name); ok {
				names = append(names, string(n))
			}
		}
	}
	if len(names) == 0 {
		return nil, nil
	}

	params := make([]*raw.Dict, len(names))
	switch p := get("DecodeParms", "DP").(type) {
	case *raw.Dict:
		params[0] = p
	case *raw.Array:
		for i, item := range p.Items {
			if i >= len(params) {
				break
			}
			if d, ok := resolve(item).(*raw.Dict); ok {
				params[i] = d
			}
		}
	}
	return names, params
}

// intParam reads an integer decode parameter with a default.
func intParam(params *raw.Dict, key string, def int) int {
	if o, ok := params.Get(key); ok {
		if n, ok := o.(raw.Number); ok {
			return int(n.Int())
		}
	}
	return def
}

func boolParam(params *raw.Dict, key string, def bool) bool {
	if o, ok := params.Get(key); ok {
		if b, ok := o.(raw.Bool); ok {
			return bool(b)
		}
	}
	return def
}
