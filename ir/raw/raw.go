package raw

import "fmt"

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

// Clone returns a deep copy of obj. Stream data is shared; it is treated as immutable.
func Clone(obj Object) Object {
	switch v := obj.(type) {
	case *ArrayObj:
		out := &ArrayObj{Items: make([]Object, len(v.Items))}
		for i, it := range v.Items {
			out.Items[i] = Clone(it)
		}
		return out
	case *DictObj:
		out := &DictObj{KV: make(map[string]Object, len(v.KV))}
		for k, it := range v.KV {
			out.KV[k] = Clone(it)
		}
		return out
	case *StreamObj:
		d, _ := Clone(v.Dict).(*DictObj)
		if d == nil {
			d = Dict()
		}
		return &StreamObj{Dict: d, Data: v.Data}
	case StringObj:
		return StringObj{Bytes: append([]byte(nil), v.Bytes...), Hex: v.Hex}
	default:
		return obj
	}
}

// Walk calls fn for obj and, recursively, for every object nested in it.
// References are reported but not followed.
func Walk(obj Object, fn func(Object)) {
	fn(obj)
	switch v := obj.(type) {
	case *ArrayObj:
		for _, it := range v.Items {
			Walk(it, fn)
		}
	case *DictObj:
		for _, k := range v.Keys() {
			Walk(v.KV[k], fn)
		}
	case *StreamObj:
		if v.Dict != nil {
			Walk(v.Dict, fn)
		}
	}
}
