package writer

import (
	"fmt"

	"github.com/wudi/blackout/ir/raw"
	"github.com/wudi/blackout/security"
)

// encryptObject returns a copy of obj with every string and stream payload
// encrypted for ref. obj itself is left untouched.
func encryptObject(obj raw.Object, ref raw.ObjectRef, h security.Handler) (raw.Object, error) {
	if h == nil || !h.IsEncrypted() {
		return obj, nil
	}
	switch v := obj.(type) {
	case raw.StringObj:
		enc, err := h.Encrypt(ref.Num, ref.Gen, v.Bytes, security.DataClassString)
		if err != nil {
			return nil, err
		}
		return raw.StringObj{Bytes: enc, Hex: v.Hex}, nil
	case *raw.ArrayObj:
		arr := &raw.ArrayObj{Items: make([]raw.Object, len(v.Items))}
		for i, item := range v.Items {
			enc, err := encryptObject(item, ref, h)
			if err != nil {
				return nil, err
			}
			arr.Items[i] = enc
		}
		return arr, nil
	case *raw.DictObj:
		d := raw.Dict()
		for k, item := range v.KV {
			enc, err := encryptObject(item, ref, h)
			if err != nil {
				return nil, err
			}
			d.KV[k] = enc
		}
		return d, nil
	case *raw.StreamObj:
		if typ, _ := v.Dict.Name("Type"); typ == "XRef" {
			return v, nil
		}
		class := security.DataClassStream
		if typ, _ := v.Dict.Name("Type"); typ == "Metadata" {
			class = security.DataClassMetadataStream
		}
		data, err := h.Encrypt(ref.Num, ref.Gen, v.Data, class)
		if err != nil {
			return nil, fmt.Errorf("encrypt stream %v: %w", ref, err)
		}
		d, err := encryptObject(v.Dict, ref, h)
		if err != nil {
			return nil, err
		}
		return raw.NewStream(d.(*raw.DictObj), data), nil
	}
	return obj, nil
}
