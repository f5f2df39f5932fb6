package writer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/wudi/blackout/filters"
	"github.com/wudi/blackout/ir/raw"
	"github.com/wudi/blackout/observability"
	"github.com/wudi/blackout/security"
	"github.com/wudi/blackout/xref"
)

// WriteFull writes a complete file holding every object reachable from the
// /Root and /Info entries of trailer. Objects are renumbered from 1 in
// discovery order, the previous /Encrypt is dropped, and a new /ID is
// generated.
func WriteFull(ctx context.Context, w io.Writer, src Source, trailer *raw.DictObj, cfg Config) error {
	logger := observability.Or(cfg.Logger)
	rootRef, ok := trailer.Ref("Root")
	if !ok {
		return errors.New("trailer has no /Root reference")
	}
	order := []raw.ObjectRef{rootRef}
	numbers := map[raw.ObjectRef]int{rootRef: 1}
	if infoRef, ok := trailer.Ref("Info"); ok && infoRef != rootRef {
		order = append(order, infoRef)
		numbers[infoRef] = 2
	}
	loaded := make(map[raw.ObjectRef]raw.Object)
	for i := 0; i < len(order); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		obj, err := src.Load(ctx, order[i])
		if err != nil {
			return fmt.Errorf("load %v: %w", order[i], err)
		}
		loaded[order[i]] = obj
		collectRefs(obj, func(r raw.ObjectRef) {
			if _, seen := numbers[r]; !seen {
				numbers[r] = len(order) + 1
				order = append(order, r)
			}
		})
	}

	id := uuid.New()
	fileID := id[:]
	var handler security.Handler
	var encDict *raw.DictObj
	if cfg.Encryption != nil {
		var err error
		encDict, handler, err = security.BuildStandardEncryption(*cfg.Encryption, fileID)
		if err != nil {
			return fmt.Errorf("build encryption: %w", err)
		}
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%s", cfg.version(), binaryMarker)
	entries := map[int]xref.Entry{0: {Kind: xref.Free}}
	for i, old := range order {
		ref := raw.ObjectRef{Num: i + 1}
		obj := renumber(loaded[old], numbers)
		if st, ok := obj.(*raw.StreamObj); ok {
			prepared, err := prepareStream(st, cfg.Compression)
			if err != nil {
				return fmt.Errorf("object %v: %w", old, err)
			}
			obj = prepared
		}
		obj, err := encryptObject(obj, ref, handler)
		if err != nil {
			return err
		}
		entries[ref.Num] = xref.Entry{Kind: xref.InUse, Offset: int64(buf.Len())}
		buf.Write(SerializeObject(ref, obj))
	}

	out := raw.Dict()
	out.Set("Root", raw.Ref(1, 0))
	if _, ok := trailer.Ref("Info"); ok {
		out.Set("Info", raw.Ref(numbers[mustRef(trailer, "Info")], 0))
	}
	if encDict != nil {
		num := len(order) + 1
		entries[num] = xref.Entry{Kind: xref.InUse, Offset: int64(buf.Len())}
		buf.Write(SerializeObject(raw.ObjectRef{Num: num}, encDict))
		out.Set("Encrypt", raw.Ref(num, 0))
	}
	out.Set("Size", raw.NumberInt(int64(len(entries))))
	out.Set("ID", raw.NewArray(raw.HexStr(fileID), raw.HexStr(fileID)))
	writeXRefTable(&buf, entries, out, int64(buf.Len()))

	logger.Debug("full rewrite", observability.Int("objects", len(order)), observability.Int("bytes", buf.Len()))
	_, err := w.Write(buf.Bytes())
	return err
}

func mustRef(d *raw.DictObj, key string) raw.ObjectRef {
	r, _ := d.Ref(key)
	return r
}

func collectRefs(obj raw.Object, fn func(raw.ObjectRef)) {
	switch v := obj.(type) {
	case raw.RefObj:
		fn(v.R)
	case *raw.ArrayObj:
		for _, item := range v.Items {
			collectRefs(item, fn)
		}
	case *raw.DictObj:
		for _, k := range v.Keys() {
			collectRefs(v.KV[k], fn)
		}
	case *raw.StreamObj:
		// /Length is rewritten as a direct number on output.
		for _, k := range v.Dict.Keys() {
			if k != "Length" {
				collectRefs(v.Dict.KV[k], fn)
			}
		}
	}
}

// renumber deep-copies obj with every reference mapped through numbers.
func renumber(obj raw.Object, numbers map[raw.ObjectRef]int) raw.Object {
	switch v := obj.(type) {
	case raw.RefObj:
		if n, ok := numbers[v.R]; ok {
			return raw.Ref(n, 0)
		}
		return raw.NullObj{}
	case *raw.ArrayObj:
		arr := &raw.ArrayObj{Items: make([]raw.Object, len(v.Items))}
		for i, item := range v.Items {
			arr.Items[i] = renumber(item, numbers)
		}
		return arr
	case *raw.DictObj:
		d := raw.Dict()
		for k, item := range v.KV {
			d.KV[k] = renumber(item, numbers)
		}
		return d
	case *raw.StreamObj:
		data := make([]byte, len(v.Data))
		copy(data, v.Data)
		return raw.NewStream(renumber(v.Dict, numbers).(*raw.DictObj), data)
	}
	return raw.Clone(obj)
}

// prepareStream drops /Crypt from the filter chain, since payloads are held
// decrypted, and Flate-compresses streams that carry no filter at all.
func prepareStream(st *raw.StreamObj, level int) (*raw.StreamObj, error) {
	names, params := filters.ExtractFilters(st.Dict)
	keptNames := make([]string, 0, len(names))
	keptParams := make([]*raw.DictObj, 0, len(names))
	for i, name := range names {
		if name == "Crypt" {
			continue
		}
		keptNames = append(keptNames, name)
		keptParams = append(keptParams, params[i])
	}
	data := st.Data
	typ, _ := st.Dict.Name("Type")
	if len(keptNames) == 0 && level >= 0 && typ != "Metadata" && len(data) > 0 {
		enc, err := filters.FlateEncode(data, level)
		if err != nil {
			return nil, err
		}
		data = enc
		keptNames = append(keptNames, "FlateDecode")
		keptParams = append(keptParams, nil)
	}
	setFilters(st.Dict, keptNames, keptParams)
	return raw.NewStream(st.Dict, data), nil
}

func setFilters(d *raw.DictObj, names []string, params []*raw.DictObj) {
	d.Delete("Filter")
	d.Delete("DecodeParms")
	switch len(names) {
	case 0:
		return
	case 1:
		d.Set("Filter", raw.NameLiteral(names[0]))
		if params[0] != nil {
			d.Set("DecodeParms", params[0])
		}
		return
	}
	nameArr := raw.NewArray()
	paramArr := raw.NewArray()
	anyParams := false
	for i, n := range names {
		nameArr.Append(raw.NameLiteral(n))
		if params[i] != nil {
			paramArr.Append(params[i])
			anyParams = true
		} else {
			paramArr.Append(raw.NullObj{})
		}
	}
	d.Set("Filter", nameArr)
	if anyParams {
		d.Set("DecodeParms", paramArr)
	}
}
