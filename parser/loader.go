package parser

import (
	"context"
	"errors"
	"fmt"

	"github.com/wudi/blackout/filters"
	"github.com/wudi/blackout/ir/raw"
	"github.com/wudi/blackout/recovery"
	"github.com/wudi/blackout/scanner"
	"github.com/wudi/blackout/security"
	"github.com/wudi/blackout/xref"
)

type objectLoader struct {
	file     *File
	recovery recovery.Strategy
	maxDepth int
	cache    map[raw.ObjectRef]raw.Object
	objstm   map[int]map[int]raw.Object
}

func (o *objectLoader) reset() {
	o.cache = make(map[raw.ObjectRef]raw.Object)
	o.objstm = make(map[int]map[int]raw.Object)
}

func (o *objectLoader) load(ctx context.Context, ref raw.ObjectRef, depth int) (raw.Object, error) {
	if obj, ok := o.cache[ref]; ok {
		return obj, nil
	}
	if depth > o.maxDepth {
		return nil, errors.New("max depth exceeded")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, found := o.file.XRef.Lookup(ref.Num)
	var obj raw.Object
	var err error
	switch {
	case !found || e.Kind == xref.Free:
		obj = raw.NullObj{}
	case e.Kind == xref.Compressed:
		obj, err = o.loadFromObjectStream(ctx, ref, e.Stream, e.Index, depth)
	default:
		obj, err = o.loadAtOffset(ctx, ref, e.Offset, depth)
	}
	if err != nil {
		return nil, fmt.Errorf("object %d %d: %w", ref.Num, ref.Gen, err)
	}
	o.cache[ref] = obj
	return obj, nil
}

func (o *objectLoader) loadAtOffset(ctx context.Context, ref raw.ObjectRef, offset int64, depth int) (raw.Object, error) {
	s := scanner.New(o.file.Data, scanner.Config{Recovery: o.recovery})
	rd := scanner.NewReader(s, o.recovery)
	if err := rd.SeekTo(offset); err != nil {
		return nil, err
	}
	got, obj, err := rd.ReadIndirect(func(d *raw.DictObj) int64 {
		return o.streamLength(ctx, d, depth)
	})
	if err != nil {
		return nil, err
	}
	if got.Num != ref.Num {
		return nil, fmt.Errorf("xref points at object %d", got.Num)
	}
	return o.decryptObject(ref, obj)
}

// streamLength resolves /Length, following an indirect reference. It
// returns -1 when the length is unknown so the scanner searches for
// endstream.
func (o *objectLoader) streamLength(ctx context.Context, d *raw.DictObj, depth int) int64 {
	v, ok := d.Get("Length")
	if !ok {
		return -1
	}
	if ref, isRef := v.(raw.RefObj); isRef {
		obj, err := o.load(ctx, ref.R, depth+1)
		if err != nil {
			return -1
		}
		v = obj
	}
	if n, ok := v.(raw.NumberObj); ok && n.Int() >= 0 {
		return n.Int()
	}
	return -1
}

func (o *objectLoader) loadFromObjectStream(ctx context.Context, ref raw.ObjectRef, streamNum, idx, depth int) (raw.Object, error) {
	objs, ok := o.objstm[streamNum]
	if !ok {
		stObj, err := o.load(ctx, raw.ObjectRef{Num: streamNum}, depth+1)
		if err != nil {
			return nil, err
		}
		st, ok := stObj.(*raw.StreamObj)
		if !ok {
			return nil, fmt.Errorf("object stream %d is not a stream", streamNum)
		}
		objs, err = o.parseObjectStream(ctx, st)
		if err != nil {
			return nil, fmt.Errorf("object stream %d: %w", streamNum, err)
		}
		o.objstm[streamNum] = objs
	}
	if obj, ok := objs[ref.Num]; ok {
		return obj, nil
	}
	return raw.NullObj{}, nil
}

type objStmHeader struct {
	nums    []int
	offsets []int
	body    []byte
}

func (o *objectLoader) readObjectStreamHeader(ctx context.Context, st *raw.StreamObj) (*objStmHeader, error) {
	data, err := o.file.pipeline.DecodeStream(ctx, st)
	if err != nil {
		return nil, err
	}
	n, _ := st.Dict.Int("N")
	first, _ := st.Dict.Int("First")
	if first < 0 || first > int64(len(data)) {
		return nil, errors.New("/First exceeds stream length")
	}
	rd := scanner.NewReader(scanner.New(data[:first], scanner.Config{}), nil)
	h := &objStmHeader{body: data[first:]}
	for i := int64(0); i < n; i++ {
		numTok, err1 := rd.Next()
		offTok, err2 := rd.Next()
		if err1 != nil || err2 != nil || numTok.Type != scanner.TokenNumber || offTok.Type != scanner.TokenNumber {
			break
		}
		h.nums = append(h.nums, int(numTok.Int))
		h.offsets = append(h.offsets, int(offTok.Int))
	}
	return h, nil
}

func (o *objectLoader) objectStreamMembers(ctx context.Context, st *raw.StreamObj) ([]int, error) {
	h, err := o.readObjectStreamHeader(ctx, st)
	if err != nil {
		return nil, err
	}
	return h.nums, nil
}

// parseObjectStream reads every member of st. Members are not decrypted
// individually; the containing stream already was.
func (o *objectLoader) parseObjectStream(ctx context.Context, st *raw.StreamObj) (map[int]raw.Object, error) {
	h, err := o.readObjectStreamHeader(ctx, st)
	if err != nil {
		return nil, err
	}
	objs := make(map[int]raw.Object, len(h.nums))
	rd := scanner.NewReader(scanner.New(h.body, scanner.Config{Recovery: o.recovery}), o.recovery)
	for i, num := range h.nums {
		if err := rd.SeekTo(int64(h.offsets[i])); err != nil {
			return nil, err
		}
		obj, err := rd.ReadObject()
		if err != nil {
			return nil, fmt.Errorf("member %d: %w", num, err)
		}
		if _, dup := objs[num]; !dup {
			objs[num] = obj
		}
	}
	return objs, nil
}

func (o *objectLoader) decryptObject(ref raw.ObjectRef, obj raw.Object) (raw.Object, error) {
	sec := o.file.Security
	if !sec.IsEncrypted() {
		return obj, nil
	}
	if o.file.EncryptRef != nil && *o.file.EncryptRef == ref {
		return obj, nil
	}
	return o.decryptValue(sec, ref, obj)
}

func (o *objectLoader) decryptValue(sec security.Handler, ref raw.ObjectRef, obj raw.Object) (raw.Object, error) {
	switch v := obj.(type) {
	case raw.StringObj:
		dec, err := sec.Decrypt(ref.Num, ref.Gen, v.Bytes, security.DataClassString)
		if err != nil {
			return nil, err
		}
		return raw.StringObj{Bytes: dec, Hex: v.Hex}, nil
	case *raw.ArrayObj:
		for i, item := range v.Items {
			dec, err := o.decryptValue(sec, ref, item)
			if err != nil {
				return nil, err
			}
			v.Items[i] = dec
		}
		return v, nil
	case *raw.DictObj:
		for key, item := range v.KV {
			dec, err := o.decryptValue(sec, ref, item)
			if err != nil {
				return nil, err
			}
			v.KV[key] = dec
		}
		return v, nil
	case *raw.StreamObj:
		if typ, _ := v.Dict.Name("Type"); typ == "XRef" {
			return v, nil
		}
		if _, err := o.decryptValue(sec, ref, v.Dict); err != nil {
			return nil, err
		}
		class := security.DataClassStream
		if typ, _ := v.Dict.Name("Type"); typ == "Metadata" {
			class = security.DataClassMetadataStream
		}
		dec, err := sec.DecryptWithFilter(ref.Num, ref.Gen, v.Data, class, cryptFilterName(v.Dict))
		if err != nil {
			return nil, err
		}
		v.Data = dec
		v.Dict.Set("Length", raw.NumberInt(int64(len(dec))))
		return v, nil
	}
	return obj, nil
}

// cryptFilterName returns the /Name of a /Crypt filter in d's chain, or ""
// when the stream uses the document default.
func cryptFilterName(d *raw.DictObj) string {
	names, params := filters.ExtractFilters(d)
	for i, name := range names {
		if name != "Crypt" {
			continue
		}
		if params[i] != nil {
			if n, ok := params[i].Name("Name"); ok {
				return n
			}
		}
		return "Identity"
	}
	return ""
}
