package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/wudi/blackout/ir/raw"
	"github.com/wudi/blackout/recovery"
)

// Reader assembles scanner tokens into raw objects.
type Reader struct {
	s   *Scanner
	buf []Token
	rec recovery.Strategy
}

func NewReader(s *Scanner, rec recovery.Strategy) *Reader {
	return &Reader{s: s, rec: rec}
}

func (r *Reader) Scanner() *Scanner { return r.s }

func (r *Reader) Next() (Token, error) {
	if l := len(r.buf); l > 0 {
		t := r.buf[l-1]
		r.buf = r.buf[:l-1]
		return t, nil
	}
	return r.s.Next()
}

func (r *Reader) Unread(tok Token) { r.buf = append(r.buf, tok) }

// SeekTo repositions the underlying scanner and drops any unread tokens.
func (r *Reader) SeekTo(off int64) error {
	r.buf = r.buf[:0]
	return r.s.SeekTo(off)
}

// ReadObject parses one direct object.
func (r *Reader) ReadObject() (raw.Object, error) {
	tok, err := r.Next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case TokenName:
		return raw.NameObj{Val: tok.Str}, nil
	case TokenNumber:
		if tok.IsInt {
			return raw.NumberInt(tok.Int), nil
		}
		return raw.NumberFloat(tok.Float), nil
	case TokenBoolean:
		return raw.Bool(tok.Bool), nil
	case TokenNull:
		return raw.NullObj{}, nil
	case TokenString:
		return raw.StringObj{Bytes: tok.Bytes, Hex: tok.Hex}, nil
	case TokenArray:
		return r.readArray()
	case TokenDict:
		return r.readDict()
	case TokenRef:
		return raw.Ref(int(tok.Int), tok.Gen), nil
	}
	return nil, fmt.Errorf("unexpected token %q at offset %d", tok.Str, tok.Pos)
}

func (r *Reader) readArray() (raw.Object, error) {
	arr := &raw.ArrayObj{}
	for {
		tok, err := r.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type == TokenKeyword && tok.Str == "]" {
			return arr, nil
		}
		if tok.Type == TokenKeyword && tok.Str == "endobj" {
			if err := r.recover(errors.New("unexpected endobj in array (missing ]?)"), tok.Pos); err != nil {
				return nil, err
			}
			r.Unread(tok)
			return arr, nil
		}
		r.Unread(tok)
		item, err := r.ReadObject()
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
}

func (r *Reader) readDict() (raw.Object, error) {
	d := raw.Dict()
	for {
		tok, err := r.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type == TokenKeyword && tok.Str == ">>" {
			return d, nil
		}
		if tok.Type != TokenName {
			if tok.Type == TokenKeyword && (tok.Str == "endobj" || tok.Str == "stream") {
				if err := r.recover(errors.New("unexpected "+tok.Str+" in dict (missing >>?)"), tok.Pos); err != nil {
					return nil, err
				}
				r.Unread(tok)
				return d, nil
			}
			return nil, fmt.Errorf("expected name in dict at offset %d", tok.Pos)
		}
		val, err := r.ReadObject()
		if err != nil {
			return nil, err
		}
		if _, isNull := val.(raw.NullObj); isNull {
			continue
		}
		d.Set(tok.Str, val)
	}
}

// ReadIndirect reads "num gen obj ... endobj" starting at the current
// position. length resolves a stream's /Length; it returns -1 when unknown.
func (r *Reader) ReadIndirect(length func(*raw.DictObj) int64) (raw.ObjectRef, raw.Object, error) {
	var ref raw.ObjectRef
	numTok, err := r.Next()
	if err != nil {
		return ref, nil, err
	}
	genTok, err := r.Next()
	if err != nil {
		return ref, nil, err
	}
	objTok, err := r.Next()
	if err != nil {
		return ref, nil, err
	}
	if numTok.Type != TokenNumber || !numTok.IsInt || genTok.Type != TokenNumber || !genTok.IsInt ||
		objTok.Type != TokenKeyword || objTok.Str != "obj" {
		return ref, nil, fmt.Errorf("expected object header at offset %d", numTok.Pos)
	}
	ref = raw.ObjectRef{Num: int(numTok.Int), Gen: int(genTok.Int)}
	r.s.SetRecoveryLocation(recovery.Location{ObjectNum: ref.Num, ObjectGen: ref.Gen, Component: "object"})
	defer r.s.SetRecoveryLocation(recovery.Location{})

	obj, err := r.ReadObject()
	if err != nil {
		return ref, nil, fmt.Errorf("object %d %d: %w", ref.Num, ref.Gen, err)
	}
	if dict, ok := obj.(*raw.DictObj); ok && len(r.buf) == 0 {
		n := int64(-1)
		if length != nil {
			n = length(dict)
		}
		r.s.SetNextStreamLength(n)
		tok, err := r.Next()
		r.s.SetNextStreamLength(-1)
		switch {
		case err == nil && tok.Type == TokenStream:
			obj = raw.NewStream(dict, tok.Bytes)
		case err == nil:
			r.Unread(tok)
		case !errors.Is(err, io.EOF):
			return ref, nil, fmt.Errorf("object %d %d: %w", ref.Num, ref.Gen, err)
		}
	}
	tok, err := r.Next()
	if err != nil || tok.Type != TokenKeyword || tok.Str != "endobj" {
		if recErr := r.recover(errors.New("missing endobj"), r.s.Position()); recErr != nil {
			return ref, nil, fmt.Errorf("object %d %d: %w", ref.Num, ref.Gen, recErr)
		}
		if err == nil {
			r.Unread(tok)
		}
	}
	return ref, obj, nil
}

func (r *Reader) recover(err error, pos int64) error {
	if r.rec == nil {
		return err
	}
	loc := r.s.recLoc
	loc.ByteOffset = pos
	if loc.Component == "" {
		loc.Component = "parser"
	}
	if r.rec.OnError(context.Background(), err, loc).Continue() {
		return nil
	}
	return err
}
