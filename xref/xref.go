// Package xref locates objects in a PDF file by walking its cross-reference
// sections from the last startxref back through /Prev.
package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/wudi/blackout/filters"
	"github.com/wudi/blackout/ir/raw"
	"github.com/wudi/blackout/observability"
	"github.com/wudi/blackout/recovery"
	"github.com/wudi/blackout/scanner"
)

type EntryKind int

const (
	Free EntryKind = iota
	InUse
	Compressed
)

// Entry locates one object. Offset is set for InUse entries; Stream and
// Index for Compressed ones.
type Entry struct {
	Kind   EntryKind
	Offset int64
	Gen    int
	Stream int
	Index  int
}

// SectionKind is the syntax of a cross-reference section.
type SectionKind int

const (
	SectionTable SectionKind = iota
	SectionStream
)

func (k SectionKind) String() string {
	if k == SectionStream {
		return "stream"
	}
	return "table"
}

// Table is the merged view of every section; newer sections win.
type Table struct {
	entries map[int]Entry
	// Trailer is the newest trailer with /Root, /Info, /ID and /Encrypt
	// inherited from older ones when missing.
	Trailer *raw.DictObj
	// StartXRef is the offset of the newest section, or -1 after repair.
	StartXRef int64
	// Kind is the syntax of the newest section.
	Kind     SectionKind
	Repaired bool
	Sections int
}

func newTable() *Table {
	return &Table{entries: make(map[int]Entry), StartXRef: -1}
}

func (t *Table) Lookup(objNum int) (Entry, bool) {
	e, ok := t.entries[objNum]
	return e, ok
}

// Add records e unless objNum already has an entry.
func (t *Table) Add(objNum int, e Entry) bool {
	if _, ok := t.entries[objNum]; ok {
		return false
	}
	t.entries[objNum] = e
	return true
}

// Objects lists the numbers of all objects that are not free, ascending.
func (t *Table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k, e := range t.entries {
		if e.Kind != Free {
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}

// Size is one past the highest object number known to the table.
func (t *Table) Size() int {
	size := 0
	if t.Trailer != nil {
		if n, ok := t.Trailer.Int("Size"); ok {
			size = int(n)
		}
	}
	for k := range t.entries {
		if k+1 > size {
			size = k + 1
		}
	}
	return size
}

type ResolverConfig struct {
	MaxXRefDepth int
	Recovery     recovery.Strategy
	Pipeline     *filters.Pipeline
	Logger       observability.Logger
}

type Resolver struct {
	cfg ResolverConfig
}

func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.MaxXRefDepth <= 0 {
		cfg.MaxXRefDepth = 64
	}
	if cfg.Pipeline == nil {
		cfg.Pipeline = filters.DefaultPipeline(filters.Limits{})
	}
	cfg.Logger = observability.Or(cfg.Logger)
	return &Resolver{cfg: cfg}
}

// Resolve reads the cross-reference chain of data. When the chain is
// unreadable and the recovery strategy allows it, the table is rebuilt by
// scanning the whole file.
func (r *Resolver) Resolve(ctx context.Context, data []byte) (*Table, error) {
	t, err := r.resolveChain(ctx, data)
	if err == nil {
		return t, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if r.cfg.Recovery == nil || !r.cfg.Recovery.OnError(ctx, err, recovery.Location{Component: "xref"}).Continue() {
		return nil, err
	}
	r.cfg.Logger.Warn("rebuilding cross-reference table", observability.Error("cause", err))
	return Repair(ctx, data)
}

var inheritedKeys = []string{"Root", "Info", "ID", "Encrypt"}

func (r *Resolver) resolveChain(ctx context.Context, data []byte) (*Table, error) {
	start, err := findStartXRef(data)
	if err != nil {
		return nil, err
	}
	t := newTable()
	t.StartXRef = start
	visited := make(map[int64]bool)
	for off := start; ; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if visited[off] {
			r.cfg.Logger.Warn("xref /Prev loop", observability.Int64("offset", off))
			break
		}
		visited[off] = true
		if t.Sections >= r.cfg.MaxXRefDepth {
			return nil, fmt.Errorf("xref chain deeper than %d sections", r.cfg.MaxXRefDepth)
		}
		sec, err := r.readSection(ctx, data, off)
		if err != nil {
			return nil, err
		}
		if t.Sections == 0 {
			t.Kind = sec.kind
			t.Trailer = raw.Clone(sec.trailer).(*raw.DictObj)
		} else {
			for _, k := range inheritedKeys {
				if _, ok := t.Trailer.Get(k); !ok {
					if v, ok := sec.trailer.Get(k); ok {
						t.Trailer.Set(k, raw.Clone(v))
					}
				}
			}
		}
		t.Sections++
		for num, e := range sec.entries {
			t.Add(num, e)
		}
		if stm, ok := sec.trailer.Int("XRefStm"); ok && sec.kind == SectionTable && !visited[stm] {
			visited[stm] = true
			hybrid, err := r.readSection(ctx, data, stm)
			if err != nil {
				return nil, fmt.Errorf("XRefStm: %w", err)
			}
			for num, e := range hybrid.entries {
				t.Add(num, e)
			}
		}
		prev, ok := sec.trailer.Int("Prev")
		if !ok {
			break
		}
		off = prev
	}
	if _, ok := t.Trailer.Get("Root"); !ok {
		return nil, errors.New("trailer has no /Root")
	}
	return t, nil
}

func findStartXRef(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, errors.New("startxref not found")
	}
	rest := bytes.TrimLeft(data[idx+len("startxref"):], " \t\r\n\f\x00")
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	off, err := strconv.ParseInt(string(rest[:end]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse startxref: %w", err)
	}
	if off <= 0 || off >= int64(len(data)) {
		return 0, fmt.Errorf("xref offset out of range: %d", off)
	}
	return off, nil
}

type section struct {
	kind    SectionKind
	entries map[int]Entry
	trailer *raw.DictObj
}

func (r *Resolver) readSection(ctx context.Context, data []byte, off int64) (*section, error) {
	if off < 0 || off >= int64(len(data)) {
		return nil, fmt.Errorf("xref offset out of range: %d", off)
	}
	rd := scanner.NewReader(scanner.New(data, scanner.Config{}), nil)
	if err := rd.SeekTo(off); err != nil {
		return nil, err
	}
	tok, err := rd.Next()
	if err != nil {
		return nil, fmt.Errorf("xref at %d: %w", off, err)
	}
	if tok.Type == scanner.TokenKeyword && tok.Str == "xref" {
		return parseTableSection(rd, off)
	}
	rd.Unread(tok)
	return r.parseStreamSection(ctx, rd, off)
}

func parseTableSection(rd *scanner.Reader, off int64) (*section, error) {
	sec := &section{kind: SectionTable, entries: make(map[int]Entry)}
	for {
		tok, err := rd.Next()
		if err != nil {
			return nil, fmt.Errorf("xref table at %d: %w", off, err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			break
		}
		countTok, err := rd.Next()
		if err != nil || tok.Type != scanner.TokenNumber || countTok.Type != scanner.TokenNumber {
			return nil, fmt.Errorf("invalid xref subsection header at %d", tok.Pos)
		}
		start, count := int(tok.Int), int(countTok.Int)
		for i := 0; i < count; i++ {
			offTok, err1 := rd.Next()
			genTok, err2 := rd.Next()
			kindTok, err3 := rd.Next()
			if err := errors.Join(err1, err2, err3); err != nil {
				return nil, fmt.Errorf("unexpected end of xref section: %w", err)
			}
			if offTok.Type != scanner.TokenNumber || genTok.Type != scanner.TokenNumber || kindTok.Type != scanner.TokenKeyword {
				return nil, fmt.Errorf("invalid xref entry at %d", offTok.Pos)
			}
			// Some writers start the first subsection at 1 while still
			// listing the free head of object 0.
			if i == 0 && start == 1 && kindTok.Str == "f" && genTok.Int == 65535 {
				start = 0
			}
			num := start + i
			if _, dup := sec.entries[num]; dup {
				continue
			}
			switch kindTok.Str {
			case "n":
				sec.entries[num] = Entry{Kind: InUse, Offset: offTok.Int, Gen: int(genTok.Int)}
			case "f":
				sec.entries[num] = Entry{Kind: Free, Gen: int(genTok.Int)}
			default:
				return nil, fmt.Errorf("invalid xref entry type %q", kindTok.Str)
			}
		}
	}
	obj, err := rd.ReadObject()
	if err != nil {
		return nil, fmt.Errorf("trailer: %w", err)
	}
	trailer, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, errors.New("trailer is not a dictionary")
	}
	sec.trailer = trailer
	return sec, nil
}

func (r *Resolver) parseStreamSection(ctx context.Context, rd *scanner.Reader, off int64) (*section, error) {
	_, obj, err := rd.ReadIndirect(func(d *raw.DictObj) int64 {
		if n, ok := d.Int("Length"); ok {
			return n
		}
		return -1
	})
	if err != nil {
		return nil, fmt.Errorf("xref stream at %d: %w", off, err)
	}
	st, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, fmt.Errorf("no xref section at offset %d", off)
	}
	if typ, _ := st.Dict.Name("Type"); typ != "XRef" {
		return nil, fmt.Errorf("object at %d is not an xref stream", off)
	}
	payload, err := r.cfg.Pipeline.DecodeStream(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("xref stream at %d: %w", off, err)
	}
	entries, err := decodeStreamEntries(st.Dict, payload)
	if err != nil {
		return nil, fmt.Errorf("xref stream at %d: %w", off, err)
	}
	return &section{kind: SectionStream, entries: entries, trailer: st.Dict}, nil
}

func decodeStreamEntries(d *raw.DictObj, payload []byte) (map[int]Entry, error) {
	wObj, _ := d.Get("W")
	wArr, ok := wObj.(*raw.ArrayObj)
	if !ok || wArr.Len() != 3 {
		return nil, errors.New("xref stream /W must have three widths")
	}
	var w [3]int
	for i, item := range wArr.Items {
		n, ok := raw.Float(item)
		if !ok || n < 0 || n > 8 {
			return nil, errors.New("invalid /W entry")
		}
		w[i] = int(n)
	}
	size, _ := d.Int("Size")
	index := []int{0, int(size)}
	if idxObj, ok := d.Get("Index"); ok {
		arr, ok := idxObj.(*raw.ArrayObj)
		if !ok || arr.Len()%2 != 0 {
			return nil, errors.New("invalid /Index")
		}
		index = index[:0]
		for _, item := range arr.Items {
			n, _ := raw.Float(item)
			index = append(index, int(n))
		}
	}
	rowLen := w[0] + w[1] + w[2]
	if rowLen == 0 {
		return nil, errors.New("xref stream /W is all zero")
	}
	entries := make(map[int]Entry)
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		start, count := index[i], index[i+1]
		for j := 0; j < count; j++ {
			if pos+rowLen > len(payload) {
				return entries, nil
			}
			row := payload[pos : pos+rowLen]
			pos += rowLen
			typ := int64(1)
			if w[0] > 0 {
				typ = readField(row[:w[0]])
			}
			f2 := readField(row[w[0] : w[0]+w[1]])
			f3 := readField(row[w[0]+w[1]:])
			num := start + j
			if _, dup := entries[num]; dup {
				continue
			}
			switch typ {
			case 0:
				entries[num] = Entry{Kind: Free, Gen: int(f3)}
			case 1:
				entries[num] = Entry{Kind: InUse, Offset: f2, Gen: int(f3)}
			case 2:
				entries[num] = Entry{Kind: Compressed, Stream: int(f2), Index: int(f3)}
			}
		}
	}
	return entries, nil
}

func readField(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}
