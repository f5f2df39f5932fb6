package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/wudi/blackout/filters"
	"github.com/wudi/blackout/ir/raw"
	"github.com/wudi/blackout/recovery"
	"github.com/wudi/blackout/xref"
)

type pdfBuilder struct {
	buf     bytes.Buffer
	offsets map[int]int
}

func newPDFBuilder() *pdfBuilder {
	b := &pdfBuilder{offsets: make(map[int]int)}
	b.buf.WriteString("%PDF-1.6\n%\xe2\xe3\xcf\xd3\n")
	return b
}

func (b *pdfBuilder) obj(num int, body string) {
	b.offsets[num] = b.buf.Len()
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

func (b *pdfBuilder) finish(size int, trailer string) []byte {
	xrefOff := b.buf.Len()
	fmt.Fprintf(&b.buf, "xref\n0 %d\n0000000000 65535 f \n", size)
	for i := 1; i < size; i++ {
		if off, ok := b.offsets[i]; ok {
			fmt.Fprintf(&b.buf, "%010d 00000 n \n", off)
		} else {
			b.buf.WriteString("0000000000 00000 f \n")
		}
	}
	fmt.Fprintf(&b.buf, "trailer\n<< /Size %d %s >>\nstartxref\n%d\n%%%%EOF\n", size, trailer, xrefOff)
	return b.buf.Bytes()
}

func TestParseClassicXRef(t *testing.T) {
	b := newPDFBuilder()
	b.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.obj(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	data := b.finish(3, "/Root 1 0 R")

	f, err := Parse(context.Background(), data, Config{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Version != "1.6" {
		t.Fatalf("version = %q", f.Version)
	}
	root, _ := f.Trailer.Get("Root")
	cat, err := f.Resolve(context.Background(), root)
	if err != nil {
		t.Fatalf("resolve root: %v", err)
	}
	if typ, _ := cat.(*raw.DictObj).Name("Type"); typ != "Catalog" {
		t.Fatalf("root type = %q", typ)
	}
	if refs := f.Refs(); len(refs) != 2 {
		t.Fatalf("refs = %v", refs)
	}
	if f.Encrypted() {
		t.Fatalf("plain file reported as encrypted")
	}
}

func TestLoadMissingObjectIsNull(t *testing.T) {
	b := newPDFBuilder()
	b.obj(1, "<< /Type /Catalog >>")
	f, err := Parse(context.Background(), b.finish(2, "/Root 1 0 R"), Config{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	obj, err := f.Load(context.Background(), raw.ObjectRef{Num: 40})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := obj.(raw.NullObj); !ok {
		t.Fatalf("expected null, got %#v", obj)
	}
}

func TestStreamWithIndirectLength(t *testing.T) {
	b := newPDFBuilder()
	b.obj(1, "<< /Type /Catalog >>")
	// The payload contains "endstream" so only /Length finds the real end.
	payload := "BT (endstream) Tj ET"
	b.obj(2, "<< /Length 3 0 R >>\nstream\n"+payload+"\nendstream")
	b.obj(3, fmt.Sprintf("%d", len(payload)))
	f, err := Parse(context.Background(), b.finish(4, "/Root 1 0 R"), Config{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	obj, err := f.Load(context.Background(), raw.ObjectRef{Num: 2})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if st := obj.(*raw.StreamObj); string(st.Data) != payload {
		t.Fatalf("payload = %q", st.Data)
	}
}

func objectStreamPDF(t *testing.T, withXRef bool) []byte {
	t.Helper()
	members := []string{"<< /Type /Catalog /Pages 3 0 R >>", "<< /Type /Pages /Kids [] /Count 0 >>"}
	header := fmt.Sprintf("1 0 3 %d ", len(members[0])+1)
	body := header + members[0] + " " + members[1]
	enc, err := filters.FlateEncode([]byte(body), 0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	off2 := buf.Len()
	fmt.Fprintf(&buf, "2 0 obj\n<< /Type /ObjStm /N 2 /First %d /Filter /FlateDecode /Length %d >>\nstream\n", len(header), len(enc))
	buf.Write(enc)
	buf.WriteString("\nendstream\nendobj\n")
	if !withXRef {
		buf.WriteString("%%EOF\n")
		return buf.Bytes()
	}
	xrefOff := buf.Len()
	rows := []byte{
		0, 0, 0, 0, 0xFF,
		2, 0, 0, 2, 0,
		1, 0, 0, byte(off2 >> 8), byte(off2),
		2, 0, 0, 2, 1,
		1, 0, 0, byte(xrefOff >> 8), byte(xrefOff),
	}
	fmt.Fprintf(&buf, "4 0 obj\n<< /Type /XRef /Size 5 /Root 1 0 R /W [1 3 1] /Length %d >>\nstream\n", len(rows))
	buf.Write(rows)
	fmt.Fprintf(&buf, "\nendstream\nendobj\nstartxref\n%d\n%%%%EOF\n", xrefOff)
	return buf.Bytes()
}

func TestObjectStreamMembers(t *testing.T) {
	f, err := Parse(context.Background(), objectStreamPDF(t, true), Config{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.XRef.Kind != xref.SectionStream {
		t.Fatalf("expected xref stream")
	}
	obj, err := f.Load(context.Background(), raw.ObjectRef{Num: 3})
	if err != nil {
		t.Fatalf("load 3: %v", err)
	}
	if n, _ := obj.(*raw.DictObj).Int("Count"); n != 0 {
		t.Fatalf("pages dict = %#v", obj)
	}
}

func TestRepairFindsCatalogInObjectStream(t *testing.T) {
	data := objectStreamPDF(t, false)
	if _, err := Parse(context.Background(), data, Config{}); err == nil {
		t.Fatalf("expected failure without recovery")
	}
	f, err := Parse(context.Background(), data, Config{Recovery: recovery.NewLenientStrategy(nil)})
	if err != nil {
		t.Fatalf("lenient parse: %v", err)
	}
	if ref, ok := f.Trailer.Ref("Root"); !ok || ref.Num != 1 {
		t.Fatalf("Root = %v %v", ref, ok)
	}
	if e, ok := f.XRef.Lookup(3); !ok || e.Kind != xref.Compressed || e.Stream != 2 {
		t.Fatalf("entry 3 = %+v", e)
	}
}

func TestMissingHeaderIsAnError(t *testing.T) {
	b := newPDFBuilder()
	b.obj(1, "<< /Type /Catalog >>")
	data := b.finish(2, "/Root 1 0 R")
	data = bytes.Replace(data, []byte("%PDF-1.6"), []byte("%XYZ-1.6"), 1)
	if _, err := Parse(context.Background(), data, Config{}); err == nil {
		t.Fatalf("expected header error")
	}
}

func TestCancelledContext(t *testing.T) {
	b := newPDFBuilder()
	b.obj(1, "<< /Type /Catalog >>")
	data := b.finish(2, "/Root 1 0 R")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Parse(ctx, data, Config{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
