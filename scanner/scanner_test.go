package scanner

import (
	"bytes"
	"io"
	"testing"

	"github.com/wudi/blackout/ir/raw"
	"github.com/wudi/blackout/recovery"
)

func nextToken(t *testing.T, s *Scanner) Token {
	t.Helper()
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tok
}

func TestScanner_BasicTokens(t *testing.T) {
	s := New([]byte("%PDF-1.7\n1 0 obj\n<< /Name /Value /Nums [1 -2.5 3] /Flag true /Null null /R 12 0 R >>\nendobj"), Config{})

	tok := nextToken(t, s)
	if tok.Type != TokenNumber || !tok.IsInt || tok.Int != 1 {
		t.Fatalf("expected first token number 1, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenNumber || tok.Int != 0 {
		t.Fatalf("expected generation number 0, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenKeyword || tok.Str != "obj" {
		t.Fatalf("expected obj keyword, got %+v", tok)
	}
	want := []struct {
		typ TokenType
		str string
	}{
		{TokenDict, "<<"}, {TokenName, "Name"}, {TokenName, "Value"}, {TokenName, "Nums"},
		{TokenArray, "["},
	}
	for _, w := range want {
		tok = nextToken(t, s)
		if tok.Type != w.typ || tok.Str != w.str {
			t.Fatalf("expected %v %q, got %+v", w.typ, w.str, tok)
		}
	}
	if tok = nextToken(t, s); tok.Type != TokenNumber || tok.Int != 1 {
		t.Fatalf("expected 1, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenNumber || tok.IsInt || tok.Float != -2.5 {
		t.Fatalf("expected -2.5, got %+v", tok)
	}
	nextToken(t, s) // 3
	nextToken(t, s) // ]
	nextToken(t, s) // /Flag
	if tok = nextToken(t, s); tok.Type != TokenBoolean || !tok.Bool {
		t.Fatalf("expected true, got %+v", tok)
	}
	nextToken(t, s) // /Null
	if tok = nextToken(t, s); tok.Type != TokenNull {
		t.Fatalf("expected null, got %+v", tok)
	}
	nextToken(t, s) // /R
	if tok = nextToken(t, s); tok.Type != TokenRef || tok.Int != 12 || tok.Gen != 0 {
		t.Fatalf("expected ref 12 0 R, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Str != ">>" {
		t.Fatalf("expected >>, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Str != "endobj" {
		t.Fatalf("expected endobj, got %+v", tok)
	}
	if _, err := s.Next(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestScanner_Strings(t *testing.T) {
	cases := []struct {
		in   string
		want []byte
		hex  bool
	}{
		{`(a\(b\)c)`, []byte("a(b)c"), false},
		{`(nested (parens) ok)`, []byte("nested (parens) ok"), false},
		{`(\101\102\7)`, []byte{'A', 'B', 7}, false},
		{"(line\\\ncontinued)", []byte("linecontinued"), false},
		{`<48 65 6C6C 6F>`, []byte("Hello"), true},
		{`<ABC>`, []byte{0xAB, 0xC0}, true},
	}
	for _, tc := range cases {
		tok := nextToken(t, New([]byte(tc.in), Config{}))
		if tok.Type != TokenString || !bytes.Equal(tok.Bytes, tc.want) || tok.Hex != tc.hex {
			t.Errorf("%s: got %+v", tc.in, tok)
		}
	}
}

func TestScanner_NameEscapes(t *testing.T) {
	tok := nextToken(t, New([]byte("/A#20B#2Fc"), Config{}))
	if tok.Type != TokenName || tok.Str != "A B/c" {
		t.Fatalf("got %+v", tok)
	}
}

func TestReader_IndirectStreamWithLength(t *testing.T) {
	data := []byte("7 0 obj\n<< /Length 10 >>\nstream\nendstreamX\nendstream\nendobj\n")
	r := NewReader(New(data, Config{}), nil)
	ref, obj, err := r.ReadIndirect(func(d *raw.DictObj) int64 {
		n, _ := d.Int("Length")
		return n
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if ref.Num != 7 {
		t.Fatalf("ref = %v", ref)
	}
	st, ok := obj.(*raw.StreamObj)
	if !ok || string(st.Data) != "endstreamX" {
		t.Fatalf("stream = %#v", obj)
	}
}

func TestReader_IndirectStreamWithoutLength(t *testing.T) {
	data := []byte("3 0 obj\n<< >>\nstream\r\nq 1 0 0 1 0 0 cm Q\r\nendstream\nendobj\n")
	r := NewReader(New(data, Config{}), nil)
	_, obj, err := r.ReadIndirect(nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if st := obj.(*raw.StreamObj); string(st.Data) != "q 1 0 0 1 0 0 cm Q" {
		t.Fatalf("payload = %q", st.Data)
	}
}

func TestReader_MissingDictCloseNeedsRecovery(t *testing.T) {
	data := []byte("1 0 obj\n<< /Type /Catalog /Pages 2 0 R\nendobj\n")
	if _, _, err := NewReader(New(data, Config{}), recovery.NewStrictStrategy()).ReadIndirect(nil); err == nil {
		t.Fatalf("strict reader should fail")
	}
	_, obj, err := NewReader(New(data, Config{}), recovery.NewLenientStrategy(nil)).ReadIndirect(nil)
	if err != nil {
		t.Fatalf("lenient reader: %v", err)
	}
	d := obj.(*raw.DictObj)
	if ref, ok := d.Ref("Pages"); !ok || ref.Num != 2 {
		t.Fatalf("Pages = %v", ref)
	}
}
