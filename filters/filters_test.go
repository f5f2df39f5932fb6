package filters

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/klauspost/compress/flate"

	"github.com/wudi/blackout/ir/raw"
)

func TestFlateRoundTrip(t *testing.T) {
	enc, err := FlateEncode([]byte("hello world"), 0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := NewFlateDecoder().Decode(context.Background(), enc, nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "hello world" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFlateDecodeRawDeflate(t *testing.T) {
	var buf bytes.Buffer
	w, _ := flate.NewWriter(&buf, flate.BestSpeed)
	w.Write([]byte("no zlib header"))
	w.Close()
	out, err := NewFlateDecoder().Decode(context.Background(), buf.Bytes(), nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "no zlib header" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFlateDecodeWithPNGPredictor(t *testing.T) {
	// Two rows of 4 columns, 1 byte per pixel: Sub on row one, Up on row two.
	rows := []byte{
		1, 10, 2, 3, 4,
		2, 1, 1, 1, 1,
	}
	enc, _ := FlateEncode(rows, 0)
	params := raw.Dict()
	params.Set("Predictor", raw.NumberInt(12))
	params.Set("Columns", raw.NumberInt(4))
	out, err := NewFlateDecoder().Decode(context.Background(), enc, params)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []byte{10, 12, 15, 19, 11, 13, 16, 20}
	if !bytes.Equal(out, want) {
		t.Fatalf("got %v want %v", out, want)
	}
}

func TestPipelineDecodeStreamChain(t *testing.T) {
	enc, _ := FlateEncode([]byte("BT ET"), 0)
	hexed := []byte{}
	for _, b := range enc {
		hexed = append(hexed, "0123456789ABCDEF"[b>>4], "0123456789ABCDEF"[b&0xF])
	}
	hexed = append(hexed, '>')
	d := raw.Dict()
	d.Set("Filter", raw.NewArray(raw.NameLiteral("ASCIIHexDecode"), raw.NameLiteral("FlateDecode")))
	out, err := DefaultPipeline(Limits{}).DecodeStream(context.Background(), raw.NewStream(d, hexed))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(out) != "BT ET" {
		t.Fatalf("got %q", out)
	}
}

func TestPipelineUnknownFilter(t *testing.T) {
	d := raw.Dict()
	d.Set("Filter", raw.NameLiteral("JBIG2Decode"))
	_, err := DefaultPipeline(Limits{}).DecodeStream(context.Background(), raw.NewStream(d, []byte{1}))
	if !errors.Is(err, ErrUnsupportedFilter) {
		t.Fatalf("expected ErrUnsupportedFilter, got %v", err)
	}
}

func TestASCII85(t *testing.T) {
	out, err := NewASCII85Decoder().Decode(context.Background(), []byte("<~87cURD]i,\"Ebo80~>"), nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(out) != "Hello World!" {
		t.Fatalf("got %q", out)
	}
}

func TestExtractFiltersAlignsParams(t *testing.T) {
	d := raw.Dict()
	d.Set("Filter", raw.NewArray(raw.NameLiteral("ASCII85Decode"), raw.NameLiteral("FlateDecode")))
	p := raw.Dict()
	p.Set("Predictor", raw.NumberInt(12))
	d.Set("DecodeParms", raw.NewArray(raw.NullObj{}, p))
	names, params := ExtractFilters(d)
	if len(names) != 2 || len(params) != 2 || params[0] != nil || params[1] != p {
		t.Fatalf("names=%v params=%v", names, params)
	}
}
