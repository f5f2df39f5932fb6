package observability

import (
	"errors"
	"testing"
)

func TestRecorderWithSharesEntries(t *testing.T) {
	rec := NewRecorder()
	child := rec.With(String("path", "a.pdf"))
	child.Warn("truncated", Int("dropped", 3))
	rec.Info("done")

	entries := rec.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	e, ok := rec.Find("truncated")
	if !ok {
		t.Fatalf("truncated entry missing")
	}
	if e.Level != "warn" || e.Fields["path"] != "a.pdf" || e.Fields["dropped"] != 3 {
		t.Fatalf("unexpected entry: %v", e)
	}
}

func TestKeyVals(t *testing.T) {
	err := errors.New("boom")
	kv := KeyVals([]Field{String("a", "b"), Float64("zoom", 2), Error("err", err)})
	if len(kv) != 6 || kv[0] != "a" || kv[3] != 2.0 || kv[5] != err {
		t.Fatalf("KeyVals = %v", kv)
	}
}

func TestOrNil(t *testing.T) {
	l := Or(nil)
	l.Info("ignored")
	if _, ok := l.(NopLogger); !ok {
		t.Fatalf("Or(nil) should be NopLogger")
	}
}
