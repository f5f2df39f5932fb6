package recovery

import (
	"context"
	"errors"
	"testing"

	"github.com/wudi/blackout/observability"
)

func TestStrictFails(t *testing.T) {
	s := NewStrictStrategy()
	if a := s.OnError(context.Background(), errors.New("x"), Location{}); a != ActionFail || a.Continue() {
		t.Fatalf("strict action = %v", a)
	}
}

func TestLenientLogsAndFixes(t *testing.T) {
	rec := observability.NewRecorder()
	s := NewLenientStrategy(rec)
	a := s.OnError(context.Background(), errors.New("bad xref"), Location{Component: "xref", ByteOffset: 42})
	if a != ActionFix || !a.Continue() {
		t.Fatalf("lenient action = %v", a)
	}
	if len(s.Errors) != 1 {
		t.Fatalf("expected one recorded error, got %d", len(s.Errors))
	}
	e, ok := rec.Find("recovered from malformed input")
	if !ok || e.Fields["component"] != "xref" || e.Fields["offset"] != int64(42) {
		t.Fatalf("missing log entry: %v", rec.Entries())
	}
}

func TestLenientStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if a := NewLenientStrategy(nil).OnError(ctx, errors.New("x"), Location{}); a != ActionFail {
		t.Fatalf("expected fail on cancelled context, got %v", a)
	}
}
