package errs

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestSentinelMatching(t *testing.T) {
	err := Wrap(IO, "open", "/tmp/x.pdf", os.ErrNotExist)
	if !errors.Is(err, ErrIO) {
		t.Fatalf("expected IO match, got %v", err)
	}
	if errors.Is(err, ErrOutOfRange) {
		t.Fatalf("unexpected OutOfRange match")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("cause should stay reachable")
	}
	wrapped := fmt.Errorf("box 2: %w", err)
	if CodeOf(wrapped) != IO {
		t.Fatalf("CodeOf = %q", CodeOf(wrapped))
	}
}

func TestWrapKeepsInnermostCode(t *testing.T) {
	inner := New(OutOfRange, "page", "index %d of %d", 5, 2)
	outer := Wrap(IO, "blackout", "a.pdf", fmt.Errorf("load: %w", inner))
	if CodeOf(outer) != OutOfRange {
		t.Fatalf("expected OutOfRange, got %q", CodeOf(outer))
	}
	if Wrap(IO, "op", "", nil) != nil {
		t.Fatalf("nil cause must stay nil")
	}
}

func TestErrorString(t *testing.T) {
	err := New(InvalidArgument, "parse", "token %q", "abc")
	if got := err.Error(); got != `parse: INVALID_ARGUMENT: token "abc"` {
		t.Fatalf("Error() = %q", got)
	}
}
