package boxes

import (
	"errors"
	"reflect"
	"testing"

	"github.com/wudi/blackout/coords"
	"github.com/wudi/blackout/errs"
)

func TestParseCSV(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    List
		dropped int
	}{
		{"one box", "0,0,100,50", List{coords.NewRect(0, 0, 100, 50)}, 0},
		{"two boxes keep order", " 1, 2,3,4 ,5,6,7,8", List{coords.NewRect(1, 2, 3, 4), coords.NewRect(5, 6, 7, 8)}, 0},
		{"remainder dropped", "1,2,3,4,5,6", List{coords.NewRect(1, 2, 3, 4)}, 2},
		{"fewer than four", "1,2,3", List{}, 3},
		{"empty fields ignored", ",,1,,2,3,4,", List{coords.NewRect(1, 2, 3, 4)}, 0},
		{"unordered corners kept", "50,60,10,20", List{coords.NewRect(50, 60, 10, 20)}, 0},
		{"floats and exponents", "0.5,-1,1e2,2.25", List{coords.NewRect(0.5, -1, 100, 2.25)}, 0},
		{"empty", "", List{}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseCSV(tc.in)
			if err != nil {
				t.Fatalf("ParseCSV: %v", err)
			}
			if !reflect.DeepEqual(got.Boxes, tc.want) {
				t.Fatalf("boxes = %v want %v", got.Boxes, tc.want)
			}
			if len(got.Dropped) != tc.dropped {
				t.Fatalf("dropped = %v", got.Dropped)
			}
			trunc := got.Truncation()
			if (trunc != nil) != (tc.dropped > 0) {
				t.Fatalf("truncation = %v", trunc)
			}
			if trunc != nil && !errors.Is(trunc, errs.ErrTruncation) {
				t.Fatalf("truncation code = %v", errs.CodeOf(trunc))
			}
			if got.Empty() != (len(tc.want) == 0) {
				t.Fatalf("Empty() = %v", got.Empty())
			}
		})
	}
}

func TestParseCSVRejectsNonNumbers(t *testing.T) {
	if _, err := ParseCSV("1,2,three,4"); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("err = %v", err)
	}
}

func TestParseLiteral(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want List
	}{
		{"wrapped", `[{"boxes": [[10, 20, 30, 40], [1.5, 2, 3, 4]]}]`, List{coords.NewRect(10, 20, 30, 40), coords.NewRect(1.5, 2, 3, 4)}},
		{"single quotes", `[{'boxes': [(1, 2, 3, 4)], 'page': 0}]`, List{coords.NewRect(1, 2, 3, 4)}},
		{"tuples", `[(1, 2, 3, 4), (5, 6, 7, 8),]`, List{coords.NewRect(1, 2, 3, 4), coords.NewRect(5, 6, 7, 8)}},
		{"outer tuple", `((0, 0, -5, -5),)`, List{coords.NewRect(0, 0, -5, -5)}},
		{"empty list", `[]`, List{}},
		{"whitespace", " [\n [ 1 , 2 , 3 , 4 ]\n] ", List{coords.NewRect(1, 2, 3, 4)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseLiteral(tc.in)
			if err != nil {
				t.Fatalf("ParseLiteral: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestParseLiteralRejects(t *testing.T) {
	for _, in := range []string{
		`__import__('os').system('true')`,
		`[open('x')]`,
		`[[1, 2, 3]]`,
		`[[1, 2, 3, "4"]]`,
		`[[1, 2, 3, True]]`,
		`[{"rects": [[1, 2, 3, 4]]}]`,
		`[{"boxes": 5}]`,
		`42`,
		`[[1, 2, 3, 4]`,
		`[[1, 2, 3, 4]] extra`,
		`[1 + 2]`,
		``,
	} {
		if _, err := ParseLiteral(in); !errors.Is(err, errs.ErrInvalidArgument) {
			t.Errorf("ParseLiteral(%q) err = %v, want InvalidArgument", in, err)
		}
	}
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue(`{"a": [None, true, False, 'x\ty'], 'b': (1,), 'c': (2)}`)
	if err != nil {
		t.Fatalf("ParseValue: %v", err)
	}
	m := v.(*Map)
	a, _ := m.Get("a")
	if !reflect.DeepEqual(a, Seq{nil, true, false, "x\ty"}) {
		t.Fatalf("a = %#v", a)
	}
	if b, _ := m.Get("b"); !reflect.DeepEqual(b, Tuple{1.0}) {
		t.Fatalf("b = %#v", b)
	}
	if c, _ := m.Get("c"); c != 2.0 {
		t.Fatalf("c = %#v", c)
	}
	if s, err := ParseValue(`"é\x41"`); err != nil || s != "éA" {
		t.Fatalf("escapes = %q, %v", s, err)
	}
}
