// Package boxes turns user-supplied coordinate strings into rectangles.
//
// Two notations are accepted: a comma-separated list of numbers taken four
// at a time, and a structured literal such as [[x0, y0, x1, y1], ...] or
// [{"boxes": [[x0, y0, x1, y1], ...]}]. Corners are kept exactly as given:
// nothing is reordered or validated.
package boxes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wudi/blackout/coords"
	"github.com/wudi/blackout/errs"
)

// List is an ordered set of PDF-space rectangles. Order is processing order.
type List []coords.Rect

// Parsed is the result of ParseCSV.
type Parsed struct {
	Boxes List
	// Dropped holds the trailing numbers that did not complete a box.
	Dropped []float64
}

// Empty reports whether there is nothing to apply.
func (p Parsed) Empty() bool { return len(p.Boxes) == 0 }

// Truncation describes dropped numbers as an errs.Truncation error, or
// returns nil when every number was used. It is meant to be logged, not
// returned.
func (p Parsed) Truncation() error {
	if len(p.Dropped) == 0 {
		return nil
	}
	return errs.New(errs.Truncation, "parse coordinates",
		"coordinate count is not a multiple of 4; dropped %d trailing value(s) %v", len(p.Dropped), p.Dropped)
}

// ParseCSV splits raw on commas, ignores empty fields, and groups the
// numbers into boxes of four. A remainder of fewer than four numbers is
// dropped and reported through Parsed.Truncation.
func ParseCSV(raw string) (Parsed, error) {
	var nums []float64
	for i, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return Parsed{}, errs.New(errs.InvalidArgument, "parse coordinates", "field %d: %q is not a number", i+1, field)
		}
		nums = append(nums, v)
	}
	keep := len(nums) - len(nums)%4
	out := Parsed{Boxes: make(List, 0, keep/4)}
	for i := 0; i < keep; i += 4 {
		out.Boxes = append(out.Boxes, coords.NewRect(nums[i], nums[i+1], nums[i+2], nums[i+3]))
	}
	if keep < len(nums) {
		out.Dropped = nums[keep:]
	}
	return out, nil
}

// ParseLiteral parses a structured box literal. The outer value must be a
// list or tuple. If its first element is a mapping with a "boxes" key, that
// value is the box list; otherwise the outer value is. Every box must be a
// list or tuple of exactly four numbers.
func ParseLiteral(raw string) (List, error) {
	v, err := ParseValue(raw)
	if err != nil {
		return nil, err
	}
	items, ok := sequence(v)
	if !ok {
		return nil, errs.New(errs.InvalidArgument, "parse boxes", "expected a list of boxes, got %s", describe(v))
	}
	if len(items) > 0 {
		if m, isMap := items[0].(*Map); isMap {
			inner, found := m.Get("boxes")
			if !found {
				return nil, errs.New(errs.InvalidArgument, "parse boxes", `mapping has no "boxes" key`)
			}
			if items, ok = sequence(inner); !ok {
				return nil, errs.New(errs.InvalidArgument, "parse boxes", `"boxes" holds %s, not a list`, describe(inner))
			}
		}
	}
	out := make(List, 0, len(items))
	for i, item := range items {
		r, err := toRect(item)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidArgument, "parse boxes", "", fmt.Errorf("box %d: %w", i+1, err))
		}
		out = append(out, r)
	}
	return out, nil
}

func toRect(v any) (coords.Rect, error) {
	parts, ok := sequence(v)
	if !ok {
		return coords.Rect{}, fmt.Errorf("expected 4 coordinates, got %s", describe(v))
	}
	if len(parts) != 4 {
		return coords.Rect{}, fmt.Errorf("expected 4 coordinates, got %d", len(parts))
	}
	var n [4]float64
	for i, p := range parts {
		f, ok := p.(float64)
		if !ok {
			return coords.Rect{}, fmt.Errorf("coordinate %d is %s, not a number", i+1, describe(p))
		}
		n[i] = f
	}
	return coords.NewRect(n[0], n[1], n[2], n[3]), nil
}

func sequence(v any) ([]any, bool) {
	switch s := v.(type) {
	case Seq:
		return s, true
	case Tuple:
		return s, true
	}
	return nil, false
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "None"
	case float64:
		return "a number"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case Seq:
		return "a list"
	case Tuple:
		return "a tuple"
	case *Map:
		return "a mapping"
	}
	return fmt.Sprintf("%T", v)
}

// NoBoxes is the notice logged when a coordinate string yields no
// complete box.
const NoBoxes = "no boxes to apply"
