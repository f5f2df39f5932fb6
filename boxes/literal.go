package boxes

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/wudi/blackout/errs"
)

// Values produced by ParseValue: float64, string, bool, nil, Seq, Tuple
// and *Map. Seq holds a bracketed list, Tuple a parenthesized one.
type (
	Seq   []any
	Tuple []any
)

// Map is a literal mapping. Keys keep their source order.
type Map struct {
	Keys   []any
	Values []any
}

// Get returns the value stored under the string key k.
func (m *Map) Get(k string) (any, bool) {
	for i, key := range m.Keys {
		if s, ok := key.(string); ok && s == k {
			return m.Values[i], true
		}
	}
	return nil, false
}

// ParseValue parses a single literal: numbers, quoted strings, [lists],
// (tuples), {mappings}, True/False/None and true/false/null. Nothing is
// evaluated; any other syntax is rejected.
func ParseValue(src string) (any, error) {
	p := &literalParser{src: src}
	v, err := p.value(0)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, p.errorf("unexpected %q after value", p.rest())
	}
	return v, nil
}

const maxNesting = 100

type literalParser struct {
	src string
	pos int
}

func (p *literalParser) errorf(format string, args ...any) error {
	e := errs.New(errs.InvalidArgument, "parse literal", format, args...)
	e.Message = fmt.Sprintf("offset %d: %s", p.pos, e.Message)
	return e
}

func (p *literalParser) rest() string {
	r := p.src[p.pos:]
	if len(r) > 12 {
		r = r[:12] + "..."
	}
	return r
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			p.pos++
		default:
			return
		}
	}
}

func (p *literalParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *literalParser) value(depth int) (any, error) {
	if depth > maxNesting {
		return nil, p.errorf("nesting deeper than %d", maxNesting)
	}
	switch c := p.peek(); {
	case c == 0:
		return nil, p.errorf("unexpected end of input")
	case c == '[':
		p.pos++
		items, _, err := p.sequence(']', depth)
		return Seq(items), err
	case c == '(':
		p.pos++
		items, trailingComma, err := p.sequence(')', depth)
		if err != nil {
			return nil, err
		}
		// (x) is a parenthesized value, (x,) a one-element tuple.
		if len(items) == 1 && !trailingComma {
			return items[0], nil
		}
		return Tuple(items), nil
	case c == '{':
		p.pos++
		return p.mapping(depth)
	case c == '"' || c == '\'':
		return p.str()
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return p.number()
	default:
		return p.keyword()
	}
}

// sequence reads comma-separated values up to end. It reports whether the
// last value was followed by a comma.
func (p *literalParser) sequence(end byte, depth int) ([]any, bool, error) {
	var items []any
	trailing := false
	for {
		if p.peek() == end {
			p.pos++
			return items, trailing, nil
		}
		v, err := p.value(depth + 1)
		if err != nil {
			return nil, false, err
		}
		items = append(items, v)
		trailing = false
		switch p.peek() {
		case ',':
			p.pos++
			trailing = true
		case end:
		default:
			return nil, false, p.errorf("expected ',' or %q", end)
		}
	}
}

func (p *literalParser) mapping(depth int) (any, error) {
	m := &Map{}
	for {
		if p.peek() == '}' {
			p.pos++
			return m, nil
		}
		k, err := p.value(depth + 1)
		if err != nil {
			return nil, err
		}
		if p.peek() != ':' {
			return nil, p.errorf("expected ':' in mapping")
		}
		p.pos++
		v, err := p.value(depth + 1)
		if err != nil {
			return nil, err
		}
		m.Keys = append(m.Keys, k)
		m.Values = append(m.Values, v)
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
		default:
			return nil, p.errorf("expected ',' or '}'")
		}
	}
}

func (p *literalParser) number() (any, error) {
	start := p.pos
	if c := p.src[p.pos]; c == '-' || c == '+' {
		p.pos++
	}
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		isExpSign := (c == '-' || c == '+') && p.pos > start && (p.src[p.pos-1] == 'e' || p.src[p.pos-1] == 'E')
		if (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E' || isExpSign {
			p.pos++
			continue
		}
		break
	}
	text := p.src[start:p.pos]
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		p.pos = start
		return nil, p.errorf("invalid number %q", text)
	}
	return f, nil
}

var keywords = map[string]any{
	"True": true, "False": false, "None": nil,
	"true": true, "false": false, "null": nil,
}

func (p *literalParser) keyword() (any, error) {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	word := p.src[start:p.pos]
	if v, ok := keywords[word]; ok {
		return v, nil
	}
	p.pos = start
	if word == "" {
		return nil, p.errorf("unexpected %q", p.rest())
	}
	return nil, p.errorf("%q is not a literal", word)
}

func (p *literalParser) str() (any, error) {
	quote := p.src[p.pos]
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return b.String(), nil
		case c == '\n':
			return nil, p.errorf("newline in string")
		case c == '\\':
			if err := p.escape(&b); err != nil {
				return nil, err
			}
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return nil, p.errorf("unterminated string")
}

func (p *literalParser) escape(b *strings.Builder) error {
	p.pos++
	if p.pos >= len(p.src) {
		return p.errorf("unterminated escape")
	}
	c := p.src[p.pos]
	p.pos++
	simple := map[byte]byte{'n': '\n', 't': '\t', 'r': '\r', 'b': '\b', 'f': '\f', 'v': '\v', '0': 0, '\\': '\\', '\'': '\'', '"': '"', '/': '/'}
	if r, ok := simple[c]; ok {
		b.WriteByte(r)
		return nil
	}
	width := 0
	switch c {
	case 'x':
		width = 2
	case 'u':
		width = 4
	case 'U':
		width = 8
	default:
		// Unknown escapes are kept verbatim.
		b.WriteByte('\\')
		b.WriteByte(c)
		return nil
	}
	if p.pos+width > len(p.src) {
		return p.errorf("truncated \\%c escape", c)
	}
	n, err := strconv.ParseUint(p.src[p.pos:p.pos+width], 16, 32)
	if err != nil || !utf8.ValidRune(rune(n)) {
		return p.errorf("invalid \\%c escape", c)
	}
	p.pos += width
	b.WriteRune(rune(n))
	return nil
}
