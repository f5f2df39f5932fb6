package writer

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/wudi/blackout/ir/raw"
)

// SerializeObject renders an indirect object definition.
func SerializeObject(ref raw.ObjectRef, obj raw.Object) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
	writeValue(&buf, obj)
	buf.WriteString("\nendobj\n")
	return buf.Bytes()
}

// Serialize renders a direct object.
func Serialize(obj raw.Object) []byte {
	var buf bytes.Buffer
	writeValue(&buf, obj)
	return buf.Bytes()
}

func writeValue(b *bytes.Buffer, o raw.Object) {
	switch v := o.(type) {
	case raw.NameObj:
		b.WriteByte('/')
		b.WriteString(nameLiteral(v.Val))
	case raw.NumberObj:
		b.WriteString(formatNumber(v))
	case raw.BoolObj:
		b.WriteString(strconv.FormatBool(v.V))
	case raw.StringObj:
		if v.Hex {
			b.WriteByte('<')
			b.WriteString(hex.EncodeToString(v.Bytes))
			b.WriteByte('>')
			return
		}
		b.Write(escapeLiteralString(v.Bytes))
	case *raw.ArrayObj:
		b.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				b.WriteByte(' ')
			}
			writeValue(b, item)
		}
		b.WriteByte(']')
	case *raw.DictObj:
		writeDict(b, v)
	case *raw.StreamObj:
		d := raw.Clone(v.Dict).(*raw.DictObj)
		d.Set("Length", raw.NumberInt(int64(len(v.Data))))
		writeDict(b, d)
		b.WriteString("\nstream\n")
		b.Write(v.Data)
		b.WriteString("\nendstream")
	case raw.RefObj:
		fmt.Fprintf(b, "%d %d R", v.R.Num, v.R.Gen)
	default:
		b.WriteString("null")
	}
}

func writeDict(b *bytes.Buffer, d *raw.DictObj) {
	keys := make([]string, 0, len(d.KV))
	for k := range d.KV {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteString("<<")
	for _, k := range keys {
		b.WriteByte('/')
		b.WriteString(nameLiteral(k))
		b.WriteByte(' ')
		writeValue(b, d.KV[k])
		b.WriteByte(' ')
	}
	b.WriteString(">>")
}

func formatNumber(n raw.NumberObj) string {
	if n.IsInt {
		return strconv.FormatInt(n.I, 10)
	}
	// 'f' never produces an exponent, which PDF does not allow.
	s := strconv.FormatFloat(n.F, 'f', 5, 64)
	s = trimZeros(s)
	if s == "-0" {
		return "0"
	}
	return s
}

func trimZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	i := len(s)
	for i > 0 && s[i-1] == '0' {
		i--
	}
	if i > 0 && s[i-1] == '.' {
		i--
	}
	return s[:i]
}

func escapeLiteralString(data []byte) []byte {
	var b bytes.Buffer
	b.WriteByte('(')
	for _, ch := range data {
		switch ch {
		case '\\', '(', ')':
			b.WriteByte('\\')
			b.WriteByte(ch)
		case '\n':
			b.WriteString("\\n")
		case '\r':
			b.WriteString("\\r")
		case '\t':
			b.WriteString("\\t")
		case '\b':
			b.WriteString("\\b")
		case '\f':
			b.WriteString("\\f")
		default:
			if ch < 0x20 || ch >= 0x7F {
				fmt.Fprintf(&b, "\\%03o", ch)
			} else {
				b.WriteByte(ch)
			}
		}
	}
	b.WriteByte(')')
	return b.Bytes()
}

func nameLiteral(value string) string {
	var b bytes.Buffer
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if ch > 0x20 && ch < 0x7F && !isNameDelimiter(ch) {
			b.WriteByte(ch)
			continue
		}
		fmt.Fprintf(&b, "#%02X", ch)
	}
	return b.String()
}

func isNameDelimiter(ch byte) bool {
	switch ch {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%', '#':
		return true
	}
	return false
}
