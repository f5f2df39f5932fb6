package writer

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/wudi/blackout/filters"
	"github.com/wudi/blackout/ir/raw"
	"github.com/wudi/blackout/xref"
)

// row is one cross-reference entry about to be written.
type row struct {
	num   int
	entry xref.Entry
}

func sortedRows(entries map[int]xref.Entry) []row {
	rows := make([]row, 0, len(entries))
	for num, e := range entries {
		rows = append(rows, row{num: num, entry: e})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].num < rows[j].num })
	return rows
}

// subsections groups consecutive object numbers.
func subsections(rows []row) [][]row {
	var out [][]row
	start := 0
	for i := 1; i <= len(rows); i++ {
		if i == len(rows) || rows[i].num != rows[i-1].num+1 {
			out = append(out, rows[start:i])
			start = i
		}
	}
	return out
}

// writeXRefTable writes a classic section followed by its trailer.
func writeXRefTable(buf *bytes.Buffer, entries map[int]xref.Entry, trailer *raw.DictObj, offset int64) {
	buf.WriteString("xref\n")
	for _, sub := range subsections(sortedRows(entries)) {
		fmt.Fprintf(buf, "%d %d\n", sub[0].num, len(sub))
		for _, r := range sub {
			switch r.entry.Kind {
			case xref.InUse:
				fmt.Fprintf(buf, "%010d %05d n \n", r.entry.Offset, r.entry.Gen)
			default:
				gen := r.entry.Gen
				if r.num == 0 {
					gen = 65535
				}
				fmt.Fprintf(buf, "%010d %05d f \n", 0, gen)
			}
		}
	}
	buf.WriteString("trailer\n")
	writeDict(buf, trailer)
	fmt.Fprintf(buf, "\nstartxref\n%d\n%%%%EOF\n", offset)
}

// xrefStream builds a cross-reference stream object. The stream's own entry
// must already be present in entries.
func xrefStream(entries map[int]xref.Entry, trailer *raw.DictObj) (*raw.StreamObj, error) {
	rows := sortedRows(entries)
	var maxField int64
	for _, r := range rows {
		if v := field2(r.entry); v > maxField {
			maxField = v
		}
	}
	w2 := 1
	for maxField>>(8*w2) > 0 {
		w2++
	}
	index := raw.NewArray()
	var payload []byte
	for _, sub := range subsections(rows) {
		index.Append(raw.NumberInt(int64(sub[0].num)))
		index.Append(raw.NumberInt(int64(len(sub))))
		for _, r := range sub {
			payload = appendField(payload, int64(r.entry.Kind), 1)
			payload = appendField(payload, field2(r.entry), w2)
			payload = appendField(payload, field3(r.num, r.entry), 2)
		}
	}
	enc, err := filters.FlateEncode(payload, 0)
	if err != nil {
		return nil, err
	}
	d := raw.Clone(trailer).(*raw.DictObj)
	d.Set("Type", raw.NameLiteral("XRef"))
	d.Set("W", raw.NewArray(raw.NumberInt(1), raw.NumberInt(int64(w2)), raw.NumberInt(2)))
	d.Set("Index", index)
	d.Set("Filter", raw.NameLiteral("FlateDecode"))
	return raw.NewStream(d, enc), nil
}

func field2(e xref.Entry) int64 {
	switch e.Kind {
	case xref.InUse:
		return e.Offset
	case xref.Compressed:
		return int64(e.Stream)
	}
	return 0
}

func field3(num int, e xref.Entry) int64 {
	switch {
	case e.Kind == xref.Compressed:
		return int64(e.Index)
	case e.Kind == xref.Free && num == 0:
		return 65535
	}
	return int64(e.Gen)
}

func appendField(buf []byte, v int64, width int) []byte {
	for i := width - 1; i >= 0; i-- {
		buf = append(buf, byte(v>>(8*i)))
	}
	return buf
}
