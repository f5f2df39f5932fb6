package xref

import (
	"context"
	"errors"
	"io"

	"github.com/wudi/blackout/ir/raw"
	"github.com/wudi/blackout/recovery"
	"github.com/wudi/blackout/scanner"
)

// Repair rebuilds a table by scanning data for "<num> <gen> obj" headers
// and trailer dictionaries. Later definitions of an object win.
func Repair(ctx context.Context, data []byte) (*Table, error) {
	s := scanner.New(data, scanner.Config{Recovery: recovery.NewLenientStrategy(nil)})
	rd := scanner.NewReader(s, nil)
	t := newTable()
	t.Repaired = true
	var trailer *raw.DictObj
	var catalog *raw.ObjectRef
	var prev [2]scanner.Token
	var havePrev int

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		before := s.Position()
		tok, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if s.Position() == before {
				_ = rd.SeekTo(before + 1)
			}
			havePrev = 0
			continue
		}
		switch {
		case tok.Type == scanner.TokenKeyword && tok.Str == "obj" && havePrev == 2 &&
			prev[0].Type == scanner.TokenNumber && prev[0].IsInt && prev[0].Int > 0 &&
			prev[1].Type == scanner.TokenNumber && prev[1].IsInt && prev[1].Int >= 0:
			num := int(prev[0].Int)
			t.entries[num] = Entry{Kind: InUse, Offset: prev[0].Pos, Gen: int(prev[1].Int)}
			if obj, err := rd.ReadObject(); err == nil {
				if d, ok := obj.(*raw.DictObj); ok {
					switch typ, _ := d.Name("Type"); typ {
					case "Catalog":
						catalog = &raw.ObjectRef{Num: num, Gen: int(prev[1].Int)}
					case "XRef":
						if _, ok := d.Get("Root"); ok {
							trailer = d
						}
					}
				}
			}
			havePrev = 0
			continue
		case tok.Type == scanner.TokenKeyword && tok.Str == "trailer":
			if obj, err := rd.ReadObject(); err == nil {
				if d, ok := obj.(*raw.DictObj); ok {
					if _, hasRoot := d.Get("Root"); hasRoot || trailer == nil {
						trailer = d
					}
				}
			}
			havePrev = 0
			continue
		}
		prev[0], prev[1] = prev[1], tok
		if havePrev < 2 {
			havePrev++
		}
	}

	if len(t.entries) == 0 {
		return nil, errors.New("repair failed: no objects found")
	}
	if trailer == nil {
		trailer = raw.Dict()
	} else {
		trailer = raw.Clone(trailer).(*raw.DictObj)
		for _, k := range []string{"Prev", "XRefStm", "W", "Index", "Filter", "DecodeParms", "Length", "Type"} {
			trailer.Delete(k)
		}
	}
	// A catalog stored in an object stream is not visible here; the
	// caller looks for it once object streams are indexed.
	if _, ok := trailer.Get("Root"); !ok && catalog != nil {
		trailer.Set("Root", raw.RefObj{R: *catalog})
	}
	t.Trailer = trailer
	t.Trailer.Set("Size", raw.NumberInt(int64(t.Size())))
	return t, nil
}
