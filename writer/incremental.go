package writer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/wudi/blackout/ir/raw"
	"github.com/wudi/blackout/observability"
	"github.com/wudi/blackout/security"
	"github.com/wudi/blackout/xref"
)

// Update describes an incremental save: the original bytes, what is known
// about them, and the objects that are new or changed.
type Update struct {
	Base []byte
	XRef *xref.Table
	// Security encrypts the appended objects. It must be the handler the
	// original file was opened with so the key stays the same.
	Security   security.Handler
	EncryptRef *raw.ObjectRef
	Objects    map[raw.ObjectRef]raw.Object
}

// trailerKeys are carried from the previous trailer into the new one.
var trailerKeys = []string{"Root", "Info", "Encrypt", "ID"}

// WriteIncremental writes the bytes to append to u.Base. The new section
// uses the same syntax as the newest existing one and links back to it
// through /Prev. When the table was rebuilt by a repair scan the offsets
// it would chain to are unreliable, so a complete section is written
// instead.
func WriteIncremental(ctx context.Context, w io.Writer, u Update, cfg Config) error {
	logger := observability.Or(cfg.Logger)
	if u.XRef == nil || u.XRef.Trailer == nil {
		return errors.New("incremental update needs the previous cross-reference table")
	}
	var buf bytes.Buffer
	base := int64(len(u.Base))
	if n := len(u.Base); n > 0 && u.Base[n-1] != '\n' && u.Base[n-1] != '\r' {
		buf.WriteByte('\n')
	}

	refs := make([]raw.ObjectRef, 0, len(u.Objects))
	for ref := range u.Objects {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Num < refs[j].Num })

	entries := make(map[int]xref.Entry)
	if u.XRef.Repaired {
		entries[0] = xref.Entry{Kind: xref.Free}
		for _, num := range u.XRef.Objects() {
			e, _ := u.XRef.Lookup(num)
			entries[num] = e
		}
	}
	size := u.XRef.Size()
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		obj := u.Objects[ref]
		if u.EncryptRef == nil || *u.EncryptRef != ref {
			enc, err := encryptObject(obj, ref, u.Security)
			if err != nil {
				return err
			}
			obj = enc
		}
		entries[ref.Num] = xref.Entry{Kind: xref.InUse, Offset: base + int64(buf.Len()), Gen: ref.Gen}
		buf.Write(SerializeObject(ref, obj))
		if ref.Num+1 > size {
			size = ref.Num + 1
		}
	}

	trailer := raw.Dict()
	for _, k := range trailerKeys {
		if v, ok := u.XRef.Trailer.Get(k); ok {
			trailer.Set(k, v)
		}
	}
	if !u.XRef.Repaired && u.XRef.StartXRef >= 0 {
		trailer.Set("Prev", raw.NumberInt(u.XRef.StartXRef))
	}

	kind := u.XRef.Kind
	if u.XRef.Repaired {
		kind = xref.SectionTable
		for _, e := range entries {
			if e.Kind == xref.Compressed {
				kind = xref.SectionStream
				break
			}
		}
	}
	offset := base + int64(buf.Len())
	if kind == xref.SectionStream {
		num := size
		size++
		entries[num] = xref.Entry{Kind: xref.InUse, Offset: offset}
		trailer.Set("Size", raw.NumberInt(int64(size)))
		st, err := xrefStream(entries, trailer)
		if err != nil {
			return fmt.Errorf("xref stream: %w", err)
		}
		buf.Write(SerializeObject(raw.ObjectRef{Num: num}, st))
		fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", offset)
	} else {
		trailer.Set("Size", raw.NumberInt(int64(size)))
		writeXRefTable(&buf, entries, trailer, offset)
	}

	logger.Debug("incremental update",
		observability.Int("objects", len(refs)),
		observability.String("xref", kind.String()),
		observability.Int64("prev", u.XRef.StartXRef))
	_, err := w.Write(buf.Bytes())
	return err
}
