package document

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/wudi/blackout/errs"
	"github.com/wudi/blackout/filters"
	"github.com/wudi/blackout/ir/raw"
	"github.com/wudi/blackout/observability"
	"github.com/wudi/blackout/security"
	"github.com/wudi/blackout/writer"
)

// SaveOptions selects how a document is written.
type SaveOptions struct {
	// Incremental appends changed objects to the original bytes instead of
	// rewriting the file. The original encryption is kept and the new
	// objects are encrypted with the same key.
	Incremental bool
	// Encryption encrypts a full rewrite. It cannot be combined with
	// Incremental.
	Encryption *security.EncryptionOptions
	// Compression is the Flate level for unfiltered streams of a full
	// rewrite; see writer.Config.
	Compression int
}

// Save writes the document to path. An incremental save to the file the
// document was opened from appends to it in place; the document should be
// closed afterwards since its view of the file is then out of date.
func (d *Document) Save(path string, opts SaveOptions) error {
	if err := d.check("save"); err != nil {
		return err
	}
	if opts.Incremental && opts.Encryption == nil && samePath(path, d.path) {
		return d.appendInPlace(path)
	}
	data, err := d.Bytes(opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.Wrap(errs.IO, "save", path, err)
	}
	return nil
}

// Bytes serializes the document.
func (d *Document) Bytes(opts SaveOptions) ([]byte, error) {
	if err := d.check("save"); err != nil {
		return nil, err
	}
	if opts.Incremental && opts.Encryption != nil {
		return nil, errs.New(errs.InvalidArgument, "save", "incremental saves keep the existing encryption")
	}
	var buf bytes.Buffer
	if opts.Incremental {
		buf.Write(d.data)
		if err := d.writeUpdate(&buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	cfg := writer.Config{Encryption: opts.Encryption, Compression: opts.Compression, Logger: d.logger}
	trailer := raw.Dict()
	trailer.Set("Root", raw.RefObj{R: d.rootRef})
	if info, ok := d.trailer.Get("Info"); ok {
		trailer.Set("Info", info)
	}
	if err := writer.WriteFull(context.Background(), &buf, d, trailer, cfg); err != nil {
		return nil, errs.Wrap(errs.IO, "save", d.path, err)
	}
	return buf.Bytes(), nil
}

func (d *Document) writeUpdate(buf *bytes.Buffer) error {
	if d.file == nil {
		return errs.New(errs.InvalidArgument, "save", "incremental save needs a document opened from a file")
	}
	err := writer.WriteIncremental(context.Background(), buf, writer.Update{
		Base:       d.data,
		XRef:       d.file.XRef,
		Security:   d.file.Security,
		EncryptRef: d.file.EncryptRef,
		Objects:    d.objects,
	}, writer.Config{Logger: d.logger})
	if err != nil {
		return errs.Wrap(errs.IO, "save", d.path, err)
	}
	return nil
}

// appendInPlace writes the incremental section at the end of the file the
// document was read from. The file must not have changed since.
func (d *Document) appendInPlace(path string) error {
	if d.file == nil {
		return errs.New(errs.InvalidArgument, "save", "incremental save needs a document opened from a file")
	}
	if len(d.objects) == 0 {
		d.logger.Debug("nothing to save", observability.String("path", path))
		return nil
	}
	var tail bytes.Buffer
	if err := d.writeUpdate(&tail); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return errs.Wrap(errs.IO, "save", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return errs.Wrap(errs.IO, "save", path, err)
	}
	if info.Size() != int64(len(d.data)) {
		return errs.Wrap(errs.IO, "save", path, fmt.Errorf("file changed since it was opened (%d bytes, expected %d)", info.Size(), len(d.data)))
	}
	if _, err := f.Write(tail.Bytes()); err != nil {
		return errs.Wrap(errs.IO, "save", path, err)
	}
	if err := f.Close(); err != nil {
		return errs.Wrap(errs.IO, "save", path, err)
	}
	d.logger.Debug("incremental save", observability.String("path", path), observability.Int("bytes", tail.Len()))
	return nil
}

func (d *Document) decodeStream(ctx context.Context, st *raw.StreamObj) ([]byte, error) {
	if d.file != nil {
		return d.file.DecodeStream(ctx, st)
	}
	return filters.DefaultPipeline(filters.Limits{}).DecodeStream(ctx, st)
}
