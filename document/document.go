// Package document is the page-level editing API used by the redaction
// pipelines: open a PDF, look at its pages, edit them, and save the result
// either as a complete rewrite or as an incremental update.
package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wudi/blackout/errs"
	"github.com/wudi/blackout/filters"
	"github.com/wudi/blackout/ir/raw"
	"github.com/wudi/blackout/observability"
	"github.com/wudi/blackout/parser"
	"github.com/wudi/blackout/recovery"
	"github.com/wudi/blackout/security"
)

// Config controls how a document is opened.
type Config struct {
	// Password is tried as user password, then as owner password. The
	// empty password is always tried when none is given.
	Password string
	// Recovery decides what happens on malformed input. Nil selects a
	// lenient strategy that rebuilds damaged cross-reference data.
	Recovery recovery.Strategy
	Limits   filters.Limits
	Logger   observability.Logger
}

func firstConfig(cfg []Config) Config {
	if len(cfg) > 0 {
		return cfg[0]
	}
	return Config{}
}

// Document is an open PDF. It is not safe for concurrent use.
type Document struct {
	path   string
	data   []byte
	file   *parser.File
	logger observability.Logger
	closed bool

	trailer  *raw.DictObj
	rootRef  raw.ObjectRef
	pagesRef raw.ObjectRef
	pages    []raw.ObjectRef
	// objects holds every new or changed object, in plaintext.
	objects map[raw.ObjectRef]raw.Object
	nextNum int
	// overlays maps a page to the content stream that receives drawing
	// appended after its original content.
	overlays map[raw.ObjectRef]raw.ObjectRef
}

// Open reads and parses the file at path.
func Open(path string, cfg ...Config) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.IO, "open", path, err)
	}
	return OpenBytes(data, path, cfg...)
}

// OpenBytes parses data in memory. path is kept for error messages and as
// the default target of incremental saves; it may be empty.
func OpenBytes(data []byte, path string, cfg ...Config) (*Document, error) {
	c := firstConfig(cfg)
	logger := observability.Or(c.Logger)
	rec := c.Recovery
	if rec == nil {
		rec = recovery.NewLenientStrategy(logger)
	}
	f, err := parser.Parse(context.Background(), data, parser.Config{
		Recovery: rec,
		Password: c.Password,
		Limits:   c.Limits,
		Logger:   logger,
	})
	if err != nil {
		if errors.Is(err, parser.ErrPasswordRequired) || errors.Is(err, security.ErrInvalidPassword) {
			return nil, errs.Wrap(errs.InvalidArgument, "open", path, err)
		}
		return nil, errs.Wrap(errs.IO, "open", path, err)
	}
	d := &Document{
		path:     path,
		data:     data,
		file:     f,
		logger:   logger,
		trailer:  f.Trailer,
		objects:  make(map[raw.ObjectRef]raw.Object),
		overlays: make(map[raw.ObjectRef]raw.ObjectRef),
		nextNum:  f.XRef.Size(),
	}
	if err := d.loadPageTree(context.Background()); err != nil {
		return nil, errs.Wrap(errs.IO, "open", path, err)
	}
	logger.Debug("document opened",
		observability.String("path", path),
		observability.Int("pages", len(d.pages)),
		observability.Any("encrypted", f.Encrypted()))
	return d, nil
}

// New returns an empty document with no pages.
func New() *Document {
	d := &Document{
		logger:   observability.NopLogger{},
		objects:  make(map[raw.ObjectRef]raw.Object),
		overlays: make(map[raw.ObjectRef]raw.ObjectRef),
		nextNum:  1,
	}
	d.rootRef = d.add(nil)
	d.pagesRef = d.add(nil)
	catalog := raw.Dict()
	catalog.Set("Type", raw.NameLiteral("Catalog"))
	catalog.Set("Pages", raw.RefObj{R: d.pagesRef})
	d.objects[d.rootRef] = catalog
	d.objects[d.pagesRef] = pagesNode(nil)
	d.trailer = raw.Dict()
	d.trailer.Set("Root", raw.RefObj{R: d.rootRef})
	return d
}

// Close releases the document. Further use fails.
func (d *Document) Close() error {
	d.closed = true
	d.data = nil
	d.file = nil
	d.objects = nil
	return nil
}

func (d *Document) check(op string) error {
	if d == nil || d.closed {
		return errs.New(errs.InvalidArgument, op, "document is closed")
	}
	return nil
}

// Path is the file the document was opened from, or "".
func (d *Document) Path() string { return d.path }

// Encrypted reports whether the opened file uses a security handler.
func (d *Document) Encrypted() bool { return d.file != nil && d.file.Encrypted() }

// Load returns the current version of ref: the edited copy if there is one,
// otherwise the object from the file. Unknown objects load as null.
func (d *Document) Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	if obj, ok := d.objects[ref]; ok {
		return obj, nil
	}
	if d.file == nil {
		return raw.NullObj{}, nil
	}
	return d.file.Load(ctx, ref)
}

func (d *Document) resolve(ctx context.Context, obj raw.Object) (raw.Object, error) {
	for depth := 0; depth < 32; depth++ {
		ref, ok := obj.(raw.RefObj)
		if !ok {
			return obj, nil
		}
		next, err := d.Load(ctx, ref.R)
		if err != nil {
			return nil, err
		}
		obj = next
	}
	return nil, errors.New("reference chain too deep")
}

func (d *Document) resolveDict(ctx context.Context, obj raw.Object) (*raw.DictObj, bool) {
	v, err := d.resolve(ctx, obj)
	if err != nil {
		return nil, false
	}
	dict, ok := v.(*raw.DictObj)
	return dict, ok
}

// edit returns a private copy of ref that may be modified. The copy is
// written on save.
func (d *Document) edit(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	if obj, ok := d.objects[ref]; ok {
		return obj, nil
	}
	obj, err := d.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	cp := raw.Clone(obj)
	d.objects[ref] = cp
	return cp, nil
}

func (d *Document) editDict(ctx context.Context, ref raw.ObjectRef) (*raw.DictObj, error) {
	obj, err := d.edit(ctx, ref)
	if err != nil {
		return nil, err
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, fmt.Errorf("object %v is %s, not a dictionary", ref, obj.Type())
	}
	return dict, nil
}

// add allocates the next object number for obj.
func (d *Document) add(obj raw.Object) raw.ObjectRef {
	ref := raw.ObjectRef{Num: d.nextNum}
	d.nextNum++
	if obj != nil {
		d.objects[ref] = obj
	}
	return ref
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	pa, err1 := filepath.Abs(a)
	pb, err2 := filepath.Abs(b)
	if err1 != nil || err2 != nil {
		return a == b
	}
	return pa == pb
}
