// Package parser turns PDF bytes into a lazily loaded object graph.
package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/wudi/blackout/filters"
	"github.com/wudi/blackout/ir/raw"
	"github.com/wudi/blackout/observability"
	"github.com/wudi/blackout/recovery"
	"github.com/wudi/blackout/security"
	"github.com/wudi/blackout/xref"
)

// ErrPasswordRequired is returned for encrypted files whose user password is
// not empty when no password was supplied.
var ErrPasswordRequired = errors.New("document is password protected")

// Config controls xref resolution and object loading.
type Config struct {
	Recovery    recovery.Strategy
	XRef        xref.ResolverConfig
	Password    string
	Limits      filters.Limits
	MaxIndirect int
	Logger      observability.Logger
}

// File is a parsed PDF. Objects are loaded on first use and cached.
type File struct {
	Data     []byte
	XRef     *xref.Table
	Trailer  *raw.DictObj
	Security security.Handler
	Version  string
	// EncryptRef is the object holding /Encrypt when it is indirect.
	EncryptRef *raw.ObjectRef

	pipeline *filters.Pipeline
	loader   *objectLoader
}

func Parse(ctx context.Context, data []byte, cfg Config) (*File, error) {
	logger := observability.Or(cfg.Logger)
	if cfg.MaxIndirect <= 0 {
		cfg.MaxIndirect = 32
	}
	if cfg.XRef.Recovery == nil {
		cfg.XRef.Recovery = cfg.Recovery
	}
	if cfg.XRef.Logger == nil {
		cfg.XRef.Logger = logger
	}
	pipeline := filters.DefaultPipeline(cfg.Limits)
	if cfg.XRef.Pipeline == nil {
		cfg.XRef.Pipeline = pipeline
	}
	if !bytes.Contains(headerWindow(data), []byte("%PDF-")) {
		if err := onError(ctx, cfg.Recovery, errors.New("missing %PDF header"), "header"); err != nil {
			return nil, err
		}
	}
	table, err := xref.NewResolver(cfg.XRef).Resolve(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("resolve xref: %w", err)
	}
	f := &File{
		Data:     data,
		XRef:     table,
		Trailer:  table.Trailer,
		Security: security.NoopHandler(),
		Version:  detectHeaderVersion(data),
		pipeline: pipeline,
	}
	f.loader = &objectLoader{
		file:     f,
		recovery: cfg.Recovery,
		maxDepth: cfg.MaxIndirect,
		cache:    make(map[raw.ObjectRef]raw.Object),
		objstm:   make(map[int]map[int]raw.Object),
	}
	if err := f.setupSecurity(ctx, cfg.Password); err != nil {
		return nil, err
	}
	if table.Repaired {
		logger.Warn("cross-reference table rebuilt", observability.Int("objects", len(table.Objects())))
		f.indexObjectStreams(ctx)
	}
	if _, ok := f.Trailer.Get("Root"); !ok {
		return nil, errors.New("document catalog not found")
	}
	return f, nil
}

func onError(ctx context.Context, rec recovery.Strategy, err error, component string) error {
	if rec != nil && rec.OnError(ctx, err, recovery.Location{Component: component}).Continue() {
		return nil
	}
	return err
}

func headerWindow(data []byte) []byte {
	if len(data) > 1024 {
		return data[:1024]
	}
	return data
}

func detectHeaderVersion(data []byte) string {
	win := headerWindow(data)
	i := bytes.Index(win, []byte("%PDF-"))
	if i < 0 || i+8 > len(win) {
		return "1.4"
	}
	return string(win[i+5 : i+8])
}

func (f *File) setupSecurity(ctx context.Context, password string) error {
	encObj, ok := f.Trailer.Get("Encrypt")
	if !ok {
		return nil
	}
	if ref, isRef := encObj.(raw.RefObj); isRef {
		r := ref.R
		f.EncryptRef = &r
		obj, err := f.loader.load(ctx, r, 0)
		if err != nil {
			return fmt.Errorf("load /Encrypt: %w", err)
		}
		encObj = obj
	}
	encDict, ok := encObj.(*raw.DictObj)
	if !ok {
		return errors.New("/Encrypt is not a dictionary")
	}
	h, err := (&security.HandlerBuilder{}).WithEncryptDict(encDict).WithTrailer(f.Trailer).Build()
	if err != nil {
		return fmt.Errorf("security setup: %w", err)
	}
	if err := h.Authenticate(password); err != nil {
		if password == "" && errors.Is(err, security.ErrInvalidPassword) {
			return ErrPasswordRequired
		}
		return err
	}
	f.Security = h
	// Objects loaded so far were read before the key was known.
	f.loader.reset()
	if f.EncryptRef != nil {
		f.loader.cache[*f.EncryptRef] = encDict
	}
	return nil
}

// Encrypted reports whether the file uses a security handler.
func (f *File) Encrypted() bool { return f.Security.IsEncrypted() }

// Load returns the decrypted object ref points to. Missing and free objects
// load as null.
func (f *File) Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	return f.loader.load(ctx, ref, 0)
}

// Resolve follows obj through indirect references.
func (f *File) Resolve(ctx context.Context, obj raw.Object) (raw.Object, error) {
	for depth := 0; ; depth++ {
		ref, ok := obj.(raw.RefObj)
		if !ok {
			return obj, nil
		}
		if depth > f.loader.maxDepth {
			return nil, fmt.Errorf("reference chain from %v too deep", ref.R)
		}
		next, err := f.Load(ctx, ref.R)
		if err != nil {
			return nil, err
		}
		obj = next
	}
}

// Refs lists every object in use, with the generation the table records.
func (f *File) Refs() []raw.ObjectRef {
	nums := f.XRef.Objects()
	out := make([]raw.ObjectRef, 0, len(nums))
	for _, n := range nums {
		if n == 0 {
			continue
		}
		e, _ := f.XRef.Lookup(n)
		out = append(out, raw.ObjectRef{Num: n, Gen: e.Gen})
	}
	return out
}

// DecodeStream returns the filtered payload of st.
func (f *File) DecodeStream(ctx context.Context, st *raw.StreamObj) ([]byte, error) {
	return f.pipeline.DecodeStream(ctx, st)
}

// indexObjectStreams adds compressed entries for the members of every object
// stream found by a repair scan, then locates the catalog if the scan could
// not.
func (f *File) indexObjectStreams(ctx context.Context) {
	var catalog *raw.ObjectRef
	for _, ref := range f.Refs() {
		obj, err := f.Load(ctx, ref)
		if err != nil {
			continue
		}
		st, ok := obj.(*raw.StreamObj)
		if !ok {
			continue
		}
		if typ, _ := st.Dict.Name("Type"); typ != "ObjStm" {
			continue
		}
		members, err := f.loader.objectStreamMembers(ctx, st)
		if err != nil {
			continue
		}
		for idx, num := range members {
			f.XRef.Add(num, xref.Entry{Kind: xref.Compressed, Stream: ref.Num, Index: idx})
		}
	}
	if _, ok := f.Trailer.Get("Root"); ok {
		return
	}
	for _, ref := range f.Refs() {
		obj, err := f.Load(ctx, ref)
		if err != nil {
			continue
		}
		if d, ok := obj.(*raw.DictObj); ok {
			if typ, _ := d.Name("Type"); typ == "Catalog" {
				r := ref
				catalog = &r
			}
		}
	}
	if catalog != nil {
		f.Trailer.Set("Root", raw.RefObj{R: *catalog})
	}
}
