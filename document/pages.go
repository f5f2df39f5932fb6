package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/wudi/blackout/coords"
	"github.com/wudi/blackout/errs"
	"github.com/wudi/blackout/ir/raw"
)

// inheritable page attributes, resolved through /Parent.
var inheritable = []string{"Resources", "MediaBox", "CropBox", "Rotate"}

const maxTreeDepth = 64

func pagesNode(kids []raw.ObjectRef) *raw.DictObj {
	arr := raw.NewArray()
	for _, k := range kids {
		arr.Append(raw.RefObj{R: k})
	}
	d := raw.Dict()
	d.Set("Type", raw.NameLiteral("Pages"))
	d.Set("Kids", arr)
	d.Set("Count", raw.NumberInt(int64(len(kids))))
	return d
}

func (d *Document) loadPageTree(ctx context.Context) error {
	root, ok := d.trailer.Ref("Root")
	if !ok {
		return errors.New("trailer has no /Root")
	}
	d.rootRef = root
	catalog, ok := d.resolveDict(ctx, raw.RefObj{R: root})
	if !ok {
		return errors.New("catalog is not a dictionary")
	}
	pagesRef, ok := catalog.Ref("Pages")
	if !ok {
		return errors.New("catalog has no /Pages reference")
	}
	d.pagesRef = pagesRef
	seen := make(map[raw.ObjectRef]bool)
	return d.walkPages(ctx, pagesRef, 0, seen)
}

func (d *Document) walkPages(ctx context.Context, ref raw.ObjectRef, depth int, seen map[raw.ObjectRef]bool) error {
	if depth > maxTreeDepth {
		return errors.New("page tree too deep")
	}
	if seen[ref] {
		d.logger.Warn("page tree cycle ignored")
		return nil
	}
	seen[ref] = true
	node, ok := d.resolveDict(ctx, raw.RefObj{R: ref})
	if !ok {
		d.logger.Warn("page tree node is not a dictionary")
		return nil
	}
	typ, _ := node.Name("Type")
	kidsObj, hasKids := node.Get("Kids")
	if typ == "Page" || (typ != "Pages" && !hasKids) {
		d.pages = append(d.pages, ref)
		return nil
	}
	kids, err := d.resolve(ctx, kidsObj)
	if err != nil {
		return err
	}
	arr, ok := kids.(*raw.ArrayObj)
	if !ok {
		return nil
	}
	for _, kid := range arr.Items {
		if kref, ok := kid.(raw.RefObj); ok {
			if err := d.walkPages(ctx, kref.R, depth+1, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

// inherited looks key up on the page and then on its ancestors.
func (d *Document) inherited(ctx context.Context, page *raw.DictObj, key string) (raw.Object, bool) {
	node := page
	for depth := 0; node != nil && depth <= maxTreeDepth; depth++ {
		if v, ok := node.Get(key); ok {
			r, err := d.resolve(ctx, v)
			if err == nil {
				return r, true
			}
		}
		parent, ok := node.Get("Parent")
		if !ok {
			break
		}
		node, _ = d.resolveDict(ctx, parent)
	}
	return nil, false
}

// PageCount is the number of pages.
func (d *Document) PageCount() int {
	if d == nil || d.closed {
		return 0
	}
	return len(d.pages)
}

// Page is a page of a Document. It stays valid until the page is deleted.
type Page struct {
	doc *Document
	ref raw.ObjectRef
}

// Page returns page i (zero-based).
func (d *Document) Page(i int) (*Page, error) {
	if err := d.check("page"); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(d.pages) {
		return nil, errs.New(errs.OutOfRange, "page", "page %d out of range [0, %d)", i, len(d.pages))
	}
	return &Page{doc: d, ref: d.pages[i]}, nil
}

// Ref is the object the page is stored in.
func (p *Page) Ref() raw.ObjectRef { return p.ref }

func (p *Page) dict(ctx context.Context) *raw.DictObj {
	dict, ok := p.doc.resolveDict(ctx, raw.RefObj{R: p.ref})
	if !ok {
		return raw.Dict()
	}
	return dict
}

var letter = coords.Rect{X1: 612, Y1: 792}

// Rect is the visible page area with its origin at (0, 0): the CropBox,
// or the MediaBox when there is none, with width and height swapped for
// pages rotated by 90 or 270 degrees. Pages without a usable box are US
// Letter sized.
func (p *Page) Rect() coords.Rect {
	ctx := context.Background()
	page := p.dict(ctx)
	box, ok := p.doc.box(ctx, page, "CropBox")
	if !ok {
		box, ok = p.doc.box(ctx, page, "MediaBox")
	}
	if !ok {
		box = letter
	}
	w, h := box.Width(), box.Height()
	if rot := p.Rotation(); rot == 90 || rot == 270 {
		w, h = h, w
	}
	return coords.Rect{X1: w, Y1: h}
}

func (p *Page) Width() float64  { return p.Rect().Width() }
func (p *Page) Height() float64 { return p.Rect().Height() }

// Rotation is /Rotate normalized to 0, 90, 180 or 270.
func (p *Page) Rotation() int {
	ctx := context.Background()
	v, ok := p.doc.inherited(ctx, p.dict(ctx), "Rotate")
	if !ok {
		return 0
	}
	n, ok := raw.Float(v)
	if !ok {
		return 0
	}
	rot := int(n) % 360
	if rot < 0 {
		rot += 360
	}
	return rot / 90 * 90
}

func (d *Document) box(ctx context.Context, page *raw.DictObj, key string) (coords.Rect, bool) {
	v, ok := d.inherited(ctx, page, key)
	if !ok {
		return coords.Rect{}, false
	}
	arr, ok := v.(*raw.ArrayObj)
	if !ok || arr.Len() != 4 {
		return coords.Rect{}, false
	}
	var n [4]float64
	for i, item := range arr.Items {
		r, err := d.resolve(ctx, item)
		if err != nil {
			return coords.Rect{}, false
		}
		f, ok := raw.Float(r)
		if !ok {
			return coords.Rect{}, false
		}
		n[i] = f
	}
	r := coords.NewRect(n[0], n[1], n[2], n[3]).Normalize()
	if r.Width() <= 0 || r.Height() <= 0 {
		return coords.Rect{}, false
	}
	return r, true
}

// NewPage appends a blank page of the given size in points.
func (d *Document) NewPage(w, h float64) (*Page, error) {
	if err := d.check("new page"); err != nil {
		return nil, err
	}
	if w <= 0 || h <= 0 {
		return nil, errs.New(errs.InvalidArgument, "new page", "page size %gx%g", w, h)
	}
	page := raw.Dict()
	page.Set("Type", raw.NameLiteral("Page"))
	page.Set("Parent", raw.RefObj{R: d.pagesRef})
	page.Set("MediaBox", raw.NewArray(raw.NumberInt(0), raw.NumberInt(0), raw.NumberFloat(w), raw.NumberFloat(h)))
	page.Set("Resources", raw.Dict())
	ref := d.add(page)
	d.pages = append(d.pages, ref)
	if err := d.rebuildPageTree(context.Background()); err != nil {
		return nil, err
	}
	return &Page{doc: d, ref: ref}, nil
}

// DeletePage removes page i from the page tree.
func (d *Document) DeletePage(i int) error {
	if err := d.check("delete page"); err != nil {
		return err
	}
	if i < 0 || i >= len(d.pages) {
		return errs.New(errs.OutOfRange, "delete page", "page %d out of range [0, %d)", i, len(d.pages))
	}
	ctx := context.Background()
	// Attributes inherited from intermediate nodes must survive flattening.
	if err := d.materializeAll(ctx); err != nil {
		return err
	}
	d.pages = append(d.pages[:i:i], d.pages[i+1:]...)
	return d.rebuildPageTree(ctx)
}

// InsertPagesFrom copies pages from..to of src (inclusive; to < from copies
// in reverse) and inserts them before page at. A negative at, or one past
// the last page, appends.
func (d *Document) InsertPagesFrom(src *Document, from, to, at int) error {
	if err := d.check("insert pages"); err != nil {
		return err
	}
	if err := src.check("insert pages"); err != nil {
		return err
	}
	n := len(src.pages)
	if from < 0 || from >= n || to < 0 || to >= n {
		return errs.New(errs.OutOfRange, "insert pages", "range %d..%d outside [0, %d)", from, to, n)
	}
	if at < 0 || at > len(d.pages) {
		at = len(d.pages)
	}
	ctx := context.Background()
	step := 1
	if to < from {
		step = -1
	}
	var srcPages []raw.ObjectRef
	for i := from; ; i += step {
		srcPages = append(srcPages, src.pages[i])
		if i == to {
			break
		}
	}
	if err := d.materializeAll(ctx); err != nil {
		return err
	}
	cp := &copier{src: src, dst: d, mapped: make(map[raw.ObjectRef]raw.ObjectRef)}
	for _, ref := range srcPages {
		cp.mapped[ref] = d.add(nil)
	}
	newRefs := make([]raw.ObjectRef, 0, len(srcPages))
	for _, ref := range srcPages {
		page, err := cp.page(ctx, ref)
		if err != nil {
			return fmt.Errorf("copy page %v: %w", ref, err)
		}
		page.Set("Parent", raw.RefObj{R: d.pagesRef})
		dst := cp.mapped[ref]
		d.objects[dst] = page
		newRefs = append(newRefs, dst)
	}
	pages := make([]raw.ObjectRef, 0, len(d.pages)+len(newRefs))
	pages = append(pages, d.pages[:at]...)
	pages = append(pages, newRefs...)
	pages = append(pages, d.pages[at:]...)
	d.pages = pages
	return d.rebuildPageTree(ctx)
}

// materializeAll copies inherited attributes into every page whose parent
// is not the root node, ahead of flattening the tree.
func (d *Document) materializeAll(ctx context.Context) error {
	for _, ref := range d.pages {
		page, ok := d.resolveDict(ctx, raw.RefObj{R: ref})
		if !ok {
			continue
		}
		if parent, ok := page.Ref("Parent"); ok && parent == d.pagesRef {
			continue
		}
		missing := false
		for _, key := range inheritable {
			if _, ok := page.Get(key); !ok {
				missing = true
			}
		}
		if !missing {
			continue
		}
		edited, err := d.editDict(ctx, ref)
		if err != nil {
			return err
		}
		d.materialize(ctx, edited, page)
	}
	return nil
}

func (d *Document) materialize(ctx context.Context, dst, page *raw.DictObj) {
	for _, key := range inheritable {
		if _, ok := dst.Get(key); ok {
			continue
		}
		if v, ok := d.inherited(ctx, page, key); ok {
			dst.Set(key, v)
		}
	}
}

// rebuildPageTree makes the root node the direct parent of every page.
func (d *Document) rebuildPageTree(ctx context.Context) error {
	root, err := d.editDict(ctx, d.pagesRef)
	if err != nil {
		return err
	}
	fresh := pagesNode(d.pages)
	root.Set("Type", raw.NameLiteral("Pages"))
	root.Delete("Parent")
	root.Set("Kids", mustGet(fresh, "Kids"))
	root.Set("Count", mustGet(fresh, "Count"))
	for _, ref := range d.pages {
		page, ok := d.resolveDict(ctx, raw.RefObj{R: ref})
		if !ok {
			continue
		}
		if parent, ok := page.Ref("Parent"); ok && parent == d.pagesRef {
			continue
		}
		edited, err := d.editDict(ctx, ref)
		if err != nil {
			return err
		}
		edited.Set("Parent", raw.RefObj{R: d.pagesRef})
	}
	return nil
}

func mustGet(dict *raw.DictObj, key string) raw.Object {
	v, _ := dict.Get(key)
	return v
}

// copier deep-copies objects of src into dst under new numbers.
type copier struct {
	src, dst *Document
	mapped   map[raw.ObjectRef]raw.ObjectRef
}

func (c *copier) page(ctx context.Context, ref raw.ObjectRef) (*raw.DictObj, error) {
	orig, ok := c.src.resolveDict(ctx, raw.RefObj{R: ref})
	if !ok {
		return nil, errors.New("page is not a dictionary")
	}
	flat := raw.Clone(orig).(*raw.DictObj)
	c.src.materialize(ctx, flat, orig)
	flat.Delete("Parent")
	out, err := c.value(ctx, flat)
	if err != nil {
		return nil, err
	}
	return out.(*raw.DictObj), nil
}

func (c *copier) value(ctx context.Context, obj raw.Object) (raw.Object, error) {
	switch v := obj.(type) {
	case raw.RefObj:
		return c.ref(ctx, v.R)
	case *raw.ArrayObj:
		arr := &raw.ArrayObj{Items: make([]raw.Object, len(v.Items))}
		for i, item := range v.Items {
			cv, err := c.value(ctx, item)
			if err != nil {
				return nil, err
			}
			arr.Items[i] = cv
		}
		return arr, nil
	case *raw.DictObj:
		out := raw.Dict()
		for k, item := range v.KV {
			cv, err := c.value(ctx, item)
			if err != nil {
				return nil, err
			}
			out.KV[k] = cv
		}
		return out, nil
	case *raw.StreamObj:
		dict, err := c.value(ctx, v.Dict)
		if err != nil {
			return nil, err
		}
		data := make([]byte, len(v.Data))
		copy(data, v.Data)
		return raw.NewStream(dict.(*raw.DictObj), data), nil
	}
	return raw.Clone(obj), nil
}

// ref copies the object ref points to. Pages outside the copied range are
// not followed, so links to them become null rather than dragging the rest
// of the source document along.
func (c *copier) ref(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	if dst, ok := c.mapped[ref]; ok {
		return raw.RefObj{R: dst}, nil
	}
	obj, err := c.src.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if dict, ok := obj.(*raw.DictObj); ok {
		if typ, _ := dict.Name("Type"); typ == "Page" || typ == "Pages" {
			return raw.NullObj{}, nil
		}
	}
	dst := c.dst.add(nil)
	c.mapped[ref] = dst
	cp, err := c.value(ctx, obj)
	if err != nil {
		return nil, err
	}
	c.dst.objects[dst] = cp
	return raw.RefObj{R: dst}, nil
}
