package document

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/wudi/blackout/builder"
	"github.com/wudi/blackout/coords"
	"github.com/wudi/blackout/errs"
	"github.com/wudi/blackout/ir/raw"
)

// DrawFilledRect paints r, in PDF user space, with c and no border on top
// of the existing page content.
func (p *Page) DrawFilledRect(r coords.Rect, c color.Color) error {
	if err := p.doc.check("draw rect"); err != nil {
		return err
	}
	if err := p.appendContent(context.Background(), builder.FilledRect(r, c).Bytes()); err != nil {
		return errs.Wrap(errs.IO, "draw rect", p.doc.path, err)
	}
	return nil
}

// InsertImage draws img stretched over r, in PDF user space. The image is
// stored losslessly as DeviceRGB.
func (p *Page) InsertImage(r coords.Rect, img image.Image) error {
	if err := p.doc.check("insert image"); err != nil {
		return err
	}
	ctx := context.Background()
	xobj, err := builder.RGBImage(img, 0)
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, "insert image", p.doc.path, err)
	}
	name, err := p.addXObject(ctx, p.doc.add(xobj))
	if err != nil {
		return errs.Wrap(errs.IO, "insert image", p.doc.path, err)
	}
	if err := p.appendContent(ctx, builder.PlaceImage(name, r).Bytes()); err != nil {
		return errs.Wrap(errs.IO, "insert image", p.doc.path, err)
	}
	return nil
}

// addXObject registers ref in the page's /Resources /XObject under a fresh
// name. Inherited resources are copied onto the page first.
func (p *Page) addXObject(ctx context.Context, ref raw.ObjectRef) (string, error) {
	d := p.doc
	orig, ok := d.resolveDict(ctx, raw.RefObj{R: p.ref})
	if !ok {
		return "", fmt.Errorf("page %v is not a dictionary", p.ref)
	}
	page, err := d.editDict(ctx, p.ref)
	if err != nil {
		return "", err
	}
	res := raw.Dict()
	if v, ok := d.inherited(ctx, orig, "Resources"); ok {
		if rd, ok := v.(*raw.DictObj); ok {
			res = raw.Clone(rd).(*raw.DictObj)
		}
	}
	xobjects := raw.Dict()
	if v, ok := res.Get("XObject"); ok {
		if xd, ok := d.resolveDict(ctx, v); ok {
			xobjects = raw.Clone(xd).(*raw.DictObj)
		}
	}
	name := ""
	for i := 0; ; i++ {
		name = fmt.Sprintf("Im%d", i)
		if _, taken := xobjects.Get(name); !taken {
			break
		}
	}
	xobjects.Set(name, raw.RefObj{R: ref})
	res.Set("XObject", xobjects)
	page.Set("Resources", res)
	return name, nil
}

// appendContent adds ops after the page's content. The first time a page
// is drawn on, its existing streams are bracketed by q and Q in streams of
// their own so that graphics state they leave behind cannot affect ops and
// the original streams stay byte for byte untouched.
func (p *Page) appendContent(ctx context.Context, ops []byte) error {
	d := p.doc
	if ref, ok := d.overlays[p.ref]; ok {
		obj, err := d.edit(ctx, ref)
		if err != nil {
			return err
		}
		st, ok := obj.(*raw.StreamObj)
		if !ok {
			return fmt.Errorf("overlay stream %v missing", ref)
		}
		st.Data = append(st.Data, ops...)
		return nil
	}

	page, err := d.editDict(ctx, p.ref)
	if err != nil {
		return err
	}
	var existing []raw.Object
	if v, ok := page.Get("Contents"); ok {
		switch c := v.(type) {
		case raw.RefObj:
			target, err := d.resolve(ctx, c)
			if err != nil {
				return err
			}
			if arr, ok := target.(*raw.ArrayObj); ok {
				existing = append(existing, arr.Items...)
			} else if _, isNull := target.(raw.NullObj); !isNull {
				existing = append(existing, c)
			}
		case *raw.ArrayObj:
			existing = append(existing, c.Items...)
		}
	}
	contents := raw.NewArray()
	data := append([]byte{}, ops...)
	if len(existing) > 0 {
		contents.Append(raw.RefObj{R: d.add(raw.NewStream(raw.Dict(), []byte("q\n")))})
		contents.Items = append(contents.Items, existing...)
		data = append([]byte("\nQ\n"), ops...)
	}
	overlay := d.add(raw.NewStream(raw.Dict(), data))
	contents.Append(raw.RefObj{R: overlay})
	page.Set("Contents", contents)
	d.overlays[p.ref] = overlay
	return nil
}

// Content returns the page's decoded content streams, concatenated.
func (p *Page) Content() ([]byte, error) {
	ctx := context.Background()
	page := p.dict(ctx)
	v, ok := page.Get("Contents")
	if !ok {
		return nil, nil
	}
	v, err := p.doc.resolve(ctx, v)
	if err != nil {
		return nil, err
	}
	var items []raw.Object
	if arr, ok := v.(*raw.ArrayObj); ok {
		items = arr.Items
	} else {
		items = []raw.Object{v}
	}
	var out []byte
	for _, item := range items {
		obj, err := p.doc.resolve(ctx, item)
		if err != nil {
			return nil, err
		}
		st, ok := obj.(*raw.StreamObj)
		if !ok {
			continue
		}
		data, err := p.doc.decodeStream(ctx, st)
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
		out = append(out, '\n')
	}
	return out, nil
}
