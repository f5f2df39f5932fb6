// Package pdftest has helpers for tests that look inside rendered and
// rasterized PDFs.
package pdftest

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/wudi/blackout/document"
	"github.com/wudi/blackout/filters"
	"github.com/wudi/blackout/ir/raw"
	"github.com/wudi/blackout/render"
)

// Images decodes the 8-bit DeviceRGB or DeviceGray image XObjects in the
// resources of page i, in resource name order.
func Images(doc *document.Document, i int) ([]image.Image, error) {
	ctx := context.Background()
	p, err := doc.Page(i)
	if err != nil {
		return nil, err
	}
	pageObj, err := doc.Load(ctx, p.Ref())
	if err != nil {
		return nil, err
	}
	page, ok := pageObj.(*raw.DictObj)
	if !ok {
		return nil, fmt.Errorf("page %d is %T", i, pageObj)
	}
	res := dict(ctx, doc, page, "Resources")
	if res == nil {
		return nil, nil
	}
	xobjects := dict(ctx, doc, res, "XObject")
	if xobjects == nil {
		return nil, nil
	}
	pipeline := filters.DefaultPipeline(filters.Limits{})
	var out []image.Image
	for _, name := range xobjects.Keys() {
		obj, err := resolve(ctx, doc, xobjects.KV[name])
		if err != nil {
			return nil, err
		}
		st, ok := obj.(*raw.StreamObj)
		if !ok {
			continue
		}
		if sub, _ := st.Dict.Name("Subtype"); sub != "Image" {
			continue
		}
		data, err := pipeline.DecodeStream(ctx, st)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		img, err := samples(st.Dict, data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, img)
	}
	return out, nil
}

func samples(d *raw.DictObj, data []byte) (image.Image, error) {
	w, _ := d.Int("Width")
	h, _ := d.Int("Height")
	bpc, _ := d.Int("BitsPerComponent")
	cs, _ := d.Name("ColorSpace")
	if bpc != 8 {
		return nil, fmt.Errorf("unsupported bits per component %d", bpc)
	}
	rect := image.Rect(0, 0, int(w), int(h))
	n := int(w * h)
	switch cs {
	case "DeviceRGB":
		if len(data) < 3*n {
			return nil, fmt.Errorf("short RGB data: %d bytes for %dx%d", len(data), w, h)
		}
		img := image.NewRGBA(rect)
		for i := 0; i < n; i++ {
			img.Pix[4*i], img.Pix[4*i+1], img.Pix[4*i+2], img.Pix[4*i+3] = data[3*i], data[3*i+1], data[3*i+2], 0xff
		}
		return img, nil
	case "DeviceGray":
		if len(data) < n {
			return nil, fmt.Errorf("short gray data: %d bytes for %dx%d", len(data), w, h)
		}
		return &image.Gray{Pix: data[:n], Stride: int(w), Rect: rect}, nil
	}
	return nil, fmt.Errorf("unsupported color space %q", cs)
}

func resolve(ctx context.Context, doc *document.Document, obj raw.Object) (raw.Object, error) {
	for depth := 0; depth < 32; depth++ {
		ref, ok := obj.(raw.RefObj)
		if !ok {
			return obj, nil
		}
		next, err := doc.Load(ctx, ref.R)
		if err != nil {
			return nil, err
		}
		obj = next
	}
	return nil, fmt.Errorf("reference chain too deep")
}

func dict(ctx context.Context, doc *document.Document, d *raw.DictObj, key string) *raw.DictObj {
	v, ok := d.Get(key)
	if !ok {
		return nil
	}
	obj, err := resolve(ctx, doc, v)
	if err != nil {
		return nil
	}
	out, _ := obj.(*raw.DictObj)
	return out
}

// Renderer stands in for MuPDF. A page renders as round(width*zoom) by
// round(height*zoom) white pixels, or, when the page shows a single image,
// as that image scaled to the raster. calls, when not nil, counts
// invocations.
func Renderer(calls *int) render.Func {
	return func(ctx context.Context, src render.Source, page int, zoom float64) (*image.RGBA, error) {
		if calls != nil {
			*calls++
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var doc *document.Document
		var err error
		if src.Data != nil {
			doc, err = document.OpenBytes(src.Data, "")
		} else {
			doc, err = document.Open(src.Path)
		}
		if err != nil {
			return nil, err
		}
		defer doc.Close()
		p, err := doc.Page(page)
		if err != nil {
			return nil, err
		}
		img := image.NewRGBA(image.Rect(0, 0, int(math.Round(p.Width()*zoom)), int(math.Round(p.Height()*zoom))))
		draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
		images, err := Images(doc, page)
		if err != nil {
			return nil, err
		}
		if len(images) == 1 {
			draw.NearestNeighbor.Scale(img, img.Bounds(), images[0], images[0].Bounds(), draw.Src, nil)
		}
		return img, nil
	}
}

// IsBlack reports whether the pixel at (x, y) is pure black.
func IsBlack(img image.Image, x, y int) bool {
	c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
	return c.R == 0 && c.G == 0 && c.B == 0
}
