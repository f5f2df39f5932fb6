// Package render rasterizes PDF pages.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"

	"github.com/wudi/blackout/errs"
)

// Source names the PDF to render: a file, or bytes held in memory when the
// file cannot be read directly (for example because it is encrypted with
// a password the renderer was not given).
type Source struct {
	Path string
	Data []byte
}

func (s Source) String() string {
	if s.Data != nil {
		return fmt.Sprintf("<%d bytes>", len(s.Data))
	}
	return s.Path
}

// Renderer turns page (zero-based) into an RGB raster. At zoom 1 one pixel
// covers one point, so the raster is round(width*zoom) x round(height*zoom)
// pixels.
type Renderer interface {
	RenderPage(ctx context.Context, src Source, page int, zoom float64) (*image.RGBA, error)
}

// Func adapts a function to Renderer.
type Func func(ctx context.Context, src Source, page int, zoom float64) (*image.RGBA, error)

func (f Func) RenderPage(ctx context.Context, src Source, page int, zoom float64) (*image.RGBA, error) {
	return f(ctx, src, page, zoom)
}

// Fitz renders with MuPDF.
type Fitz struct{}

func NewFitz() *Fitz { return &Fitz{} }

func (r *Fitz) RenderPage(ctx context.Context, src Source, page int, zoom float64) (*image.RGBA, error) {
	if err := validate(src, zoom); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := open(src)
	if err != nil {
		return nil, errs.Wrap(errs.IO, "render", src.Path, fmt.Errorf("unable to open PDF document: %w", err))
	}
	defer doc.Close()
	if page < 0 || page >= doc.NumPage() {
		return nil, errs.New(errs.OutOfRange, "render", "page %d out of range [0, %d)", page, doc.NumPage())
	}
	img, err := doc.ImageDPI(page, 72*zoom)
	if err != nil {
		return nil, errs.Wrap(errs.IO, "render", src.Path, fmt.Errorf("unable to render page %d: %w", page, err))
	}
	return img, nil
}

func validate(src Source, zoom float64) error {
	if src.Path == "" && len(src.Data) == 0 {
		return errs.Wrap(errs.InvalidArgument, "render", "", errors.New("empty source"))
	}
	if zoom <= 0 {
		return errs.New(errs.InvalidArgument, "render", "zoom must be positive, got %g", zoom)
	}
	return nil
}

func open(src Source) (*fitz.Document, error) {
	if len(src.Data) > 0 {
		return fitz.NewFromMemory(src.Data)
	}
	return fitz.New(src.Path)
}
