package redact

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"

	"golang.org/x/image/draw"

	"github.com/wudi/blackout/boxes"
	"github.com/wudi/blackout/coords"
	"github.com/wudi/blackout/document"
	"github.com/wudi/blackout/errs"
	"github.com/wudi/blackout/observability"
	"github.com/wudi/blackout/render"
)

// ProgressFunc is told about each box before it is applied. index counts
// from 1.
type ProgressFunc func(index, total int, x, y, w, h float64)

// Rasterizer redacts by re-rendering a page with the boxes painted black.
// The zero value is ready to use.
type Rasterizer struct {
	// Zoom is the render scale; zero selects DefaultZoom.
	Zoom float64
	// TempSuffix names the per-step output file; empty selects
	// DefaultTempSuffix.
	TempSuffix string
	// Renderer rasterizes pages; nil selects MuPDF.
	Renderer render.Renderer
	Password string
	Logger   observability.Logger
	Progress ProgressFunc
}

func (r *Rasterizer) zoom() float64 {
	if r.Zoom > 0 {
		return r.Zoom
	}
	return DefaultZoom
}

func (r *Rasterizer) renderer() render.Renderer {
	if r.Renderer != nil {
		return r.Renderer
	}
	return render.NewFitz()
}

func (r *Rasterizer) tempPath(path string) string {
	if r.TempSuffix != "" {
		return path + r.TempSuffix
	}
	return path + DefaultTempSuffix
}

// BlackoutRegion writes to outputPath a copy of inputPath in which page
// pageIndex is replaced by an image of itself with the region painted
// black. The region is given in PDF space by its lower-left corner and its
// size; a negative size extends the other way.
func (r *Rasterizer) BlackoutRegion(ctx context.Context, inputPath, outputPath string, pageIndex int, x, y, width, height float64) error {
	logger := observability.Or(r.Logger)
	zoom := r.zoom()
	cfg := document.Config{Password: r.Password, Logger: logger}

	doc, err := document.Open(inputPath, cfg)
	if err != nil {
		return err
	}
	defer doc.Close()
	page, err := doc.Page(pageIndex)
	if err != nil {
		return err
	}
	pageW, pageH := page.Width(), page.Height()

	src := render.Source{Path: inputPath}
	if r.Password != "" {
		// The renderer is not given the password, so it receives a
		// decrypted copy instead.
		data, err := doc.Bytes(document.SaveOptions{})
		if err != nil {
			return err
		}
		src = render.Source{Data: data}
	}
	img, err := r.renderer().RenderPage(ctx, src, pageIndex, zoom)
	if err != nil {
		return err
	}

	box := coords.ToPixelBox(x, y, width, height, pageH, zoom)
	fill := box.Bounds().Intersect(img.Bounds())
	draw.Draw(img, fill, image.Black, image.Point{}, draw.Src)
	logger.Debug("painted region",
		observability.Int("page", pageIndex),
		observability.String("box", box.Rect().String()),
		observability.Any("pixels", fill),
		observability.Float64("zoom", zoom))

	single := document.New()
	defer single.Close()
	imgPage, err := single.NewPage(pageW, pageH)
	if err != nil {
		return err
	}
	if err := imgPage.InsertImage(imgPage.Rect(), img); err != nil {
		return err
	}

	result := document.New()
	defer result.Close()
	if err := result.InsertPagesFrom(doc, 0, doc.PageCount()-1, -1); err != nil {
		return err
	}
	if err := result.DeletePage(pageIndex); err != nil {
		return err
	}
	if err := result.InsertPagesFrom(single, 0, 0, pageIndex); err != nil {
		return err
	}
	return result.Save(outputPath, document.SaveOptions{})
}

// ApplyBoxes blacks out each box on page pageIndex of the file at
// inputPath, one box at a time. After each box the result replaces the
// file, so a failure keeps the boxes applied before it.
func (r *Rasterizer) ApplyBoxes(ctx context.Context, inputPath string, list boxes.List, pageIndex int) error {
	logger := observability.Or(r.Logger)
	tmp := r.tempPath(inputPath)
	for i, b := range list {
		w, h := b.Width(), b.Height()
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("box %d: %w", i+1, err)
		}
		if r.Progress != nil {
			r.Progress(i+1, len(list), b.X0, b.Y0, w, h)
		}
		logger.Debug("applying box",
			observability.Int("index", i+1),
			observability.Float64("x", b.X0), observability.Float64("y", b.Y0),
			observability.Float64("w", w), observability.Float64("h", h))
		if err := r.BlackoutRegion(ctx, inputPath, tmp, pageIndex, b.X0, b.Y0, w, h); err != nil {
			removeStale(tmp)
			return fmt.Errorf("box %d: %w", i+1, err)
		}
		if err := swap(tmp, inputPath); err != nil {
			removeStale(tmp)
			return fmt.Errorf("box %d: %w", i+1, errs.Wrap(errs.IO, "swap", inputPath, err))
		}
	}
	return nil
}

// Apply runs ApplyBoxes. Only single-page scopes are supported.
func (r *Rasterizer) Apply(ctx context.Context, path string, list boxes.List, scope PageScope) error {
	index, ok := scope.Single()
	if !ok {
		return errs.New(errs.InvalidArgument, "rasterize", "a single page must be selected, got %s", scope)
	}
	return r.ApplyBoxes(ctx, path, list, index)
}

// swap moves tmp over current when tmp exists.
func swap(tmp, current string) error {
	if _, err := os.Stat(tmp); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	err := os.Rename(tmp, current)
	if err == nil {
		return nil
	}
	// Windows will not rename over an existing file.
	if rmErr := os.Remove(current); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		return err
	}
	return os.Rename(tmp, current)
}

// removeStale drops a partial step output; a missing file is fine.
func removeStale(path string) { _ = os.Remove(path) }
