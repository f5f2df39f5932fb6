package redact

import (
	"context"
	"image/color"

	"github.com/wudi/blackout/boxes"
	"github.com/wudi/blackout/document"
	"github.com/wudi/blackout/errs"
	"github.com/wudi/blackout/observability"
)

// Overlay redacts by drawing opaque black rectangles over page content.
// The covered content stays in the file; only its appearance is hidden.
type Overlay struct {
	// Descale divides every coordinate; zero selects DefaultDescale.
	Descale  float64
	Password string
	Logger   observability.Logger
}

func (o *Overlay) descale() float64 {
	if o.Descale > 0 {
		return o.Descale
	}
	return DefaultDescale
}

// BlackOut parses rawCoords as comma-separated x0,y0,x1,y1 groups and
// draws every box on every page of pdfPath, saving incrementally. It
// returns the number of boxes drawn; an empty box list leaves the file
// untouched.
func (o *Overlay) BlackOut(ctx context.Context, pdfPath, rawCoords string) (int, error) {
	logger := observability.Or(o.Logger)
	parsed, err := boxes.ParseCSV(rawCoords)
	if err != nil {
		return 0, err
	}
	if notice := parsed.Truncation(); notice != nil {
		logger.Warn("coordinates truncated", observability.Error("notice", notice),
			observability.Int("dropped", len(parsed.Dropped)))
	}
	if err := o.Apply(ctx, pdfPath, parsed.Boxes, AllPages()); err != nil {
		return 0, err
	}
	return len(parsed.Boxes), nil
}

func (o *Overlay) Apply(ctx context.Context, path string, list boxes.List, scope PageScope) error {
	logger := observability.Or(o.Logger)
	if len(list) == 0 {
		logger.Info(boxes.NoBoxes, observability.String("path", path))
		return nil
	}
	doc, err := document.Open(path, document.Config{Password: o.Password, Logger: logger})
	if err != nil {
		return err
	}
	defer doc.Close()

	pages, err := scopePages(scope, doc.PageCount())
	if err != nil {
		return err
	}
	f := o.descale()
	for _, i := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := doc.Page(i)
		if err != nil {
			return err
		}
		for _, b := range list {
			if err := page.DrawFilledRect(b.Descale(f), color.Black); err != nil {
				return err
			}
		}
	}
	logger.Info("applied overlay",
		observability.String("path", path),
		observability.Int("boxes", len(list)),
		observability.Int("pages", len(pages)))
	return doc.Save(path, document.SaveOptions{Incremental: true})
}

func scopePages(scope PageScope, count int) ([]int, error) {
	if i, ok := scope.Single(); ok {
		if i < 0 || i >= count {
			return nil, errs.New(errs.OutOfRange, "overlay", "page %d outside [0, %d)", i, count)
		}
		return []int{i}, nil
	}
	out := make([]int, count)
	for i := range out {
		out[i] = i
	}
	return out, nil
}
