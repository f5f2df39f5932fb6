// Package redact blacks out rectangular regions of PDF pages.
//
// Two independent strategies are provided. Rasterizer replaces a page with
// a picture of itself in which the regions are painted black, so nothing
// under a box survives. Overlay draws black vector rectangles on top of the
// existing content of every page and appends the change to the file,
// leaving the original bytes and encryption intact.
package redact

import (
	"context"
	"fmt"

	"github.com/wudi/blackout/boxes"
)

const (
	// DefaultZoom is the scale pages are rasterized at.
	DefaultZoom = 2.0
	// DefaultDescale divides overlay coordinates, which callers supply at
	// 2.1 times PDF scale.
	DefaultDescale = 2.1
	// DefaultTempSuffix is appended to the input path to name the file
	// each rasterizing step writes before it is swapped in.
	DefaultTempSuffix = ".tmp.pdf"
)

// Redactor applies boxes to the PDF at path.
type Redactor interface {
	Apply(ctx context.Context, path string, list boxes.List, scope PageScope) error
}

var (
	_ Redactor = (*Rasterizer)(nil)
	_ Redactor = (*Overlay)(nil)
)

// PageScope selects the pages a Redactor works on. The zero value means
// every page.
type PageScope struct {
	single bool
	index  int
}

func SinglePage(i int) PageScope { return PageScope{single: true, index: i} }
func AllPages() PageScope        { return PageScope{} }

// Single reports the page index of a single-page scope.
func (s PageScope) Single() (int, bool) { return s.index, s.single }

func (s PageScope) String() string {
	if s.single {
		return fmt.Sprintf("page %d", s.index)
	}
	return "all pages"
}
