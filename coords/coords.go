// Package coords converts between PDF user space and raster image space.
package coords

import (
	"fmt"
	"image"
)

// Matrix is a PDF affine transform [a b c d e f], as written before a cm
// operator.
type Matrix [6]float64

// Space names the coordinate system a rectangle is expressed in.
type Space int

const (
	// PDF has its origin at the bottom-left, y grows upward, units are points.
	PDF Space = iota
	// Image has its origin at the top-left, y grows downward, units are pixels.
	Image
)

func (s Space) String() string {
	if s == Image {
		return "image"
	}
	return "pdf"
}

// Rect is a pair of corners. Corners are kept exactly as given, so Width
// and Height may be negative.
type Rect struct {
	X0, Y0, X1, Y1 float64
	Space          Space
}

func NewRect(x0, y0, x1, y1 float64) Rect { return Rect{X0: x0, Y0: y0, X1: x1, Y1: y1} }

func (r Rect) Width() float64  { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Descale divides every coordinate by f.
func (r Rect) Descale(f float64) Rect {
	return Rect{X0: r.X0 / f, Y0: r.Y0 / f, X1: r.X1 / f, Y1: r.Y1 / f, Space: r.Space}
}

// Normalize orders the corners so that X0 <= X1 and Y0 <= Y1.
func (r Rect) Normalize() Rect {
	if r.X0 > r.X1 {
		r.X0, r.X1 = r.X1, r.X0
	}
	if r.Y0 > r.Y1 {
		r.Y0, r.Y1 = r.Y1, r.Y0
	}
	return r
}

func (r Rect) String() string {
	return fmt.Sprintf("[%g %g %g %g](%s)", r.X0, r.Y0, r.X1, r.Y1, r.Space)
}

// PixelBox is an integer region of a rendered page: origin plus size.
type PixelBox struct {
	X, Y, W, H int
}

// ToPixelBox converts a PDF-space region, given by its bottom-left corner
// and size, to pixels. Each component is truncated toward zero.
func ToPixelBox(x, y, w, h, pageHeight, zoom float64) PixelBox {
	return PixelBox{
		X: int(x * zoom),
		Y: int((pageHeight - (y + h)) * zoom),
		W: int(w * zoom),
		H: int(h * zoom),
	}
}

// Rect returns the box as an image-space rectangle.
func (p PixelBox) Rect() Rect {
	return Rect{X0: float64(p.X), Y0: float64(p.Y), X1: float64(p.X + p.W), Y1: float64(p.Y + p.H), Space: Image}
}

// Bounds is the set of pixels a fill of the box covers. Both corners are
// included, matching how raster libraries fill a rectangle given by two
// corners. Negative sizes are reordered first.
func (p PixelBox) Bounds() image.Rectangle {
	x0, x1 := p.X, p.X+p.W
	y0, y1 := p.Y, p.Y+p.H
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	return image.Rect(x0, y0, x1+1, y1+1)
}
