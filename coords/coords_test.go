package coords

import (
	"image"
	"math"
	"testing"
)

func TestToPixelBox(t *testing.T) {
	cases := []struct {
		name                 string
		x, y, w, h, ph, zoom float64
		want                 PixelBox
	}{
		{"letter", 72, 700, 144, 36, 792, 2, PixelBox{144, 112, 288, 72}},
		{"truncates", 10.7, 10.7, 5.3, 5.3, 100, 1, PixelBox{10, 84, 5, 5}},
		{"negative size", 100, 100, -50, -20, 200, 2, PixelBox{200, 240, -100, -40}},
		{"above page", 0, 250, 10, 10, 200, 1, PixelBox{0, -60, 10, 10}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ToPixelBox(tc.x, tc.y, tc.w, tc.h, tc.ph, tc.zoom); got != tc.want {
				t.Fatalf("got %+v want %+v", got, tc.want)
			}
		})
	}
}

func TestPixelBoxBoundsInclusive(t *testing.T) {
	b := PixelBox{X: 10, Y: 20, W: 5, H: 3}.Bounds()
	if b != image.Rect(10, 20, 16, 24) {
		t.Fatalf("bounds = %v", b)
	}
	neg := PixelBox{X: 10, Y: 20, W: -5, H: -3}.Bounds()
	if neg != image.Rect(5, 17, 11, 21) {
		t.Fatalf("negative bounds = %v", neg)
	}
}

func TestPixelBoxRectIsImageSpace(t *testing.T) {
	r := ToPixelBox(72, 700, 144, 36, 792, 2).Rect()
	if r != (Rect{X0: 144, Y0: 112, X1: 432, Y1: 184, Space: Image}) {
		t.Fatalf("rect = %v", r)
	}
	if r.String() != "[144 112 432 184](image)" || NewRect(1, 2, 3, 4).Space != PDF {
		t.Fatalf("string = %s", r)
	}
}

func TestRectKeepsCorners(t *testing.T) {
	r := NewRect(50, 50, 10, 10)
	if r.Width() != -40 || r.Height() != -40 {
		t.Fatalf("width/height = %v/%v", r.Width(), r.Height())
	}
	if n := r.Normalize(); n.X0 != 10 || n.Y1 != 50 {
		t.Fatalf("normalize = %v", n)
	}
	d := NewRect(21, 42, 63, 84).Descale(2.1)
	if math.Abs(d.X0-10) > 1e-9 || math.Abs(d.Y1-40) > 1e-9 {
		t.Fatalf("descale = %v", d)
	}
}
