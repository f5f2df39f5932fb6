package render

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/wudi/blackout/errs"
)

func TestFitzRejectsBadArguments(t *testing.T) {
	r := NewFitz()
	cases := []struct {
		name string
		src  Source
		zoom float64
	}{
		{"empty source", Source{}, 2},
		{"zero zoom", Source{Path: "x.pdf"}, 0},
		{"negative zoom", Source{Data: []byte("%PDF")}, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := r.RenderPage(context.Background(), tc.src, 0, tc.zoom); !errors.Is(err, errs.ErrInvalidArgument) {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestFitzHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewFitz().RenderPage(ctx, Source{Path: "x.pdf"}, 0, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestFuncAdapter(t *testing.T) {
	var got Source
	r := Func(func(_ context.Context, src Source, page int, zoom float64) (*image.RGBA, error) {
		got = src
		return image.NewRGBA(image.Rect(0, 0, int(10*zoom), int(20*zoom))), nil
	})
	img, err := r.RenderPage(context.Background(), Source{Path: "a.pdf"}, 0, 2)
	if err != nil || img.Bounds().Dx() != 20 || got.String() != "a.pdf" {
		t.Fatalf("img = %v err = %v src = %v", img.Bounds(), err, got)
	}
	if (Source{Data: make([]byte, 3)}).String() != "<3 bytes>" {
		t.Fatalf("memory source string")
	}
}
