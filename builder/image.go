package builder

import (
	"errors"
	"image"

	"golang.org/x/image/draw"

	"github.com/wudi/blackout/filters"
	"github.com/wudi/blackout/ir/raw"
)

// RGBImage encodes img as an 8-bit DeviceRGB image XObject compressed with
// Flate. Alpha is discarded.
func RGBImage(img image.Image, level int) (*raw.StreamObj, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, errors.New("empty image")
	}
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	w, h := b.Dx(), b.Dy()
	pixels := make([]byte, 0, w*h*3)
	for y := 0; y < h; y++ {
		row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
		for x := 0; x < w; x++ {
			pixels = append(pixels, row[x*4], row[x*4+1], row[x*4+2])
		}
	}
	data, err := filters.FlateEncode(pixels, level)
	if err != nil {
		return nil, err
	}
	d := raw.Dict()
	d.Set("Type", raw.NameLiteral("XObject"))
	d.Set("Subtype", raw.NameLiteral("Image"))
	d.Set("Width", raw.NumberInt(int64(w)))
	d.Set("Height", raw.NumberInt(int64(h)))
	d.Set("ColorSpace", raw.NameLiteral("DeviceRGB"))
	d.Set("BitsPerComponent", raw.NumberInt(8))
	d.Set("Filter", raw.NameLiteral("FlateDecode"))
	return raw.NewStream(d, data), nil
}
