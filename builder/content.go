// Package builder produces content-stream fragments and image XObjects
// for pages being edited.
package builder

import (
	"bytes"
	"image/color"

	"github.com/wudi/blackout/coords"
	"github.com/wudi/blackout/ir/raw"
	"github.com/wudi/blackout/writer"
)

// Operation is one content-stream operator with its operands.
type Operation struct {
	Operator string
	Operands []raw.Object
}

// Content accumulates operations. Methods return the receiver so calls
// can be chained.
type Content struct {
	ops []Operation
}

func (c *Content) op(operator string, operands ...raw.Object) *Content {
	c.ops = append(c.ops, Operation{Operator: operator, Operands: operands})
	return c
}

func num(v float64) raw.Object { return raw.NumberFloat(v) }

// Save pushes the graphics state (q).
func (c *Content) Save() *Content { return c.op("q") }

// Restore pops the graphics state (Q).
func (c *Content) Restore() *Content { return c.op("Q") }

// FillColor sets the non-stroking DeviceRGB colour (rg).
func (c *Content) FillColor(col color.Color) *Content {
	r, g, b := rgb(col)
	return c.op("rg", num(r), num(g), num(b))
}

// Rect appends a rectangle path (re). Width and height are used as given.
func (c *Content) Rect(x, y, w, h float64) *Content {
	return c.op("re", num(x), num(y), num(w), num(h))
}

// Fill paints the current path with the nonzero winding rule (f).
func (c *Content) Fill() *Content { return c.op("f") }

// Transform concatenates m to the CTM (cm).
func (c *Content) Transform(m coords.Matrix) *Content {
	return c.op("cm", num(m[0]), num(m[1]), num(m[2]), num(m[3]), num(m[4]), num(m[5]))
}

// Do paints the named XObject.
func (c *Content) Do(name string) *Content { return c.op("Do", raw.NameLiteral(name)) }

func (c *Content) Operations() []Operation { return c.ops }

// Bytes serializes the operations, one per line.
func (c *Content) Bytes() []byte {
	var buf bytes.Buffer
	for _, op := range c.ops {
		for _, operand := range op.Operands {
			buf.Write(writer.Serialize(operand))
			buf.WriteByte(' ')
		}
		buf.WriteString(op.Operator)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// FilledRect paints r with col and no border. The rectangle is drawn from
// (X0, Y0) with size (X1-X0, Y1-Y0), so reversed corners still cover the
// same area.
func FilledRect(r coords.Rect, col color.Color) *Content {
	c := &Content{}
	return c.Save().FillColor(col).Rect(r.X0, r.Y0, r.Width(), r.Height()).Fill().Restore()
}

// PlaceImage draws the XObject name stretched over r.
func PlaceImage(name string, r coords.Rect) *Content {
	c := &Content{}
	m := coords.Matrix{r.Width(), 0, 0, r.Height(), r.X0, r.Y0}
	return c.Save().Transform(m).Do(name).Restore()
}

func rgb(col color.Color) (float64, float64, float64) {
	if col == nil {
		return 0, 0, 0
	}
	r, g, b, _ := col.RGBA()
	return float64(r) / 0xFFFF, float64(g) / 0xFFFF, float64(b) / 0xFFFF
}
