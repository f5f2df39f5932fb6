package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wudi/blackout/boxes"
	"github.com/wudi/blackout/redact"
	"github.com/wudi/blackout/render"
)

const blackoutUsage = "usage: blackout <pdfPath> <coordsLiteral> [-p|--page N]"

// NewBlackoutCommand returns the command that rasterizes one page of a PDF
// with boxes painted over it, rewriting the file once per box.
func NewBlackoutCommand() *cobra.Command { return newBlackoutCommand(nil) }

func newBlackoutCommand(renderer render.Renderer) *cobra.Command {
	var (
		flags commonFlags
		page  int
	)
	cmd := newCommand("blackout", "blackout <pdfPath> <coordsLiteral>",
		"Irreversibly black out regions of a PDF page", 2, &flags)
	cmd.Long = `blackout replaces one page of a PDF with a rendered image of itself in
which every box is painted black, so nothing beneath a box survives.

Boxes are given as a literal list of (x0, y0, x1, y1) corner tuples in PDF
units with the origin at the bottom-left corner, either directly or under a
"boxes" key of a leading mapping. Width is x1-x0 and height y1-y0:

  blackout doc.pdf '[(10, 20, 110, 50)]' -p 2
  blackout doc.pdf '[{"boxes": [[10, 20, 110, 50]]}]'`
	cmd.Flags().IntVarP(&page, "page", "p", 0, "zero-based page index")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if flags.printConfig {
			return flags.cfg.Write(out)
		}
		if len(args) != 2 {
			return &UsageError{Code: 2, Msg: blackoutUsage}
		}
		path := args[0]
		list, err := boxes.ParseLiteral(args[1])
		if err != nil {
			return err
		}
		logger := loggerFromContext(cmd.Context())
		printBoxCount(out, len(list))

		r := &redact.Rasterizer{
			Zoom:       flags.cfg.Raster.Zoom,
			TempSuffix: flags.cfg.Raster.TempSuffix,
			Renderer:   renderer,
			Password:   flags.password,
			Logger:     adaptLogger(logger),
			Progress: func(index, _ int, x, y, w, h float64) {
				printBox(out, index, x, y, w, h)
			},
		}
		timer := startTimer()
		if err := r.Apply(cmd.Context(), path, list, redact.SinglePage(page)); err != nil {
			return err
		}
		printSuccess(out, "done: %s on page %d of %s %s",
			StyleNumber.Render(plural(len(list), "box", "boxes")), page, path, StyleDim.Render("("+timer.String()+")"))
		return nil
	}
	return cmd
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return strconv.Itoa(n) + " " + many
}
