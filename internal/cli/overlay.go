package cli

import (
	"github.com/spf13/cobra"

	"github.com/wudi/blackout/redact"
)

const overlayUsage = "usage: overlay <pdfPath> <csvCoords>"

// NewOverlayCommand returns the command that draws black rectangles over
// every page of a PDF and appends the change to the file.
func NewOverlayCommand() *cobra.Command {
	var flags commonFlags
	cmd := newCommand("overlay", "overlay <pdfPath> <csvCoords>",
		"Draw black rectangles over every page of a PDF", 1, &flags)
	cmd.Long = `overlay draws an opaque black rectangle for every box on every page and
saves the PDF incrementally, keeping its original bytes and encryption.
The covered content remains in the file.

Coordinates are comma-separated x0,y0,x1,y1 groups, divided by the
configured descale factor (2.1 by default) to get PDF units. Trailing
values that do not make a full group are ignored with a warning.

  overlay doc.pdf 0,0,210,105,420,420,630,525`

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if flags.printConfig {
			return flags.cfg.Write(out)
		}
		// Extra positional arguments are ignored.
		if len(args) < 2 {
			return &UsageError{Code: 1, Msg: overlayUsage}
		}
		o := &redact.Overlay{
			Descale:  flags.cfg.Overlay.Descale,
			Password: flags.password,
			Logger:   adaptLogger(loggerFromContext(cmd.Context())),
		}
		timer := startTimer()
		n, err := o.BlackOut(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		printBoxCount(out, n)
		if n == 0 {
			return nil
		}
		printSuccess(out, "overlay saved to %s %s", args[0], StyleDim.Render("("+timer.String()+")"))
		return nil
	}
	return cmd
}
