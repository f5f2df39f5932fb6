package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/wudi/blackout/document"
	"github.com/wudi/blackout/internal/pdftest"
)

func samplePDF(t *testing.T, pages int) string {
	t.Helper()
	doc := document.New()
	defer doc.Close()
	for i := 0; i < pages; i++ {
		doc.NewPage(100, 100)
	}
	path := filepath.Join(t.TempDir(), "in.pdf")
	if err := doc.Save(path, document.SaveOptions{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	return path
}

func run(ctx context.Context, cmd *cobra.Command, args ...string) (code int, stdout, stderr string) {
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	code = Run(ctx, cmd, args)
	return code, out.String(), errOut.String()
}

func TestBlackoutCommand(t *testing.T) {
	path := samplePDF(t, 2)
	code, out, errOut := run(context.Background(), newBlackoutCommand(pdftest.Renderer(nil)),
		path, "[(10, 20, 30, 40), (0, 0, 5, 5)]", "-p", "1")
	if code != 0 {
		t.Fatalf("code = %d, stderr = %s", code, errOut)
	}
	for _, want := range []string{"total boxes: 2", "[1] processing: x=10, y=20, w=20, h=20", "[2] processing: x=0, y=0, w=5, h=5", "2 boxes on page 1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("stdout %q lacks %q", out, want)
		}
	}
	doc, err := document.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer doc.Close()
	if images, _ := pdftest.Images(doc, 1); len(images) != 1 {
		t.Fatalf("page 1 images = %d", len(images))
	}
}

func TestBlackoutHelpDescribesCorners(t *testing.T) {
	long := newBlackoutCommand(pdftest.Renderer(nil)).Long
	if !strings.Contains(long, "(x0, y0, x1, y1)") || strings.Contains(long, "width, height)") {
		t.Fatalf("help = %q", long)
	}
}

func TestBlackoutCommandExitCodes(t *testing.T) {
	path := samplePDF(t, 1)
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	tests := []struct {
		name string
		ctx  context.Context
		args []string
		want int
	}{
		{"missing literal", context.Background(), []string{path}, 2},
		{"extra argument", context.Background(), []string{path, "[]", "more"}, 2},
		{"unknown flag", context.Background(), []string{path, "[]", "--zoom", "3"}, 2},
		{"malformed literal", context.Background(), []string{path, "[(1, 2, 3)]"}, 1},
		{"page out of range", context.Background(), []string{path, "[(1, 2, 3, 4)]", "-p", "7"}, 1},
		{"missing file", context.Background(), []string{path + ".gone", "[(1, 2, 3, 4)]"}, 1},
		{"interrupted", cancelled, []string{path, "[(1, 2, 3, 4)]"}, 130},
		{"empty list", context.Background(), []string{path, "[]"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := run(tt.ctx, newBlackoutCommand(pdftest.Renderer(nil)), tt.args...)
			if code != tt.want {
				t.Fatalf("code = %d want %d, stderr = %s", code, tt.want, errOut)
			}
		})
	}
}

func TestOverlayCommand(t *testing.T) {
	path := samplePDF(t, 2)
	before, _ := os.ReadFile(path)
	code, out, errOut := run(context.Background(), NewOverlayCommand(), path, "0,0,21,21", "ignored")
	if code != 0 {
		t.Fatalf("code = %d, stderr = %s", code, errOut)
	}
	if !strings.Contains(out, "total boxes: 1") || !strings.Contains(out, "overlay saved to "+path) {
		t.Fatalf("stdout = %q", out)
	}
	after, _ := os.ReadFile(path)
	if !bytes.HasPrefix(after, before) || len(after) <= len(before) {
		t.Fatalf("file was not appended to")
	}
}

func TestOverlayCommandNoBoxes(t *testing.T) {
	path := samplePDF(t, 1)
	before, _ := os.ReadFile(path)
	code, out, errOut := run(context.Background(), NewOverlayCommand(), path, "1,2,3")
	if code != 0 {
		t.Fatalf("code = %d, stderr = %s", code, errOut)
	}
	if !strings.Contains(out, "total boxes: 0") || strings.Contains(out, "overlay saved") {
		t.Fatalf("stdout = %q", out)
	}
	if after, _ := os.ReadFile(path); !bytes.Equal(before, after) {
		t.Fatalf("file changed")
	}
}

func TestOverlayCommandUsage(t *testing.T) {
	code, _, errOut := run(context.Background(), NewOverlayCommand(), "only.pdf")
	if code != 1 {
		t.Fatalf("code = %d", code)
	}
	if strings.TrimSpace(errOut) != "usage: overlay <pdfPath> <csvCoords>" {
		t.Fatalf("stderr = %q", errOut)
	}
}

func TestOverlayCommandBadCoordinates(t *testing.T) {
	path := samplePDF(t, 1)
	code, _, errOut := run(context.Background(), NewOverlayCommand(), path, "1,2,three,4")
	if code != 1 || !strings.Contains(errOut, "three") {
		t.Fatalf("code = %d, stderr = %q", code, errOut)
	}
}

func TestPrintConfig(t *testing.T) {
	path := writeConfig(t, "[raster]\nzoom = 3.0\n")
	code, out, errOut := run(context.Background(), newBlackoutCommand(pdftest.Renderer(nil)), "--config", path, "--print-config")
	if code != 0 {
		t.Fatalf("code = %d, stderr = %s", code, errOut)
	}
	for _, want := range []string{"zoom = 3.0", "descale = 2.1", `log_level = "info"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("stdout %q lacks %q", out, want)
		}
	}
}

func TestBadConfigFails(t *testing.T) {
	path := writeConfig(t, "[overlay]\ndescale = -1.0\n")
	code, _, errOut := run(context.Background(), NewOverlayCommand(), "--config", path, "a.pdf", "1,2,3,4")
	if code != 1 || !strings.Contains(errOut, "descale") {
		t.Fatalf("code = %d, stderr = %q", code, errOut)
	}
}

func TestVersionFlag(t *testing.T) {
	SetVersion("v1.2.3", "abc123", "2026-01-01")
	defer SetVersion("dev", "", "")
	code, out, _ := run(context.Background(), NewOverlayCommand(), "--version")
	if code != 0 || !strings.Contains(out, "overlay v1.2.3") || !strings.Contains(out, "commit: abc123") {
		t.Fatalf("code = %d, stdout = %q", code, out)
	}
}
