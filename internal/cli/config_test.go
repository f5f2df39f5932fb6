package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/wudi/blackout/errs"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blackout.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("cfg = %+v", cfg)
	}
	if lvl, _ := cfg.Level(); lvl != log.InfoLevel {
		t.Fatalf("level = %v", lvl)
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"

[raster]
zoom = 3.0
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Raster.Zoom != 3 || cfg.LogLevel != "debug" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Raster.TempSuffix != ".tmp.pdf" || cfg.Overlay.Descale != 2.1 {
		t.Fatalf("unset keys lost their defaults: %+v", cfg)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"unknown key", "[raster]\nzom = 2.0\n", errs.ErrInvalidArgument},
		{"syntax", "log_level = \n", errs.ErrInvalidArgument},
		{"wrong type", "[overlay]\ndescale = \"big\"\n", errs.ErrInvalidArgument},
		{"zero zoom", "[raster]\nzoom = 0.0\n", errs.ErrInvalidArgument},
		{"bad level", "log_level = \"loud\"\n", errs.ErrInvalidArgument},
		{"empty suffix", "[raster]\ntemp_suffix = \"\"\n", errs.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "none.toml"))
	if !errors.Is(err, errs.ErrIO) {
		t.Fatalf("err = %v", err)
	}
}

func TestConfigWriteRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Overlay.Descale = 4
	var buf bytes.Buffer
	if err := cfg.Write(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), "temp_suffix = \".tmp.pdf\"") {
		t.Fatalf("encoded = %s", buf.String())
	}
	back, err := LoadConfig(writeConfig(t, buf.String()))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if back != cfg {
		t.Fatalf("got %+v want %+v", back, cfg)
	}
}
