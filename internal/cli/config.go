package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/wudi/blackout/errs"
	"github.com/wudi/blackout/redact"
)

// Config is the optional configuration file shared by both commands.
// Command-line flags take precedence over it.
type Config struct {
	LogLevel string        `toml:"log_level"`
	Raster   RasterConfig  `toml:"raster"`
	Overlay  OverlayConfig `toml:"overlay"`
}

type RasterConfig struct {
	Zoom       float64 `toml:"zoom"`
	TempSuffix string  `toml:"temp_suffix"`
}

type OverlayConfig struct {
	Descale float64 `toml:"descale"`
}

func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Raster:   RasterConfig{Zoom: redact.DefaultZoom, TempSuffix: redact.DefaultTempSuffix},
		Overlay:  OverlayConfig{Descale: redact.DefaultDescale},
	}
}

// LoadConfig reads path over the defaults. An empty path returns the
// defaults. Unknown keys are rejected so typos do not go unnoticed.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return Config{}, errs.Wrap(errs.IO, "load config", path, err)
		}
		return Config{}, errs.Wrap(errs.InvalidArgument, "load config", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, errs.New(errs.InvalidArgument, "load config", "%s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Raster.Zoom <= 0 {
		return errs.New(errs.InvalidArgument, "config", "raster.zoom must be positive, got %g", c.Raster.Zoom)
	}
	if c.Raster.TempSuffix == "" {
		return errs.New(errs.InvalidArgument, "config", "raster.temp_suffix must not be empty")
	}
	if c.Overlay.Descale <= 0 {
		return errs.New(errs.InvalidArgument, "config", "overlay.descale must be positive, got %g", c.Overlay.Descale)
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (log.Level, error) {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return 0, errs.New(errs.InvalidArgument, "config", "log_level %q: %v", c.LogLevel, err)
	}
	return lvl, nil
}

// Write encodes c as TOML.
func (c Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
