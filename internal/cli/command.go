package cli

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// commonFlags are the flags both commands accept.
type commonFlags struct {
	configPath  string
	password    string
	printConfig bool
	verbose     bool

	cfg Config
}

func (f *commonFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "TOML configuration file")
	fl.StringVar(&f.password, "password", "", "user or owner password of an encrypted PDF")
	fl.BoolVar(&f.printConfig, "print-config", false, "print the effective configuration and exit")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "enable debug logging")
}

// setup loads the configuration and attaches a logger to the command
// context. -v overrides the configured level.
func (f *commonFlags) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := LoadConfig(f.configPath)
	if err != nil {
		return err
	}
	level, _ := cfg.Level()
	if f.verbose {
		level = log.DebugLevel
	}
	cmd.SetContext(withLogger(cmd.Context(), newLogger(cmd.ErrOrStderr(), level)))
	f.cfg = cfg
	return nil
}

// newCommand applies the settings both commands share. Positional
// arguments are checked by RunE so that --print-config works without them.
func newCommand(name, use, short string, usageCode int, flags *commonFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE:       flags.setup,
	}
	cmd.SetVersionTemplate(versionTemplate(name))
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return &UsageError{Code: usageCode, Msg: err.Error() + "\nusage: " + c.UseLine()}
	})
	flags.register(cmd)
	return cmd
}
