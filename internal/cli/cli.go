// Package cli implements the blackout and overlay commands.
//
// Both commands share a TOML configuration file, a charm logger carried in
// the command context, and the exit code convention of Run: 0 on success,
// 1 on failure, 130 when interrupted, and a per-command code for usage
// errors.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  string
	date    string
)

// SetVersion sets what --version reports. Build scripts inject the values
// through ldflags in main.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

func versionTemplate(name string) string {
	return fmt.Sprintf("%s %s\ncommit: %s\nbuilt: %s\n", name, version, commit, date)
}

// UsageError reports a malformed command line. Code is the process exit
// code to use.
type UsageError struct {
	Code int
	Msg  string
}

func (e *UsageError) Error() string { return e.Msg }

// Run executes cmd with args and maps the outcome to a process exit code,
// reporting failures on the command's error stream.
func Run(ctx context.Context, cmd *cobra.Command, args []string) int {
	cmd.SetArgs(args)
	return exitCode(cmd.ErrOrStderr(), cmd.ExecuteContext(ctx))
}

func exitCode(w io.Writer, err error) int {
	var usage *UsageError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		printError(w, "interrupted")
		return 130
	case errors.As(err, &usage):
		fmt.Fprintln(w, usage.Msg)
		return usage.Code
	}
	printError(w, "%v", err)
	return 1
}
