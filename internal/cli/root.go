// Package cli implements the expecter command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/cboone/expecter"
)

// Version is set at build time with -ldflags "-X ...cli.Version=v1.2.3".
var Version = ""

// Env looks up an environment variable, like os.LookupEnv.
type Env func(key string) (string, bool)

// exitError carries a process exit status out of a command without printing
// anything further.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

type app struct {
	stdout io.Writer
	stderr io.Writer
	env    Env
}

// Execute runs the command line in args and returns the process exit
// status: 0 when every test passed, 1 for a test failure, 2 for usage and
// setup errors.
func Execute(args []string, stdout, stderr io.Writer, env Env) int {
	root := NewRootCmd(stdout, stderr, env)
	root.SetArgs(args)

	err := root.Execute()
	if err == nil {
		return expecter.ExitPass
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(stderr, "expecter: %v\n", err)
	return expecter.ExitError
}

// NewRootCmd builds the command tree.
func NewRootCmd(stdout, stderr io.Writer, env Env) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, env: env}

	root := &cobra.Command{
		Use:   "expecter",
		Short: "Drive interactive consoles and check their output",
		Long: `expecter runs a device console (by default "make term") on a
pseudo-terminal, sends commands and waits for the expected output.

A run exits 0 when every expectation is met, 1 when a test fails and 2 when
the console could not be started or the command line is wrong.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(
		a.newRunCmd(),
		a.newListCmd(),
		a.newCheckCmd(),
		a.newVersionCmd(),
	)
	return root
}

func (a *app) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the expecter version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "expecter %s\n", version())
		},
	}
}

func version() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}
