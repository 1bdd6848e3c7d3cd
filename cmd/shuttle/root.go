package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SHUTTLE")
	// SHUTTLE_LOG_LEVEL for log.level
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "shuttle",
		Short: "Simulate riders and vehicles meeting at a shared stop",
		Long: `Shuttle runs a concurrent simulation of riders arriving at a stop and
vehicles that board at most a fixed number of the riders already waiting.
Every transition is logged; the run ends with a summary.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(newRunCmd(v), newVerifyCmd())
	return root
}

// execute runs the CLI and maps its outcome to an exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return ExitSuccess
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if exit.err != nil {
			fmt.Fprintf(stderr, "\n%v\n", exit.err)
		}
		return exit.code
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return ExitError
}
