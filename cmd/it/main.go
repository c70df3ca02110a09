package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/odvcencio/it/pkg/repo"
)

const version = "0.1.0-dev"

// app holds state shared by every subcommand.
type app struct {
	verbose bool
	logger  *zap.Logger
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "fatal: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:           "it",
		Short:         "A minimal content-addressed version control system",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.logger = newLogger(cmd.ErrOrStderr(), a.verbose)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log debug events to stderr")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newAddCmd(a))
	root.AddCommand(newRmCmd(a))
	root.AddCommand(newWriteTreeCmd(a))
	root.AddCommand(newCommitCmd(a))
	root.AddCommand(newBranchCmd(a))
	root.AddCommand(newSwitchCmd(a))
	root.AddCommand(newLogCmd(a))
	root.AddCommand(newHashObjectCmd(a))
	root.AddCommand(newCatFileCmd(a))
	root.AddCommand(newLsTreeCmd(a))
	root.AddCommand(newConfigCmd(a))
	return root
}

// newLogger writes human-readable events to w: warnings and above by
// default, everything with verbose.
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core)
}

// open finds the repository containing the working directory.
func (a *app) open() (*repo.Repo, error) {
	return repo.Open(".", repo.WithLogger(a.logger))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "it %s\n", version)
		},
	}
}
