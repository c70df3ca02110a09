package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/odvcencio/it/pkg/repo"
)

const noCommitsHint = `No commits yet. Make your first commit with: it commit -m "message"`

func newLogCmd(a *app) *cobra.Command {
	var oneline bool

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the current branch's history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open()
			if err != nil {
				return err
			}
			hist, err := r.ReadLog()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if hist.NoCommits {
				fmt.Fprintln(out, noCommitsHint)
				return nil
			}
			for _, rec := range hist.Records {
				if oneline {
					renderOneline(out, rec)
				} else {
					renderRecord(out, rec)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&oneline, "oneline", false, "compact one-line format")
	return cmd
}

// renderRecord prints one history record; lines that do not parse are
// echoed unchanged.
func renderRecord(out io.Writer, rec repo.LogRecord) {
	if !rec.Structured {
		fmt.Fprintln(out, rec.Raw)
		return
	}
	fmt.Fprintf(out, "commit %s\n", rec.Hash)
	if rec.HasParent() {
		fmt.Fprintf(out, "Parent: %s\n", rec.Parent)
	}
	fmt.Fprintf(out, "Date:   %s %s\n", rec.FormatTime(), rec.Timezone)
	fmt.Fprintf(out, "Dir:    %s\n", rec.Dir)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "    %s\n", rec.Message)
	fmt.Fprintln(out)
}

func renderOneline(out io.Writer, rec repo.LogRecord) {
	if !rec.Structured {
		fmt.Fprintln(out, rec.Raw)
		return
	}
	fmt.Fprintf(out, "%s %s\n", shortHash(rec.Hash), rec.Message)
}
