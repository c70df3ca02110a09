package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/it/pkg/errkind"
)

func newCommitCmd(a *app) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "commit -m <message>",
		Short: "Record the staged snapshot on the current branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(message) == "" {
				return errkind.Errorf(errkind.Usage, "commit message is required (-m)")
			}

			r, err := a.open()
			if err != nil {
				return err
			}
			res, err := r.Commit(message)
			if err != nil {
				return err
			}

			root := ""
			if res.Parent.IsZero() {
				root = " (root-commit)"
			}
			subject, _, _ := strings.Cut(message, "\n")
			fmt.Fprintf(cmd.OutOrStdout(), "[%s%s %s] %s\n", res.Branch, root, shortHash(res.Hash.String()), subject)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	return cmd
}

func newWriteTreeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "write-tree",
		Short: "Build tree objects from the index and print the root hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open()
			if err != nil {
				return err
			}
			h, err := r.WriteTree()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
}

// shortHash returns the first 8 characters of a hex hash.
func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
