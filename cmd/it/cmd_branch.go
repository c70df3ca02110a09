package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBranchCmd(a *app) *cobra.Command {
	var deleteBranch string

	cmd := &cobra.Command{
		Use:   "branch [name]",
		Short: "List, create, or delete branches",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if deleteBranch != "" {
				if err := r.DeleteBranch(deleteBranch); err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted branch %s\n", deleteBranch)
				return nil
			}

			if len(args) == 1 {
				b, err := r.CreateBranch(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Created branch %s at %s\n", b.Name, shortHash(b.Hash.String()))
				return nil
			}

			branches, err := r.ListBranches()
			if err != nil {
				return err
			}
			for _, b := range branches {
				marker := " "
				if b.Current {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\n", marker, b.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&deleteBranch, "delete", "d", "", "delete the named branch")
	return cmd
}

func newSwitchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <branch>",
		Short: "Switch branches and restore the branch's files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open()
			if err != nil {
				return err
			}
			res, err := r.Switch(args[0])
			if err != nil {
				return err
			}
			if res.AlreadyCurrent {
				fmt.Fprintf(cmd.OutOrStdout(), "Already on '%s'\n", res.Branch)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Switched to branch '%s'\n", res.Branch)
			return nil
		},
	}
}
