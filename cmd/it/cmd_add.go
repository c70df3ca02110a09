package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/it/pkg/errkind"
)

func newAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <paths...>",
		Short: "Stage files for the next commit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open()
			if err != nil {
				return err
			}
			_, err = r.Add(args)
			return err
		},
	}
}

func newRmCmd(a *app) *cobra.Command {
	var cached bool

	cmd := &cobra.Command{
		Use:   "rm --cached <paths...>",
		Short: "Remove paths from the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cached {
				return errkind.Errorf(errkind.Usage, "only index removal is supported; pass --cached")
			}
			r, err := a.open()
			if err != nil {
				return err
			}
			removed, err := r.Unstage(args)
			if err != nil {
				return err
			}
			for _, e := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "rm '%s'\n", e.Path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "unstage only; leave the working tree alone")
	return cmd
}
