package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/odvcencio/it/pkg/errkind"
	"github.com/odvcencio/it/pkg/repo"
)

func newInitCmd(a *app) *cobra.Command {
	var initialBranch string

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create an empty it repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			if err := os.MkdirAll(abs, 0o755); err != nil {
				return errkind.WrapIO("create directory", err)
			}

			opts := []repo.Option{repo.WithLogger(a.logger)}
			if initialBranch != "" {
				opts = append(opts, repo.WithInitialBranch(initialBranch))
			}
			r, err := repo.Init(abs, opts...)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Initialized empty it repository in %s\n", r.Dir+string(filepath.Separator))
			return nil
		},
	}
	cmd.Flags().StringVarP(&initialBranch, "initial-branch", "b", "", "name of the first branch (default main)")
	return cmd
}
