package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/odvcencio/it/pkg/errkind"
	"github.com/odvcencio/it/pkg/object"
	"github.com/odvcencio/it/pkg/repo"
)

func newHashObjectCmd(a *app) *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "hash-object [-w] <file>",
		Short: "Compute a file's blob hash, optionally storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open()
			if err != nil {
				return err
			}
			h, err := r.HashFile(args[0], write)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write the blob into the object store")
	return cmd
}

func newCatFileCmd(a *app) *cobra.Command {
	var pretty, showType bool

	cmd := &cobra.Command{
		Use:   "cat-file (-p | -t) <hash>",
		Short: "Print an object's content or kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pretty == showType {
				return errkind.Errorf(errkind.Usage, "exactly one of -p or -t is required")
			}
			h, err := object.ParseHash(args[0])
			if err != nil {
				return err
			}
			r, err := a.open()
			if err != nil {
				return err
			}
			kind, body, err := r.CatFile(h)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if showType {
				fmt.Fprintln(out, kind)
				return nil
			}
			if kind == object.TypeTree {
				entries, err := object.ParseTree(body)
				if err != nil {
					return err
				}
				printTreeEntries(out, entries)
				return nil
			}
			_, err = out.Write(body)
			return err
		},
	}
	cmd.Flags().BoolVarP(&pretty, "pretty", "p", false, "pretty-print the object's content")
	cmd.Flags().BoolVarP(&showType, "type", "t", false, "print the object's kind")
	return cmd
}

func newLsTreeCmd(a *app) *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:   "ls-tree [-r] <tree-or-commit>",
		Short: "List the entries of a tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := object.ParseHash(args[0])
			if err != nil {
				return err
			}
			r, err := a.open()
			if err != nil {
				return err
			}
			tree, err := resolveTree(r, h)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if recursive {
				files, err := r.FlattenTree(tree)
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Fprintf(out, "%s %s %s\t%s\n", object.ModeFile, object.TypeBlob, f.Hash, f.Path)
				}
				return nil
			}
			entries, err := r.ReadTree(tree)
			if err != nil {
				return err
			}
			printTreeEntries(out, entries)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "recurse into subtrees")
	return cmd
}

// resolveTree accepts either a tree hash or a commit hash.
func resolveTree(r *repo.Repo, h object.Hash) (object.Hash, error) {
	kind, body, err := r.CatFile(h)
	if err != nil {
		return object.ZeroHash, err
	}
	switch kind {
	case object.TypeTree:
		return h, nil
	case object.TypeCommit:
		return object.CommitTree(string(body))
	}
	return object.ZeroHash, errkind.Errorf(errkind.Usage, "object %s is a %s, not a tree or commit", h, kind)
}

func printTreeEntries(out io.Writer, entries []object.TreeEntry) {
	for _, e := range entries {
		kind := object.TypeBlob
		if e.IsDir() {
			kind = object.TypeTree
		}
		fmt.Fprintf(out, "%s %s %s\t%s\n", e.Mode, kind, e.Hash, e.Name)
	}
}
