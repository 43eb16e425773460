package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ghyeongl/imgview/model"
)

func (a *app) rmCmd() *cobra.Command {
	var trash, recursive bool
	cmd := &cobra.Command{
		Use:   "rm PATH...",
		Short: "Delete files or directories, optionally into the trash",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, stop := a.openModel(cmd.Context())
			defer stop()

			out := cmd.OutOrStdout()
			var errs []error
			for _, arg := range args {
				path, err := filepath.Abs(arg)
				if err == nil {
					err = removePath(m, path, trash, recursive)
				}
				if err != nil {
					errs = append(errs, err)
					continue
				}
				if trash {
					fmt.Fprintln(out, "trashed", path)
				} else {
					fmt.Fprintln(out, "removed", path)
				}
			}
			return errors.Join(errs...)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&trash, "trash", "t", false, "move to the trash instead of deleting")
	flags.BoolVarP(&recursive, "recursive", "r", false, "delete non-empty directories")
	return cmd
}

func removePath(m *model.Model, path string, trash, recursive bool) error {
	dir := filepath.Dir(path)
	if m.DirectoryPath() != dir {
		if err := m.SetDirectory(dir); err != nil {
			return err
		}
	}
	info, err := os.Lstat(path)
	if err == nil && info.IsDir() {
		return m.RemoveDir(path, trash, recursive)
	}
	return m.RemoveFile(path, trash)
}

func (a *app) mvCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "mv SRC NEWNAME|DIR",
		Short: "Rename an entry in place, or move it into a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			m, stop := a.openModel(cmd.Context())
			defer stop()
			if err := m.SetDirectory(filepath.Dir(src)); err != nil {
				return err
			}

			target := args[1]
			if info, err := os.Stat(target); err == nil && info.IsDir() {
				destDir, err := filepath.Abs(target)
				if err != nil {
					return err
				}
				if err := m.MoveFileTo(src, destDir, force); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), src, "->", filepath.Join(destDir, filepath.Base(src)))
				return nil
			}

			if err := m.RenameEntry(src, target, force); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), src, "->", filepath.Join(filepath.Dir(src), target))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "replace an existing destination")
	return cmd
}
