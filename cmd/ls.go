package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ghyeongl/imgview/index"
)

func (a *app) lsCmd() *cobra.Command {
	var (
		sortName  string
		recursive bool
		dirs      bool
	)
	cmd := &cobra.Command{
		Use:   "ls DIR",
		Short: "List a directory in sort order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.settings.Snapshot()
			if sortName != "" {
				if _, err := index.ParseSortMode(sortName); err != nil {
					return err
				}
				s.Sort = sortName
			}

			ix := index.New(index.Options{Settings: s})
			defer ix.Close()
			ix.SetDirectoriesMode(dirs)
			if err := ix.SetDirectory(args[0], recursive, false); err != nil {
				return err
			}

			entries := ix.Files()
			if dirs {
				entries = ix.Dirs()
			}
			root := ix.DirectoryPath()
			out := cmd.OutOrStdout()
			for _, e := range entries {
				name := e.Name
				if recursive {
					if rel, err := filepath.Rel(root, e.Path); err == nil {
						name = rel
					}
				}
				fmt.Fprintf(out, "%s\t%d\t%s\n", name, e.Size, e.ModTime.Format(time.DateTime))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&sortName, "sort", "s", "", "sort mode: name-asc, name-desc, size-asc, size-desc, time-asc, time-desc")
	flags.BoolVarP(&recursive, "recursive", "r", false, "include subdirectories")
	flags.BoolVar(&dirs, "dirs", false, "list directories instead of images")
	return cmd
}
