package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ghyeongl/imgview/settings"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration file commands",
	}
	cmd.AddCommand(configInitCmd())
	return cmd
}

func configInitCmd() *cobra.Command {
	var (
		path  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				path = settings.DefaultConfigPath
			}
			if err := settings.WriteDefault(path, force); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&path, "path", "p", "", "destination (default "+settings.DefaultConfigPath+")")
	flags.BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}
