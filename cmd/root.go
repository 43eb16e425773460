// Package cmd implements the imgview command line.
package cmd

import (
	"context"
	"fmt"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ghyeongl/imgview/logging"
	"github.com/ghyeongl/imgview/model"
	"github.com/ghyeongl/imgview/settings"
	"github.com/ghyeongl/imgview/watcher"
)

// app carries the state shared by all subcommands of one invocation.
type app struct {
	settings *settings.Manager
}

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "imgview",
		Short:         "Browse, watch and manage image directories",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file path (default "+settings.DefaultConfigPath+")")
	flags.String("log-level", "", "console log level: debug, info, warn, error")
	flags.String("log-dir", "", "directory for rotated log files")

	cmd.AddCommand(
		a.lsCmd(),
		a.watchCmd(),
		a.thumbsCmd(),
		a.rmCmd(),
		a.mvCmd(),
		configCmd(),
	)
	return cmd
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) init(cmd *cobra.Command) error {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	m, err := settings.Load(path)
	if err != nil {
		return err
	}
	v := m.Viper()
	if err := bindFlags(v, cmd.Flags(), map[string]string{
		"log-level": settings.KeyLogLevel,
		"log-dir":   settings.KeyLogDir,
	}); err != nil {
		return err
	}

	logDir, err := homedir.Expand(v.GetString(settings.KeyLogDir))
	if err != nil {
		return fmt.Errorf("log dir: %w", err)
	}
	logging.Init(logging.Options{Dir: logDir, Level: v.GetString(settings.KeyLogLevel)})
	a.settings = m
	return nil
}

// bindFlags binds each named flag to its config key.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		f := flags.Lookup(name)
		if f == nil {
			return fmt.Errorf("unknown flag %q", name)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// openModel starts a model loop without live refresh, for one-shot
// commands. The returned stop function closes it.
func (a *app) openModel(ctx context.Context) (*model.Model, func()) {
	m := model.New(model.Options{
		Settings: a.settings.Snapshot(),
		Watcher:  watcher.NewNoop(),
	})
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx) //nolint:errcheck
	}()
	return m, func() {
		cancel()
		m.Close()
		<-done
	}
}
