package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ghyeongl/imgview/logging"
	"github.com/ghyeongl/imgview/metrics"
	"github.com/ghyeongl/imgview/model"
	"github.com/ghyeongl/imgview/notify"
)

func (a *app) watchCmd() *cobra.Command {
	var (
		metricsAddr string
		preload     bool
	)
	cmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "Follow a directory and print every change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if metricsAddr != "" {
				srv := serveMetrics(metricsAddr)
				defer func() {
					sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					srv.Shutdown(sctx) //nolint:errcheck
				}()
			}

			a.settings.Watch()
			m := model.New(model.Options{
				Settings: a.settings.Snapshot(),
				Changes:  a.settings.Changes(),
			})
			events := m.Subscribe()
			errc := make(chan error, 1)
			go func() { errc <- m.Run(ctx) }()

			if err := m.SetDirectory(args[0]); err != nil {
				m.Close()
				return err
			}
			if preload {
				for _, e := range m.Files() {
					m.Preload(e.Path)
				}
			}

			out := cmd.OutOrStdout()
			for ev := range events {
				printEvent(out, ev)
			}
			return <-errc
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address, e.g. :9090")
	flags.BoolVar(&preload, "preload", false, "decode every image in the background")
	return cmd
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Sub("cmd").Error("metrics server failed", "addr", addr, "err", err)
		}
	}()
	logging.Sub("cmd").Info("serving metrics", "addr", addr)
	return srv
}

func printEvent(w io.Writer, ev notify.Event) {
	switch ev.Kind {
	case notify.FileRenamed, notify.DirRenamed:
		fmt.Fprintf(w, "%-14s %s -> %s\n", ev.Kind, ev.Path, ev.NewPath)
	case notify.ImageReady, notify.ImageUpdated:
		b := ev.Image.Bounds()
		fmt.Fprintf(w, "%-14s %s (%dx%d)\n", ev.Kind, ev.Path, b.Dx(), b.Dy())
	case notify.LoadFailed, notify.ErrorOccurred:
		fmt.Fprintf(w, "%-14s %s: %s\n", ev.Kind, ev.Path, ev.Message)
	case notify.SortingChanged:
		fmt.Fprintf(w, "%-14s\n", ev.Kind)
	default:
		fmt.Fprintf(w, "%-14s %s\n", ev.Kind, ev.Path)
	}
}
