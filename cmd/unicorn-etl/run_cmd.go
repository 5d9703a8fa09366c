package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iota-uz/unicorn-warehouse/pkg/metrics"
	"github.com/iota-uz/unicorn-warehouse/pkg/middleware"
)

func newRunCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run ETL cycles until interrupted, sleeping a random interval between them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.conf.Prometheus.Enabled {
				srv := metrics.NewServer(
					a.conf.Prometheus.Addr,
					a.conf.Prometheus.Path,
					middleware.OpsGuard(a.conf.OpsGuard, a.conf.GoAppEnvironment),
				)
				go func() {
					a.logger.WithField("addr", srv.Addr).Info("metrics: serving " + a.conf.Prometheus.Path)
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.logger.WithError(err).Error("metrics: server stopped")
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			a.logger.WithField("source", a.conf.Source.Path).Info("unicorn-etl: starting")
			if err := a.scheduler.Run(ctx); err != nil {
				return err
			}
			a.logger.Info("unicorn-etl: stopped")
			return nil
		},
	}
}
