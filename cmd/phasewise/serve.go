package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aretw0/phasewise/internal/cli"
	httpAdapter "github.com/aretw0/phasewise/pkg/adapters/http"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:         "serve [graph]",
	Short:       "Start the HTTP server",
	Long:        `Exposes the session engine as a JSON API over HTTP, with server-sent events for session changes and Prometheus metrics on /metrics.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{graphArg: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			cfg.HTTPAddr, _ = cmd.Flags().GetString("addr")
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		rt, err := cli.Build(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           httpAdapter.NewHandler(rt.Engine, httpAdapter.WithLogger(logger), httpAdapter.WithMetrics(rt.Registry)),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting phasewise server", "addr", srv.Addr, "graph", cfg.Graph, "store", cfg.Store)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			logger.Info("start shutdown", "signal", ctx.Signal())

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
				return srv.Close()
			}
			logger.Info("phasewise server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (PHASEWISE_HTTP_ADDR)")
}
