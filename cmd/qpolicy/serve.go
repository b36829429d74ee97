package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/qpolicy/qpolicy/internal/config"
	"github.com/qpolicy/qpolicy/internal/eval"
	"github.com/qpolicy/qpolicy/internal/logging"
	"github.com/qpolicy/qpolicy/internal/observability"
	"github.com/qpolicy/qpolicy/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve policy evaluation over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return errors.New("config path is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.Server.Listen == "" {
				return errors.New("server.listen is required for serve")
			}
			return runServer(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	return cmd
}

func runServer(ctx context.Context, cfg *config.Config) error {
	ruleset, err := loadRuleset(cfg.PolicyDir, cfg.IncludeDir, eval.StaticQubeInfo{})
	if err != nil {
		return err
	}

	srv, err := server.New(ruleset)
	if err != nil {
		return err
	}

	if cfg.Logging.DecisionLog != "" {
		logger, closer, err := logging.OpenDecisionLog(cfg.Logging.DecisionLog)
		if err != nil {
			return err
		}
		defer func() { _ = closer() }()
		srv.SetDecisionLogger(logger)
	}

	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		metrics := observability.NewMetrics(registry)
		srv.SetMetrics(metrics)
		srv.Handle("/metrics", metrics.Handler(registry))
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           srv,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpSrv.ListenAndServe()
	}()

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-signalCtx.Done():
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
