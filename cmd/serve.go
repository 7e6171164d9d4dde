package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/querygate/querygate/internal/backend"
	"github.com/querygate/querygate/internal/config"
	"github.com/querygate/querygate/internal/gateway"
	"github.com/querygate/querygate/internal/mcp"
	"github.com/querygate/querygate/internal/metric"
)

// serve is the shared run loop behind every backend subcommand: load
// configuration, connect the adapter, and speak MCP on stdio until EOF or
// a shutdown signal.
func serve(newAdapter func(*config.Config) (backend.Adapter, error)) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Log to stderr; stdout carries the protocol stream.
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	adapter, err := newAdapter(cfg)
	if err != nil {
		return err
	}

	gw, err := gateway.New(ctx, cfg, adapter, log)
	if err != nil {
		return err
	}
	defer gw.Close()

	log.Info("gateway started",
		slog.String("family", string(gw.Family())),
		slog.Duration("max_query_time", cfg.MaxQueryTime),
		slog.Int("max_rows", cfg.MaxRows),
		slog.Int("pool_size", cfg.PoolSize),
	)

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metric.Handler())
		metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics listener failed", slog.String("error", err.Error()))
			}
		}()
		defer metricsSrv.Shutdown(context.Background())
		log.Info("metrics listening", slog.String("addr", cfg.MetricsAddr))
	}

	srv := mcp.NewServer(gw, os.Stdin, os.Stdout, log)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("gateway shut down")
	return nil
}
