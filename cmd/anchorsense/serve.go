package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/anchorsense/internal/metrics"
	"github.com/crimson-sun/anchorsense/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := metrics.NewRegistry()
			a, err := newApp(ctx, cfg, metrics.New(reg))
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.engine.Anchors(ctx, a.anchors); err != nil {
				slog.Warn("failed to pre-embed anchors, retrying on first request", "error", err)
			}

			opts := []server.Option{
				server.WithAnchors(a.anchors),
				server.WithRequestAnchors(cfg.RequestAnchors),
				server.WithModel(modelName(cfg)),
				server.WithRegistry(reg),
			}
			if a.redis != nil {
				opts = append(opts, server.WithHealthCheck("redis", func(ctx context.Context) error {
					return a.redis.Ping(ctx).Err()
				}))
			}
			srv := server.New(a.engine, a.embedder, opts...)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(cfg.Addr()) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			slog.Info("shutdown signal received")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
