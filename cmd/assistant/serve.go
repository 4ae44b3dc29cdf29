package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/weather-assistant/internal/adapter/http"
	"github.com/couchcryptid/weather-assistant/internal/observability"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts)
		},
	}
}

func serve(ctx context.Context, opts *options) error {
	cfg := opts.cfg
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	a, err := newApp(cfg, nil, logger, metrics)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := httpadapter.NewServer(cfg.HTTPAddr, a.service, httpadapter.Info{
		GeoProvider: a.resolver.ProviderName(),
		SessionTTL:  a.store.TTL(),
		GeocodeTTL:  a.resolver.CacheTTL(),
		ForecastTTL: a.weather.ForecastTTL(),
		AlertsTTL:   a.weather.AlertsTTL(),
	}, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start interaction log.
	drained := a.runPipeline(ctx)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		logger.Warn("interaction log not drained before shutdown timeout")
	}

	logger.Info("shutdown complete")
	return nil
}
