package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c0deZ3R0/go-quote-sync/config"
	"github.com/c0deZ3R0/go-quote-sync/lineage"
	"github.com/c0deZ3R0/go-quote-sync/logging"
	"github.com/c0deZ3R0/go-quote-sync/metrics"
	"github.com/c0deZ3R0/go-quote-sync/notify"
	"github.com/c0deZ3R0/go-quote-sync/quotesync"
	"github.com/c0deZ3R0/go-quote-sync/storage/postgres"
	"github.com/c0deZ3R0/go-quote-sync/storage/sqlite"
	"github.com/c0deZ3R0/go-quote-sync/transport/httptransport"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the sync HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logging.Init(logging.GetConfigFromEnv())
	logger := logging.WithComponent(logging.Component("quotesyncd"))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	broker := notify.NewBroker()
	defer broker.Close()

	var collector metrics.Collector = &metrics.NoOpCollector{}
	var promCollector *metrics.PrometheusCollector
	if cfg.Metrics.Enabled {
		promCollector = metrics.NewPrometheusCollector()
		collector = promCollector
	}

	manager := lineage.NewManager(store,
		lineage.WithBroker(broker),
		lineage.WithMetrics(collector))

	mux := http.NewServeMux()
	mux.Handle("/", httptransport.NewServer(store, manager).Handler())
	mux.Handle("/ws", notify.NewWebSocketBridge(broker))

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	var metricsServer *http.Server
	if promCollector != nil {
		metricsServer = &http.Server{
			Addr:    cfg.Metrics.Addr,
			Handler: promCollector.Handler(),
		}
		go func() {
			logger.Info("metrics server listening", slog.String("addr", cfg.Metrics.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if metricsServer != nil {
		metricsServer.Shutdown(shutdownCtx)
	}
	return server.Shutdown(shutdownCtx)
}

func openStore(cfg *config.Config) (quotesync.DocumentStore, error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		return sqlite.NewWithDataSource(cfg.Storage.DataSourceName)
	case "postgres":
		return postgres.NewWithConnectionString(cfg.Storage.DataSourceName)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
