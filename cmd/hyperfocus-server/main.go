package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"hyperfocus/internal/config"
	"hyperfocus/internal/events"
	"hyperfocus/internal/logging"
	serverhttp "hyperfocus/internal/server/http"
	"hyperfocus/internal/store/sqlite"
	"hyperfocus/internal/toolengine"
	"hyperfocus/internal/toolregistry"
	"hyperfocus/internal/tools/builtin"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "hyperfocus-server",
		Short: "Tool execution service for the hyperfocus assistant",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	logger := logging.NewComponentLogger("Main")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Info("Starting hyperfocus tool server on %s", cfg.Server.Addr)

	store, err := sqlite.Open(cfg.Store.DSN, logging.NewComponentLogger("Store"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Store close: %v", err)
		}
	}()

	registry := toolregistry.New(logging.NewComponentLogger("Registry"))
	if err := builtin.RegisterAll(registry, store); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}
	logger.Info("Registered %d tools", len(registry.Names()))

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	engine, err := toolengine.NewEngine(registry, toolengine.Options{
		CacheTTL:       cfg.Cache.TTL,
		CacheMaxSize:   cfg.Cache.MaxSize,
		SweepInterval:  cfg.Cache.SweepInterval,
		DefaultTimeout: cfg.Engine.DefaultTimeout,
		MaxParallel:    cfg.Engine.MaxParallel,
		Log:            store,
		Events:         events.Nop(),
		Logger:         logging.NewComponentLogger("Engine"),
		Metrics:        toolengine.NewMetrics(promRegistry),
	})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	defer engine.Close()

	router := serverhttp.NewRouter(serverhttp.RouterConfig{
		Registry:       registry,
		Engine:         engine,
		Auth:           serverhttp.NewStaticTokenAuthenticator(cfg.Server.APITokens),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        promRegistry,
		Logger:         logging.NewComponentLogger("HTTP"),
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case sig := <-stop:
		logger.Info("Received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Shutdown complete")
	return nil
}
