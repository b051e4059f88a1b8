package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"edgegate/internal/api"
	"edgegate/internal/cache"
	"edgegate/internal/config"
	"edgegate/internal/kv"
	"edgegate/internal/logger"
	"edgegate/internal/observability"
	"edgegate/internal/ratelimit"
	"edgegate/internal/session"
	"edgegate/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetInfo().String())
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	log, closer, err := logger.Setup(cfg.Logging, version.GetInfo())
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, version.GetInfo())
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	store, err := kv.NewStore(cfg.Store)
	if err != nil {
		slog.Error("Failed to initialize KV store", "error", err, "type", cfg.Store.Type)
		os.Exit(1)
	}
	defer store.Close()

	// Wrap the store with instrumentation when metrics are enabled.
	var activeStore kv.Store = store
	if cfg.Metrics.Enabled {
		instrumented, err := observability.NewInstrumentedStore(store)
		if err != nil {
			slog.Error("Failed to create instrumented store", "error", err)
			os.Exit(1)
		}
		activeStore = instrumented
	}

	sessions := session.NewStore(activeStore, cfg.Session.TTL)
	limiter := ratelimit.NewLimiter(activeStore)

	var guard *ratelimit.Guard
	if cfg.RateLimit.Enabled {
		guard = ratelimit.NewGuard(limiter, cfg.RateLimit)
	}

	upstream, err := api.NewUpstreamProxy(cfg.Upstream)
	if err != nil {
		slog.Error("Failed to initialize upstream proxy", "error", err)
		os.Exit(1)
	}

	respCache := cache.New(activeStore, cfg.Cache.DefaultTTL)

	handlers := api.NewHandlers(sessions, limiter, activeStore, cfg.RateLimit,
		api.WithResponseCache(respCache))

	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}

	router := api.SetupRoutes(handlers, cfg, guard, upstream, routeOpts...)

	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Starting server", "addr", server.Addr, "store", cfg.Store.Type, "upstream", cfg.Upstream.URL)

		var err error
		if cfg.Server.TLSEnabled {
			if cfg.Server.TLSCertFile == "" || cfg.Server.TLSKeyFile == "" {
				slog.Error("TLS is enabled but cert file or key file is not specified")
				os.Exit(1)
			}
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}
