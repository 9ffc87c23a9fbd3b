package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/netstudio/booking-engine/internal/api/router"
	"github.com/netstudio/booking-engine/internal/booking"
	appconfig "github.com/netstudio/booking-engine/internal/config"
	"github.com/netstudio/booking-engine/internal/gateway"
	"github.com/netstudio/booking-engine/internal/identity"
	"github.com/netstudio/booking-engine/internal/observability/metrics"
	"github.com/netstudio/booking-engine/internal/widget"
	"github.com/netstudio/booking-engine/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("starting booking widget server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	client, err := gateway.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, logger)
	if err != nil {
		logger.Error("failed to create data gateway", "error", err)
		os.Exit(1)
	}

	widgetMetrics := metrics.NewWidgetMetrics(prometheus.DefaultRegisterer)

	resolver := identity.NewResolver(identityCache(cfg, logger), logger)
	bookings := booking.NewService(client, logger)

	widgetHandler := widget.NewHandler(widget.HandlerConfig{
		Resolver:       resolver,
		Source:         client,
		Bookings:       bookings,
		PortalBaseURL:  cfg.PortalBaseURL,
		SessionMaxIdle: cfg.SessionMaxIdle,
		Logger:         logger,
		Metrics:        widgetMetrics,
	})

	r := router.New(&router.Config{
		Logger:             logger,
		Widget:             widgetHandler,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// identityCache picks the sticky identity store. An unreachable redis
// degrades to in-memory rather than blocking startup; identity caching is
// an optimization, not a requirement.
func identityCache(cfg *appconfig.Config, logger *logging.Logger) identity.Cache {
	if cfg.RedisAddr == "" {
		return identity.NewMemoryCache()
	}

	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, falling back to in-memory identity cache",
			"addr", cfg.RedisAddr, "error", err)
		return identity.NewMemoryCache()
	}

	logger.Info("identity cache using redis", "addr", cfg.RedisAddr)
	return identity.NewRedisCache(client, cfg.IdentityTTL, logger)
}
