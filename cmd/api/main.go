package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/love-auditor/cmd/mainconfig"
	"github.com/wolfman30/love-auditor/internal/api/router"
	"github.com/wolfman30/love-auditor/internal/app/bootstrap"
	"github.com/wolfman30/love-auditor/internal/checkout"
	appconfig "github.com/wolfman30/love-auditor/internal/config"
	"github.com/wolfman30/love-auditor/internal/entitlements"
	"github.com/wolfman30/love-auditor/internal/http/handlers"
	"github.com/wolfman30/love-auditor/internal/notify"
	"github.com/wolfman30/love-auditor/internal/observability/metrics"
	"github.com/wolfman30/love-auditor/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting love-auditor API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"inference_provider", cfg.InferenceProvider,
	)

	ctx := context.Background()
	handler, cleanup, err := buildHandler(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	writeTimeout := bootstrap.WriteTimeout(cfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr, "write_timeout", writeTimeout.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

type appMetrics struct {
	handler   http.Handler
	inference *metrics.InferenceMetrics
	webhook   *metrics.WebhookMetrics
}

func setupMetrics() appMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return appMetrics{
		handler:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		inference: metrics.NewInferenceMetrics(reg),
		webhook:   metrics.NewWebhookMetrics(reg),
	}
}

// buildHandler wires every dependency from config. The cleanup func closes
// the connections it opened.
func buildHandler(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (http.Handler, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var awsCfg *aws.Config
	if bootstrap.NeedsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, cleanup, fmt.Errorf("load aws config: %w", err)
		}
		awsCfg = &loaded
	}

	m := setupMetrics()

	llms, err := bootstrap.BuildLLMClients(cfg, awsCfg, m.inference, logger)
	if err != nil {
		return nil, cleanup, err
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		closers = append(closers, func() { _ = redisClient.Close() })
	}
	store := bootstrap.BuildSessionStore(redisClient, cfg, logger)
	services := bootstrap.BuildAuditServices(cfg, llms, redisClient, m.inference, logger)

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	if pool != nil {
		closers = append(closers, pool.Close)
	}
	directory, err := bootstrap.BuildDirectory(cfg, pool, logger)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}

	notifier := notify.NewPremiumNotifier(
		bootstrap.BuildMailer(cfg, awsCfg, logger),
		notify.PremiumNotifierConfig{AppURL: cfg.AppPublicURL, AppTitle: cfg.AppTitle},
		logger,
	)

	// A nil *ProcessedStore must not reach the handler as a non-nil interface.
	webhookCfg := entitlements.WebhookConfig{Secret: cfg.LemonSqueezyWebhookSecret, Plan: cfg.PremiumPlan}
	webhook := entitlements.NewLemonSqueezyWebhookHandler(webhookCfg, directory, nil, notifier, m.webhook, logger)
	if processed := bootstrap.BuildProcessedStore(pool); processed != nil {
		webhook = entitlements.NewLemonSqueezyWebhookHandler(webhookCfg, directory, processed, notifier, m.webhook, logger)
	} else {
		logger.Warn("webhook idempotency ledger disabled: DATABASE_URL not set")
	}

	checks := map[string]handlers.HealthCheck{}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if pool != nil {
		checks["postgres"] = pool.Ping
	}

	r := router.New(&router.Config{
		Logger:         logger,
		AuditHandler:   handlers.NewAuditHandler(services.Roast, store, logger),
		ChatHandler:    handlers.NewChatHandler(services.Chat, store, logger),
		HealthHandler:  handlers.NewHealthHandler(checks, logger),
		Checkout:       checkout.NewHandler(checkout.HandlerConfig{CheckoutURL: cfg.CheckoutURL, AppURL: cfg.AppPublicURL}, store, logger),
		Referrals:      store,
		Webhook:        webhook,
		MetricsHandler: m.handler,

		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		UserAuthSecret:     cfg.SessionJWTSecret,
		SecureCookies:      cfg.Env == "production",
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	})
	return r, cleanup, nil
}
