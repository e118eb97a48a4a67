// Package main is the entry point for the billing engine API server.
//
// Startup order: configuration (env -> dotenv -> SSM), logging, database
// pool, provider factory, billing service and webhook processor, optional
// AWS fanout (SQS publisher, CloudWatch metrics), HTTP chassis. Missing
// Stripe credentials do not abort startup; the billing subsystem runs in
// unconfigured mode and provider-backed endpoints return 503.
//
// Graceful shutdown is driven by SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"dealbase/internal/api/handlers"
	"dealbase/internal/billing"
	"dealbase/internal/config"
	"dealbase/internal/core"
	"dealbase/internal/db"
	"dealbase/internal/external"
	"dealbase/internal/queue"
	"dealbase/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// In non-local environments secrets come from SSM; locally the .env
	// file and plain environment variables are enough.
	var provider config.SecretProvider
	if env := os.Getenv("APP_ENV"); env != "" && env != "local" {
		ssmProvider, err := config.NewSSMProvider(startCtx)
		if err != nil {
			return fmt.Errorf("creating SSM provider: %w", err)
		}
		provider = ssmProvider
	}

	cfg, err := config.LoadConfig(provider)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("billing API starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
		"billing_configured", cfg.Billing.IsConfigured(),
	)

	pool, err := db.NewPool(startCtx, cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database pool: %w", err)
	}

	// Repositories.
	customers := db.NewCustomerRepository(pool)
	subscriptions := db.NewSubscriptionRepository(pool, logger)
	webhookEvents := db.NewWebhookEventRepository(pool)

	// Provider factory and billing service.
	factory := external.NewFactory(cfg.Billing, &http.Client{Timeout: 20 * time.Second}, logger)
	catalog := billing.NewPlanCatalog(cfg.Billing)
	service := billing.NewService(customers, subscriptions, factory, logger)

	// Optional AWS fanout. A failed AWS config load disables metrics and
	// queue publication but never blocks webhook processing.
	metrics, publisher := buildAWSFanout(startCtx, cfg, logger)

	processor := billing.NewProcessor(
		&external.StripeVerifier{},
		webhookEvents,
		service,
		factory,
		cfg.Billing.StripeWebhookSecret.Unmask(),
		metrics,
		publisher,
		logger,
	)

	// HTTP chassis. User identity arrives as gateway-injected headers.
	srv, err := core.NewServer(cfg, logger, &gatewayAuthenticator{})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.OnShutdown(func(context.Context) error {
		pool.Close()
		return nil
	})

	billingHandler := handlers.NewBillingHandler(service, catalog, cfg, srv.Validator, logger)
	webhookHandler := handlers.NewStripeWebhookHandler(processor, logger)
	adminHandler := handlers.NewAdminHandler(webhookEvents, cfg.Security.AdminAPIKey.Unmask(), logger)

	srv.MountRoutes(
		mounters{webhookHandler, adminHandler},
		billingHandler,
	)
	srv.Router().Get("/healthz", core.HealthHandler(pool))

	return serve(srv, cfg, logger)
}

// buildAWSFanout constructs the CloudWatch metrics recorder and the SQS
// billing event publisher. Either may come back nil (disabled).
func buildAWSFanout(ctx context.Context, cfg *config.Config, logger *slog.Logger) (billing.OutcomeRecorder, billing.EventPublisher) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWS.Region),
	}
	if cfg.AWS.EndpointURL != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(cfg.AWS.EndpointURL))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		logger.Warn("AWS config load failed; metrics and event fanout disabled", "error", err)
		return nil, nil
	}

	metrics := billing.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.AWS.MetricNamespace, logger)

	var publisher billing.EventPublisher
	if cfg.AWS.BillingEventsQueue != "" {
		publisher = queue.NewBillingEventPublisher(sqs.NewFromConfig(awsCfg), cfg.AWS.BillingEventsQueue, logger)
	}

	return metrics, publisher
}

// serve runs the HTTP server until a shutdown signal arrives, then drains
// in-flight requests with a 10 second deadline.
func serve(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("server stopped cleanly")
	return nil
}

// mounters mounts several route groups as one.
type mounters []core.RouteMounter

func (m mounters) Mount(r chi.Router) {
	for _, mounter := range m {
		mounter.Mount(r)
	}
}

// gatewayAuthenticator trusts the identity headers injected by the API
// gateway in front of this service. The gateway strips these headers from
// external traffic before they can be spoofed.
type gatewayAuthenticator struct{}

func (gatewayAuthenticator) Authenticate(r *http.Request) (types.Actor, error) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		return types.Actor{}, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"authentication required",
			nil,
		)
	}
	return types.Actor{
		UserID: userID,
		Email:  r.Header.Get("X-User-Email"),
	}, nil
}

// newLogger creates a JSON slog.Logger for the given level string.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
