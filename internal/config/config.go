// Package config defines the global configuration for the DealBase billing
// engine. Configuration is loaded once at process start and is immutable
// thereafter; components receive the subsets they need by reference instead
// of reading module-level state.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Missing Stripe credentials do NOT fail startup: the billing subsystem
// degrades to unconfigured mode so the host process can keep serving
// non-billing traffic (local/dev environments without Stripe keys).
package config

import (
	"time"

	"dealbase/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging.
type SecretString = types.SecretString

// Placeholder values substituted for absent Stripe credentials so downstream
// code can be constructed without nil checks. They are inert: IsConfigured()
// reports false and the provider factory refuses to hand out a client.
const (
	PlaceholderSecretKey      = "sk_unconfigured"
	PlaceholderPublishableKey = "pk_unconfigured"
	PlaceholderWebhookSecret  = "whsec_unconfigured"
)

// Config is the top-level configuration struct for the billing engine.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"dealbase-billing"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	Database DatabaseConfig
	Billing  BillingConfig
	AWS      AWSConfig
	Security SecurityConfig
}

// ServerConfig holds HTTP server and public URL configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// DashboardURL is used to build checkout redirect URLs server-side
	// (no trailing slash), e.g. https://app.dealbase.io
	DashboardURL string `envconfig:"DASHBOARD_URL" default:"http://localhost:3000"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
// The store is the source of truth for subscription state and is required
// even when Stripe itself is unconfigured.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// BillingConfig holds Stripe credentials and the price-ID mapping for the
// three paid tiers. None of the fields are validation-required: absence
// flips the subsystem into unconfigured mode instead of crashing startup.
type BillingConfig struct {
	StripeSecretKey      SecretString `envconfig:"STRIPE_SECRET_KEY"`
	StripePublishableKey string       `envconfig:"STRIPE_PUBLISHABLE_KEY"`
	StripeWebhookSecret  SecretString `envconfig:"STRIPE_WEBHOOK_SECRET"`

	PriceStarter  string `envconfig:"STRIPE_PRICE_STARTER"`
	PricePro      string `envconfig:"STRIPE_PRICE_PRO"`
	PriceBusiness string `envconfig:"STRIPE_PRICE_BUSINESS"`
}

// IsConfigured reports whether the billing subsystem has real Stripe
// credentials. Both the secret key and the publishable key must be present;
// the loader substitutes placeholders when either is absent.
func (b BillingConfig) IsConfigured() bool {
	secret := b.StripeSecretKey.Unmask()
	return secret != "" && secret != PlaceholderSecretKey &&
		b.StripePublishableKey != "" && b.StripePublishableKey != PlaceholderPublishableKey
}

// AWSConfig holds AWS regional configuration and the optional resource
// identifiers for billing-event fanout and metrics.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// BillingEventsQueue is the SQS queue consumed by the notification
	// system. Empty disables publication.
	BillingEventsQueue string `envconfig:"SQS_BILLING_EVENTS"`

	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"DealBase/Billing"`

	// LocalStack support (empty in prod).
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// SecurityConfig holds the admin API key guarding operator endpoints
// (webhook audit export). Empty disables those endpoints.
type SecurityConfig struct {
	AdminAPIKey SecretString `envconfig:"ADMIN_API_KEY"`
}
