// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs in period-bound handling.
//  2. Load a .env file via godotenv (non-fatal if absent).
//  3. For non-local environments, resolve _SSM_PARAM pointer variables via
//     the SecretProvider and inject the values back into the environment.
//  4. Process envconfig struct tags into the Config struct.
//  5. Substitute inert placeholders for absent Stripe credentials so the
//     process can start in unconfigured billing mode.
//  6. Validate the struct using go-playground/validator.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)

// ConfigError is a diagnostic error type returned by LoadConfig.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ssmParamSuffix marks environment variables that point at SSM parameters,
// e.g. STRIPE_SECRET_KEY_SSM_PARAM=/prod/dealbase/stripe/secret_key.
const ssmParamSuffix = "_SSM_PARAM"

// localEnv is the APP_ENV value that bypasses SSM resolution.
const localEnv = "local"

// LoadConfig loads and validates the billing engine configuration.
//
// The provider is used to resolve _SSM_PARAM pointer variables in non-local
// environments; it may be nil for local development.
func LoadConfig(provider SecretProvider) (*Config, error) {
	// Enforce UTC. All period bounds and event timestamps are stored UTC.
	time.Local = time.UTC

	// Load .env if present. Does not override existing environment values.
	_ = godotenv.Load()

	appEnv, _ := os.LookupEnv("APP_ENV")
	if appEnv != localEnv && appEnv != "" {
		if err := resolveSSMParams(provider); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	applyBillingPlaceholders(&cfg.Billing)

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	return &cfg, nil
}

// applyBillingPlaceholders substitutes inert values for absent Stripe
// credentials. Downstream code can then be constructed unconditionally;
// BillingConfig.IsConfigured() and the provider factory enforce the
// degraded mode at the point of use.
func applyBillingPlaceholders(b *BillingConfig) {
	if b.StripeSecretKey.Unmask() == "" || b.StripePublishableKey == "" {
		b.StripeSecretKey = PlaceholderSecretKey
		b.StripePublishableKey = PlaceholderPublishableKey
	}
	if b.StripeWebhookSecret.Unmask() == "" {
		b.StripeWebhookSecret = PlaceholderWebhookSecret
	}
}

// resolveSSMParams scans the environment for variables ending in _SSM_PARAM,
// fetches the referenced secrets, and injects them under the suffix-stripped
// name. Already-set target variables win over SSM (priority: Env > SSM).
func resolveSSMParams(provider SecretProvider) error {
	targetsByPath := make(map[string]string)

	for _, entry := range os.Environ() {
		key, value, found := strings.Cut(entry, "=")
		if !found || !strings.HasSuffix(key, ssmParamSuffix) || value == "" {
			continue
		}
		target := strings.TrimSuffix(key, ssmParamSuffix)
		if _, exists := os.LookupEnv(target); exists {
			continue
		}
		targetsByPath[value] = target
	}

	if len(targetsByPath) == 0 {
		return nil
	}

	if provider == nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: "SecretProvider is required to resolve _SSM_PARAM variables in non-local environments",
		}
	}

	paths := make([]string, 0, len(targetsByPath))
	for path := range targetsByPath {
		paths = append(paths, path)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("failed to resolve %d SSM parameters", len(paths)),
			Err:     err,
		}
	}

	var missing []string
	for path, target := range targetsByPath {
		value, ok := resolved[path]
		if !ok {
			missing = append(missing, target)
			continue
		}
		if err := os.Setenv(target, value); err != nil {
			return &ConfigError{
				Type:    ErrSSMResolution,
				Message: fmt.Sprintf("failed to set resolved value for %s", target),
				Err:     err,
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: "SSM parameters not found for: " + strings.Join(missing, ", "),
		}
	}

	return nil
}
