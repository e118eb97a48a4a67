package config

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapProvider is an in-memory SecretProvider for tests.
type mapProvider struct {
	params map[string]string
	err    error
	calls  int
}

func (p *mapProvider) GetParametersBatch(_ context.Context, paths []string) (map[string]string, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	out := make(map[string]string)
	for _, path := range paths {
		if v, ok := p.params[path]; ok {
			out[path] = v
		}
	}
	return out, nil
}

// clearBillingEnv unsets all billing-related variables so each test starts
// from a clean slate regardless of the developer's shell. t.Setenv registers
// the restore; the explicit Unsetenv makes the variable truly absent, which
// matters for the Env > SSM priority check.
func clearBillingEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"STRIPE_SECRET_KEY", "STRIPE_PUBLISHABLE_KEY", "STRIPE_WEBHOOK_SECRET",
		"STRIPE_PRICE_STARTER", "STRIPE_PRICE_PRO", "STRIPE_PRICE_BUSINESS",
		"STRIPE_SECRET_KEY_SSM_PARAM",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearBillingEnv(t)
	t.Setenv("APP_ENV", "local")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/billing")

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "postgres://localhost:5432/billing", cfg.Database.URL.Unmask())
	assert.Equal(t, 10, cfg.Database.MaxConns)
	assert.Equal(t, "DealBase/Billing", cfg.AWS.MetricNamespace)
}

func TestLoadConfig_MissingDatabaseURLFails(t *testing.T) {
	clearBillingEnv(t)
	t.Setenv("APP_ENV", "local")
	t.Setenv("DATABASE_URL", "")

	_, err := LoadConfig(nil)
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ErrValidation, cfgErr.Type)
}

func TestLoadConfig_MissingStripeKeysGetPlaceholders(t *testing.T) {
	clearBillingEnv(t)
	t.Setenv("APP_ENV", "local")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/billing")

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, PlaceholderSecretKey, cfg.Billing.StripeSecretKey.Unmask())
	assert.Equal(t, PlaceholderPublishableKey, cfg.Billing.StripePublishableKey)
	assert.Equal(t, PlaceholderWebhookSecret, cfg.Billing.StripeWebhookSecret.Unmask())
	assert.False(t, cfg.Billing.IsConfigured())
}

func TestLoadConfig_RealStripeKeysAreConfigured(t *testing.T) {
	clearBillingEnv(t)
	t.Setenv("APP_ENV", "local")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/billing")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_abc")
	t.Setenv("STRIPE_PUBLISHABLE_KEY", "pk_test_abc")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_abc")

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.True(t, cfg.Billing.IsConfigured())
	assert.Equal(t, "sk_test_abc", cfg.Billing.StripeSecretKey.Unmask())
}

func TestLoadConfig_LocalSkipsSSM(t *testing.T) {
	clearBillingEnv(t)
	t.Setenv("APP_ENV", "local")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/billing")
	t.Setenv("STRIPE_SECRET_KEY_SSM_PARAM", "/local/stripe/secret")

	provider := &mapProvider{params: map[string]string{}}
	_, err := LoadConfig(provider)
	require.NoError(t, err)
	assert.Zero(t, provider.calls)
}

func TestLoadConfig_SSMResolution(t *testing.T) {
	clearBillingEnv(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/billing")
	t.Setenv("STRIPE_SECRET_KEY_SSM_PARAM", "/prod/stripe/secret")
	t.Setenv("STRIPE_PUBLISHABLE_KEY", "pk_live_abc")

	provider := &mapProvider{params: map[string]string{
		"/prod/stripe/secret": "sk_live_resolved",
	}}

	cfg, err := LoadConfig(provider)
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, "sk_live_resolved", cfg.Billing.StripeSecretKey.Unmask())
	assert.True(t, cfg.Billing.IsConfigured())
}

func TestLoadConfig_EnvWinsOverSSM(t *testing.T) {
	clearBillingEnv(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/billing")
	t.Setenv("STRIPE_SECRET_KEY", "sk_from_env")
	t.Setenv("STRIPE_SECRET_KEY_SSM_PARAM", "/prod/stripe/secret")
	t.Setenv("STRIPE_PUBLISHABLE_KEY", "pk_live_abc")

	provider := &mapProvider{params: map[string]string{
		"/prod/stripe/secret": "sk_from_ssm",
	}}

	cfg, err := LoadConfig(provider)
	require.NoError(t, err)
	assert.Equal(t, "sk_from_env", cfg.Billing.StripeSecretKey.Unmask())
}

func TestLoadConfig_SSMParamMissingFails(t *testing.T) {
	clearBillingEnv(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/billing")
	t.Setenv("STRIPE_SECRET_KEY_SSM_PARAM", "/prod/stripe/missing")

	provider := &mapProvider{params: map[string]string{}}
	_, err := LoadConfig(provider)
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ErrSSMResolution, cfgErr.Type)
}

func TestLoadConfig_NonLocalWithoutProviderFails(t *testing.T) {
	clearBillingEnv(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/billing")
	t.Setenv("STRIPE_SECRET_KEY_SSM_PARAM", "/prod/stripe/secret")

	_, err := LoadConfig(nil)
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ErrSSMResolution, cfgErr.Type)
}

func TestBillingConfig_IsConfigured(t *testing.T) {
	assert.False(t, BillingConfig{}.IsConfigured())
	assert.False(t, BillingConfig{
		StripeSecretKey:      PlaceholderSecretKey,
		StripePublishableKey: PlaceholderPublishableKey,
	}.IsConfigured())
	assert.False(t, BillingConfig{
		StripeSecretKey: "sk_test_abc",
	}.IsConfigured())
	assert.True(t, BillingConfig{
		StripeSecretKey:      "sk_test_abc",
		StripePublishableKey: "pk_test_abc",
	}.IsConfigured())
}
