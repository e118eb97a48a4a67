package external

import (
	"log/slog"
	"net/http"
	"sync"

	"dealbase/internal/config"
	"dealbase/internal/types"
)

// Factory hands out the billing provider client, memoized on first use.
// When Stripe credentials are absent it refuses with
// ErrCodeBillingNotConfigured instead of constructing a client that would
// send placeholder keys over the wire. The configured/unconfigured decision
// is fixed at process start; there is no runtime re-check.
type Factory struct {
	cfg        config.BillingConfig
	httpClient *http.Client
	logger     *slog.Logger

	once   sync.Once
	client *StripeClient
}

// NewFactory creates a provider client factory. httpClient is shared by all
// provider calls and should carry a request timeout.
func NewFactory(cfg config.BillingConfig, httpClient *http.Client, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{cfg: cfg, httpClient: httpClient, logger: logger}
}

// Billing returns the shared BillingProvider, constructing it on first call.
// Returns ErrCodeBillingNotConfigured when credentials are absent; callers
// surface this as 503 without attempting any provider traffic.
func (f *Factory) Billing() (BillingProvider, error) {
	if !f.cfg.IsConfigured() {
		return nil, types.NewAppError(
			types.ErrCodeBillingNotConfigured,
			"billing provider credentials are not configured",
			nil,
		)
	}

	f.once.Do(func() {
		f.client = NewStripeClient(f.httpClient, StripeClientConfig{
			SecretKey: f.cfg.StripeSecretKey.Unmask(),
			Logger:    f.logger,
		})
		f.logger.Info("billing provider client initialized")
	})

	return f.client, nil
}

// IsConfigured reports whether the factory can hand out a provider client.
func (f *Factory) IsConfigured() bool {
	return f.cfg.IsConfigured()
}
