package mocks

import (
	"time"

	"github.com/cradoe/skypay/internal/config"
	"github.com/cradoe/skypay/internal/onboarding"
)

// Config returns a configuration for tests: in-process backends, a fixed JWT
// secret and a provider backoff short enough not to slow the suite down.
func Config() *config.Config {
	cfg := &config.Config{
		BaseURL:  "https://skypay.test",
		HttpPort: 8080,
	}

	cfg.Jwt.SecretKey = "test_secret"
	cfg.Notifications.Email = ""
	cfg.Provider.ConsentLinkBase = cfg.BaseURL + "/consents"
	cfg.Provider.IdempotencyTTL = time.Hour
	cfg.Review.Email = "review@skypay.test"

	cfg.Onboarding = onboarding.DefaultPolicy()
	cfg.Onboarding.ProviderBackoff = time.Millisecond

	return cfg
}
