package config

import (
	"time"

	"github.com/cradoe/skypay/internal/env"
	"github.com/cradoe/skypay/internal/onboarding"
)

type Config struct {
	BaseURL  string
	HttpPort int
	Db       struct {
		// Dsn left empty runs the service on the in-memory store
		Dsn         string
		Automigrate bool
	}
	Jwt struct {
		SecretKey string
	}
	Notifications struct {
		Email string
	}
	Smtp struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
		TLS      bool
	}
	FileUploader struct {
		CloudName string
		ApiKey    string
		ApiSecret string
	}
	// Provider settings. An empty BaseURL selects the sandbox provider.
	Provider struct {
		BaseURL         string
		AppID           string
		ApiKey          string
		Timeout         time.Duration
		ConsentLinkBase string
		IdempotencyTTL  time.Duration
	}
	Sms struct {
		BaseURL  string
		ApiKey   string
		SenderID string
		Timeout  time.Duration
	}
	Redis struct {
		Addr string
		DB   int
	}
	KafkaServers string
	Onboarding   onboarding.Policy
	Sweep        struct {
		Interval time.Duration
	}
	Review struct {
		Email string
	}
	Seed struct {
		ReviewerEmail    string
		ReviewerName     string
		ReviewerPassword string
	}
}

// Load reads the configuration from the environment.
// Default values are provided for these items and these should strictly be values for development mode only
// make sure no production-level value is exposed as default value here
func Load() Config {
	var cfg Config

	cfg.BaseURL = env.GetString("BASE_URL", "http://localhost:4444")
	cfg.HttpPort = env.GetInt("HTTP_PORT", 4444)

	cfg.Db.Dsn = env.GetString("DB_DSN", "")
	cfg.Db.Automigrate = env.GetBool("DB_AUTOMIGRATE", true)

	cfg.Jwt.SecretKey = env.GetString("JWT_SECRET_KEY", "ajf5nx3qmp6zquevllxocxqvyz42ypuo")

	// server errors won't be sent via email if the NOTIFICATIONS_EMAIL wasn't set in the .env file
	cfg.Notifications.Email = env.GetString("NOTIFICATIONS_EMAIL", "")

	cfg.Smtp.Host = env.GetString("SMTP_HOST", "example.smtp.host")
	cfg.Smtp.Port = env.GetInt("SMTP_PORT", 25)
	cfg.Smtp.Username = env.GetString("SMTP_USERNAME", "example_username")
	cfg.Smtp.Password = env.GetString("SMTP_PASSWORD", "pa55word")
	cfg.Smtp.From = env.GetString("SMTP_FROM", "SkyPay <no_reply@example.org>")
	cfg.Smtp.TLS = env.GetBool("SMTP_TLS", false)

	cfg.FileUploader.ApiKey = env.GetString("CLOUDINARY_API_KEY", "")
	cfg.FileUploader.CloudName = env.GetString("CLOUDINARY_CLOUD_NAME", "")
	cfg.FileUploader.ApiSecret = env.GetString("CLOUDINARY_API_SECRET", "")

	cfg.Provider.BaseURL = env.GetString("PROVIDER_BASE_URL", "")
	cfg.Provider.AppID = env.GetString("PROVIDER_APP_ID", "")
	cfg.Provider.ApiKey = env.GetString("PROVIDER_API_KEY", "")
	cfg.Provider.Timeout = env.GetDuration("PROVIDER_TIMEOUT", 30*time.Second)
	cfg.Provider.ConsentLinkBase = env.GetString("CONSENT_LINK_BASE", cfg.BaseURL+"/consents")
	cfg.Provider.IdempotencyTTL = env.GetDuration("PROVIDER_IDEMPOTENCY_TTL", 7*24*time.Hour)

	// an empty SMS_BASE_URL logs SMS messages instead of sending them
	cfg.Sms.BaseURL = env.GetString("SMS_BASE_URL", "")
	cfg.Sms.ApiKey = env.GetString("SMS_API_KEY", "")
	cfg.Sms.SenderID = env.GetString("SMS_SENDER_ID", "SkyPay")
	cfg.Sms.Timeout = env.GetDuration("SMS_TIMEOUT", 10*time.Second)

	// without redis, locks and idempotency records live in this process only
	cfg.Redis.Addr = env.GetString("REDIS_ADDR", "")
	cfg.Redis.DB = env.GetInt("REDIS_DB", 0)

	// without kafka, status events are not published and no notification worker runs
	cfg.KafkaServers = env.GetString("KAFKA_SERVERS", "")

	defaults := onboarding.DefaultPolicy()
	cfg.Onboarding = onboarding.Policy{
		MaxAttempts:          env.GetInt("ONBOARDING_MAX_ATTEMPTS", defaults.MaxAttempts),
		OTPExpiry:            env.GetDuration("ONBOARDING_OTP_EXPIRY", defaults.OTPExpiry),
		OTPMaxAttempts:       env.GetInt("ONBOARDING_OTP_MAX_ATTEMPTS", defaults.OTPMaxAttempts),
		ConsentExpiry:        env.GetDuration("ONBOARDING_CONSENT_EXPIRY", defaults.ConsentExpiry),
		NameMatchThreshold:   env.GetFloat("ONBOARDING_NAME_MATCH_THRESHOLD", defaults.NameMatchThreshold),
		StepTimeBudget:       env.GetDuration("ONBOARDING_STEP_TIME_BUDGET", defaults.StepTimeBudget),
		AdminReviewSLA:       env.GetDuration("ONBOARDING_ADMIN_REVIEW_SLA", defaults.AdminReviewSLA),
		ProviderRetries:      env.GetInt("ONBOARDING_PROVIDER_RETRIES", defaults.ProviderRetries),
		ProviderBackoff:      env.GetDuration("ONBOARDING_PROVIDER_BACKOFF", defaults.ProviderBackoff),
		ReverificationWindow: env.GetDuration("ONBOARDING_REVERIFICATION_WINDOW", defaults.ReverificationWindow),
	}

	cfg.Sweep.Interval = env.GetDuration("SWEEP_INTERVAL", 5*time.Minute)
	cfg.Review.Email = env.GetString("REVIEW_EMAIL", "")

	cfg.Seed.ReviewerEmail = env.GetString("SEED_REVIEWER_EMAIL", "reviewer@skypay.local")
	cfg.Seed.ReviewerName = env.GetString("SEED_REVIEWER_NAME", "SkyPay Reviewer")
	cfg.Seed.ReviewerPassword = env.GetString("SEED_REVIEWER_PASSWORD", "")

	return cfg
}
