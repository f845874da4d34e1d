// Package config loads the application configuration from the environment.
//
// Every external dependency (profile store, identity provider, SMTP) is
// configured here and injected from main — nothing reads os.Getenv at point
// of use. A .env file in the working directory is honored for local
// development; real environments set the variables directly.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every tunable of the service. Defaults are chosen so a local
// `go run ./cmd/server` works against a dev provider without a .env file,
// except for the secrets, which have no safe default.
type Config struct {
	Port   int    `env:"PORT" envDefault:"8080"`
	DBPath string `env:"DB_PATH" envDefault:"data/accounts.db"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Identity provider admin API. The client authenticates with the OAuth2
	// client-credentials grant against IDPTokenURL.
	IDPBaseURL      string        `env:"IDP_BASE_URL"`
	IDPTokenURL     string        `env:"IDP_TOKEN_URL"`
	IDPClientID     string        `env:"IDP_CLIENT_ID"`
	IDPClientSecret string        `env:"IDP_CLIENT_SECRET"`
	IDPTimeout      time.Duration `env:"IDP_TIMEOUT" envDefault:"10s"`

	// Shared HMAC secret and issuer for verifying provider-issued bearer
	// tokens locally (no network call per verification).
	IDPTokenSecret string `env:"IDP_TOKEN_SECRET"`
	IDPTokenIssuer string `env:"IDP_TOKEN_ISSUER" envDefault:"identity-provider"`

	// Outbound mail. When SMTPHost is empty, mail delivery is disabled and
	// outbox messages are logged instead of sent.
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM" envDefault:"no-reply@localhost"`

	// Background loops.
	OutboxInterval    time.Duration `env:"OUTBOX_INTERVAL" envDefault:"15s"`
	OutboxBatchSize   int           `env:"OUTBOX_BATCH_SIZE" envDefault:"20"`
	OutboxMaxAttempts int           `env:"OUTBOX_MAX_ATTEMPTS" envDefault:"5"`

	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"10m"`
	ReconcileGrace    time.Duration `env:"RECONCILE_GRACE" envDefault:"1h"`
}

// Load reads a .env file if one exists, then parses the environment.
func Load() (Config, error) {
	// Missing .env is fine; variables may come from the real environment.
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
