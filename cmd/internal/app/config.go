package app

import (
	"errors"
	"time"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// DatabaseURL selects the account store: Postgres when set, an
	// in-memory store for local development when empty.
	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	// If true, /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// SecretKey derives the session-token cipher key. Required.
	SecretKey string

	AccessTokenMaxAge time.Duration
	VerificationTTL   time.Duration
	ResetTTL          time.Duration

	// KafkaBrokers enables lifecycle event publishing when non-empty.
	KafkaBrokers []string

	// DevLogEmailCodes routes one-time codes to the log instead of email.
	// Development only.
	DevLogEmailCodes bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("LQ_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("LQ_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("LQ_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("LQ_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("LQ_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("LQ_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("LQ_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("LQ_DATABASE_URL", ""),
		DBSchema:    EnvString("LQ_DB_SCHEMA", "lerniqo"),
		DBMaxConns:  EnvInt32("LQ_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("LQ_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("LQ_READINESS_REQUIRE_DB", false),

		SecretKey: EnvString("LQ_SECRET_KEY", ""),

		AccessTokenMaxAge: EnvDuration("LQ_ACCESS_TOKEN_MAX_AGE", 24*time.Hour),
		VerificationTTL:   EnvDuration("LQ_VERIFICATION_TTL", 24*time.Hour),
		ResetTTL:          EnvDuration("LQ_RESET_TTL", time.Hour),

		KafkaBrokers: EnvStringList("LQ_KAFKA_BROKERS"),

		DevLogEmailCodes: EnvBool("LQ_DEV_LOG_EMAIL_CODES", false),
	}
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	if c.SecretKey == "" {
		return errors.New("app: LQ_SECRET_KEY is required")
	}
	return nil
}
