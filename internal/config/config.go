// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// Env is the application environment ("development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is a zap level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// CORSAllowedOrigins is a comma-separated origin list, "*" for any.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	// ProxyHeader names the header holding the client IP when running behind a proxy (e.g. X-Forwarded-For).
	ProxyHeader string `mapstructure:"PROXY_HEADER"`

	// DatabaseURL is the Postgres DSN. Empty selects in-memory stores (not allowed in production).
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`
	// JWTSessionTTL is the session token lifetime (default 24h).
	JWTSessionTTL string `mapstructure:"JWT_SESSION_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// OTPTTL is how long an issued verification code stays valid (default 120s).
	OTPTTL string `mapstructure:"OTP_TTL"`
	// OTPResendInterval is the minimum time between two codes for the same user and purpose.
	OTPResendInterval string `mapstructure:"OTP_RESEND_INTERVAL"`
	// OTPMaxAttempts is the number of wrong submissions after which a code is discarded.
	OTPMaxAttempts int `mapstructure:"OTP_MAX_ATTEMPTS"`
	// LoginTokenTTL is the lifetime of one-time login tokens (default 15m).
	LoginTokenTTL string `mapstructure:"LOGIN_TOKEN_TTL"`
	// LoginLinkBaseURL is prefixed to the token in emailed login links.
	LoginLinkBaseURL string `mapstructure:"LOGIN_LINK_BASE_URL"`
	// TOTPIssuer is shown by authenticator apps.
	TOTPIssuer string `mapstructure:"TOTP_ISSUER"`
	// NotifyTimeout bounds a single SMS or email delivery attempt.
	NotifyTimeout string `mapstructure:"NOTIFY_TIMEOUT"`

	SMSLocalAPIKey  string `mapstructure:"SMS_LOCAL_API_KEY"`
	SMSLocalSender  string `mapstructure:"SMS_LOCAL_SENDER"`
	SMSLocalBaseURL string `mapstructure:"SMS_LOCAL_BASE_URL"`

	BrevoAPIKey      string `mapstructure:"BREVO_API_KEY"`
	BrevoBaseURL     string `mapstructure:"BREVO_BASE_URL"`
	BrevoSenderEmail string `mapstructure:"BREVO_SENDER_EMAIL"`
	BrevoSenderName  string `mapstructure:"BREVO_SENDER_NAME"`

	// OTPReturnToClient when true enables dev OTP mode: nothing is sent, codes are kept for GET /dev/otp.
	// Must not be true when Env is production.
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`

	// BreakerMaxFailures is the consecutive delivery failures that open a provider's circuit.
	BreakerMaxFailures int `mapstructure:"BREAKER_MAX_FAILURES"`
	// BreakerOpenTimeout is how long an open circuit rejects deliveries.
	BreakerOpenTimeout string `mapstructure:"BREAKER_OPEN_TIMEOUT"`

	// RateLimitPerMinute caps code-issuing requests per client IP.
	RateLimitPerMinute int `mapstructure:"RATE_LIMIT_PER_MINUTE"`
	// RedisAddr enables the shared Redis limiter when set; otherwise limits are per process.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// KafkaBrokers is a comma-separated list; when set, audit events are also published to Kafka.
	KafkaBrokers    string `mapstructure:"KAFKA_BROKERS"`
	AuditKafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group of the audit shipper.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is where the audit shipper pushes events (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`

	// OTELEndpoint is the OTLP gRPC collector address; empty disables export.
	OTELEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELInsecure    bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTELServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored. Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("PROXY_HEADER", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "nettoria-auth")
	v.SetDefault("JWT_AUDIENCE", "nettoria-api")
	v.SetDefault("JWT_SESSION_TTL", "24h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("OTP_TTL", "120s")
	v.SetDefault("OTP_RESEND_INTERVAL", "60s")
	v.SetDefault("OTP_MAX_ATTEMPTS", 5)
	v.SetDefault("LOGIN_TOKEN_TTL", "15m")
	v.SetDefault("LOGIN_LINK_BASE_URL", "http://localhost:3000/login-link?token=")
	v.SetDefault("TOTP_ISSUER", "Nettoria")
	v.SetDefault("NOTIFY_TIMEOUT", "10s")
	v.SetDefault("SMS_LOCAL_API_KEY", "")
	v.SetDefault("SMS_LOCAL_SENDER", "")
	v.SetDefault("SMS_LOCAL_BASE_URL", "https://app.smslocal.in/api/smsapi")
	v.SetDefault("BREVO_API_KEY", "")
	v.SetDefault("BREVO_BASE_URL", "https://api.brevo.com/v3/smtp/email")
	v.SetDefault("BREVO_SENDER_EMAIL", "")
	v.SetDefault("BREVO_SENDER_NAME", "Nettoria")
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("BREAKER_MAX_FAILURES", 5)
	v.SetDefault("BREAKER_OPEN_TIMEOUT", "30s")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 10)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "nettoria-audit")
	v.SetDefault("KAFKA_GROUP_ID", "nettoria-audit-shipper")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "nettoria-auth")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.OTPReturnToClient && cfg.IsProduction() {
		return nil, errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}
	if cfg.IsProduction() {
		if cfg.DatabaseURL == "" {
			return nil, errors.New("config: DATABASE_URL must be set when APP_ENV=production")
		}
		if cfg.JWTPrivateKey == "" || cfg.JWTPublicKey == "" {
			return nil, errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set when APP_ENV=production")
		}
	}
	if (cfg.JWTPrivateKey == "") != (cfg.JWTPublicKey == "") {
		return nil, errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set together")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.OTPMaxAttempts < 0 {
		return nil, errors.New("config: OTP_MAX_ATTEMPTS must not be negative")
	}
	if cfg.RateLimitPerMinute < 0 {
		return nil, errors.New("config: RATE_LIMIT_PER_MINUTE must not be negative")
	}

	return &cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// SessionTTL parses JWTSessionTTL. Returns 24h if unset or invalid.
func (c *Config) SessionTTL() time.Duration {
	return parseDuration(c.JWTSessionTTL, 24*time.Hour)
}

// CodeTTL parses OTPTTL. Returns 120s if unset or invalid.
func (c *Config) CodeTTL() time.Duration {
	return parseDuration(c.OTPTTL, 120*time.Second)
}

// ResendInterval parses OTPResendInterval. Zero disables the throttle; invalid values fall back to 60s.
func (c *Config) ResendInterval() time.Duration {
	if strings.TrimSpace(c.OTPResendInterval) == "0" {
		return 0
	}
	return parseDuration(c.OTPResendInterval, 60*time.Second)
}

// LoginTokenLifetime parses LoginTokenTTL. Returns 15m if unset or invalid.
func (c *Config) LoginTokenLifetime() time.Duration {
	return parseDuration(c.LoginTokenTTL, 15*time.Minute)
}

// NotifyTimeoutDuration parses NotifyTimeout. Returns 10s if unset or invalid.
func (c *Config) NotifyTimeoutDuration() time.Duration {
	return parseDuration(c.NotifyTimeout, 10*time.Second)
}

// BreakerTimeout parses BreakerOpenTimeout. Returns 30s if unset or invalid.
func (c *Config) BreakerTimeout() time.Duration {
	return parseDuration(c.BreakerOpenTimeout, 30*time.Second)
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
func (c *Config) KafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

// CORSOrigins returns the configured origins.
func (c *Config) CORSOrigins() []string {
	if c == nil {
		return nil
	}
	return splitList(c.CORSAllowedOrigins)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
