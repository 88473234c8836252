package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.JWTIssuer != "nettoria-auth" {
		t.Errorf("JWTIssuer = %q", cfg.JWTIssuer)
	}
	if cfg.JWTAudience != "nettoria-api" {
		t.Errorf("JWTAudience = %q", cfg.JWTAudience)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.OTPMaxAttempts != 5 {
		t.Errorf("OTPMaxAttempts = %d, want 5", cfg.OTPMaxAttempts)
	}
	if cfg.KafkaGroupID != "nettoria-audit-shipper" || cfg.LokiURL != "" {
		t.Errorf("KafkaGroupID = %q, LokiURL = %q", cfg.KafkaGroupID, cfg.LokiURL)
	}
	if cfg.AuditKafkaTopic != "nettoria-audit" {
		t.Errorf("AuditKafkaTopic = %q", cfg.AuditKafkaTopic)
	}
	if cfg.OTPReturnToClient {
		t.Error("OTPReturnToClient should default to false")
	}
	if cfg.SessionTTL() != 24*time.Hour {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL())
	}
	if cfg.CodeTTL() != 120*time.Second {
		t.Errorf("CodeTTL = %v", cfg.CodeTTL())
	}
	if cfg.ResendInterval() != 60*time.Second {
		t.Errorf("ResendInterval = %v", cfg.ResendInterval())
	}
	if cfg.LoginTokenLifetime() != 15*time.Minute {
		t.Errorf("LoginTokenLifetime = %v", cfg.LoginTokenLifetime())
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("JWT_ISSUER", "custom-issuer")
	os.Setenv("BCRYPT_COST", "14")
	os.Setenv("OTP_TTL", "5m")
	os.Setenv("OTP_RESEND_INTERVAL", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q", cfg.JWTIssuer)
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
	if cfg.CodeTTL() != 5*time.Minute {
		t.Errorf("CodeTTL = %v", cfg.CodeTTL())
	}
	if cfg.ResendInterval() != 0 {
		t.Errorf("ResendInterval = %v, want 0", cfg.ResendInterval())
	}
}

func TestLoad_InvalidBcryptCost(t *testing.T) {
	os.Clearenv()
	os.Setenv("BCRYPT_COST", "40")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for BCRYPT_COST=40")
	}
}

func TestLoad_DevOTPForbiddenInProduction(t *testing.T) {
	os.Clearenv()
	os.Setenv("APP_ENV", "production")
	os.Setenv("OTP_RETURN_TO_CLIENT", "true")
	os.Setenv("DATABASE_URL", "postgres://x")
	os.Setenv("JWT_PRIVATE_KEY", "k")
	os.Setenv("JWT_PUBLIC_KEY", "k")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for dev OTP mode in production")
	}
}

func TestLoad_ProductionRequiresDatabase(t *testing.T) {
	os.Clearenv()
	os.Setenv("APP_ENV", "production")
	os.Setenv("JWT_PRIVATE_KEY", "k")
	os.Setenv("JWT_PUBLIC_KEY", "k")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing DATABASE_URL in production")
	}
}

func TestLoad_KeysMustBePaired(t *testing.T) {
	os.Clearenv()
	os.Setenv("JWT_PRIVATE_KEY", "only-private")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when only one JWT key is set")
	}
}

func TestConfig_DurationFallbacks(t *testing.T) {
	c := &Config{JWTSessionTTL: "bogus", OTPTTL: "-1s", NotifyTimeout: "", BreakerOpenTimeout: "1m"}
	if c.SessionTTL() != 24*time.Hour {
		t.Errorf("SessionTTL = %v", c.SessionTTL())
	}
	if c.CodeTTL() != 120*time.Second {
		t.Errorf("CodeTTL = %v", c.CodeTTL())
	}
	if c.NotifyTimeoutDuration() != 10*time.Second {
		t.Errorf("NotifyTimeoutDuration = %v", c.NotifyTimeoutDuration())
	}
	if c.BreakerTimeout() != time.Minute {
		t.Errorf("BreakerTimeout = %v", c.BreakerTimeout())
	}
}

func TestConfig_KafkaBrokersList(t *testing.T) {
	c := &Config{KafkaBrokers: " a:9092, ,b:9092 "}
	got := c.KafkaBrokersList()
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Errorf("KafkaBrokersList = %v", got)
	}
	var nilCfg *Config
	if nilCfg.KafkaBrokersList() != nil {
		t.Error("nil config should return nil list")
	}
}
