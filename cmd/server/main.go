package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"nettoria/backend/internal/audit"
	auditrepo "nettoria/backend/internal/audit/repository"
	"nettoria/backend/internal/config"
	"nettoria/backend/internal/db"
	"nettoria/backend/internal/devotp"
	healthhandler "nettoria/backend/internal/health/handler"
	identityservice "nettoria/backend/internal/identity/service"
	"nettoria/backend/internal/mfa"
	"nettoria/backend/internal/notify"
	"nettoria/backend/internal/notify/email"
	"nettoria/backend/internal/notify/sms"
	"nettoria/backend/internal/platform/logging"
	"nettoria/backend/internal/policy/engine"
	"nettoria/backend/internal/security"
	"nettoria/backend/internal/server"
	"nettoria/backend/internal/server/middleware"
	"nettoria/backend/internal/telemetry"
	otelsetup "nettoria/backend/internal/telemetry/otel"
	"nettoria/backend/internal/telemetry/producer"
	userrepo "nettoria/backend/internal/user/repository"
	userservice "nettoria/backend/internal/user/service"
	vrepo "nettoria/backend/internal/verification/repository"
	vservice "nettoria/backend/internal/verification/service"
)

const shutdownTimeout = 10 * time.Second

// stores groups the persistence backends chosen at startup.
type stores struct {
	db     *sql.DB
	users  userrepo.Repository
	codes  vrepo.CodeRepository
	tokens vrepo.TokenRepository
	audit  auditrepo.Repository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	providers, err := otelsetup.NewProviders(ctx, otelsetup.Options{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.OTELServiceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTELInsecure,
	})
	if err != nil {
		logger.Fatal("telemetry", zap.Error(err))
	}
	providers.SetGlobal()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	if st.db != nil {
		defer st.db.Close()
	}

	tokens, err := newTokenProvider(cfg, logger)
	if err != nil {
		logger.Fatal("jwt keys", zap.Error(err))
	}

	var devStore devotp.Store
	var sender notify.Sender
	if cfg.OTPReturnToClient {
		mem := devotp.NewMemoryStore()
		devStore = mem
		sender = devotp.NewSender(mem)
	} else {
		sender = newDispatcher(cfg, logger)
	}

	kafkaProducer := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.AuditKafkaTopic)
	emitters := telemetry.Multi{otelsetup.NewEventEmitter(providers.LoggerProvider)}
	if kafkaProducer != nil {
		emitters = append(emitters, kafkaProducer)
		logger.Info("audit events published to kafka", zap.Strings("brokers", cfg.KafkaBrokersList()), zap.String("topic", cfg.AuditKafkaTopic))
	}
	auditLogger := audit.NewLogger(st.audit, middleware.ClientIP, emitters, logger)

	policy, err := engine.NewOPAEvaluator(ctx)
	if err != nil {
		logger.Fatal("policy engine", zap.Error(err))
	}

	verifier := vservice.NewService(st.users, st.codes, st.tokens, sender, mfa.CryptoGenerator{}, auditLogger, logger, vservice.Config{
		CodeTTL:        cfg.CodeTTL(),
		ResendInterval: cfg.ResendInterval(),
		MaxAttempts:    cfg.OTPMaxAttempts,
		LoginTokenTTL:  cfg.LoginTokenLifetime(),
		TOTPIssuer:     cfg.TOTPIssuer,
	})
	hasher := security.NewHasher(cfg.BcryptCost)
	authService := identityservice.NewAuthService(st.users, verifier, sender, hasher, tokens, auditLogger, logger, cfg.LoginLinkBaseURL)

	limiter, redisClient := newLimiter(cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	checks := []healthhandler.Check{{Name: "policy", Probe: policy.HealthCheck}}
	if st.db != nil {
		checks = append(checks, healthhandler.Check{Name: "database", Probe: st.db.PingContext})
	}

	app := server.NewApp(server.Deps{
		Logger:         logger,
		Tokens:         tokens,
		Auth:           authService,
		TwoFactor:      verifier,
		Users:          userservice.NewService(st.users, auditLogger),
		AuditRepo:      st.audit,
		Policy:         policy,
		HealthChecks:   checks,
		Limiter:        limiter,
		DevOTPStore:    devStore,
		CORSOrigins:    cfg.CORSOrigins(),
		ProxyHeader:    cfg.ProxyHeader,
		TracerProvider: providers.TracerProvider,
		MeterProvider:  providers.MeterProvider,
	})

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr), zap.String("env", cfg.Env))
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down http server")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	time.Sleep(telemetry.ShutdownDrainDuration)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := kafkaProducer.Close(); err != nil {
		logger.Warn("kafka close", zap.Error(err))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown", zap.Error(err))
	}
	logger.Info("http server stopped")
}

// openStores connects to Postgres when DATABASE_URL is set and falls back to
// in-memory stores otherwise. Config.Load refuses the fallback in production.
func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set; using in-memory stores")
		users := userrepo.NewMemoryRepository()
		codes := vrepo.NewMemoryRepository(users)
		return &stores{
			users:  users,
			codes:  codes,
			tokens: codes,
			audit:  auditrepo.NewMemoryRepository(),
		}, nil
	}
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, err := db.Open(openCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	codes := vrepo.NewPostgresRepository(conn)
	return &stores{
		db:     conn,
		users:  userrepo.NewPostgresRepository(conn),
		codes:  codes,
		tokens: codes,
		audit:  auditrepo.NewPostgresRepository(conn),
	}, nil
}

// newTokenProvider loads the configured key pair, or generates an ephemeral
// ECDSA key outside production. Sessions signed with an ephemeral key do not
// survive a restart.
func newTokenProvider(cfg *config.Config, logger *zap.Logger) (*security.TokenProvider, error) {
	var (
		key *security.SigningKey
		err error
	)
	if cfg.JWTPrivateKey == "" {
		logger.Warn("JWT keys not configured; using an ephemeral signing key")
		key, err = security.NewEphemeralSigningKey()
	} else {
		key, err = security.LoadSigningKey(cfg.JWTPrivateKey, cfg.JWTPublicKey)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("session tokens", zap.String("alg", key.Alg()), zap.Duration("ttl", cfg.SessionTTL()))
	return security.NewTokenProvider(key, cfg.JWTIssuer, cfg.JWTAudience, cfg.SessionTTL()), nil
}

// newDispatcher registers SMS Local for codes sent by SMS and Brevo for email.
// A channel without credentials has no sender and its deliveries fail.
func newDispatcher(cfg *config.Config, logger *zap.Logger) *notify.Dispatcher {
	d := notify.NewDispatcher(logger, cfg.NotifyTimeoutDuration(), notify.BreakerConfig{
		MaxFailures: uint32(max(cfg.BreakerMaxFailures, 0)),
		OpenTimeout: cfg.BreakerTimeout(),
	})
	if cfg.SMSLocalAPIKey != "" {
		d.Register(notify.ChannelSMS, notify.SMSSender{
			Texter: sms.NewClient(cfg.SMSLocalAPIKey, cfg.SMSLocalBaseURL, cfg.SMSLocalSender),
		})
	} else {
		logger.Warn("SMS_LOCAL_API_KEY not set; SMS delivery disabled")
	}
	brevo := email.NewBrevoClient(cfg.BrevoAPIKey, cfg.BrevoBaseURL, cfg.BrevoSenderEmail, cfg.BrevoSenderName)
	if brevo.Configured() {
		d.Register(notify.ChannelEmail, notify.EmailSender{Mailer: brevo})
	} else {
		logger.Warn("Brevo not configured; email delivery disabled")
	}
	return d
}

// newLimiter returns the shared Redis limiter when REDIS_ADDR is set and the
// per-process limiter otherwise. A zero rate disables limiting.
func newLimiter(cfg *config.Config, logger *zap.Logger) (middleware.Limiter, *redis.Client) {
	if cfg.RateLimitPerMinute == 0 {
		return nil, nil
	}
	if cfg.RedisAddr == "" {
		return middleware.NewLocalLimiter(cfg.RateLimitPerMinute), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	logger.Info("rate limiter backed by redis", zap.String("addr", cfg.RedisAddr))
	return middleware.NewRedisLimiter(client, "nettoria:ratelimit", cfg.RateLimitPerMinute, time.Minute), client
}
