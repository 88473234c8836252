// auditshipper consumes audit events from Kafka and pushes them to Loki.
// Requires KAFKA_BROKERS and LOKI_URL; AUDIT_KAFKA_TOPIC and KAFKA_GROUP_ID have defaults.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"nettoria/backend/internal/config"
	"nettoria/backend/internal/platform/logging"
	"nettoria/backend/internal/telemetry/loki"
	"nettoria/backend/internal/telemetry/shipper"
)

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

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		logger.Fatal("auditshipper: KAFKA_BROKERS is required")
	}
	if cfg.LokiURL == "" {
		logger.Fatal("auditshipper: LOKI_URL is required")
	}

	reader := shipper.NewReader(brokers, cfg.AuditKafkaTopic, cfg.KafkaGroupID)
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("auditshipper: consuming",
		zap.String("topic", cfg.AuditKafkaTopic),
		zap.String("group", cfg.KafkaGroupID),
		zap.String("loki", cfg.LokiURL),
	)
	if err := shipper.Run(ctx, reader, loki.NewClient(cfg.LokiURL, cfg.OTELServiceName), logger); err != nil {
		logger.Error("auditshipper", zap.Error(err))
	}
	logger.Info("auditshipper: stopped")
}
