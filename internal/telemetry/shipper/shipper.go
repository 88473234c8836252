// Package shipper forwards audit events from the Kafka audit topic to Loki.
package shipper

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const pushTimeout = 10 * time.Second

// Delay between failed reads, doubling up to readBackoffMax and reset by the next message.
var (
	readBackoffMin = 100 * time.Millisecond
	readBackoffMax = 5 * time.Second
)

// MessageReader is the consumer side of kafka-go used by Run.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Pusher delivers one raw audit event.
type Pusher interface {
	PushAuditJSON(ctx context.Context, raw []byte) error
}

// NewReader returns a consumer-group reader for topic.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})
}

// Run reads until ctx is cancelled and pushes every message. Read and push
// failures are logged and skipped, with a growing pause after each failed
// read; Run returns nil on cancellation.
func Run(ctx context.Context, reader MessageReader, pusher Pusher, logger *zap.Logger) error {
	backoff := readBackoffMin
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("shipper: kafka read failed", zap.Duration("retry_in", backoff), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(2*backoff, readBackoffMax)
			continue
		}
		backoff = readBackoffMin
		pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
		if err := pusher.PushAuditJSON(pushCtx, msg.Value); err != nil {
			logger.Warn("shipper: loki push failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
		cancel()
	}
}
