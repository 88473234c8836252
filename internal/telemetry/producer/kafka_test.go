package producer

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	auditdomain "nettoria/backend/internal/audit/domain"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewKafkaProducer_Disabled(t *testing.T) {
	if p := NewKafkaProducer(nil, "topic"); p != nil {
		t.Error("expected nil producer without brokers")
	}
	if p := NewKafkaProducer([]string{"localhost:9092"}, ""); p != nil {
		t.Error("expected nil producer without topic")
	}
	var p *KafkaProducer
	if err := p.Emit(context.Background(), &auditdomain.AuditLog{}); err != nil {
		t.Errorf("nil producer Emit: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("nil producer Close: %v", err)
	}
}

func TestKafkaProducer_Emit(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w, topic: "nettoria-audit"}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	err := p.Emit(context.Background(), &auditdomain.AuditLog{
		ID: "a-1", UserID: "u-1", Action: auditdomain.ActionLoginSuccess, IP: "10.0.0.1", CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "u-1" {
		t.Errorf("key = %q, want u-1", msg.Key)
	}
	var got map[string]any
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got["action"] != "login_success" || got["ip"] != "10.0.0.1" {
		t.Errorf("payload = %v", got)
	}
	if _, ok := got["metadata"]; ok {
		t.Error("empty metadata should be omitted")
	}

	_ = p.Close()
	if !w.closed {
		t.Error("writer not closed")
	}
}
