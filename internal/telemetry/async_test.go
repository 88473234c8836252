package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	auditdomain "nettoria/backend/internal/audit/domain"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*auditdomain.AuditLog
	emitErr error
	done    chan struct{}
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *auditdomain.AuditLog) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.done != nil {
		close(m.done)
	}
	return m.emitErr
}

func (m *mockEventEmitter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func TestEmitAsync_NilEmitter(t *testing.T) {
	// Should not panic
	EmitAsync(nil, nil, &auditdomain.AuditLog{Action: "register"})
}

func TestEmitAsync_NilEvent(t *testing.T) {
	m := &mockEventEmitter{}
	EmitAsync(nil, m, nil)
	time.Sleep(20 * time.Millisecond)
	if m.count() != 0 {
		t.Errorf("events = %d, want 0", m.count())
	}
}

func TestEmitAsync_Delivers(t *testing.T) {
	m := &mockEventEmitter{done: make(chan struct{}), emitErr: errors.New("broker down")}
	EmitAsync(nil, m, &auditdomain.AuditLog{Action: "login_success"})
	select {
	case <-m.done:
	case <-time.After(2 * time.Second):
		t.Fatal("emit not called")
	}
	if m.count() != 1 {
		t.Errorf("events = %d, want 1", m.count())
	}
}

func TestMulti_EmitsToAllAndReturnsFirstError(t *testing.T) {
	a := &mockEventEmitter{emitErr: errors.New("a failed")}
	b := &mockEventEmitter{}
	err := Multi{a, nil, b}.Emit(context.Background(), &auditdomain.AuditLog{Action: "register"})
	if err == nil || err.Error() != "a failed" {
		t.Errorf("err = %v, want a failed", err)
	}
	if a.count() != 1 || b.count() != 1 {
		t.Errorf("counts = %d, %d", a.count(), b.count())
	}
}
