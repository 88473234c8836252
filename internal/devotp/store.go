// Package devotp keeps delivered secrets in memory for dev OTP mode (OTP_RETURN_TO_CLIENT),
// replacing real SMS and email delivery so flows can be exercised locally via GET /dev/otp.
package devotp

import (
	"context"
	"sync"
	"time"

	"nettoria/backend/internal/notify"
)

// DefaultRetention is how long a captured secret stays readable.
const DefaultRetention = 10 * time.Minute

// Entry is the last secret delivered to a target.
type Entry struct {
	Channel   notify.Channel
	Secret    string
	Body      string
	ExpiresAt time.Time
}

// Store holds the latest secret per target. Not used in production.
type Store interface {
	Put(ctx context.Context, target string, e Entry)
	// Get returns the entry for target if present and not expired.
	Get(ctx context.Context, target string) (Entry, bool)
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]Entry
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory dev store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]Entry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Put(ctx context.Context, target string, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[target] = e
}

func (s *MemoryStore) Get(ctx context.Context, target string) (Entry, bool) {
	s.mu.RLock()
	e, ok := s.m[target]
	s.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}
	if !e.ExpiresAt.After(s.nowF()) {
		s.mu.Lock()
		delete(s.m, target)
		s.mu.Unlock()
		return Entry{}, false
	}
	return e, true
}

// Sender is a notify.Sender that captures messages instead of delivering them.
type Sender struct {
	store     Store
	retention time.Duration
	nowF      func() time.Time
}

// NewSender returns a Sender writing into store.
func NewSender(store Store) *Sender {
	return &Sender{store: store, retention: DefaultRetention, nowF: time.Now}
}

// Send records msg for msg.To. Never fails.
func (s *Sender) Send(ctx context.Context, msg notify.Message) error {
	s.store.Put(ctx, msg.To, Entry{
		Channel:   msg.Channel,
		Secret:    msg.Secret,
		Body:      msg.Body,
		ExpiresAt: s.nowF().UTC().Add(s.retention),
	})
	return nil
}
