package devotp

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"nettoria/backend/internal/notify"
)

func TestMemoryStore_PutGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Put(ctx, "+15550100", Entry{Secret: "123456", ExpiresAt: time.Now().UTC().Add(5 * time.Minute)})

	e, ok := store.Get(ctx, "+15550100")
	if !ok {
		t.Fatal("Get should return entry after Put")
	}
	if e.Secret != "123456" {
		t.Errorf("secret = %q, want %q", e.Secret, "123456")
	}
}

func TestMemoryStore_Get_Missing(t *testing.T) {
	store := NewMemoryStore()
	if _, ok := store.Get(context.Background(), "nobody"); ok {
		t.Error("Get should return false when missing")
	}
}

func TestMemoryStore_Get_ExpiredIsRemoved(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.Put(ctx, "a@example.com", Entry{Secret: "1", ExpiresAt: time.Now().UTC().Add(-time.Minute)})

	if _, ok := store.Get(ctx, "a@example.com"); ok {
		t.Error("expired entry should not be returned")
	}
	store.mu.RLock()
	_, present := store.m["a@example.com"]
	store.mu.RUnlock()
	if present {
		t.Error("expired entry should be deleted")
	}
}

func TestMemoryStore_Overwrite(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	exp := time.Now().UTC().Add(time.Minute)
	store.Put(ctx, "t", Entry{Secret: "111111", ExpiresAt: exp})
	store.Put(ctx, "t", Entry{Secret: "222222", ExpiresAt: exp})
	e, _ := store.Get(ctx, "t")
	if e.Secret != "222222" {
		t.Errorf("secret = %q, want latest", e.Secret)
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	exp := time.Now().UTC().Add(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("t-%d", i%5)
			store.Put(ctx, key, Entry{Secret: "x", ExpiresAt: exp})
			store.Get(ctx, key)
		}(i)
	}
	wg.Wait()
}

func TestSender_CapturesMessage(t *testing.T) {
	store := NewMemoryStore()
	s := NewSender(store)
	err := s.Send(context.Background(), notify.Message{
		Channel: notify.ChannelSMS,
		To:      "+15550100",
		Secret:  "654321",
		Body:    "Your Nettoria code is 654321",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	e, ok := store.Get(context.Background(), "+15550100")
	if !ok || e.Secret != "654321" || e.Channel != notify.ChannelSMS {
		t.Errorf("captured entry = %+v ok=%v", e, ok)
	}
}
