package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("api-key", "", "")
	if c.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want default", c.baseURL)
	}
	if c.httpClient.Timeout != defaultTimeout {
		t.Errorf("timeout = %v, want %v", c.httpClient.Timeout, defaultTimeout)
	}
}

func TestSendOTP_Payload(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if r.Header.Get("Authorization") != "test-api-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"return":true,"message":["sent"]}`))
	}))
	defer srv.Close()

	if err := NewClient("test-api-key", srv.URL, "NETTRA").SendOTP(context.Background(), "+989121234567", "012345"); err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	want := map[string]string{"route": "otp", "numbers": "989121234567", "variables": "012345", "sender_id": "NETTRA"}
	for k, v := range want {
		if body[k] != v {
			t.Errorf("%s = %v, want %s", k, body[k], v)
		}
	}
}

func TestSendOTP_NotConfigured(t *testing.T) {
	if err := NewClient("", "", "").SendOTP(context.Background(), "+15550100", "123456"); err != ErrNotConfigured {
		t.Fatalf("want ErrNotConfigured, got %v", err)
	}
}

func TestSendOTP_Failures(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"http status", http.StatusBadRequest, `{"error":"invalid request"}`, "status=400"},
		{"provider rejection", http.StatusOK, `{"return":false,"message":"Invalid Numbers"}`, "Invalid Numbers"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()
			err := NewClient("api-key", srv.URL, "").SendOTP(context.Background(), "+15550100", "123456")
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestSendOTP_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := NewClient("api-key", srv.URL, "").SendOTP(ctx, "+15550100", "123456"); err == nil {
		t.Fatal("expected error when the deadline passes")
	}
}
