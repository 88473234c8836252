// Package sms delivers one-time codes through the SMS Local OTP route.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the SMS Local bulk endpoint.
const DefaultBaseURL = "https://www.smslocal.com/dev/bulkV2"

const defaultTimeout = 15 * time.Second

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("sms: smslocal client not configured")

// Client sends codes via SMS Local.
type Client struct {
	apiKey     string
	baseURL    string
	senderID   string
	httpClient *http.Client
}

// NewClient returns a client; baseURL defaults to DefaultBaseURL and senderID may be empty.
func NewClient(apiKey, baseURL, senderID string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		senderID:   senderID,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

type otpPayload struct {
	Route     string `json:"route"`
	Numbers   string `json:"numbers"`
	Variables string `json:"variables"`
	SenderID  string `json:"sender_id,omitempty"`
}

// reply is the provider's answer; a 200 with "return": false is still a rejection.
type reply struct {
	Return  *bool           `json:"return"`
	Message json.RawMessage `json:"message"`
}

// SendOTP texts code to an E.164 phone number. The leading '+' is dropped for the provider.
func (c *Client) SendOTP(ctx context.Context, phone, code string) error {
	if c.apiKey == "" {
		return ErrNotConfigured
	}
	numbers := strings.TrimPrefix(strings.TrimSpace(phone), "+")
	if numbers == "" || code == "" {
		return errors.New("sms: phone and code are required")
	}
	raw, err := json.Marshal(otpPayload{Route: "otp", Numbers: numbers, Variables: code, SenderID: c.senderID})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms: request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sms: request failed status=%d body=%s", resp.StatusCode, body)
	}
	var r reply
	if json.Unmarshal(body, &r) == nil && r.Return != nil && !*r.Return {
		return fmt.Errorf("sms: rejected by provider: %s", r.Message)
	}
	return nil
}
