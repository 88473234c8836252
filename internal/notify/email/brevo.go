// Package email sends transactional email through the Brevo API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultBaseURL is the Brevo transactional email endpoint.
const DefaultBaseURL = "https://api.brevo.com/v3/smtp/email"

const defaultTimeout = 10 * time.Second

// ErrNotConfigured is returned when API key or sender email is missing.
var ErrNotConfigured = errors.New("email: brevo client not configured")

// BrevoClient sends email via Brevo.
type BrevoClient struct {
	APIKey      string
	BaseURL     string
	SenderEmail string
	SenderName  string
	HTTPClient  *http.Client
}

// NewBrevoClient returns a client; baseURL defaults to DefaultBaseURL.
func NewBrevoClient(apiKey, baseURL, senderEmail, senderName string) *BrevoClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &BrevoClient{
		APIKey:      apiKey,
		BaseURL:     baseURL,
		SenderEmail: senderEmail,
		SenderName:  senderName,
		HTTPClient:  &http.Client{Timeout: defaultTimeout},
	}
}

// Configured reports whether the client can send.
func (c *BrevoClient) Configured() bool {
	return c.APIKey != "" && c.SenderEmail != ""
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendRequest struct {
	Sender      address   `json:"sender"`
	To          []address `json:"to"`
	Subject     string    `json:"subject"`
	HTMLContent string    `json:"htmlContent"`
}

// SendEmail sends html to a single recipient.
func (c *BrevoClient) SendEmail(ctx context.Context, to, subject, html string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	if to == "" || subject == "" || html == "" {
		return errors.New("email: recipient, subject and content are required")
	}
	raw, err := json.Marshal(sendRequest{
		Sender:      address{Email: c.SenderEmail, Name: c.SenderName},
		To:          []address{{Email: to}},
		Subject:     subject,
		HTMLContent: html,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("email: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("email: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
