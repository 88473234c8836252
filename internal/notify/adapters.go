package notify

import (
	"context"
	"errors"
)

// OTPTexter sends a numeric code to a phone number.
type OTPTexter interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// Mailer sends an HTML email.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, html string) error
}

// ErrUnsupportedMessage is returned when a provider cannot carry the message.
var ErrUnsupportedMessage = errors.New("notify: message not supported by provider")

// SMSSender delivers the message secret through an OTP SMS route.
type SMSSender struct {
	Texter OTPTexter
}

func (s SMSSender) Send(ctx context.Context, msg Message) error {
	if msg.Secret == "" {
		return ErrUnsupportedMessage
	}
	return s.Texter.SendOTP(ctx, msg.To, msg.Secret)
}

// EmailSender delivers Subject and Body as an HTML email.
type EmailSender struct {
	Mailer Mailer
}

func (s EmailSender) Send(ctx context.Context, msg Message) error {
	return s.Mailer.SendEmail(ctx, msg.To, msg.Subject, msg.Body)
}
