package mfa

import (
	"bytes"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// TOTPPeriod is the step length in seconds.
	TOTPPeriod = 30
	// TOTPSkew is the number of steps accepted either side of the current one.
	TOTPSkew = 1

	qrSize = 256
)

// ErrTOTPSecretMissing is returned when validating against an empty secret.
var ErrTOTPSecretMissing = errors.New("mfa: totp secret missing")

// TOTPEnrollment is what a user needs to add the account to an authenticator app.
type TOTPEnrollment struct {
	Secret     string
	OTPAuthURL string
	// QRCodeDataURL is a PNG data URL rendering OTPAuthURL.
	QRCodeDataURL string
}

var validateOpts = totp.ValidateOpts{
	Period:    TOTPPeriod,
	Skew:      TOTPSkew,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// NewTOTPEnrollment generates a fresh secret for accountName under issuer.
func NewTOTPEnrollment(issuer, accountName string) (*TOTPEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		Period:      TOTPPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("mfa: generate totp key: %w", err)
	}
	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return nil, fmt.Errorf("mfa: render qr: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("mfa: encode qr: %w", err)
	}
	return &TOTPEnrollment{
		Secret:        key.Secret(),
		OTPAuthURL:    key.URL(),
		QRCodeDataURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// ValidateTOTP reports whether code is valid for secret at time at, allowing TOTPSkew steps of drift.
func ValidateTOTP(secret, code string, at time.Time) (bool, error) {
	_, ok, err := MatchTOTP(secret, code, at)
	return ok, err
}

// MatchTOTP is ValidateTOTP that also returns the time step the code belongs
// to, so callers can refuse a step they have already accepted.
func MatchTOTP(secret, code string, at time.Time) (int64, bool, error) {
	if secret == "" {
		return 0, false, ErrTOTPSecretMissing
	}
	code = strings.TrimSpace(code)
	if len(code) != otp.DigitsSix.Length() {
		return 0, false, nil
	}
	current := at.UTC().Unix() / TOTPPeriod
	for d := int64(-TOTPSkew); d <= TOTPSkew; d++ {
		step := current + d
		want, err := totp.GenerateCodeCustom(secret, time.Unix(step*TOTPPeriod, 0).UTC(), validateOpts)
		if err != nil {
			return 0, false, fmt.Errorf("mfa: validate totp: %w", err)
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			return step, true, nil
		}
	}
	return 0, false, nil
}

// TOTPCode returns the code for secret at time at.
func TOTPCode(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at.UTC(), validateOpts)
}
