package security

import (
	"sync"
	"time"
)

var (
	testKeyOnce sync.Once
	testKey     *SigningKey
	testKeyErr  error
)

// NewTestTokenProvider returns a TokenProvider with issuer "test-issuer" and audience
// "test-audience". All providers in one test binary share a generated key. Tests only.
func NewTestTokenProvider() (*TokenProvider, error) {
	testKeyOnce.Do(func() { testKey, testKeyErr = NewEphemeralSigningKey() })
	if testKeyErr != nil {
		return nil, testKeyErr
	}
	return NewTokenProvider(testKey, "test-issuer", "test-audience", time.Hour), nil
}
