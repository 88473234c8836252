package mfa

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
)

const (
	// CodeDigits is the length of numeric verification codes.
	CodeDigits = 6
	// TokenBytes is the entropy of one-time login tokens (64 hex characters).
	TokenBytes = 32

	maxCodeDigits = 18
)

// ErrInvalidLength is returned for a non-positive or oversized length.
var ErrInvalidLength = errors.New("mfa: invalid length")

// Generator produces verification codes and opaque tokens. Tests pin outputs
// by supplying their own implementation.
type Generator interface {
	NumericCode(length int) (string, error)
	OpaqueToken(byteLength int) (string, error)
}

// CryptoGenerator draws from crypto/rand.
type CryptoGenerator struct{}

func (CryptoGenerator) NumericCode(length int) (string, error) { return GenerateNumericCode(length) }

func (CryptoGenerator) OpaqueToken(byteLength int) (string, error) {
	return GenerateOpaqueToken(byteLength)
}

// GenerateNumericCode returns a uniformly distributed decimal code of exactly
// length digits (leading zeros kept).
func GenerateNumericCode(length int) (string, error) {
	if length <= 0 || length > maxCodeDigits {
		return "", ErrInvalidLength
	}
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("mfa: random source: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}

// GenerateOpaqueToken returns byteLength random bytes hex-encoded.
func GenerateOpaqueToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", ErrInvalidLength
	}
	b := make([]byte, byteLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("mfa: random source: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashCode returns the hex SHA-256 of the exact code string.
func HashCode(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

// CodeEqual compares the hash of provided against storedHash in constant time.
func CodeEqual(provided, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashCode(provided)), []byte(storedHash)) == 1
}
