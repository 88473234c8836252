package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired, or signed by another key.
	ErrInvalidToken = errors.New("invalid token")
)

// SessionClaims are the claims carried by a session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// UserID returns the subject.
func (c *SessionClaims) UserID() string { return c.Subject }

// TokenProvider issues and validates stateless session JWTs (RS256 or ES256, by key type).
type TokenProvider struct {
	key        *SigningKey
	issuer     string
	audience   string
	sessionTTL time.Duration
	now        func() time.Time
}

// NewTokenProvider returns a TokenProvider signing with key.
// issuer and audience are set on claims and checked on validation.
func NewTokenProvider(key *SigningKey, issuer, audience string, sessionTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		key:        key,
		issuer:     issuer,
		audience:   audience,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// IssueSession signs a session token for userID with role. Returns the token and its expiry.
func (p *TokenProvider) IssueSession(userID, role string) (token string, expiresAt time.Time, err error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := p.now().UTC()
	expiresAt = now.Add(p.sessionTTL)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role: role,
	}
	token, err = p.sign(claims)
	return token, expiresAt, err
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	method := p.key.method()
	if method == nil {
		return "", ErrInvalidKey
	}
	return jwt.NewWithClaims(method, claims).SignedString(p.key.Signer)
}

// ValidateSession parses and validates a session token (signature, exp, iss, aud).
func (p *TokenProvider) ValidateSession(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != p.key.Alg() {
			return nil, ErrInvalidToken
		}
		return p.key.Public, nil
	}, jwt.WithTimeFunc(p.now))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != p.issuer || !slices.Contains([]string(claims.Audience), p.audience) {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
