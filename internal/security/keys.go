package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidKey is returned for unreadable PEM or unsupported key types.
var ErrInvalidKey = errors.New("invalid key")

// SigningKey is the key pair that signs and verifies session tokens.
type SigningKey struct {
	Signer crypto.Signer
	Public crypto.PublicKey
	// Ephemeral keys exist only in memory; tokens signed with them die with the process.
	Ephemeral bool
}

// LoadSigningKey reads the private key and, when publicKey is set, the public key.
// Each key is inline PEM (escaped "\n" allowed, as in .env files) or a file path.
// An empty publicKey derives the public key from the private one.
func LoadSigningKey(privateKey, publicKey string) (*SigningKey, error) {
	privBlock, err := readPEMBlock(privateKey)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	signer, err := parseSigner(privBlock)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	key := &SigningKey{Signer: signer, Public: signer.Public()}
	if strings.TrimSpace(publicKey) != "" {
		pubBlock, err := readPEMBlock(publicKey)
		if err != nil {
			return nil, fmt.Errorf("public key: %w", err)
		}
		if key.Public, err = parsePublic(pubBlock); err != nil {
			return nil, fmt.Errorf("public key: %w", err)
		}
	}
	if key.method() == nil {
		return nil, ErrInvalidKey
	}
	return key, nil
}

// NewEphemeralSigningKey generates a P-256 key held only in memory.
func NewEphemeralSigningKey() (*SigningKey, error) {
	k, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &SigningKey{Signer: k, Public: k.Public(), Ephemeral: true}, nil
}

// Alg is the JWT algorithm name for the key, or "" when unsupported.
func (k *SigningKey) Alg() string {
	if m := k.method(); m != nil {
		return m.Alg()
	}
	return ""
}

func (k *SigningKey) method() jwt.SigningMethod {
	switch k.Signer.Public().(type) {
	case *rsa.PublicKey:
		return jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		return jwt.SigningMethodES256
	}
	return nil
}

func readPEMBlock(src string) (*pem.Block, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, ErrInvalidKey
	}
	var raw []byte
	if strings.HasPrefix(src, "-----BEGIN") {
		raw = []byte(strings.ReplaceAll(src, `\n`, "\n"))
	} else {
		b, err := os.ReadFile(src)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, ErrInvalidKey
	}
	return block, nil
}

func parseSigner(block *pem.Block) (crypto.Signer, error) {
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		if signer, ok := key.(crypto.Signer); ok {
			return signer, nil
		}
	}
	return nil, ErrInvalidKey
}

func parsePublic(block *pem.Block) (crypto.PublicKey, error) {
	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "PUBLIC KEY":
		return x509.ParsePKIXPublicKey(block.Bytes)
	}
	return nil, ErrInvalidKey
}
