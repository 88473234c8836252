package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func rsaPEM(t *testing.T) (private, public string) {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	pub, err := x509.MarshalPKIXPublicKey(&k.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(k)})),
		string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub}))
}

func ecPEM(t *testing.T) string {
	t.Helper()
	k, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("ecdsa.GenerateKey: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(k)
	if err != nil {
		t.Fatalf("MarshalPKCS8PrivateKey: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
}

func TestLoadSigningKey_RSAInline(t *testing.T) {
	priv, pub := rsaPEM(t)
	k, err := LoadSigningKey(priv, pub)
	if err != nil {
		t.Fatalf("LoadSigningKey: %v", err)
	}
	if k.Alg() != "RS256" || k.Ephemeral {
		t.Errorf("alg=%q ephemeral=%v", k.Alg(), k.Ephemeral)
	}
}

func TestLoadSigningKey_EscapedNewlines(t *testing.T) {
	priv, pub := rsaPEM(t)
	escape := func(s string) string { return strings.ReplaceAll(s, "\n", `\n`) }
	if _, err := LoadSigningKey(escape(priv), escape(pub)); err != nil {
		t.Fatalf("LoadSigningKey(escaped): %v", err)
	}
}

func TestLoadSigningKey_FileAndDerivedPublic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.pem")
	if err := os.WriteFile(path, []byte(ecPEM(t)), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	k, err := LoadSigningKey(path, "")
	if err != nil {
		t.Fatalf("LoadSigningKey(path): %v", err)
	}
	if k.Alg() != "ES256" {
		t.Errorf("Alg = %q, want ES256", k.Alg())
	}

	p := NewTokenProvider(k, "iss", "aud", time.Minute)
	token, _, err := p.IssueSession("u1", "user")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	if _, err := p.ValidateSession(token); err != nil {
		t.Errorf("ValidateSession with derived public key: %v", err)
	}
}

func TestLoadSigningKey_Invalid(t *testing.T) {
	priv, _ := rsaPEM(t)
	cases := map[string][2]string{
		"empty":             {"  ", ""},
		"garbage":           {"-----BEGIN NOTHING-----", ""},
		"private as public": {priv, priv},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadSigningKey(c[0], c[1]); !errors.Is(err, ErrInvalidKey) {
				t.Errorf("want ErrInvalidKey, got %v", err)
			}
		})
	}
	if _, err := LoadSigningKey(filepath.Join(t.TempDir(), "missing.pem"), ""); err == nil {
		t.Error("missing file should fail")
	}
}

func TestNewEphemeralSigningKey(t *testing.T) {
	k, err := NewEphemeralSigningKey()
	if err != nil {
		t.Fatalf("NewEphemeralSigningKey: %v", err)
	}
	if k.Alg() != "ES256" || !k.Ephemeral {
		t.Errorf("alg=%q ephemeral=%v", k.Alg(), k.Ephemeral)
	}
}
