// Package jwttest mints RS256 tokens for tests.
package jwttest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/civic-alerts/internal/config"
	jwtinfra "github.com/civic-alerts/internal/infrastructure/jwt"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// Issuer pairs a verify-only Provider with the private key that signs for it.
type Issuer struct {
	*jwtinfra.Provider
	// Config points JWTPublicKeyPath at the issuer's public key.
	Config *config.Config
	key    *rsa.PrivateKey
}

const expiry = time.Hour

// New generates a key pair, writes the public half to a temp dir and loads a
// Provider from it.
func New(t testing.TB) *Issuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPath := filepath.Join(t.TempDir(), "public.pem")
	require.NoError(t, os.WriteFile(pubPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes}), 0600))

	cfg := &config.Config{JWTPublicKeyPath: pubPath}
	p, err := jwtinfra.NewProvider(cfg)
	require.NoError(t, err)
	return &Issuer{Provider: p, Config: cfg, key: key}
}

// Sign mints a token for the identity, valid for an hour.
func (i *Issuer) Sign(userID, email, role string) (string, error) {
	now := time.Now()
	return i.SignClaims(jwtinfra.Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
}

// SignClaims signs arbitrary claims with the issuer's key.
func (i *Issuer) SignClaims(claims jwtinfra.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(i.key)
}
