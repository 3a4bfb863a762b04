package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func generateTestKeypair(t *testing.T) (privPEM, pubPEM []byte) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privBytes := x509.MarshalPKCS1PrivateKey(key)
	privPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: privBytes})

	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})

	return privPEM, pubPEM
}

func TestIssueAndVerify(t *testing.T) {
	priv, pub := generateTestKeypair(t)
	issuer, err := NewTokenIssuer(priv, pub, 365)
	require.NoError(t, err)

	token, err := issuer.Issue("acct-1", "device-1")
	require.NoError(t, err)

	claims, err := issuer.Verify("acct-1", "device-1", token)
	require.NoError(t, err)
	require.Equal(t, "acct-1", claims.Account)
}

func TestVerifyDeviceMismatch(t *testing.T) {
	priv, pub := generateTestKeypair(t)
	issuer, err := NewTokenIssuer(priv, pub, 365)
	require.NoError(t, err)

	token, err := issuer.Issue("acct-1", "device-1")
	require.NoError(t, err)

	_, err = issuer.Verify("acct-1", "device-2", token)
	require.ErrorIs(t, err, ErrDeviceMismatch)
}

func TestVerifySysAccountBypassesDeviceCheck(t *testing.T) {
	priv, pub := generateTestKeypair(t)
	issuer, err := NewTokenIssuer(priv, pub, 365)
	require.NoError(t, err)

	token, err := issuer.Issue(SysAccount, "device-orig")
	require.NoError(t, err)

	claims, err := issuer.Verify(SysAccount, "device-other", token)
	require.NoError(t, err)
	require.Equal(t, SysAccount, claims.Account)
}

func TestVerifyAccountMismatch(t *testing.T) {
	priv, pub := generateTestKeypair(t)
	issuer, err := NewTokenIssuer(priv, pub, 365)
	require.NoError(t, err)

	token, err := issuer.Issue("acct-1", "device-1")
	require.NoError(t, err)

	_, err = issuer.Verify("acct-2", "device-1", token)
	require.ErrorIs(t, err, ErrAccountMismatch)
}

func TestVerifyExpiredToken(t *testing.T) {
	priv, pub := generateTestKeypair(t)
	issuer, err := NewTokenIssuer(priv, pub, 0)
	require.NoError(t, err)
	issuer.validFor = -2 * time.Hour // force already-expired, beyond the 1h leeway

	token, err := issuer.Issue("acct-1", "device-1")
	require.NoError(t, err)

	_, err = issuer.Verify("acct-1", "device-1", token)
	require.Error(t, err)
}
