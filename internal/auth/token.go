// Package auth issues and verifies the static-keypair RS256 session tokens
// used by the gateway, and carries the account+device_id binding check.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SysAccount is the privileged account id exempted from device-binding checks,
// used by internal tooling and operational scripts.
const SysAccount = "ums-admin"

var (
	// ErrDeviceMismatch is returned when a token's device_id claim does not
	// match the device presenting it, and the caller is not the system account.
	ErrDeviceMismatch = errors.New("auth: device_id does not match token")
	// ErrAccountMismatch is returned when a token's account claim does not match
	// the account the caller claims to be.
	ErrAccountMismatch = errors.New("auth: account does not match token")
)

// Claims is the JWT payload issued by the gateway.
type Claims struct {
	Account  string `json:"account"`
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies session tokens with a static RSA keypair.
type TokenIssuer struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	validFor   time.Duration
	leeway     time.Duration
}

// NewTokenIssuer builds a TokenIssuer from a PEM-encoded RSA keypair.
func NewTokenIssuer(privatePEM, publicPEM []byte, validForDays int) (*TokenIssuer, error) {
	priv, err := jwt.ParseRSAPrivateKeyFromPEM(privatePEM)
	if err != nil {
		return nil, fmt.Errorf("auth: parse private key: %w", err)
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(publicPEM)
	if err != nil {
		return nil, fmt.Errorf("auth: parse public key: %w", err)
	}

	return &TokenIssuer{
		privateKey: priv,
		publicKey:  pub,
		validFor:   time.Duration(validForDays) * 24 * time.Hour,
		leeway:     time.Hour,
	}, nil
}

// Issue mints a signed access token for the given account and device.
func (t *TokenIssuer) Issue(account, deviceID string) (string, error) {
	claims := Claims{
		Account:  account,
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(t.validFor)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(t.privateKey)
}

// Verify checks that tokenString is a validly signed, unexpired token whose
// account and device_id claims match the presented account and deviceID. The
// system account bypasses the device-binding check, since its tooling is not
// tied to a single physical device.
func (t *TokenIssuer) Verify(account, deviceID, tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (interface{}, error) {
		return t.publicKey, nil
	}, jwt.WithLeeway(t.leeway), jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		return nil, fmt.Errorf("auth: parse token: %w", err)
	}

	if claims.Account != account {
		return nil, ErrAccountMismatch
	}
	if account != SysAccount && claims.DeviceID != deviceID {
		return nil, ErrDeviceMismatch
	}

	return claims, nil
}
