package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amazingchow/game-companion-gateway/internal/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestIssuer(t *testing.T) *auth.TokenIssuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})

	issuer, err := auth.NewTokenIssuer(privPEM, pubPEM, 365)
	require.NoError(t, err)
	return issuer
}

func runMiddleware(mw gin.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	mw(c)
	return w
}

func TestTraceIDGeneratesWhenAbsent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := runMiddleware(TraceID(), req)
	assert.NotEmpty(t, w.Header().Get(HeaderTraceID))
}

func TestTraceIDEchoesInbound(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderTraceID, "abc-123")
	w := runMiddleware(TraceID(), req)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderTraceID))
}

func TestAppVersionGateSkipped(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := runMiddleware(AppVersionGate("2.0.0", true), req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestAppVersionGateRejectsStale(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderAppVersion, "1.0.0")
	w := runMiddleware(AppVersionGate("2.0.0", false), req)
	assert.Contains(t, w.Body.String(), "200001")
}

func TestAppVersionGateAcceptsCurrent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderAppVersion, "2.0.0")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	AppVersionGate("2.0.0", false)(c)
	assert.False(t, c.IsAborted())
}

func TestAuthGateMissingCredentials(t *testing.T) {
	issuer := newTestIssuer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := runMiddleware(AuthGate(issuer, func(ctx context.Context, account string) (string, error) {
		return "dev1", nil
	}), req)
	assert.Contains(t, w.Body.String(), "10401")
}

func TestAuthGateValidToken(t *testing.T) {
	issuer := newTestIssuer(t)
	token, err := issuer.Issue("acct1", "dev1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderSecAccount, "acct1")
	req.Header.Set(HeaderSecToken, token)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	AuthGate(issuer, func(ctx context.Context, account string) (string, error) {
		return "dev1", nil
	})(c)

	assert.False(t, c.IsAborted())
	account, _ := c.Get("account")
	assert.Equal(t, "acct1", account)
}

func TestAuthGateDeviceMismatchRejected(t *testing.T) {
	issuer := newTestIssuer(t)
	token, err := issuer.Issue("acct1", "dev1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderSecAccount, "acct1")
	req.Header.Set(HeaderSecToken, token)

	w := runMiddleware(AuthGate(issuer, func(ctx context.Context, account string) (string, error) {
		return "dev2", nil
	}), req)
	assert.Contains(t, w.Body.String(), "10401")
}
