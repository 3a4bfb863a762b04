// Package middleware contains the gateway's Gin middleware: trace
// propagation, the app-version freshness gate, and the bearer-token
// auth gate.
package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/amazingchow/game-companion-gateway/internal/auth"
	"github.com/amazingchow/game-companion-gateway/internal/logging"
)

// Header names per the externally-facing contract.
const (
	HeaderTraceID    = "X-Trace-ID"
	HeaderSecAccount = "x-sec-account"
	HeaderSecToken   = "x-sec-token"
	HeaderAppVersion = "app-version"
)

// Response codes surfaced in the uniform {code, msg, data?} envelope.
const (
	CodeOK              = 0
	CodeUnauthorized    = 10401
	CodeStaleAppVersion = 200001
)

type envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// TraceID attaches an inbound or freshly generated trace id to the request
// context and echoes it on the response.
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(HeaderTraceID)
		if traceID == "" {
			traceID = uuid.New().String()
		}
		c.Header(HeaderTraceID, traceID)
		c.Set(string(logging.TraceIDKey), traceID)
		ctx := context.WithValue(c.Request.Context(), logging.TraceIDKey, traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AppVersionGate rejects requests reporting an app-version below minVersion,
// unless skip is true (SKIP_APP_VERSION_CHECK).
func AppVersionGate(minVersion string, skip bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if skip {
			c.Next()
			return
		}
		version := c.GetHeader(HeaderAppVersion)
		if version == "" || version < minVersion {
			c.AbortWithStatusJSON(http.StatusOK, envelope{Code: CodeStaleAppVersion, Msg: "app version is stale"})
			return
		}
		c.Next()
	}
}

// DeviceResolver resolves the device id bound to an account, the way the
// originating implementation looks it up from cache rather than trusting a
// client-supplied header.
type DeviceResolver func(ctx context.Context, account string) (string, error)

// AuthGate verifies x-sec-account/x-sec-token against issuer, binding the
// resolved account onto the request context for downstream handlers.
func AuthGate(issuer *auth.TokenIssuer, resolveDevice DeviceResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		account := c.GetHeader(HeaderSecAccount)
		token := c.GetHeader(HeaderSecToken)
		if account == "" || token == "" {
			c.AbortWithStatusJSON(http.StatusOK, envelope{Code: CodeUnauthorized, Msg: "missing credentials"})
			return
		}

		deviceID, err := resolveDevice(c.Request.Context(), account)
		if err != nil || deviceID == "" {
			c.AbortWithStatusJSON(http.StatusOK, envelope{Code: CodeUnauthorized, Msg: "unknown device binding"})
			return
		}

		claims, err := issuer.Verify(account, deviceID, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusOK, envelope{Code: CodeUnauthorized, Msg: "invalid token"})
			return
		}

		c.Set("account", claims.Account)
		c.Set("device_id", claims.DeviceID)
		c.Next()
	}
}
