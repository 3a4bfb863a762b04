package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

type fakeKafka struct{ healthy bool }

func (f fakeKafka) Healthy() bool { return f.healthy }

func init() {
	gin.SetMode(gin.TestMode)
}

func TestLivenessAlwaysOK(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health/live", nil)

	h.Liveness(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadinessAllHealthy(t *testing.T) {
	h := NewHandler(fakePinger{}, fakePinger{}, fakeKafka{healthy: true})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health/ready", nil)

	h.Readiness(c)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.Status)
}

func TestReadinessUnhealthyDependency(t *testing.T) {
	h := NewHandler(fakePinger{err: assertError{}}, fakePinger{}, fakeKafka{healthy: true})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health/ready", nil)

	h.Readiness(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReadinessNilDependenciesTreatedHealthy(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health/ready", nil)

	h.Readiness(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

type assertError struct{}

func (assertError) Error() string { return "boom" }
