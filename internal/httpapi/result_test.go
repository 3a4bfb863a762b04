package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/amazingchow/game-companion-gateway/internal/bus"
	"github.com/amazingchow/game-companion-gateway/internal/result"
	"github.com/amazingchow/game-companion-gateway/internal/store"
)

type fakeResultStore struct {
	mu      sync.Mutex
	results []store.GameResult
}

func (f *fakeResultStore) InsertGameResult(ctx context.Context, res store.GameResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, res)
	return nil
}

func (f *fakeResultStore) ApplyResultToStats(ctx context.Context, userID, gameIndex string, win bool, now int64) error {
	return nil
}

type fakeResultPublisher struct {
	mu        sync.Mutex
	published []bus.GameResult
}

func (f *fakeResultPublisher) PublishGameResult(ctx context.Context, res bus.GameResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, res)
}

func newTestResultHandler() (*ResultHandler, *fakeResultStore, *fakeResultPublisher) {
	gin.SetMode(gin.TestMode)
	st := &fakeResultStore{}
	pub := &fakeResultPublisher{}
	return NewResultHandler(result.NewIngestor(st, pub), nil), st, pub
}

func TestResultCallbackSuccess(t *testing.T) {
	h, st, pub := newTestResultHandler()
	body := resultBody{AppUserID: "u1", AppRoomID: "r1", AppGameIndex: "1", ResultType: "win"}

	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(string(data)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	h.Callback(c)

	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, CodeOK, resp.Code)
	require.Len(t, st.results, 1)
	require.Len(t, pub.published, 1)
}

func TestResultCallbackMissingIdentifiers(t *testing.T) {
	h, _, _ := newTestResultHandler()
	data, _ := json.Marshal(resultBody{})
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(string(data)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	h.Callback(c)

	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, CodeBadRequest, resp.Code)
}
