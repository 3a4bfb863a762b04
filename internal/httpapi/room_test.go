package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/amazingchow/game-companion-gateway/internal/bus"
	"github.com/amazingchow/game-companion-gateway/internal/lock"
	"github.com/amazingchow/game-companion-gateway/internal/room"
	"github.com/amazingchow/game-companion-gateway/internal/store"
)

type fakeRoomStore struct {
	rooms map[string]*store.Room
	seats map[string]map[string]store.RoomSeat
}

func (f *fakeRoomStore) Txn(ctx context.Context, fn func(sc mongo.SessionContext) (interface{}, error)) (interface{}, error) {
	return fn(nil)
}

func (f *fakeRoomStore) Sit(_ mongo.SessionContext, roomID, userID string, x, y int) (store.SitResult, error) {
	r, ok := f.rooms[roomID]
	if !ok {
		return store.SitResult{}, store.ErrRoomNotFound
	}
	if f.seats[roomID] == nil {
		f.seats[roomID] = map[string]store.RoomSeat{}
	}
	for uid, s := range f.seats[roomID] {
		if uid != userID && s.InGameQueue && s.AtX == x && s.AtY == y {
			return store.SitResult{Occupied: true}, nil
		}
	}
	if r.InGameQueueUserCnt >= r.CarryingCapacity {
		return store.SitResult{Full: true}, nil
	}
	f.seats[roomID][userID] = store.RoomSeat{InGameQueue: true, AtX: x, AtY: y}
	r.InGameQueueUserCnt++
	return store.SitResult{Can: true}, nil
}

func (f *fakeRoomStore) Stand(_ mongo.SessionContext, roomID, userID string, forced bool) (store.StandResult, error) {
	return store.StandResult{Can: true}, nil
}
func (f *fakeRoomStore) Ready(_ mongo.SessionContext, roomID, userID string, want bool) (store.ReadyResult, error) {
	return store.ReadyResult{Can: true}, nil
}
func (f *fakeRoomStore) Battle(_ mongo.SessionContext, roomID, userID string, want bool) (store.BattleResult, error) {
	return store.BattleResult{Filtered: true}, nil
}
func (f *fakeRoomStore) Presence(_ mongo.SessionContext, roomID, userID string, online bool) (store.RoomMeta, error) {
	return store.RoomMeta{}, nil
}
func (f *fakeRoomStore) GetRoom(ctx context.Context, roomID string, fast bool) (*store.RoomDetail, error) {
	r, ok := f.rooms[roomID]
	if !ok {
		return nil, store.ErrRoomNotFound
	}
	return &store.RoomDetail{Room: *r}, nil
}
func (f *fakeRoomStore) ListRooms(ctx context.Context, gameIndex string, offset, limit int64, fast bool) ([]store.RoomDetail, error) {
	var out []store.RoomDetail
	for _, r := range f.rooms {
		out = append(out, store.RoomDetail{Room: *r})
	}
	return out, nil
}

type fakePublisher struct{}

func (fakePublisher) PublishRoomEvent(ctx context.Context, ev bus.RoomEvent) {}

func newTestRoomHandler(t *testing.T) *RoomHandler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	fs := &fakeRoomStore{rooms: map[string]*store.Room{
		"r1": {ID: "r1", CarryingCapacity: 2, QueueSymbol: "X,X"},
	}, seats: map[string]map[string]store.RoomSeat{}}

	engine := room.NewEngine(fs, lock.New(client), fakePublisher{})
	return NewRoomHandler(engine, nil)
}

func doJSON(engine gin.HandlerFunc, body any, account string) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/x", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	if account != "" {
		c.Set("account", account)
	}
	engine(c)
	return w
}

func TestSitHandlerSuccess(t *testing.T) {
	h := newTestRoomHandler(t)
	w := doJSON(h.Sit, sitBody{RoomID: "r1", X: 0, Y: 0}, "u1")
	require.Equal(t, http.StatusOK, w.Code)

	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, CodeOK, resp.Code)
}

func TestSitHandlerSeatOccupied(t *testing.T) {
	h := newTestRoomHandler(t)
	doJSON(h.Sit, sitBody{RoomID: "r1", X: 0, Y: 0}, "u1")
	w := doJSON(h.Sit, sitBody{RoomID: "r1", X: 0, Y: 0}, "u2")

	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, CodeSeatOccupied, resp.Code)
}

func TestSitHandlerBadRequest(t *testing.T) {
	h := newTestRoomHandler(t)
	w := doJSON(h.Sit, gin.H{"x": 0}, "u1")

	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, CodeBadRequest, resp.Code)
}

func TestListHandlerReturnsRooms(t *testing.T) {
	h := newTestRoomHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/x?game_index=all&fast=true", nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
}
