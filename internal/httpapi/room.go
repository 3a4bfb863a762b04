package httpapi

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/amazingchow/game-companion-gateway/internal/background"
	"github.com/amazingchow/game-companion-gateway/internal/room"
)

// RoomHandler exposes the Room Lifecycle Engine over HTTP.
type RoomHandler struct {
	engine *room.Engine
	guard  *background.Guard
}

// NewRoomHandler builds a RoomHandler. guard may be nil in tests that don't
// care about the idle-kick/battle-timeout side effects.
func NewRoomHandler(engine *room.Engine, guard *background.Guard) *RoomHandler {
	return &RoomHandler{engine: engine, guard: guard}
}

func account(c *gin.Context) string {
	if v, ok := c.Get("account"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

type roomIDBody struct {
	RoomID string `json:"room_id" binding:"required"`
}

type sitBody struct {
	RoomID string `json:"room_id" binding:"required"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

// roomErrCode maps a room-engine error to the response code it surfaces.
func roomErrCode(err error) (int, string) {
	switch {
	case errors.Is(err, room.ErrQueueFull):
		return CodeQueueFull, "queue is full"
	case errors.Is(err, room.ErrSeatOccupied):
		return CodeSeatOccupied, "seat is occupied"
	case errors.Is(err, room.ErrFrozen):
		return CodeFrozen, err.Error()
	case errors.Is(err, room.ErrInBattle):
		return CodeInBattle, "user is in battle"
	case errors.Is(err, room.ErrNotSeated):
		return CodeNotSeated, "user is not seated"
	case errors.Is(err, room.ErrNotReady):
		return CodeNotReady, "user is not ready"
	case errors.Is(err, room.ErrLockBusy):
		return CodeLockBusy, "room is busy, try again"
	default:
		return CodeInternal, "internal error"
	}
}

// Enter handles POST /api/v1/room/enter.
func (h *RoomHandler) Enter(c *gin.Context) {
	var body roomIDBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, CodeBadRequest, err.Error())
		return
	}
	if err := h.engine.Enter(c.Request.Context(), body.RoomID, account(c)); err != nil {
		code, msg := roomErrCode(err)
		fail(c, code, msg)
		return
	}
	ok(c, nil)
}

// Leave handles POST /api/v1/room/leave.
func (h *RoomHandler) Leave(c *gin.Context) {
	var body roomIDBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, CodeBadRequest, err.Error())
		return
	}
	if err := h.engine.Leave(c.Request.Context(), body.RoomID, account(c)); err != nil {
		code, msg := roomErrCode(err)
		fail(c, code, msg)
		return
	}
	ok(c, nil)
}

// Sit handles POST /api/v1/room/queue/sit.
func (h *RoomHandler) Sit(c *gin.Context) {
	var body sitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, CodeBadRequest, err.Error())
		return
	}
	if err := h.engine.Sit(c.Request.Context(), body.RoomID, account(c), body.X, body.Y); err != nil {
		code, msg := roomErrCode(err)
		fail(c, code, msg)
		return
	}
	if h.guard != nil {
		h.guard.ArmQueueIdleKick(body.RoomID, account(c))
	}
	ok(c, nil)
}

// Stand handles POST /api/v1/room/queue/stand.
func (h *RoomHandler) Stand(c *gin.Context) {
	var body roomIDBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, CodeBadRequest, err.Error())
		return
	}
	if err := h.engine.Stand(c.Request.Context(), body.RoomID, account(c), false); err != nil {
		code, msg := roomErrCode(err)
		fail(c, code, msg)
		return
	}
	if h.guard != nil {
		h.guard.DisarmQueueIdleKick(account(c))
	}
	ok(c, nil)
}

// Ready handles POST /api/v1/room/queue/ready and .../unready.
func (h *RoomHandler) ready(c *gin.Context, want bool) {
	var body roomIDBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, CodeBadRequest, err.Error())
		return
	}
	allReady, err := h.engine.Ready(c.Request.Context(), body.RoomID, account(c), want)
	if err != nil {
		code, msg := roomErrCode(err)
		fail(c, code, msg)
		return
	}
	if h.guard != nil {
		if want {
			h.guard.DisarmQueueIdleKick(account(c))
		} else {
			h.guard.ArmQueueIdleKick(body.RoomID, account(c))
		}
	}
	ok(c, gin.H{"all_ready": allReady})
}

func (h *RoomHandler) Ready(c *gin.Context)   { h.ready(c, true) }
func (h *RoomHandler) Unready(c *gin.Context) { h.ready(c, false) }

func (h *RoomHandler) battle(c *gin.Context, want bool) {
	var body roomIDBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, CodeBadRequest, err.Error())
		return
	}
	if want {
		allBattle, err := h.engine.StartBattle(c.Request.Context(), body.RoomID, account(c))
		if err != nil {
			code, msg := roomErrCode(err)
			fail(c, code, msg)
			return
		}
		if h.guard != nil {
			h.guard.ArmBattleTimeout(body.RoomID, account(c))
		}
		ok(c, gin.H{"all_battle": allBattle})
		return
	}
	if err := h.engine.EndBattle(c.Request.Context(), body.RoomID, account(c)); err != nil {
		code, msg := roomErrCode(err)
		fail(c, code, msg)
		return
	}
	if h.guard != nil {
		h.guard.DisarmBattleTimeout(account(c))
	}
	ok(c, nil)
}

// BattleStart handles POST /api/v1/room/battle/start.
func (h *RoomHandler) BattleStart(c *gin.Context) { h.battle(c, true) }

// BattleEnd handles POST /api/v1/room/battle/end.
func (h *RoomHandler) BattleEnd(c *gin.Context) { h.battle(c, false) }

// List handles GET /api/v1/room/list?game_index=&offset=&limit=&fast=.
func (h *RoomHandler) List(c *gin.Context) {
	gameIndex := c.Query("game_index")
	offset, _ := strconv.ParseInt(c.DefaultQuery("offset", "0"), 10, 64)
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	fast := c.Query("fast") == "true"

	rooms, err := h.engine.ListRooms(c.Request.Context(), gameIndex, offset, limit, fast)
	if err != nil {
		fail(c, CodeInternal, "failed to list rooms")
		return
	}
	ok(c, gin.H{"rooms": rooms})
}
