package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/amazingchow/game-companion-gateway/internal/background"
	"github.com/amazingchow/game-companion-gateway/internal/result"
	"github.com/amazingchow/game-companion-gateway/internal/store"
)

// ResultHandler accepts the external game server's result callback.
type ResultHandler struct {
	ingestor *result.Ingestor
	guard    *background.Guard
}

// NewResultHandler builds a ResultHandler. guard may be nil in tests that
// don't care about the forced-battle-timeout side effect.
func NewResultHandler(i *result.Ingestor, guard *background.Guard) *ResultHandler {
	return &ResultHandler{ingestor: i, guard: guard}
}

type resultBody struct {
	AppUserID     string         `json:"app_user_id" binding:"required"`
	AppAIPlayerID string         `json:"app_ai_player_id"`
	AppRoomID     string         `json:"app_room_id" binding:"required"`
	AppGameIndex  string         `json:"app_game_index"`
	GameRegion    string         `json:"game_region"`
	GameUID       string         `json:"game_uid"`
	GameBID       string         `json:"game_bid"`
	OrderID       string         `json:"order_id"`
	ResultType    string         `json:"result_type"`
	ResultGameIdx *int           `json:"result_game_idx"`
	ResultWin     *bool          `json:"result_win"`
	ResultScreens []string       `json:"result_screenshots"`
	StatusCode    int            `json:"status_code"`
	TraceID       string         `json:"trace_id"`
	CreateTs      int64          `json:"create_ts"`
	Extra         map[string]any `json:"extra"`
}

// Callback handles POST /api/v1/game/result.
func (h *ResultHandler) Callback(c *gin.Context) {
	var body resultBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, CodeBadRequest, err.Error())
		return
	}

	res := store.GameResult{
		AppUserID:     body.AppUserID,
		AppAIPlayerID: body.AppAIPlayerID,
		AppRoomID:     body.AppRoomID,
		AppGameIndex:  body.AppGameIndex,
		GameRegion:    body.GameRegion,
		GameUID:       body.GameUID,
		GameBID:       body.GameBID,
		OrderID:       body.OrderID,
		ResultType:    body.ResultType,
		ResultGameIdx: body.ResultGameIdx,
		ResultWin:     body.ResultWin,
		ResultScreens: body.ResultScreens,
		StatusCode:    body.StatusCode,
		TraceID:       body.TraceID,
		CreateTs:      body.CreateTs,
		Extra:         body.Extra,
	}

	if err := h.ingestor.Ingest(c.Request.Context(), res); err != nil {
		fail(c, CodeInternal, "failed to ingest result")
		return
	}
	if h.guard != nil {
		h.guard.DisarmBattleTimeout(body.AppUserID)
	}
	ok(c, nil)
}
