package httpapi

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/amazingchow/game-companion-gateway/internal/store"
)

// passiveStore is the subset of *store.Store PassiveHandler depends on.
type passiveStore interface {
	ResolveShadowAccount(ctx context.Context, userID string) (string, error)
	RedeemInviteCode(ctx context.Context, code string, nowTs int64) (*store.InviteCode, error)
	GetPermissions(ctx context.Context, userID string) ([]string, error)
	AppendChatMessage(ctx context.Context, msg store.ChatMessage) error
	ListChatHistory(ctx context.Context, roomID string, limit int64) ([]store.ChatMessage, error)
}

// nower abstracts the current time so tests don't depend on wall clock.
type nower func() int64

// PassiveHandler exposes the passive CRUD collaborators (shadow accounts,
// invite codes, app permissions, chat history) noted in SPEC_FULL.md's data
// model: thin accessors with no lifecycle logic of their own, fronted here
// so admin/support tooling and the app client can reach them over HTTP.
type PassiveHandler struct {
	store passiveStore
	now   nower
}

// NewPassiveHandler builds a PassiveHandler.
func NewPassiveHandler(s passiveStore, now nower) *PassiveHandler {
	if now == nil {
		now = func() int64 { return 0 }
	}
	return &PassiveHandler{store: s, now: now}
}

// ResolveAccount handles GET /api/v1/account/resolve, returning the account
// id downstream lookups should prefer (walking the shadow-account record, if
// any, for a recreated account).
func (h *PassiveHandler) ResolveAccount(c *gin.Context) {
	uid := account(c)
	resolved, err := h.store.ResolveShadowAccount(c.Request.Context(), uid)
	if err != nil {
		fail(c, CodeInternal, "failed to resolve account")
		return
	}
	ok(c, gin.H{"account": resolved})
}

type inviteRedeemBody struct {
	Code string `json:"code" binding:"required"`
}

// RedeemInvite handles POST /api/v1/account/invite/redeem.
func (h *PassiveHandler) RedeemInvite(c *gin.Context) {
	var body inviteRedeemBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, CodeBadRequest, err.Error())
		return
	}
	inv, err := h.store.RedeemInviteCode(c.Request.Context(), body.Code, h.now())
	if err != nil {
		fail(c, CodeBadRequest, "invite code invalid or exhausted")
		return
	}
	ok(c, gin.H{"room_id": inv.RoomID})
}

// Permissions handles GET /api/v1/account/permissions.
func (h *PassiveHandler) Permissions(c *gin.Context) {
	uid := account(c)
	grants, err := h.store.GetPermissions(c.Request.Context(), uid)
	if err != nil {
		fail(c, CodeInternal, "failed to load permissions")
		return
	}
	ok(c, gin.H{"grants": grants})
}

type chatSendBody struct {
	RoomID  string `json:"room_id" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// SendChat handles POST /api/v1/room/chat.
func (h *PassiveHandler) SendChat(c *gin.Context) {
	var body chatSendBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, CodeBadRequest, err.Error())
		return
	}
	msg := store.ChatMessage{
		RoomID:   body.RoomID,
		UserID:   account(c),
		Content:  body.Content,
		CreateTs: h.now(),
	}
	if err := h.store.AppendChatMessage(c.Request.Context(), msg); err != nil {
		fail(c, CodeInternal, "failed to append chat message")
		return
	}
	ok(c, nil)
}

// ChatHistory handles GET /api/v1/room/chat?room_id=...&limit=...
func (h *PassiveHandler) ChatHistory(c *gin.Context) {
	roomID := c.Query("room_id")
	if roomID == "" {
		fail(c, CodeBadRequest, "room_id is required")
		return
	}
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if err != nil || limit <= 0 {
		limit = 50
	}
	msgs, err := h.store.ListChatHistory(c.Request.Context(), roomID, limit)
	if err != nil {
		fail(c, CodeInternal, "failed to list chat history")
		return
	}
	ok(c, gin.H{"messages": msgs})
}
