package httpapi

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/amazingchow/game-companion-gateway/internal/sms"
)

// tokenIssuer is the subset of *auth.TokenIssuer SMSHandler depends on.
type tokenIssuer interface {
	Issue(account, deviceID string) (string, error)
}

// SMSHandler exposes SMS one-time code issuance/verification, minting a
// bearer token once the code checks out.
type SMSHandler struct {
	sms    *sms.Service
	issuer tokenIssuer
}

// NewSMSHandler builds an SMSHandler.
func NewSMSHandler(s *sms.Service, issuer tokenIssuer) *SMSHandler {
	return &SMSHandler{sms: s, issuer: issuer}
}

type smsSendBody struct {
	Phone string `json:"phone" binding:"required"`
}

type smsVerifyBody struct {
	Phone    string `json:"phone" binding:"required"`
	Code     string `json:"code" binding:"required"`
	DeviceID string `json:"device_id" binding:"required"`
}

// Send handles POST /api/v1/sms.
func (h *SMSHandler) Send(c *gin.Context) {
	var body smsSendBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, CodeBadRequest, err.Error())
		return
	}
	if err := h.sms.SendCode(c.Request.Context(), body.Phone); err != nil {
		if errors.Is(err, sms.ErrDailyLimitExceeded) {
			fail(c, CodeSMSLimitExceeded, "daily sms limit exceeded")
			return
		}
		fail(c, CodeInternal, "failed to send code")
		return
	}
	ok(c, nil)
}

// Verify handles POST /api/v1/sms/verify.
func (h *SMSHandler) Verify(c *gin.Context) {
	var body smsVerifyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, CodeBadRequest, err.Error())
		return
	}
	if err := h.sms.VerifyCode(c.Request.Context(), body.Phone, body.Code); err != nil {
		fail(c, CodeBadRequest, "invalid code")
		return
	}

	token, err := h.issuer.Issue(body.Phone, body.DeviceID)
	if err != nil {
		fail(c, CodeInternal, "failed to mint token")
		return
	}
	ok(c, gin.H{"token": token})
}
