// Package httpapi wires the Room Lifecycle Engine, Identity & Session layer,
// and Game Result Ingestor onto Gin routes behind the gateway's uniform
// {code, msg, data?} response envelope.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response codes per the external contract.
const (
	CodeOK           = 0
	CodeBadRequest   = 10400
	CodeInternal     = 10500
	CodeQueueFull    = 20001
	CodeSeatOccupied = 20002
	CodeFrozen       = 20003
	CodeInBattle     = 20004
	CodeNotSeated    = 20005
	CodeNotReady     = 20006
	CodeLockBusy     = 20007
	CodeDuplicate    = 20008

	CodeSMSLimitExceeded = 30001
)

type envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

// ok writes a success envelope. HTTP status is always 200 per the uniform
// contract; domain outcomes are distinguished by code, not status.
func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, envelope{Code: CodeOK, Msg: "ok", Data: data})
}

func fail(c *gin.Context, code int, msg string) {
	c.JSON(http.StatusOK, envelope{Code: code, Msg: msg})
}
