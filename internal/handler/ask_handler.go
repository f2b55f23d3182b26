package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqna/internal/pkg/errcode"
	"github.com/xxxsen/docqna/internal/pkg/response"
	"github.com/xxxsen/docqna/internal/service"
)

type AskHandler struct {
	answers *service.AnswerService
}

func NewAskHandler(answers *service.AnswerService) *AskHandler {
	return &AskHandler{answers: answers}
}

type askRequest struct {
	Question string `json:"question"`
}

// Ask streams the answer as newline-delimited JSON, one event per
// line, flushed as fragments arrive. Errors before the first event use
// the normal error envelope; a mid-stream failure arrives as a
// terminal error event on the stream itself.
func (h *AskHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	ctx := c.Request.Context()
	events, err := h.answers.Ask(ctx, getUserID(c), c.Param("id"), req.Question)
	if err != nil {
		handleError(c, err)
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)
	flusher, _ := c.Writer.(http.Flusher)
	enc := json.NewEncoder(c.Writer)
	for event := range events {
		if err := enc.Encode(event); err != nil {
			logutil.GetLogger(ctx).Debug("client stopped reading answer stream", zap.Error(err))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
