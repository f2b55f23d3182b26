package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docqna/internal/pkg/errcode"
	"github.com/xxxsen/docqna/internal/pkg/response"
	"github.com/xxxsen/docqna/internal/service"
)

type ChatHandler struct {
	chats *service.ChatService
}

func NewChatHandler(chats *service.ChatService) *ChatHandler {
	return &ChatHandler{chats: chats}
}

type createChatRequest struct {
	Name string `json:"name"`
}

func (h *ChatHandler) Create(c *gin.Context) {
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	chat, err := h.chats.Create(c.Request.Context(), getUserID(c), req.Name)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, chat)
}

func (h *ChatHandler) List(c *gin.Context) {
	chats, err := h.chats.List(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"chats": chats})
}

func (h *ChatHandler) Delete(c *gin.Context) {
	if err := h.chats.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

func (h *ChatHandler) History(c *gin.Context) {
	limit, _ := strconv.ParseUint(c.Query("limit"), 10, 32)
	items, err := h.chats.History(c.Request.Context(), getUserID(c), c.Param("id"), uint(limit))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"history": items})
}

func (h *ChatHandler) Summary(c *gin.Context) {
	summary, err := h.chats.Summary(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, summary)
}
