package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docqna/internal/middleware"
)

type RouterDeps struct {
	Auth            *AuthHandler
	Chats           *ChatHandler
	Uploads         *UploadHandler
	Ask             *AskHandler
	JWTSecret       []byte
	UploadRateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/auth/register", deps.Auth.Register)
	api.POST("/auth/login", deps.Auth.Login)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.POST("/chats", deps.Chats.Create)
	authGroup.GET("/chats", deps.Chats.List)
	authGroup.DELETE("/chats/:id", deps.Chats.Delete)
	authGroup.GET("/chats/:id/history", deps.Chats.History)
	authGroup.GET("/chats/:id/summary", deps.Chats.Summary)

	uploadGroup := authGroup.Group("")
	uploadGroup.Use(middleware.RateLimit(deps.UploadRateLimit))
	uploadGroup.POST("/chats/:id/upload", deps.Uploads.Upload)
	authGroup.GET("/chats/:id/files/:file_id", deps.Uploads.Download)

	authGroup.POST("/chats/:id/ask", deps.Ask.Ask)
}
