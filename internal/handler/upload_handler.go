package handler

import (
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docqna/internal/pkg/errcode"
	"github.com/xxxsen/docqna/internal/pkg/response"
	"github.com/xxxsen/docqna/internal/service"
)

type UploadHandler struct {
	uploads     *service.UploadService
	maxFileSize int64
}

func NewUploadHandler(uploads *service.UploadService, maxFileSize int64) *UploadHandler {
	if maxFileSize <= 0 {
		maxFileSize = 10 << 20
	}
	return &UploadHandler{uploads: uploads, maxFileSize: maxFileSize}
}

type uploadChunksRequest struct {
	Chunks []string `json:"chunks"`
}

// Upload accepts either a multipart file or a JSON body with
// pre-split chunks.
func (h *UploadHandler) Upload(c *gin.Context) {
	userID := getUserID(c)
	chatID := c.Param("id")
	contentType := c.GetHeader("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		h.uploadFile(c, userID, chatID)
		return
	}
	var req uploadChunksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	stored, err := h.uploads.ProcessChunks(c.Request.Context(), userID, chatID, req.Chunks)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"stored_count": stored})
}

func (h *UploadHandler) uploadFile(c *gin.Context, userID, chatID string) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxFileSize+4096)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalid, "file field is required")
		return
	}
	defer file.Close()
	stored, fileID, err := h.uploads.ProcessUpload(c.Request.Context(), userID, chatID, header.Filename, file)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"stored_count": stored, "filename": header.Filename, "file_id": fileID})
}

// Download sends back the raw copy of a previously uploaded file.
// Stores that expose objects over HTTP get a redirect instead of a
// relayed body.
func (h *UploadHandler) Download(c *gin.Context) {
	userID := getUserID(c)
	chatID := c.Param("id")
	fileID := c.Param("file_id")
	rc, redirect, err := h.uploads.FetchUpload(c.Request.Context(), userID, chatID, fileID)
	if err != nil {
		handleError(c, err)
		return
	}
	if redirect != "" {
		c.Redirect(http.StatusFound, redirect)
		return
	}
	defer rc.Close()
	contentType := mime.TypeByExtension(path.Ext(fileID))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
}
