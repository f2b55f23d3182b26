package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docqna/internal/filestore"
	"github.com/xxxsen/docqna/internal/middleware"
	"github.com/xxxsen/docqna/internal/pkg/errcode"
	"github.com/xxxsen/docqna/internal/service"
)

type stubFileStore struct {
	objects map[string][]byte
	url     string
}

func (s *stubFileStore) Save(ctx context.Context, key string, r io.ReadSeeker, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.objects[key] = data
	return nil
}

func (s *stubFileStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type stubURLFileStore struct {
	stubFileStore
}

func (s *stubURLFileStore) URL(key string) string {
	return s.url + "/" + key
}

type stubInserter struct{}

func (stubInserter) InsertMany(ctx context.Context, userID, chatID string, contents []string, embeddings [][]float32, ctime int64) error {
	return nil
}

type stubEmbedder struct{}

func (stubEmbedder) EmbedMany(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, 4)
	}
	return out, nil
}

func newDownloadRouter(files filestore.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	uploads := service.NewUploadService(stubChats{}, stubInserter{}, stubEmbedder{}, files, service.UploadConfig{})
	h := NewUploadHandler(uploads, 0)
	engine := gin.New()
	engine.GET("/chats/:id/files/:file_id", func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, "u1")
		h.Download(c)
	})
	return engine
}

func TestDownloadHandler_StreamsStoredFile(t *testing.T) {
	files := &stubFileStore{objects: map[string][]byte{
		"u1/c1/abc.txt": []byte("stored body"),
	}}
	engine := newDownloadRouter(files)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest("GET", "/chats/c1/files/abc.txt", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "stored body", rec.Body.String())
	require.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestDownloadHandler_RedirectsForURLStore(t *testing.T) {
	files := &stubURLFileStore{stubFileStore: stubFileStore{
		objects: map[string][]byte{},
		url:     "https://cdn.example.com/bucket",
	}}
	engine := newDownloadRouter(files)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest("GET", "/chats/c1/files/abc.txt", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "https://cdn.example.com/bucket/u1/c1/abc.txt", rec.Header().Get("Location"))
}

func decodeErrorCode(t *testing.T, body []byte) uint32 {
	t.Helper()
	var packet struct {
		Code uint32 `json:"code"`
	}
	require.NoError(t, json.Unmarshal(body, &packet))
	return packet.Code
}

func TestDownloadHandler_MissingFile(t *testing.T) {
	engine := newDownloadRouter(&stubFileStore{objects: map[string][]byte{}})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest("GET", "/chats/c1/files/nope.txt", nil))
	require.Equal(t, uint32(errcode.ErrNotFound), decodeErrorCode(t, rec.Body.Bytes()))
}

func TestDownloadHandler_UnknownChat(t *testing.T) {
	engine := newDownloadRouter(&stubFileStore{objects: map[string][]byte{}})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest("GET", "/chats/other/files/abc.txt", nil))
	require.Equal(t, uint32(errcode.ErrNotFound), decodeErrorCode(t, rec.Body.Bytes()))
}
