package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/docqna/internal/pkg/errors"
	"github.com/xxxsen/docqna/internal/pkg/timeutil"

	"github.com/xxxsen/docqna/internal/ai"
	"github.com/xxxsen/docqna/internal/filestore"
	"github.com/xxxsen/docqna/internal/model"
	"github.com/xxxsen/docqna/internal/splitter"
)

type chatGetter interface {
	Get(ctx context.Context, userID, chatID string) (*model.Chat, error)
}

type chunkInserter interface {
	InsertMany(ctx context.Context, userID, chatID string, contents []string, embeddings [][]float32, ctime int64) error
}

type batchEmbedder interface {
	EmbedMany(ctx context.Context, texts []string, taskType string) ([][]float32, error)
}

type UploadConfig struct {
	MaxFileSize  int64
	ChunkSize    int
	ChunkOverlap int
}

type UploadService struct {
	chats    chatGetter
	chunks   chunkInserter
	embedder batchEmbedder
	files    filestore.Store
	cfg      UploadConfig
}

func NewUploadService(chats chatGetter, chunks chunkInserter, embedder batchEmbedder,
	files filestore.Store, cfg UploadConfig) *UploadService {

	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 << 20
	}
	return &UploadService{chats: chats, chunks: chunks, embedder: embedder, files: files, cfg: cfg}
}

// ProcessUpload ingests one document into a chat: the raw file is kept
// in the file store, the text is split into chunks, each chunk is
// embedded and the (content, embedding) pairs are stored. Returns the
// number of chunks stored and the file id the raw copy was kept under
// (empty when no file store is configured or the save failed).
func (s *UploadService) ProcessUpload(ctx context.Context, userID, chatID, filename string, r io.Reader) (int, string, error) {
	if _, err := s.chats.Get(ctx, userID, chatID); err != nil {
		return 0, "", err
	}
	split, ext, err := s.splitterFor(filename)
	if err != nil {
		return 0, "", err
	}
	data, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxFileSize+1))
	if err != nil {
		return 0, "", err
	}
	if int64(len(data)) > s.cfg.MaxFileSize {
		return 0, "", appErr.ErrFileTooLarge
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return 0, "", appErr.ErrInvalid
	}

	fileID := ""
	if s.files != nil {
		fileID = newID() + ext
		key := fmt.Sprintf("%s/%s/%s", userID, chatID, fileID)
		if err := s.files.Save(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
			logutil.GetLogger(ctx).Warn("failed to keep raw upload", zap.String("key", key), zap.Error(err))
			fileID = ""
		}
	}

	pieces := split.Split(string(data))
	stored, err := s.store(ctx, userID, chatID, pieces)
	if err != nil {
		return 0, "", err
	}
	return stored, fileID, nil
}

// FetchUpload hands back a previously kept raw upload, either as a
// reader or as a direct URL when the backing store serves its objects
// over HTTP itself.
func (s *UploadService) FetchUpload(ctx context.Context, userID, chatID, fileID string) (io.ReadCloser, string, error) {
	if s.files == nil {
		return nil, "", appErr.ErrNotFound
	}
	if _, err := s.chats.Get(ctx, userID, chatID); err != nil {
		return nil, "", err
	}
	if fileID == "" || fileID == "." || fileID == ".." || strings.ContainsAny(fileID, "/\\") {
		return nil, "", appErr.ErrInvalid
	}
	key := fmt.Sprintf("%s/%s/%s", userID, chatID, fileID)
	if us, ok := s.files.(filestore.URLStore); ok {
		if u := us.URL(key); u != "" {
			return nil, u, nil
		}
	}
	rc, err := s.files.Open(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", appErr.ErrNotFound, err)
	}
	return rc, "", nil
}

// ProcessChunks stores already-split text without touching the file
// store, for callers that do their own chunking.
func (s *UploadService) ProcessChunks(ctx context.Context, userID, chatID string, chunks []string) (int, error) {
	if _, err := s.chats.Get(ctx, userID, chatID); err != nil {
		return 0, err
	}
	return s.store(ctx, userID, chatID, chunks)
}

func (s *UploadService) store(ctx context.Context, userID, chatID string, pieces []string) (int, error) {
	contents := make([]string, 0, len(pieces))
	for _, p := range pieces {
		p = strings.TrimSpace(p)
		if p != "" {
			contents = append(contents, p)
		}
	}
	if len(contents) == 0 {
		return 0, appErr.ErrInvalid
	}
	embeddings, err := s.embedder.EmbedMany(ctx, contents, ai.TaskRetrievalDocument)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", appErr.ErrEmbeddingService, err)
	}
	if len(embeddings) != len(contents) {
		return 0, fmt.Errorf("%w: got %d embeddings for %d chunks", appErr.ErrEmbeddingService, len(embeddings), len(contents))
	}
	for i := 1; i < len(embeddings); i++ {
		if len(embeddings[i]) != len(embeddings[0]) {
			return 0, fmt.Errorf("%w: inconsistent embedding dimensions", appErr.ErrEmbeddingService)
		}
	}
	if err := s.chunks.InsertMany(ctx, userID, chatID, contents, embeddings, timeutil.NowUnix()); err != nil {
		return 0, fmt.Errorf("%w: %v", appErr.ErrStorageUnavailable, err)
	}
	return len(contents), nil
}

func (s *UploadService) splitterFor(filename string) (splitter.Splitter, string, error) {
	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".md", ".markdown":
		return splitter.NewMarkdownSplitter(s.cfg.ChunkSize, s.cfg.ChunkOverlap), ext, nil
	case ".txt", ".text":
		return splitter.NewRecursiveSplitter(s.cfg.ChunkSize, s.cfg.ChunkOverlap), ext, nil
	default:
		return nil, "", appErr.ErrUnsupportedFile
	}
}
