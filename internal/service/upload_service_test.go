package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/docqna/internal/pkg/errors"
)

type fakeChunkInserter struct {
	userID     string
	chatID     string
	contents   []string
	embeddings [][]float32
	calls      int
	err        error
}

func (f *fakeChunkInserter) InsertMany(ctx context.Context, userID, chatID string, contents []string, embeddings [][]float32, ctime int64) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.userID = userID
	f.chatID = chatID
	f.contents = contents
	f.embeddings = embeddings
	return nil
}

type fakeBatchEmbedder struct {
	dims int
	err  error
	// ragged makes the second vector a different length
	ragged bool
}

func (f *fakeBatchEmbedder) EmbedMany(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		dims := f.dims
		if f.ragged && i == 1 {
			dims++
		}
		out[i] = make([]float32, dims)
	}
	return out, nil
}

func newUploadService(inserter *fakeChunkInserter, embedder *fakeBatchEmbedder) *UploadService {
	return NewUploadService(newFakeChats("c1"), inserter, embedder, nil, UploadConfig{
		MaxFileSize:  1 << 20,
		ChunkSize:    100,
		ChunkOverlap: 10,
	})
}

func TestProcessChunks_StoresNonBlank(t *testing.T) {
	inserter := &fakeChunkInserter{}
	svc := newUploadService(inserter, &fakeBatchEmbedder{dims: 4})
	stored, err := svc.ProcessChunks(context.Background(), "u1", "c1", []string{"alpha", "  ", "beta"})
	require.NoError(t, err)
	require.Equal(t, 2, stored)
	require.Equal(t, []string{"alpha", "beta"}, inserter.contents)
	require.Len(t, inserter.embeddings, 2)
	require.Equal(t, "u1", inserter.userID)
	require.Equal(t, "c1", inserter.chatID)
}

func TestProcessChunks_AllBlankRejected(t *testing.T) {
	inserter := &fakeChunkInserter{}
	svc := newUploadService(inserter, &fakeBatchEmbedder{dims: 4})
	_, err := svc.ProcessChunks(context.Background(), "u1", "c1", []string{"", "   "})
	require.ErrorIs(t, err, appErr.ErrInvalid)
	require.Zero(t, inserter.calls)
}

func TestProcessChunks_UnknownChat(t *testing.T) {
	svc := newUploadService(&fakeChunkInserter{}, &fakeBatchEmbedder{dims: 4})
	_, err := svc.ProcessChunks(context.Background(), "u1", "nope", []string{"alpha"})
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestProcessChunks_EmbedderFailure(t *testing.T) {
	inserter := &fakeChunkInserter{}
	svc := newUploadService(inserter, &fakeBatchEmbedder{err: errors.New("backend down")})
	_, err := svc.ProcessChunks(context.Background(), "u1", "c1", []string{"alpha"})
	require.ErrorIs(t, err, appErr.ErrEmbeddingService)
	require.Zero(t, inserter.calls)
}

func TestProcessChunks_InconsistentDimensions(t *testing.T) {
	inserter := &fakeChunkInserter{}
	svc := newUploadService(inserter, &fakeBatchEmbedder{dims: 4, ragged: true})
	_, err := svc.ProcessChunks(context.Background(), "u1", "c1", []string{"alpha", "beta"})
	require.ErrorIs(t, err, appErr.ErrEmbeddingService)
	require.Zero(t, inserter.calls)
}

func TestProcessChunks_StorageFailure(t *testing.T) {
	inserter := &fakeChunkInserter{err: errors.New("db down")}
	svc := newUploadService(inserter, &fakeBatchEmbedder{dims: 4})
	_, err := svc.ProcessChunks(context.Background(), "u1", "c1", []string{"alpha"})
	require.ErrorIs(t, err, appErr.ErrStorageUnavailable)
}

func TestProcessUpload_UnsupportedExtension(t *testing.T) {
	svc := newUploadService(&fakeChunkInserter{}, &fakeBatchEmbedder{dims: 4})
	_, _, err := svc.ProcessUpload(context.Background(), "u1", "c1", "report.pdf", strings.NewReader("content"))
	require.ErrorIs(t, err, appErr.ErrUnsupportedFile)
}

func TestProcessUpload_TooLarge(t *testing.T) {
	inserter := &fakeChunkInserter{}
	svc := NewUploadService(newFakeChats("c1"), inserter, &fakeBatchEmbedder{dims: 4}, nil, UploadConfig{
		MaxFileSize: 10,
		ChunkSize:   100,
	})
	_, _, err := svc.ProcessUpload(context.Background(), "u1", "c1", "big.txt", strings.NewReader(strings.Repeat("x", 20)))
	require.ErrorIs(t, err, appErr.ErrFileTooLarge)
	require.Zero(t, inserter.calls)
}

func TestProcessUpload_TextFile(t *testing.T) {
	inserter := &fakeChunkInserter{}
	svc := newUploadService(inserter, &fakeBatchEmbedder{dims: 4})
	stored, _, err := svc.ProcessUpload(context.Background(), "u1", "c1", "notes.txt", strings.NewReader("short document"))
	require.NoError(t, err)
	require.Equal(t, 1, stored)
	require.Equal(t, []string{"short document"}, inserter.contents)
}

func TestProcessUpload_MarkdownFile(t *testing.T) {
	inserter := &fakeChunkInserter{}
	svc := newUploadService(inserter, &fakeBatchEmbedder{dims: 4})
	stored, _, err := svc.ProcessUpload(context.Background(), "u1", "c1", "doc.md",
		strings.NewReader("# One\n\nfirst part\n\n# Two\n\nsecond part\n"))
	require.NoError(t, err)
	require.Equal(t, 2, stored)
	require.Equal(t, []string{"Heading: One\nfirst part", "Heading: Two\nsecond part"}, inserter.contents)
}

type memFileStore struct {
	objects map[string][]byte
	saveErr error
}

func newMemFileStore() *memFileStore {
	return &memFileStore{objects: map[string][]byte{}}
}

func (m *memFileStore) Save(ctx context.Context, key string, r io.ReadSeeker, size int64) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memFileStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type urlFileStore struct {
	memFileStore
	base string
}

func (u *urlFileStore) URL(key string) string {
	return u.base + "/" + key
}

func TestProcessUpload_KeepsRawCopy(t *testing.T) {
	files := newMemFileStore()
	svc := NewUploadService(newFakeChats("c1"), &fakeChunkInserter{}, &fakeBatchEmbedder{dims: 4}, files, UploadConfig{
		MaxFileSize:  1 << 20,
		ChunkSize:    100,
		ChunkOverlap: 10,
	})
	stored, fileID, err := svc.ProcessUpload(context.Background(), "u1", "c1", "notes.txt", strings.NewReader("short document"))
	require.NoError(t, err)
	require.Equal(t, 1, stored)
	require.True(t, strings.HasSuffix(fileID, ".txt"))

	rc, redirect, err := svc.FetchUpload(context.Background(), "u1", "c1", fileID)
	require.NoError(t, err)
	require.Empty(t, redirect)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "short document", string(data))
}

func TestProcessUpload_SaveFailureStillStoresChunks(t *testing.T) {
	files := newMemFileStore()
	files.saveErr = errors.New("disk full")
	inserter := &fakeChunkInserter{}
	svc := NewUploadService(newFakeChats("c1"), inserter, &fakeBatchEmbedder{dims: 4}, files, UploadConfig{
		MaxFileSize: 1 << 20,
		ChunkSize:   100,
	})
	stored, fileID, err := svc.ProcessUpload(context.Background(), "u1", "c1", "notes.txt", strings.NewReader("short document"))
	require.NoError(t, err)
	require.Equal(t, 1, stored)
	require.Empty(t, fileID)
	require.Equal(t, 1, inserter.calls)
}

func TestFetchUpload_RedirectsForURLStore(t *testing.T) {
	files := &urlFileStore{memFileStore: *newMemFileStore(), base: "https://cdn.example.com/bucket"}
	svc := NewUploadService(newFakeChats("c1"), &fakeChunkInserter{}, &fakeBatchEmbedder{dims: 4}, files, UploadConfig{})
	rc, redirect, err := svc.FetchUpload(context.Background(), "u1", "c1", "abc123.txt")
	require.NoError(t, err)
	require.Nil(t, rc)
	require.Equal(t, "https://cdn.example.com/bucket/u1/c1/abc123.txt", redirect)
}

func TestFetchUpload_RejectsPathTraversal(t *testing.T) {
	svc := NewUploadService(newFakeChats("c1"), &fakeChunkInserter{}, &fakeBatchEmbedder{dims: 4}, newMemFileStore(), UploadConfig{})
	for _, id := range []string{"", ".", "..", "../secret", "a/b", "a\\b"} {
		_, _, err := svc.FetchUpload(context.Background(), "u1", "c1", id)
		require.ErrorIs(t, err, appErr.ErrInvalid, "file id %q", id)
	}
}

func TestFetchUpload_UnknownFile(t *testing.T) {
	svc := NewUploadService(newFakeChats("c1"), &fakeChunkInserter{}, &fakeBatchEmbedder{dims: 4}, newMemFileStore(), UploadConfig{})
	_, _, err := svc.FetchUpload(context.Background(), "u1", "c1", "missing.txt")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestFetchUpload_NoStoreConfigured(t *testing.T) {
	svc := newUploadService(&fakeChunkInserter{}, &fakeBatchEmbedder{dims: 4})
	_, _, err := svc.FetchUpload(context.Background(), "u1", "c1", "abc.txt")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}
