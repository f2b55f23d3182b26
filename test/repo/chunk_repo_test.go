package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/docqna/internal/pkg/errors"
	"github.com/xxxsen/docqna/internal/pkg/timeutil"

	"github.com/xxxsen/docqna/internal/model"
	"github.com/xxxsen/docqna/internal/repo"
	"github.com/xxxsen/docqna/test/testutil"
)

func testEmbedding(seed float32) []float32 {
	vec := make([]float32, 768)
	vec[0] = seed
	vec[1] = 1 - seed
	return vec
}

func TestChunkRepoInsertListDelete(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	chats := repo.NewChatRepo(db)
	chunks := repo.NewChunkRepo(db)
	now := timeutil.NowUnix()

	chat := &model.Chat{ID: "chunk-chat-1", UserID: "user-1", Name: "test", Ctime: now}
	require.NoError(t, chats.Create(context.Background(), chat))
	defer func() {
		_, _ = chunks.DeleteByChat(context.Background(), "user-1", chat.ID)
		_ = chats.Delete(context.Background(), "user-1", chat.ID)
	}()

	contents := []string{"first chunk", "second chunk"}
	embeddings := [][]float32{testEmbedding(0.2), testEmbedding(0.8)}
	require.NoError(t, chunks.InsertMany(context.Background(), "user-1", chat.ID, contents, embeddings, now))

	got, err := chunks.ListByChat(context.Background(), "user-1", chat.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	byContent := map[string][]float32{}
	for _, c := range got {
		require.Equal(t, "user-1", c.UserID)
		require.Equal(t, chat.ID, c.ChatID)
		require.Len(t, c.Embedding, 768)
		byContent[c.Content] = c.Embedding
	}
	require.InDelta(t, 0.2, byContent["first chunk"][0], 1e-6)
	require.InDelta(t, 0.8, byContent["second chunk"][0], 1e-6)

	count, err := chunks.CountByChat(context.Background(), "user-1", chat.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	other, err := chunks.ListByChat(context.Background(), "user-2", chat.ID)
	require.NoError(t, err)
	require.Empty(t, other)

	deleted, err := chunks.DeleteByChat(context.Background(), "user-1", chat.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, deleted)
}

func TestChunkRepoInsertManyLengthMismatch(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	chunks := repo.NewChunkRepo(db)
	err := chunks.InsertMany(context.Background(), "user-1", "chat-x",
		[]string{"one", "two"}, [][]float32{testEmbedding(0.1)}, timeutil.NowUnix())
	require.ErrorIs(t, err, appErr.ErrInvalid)

	got, listErr := chunks.ListByChat(context.Background(), "user-1", "chat-x")
	require.NoError(t, listErr)
	require.Empty(t, got)
}

func TestChunkRepoDeleteOrphans(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	chats := repo.NewChatRepo(db)
	chunks := repo.NewChunkRepo(db)
	now := timeutil.NowUnix()

	chat := &model.Chat{ID: "orphan-chat-1", UserID: "user-1", Name: "test", Ctime: now}
	require.NoError(t, chats.Create(context.Background(), chat))
	require.NoError(t, chunks.InsertMany(context.Background(), "user-1", chat.ID,
		[]string{"body"}, [][]float32{testEmbedding(0.5)}, now))
	require.NoError(t, chats.Delete(context.Background(), "user-1", chat.ID))

	deleted, err := chunks.DeleteOrphans(context.Background(), 100)
	require.NoError(t, err)
	require.GreaterOrEqual(t, deleted, int64(1))

	got, err := chunks.ListByChat(context.Background(), "user-1", chat.ID)
	require.NoError(t, err)
	require.Empty(t, got)
}
