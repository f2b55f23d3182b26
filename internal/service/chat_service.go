package service

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/docqna/internal/pkg/errors"
	"github.com/xxxsen/docqna/internal/pkg/timeutil"

	"github.com/xxxsen/docqna/internal/model"
	"github.com/xxxsen/docqna/internal/repo"
)

const maxChatNameLen = 128

type ChatService struct {
	chats         *repo.ChatRepo
	conversations *repo.ConversationRepo
	chunks        *repo.ChunkRepo
}

func NewChatService(chats *repo.ChatRepo, conversations *repo.ConversationRepo, chunks *repo.ChunkRepo) *ChatService {
	return &ChatService{chats: chats, conversations: conversations, chunks: chunks}
}

func (s *ChatService) Create(ctx context.Context, userID, name string) (*model.Chat, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "New chat"
	}
	if len(name) > maxChatNameLen {
		return nil, appErr.ErrInvalid
	}
	chat := &model.Chat{
		ID:     newID(),
		UserID: userID,
		Name:   name,
		Ctime:  timeutil.NowUnix(),
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

func (s *ChatService) List(ctx context.Context, userID string) ([]model.Chat, error) {
	return s.chats.ListByUser(ctx, userID)
}

func (s *ChatService) Get(ctx context.Context, userID, chatID string) (*model.Chat, error) {
	return s.chats.Get(ctx, userID, chatID)
}

// Delete removes the chat row first so a half-finished cleanup cannot
// resurrect the chat; leftover chunks and conversations are swept by
// the orphan cleanup job.
func (s *ChatService) Delete(ctx context.Context, userID, chatID string) error {
	if err := s.chats.Delete(ctx, userID, chatID); err != nil {
		return err
	}
	if _, err := s.chunks.DeleteByChat(ctx, userID, chatID); err != nil {
		logutil.GetLogger(ctx).Warn("failed to delete chat chunks", zap.String("chat_id", chatID), zap.Error(err))
	}
	if _, err := s.conversations.DeleteByChat(ctx, userID, chatID); err != nil {
		logutil.GetLogger(ctx).Warn("failed to delete chat conversations", zap.String("chat_id", chatID), zap.Error(err))
	}
	return nil
}

func (s *ChatService) History(ctx context.Context, userID, chatID string, limit uint) ([]model.Conversation, error) {
	if _, err := s.chats.Get(ctx, userID, chatID); err != nil {
		return nil, err
	}
	if limit == 0 || limit > 200 {
		limit = 50
	}
	return s.conversations.ListByChat(ctx, userID, chatID, limit)
}

// ChatSummary is the sidebar view of a chat: its metadata plus the
// most recent exchange, if any.
type ChatSummary struct {
	Chat         model.Chat          `json:"chat"`
	LastExchange *model.Conversation `json:"last_exchange,omitempty"`
	ChunkCount   int64               `json:"chunk_count"`
}

func (s *ChatService) Summary(ctx context.Context, userID, chatID string) (*ChatSummary, error) {
	chat, err := s.chats.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	out := &ChatSummary{Chat: *chat}
	latest, err := s.conversations.Latest(ctx, userID, chatID)
	if err != nil && !appErr.IsNotFound(err) {
		return nil, err
	}
	if err == nil {
		out.LastExchange = latest
	}
	count, err := s.chunks.CountByChat(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	out.ChunkCount = count
	return out, nil
}
