package service

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/docqna/internal/pkg/errors"
	"github.com/xxxsen/docqna/internal/pkg/timeutil"

	"github.com/xxxsen/docqna/internal/model"
)

const (
	noDocumentsAnswer = "No relevant documents found."
	answerEventBuffer = 16
)

type chatChecker interface {
	Get(ctx context.Context, userID, chatID string) (*model.Chat, error)
	TouchLastAsked(ctx context.Context, userID, chatID string, lastAsked int64) error
}

type conversationWriter interface {
	Append(ctx context.Context, conv *model.Conversation) error
}

type similarRetriever interface {
	RetrieveSimilar(ctx context.Context, userID, chatID, question string) ([]ScoredChunk, error)
}

type answerStreamer interface {
	Ready() error
	MaxInputChars() int
	AnswerStream(ctx context.Context, question string, contexts []string, emit func(fragment string) error) error
}

type AnswerService struct {
	chats         chatChecker
	conversations conversationWriter
	retrieval     similarRetriever
	ai            answerStreamer
	contextChunks int
}

func NewAnswerService(chats chatChecker, conversations conversationWriter,
	retrieval similarRetriever, ai answerStreamer, contextChunks int) *AnswerService {

	if contextChunks <= 0 {
		contextChunks = 3
	}
	return &AnswerService{
		chats:         chats,
		conversations: conversations,
		retrieval:     retrieval,
		ai:            ai,
		contextChunks: contextChunks,
	}
}

// Ask answers a question against the chat's stored chunks and streams
// the answer as events. Validation and retrieval errors are returned
// synchronously before any event is produced; once the channel is
// handed out, a provider failure surfaces as a single terminal error
// event instead. The channel is always closed when the stream ends,
// and the exchange is persisted only after a fully streamed answer.
func (s *AnswerService) Ask(ctx context.Context, userID, chatID, question string) (<-chan model.AnswerEvent, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, appErr.ErrInvalid
	}
	if max := s.ai.MaxInputChars(); max > 0 && len(question) > max {
		return nil, appErr.ErrInvalid
	}
	if err := s.ai.Ready(); err != nil {
		return nil, appErr.ErrAIUnavailable
	}
	if _, err := s.chats.Get(ctx, userID, chatID); err != nil {
		return nil, err
	}

	ranked, err := s.retrieval.RetrieveSimilar(ctx, userID, chatID, question)
	if err != nil {
		return nil, err
	}

	events := make(chan model.AnswerEvent, answerEventBuffer)
	if len(ranked) == 0 {
		go func() {
			defer close(events)
			select {
			case events <- model.AnswerEvent{Type: model.AnswerEventChunk, Content: noDocumentsAnswer}:
			case <-ctx.Done():
			}
		}()
		return events, nil
	}

	if len(ranked) > s.contextChunks {
		ranked = ranked[:s.contextChunks]
	}
	contexts := make([]string, 0, len(ranked))
	for _, sc := range ranked {
		contexts = append(contexts, sc.Chunk.Content)
	}

	go s.stream(ctx, events, userID, chatID, question, contexts)
	return events, nil
}

func (s *AnswerService) stream(ctx context.Context, events chan<- model.AnswerEvent,
	userID, chatID, question string, contexts []string) {

	defer close(events)
	var answer strings.Builder
	err := s.ai.AnswerStream(ctx, question, contexts, func(fragment string) error {
		answer.WriteString(fragment)
		select {
		case events <- model.AnswerEvent{Type: model.AnswerEventChunk, Content: fragment}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			// consumer went away; nothing to tell it
			return
		}
		logutil.GetLogger(ctx).Error("answer stream failed", zap.String("chat_id", chatID), zap.Error(err))
		select {
		case events <- model.AnswerEvent{Type: model.AnswerEventError, Content: "Error generating answer"}:
		case <-ctx.Done():
		}
		return
	}
	s.persist(ctx, userID, chatID, question, answer.String())
}

func (s *AnswerService) persist(ctx context.Context, userID, chatID, question, answer string) {
	now := timeutil.NowUnix()
	if err := s.conversations.Append(ctx, &model.Conversation{
		UserID:   userID,
		ChatID:   chatID,
		Question: question,
		Answer:   answer,
		Ctime:    now,
	}); err != nil {
		logutil.GetLogger(ctx).Warn("failed to persist exchange", zap.String("chat_id", chatID), zap.Error(err))
		return
	}
	if err := s.chats.TouchLastAsked(ctx, userID, chatID, now); err != nil {
		logutil.GetLogger(ctx).Warn("failed to touch chat", zap.String("chat_id", chatID), zap.Error(err))
	}
}
