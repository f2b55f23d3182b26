package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/docqna/internal/pkg/errors"

	"github.com/xxxsen/docqna/internal/model"
)

type fakeChats struct {
	mu        sync.Mutex
	chats     map[string]*model.Chat
	lastAsked map[string]int64
}

func newFakeChats(ids ...string) *fakeChats {
	f := &fakeChats{chats: make(map[string]*model.Chat), lastAsked: make(map[string]int64)}
	for _, id := range ids {
		f.chats[id] = &model.Chat{ID: id, UserID: "u1", Name: "chat"}
	}
	return f
}

func (f *fakeChats) Get(ctx context.Context, userID, chatID string) (*model.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.chats[chatID]
	if !ok || chat.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	return chat, nil
}

func (f *fakeChats) TouchLastAsked(ctx context.Context, userID, chatID string, lastAsked int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastAsked[chatID] = lastAsked
	return nil
}

type fakeConversations struct {
	mu    sync.Mutex
	items []model.Conversation
}

func (f *fakeConversations) Append(ctx context.Context, conv *model.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, *conv)
	return nil
}

func (f *fakeConversations) all() []model.Conversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Conversation, len(f.items))
	copy(out, f.items)
	return out
}

type fakeRetriever struct {
	ranked []ScoredChunk
	err    error
}

func (f *fakeRetriever) RetrieveSimilar(ctx context.Context, userID, chatID, question string) ([]ScoredChunk, error) {
	return f.ranked, f.err
}

type fakeStreamer struct {
	mu        sync.Mutex
	fragments []string
	failAfter int // -1 means never fail
	called    bool
}

func (f *fakeStreamer) Ready() error { return nil }

func (f *fakeStreamer) MaxInputChars() int { return 4000 }
func (f *fakeStreamer) AnswerStream(ctx context.Context, question string, contexts []string, emit func(string) error) error {
	f.mu.Lock()
	f.called = true
	f.mu.Unlock()
	for i, frag := range f.fragments {
		if f.failAfter >= 0 && i == f.failAfter {
			return errors.New("provider exploded")
		}
		if err := emit(frag); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStreamer) wasCalled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.called
}

func collect(t *testing.T, events <-chan model.AnswerEvent) []model.AnswerEvent {
	t.Helper()
	var out []model.AnswerEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
}

func rankedChunks(contents ...string) []ScoredChunk {
	out := make([]ScoredChunk, 0, len(contents))
	for i, content := range contents {
		out = append(out, ScoredChunk{
			Chunk: model.Chunk{ID: int64(i + 1), Content: content},
			Score: 1 - float64(i)*0.1,
		})
	}
	return out
}

func TestAsk_StreamsAndPersists(t *testing.T) {
	chats := newFakeChats("c1")
	convs := &fakeConversations{}
	streamer := &fakeStreamer{fragments: []string{"Par", "is."}, failAfter: -1}
	svc := NewAnswerService(chats, convs, &fakeRetriever{ranked: rankedChunks("Paris is the capital of France.")}, streamer, 3)

	events, err := svc.Ask(context.Background(), "u1", "c1", "What is the capital of France?")
	require.NoError(t, err)
	got := collect(t, events)
	require.Equal(t, []model.AnswerEvent{
		{Type: model.AnswerEventChunk, Content: "Par"},
		{Type: model.AnswerEventChunk, Content: "is."},
	}, got)

	require.Eventually(t, func() bool {
		return len(convs.all()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	stored := convs.all()[0]
	require.Equal(t, "What is the capital of France?", stored.Question)
	require.Equal(t, "Paris.", stored.Answer)
	require.Equal(t, "c1", stored.ChatID)
}

func TestAsk_MidStreamFailureEmitsErrorEvent(t *testing.T) {
	chats := newFakeChats("c1")
	convs := &fakeConversations{}
	streamer := &fakeStreamer{fragments: []string{"Par", "is."}, failAfter: 1}
	svc := NewAnswerService(chats, convs, &fakeRetriever{ranked: rankedChunks("ctx")}, streamer, 3)

	events, err := svc.Ask(context.Background(), "u1", "c1", "question")
	require.NoError(t, err)
	got := collect(t, events)
	require.Equal(t, []model.AnswerEvent{
		{Type: model.AnswerEventChunk, Content: "Par"},
		{Type: model.AnswerEventError, Content: "Error generating answer"},
	}, got)
	require.Empty(t, convs.all())
}

func TestAsk_NoChunksCannedAnswer(t *testing.T) {
	chats := newFakeChats("c1")
	convs := &fakeConversations{}
	streamer := &fakeStreamer{fragments: []string{"should not run"}, failAfter: -1}
	svc := NewAnswerService(chats, convs, &fakeRetriever{}, streamer, 3)

	events, err := svc.Ask(context.Background(), "u1", "c1", "question")
	require.NoError(t, err)
	got := collect(t, events)
	require.Equal(t, []model.AnswerEvent{
		{Type: model.AnswerEventChunk, Content: "No relevant documents found."},
	}, got)
	require.False(t, streamer.wasCalled())
	require.Empty(t, convs.all())
}

func TestAsk_BlankQuestionRejected(t *testing.T) {
	svc := NewAnswerService(newFakeChats("c1"), &fakeConversations{}, &fakeRetriever{}, &fakeStreamer{failAfter: -1}, 3)
	_, err := svc.Ask(context.Background(), "u1", "c1", "   ")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestAsk_UnknownChatRejected(t *testing.T) {
	svc := NewAnswerService(newFakeChats("c1"), &fakeConversations{}, &fakeRetriever{}, &fakeStreamer{failAfter: -1}, 3)
	_, err := svc.Ask(context.Background(), "u1", "nope", "question")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestAsk_ContextChunksLimit(t *testing.T) {
	chats := newFakeChats("c1")
	var gotContexts []string
	streamer := &capturingStreamer{onStream: func(contexts []string) {
		gotContexts = contexts
	}}
	ranked := rankedChunks("one", "two", "three", "four", "five")
	svc := NewAnswerService(chats, &fakeConversations{}, &fakeRetriever{ranked: ranked}, streamer, 3)

	events, err := svc.Ask(context.Background(), "u1", "c1", "question")
	require.NoError(t, err)
	collect(t, events)
	require.Equal(t, []string{"one", "two", "three"}, gotContexts)
}

type capturingStreamer struct {
	onStream func(contexts []string)
}

func (c *capturingStreamer) Ready() error { return nil }

func (c *capturingStreamer) MaxInputChars() int { return 0 }
func (c *capturingStreamer) AnswerStream(ctx context.Context, question string, contexts []string, emit func(string) error) error {
	c.onStream(contexts)
	return emit("ok")
}
