package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type ManagerConfig struct {
	Timeout       int
	MaxInputChars int
}

// Manager binds the configured embedder and completer behind the
// prompt templates the service layer uses. It is constructed once at
// startup and shared across requests.
type Manager struct {
	embedder  IEmbedder
	completer ICompleter
	cfg       ManagerConfig
}

func NewManager(embedder IEmbedder, completer ICompleter, cfg ManagerConfig) *Manager {
	return &Manager{
		embedder:  embedder,
		completer: completer,
		cfg:       cfg,
	}
}

// Ready reports whether both sides of the pipeline are configured.
// Callers probe this before committing to a streaming response.
func (m *Manager) Ready() error {
	if m == nil || m.embedder == nil || m.completer == nil {
		return ErrUnavailable
	}
	return nil
}

func (m *Manager) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if m.embedder == nil {
		return nil, ErrUnavailable
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return m.embedder.Embed(ctx, text, taskType)
}

func (m *Manager) EmbedMany(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if m.embedder == nil {
		return nil, ErrUnavailable
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return m.embedder.EmbedMany(ctx, texts, taskType)
}

// AnswerStream builds the grounded prompt from the ranked context
// chunks and streams the completion, forwarding each fragment to emit
// in arrival order.
func (m *Manager) AnswerStream(ctx context.Context, question string, contexts []string, emit func(fragment string) error) error {
	if m.completer == nil {
		return ErrUnavailable
	}
	prompt := buildAnswerPrompt(question, contexts)
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return m.completer.CompleteStream(ctx, prompt, emit)
}

func buildAnswerPrompt(question string, contexts []string) string {
	return fmt.Sprintf(`You are an intelligent assistant. Use ONLY the following context to answer the question.
- Be concise.
- If the context does not contain the answer, say you don't know.

Context:
%s

Question: %s
Answer:`, strings.Join(contexts, "\n\n"), question)
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
	}
	return ctx, func() {}
}

func (m *Manager) MaxInputChars() int {
	return m.cfg.MaxInputChars
}

func (m *Manager) EmbeddingModelName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}
