package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable marks a provider that is not configured or cannot be
// reached; callers surface it as a service error before generation.
var ErrUnavailable = errors.New("ai provider unavailable")

// Embedding task types understood by providers that distinguish
// document-side and query-side embeddings.
const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
)

type ICompletionProvider interface {
	Name() string
	Complete(ctx context.Context, model string, prompt string) (string, error)
	// CompleteStream invokes emit once per fragment, in arrival order.
	// A non-nil error from emit cancels the stream.
	CompleteStream(ctx context.Context, model string, prompt string, emit func(fragment string) error) error
}

type IEmbedProvider interface {
	Name() string
	Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error)
	EmbedMany(ctx context.Context, model string, texts []string, taskType string) ([][]float32, error)
}

type ICompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteStream(ctx context.Context, prompt string, emit func(fragment string) error) error
	ModelName() string
}

type IEmbedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	EmbedMany(ctx context.Context, texts []string, taskType string) ([][]float32, error)
	ModelName() string
}

type completer struct {
	provider ICompletionProvider
	model    string
}

func NewCompleter(p ICompletionProvider, model string) ICompleter {
	return &completer{provider: p, model: model}
}

func (c *completer) Complete(ctx context.Context, prompt string) (string, error) {
	return c.provider.Complete(ctx, c.model, prompt)
}

func (c *completer) CompleteStream(ctx context.Context, prompt string, emit func(string) error) error {
	return c.provider.CompleteStream(ctx, c.model, prompt, emit)
}

func (c *completer) ModelName() string {
	return c.model
}

type embedder struct {
	provider IEmbedProvider
	model    string
}

func NewEmbedder(p IEmbedProvider, model string) IEmbedder {
	return &embedder{provider: p, model: model}
}

func (e *embedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return e.provider.Embed(ctx, e.model, text, taskType)
}

func (e *embedder) EmbedMany(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	return e.provider.EmbedMany(ctx, e.model, texts, taskType)
}

func (e *embedder) ModelName() string {
	return e.model
}

type CompletionFactory func(args interface{}) (ICompletionProvider, error)

type EmbedFactory func(args interface{}) (IEmbedProvider, error)

var (
	completionRegistry = map[string]CompletionFactory{}
	embedRegistry      = map[string]EmbedFactory{}
)

func Register(name string, factory CompletionFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	completionRegistry[key] = factory
}

func RegisterEmbed(name string, factory EmbedFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	embedRegistry[key] = factory
}

func NewProvider(name string, args interface{}) (ICompletionProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.completion provider is required")
	}
	factory := completionRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai completion provider: %s", name)
	}
	return factory(args)
}

func NewEmbedProvider(name string, args interface{}) (IEmbedProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.embedding provider is required")
	}
	factory := embedRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai embedding provider: %s", name)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("ai provider config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}
