package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type CompleterEntry struct {
	Name      string
	Completer ICompleter
}

type EmbedderEntry struct {
	Name     string
	Embedder IEmbedder
}

type groupCompleter struct {
	items []CompleterEntry
}

// NewGroupCompleter chains completers as fallbacks: each entry is
// tried in order until one succeeds.
func NewGroupCompleter(items []CompleterEntry) ICompleter {
	if len(items) == 0 {
		return nil
	}
	if len(items) == 1 {
		return items[0].Completer
	}
	return &groupCompleter{items: items}
}

func (g *groupCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for i, item := range g.items {
		if item.Completer == nil {
			continue
		}
		res, err := item.Completer.Complete(ctx, prompt)
		if err == nil {
			return res, nil
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("completer failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
	}
	if lastErr == nil {
		return "", fmt.Errorf("completer not configured")
	}
	return "", lastErr
}

func (g *groupCompleter) CompleteStream(ctx context.Context, prompt string, emit func(string) error) error {
	// Fallback only makes sense before the first fragment reaches the
	// caller; once emit has fired the stream is committed to that
	// backend and its error is final.
	var lastErr error
	for i, item := range g.items {
		if item.Completer == nil {
			continue
		}
		started := false
		err := item.Completer.CompleteStream(ctx, prompt, func(fragment string) error {
			started = true
			return emit(fragment)
		})
		if err == nil {
			return nil
		}
		if started {
			return err
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("completer stream failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
	}
	if lastErr == nil {
		return fmt.Errorf("completer not configured")
	}
	return lastErr
}

func (g *groupCompleter) ModelName() string {
	names := make([]string, 0, len(g.items))
	for _, item := range g.items {
		if item.Name == "" {
			continue
		}
		names = append(names, item.Name)
	}
	return strings.Join(names, "|")
}

type groupEmbedder struct {
	items []EmbedderEntry
}

// NewGroupEmbedder chains embedders as fallbacks. Mixing embedders of
// different dimensionality in one chain breaks similarity comparison;
// deployments must chain same-dimension models only.
func NewGroupEmbedder(items []EmbedderEntry) IEmbedder {
	if len(items) == 0 {
		return nil
	}
	if len(items) == 1 {
		return items[0].Embedder
	}
	return &groupEmbedder{items: items}
}

func (g *groupEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	var lastErr error
	for i, item := range g.items {
		if item.Embedder == nil {
			continue
		}
		res, err := item.Embedder.Embed(ctx, text, taskType)
		if err == nil {
			return res, nil
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("embedder failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
	}
	if lastErr == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	return nil, lastErr
}

func (g *groupEmbedder) EmbedMany(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	var lastErr error
	for i, item := range g.items {
		if item.Embedder == nil {
			continue
		}
		res, err := item.Embedder.EmbedMany(ctx, texts, taskType)
		if err == nil {
			return res, nil
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("embedder failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
	}
	if lastErr == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	return nil, lastErr
}

func (g *groupEmbedder) ModelName() string {
	names := make([]string, 0, len(g.items))
	for _, item := range g.items {
		if item.Name == "" {
			continue
		}
		names = append(names, item.Name)
	}
	return strings.Join(names, "|")
}
