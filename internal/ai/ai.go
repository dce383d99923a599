package ai

import (
	"context"
	"errors"
	"fmt"

	"bookkeeping-go/internal/config"
)

// ErrNotConfigured means no AI credentials are available. Callers treat the
// capability as absent and use their deterministic fallbacks.
var ErrNotConfigured = errors.New("ai provider not configured")

// Request is a single chat completion.
type Request struct {
	System string
	Prompt string
	// JSON asks the model for a JSON object reply.
	JSON bool
}

type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Provider is an external model service offering both capabilities.
type Provider interface {
	Completer
	Embedder
	Name() string
}

// NewProvider builds the provider selected by cfg.AIProvider. With an empty
// selection the first provider that has a key wins.
func NewProvider(ctx context.Context, cfg *config.Config) (Provider, error) {
	switch cfg.AIProvider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, ErrNotConfigured
		}
		return NewOpenAIClient(cfg), nil
	case "gemini":
		if cfg.GeminiKey == "" {
			return nil, ErrNotConfigured
		}
		return NewGeminiClient(ctx, cfg)
	case "":
		switch {
		case cfg.OpenAIKey != "":
			return NewOpenAIClient(cfg), nil
		case cfg.GeminiKey != "":
			return NewGeminiClient(ctx, cfg)
		}
		return nil, ErrNotConfigured
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.AIProvider)
	}
}
