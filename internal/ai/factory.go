package ai

import (
	"context"
	"fmt"

	"github.com/kiranshivaraju/contractlens/internal/ai/anthropic"
	"github.com/kiranshivaraju/contractlens/internal/ai/gemini"
	"github.com/kiranshivaraju/contractlens/internal/ai/mock"
	"github.com/kiranshivaraju/contractlens/internal/ai/openai"
	"github.com/kiranshivaraju/contractlens/internal/config"
	"github.com/kiranshivaraju/contractlens/pkg/models"
)

// NewProvider constructs the named AI provider from config.
// Called at server startup, once per distinct provider.
func NewProvider(ctx context.Context, name string, cfg config.AIConfig) (models.AIProvider, error) {
	switch name {
	case "openai":
		return openai.NewProvider(cfg.OpenAI, cfg.MaxTokens), nil
	case "ollama":
		return openai.NewCompatibleProvider("ollama", cfg.Ollama.BaseURL, cfg.Ollama.Model, cfg.MaxTokens), nil
	case "vllm":
		return openai.NewCompatibleProvider("vllm", cfg.VLLM.BaseURL, cfg.VLLM.Model, cfg.MaxTokens), nil
	case "gemini":
		return gemini.NewProvider(ctx, cfg.Gemini, cfg.MaxTokens)
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic, cfg.MaxTokens), nil
	case "mock":
		return mock.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("%w %q: must be one of openai, gemini, anthropic, ollama, vllm, mock", ErrUnknownProvider, name)
	}
}

// Providers holds the provider used for analysis and the pair used for drafting.
type Providers struct {
	Analysis models.AIProvider
	Drafting [2]models.AIProvider
}

// NewProviders builds every provider the config names, sharing instances
// when the analysis provider is also a drafting provider.
func NewProviders(ctx context.Context, cfg config.AIConfig) (*Providers, error) {
	if len(cfg.DraftProviders) != 2 {
		return nil, fmt.Errorf("drafting needs exactly two providers, got %d", len(cfg.DraftProviders))
	}

	built := make(map[string]models.AIProvider)
	get := func(name string) (models.AIProvider, error) {
		if p, ok := built[name]; ok {
			return p, nil
		}
		p, err := NewProvider(ctx, name, cfg)
		if err != nil {
			return nil, err
		}
		built[name] = p
		return p, nil
	}

	analysisProvider, err := get(cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("analysis provider: %w", err)
	}

	ps := &Providers{Analysis: analysisProvider}
	for i, name := range cfg.DraftProviders {
		p, err := get(name)
		if err != nil {
			return nil, fmt.Errorf("draft provider: %w", err)
		}
		ps.Drafting[i] = p
	}
	return ps, nil
}
