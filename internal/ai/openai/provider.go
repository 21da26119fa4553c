// Package openai implements models.AIProvider for chat-completion style APIs.
// Ollama and vLLM expose the same wire format and are served by this package
// through a base URL override.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/contractlens/internal/config"
	"github.com/kiranshivaraju/contractlens/pkg/models"
	openai "github.com/sashabaranov/go-openai"
)

const defaultMaxTokens = 4096

// Provider implements models.AIProvider using the chat completions endpoint.
type Provider struct {
	client    *openai.Client
	name      string
	model     string
	maxTokens int
	jsonMode  bool
}

// NewProvider creates a provider against api.openai.com, or cfg.BaseURL when set.
func NewProvider(cfg config.OpenAIConfig, maxTokens int) *Provider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return newProvider("openai", clientCfg, cfg.Model, maxTokens, true)
}

// NewCompatibleProvider creates a provider for an OpenAI-compatible server
// such as Ollama or vLLM. baseURL is the server root without the /v1 suffix.
func NewCompatibleProvider(name, baseURL, model string, maxTokens int) *Provider {
	clientCfg := openai.DefaultConfig(name)
	clientCfg.BaseURL = strings.TrimRight(baseURL, "/") + "/v1"
	return newProvider(name, clientCfg, model, maxTokens, false)
}

func newProvider(name string, clientCfg openai.ClientConfig, model string, maxTokens int, jsonMode bool) *Provider {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Provider{
		client:    openai.NewClientWithConfig(clientCfg),
		name:      name,
		model:     model,
		maxTokens: maxTokens,
		jsonMode:  jsonMode,
	}
}

func (p *Provider) Name() string  { return p.name }
func (p *Provider) Model() string { return p.model }

// Generate sends a system/user message pair and returns the first choice.
func (p *Provider) Generate(ctx context.Context, in models.GenerateRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if in.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: in.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: in.Prompt})

	req := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: messages,
	}
	if in.JSON && p.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	maxTokens := p.maxTokens
	if in.MaxTokens > 0 {
		maxTokens = in.MaxTokens
	}
	// Reasoning models reject max_tokens.
	if isReasoningModel(p.model) {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", models.NewProviderError(p.name, classifyError(ctx, err))
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", models.NewProviderError(p.name, models.ErrEmptyResponse)
	}

	return resp.Choices[0].Message.Content, nil
}

func isReasoningModel(model string) bool {
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// classifyError maps client errors to the shared provider sentinels.
func classifyError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", models.ErrQuotaExceeded, err)
	case status >= 500, status == http.StatusUnauthorized, status == http.StatusForbidden:
		return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	case status != 0:
		return fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}
	return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
}

var _ models.AIProvider = (*Provider)(nil)
