// Package anthropic implements models.AIProvider against the Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kiranshivaraju/contractlens/internal/config"
	"github.com/kiranshivaraju/contractlens/pkg/models"
)

const defaultMaxTokens = 4096

// Provider implements models.AIProvider using the official Anthropic SDK.
type Provider struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewProvider creates a provider. Deadlines come from the caller's context
// and the SDK does not retry, so one Generate call is one request.
func NewProvider(cfg config.AnthropicConfig, maxTokens int) *Provider {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	return &Provider{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: maxTokens,
	}
}

func (p *Provider) Name() string  { return "anthropic" }
func (p *Provider) Model() string { return p.model }

// Generate sends a single user message and joins the returned text blocks.
func (p *Provider) Generate(ctx context.Context, in models.GenerateRequest) (string, error) {
	maxTokens := p.maxTokens
	if in.MaxTokens > 0 {
		maxTokens = in.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(in.Prompt)),
		},
	}
	if in.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: in.System}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", models.NewProviderError(p.Name(), classifyError(ctx, err))
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", models.NewProviderError(p.Name(), models.ErrEmptyResponse)
	}
	return sb.String(), nil
}

// classifyError maps SDK and transport errors to sentinel errors.
func classifyError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch code := apiErr.StatusCode; {
		case code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: status %d: %v", models.ErrQuotaExceeded, code, err)
		case code >= 500, code == http.StatusUnauthorized, code == http.StatusForbidden:
			return fmt.Errorf("%w: status %d: %v", models.ErrProviderUnavailable, code, err)
		default:
			return fmt.Errorf("%w: status %d: %v", models.ErrInvalidResponse, code, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
		}
		return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}
	// The request reached the API but the reply could not be decoded.
	return fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
}

var _ models.AIProvider = (*Provider)(nil)
