// Package gemini implements models.AIProvider for the generative-content API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/contractlens/internal/config"
	"github.com/kiranshivaraju/contractlens/pkg/models"
	"google.golang.org/genai"
)

const defaultMaxTokens = 4096

// Provider implements models.AIProvider using the Gemini API backend.
type Provider struct {
	client    *genai.Client
	model     string
	maxTokens int
}

// NewProvider creates the underlying genai client. ctx is only used while
// resolving credentials.
func NewProvider(ctx context.Context, cfg config.GeminiConfig, maxTokens int) (*Provider, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Provider{client: client, model: cfg.Model, maxTokens: maxTokens}, nil
}

func (p *Provider) Name() string  { return "gemini" }
func (p *Provider) Model() string { return p.model }

// Generate sends the prompt as a single user turn with the system prompt as
// the system instruction, and returns the concatenated candidate text.
func (p *Provider) Generate(ctx context.Context, in models.GenerateRequest) (string, error) {
	maxTokens := p.maxTokens
	if in.MaxTokens > 0 {
		maxTokens = in.MaxTokens
	}

	gc := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}
	if in.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(in.System, genai.RoleUser)
	}
	if in.JSON {
		gc.ResponseMIMEType = "application/json"
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(in.Prompt), gc)
	if err != nil {
		return "", models.NewProviderError(p.Name(), classifyError(ctx, err))
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", models.NewProviderError(p.Name(), models.ErrEmptyResponse)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", models.NewProviderError(p.Name(), models.ErrEmptyResponse)
	}
	return text, nil
}

func classifyError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", models.ErrQuotaExceeded, err)
		case apiErr.Code >= 500, apiErr.Code == http.StatusUnauthorized, apiErr.Code == http.StatusForbidden:
			return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
		default:
			return fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}
	return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
}

var _ models.AIProvider = (*Provider)(nil)
