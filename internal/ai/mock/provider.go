package mock

import (
	"context"
	"sync"

	"github.com/kiranshivaraju/contractlens/pkg/models"
)

// CannedAnalysis is the analysis payload NewMockProvider answers JSON requests with.
const CannedAnalysis = `Here is my assessment:
{"findings":[{"text":"Termination clause lacks a notice period","riskLevel":"high","suggestions":["Add a 30-day written notice requirement"]},` +
	`{"text":"Governing law is not specified","riskLevel":"medium","suggestions":["Name the governing jurisdiction"]}],` +
	`"riskLevel":"medium","riskScore":62,"recommendations":"Clarify termination and governing law before signing."}`

// CannedDraft is the contract body NewMockProvider answers drafting requests with.
const CannedDraft = "MUTUAL NON-DISCLOSURE AGREEMENT\n\n1. Purpose. The parties wish to exchange confidential information.\n2. Term. This agreement lasts two years."

// MockProvider satisfies models.AIProvider for testing and local development.
type MockProvider struct {
	Name_        string
	Model_       string
	GenerateFunc func(ctx context.Context, req models.GenerateRequest) (string, error)

	mu    sync.Mutex
	calls []models.GenerateRequest
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Model() string {
	if m.Model_ == "" {
		return "mock-v1"
	}
	return m.Model_
}

func (m *MockProvider) Generate(ctx context.Context, req models.GenerateRequest) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return "", nil
}

// Calls returns a copy of every request received so far.
func (m *MockProvider) Calls() []models.GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.GenerateRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// NewMockProvider returns a MockProvider with sensible default responses:
// CannedAnalysis for JSON requests, CannedDraft otherwise.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		GenerateFunc: func(_ context.Context, req models.GenerateRequest) (string, error) {
			if req.JSON {
				return CannedAnalysis, nil
			}
			return CannedDraft, nil
		},
	}
}

// NewStaticProvider returns a MockProvider that always answers with text.
func NewStaticProvider(name, text string) *MockProvider {
	return &MockProvider{
		Name_: name,
		GenerateFunc: func(_ context.Context, _ models.GenerateRequest) (string, error) {
			return text, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		GenerateFunc: func(_ context.Context, _ models.GenerateRequest) (string, error) {
			return "", models.NewProviderError("mock-failing", err)
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		GenerateFunc: func(ctx context.Context, _ models.GenerateRequest) (string, error) {
			<-ctx.Done()
			return "", models.NewProviderError("mock-timeout", models.ErrInferenceTimeout)
		},
	}
}

// Compile-time check that MockProvider implements AIProvider.
var _ models.AIProvider = (*MockProvider)(nil)
