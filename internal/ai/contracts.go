package ai

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/contractlens/internal/analysis"
	"github.com/kiranshivaraju/contractlens/internal/cache"
	"github.com/kiranshivaraju/contractlens/internal/prompt"
	"github.com/kiranshivaraju/contractlens/internal/store"
	"github.com/kiranshivaraju/contractlens/pkg/logger"
	"github.com/kiranshivaraju/contractlens/pkg/models"
)

const draftSessionTTL = 30 * time.Minute

// ContractInput is a finalized contract as submitted by the client.
type ContractInput struct {
	Title              string
	ContractType       string
	FirstPartyName     string
	SecondPartyName    string
	Content            string
	Jurisdiction       *string
	KeyTerms           *string
	Description        *string
	FirstPartyAddress  *string
	SecondPartyAddress *string
	Intensity          *string
}

// ContractService persists contracts and runs drafting and risk assessment.
type ContractService struct {
	provider models.AIProvider
	drafter  *Drafter
	prompts  *prompt.Catalog
	store    store.Store
	cache    cache.Cache
	opts     AnalysisOptions
}

func NewContractService(provider models.AIProvider, drafter *Drafter, prompts *prompt.Catalog,
	st store.Store, ca cache.Cache, opts AnalysisOptions) *ContractService {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultInferenceTimeout
	}
	if opts.MaxContentBytes <= 0 {
		opts.MaxContentBytes = defaultMaxContentBytes
	}
	return &ContractService{
		provider: provider,
		drafter:  drafter,
		prompts:  prompts,
		store:    st,
		cache:    ca,
		opts:     opts,
	}
}

// DraftProviders lists the providers drafts can be requested from.
func (s *ContractService) DraftProviders() []string {
	return s.drafter.Providers()
}

// ContractTypes lists the contract types the drafting prompts know about.
func (s *ContractService) ContractTypes() []prompt.ContractType {
	return s.prompts.ContractTypes()
}

// CreateContract validates and stores a finalized contract.
func (s *ContractService) CreateContract(ctx context.Context, userID uuid.UUID, in ContractInput) (*models.Contract, error) {
	c, err := newContract(userID, in)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateContract(ctx, c); err != nil {
		return nil, &PersistenceError{Op: "create contract", Err: err}
	}
	logger.Info(ctx, "contract created", "contract_id", c.ID, "contract_type", c.ContractType)
	return c, nil
}

// GenerateDrafts drafts the contract with both providers and keeps the
// result as a draft session the user can select from.
func (s *ContractService) GenerateDrafts(ctx context.Context, userID uuid.UUID, req models.DraftRequest) (*models.DraftSet, error) {
	if err := validateDraftRequest(req); err != nil {
		return nil, err
	}
	set, err := s.drafter.GenerateBoth(ctx, req)
	if err != nil {
		logger.Warn(ctx, "draft generation failed", "providers", s.drafter.Providers(), "error", err)
		return nil, err
	}
	return s.saveSession(ctx, userID, set.Drafts)
}

// GenerateDraft drafts the contract with a single provider.
func (s *ContractService) GenerateDraft(ctx context.Context, userID uuid.UUID, provider string, req models.DraftRequest) (*models.DraftSet, error) {
	if err := validateDraftRequest(req); err != nil {
		return nil, err
	}
	draft, err := s.drafter.Generate(ctx, provider, req)
	if err != nil {
		logger.Warn(ctx, "draft generation failed", "provider", provider, "error", err)
		return nil, err
	}
	return s.saveSession(ctx, userID, []models.Draft{draft})
}

func (s *ContractService) saveSession(ctx context.Context, userID uuid.UUID, drafts []models.Draft) (*models.DraftSet, error) {
	set := &models.DraftSet{
		SessionID: uuid.New(),
		UserID:    userID,
		Drafts:    drafts,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.cache.SaveDraftSet(ctx, set, draftSessionTTL); err != nil {
		return nil, &PersistenceError{Op: "save draft session", Err: err}
	}
	return set, nil
}

// SelectDraft persists the chosen draft of a session as a new contract and
// closes the session. The draft replaces any content in the input.
func (s *ContractService) SelectDraft(ctx context.Context, userID, sessionID uuid.UUID, provider string, in ContractInput) (*models.Contract, error) {
	set, found, err := s.cache.GetDraftSet(ctx, sessionID)
	if err != nil {
		return nil, &PersistenceError{Op: "load draft session", Err: err}
	}
	if !found || set.UserID != userID {
		return nil, ErrDraftSessionNotFound
	}
	draft, ok := set.Find(provider)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDraftNotFound, provider)
	}

	in.Content = draft.Content
	c, err := s.CreateContract(ctx, userID, in)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Delete(ctx, cache.DraftSessionKey(sessionID)); err != nil {
		logger.Warn(ctx, "failed to close draft session", "session_id", sessionID, "error", err)
	}
	return c, nil
}

// AssessContract runs the risk analysis over a contract and stores its
// risk level and score.
func (s *ContractService) AssessContract(ctx context.Context, userID, id uuid.UUID) (*models.Contract, error) {
	c, err := s.store.GetContract(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	req, err := s.prompts.Analysis(c.Title, truncateContent(c.Content, s.opts.MaxContentBytes))
	if err != nil {
		return nil, err
	}
	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	raw, err := s.provider.Generate(callCtx, req)
	cancel()
	if err == nil && isBlank(raw) {
		err = models.ErrEmptyResponse
	}
	if err != nil {
		return nil, models.NewProviderError(s.provider.Name(), err)
	}

	result, err := analysis.ExtractAndNormalize(raw, s.opts.Mode)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateContract(ctx, id, userID, store.WithRiskAssessment(result.RiskLevel, result.RiskScore)); err != nil {
		return nil, &PersistenceError{Op: "record contract assessment", Err: err}
	}
	logger.Info(ctx, "contract assessed", "contract_id", id, "risk_level", result.RiskLevel, "risk_score", result.RiskScore)
	return s.store.GetContract(ctx, id, userID)
}

func (s *ContractService) GetContract(ctx context.Context, userID, id uuid.UUID) (*models.Contract, error) {
	return s.store.GetContract(ctx, id, userID)
}

func (s *ContractService) ListContracts(ctx context.Context, userID uuid.UUID) ([]*models.Contract, error) {
	return s.store.ListContracts(ctx, userID)
}

// UpdateContract applies a partial update. Risk fields are computed by
// AssessContract and are ignored here.
func (s *ContractService) UpdateContract(ctx context.Context, userID, id uuid.UUID, patch store.ContractUpdate) (*models.Contract, error) {
	patch.RiskLevel = nil
	patch.RiskScore = nil

	required := []struct {
		field string
		value *string
	}{
		{"title", patch.Title},
		{"contract_type", patch.ContractType},
		{"first_party_name", patch.FirstPartyName},
		{"second_party_name", patch.SecondPartyName},
		{"content", patch.Content},
	}
	for _, r := range required {
		if r.value != nil && strings.TrimSpace(*r.value) == "" {
			return nil, &ValidationError{Field: r.field, Message: "must not be empty"}
		}
	}
	if patch.Title != nil {
		title, err := validateTitle(*patch.Title)
		if err != nil {
			return nil, err
		}
		patch.Title = &title
	}
	if patch.Intensity != nil {
		if err := validateIntensity(*patch.Intensity); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateContract(ctx, id, userID, store.WithContractFields(patch)); err != nil {
		return nil, err
	}
	return s.store.GetContract(ctx, id, userID)
}

func (s *ContractService) DeleteContract(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.store.DeleteContract(ctx, id, userID); err != nil {
		return err
	}
	logger.Info(ctx, "contract deleted", "contract_id", id)
	return nil
}

func newContract(userID uuid.UUID, in ContractInput) (*models.Contract, error) {
	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, err
	}
	required := []struct {
		field string
		value string
	}{
		{"contract_type", in.ContractType},
		{"first_party_name", in.FirstPartyName},
		{"second_party_name", in.SecondPartyName},
		{"content", in.Content},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, &ValidationError{Field: r.field, Message: "is required"}
		}
	}
	if in.Intensity != nil {
		if err := validateIntensity(*in.Intensity); err != nil {
			return nil, err
		}
	}

	return &models.Contract{
		ID:                 uuid.New(),
		UserID:             userID,
		Title:              title,
		ContractType:       strings.TrimSpace(in.ContractType),
		FirstPartyName:     strings.TrimSpace(in.FirstPartyName),
		SecondPartyName:    strings.TrimSpace(in.SecondPartyName),
		Content:            in.Content,
		Jurisdiction:       optional(in.Jurisdiction),
		KeyTerms:           optional(in.KeyTerms),
		Description:        optional(in.Description),
		FirstPartyAddress:  optional(in.FirstPartyAddress),
		SecondPartyAddress: optional(in.SecondPartyAddress),
		Intensity:          optional(in.Intensity),
	}, nil
}

func validateDraftRequest(req models.DraftRequest) error {
	if _, err := validateTitle(req.Title); err != nil {
		return err
	}
	required := []struct {
		field string
		value string
	}{
		{"contract_type", req.ContractType},
		{"first_party_name", req.FirstPartyName},
		{"second_party_name", req.SecondPartyName},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field, Message: "is required"}
		}
	}
	// Zero means unset; the draft prompt substitutes the default level.
	if req.Intensity < 0 || req.Intensity > 10 {
		return &ValidationError{
			Field:   "intensity",
			Message: fmt.Sprintf("must be between 1 and 10, or omitted for the default of %d", prompt.DefaultIntensity),
		}
	}
	return nil
}

func validateIntensity(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > 10 {
		return &ValidationError{Field: "intensity", Message: "must be between 1 and 10"}
	}
	return nil
}

// optional trims s and maps blank values to nil.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
