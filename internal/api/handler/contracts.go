package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/contractlens/internal/ai"
	"github.com/kiranshivaraju/contractlens/internal/api/response"
	"github.com/kiranshivaraju/contractlens/internal/prompt"
	"github.com/kiranshivaraju/contractlens/internal/store"
	"github.com/kiranshivaraju/contractlens/pkg/models"
)

// ContractService defines what the contract and draft handlers depend on.
type ContractService interface {
	CreateContract(ctx context.Context, userID uuid.UUID, in ai.ContractInput) (*models.Contract, error)
	ListContracts(ctx context.Context, userID uuid.UUID) ([]*models.Contract, error)
	GetContract(ctx context.Context, userID, id uuid.UUID) (*models.Contract, error)
	UpdateContract(ctx context.Context, userID, id uuid.UUID, patch store.ContractUpdate) (*models.Contract, error)
	DeleteContract(ctx context.Context, userID, id uuid.UUID) error
	AssessContract(ctx context.Context, userID, id uuid.UUID) (*models.Contract, error)

	GenerateDrafts(ctx context.Context, userID uuid.UUID, req models.DraftRequest) (*models.DraftSet, error)
	GenerateDraft(ctx context.Context, userID uuid.UUID, provider string, req models.DraftRequest) (*models.DraftSet, error)
	SelectDraft(ctx context.Context, userID, sessionID uuid.UUID, provider string, in ai.ContractInput) (*models.Contract, error)
	DraftProviders() []string
	ContractTypes() []prompt.ContractType
}

// contractRequest is the body of POST /contracts and, with pointer
// semantics, PATCH /contracts/{id}.
type contractRequest struct {
	Title              *string `json:"title"`
	ContractType       *string `json:"contract_type"`
	FirstPartyName     *string `json:"first_party_name"`
	SecondPartyName    *string `json:"second_party_name"`
	Content            *string `json:"content"`
	Jurisdiction       *string `json:"jurisdiction"`
	KeyTerms           *string `json:"key_terms"`
	Description        *string `json:"description"`
	FirstPartyAddress  *string `json:"first_party_address"`
	SecondPartyAddress *string `json:"second_party_address"`
	Intensity          *string `json:"intensity"`
}

func (c contractRequest) input() ai.ContractInput {
	return ai.ContractInput{
		Title:              deref(c.Title),
		ContractType:       deref(c.ContractType),
		FirstPartyName:     deref(c.FirstPartyName),
		SecondPartyName:    deref(c.SecondPartyName),
		Content:            deref(c.Content),
		Jurisdiction:       c.Jurisdiction,
		KeyTerms:           c.KeyTerms,
		Description:        c.Description,
		FirstPartyAddress:  c.FirstPartyAddress,
		SecondPartyAddress: c.SecondPartyAddress,
		Intensity:          c.Intensity,
	}
}

func (c contractRequest) patch() store.ContractUpdate {
	return store.ContractUpdate{
		Title:              c.Title,
		ContractType:       c.ContractType,
		FirstPartyName:     c.FirstPartyName,
		SecondPartyName:    c.SecondPartyName,
		Content:            c.Content,
		Jurisdiction:       c.Jurisdiction,
		KeyTerms:           c.KeyTerms,
		Description:        c.Description,
		FirstPartyAddress:  c.FirstPartyAddress,
		SecondPartyAddress: c.SecondPartyAddress,
		Intensity:          c.Intensity,
	}
}

// Contracts serves /api/v1/contracts.
type Contracts struct {
	svc    ContractService
	limits Limits
}

func NewContracts(svc ContractService, limits Limits) *Contracts {
	return &Contracts{svc: svc, limits: limits}
}

func (h *Contracts) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req contractRequest
	if !decodeJSON(w, r, &req, h.limits.jsonBytes()) {
		return
	}
	c, err := h.svc.CreateContract(r.Context(), userID, req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Created(w, c)
}

func (h *Contracts) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	contracts, err := h.svc.ListContracts(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if contracts == nil {
		contracts = []*models.Contract{}
	}
	response.JSON(w, contracts)
}

// Types handles GET /contracts/types, the catalogue the drafting form offers.
func (h *Contracts) Types(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, map[string]any{
		"contract_types": h.svc.ContractTypes(),
		"providers":      h.svc.DraftProviders(),
	})
}

func (h *Contracts) Get(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := contractParams(w, r)
	if !ok {
		return
	}
	c, err := h.svc.GetContract(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, c)
}

// Update handles PATCH /contracts/{id}. Omitted fields are left unchanged.
func (h *Contracts) Update(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := contractParams(w, r)
	if !ok {
		return
	}
	var req contractRequest
	if !decodeJSON(w, r, &req, h.limits.jsonBytes()) {
		return
	}
	c, err := h.svc.UpdateContract(r.Context(), userID, id, req.patch())
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, c)
}

func (h *Contracts) Delete(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := contractParams(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteContract(r.Context(), userID, id); err != nil {
		writeError(w, r, err)
		return
	}
	response.NoContent(w)
}

// Assess handles POST /contracts/{id}/assess. It blocks until the provider
// answers or the inference timeout fires.
func (h *Contracts) Assess(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := contractParams(w, r)
	if !ok {
		return
	}
	c, err := h.svc.AssessContract(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, c)
}

func contractParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := requireUser(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return userID, id, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
