package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kiranshivaraju/contractlens/internal/api/response"
	"github.com/kiranshivaraju/contractlens/pkg/models"
)

// Drafts serves /api/v1/drafts.
type Drafts struct {
	svc    ContractService
	limits Limits
}

func NewDrafts(svc ContractService, limits Limits) *Drafts {
	return &Drafts{svc: svc, limits: limits}
}

// GenerateBoth handles POST /drafts: one draft from each configured provider.
func (h *Drafts) GenerateBoth(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req models.DraftRequest
	if !decodeJSON(w, r, &req, h.limits.jsonBytes()) {
		return
	}
	set, err := h.svc.GenerateDrafts(r.Context(), userID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Created(w, set)
}

// Generate handles POST /drafts/{provider}.
func (h *Drafts) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req models.DraftRequest
	if !decodeJSON(w, r, &req, h.limits.jsonBytes()) {
		return
	}
	set, err := h.svc.GenerateDraft(r.Context(), userID, chi.URLParam(r, "provider"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Created(w, set)
}

// Select handles POST /drafts/{sessionID}/select. The body carries the
// provider whose draft becomes the contract content plus the contract
// metadata; a content field in the body is ignored.
func (h *Drafts) Select(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	sessionID, ok := pathUUID(w, r, "sessionID")
	if !ok {
		return
	}
	var req struct {
		contractRequest
		Provider string `json:"provider"`
	}
	if !decodeJSON(w, r, &req, h.limits.jsonBytes()) {
		return
	}
	if req.Provider == "" {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "provider is required", nil)
		return
	}

	c, err := h.svc.SelectDraft(r.Context(), userID, sessionID, req.Provider, req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Created(w, c)
}
