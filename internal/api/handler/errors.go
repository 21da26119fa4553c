package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kiranshivaraju/contractlens/internal/ai"
	"github.com/kiranshivaraju/contractlens/internal/analysis"
	mw "github.com/kiranshivaraju/contractlens/internal/api/middleware"
	"github.com/kiranshivaraju/contractlens/internal/api/response"
	"github.com/kiranshivaraju/contractlens/internal/store"
	"github.com/kiranshivaraju/contractlens/pkg/logger"
)

// writeError maps a service error onto the API error envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *ai.ValidationError
	switch {
	case errors.As(err, &ve):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", ve.Error(),
			map[string]string{"field": ve.Field})
	case errors.Is(err, ai.ErrInvalidInput):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
	case errors.Is(err, ai.ErrUnknownProvider):
		response.Error(w, http.StatusBadRequest, "UNKNOWN_PROVIDER", err.Error(), nil)
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found", nil)
	case errors.Is(err, ai.ErrDraftSessionNotFound):
		response.Error(w, http.StatusNotFound, "DRAFT_SESSION_NOT_FOUND",
			"Draft session not found or expired", nil)
	case errors.Is(err, ai.ErrDraftNotFound):
		response.Error(w, http.StatusNotFound, "DRAFT_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ai.ErrNoContent):
		response.Error(w, http.StatusUnprocessableEntity, "NO_CONTENT",
			"Document has no content to analyze", nil)
	case errors.Is(err, ai.ErrQuotaExceeded):
		response.Error(w, http.StatusTooManyRequests, "AI_QUOTA_EXCEEDED",
			"The AI provider quota is exhausted", nil)
	case errors.Is(err, ai.ErrInferenceTimeout), errors.Is(err, context.DeadlineExceeded):
		response.Error(w, http.StatusGatewayTimeout, "AI_INFERENCE_TIMEOUT",
			"AI inference took too long and was cancelled", nil)
	case errors.Is(err, ai.ErrProviderUnavailable):
		response.Error(w, http.StatusBadGateway, "AI_PROVIDER_UNAVAILABLE",
			"The AI provider is not available", nil)
	case errors.Is(err, ai.ErrInvalidResponse), errors.Is(err, ai.ErrEmptyResponse), analysis.IsParseError(err):
		response.Error(w, http.StatusBadGateway, "AI_INVALID_RESPONSE",
			"The AI provider returned an unusable response", nil)
	case errors.Is(err, ai.ErrDispatcherClosed):
		response.Error(w, http.StatusServiceUnavailable, "SHUTTING_DOWN",
			"The server is shutting down", nil)
	default:
		logger.Error(r.Context(), "request failed", "error", err, "path", r.URL.Path)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}

const defaultMaxJSONBytes = 1 << 20

// Limits bounds request bodies.
type Limits struct {
	MaxUploadBytes int64
	MaxJSONBytes   int64
}

func (l Limits) jsonBytes() int64 {
	if l.MaxJSONBytes <= 0 {
		return defaultMaxJSONBytes
	}
	return l.MaxJSONBytes
}

// decodeJSON reads at most limit bytes of body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, limit int64) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE",
				"Request body exceeds the size limit", map[string]int64{"limit": limit})
			return false
		}
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return false
	}
	return true
}

func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := mw.GetUserID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
	}
	return userID, ok
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", name+" must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}
