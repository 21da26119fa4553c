package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/contractlens/internal/ai"
	"github.com/kiranshivaraju/contractlens/internal/api/response"
	"github.com/kiranshivaraju/contractlens/pkg/models"
)

const uploadFormField = "file"

// DocumentService defines what the document handlers depend on.
type DocumentService interface {
	CreateDocument(ctx context.Context, userID uuid.UUID, in ai.CreateDocumentInput) (*models.Document, error)
	UploadDocument(ctx context.Context, userID uuid.UUID, in ai.UploadInput) (*models.Document, error)
	ListDocuments(ctx context.Context, userID uuid.UUID) ([]*models.Document, error)
	GetDocument(ctx context.Context, userID, docID uuid.UUID) (*models.Document, error)
	GetStatus(ctx context.Context, userID, docID uuid.UUID) (models.StatusSnapshot, error)
	RenameDocument(ctx context.Context, userID, docID uuid.UUID, title string) (*models.Document, error)
	DeleteDocument(ctx context.Context, userID, docID uuid.UUID) error
	TriggerRetry(ctx context.Context, userID, docID uuid.UUID) (*models.Document, error)
}

// Documents serves /api/v1/documents.
type Documents struct {
	svc    DocumentService
	limits Limits
}

func NewDocuments(svc DocumentService, limits Limits) *Documents {
	return &Documents{svc: svc, limits: limits}
}

// Create handles POST /documents. Analysis continues after the response.
func (h *Documents) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if !decodeJSON(w, r, &req, h.limits.jsonBytes()) {
		return
	}

	doc, err := h.svc.CreateDocument(r.Context(), userID, ai.CreateDocumentInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Accepted(w, doc)
}

// Upload handles POST /documents/upload with a multipart "file" part and an
// optional "title" field.
func (h *Documents) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.limits.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.limits.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
				"Uploaded file exceeds the size limit", nil)
			return
		}
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid multipart form", nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "file is required", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Could not read uploaded file", nil)
		return
	}

	doc, err := h.svc.UploadDocument(r.Context(), userID, ai.UploadInput{
		Title:       r.FormValue("title"),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Accepted(w, doc)
}

func (h *Documents) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	docs, err := h.svc.ListDocuments(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	response.JSON(w, docs)
}

func (h *Documents) Get(w http.ResponseWriter, r *http.Request) {
	userID, docID, ok := documentParams(w, r)
	if !ok {
		return
	}
	doc, err := h.svc.GetDocument(r.Context(), userID, docID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, doc)
}

// Status handles GET /documents/{id}/status, the polling endpoint.
func (h *Documents) Status(w http.ResponseWriter, r *http.Request) {
	userID, docID, ok := documentParams(w, r)
	if !ok {
		return
	}
	snap, err := h.svc.GetStatus(r.Context(), userID, docID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, snap)
}

// Rename handles PATCH /documents/{id}. Only the title is mutable.
func (h *Documents) Rename(w http.ResponseWriter, r *http.Request) {
	userID, docID, ok := documentParams(w, r)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if !decodeJSON(w, r, &req, h.limits.jsonBytes()) {
		return
	}
	doc, err := h.svc.RenameDocument(r.Context(), userID, docID, req.Title)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, doc)
}

func (h *Documents) Delete(w http.ResponseWriter, r *http.Request) {
	userID, docID, ok := documentParams(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteDocument(r.Context(), userID, docID); err != nil {
		writeError(w, r, err)
		return
	}
	response.NoContent(w)
}

// Retry handles POST /documents/{id}/retry.
func (h *Documents) Retry(w http.ResponseWriter, r *http.Request) {
	userID, docID, ok := documentParams(w, r)
	if !ok {
		return
	}
	doc, err := h.svc.TriggerRetry(r.Context(), userID, docID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Accepted(w, doc)
}

func documentParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := requireUser(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	docID, ok := pathUUID(w, r, "id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return userID, docID, true
}
