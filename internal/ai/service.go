package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/contractlens/internal/analysis"
	"github.com/kiranshivaraju/contractlens/internal/cache"
	"github.com/kiranshivaraju/contractlens/internal/extract"
	"github.com/kiranshivaraju/contractlens/internal/prompt"
	"github.com/kiranshivaraju/contractlens/internal/storage"
	"github.com/kiranshivaraju/contractlens/internal/store"
	"github.com/kiranshivaraju/contractlens/pkg/logger"
	"github.com/kiranshivaraju/contractlens/pkg/models"
)

const (
	statusTTL          = 30 * time.Minute
	maxTitleLen        = 255
	maxErrorMessageLen = 500
	truncationMarker   = "\n\n[... document truncated ...]"

	progressGenerated  = 40
	progressNormalized = 80

	defaultInferenceTimeout = 60 * time.Second
	defaultMaxContentBytes  = 100_000
)

// AnalysisOptions tunes an AnalysisService. Zero values take the defaults.
type AnalysisOptions struct {
	Timeout         time.Duration
	MaxContentBytes int
	Mode            analysis.Mode
}

// CreateDocumentInput is a pasted document.
type CreateDocumentInput struct {
	Title   string
	Content string
}

// UploadInput is an uploaded file.
type UploadInput struct {
	Title       string
	Filename    string
	ContentType string
	Data        []byte
}

// AnalysisService drives documents through analyzing → completed | error.
type AnalysisService struct {
	provider   models.AIProvider
	prompts    *prompt.Catalog
	store      store.Store
	cache      cache.Cache
	objects    storage.ObjectStore
	dispatcher *Dispatcher
	opts       AnalysisOptions
}

// NewAnalysisService creates a new AnalysisService. objects may be nil when
// object storage is not configured.
func NewAnalysisService(provider models.AIProvider, prompts *prompt.Catalog, st store.Store, ca cache.Cache,
	objects storage.ObjectStore, dispatcher *Dispatcher, opts AnalysisOptions) *AnalysisService {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultInferenceTimeout
	}
	if opts.MaxContentBytes <= 0 {
		opts.MaxContentBytes = defaultMaxContentBytes
	}
	return &AnalysisService{
		provider:   provider,
		prompts:    prompts,
		store:      st,
		cache:      ca,
		objects:    objects,
		dispatcher: dispatcher,
		opts:       opts,
	}
}

// CreateDocument stores a pasted document as analyzing and hands the
// analysis to the dispatcher. It returns without waiting for the result.
func (s *AnalysisService) CreateDocument(ctx context.Context, userID uuid.UUID, in CreateDocumentInput) (*models.Document, error) {
	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, &ValidationError{Field: "content", Message: "is required"}
	}

	doc := newAnalyzingDocument(uuid.New(), userID, title, in.Content)
	if err := s.insertAndDispatch(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// UploadDocument extracts the text of an uploaded file, keeps the original
// in object storage when configured, then proceeds like CreateDocument.
func (s *AnalysisService) UploadDocument(ctx context.Context, userID uuid.UUID, in UploadInput) (*models.Document, error) {
	if len(in.Data) == 0 {
		return nil, &ValidationError{Field: "file", Message: "is empty"}
	}
	text, err := extract.Text(ctx, in.Data, in.ContentType, in.Filename)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupportedType) || errors.Is(err, extract.ErrNoText) || errors.Is(err, extract.ErrTooLarge) {
			return nil, &ValidationError{Field: "file", Message: err.Error()}
		}
		return nil, &ValidationError{Field: "file", Message: "could not be read: " + sanitizeMessage(err.Error())}
	}

	rawTitle := in.Title
	if strings.TrimSpace(rawTitle) == "" {
		base := filepath.Base(in.Filename)
		rawTitle = strings.TrimSuffix(base, filepath.Ext(base))
	}
	title, err := validateTitle(rawTitle)
	if err != nil {
		return nil, err
	}

	doc := newAnalyzingDocument(uuid.New(), userID, title, text)

	if s.objects != nil {
		key := storage.ObjectKey(userID, doc.ID, in.Filename)
		if err := s.objects.Put(ctx, key, bytes.NewReader(in.Data), int64(len(in.Data)), in.ContentType); err != nil {
			return nil, &PersistenceError{Op: "store original file", Err: err}
		}
		doc.FileKey = &key
	}

	if err := s.insertAndDispatch(ctx, doc); err != nil {
		if doc.FileKey != nil {
			if derr := s.objects.Delete(context.WithoutCancel(ctx), *doc.FileKey); derr != nil {
				logger.Warn(ctx, "failed to remove orphaned upload", "key", *doc.FileKey, "error", derr)
			}
		}
		return nil, err
	}
	return doc, nil
}

func (s *AnalysisService) insertAndDispatch(ctx context.Context, doc *models.Document) error {
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return &PersistenceError{Op: "create document", Err: err}
	}
	s.mirrorStatus(ctx, doc)

	logger.Info(ctx, "document created", "document_id", doc.ID, "content_bytes", len(*doc.Content))

	return s.dispatch(ctx, doc.UserID, doc.ID, doc.Title, *doc.Content)
}

// dispatch hands process to the dispatcher. If the dispatcher refuses the
// task the document is failed right away instead of staying analyzing.
func (s *AnalysisService) dispatch(ctx context.Context, userID, docID uuid.UUID, title, content string) error {
	requestID := logger.RequestID(ctx)
	err := s.dispatcher.Submit("analyze:"+docID.String(), func(taskCtx context.Context) {
		taskCtx = logger.WithUserID(logger.WithRequestID(taskCtx, requestID), userID.String())
		if err := s.process(taskCtx, userID, docID, title, content); err != nil {
			logger.Error(taskCtx, "analysis failed to persist", "document_id", docID, "error", err)
		}
	})
	if err != nil {
		logger.Warn(ctx, "analysis not dispatched", "document_id", docID, "error", err)
		if ferr := s.fail(ctx, userID, docID, err); ferr != nil {
			return ferr
		}
		return err
	}
	return nil
}

// Analyze runs one full analysis pass over content and records a terminal
// status. Provider and parse failures are stored on the document; the
// returned error is non-nil only for a *PersistenceError.
func (s *AnalysisService) Analyze(ctx context.Context, userID, docID uuid.UUID, content string) error {
	if err := s.markAnalyzing(ctx, userID, docID); err != nil {
		return err
	}
	doc, err := s.store.GetDocument(ctx, docID, userID)
	if err != nil {
		return &PersistenceError{Op: "load document", Err: err}
	}
	return s.process(ctx, userID, docID, doc.Title, content)
}

// RetryAnalysis re-runs the analysis synchronously on the stored content.
func (s *AnalysisService) RetryAnalysis(ctx context.Context, userID, docID uuid.UUID) error {
	doc, err := s.loadRetryable(ctx, userID, docID)
	if err != nil {
		return err
	}
	return s.Analyze(ctx, userID, docID, *doc.Content)
}

// TriggerRetry reopens the document and re-runs the analysis in the background.
func (s *AnalysisService) TriggerRetry(ctx context.Context, userID, docID uuid.UUID) (*models.Document, error) {
	doc, err := s.loadRetryable(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	if err := s.markAnalyzing(ctx, userID, docID); err != nil {
		return nil, err
	}

	if err := s.dispatch(ctx, userID, docID, doc.Title, *doc.Content); err != nil {
		return nil, err
	}

	doc, err = s.store.GetDocument(ctx, docID, userID)
	if err != nil {
		return nil, &PersistenceError{Op: "load document", Err: err}
	}
	return doc, nil
}

func (s *AnalysisService) loadRetryable(ctx context.Context, userID, docID uuid.UUID) (*models.Document, error) {
	doc, err := s.store.GetDocument(ctx, docID, userID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if !doc.HasContent() {
		return nil, ErrNoContent
	}
	return doc, nil
}

func (s *AnalysisService) markAnalyzing(ctx context.Context, userID, docID uuid.UUID) error {
	err := s.store.UpdateDocument(ctx, docID, userID,
		store.WithStatus(models.DocumentStatusAnalyzing),
		store.WithResetAnalysis())
	if err != nil {
		return &PersistenceError{Op: "mark analyzing", Err: err}
	}
	zero := 0
	s.setStatus(ctx, models.StatusSnapshot{
		ID:        docID,
		UserID:    userID,
		Status:    models.DocumentStatusAnalyzing,
		Progress:  &zero,
		UpdatedAt: time.Now().UTC(),
	})
	return nil
}

// process runs generate → normalize → terminal write on a document that is
// already analyzing.
func (s *AnalysisService) process(ctx context.Context, userID, docID uuid.UUID, title, content string) error {
	log := logger.WithContext(ctx).With("document_id", docID, "provider", s.provider.Name())
	start := time.Now()

	raw, err := s.generate(ctx, title, content)
	if err != nil {
		log.Warn("analysis provider call failed", "error", err)
		return s.fail(ctx, userID, docID, err)
	}
	s.advance(ctx, userID, docID, progressGenerated)

	result, err := analysis.ExtractAndNormalize(raw, s.opts.Mode)
	if err != nil {
		log.Warn("analysis response could not be parsed", "error", err, "response_bytes", len(raw))
		return s.fail(ctx, userID, docID, err)
	}
	s.advance(ctx, userID, docID, progressNormalized)

	err = s.store.UpdateDocument(ctx, docID, userID,
		store.WithStatus(models.DocumentStatusCompleted),
		store.WithAnalysisResult(result))
	if err != nil {
		// Best effort so the document does not stay analyzing.
		_ = s.fail(ctx, userID, docID, errors.New("failed to save analysis result"))
		return &PersistenceError{Op: "record analysis result", Err: err}
	}
	s.setStatus(ctx, models.StatusSnapshot{
		ID:        docID,
		UserID:    userID,
		Status:    models.DocumentStatusCompleted,
		UpdatedAt: time.Now().UTC(),
	})

	log.Info("analysis completed",
		"risk_level", result.RiskLevel,
		"risk_score", result.RiskScore,
		"findings", len(result.Findings),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (s *AnalysisService) generate(ctx context.Context, title, content string) (string, error) {
	req, err := s.prompts.Analysis(title, truncateContent(content, s.opts.MaxContentBytes))
	if err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	raw, err := s.provider.Generate(callCtx, req)
	if err != nil {
		return "", models.NewProviderError(s.provider.Name(), err)
	}
	if isBlank(raw) {
		return "", models.NewProviderError(s.provider.Name(), models.ErrEmptyResponse)
	}
	return raw, nil
}

// fail records cause as the document's terminal error.
func (s *AnalysisService) fail(ctx context.Context, userID, docID uuid.UUID, cause error) error {
	msg := sanitizeMessage(cause.Error())
	err := s.store.UpdateDocument(ctx, docID, userID,
		store.WithStatus(models.DocumentStatusError),
		store.WithErrorMessage(msg))
	if err != nil {
		return &PersistenceError{Op: "record analysis error", Err: err}
	}
	s.setStatus(ctx, models.StatusSnapshot{
		ID:        docID,
		UserID:    userID,
		Status:    models.DocumentStatusError,
		Error:     &msg,
		UpdatedAt: time.Now().UTC(),
	})
	return nil
}

// advance records intermediate progress. Failures only cost the client a
// progress tick, so they are logged and ignored.
func (s *AnalysisService) advance(ctx context.Context, userID, docID uuid.UUID, progress int) {
	if err := s.store.UpdateDocument(ctx, docID, userID, store.WithProgress(progress)); err != nil {
		logger.Warn(ctx, "failed to record progress", "document_id", docID, "progress", progress, "error", err)
		return
	}
	s.setStatus(ctx, models.StatusSnapshot{
		ID:        docID,
		UserID:    userID,
		Status:    models.DocumentStatusAnalyzing,
		Progress:  &progress,
		UpdatedAt: time.Now().UTC(),
	})
}

func (s *AnalysisService) mirrorStatus(ctx context.Context, doc *models.Document) {
	s.setStatus(ctx, doc.Snapshot())
}

func (s *AnalysisService) setStatus(ctx context.Context, snap models.StatusSnapshot) {
	if err := s.cache.SetDocumentStatus(ctx, snap, statusTTL); err != nil {
		logger.Warn(ctx, "failed to cache document status", "document_id", snap.ID, "error", err)
	}
}

// GetDocument returns one of the user's documents.
func (s *AnalysisService) GetDocument(ctx context.Context, userID, docID uuid.UUID) (*models.Document, error) {
	return s.store.GetDocument(ctx, docID, userID)
}

// ListDocuments returns the user's documents, newest first.
func (s *AnalysisService) ListDocuments(ctx context.Context, userID uuid.UUID) ([]*models.Document, error) {
	return s.store.ListDocuments(ctx, userID)
}

// GetStatus answers status polls from the cache, falling back to the store.
func (s *AnalysisService) GetStatus(ctx context.Context, userID, docID uuid.UUID) (models.StatusSnapshot, error) {
	snap, found, err := s.cache.GetDocumentStatus(ctx, docID)
	if err != nil {
		logger.Warn(ctx, "document status cache read failed", "document_id", docID, "error", err)
	}
	if found && snap.UserID == userID {
		return snap, nil
	}

	doc, err := s.store.GetDocument(ctx, docID, userID)
	if err != nil {
		return models.StatusSnapshot{}, err
	}
	snap = doc.Snapshot()
	s.setStatus(ctx, snap)
	return snap, nil
}

// RenameDocument changes a document's title.
func (s *AnalysisService) RenameDocument(ctx context.Context, userID, docID uuid.UUID, title string) (*models.Document, error) {
	title, err := validateTitle(title)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateDocument(ctx, docID, userID, store.WithTitle(title)); err != nil {
		return nil, err
	}
	return s.store.GetDocument(ctx, docID, userID)
}

// DeleteDocument hard-deletes a document with its cached status and stored original.
func (s *AnalysisService) DeleteDocument(ctx context.Context, userID, docID uuid.UUID) error {
	doc, err := s.store.GetDocument(ctx, docID, userID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, docID, userID); err != nil {
		return err
	}

	if err := s.cache.Delete(ctx, cache.DocumentStatusKey(docID)); err != nil {
		logger.Warn(ctx, "failed to drop cached status", "document_id", docID, "error", err)
	}
	if doc.FileKey != nil && s.objects != nil {
		if err := s.objects.Delete(ctx, *doc.FileKey); err != nil {
			logger.Warn(ctx, "failed to delete stored original", "document_id", docID, "key", *doc.FileKey, "error", err)
		}
	}
	logger.Info(ctx, "document deleted", "document_id", docID)
	return nil
}

func newAnalyzingDocument(id, userID uuid.UUID, title, content string) *models.Document {
	progress := 0
	return &models.Document{
		ID:       id,
		UserID:   userID,
		Title:    title,
		Content:  &content,
		Status:   models.DocumentStatusAnalyzing,
		Findings: []models.Finding{},
		Progress: &progress,
	}
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", &ValidationError{Field: "title", Message: "is required"}
	}
	if len(title) > maxTitleLen {
		return "", &ValidationError{Field: "title", Message: fmt.Sprintf("must be at most %d bytes", maxTitleLen)}
	}
	return title, nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// truncateContent caps content at maxBytes and marks the cut.
func truncateContent(content string, maxBytes int) string {
	if len(content) <= maxBytes {
		return content
	}
	return truncateString(content, maxBytes) + truncationMarker
}

// sanitizeMessage flattens msg to a single line of at most 500 bytes.
func sanitizeMessage(msg string) string {
	msg = strings.Join(strings.Fields(msg), " ")
	if msg == "" {
		msg = "unknown error"
	}
	return truncateString(msg, maxErrorMessageLen)
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
