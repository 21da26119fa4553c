package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/contractlens/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
// Every read and write except the stale-analysis sweep is scoped to userID;
// a row owned by someone else behaves exactly like a missing row.
type Store interface {
	Ping(ctx context.Context) error

	CreateDocument(ctx context.Context, doc *models.Document) error
	ListDocuments(ctx context.Context, userID uuid.UUID) ([]*models.Document, error)
	GetDocument(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Document, error)
	UpdateDocument(ctx context.Context, id uuid.UUID, userID uuid.UUID, opts ...DocumentUpdateOption) error
	DeleteDocument(ctx context.Context, id uuid.UUID, userID uuid.UUID) error
	// FailStaleDocuments moves every document still analyzing and untouched
	// since cutoff to error, returning the affected IDs.
	FailStaleDocuments(ctx context.Context, cutoff time.Time, message string) ([]uuid.UUID, error)

	CreateContract(ctx context.Context, c *models.Contract) error
	ListContracts(ctx context.Context, userID uuid.UUID) ([]*models.Contract, error)
	GetContract(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Contract, error)
	UpdateContract(ctx context.Context, id uuid.UUID, userID uuid.UUID, opts ...ContractUpdateOption) error
	DeleteContract(ctx context.Context, id uuid.UUID, userID uuid.UUID) error
}

// DocumentUpdate is the set of columns one UpdateDocument call writes.
// Nil fields are left untouched.
type DocumentUpdate struct {
	Title        *string
	Status       *string
	Progress     *int
	Result       *models.AnalysisResult
	ErrorMessage *string
	FileKey      *string
	Reset        bool
}

type DocumentUpdateOption func(*DocumentUpdate)

// NewDocumentUpdate folds opts into a DocumentUpdate.
func NewDocumentUpdate(opts ...DocumentUpdateOption) DocumentUpdate {
	var u DocumentUpdate
	for _, opt := range opts {
		opt(&u)
	}
	return u
}

func WithStatus(status string) DocumentUpdateOption {
	return func(u *DocumentUpdate) {
		u.Status = &status
	}
}

// WithProgress raises progress to p. Progress never moves backwards.
func WithProgress(p int) DocumentUpdateOption {
	return func(u *DocumentUpdate) {
		u.Progress = &p
	}
}

// WithAnalysisResult writes the normalized analysis and clears error and progress.
func WithAnalysisResult(r models.AnalysisResult) DocumentUpdateOption {
	return func(u *DocumentUpdate) {
		u.Result = &r
	}
}

// WithErrorMessage records a failure and clears progress.
func WithErrorMessage(msg string) DocumentUpdateOption {
	return func(u *DocumentUpdate) {
		u.ErrorMessage = &msg
	}
}

// WithResetAnalysis clears any previous analysis payload and error and sets
// progress back to zero. Used when a document (re)enters analyzing.
func WithResetAnalysis() DocumentUpdateOption {
	return func(u *DocumentUpdate) {
		u.Reset = true
	}
}

func WithTitle(title string) DocumentUpdateOption {
	return func(u *DocumentUpdate) {
		u.Title = &title
	}
}

func WithFileKey(key string) DocumentUpdateOption {
	return func(u *DocumentUpdate) {
		u.FileKey = &key
	}
}

// Apply performs the update on an in-memory document. Reset is applied
// first so the other fields can overwrite it.
func (u DocumentUpdate) Apply(doc *models.Document) {
	if u.Reset {
		zero := 0
		doc.RiskLevel = nil
		doc.RiskScore = nil
		doc.Findings = []models.Finding{}
		doc.Recommendations = nil
		doc.Error = nil
		doc.Progress = &zero
	}
	if u.Title != nil {
		doc.Title = *u.Title
	}
	if u.Status != nil {
		doc.Status = *u.Status
	}
	if u.Progress != nil {
		p := *u.Progress
		if doc.Progress != nil && *doc.Progress > p {
			p = *doc.Progress
		}
		doc.Progress = &p
	}
	if u.Result != nil {
		level := u.Result.RiskLevel
		score := u.Result.RiskScore
		recs := u.Result.Recommendations
		doc.RiskLevel = &level
		doc.RiskScore = &score
		doc.Findings = nonNilFindings(u.Result.Findings)
		doc.Recommendations = &recs
		doc.Error = nil
		doc.Progress = nil
	}
	if u.ErrorMessage != nil {
		msg := *u.ErrorMessage
		doc.Error = &msg
		doc.Progress = nil
	}
	if u.FileKey != nil {
		key := *u.FileKey
		doc.FileKey = &key
	}
}

// ContractUpdate is a partial overwrite of a contract. Nil fields are left untouched.
type ContractUpdate struct {
	Title              *string
	ContractType       *string
	FirstPartyName     *string
	SecondPartyName    *string
	Content            *string
	Jurisdiction       *string
	KeyTerms           *string
	Description        *string
	FirstPartyAddress  *string
	SecondPartyAddress *string
	Intensity          *string
	RiskLevel          *models.RiskLevel
	RiskScore          *int
}

type ContractUpdateOption func(*ContractUpdate)

func NewContractUpdate(opts ...ContractUpdateOption) ContractUpdate {
	var u ContractUpdate
	for _, opt := range opts {
		opt(&u)
	}
	return u
}

// WithContractFields copies every non-nil field of patch.
func WithContractFields(patch ContractUpdate) ContractUpdateOption {
	return func(u *ContractUpdate) {
		merge(&u.Title, patch.Title)
		merge(&u.ContractType, patch.ContractType)
		merge(&u.FirstPartyName, patch.FirstPartyName)
		merge(&u.SecondPartyName, patch.SecondPartyName)
		merge(&u.Content, patch.Content)
		merge(&u.Jurisdiction, patch.Jurisdiction)
		merge(&u.KeyTerms, patch.KeyTerms)
		merge(&u.Description, patch.Description)
		merge(&u.FirstPartyAddress, patch.FirstPartyAddress)
		merge(&u.SecondPartyAddress, patch.SecondPartyAddress)
		merge(&u.Intensity, patch.Intensity)
		if patch.RiskLevel != nil {
			u.RiskLevel = patch.RiskLevel
		}
		merge(&u.RiskScore, patch.RiskScore)
	}
}

// WithRiskAssessment stores the outcome of a contract risk assessment.
func WithRiskAssessment(level models.RiskLevel, score int) ContractUpdateOption {
	return func(u *ContractUpdate) {
		u.RiskLevel = &level
		u.RiskScore = &score
	}
}

// Apply performs the update on an in-memory contract.
func (u ContractUpdate) Apply(c *models.Contract) {
	set(&c.Title, u.Title)
	set(&c.ContractType, u.ContractType)
	set(&c.FirstPartyName, u.FirstPartyName)
	set(&c.SecondPartyName, u.SecondPartyName)
	set(&c.Content, u.Content)
	setPtr(&c.Jurisdiction, u.Jurisdiction)
	setPtr(&c.KeyTerms, u.KeyTerms)
	setPtr(&c.Description, u.Description)
	setPtr(&c.FirstPartyAddress, u.FirstPartyAddress)
	setPtr(&c.SecondPartyAddress, u.SecondPartyAddress)
	setPtr(&c.Intensity, u.Intensity)
	if u.RiskLevel != nil {
		level := *u.RiskLevel
		c.RiskLevel = &level
	}
	setPtr(&c.RiskScore, u.RiskScore)
}

func merge[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setPtr[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func nonNilFindings(f []models.Finding) []models.Finding {
	if f == nil {
		return []models.Finding{}
	}
	return f
}
