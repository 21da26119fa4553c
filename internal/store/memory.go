package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/contractlens/pkg/models"
)

// MemoryStore keeps documents and contracts in memory and is safe for
// concurrent use. It backs STORE_DRIVER=memory and the service tests.
type MemoryStore struct {
	mu        sync.RWMutex
	documents map[uuid.UUID]*models.Document
	contracts map[uuid.UUID]*models.Contract
	now       func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents: make(map[uuid.UUID]*models.Document),
		contracts: make(map[uuid.UUID]*models.Contract),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the clock used for created_at and updated_at.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if _, ok := s.documents[doc.ID]; ok {
		return ErrDuplicateKey
	}
	now := s.now()
	doc.CreatedAt, doc.UpdatedAt = now, now
	doc.Findings = nonNilFindings(doc.Findings)
	s.documents[doc.ID] = cloneDocument(doc)
	return nil
}

func (s *MemoryStore) ListDocuments(ctx context.Context, userID uuid.UUID) ([]*models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := []*models.Document{}
	for _, d := range s.documents {
		if d.UserID == userID {
			docs = append(docs, cloneDocument(d))
		}
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

func (s *MemoryStore) GetDocument(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.documents[id]
	if !ok || d.UserID != userID {
		return nil, ErrNotFound
	}
	return cloneDocument(d), nil
}

func (s *MemoryStore) UpdateDocument(ctx context.Context, id uuid.UUID, userID uuid.UUID, opts ...DocumentUpdateOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[id]
	if !ok || d.UserID != userID {
		return ErrNotFound
	}
	NewDocumentUpdate(opts...).Apply(d)
	d.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) DeleteDocument(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[id]
	if !ok || d.UserID != userID {
		return ErrNotFound
	}
	delete(s.documents, id)
	return nil
}

func (s *MemoryStore) FailStaleDocuments(ctx context.Context, cutoff time.Time, message string) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []uuid.UUID{}
	now := s.now()
	for id, d := range s.documents {
		if d.Status != models.DocumentStatusAnalyzing || !d.UpdatedAt.Before(cutoff) {
			continue
		}
		NewDocumentUpdate(WithStatus(models.DocumentStatusError), WithErrorMessage(message)).Apply(d)
		d.UpdatedAt = now
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemoryStore) CreateContract(ctx context.Context, c *models.Contract) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if _, ok := s.contracts[c.ID]; ok {
		return ErrDuplicateKey
	}
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	s.contracts[c.ID] = cloneContract(c)
	return nil
}

func (s *MemoryStore) ListContracts(ctx context.Context, userID uuid.UUID) ([]*models.Contract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	contracts := []*models.Contract{}
	for _, c := range s.contracts {
		if c.UserID == userID {
			contracts = append(contracts, cloneContract(c))
		}
	}
	sort.SliceStable(contracts, func(i, j int) bool {
		return contracts[i].CreatedAt.After(contracts[j].CreatedAt)
	})
	return contracts, nil
}

func (s *MemoryStore) GetContract(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Contract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[id]
	if !ok || c.UserID != userID {
		return nil, ErrNotFound
	}
	return cloneContract(c), nil
}

func (s *MemoryStore) UpdateContract(ctx context.Context, id uuid.UUID, userID uuid.UUID, opts ...ContractUpdateOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contracts[id]
	if !ok || c.UserID != userID {
		return ErrNotFound
	}
	NewContractUpdate(opts...).Apply(c)
	c.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) DeleteContract(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contracts[id]
	if !ok || c.UserID != userID {
		return ErrNotFound
	}
	delete(s.contracts, id)
	return nil
}

func cloneDocument(d *models.Document) *models.Document {
	out := *d
	out.Content = clonePtr(d.Content)
	out.RiskLevel = clonePtr(d.RiskLevel)
	out.RiskScore = clonePtr(d.RiskScore)
	out.Recommendations = clonePtr(d.Recommendations)
	out.Error = clonePtr(d.Error)
	out.Progress = clonePtr(d.Progress)
	out.FileKey = clonePtr(d.FileKey)
	out.Findings = make([]models.Finding, len(d.Findings))
	for i, f := range d.Findings {
		f.Suggestions = append([]string{}, f.Suggestions...)
		out.Findings[i] = f
	}
	return &out
}

func cloneContract(c *models.Contract) *models.Contract {
	out := *c
	out.Jurisdiction = clonePtr(c.Jurisdiction)
	out.KeyTerms = clonePtr(c.KeyTerms)
	out.Description = clonePtr(c.Description)
	out.FirstPartyAddress = clonePtr(c.FirstPartyAddress)
	out.SecondPartyAddress = clonePtr(c.SecondPartyAddress)
	out.Intensity = clonePtr(c.Intensity)
	out.RiskLevel = clonePtr(c.RiskLevel)
	out.RiskScore = clonePtr(c.RiskScore)
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
