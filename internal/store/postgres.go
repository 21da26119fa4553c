package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/contractlens/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Documents ---

const documentColumns = `id, user_id, title, content, status, risk_level, risk_score, findings,
	recommendations, error, progress, file_key, created_at, updated_at`

func (s *PostgresStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	doc.Findings = nonNilFindings(doc.Findings)
	err := s.pool.QueryRow(ctx,
		`INSERT INTO documents (id, user_id, title, content, status, findings, progress, file_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at`,
		doc.ID, doc.UserID, doc.Title, doc.Content, doc.Status, doc.Findings, doc.Progress, doc.FileKey,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, userID uuid.UUID) ([]*models.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []*models.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) GetDocument(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Document, error) {
	d, err := scanDocument(s.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) UpdateDocument(ctx context.Context, id uuid.UUID, userID uuid.UUID, opts ...DocumentUpdateOption) error {
	u := NewDocumentUpdate(opts...)

	setClauses := []string{}
	args := []any{id, userID}
	argIdx := 3
	add := func(expr string, val any) {
		setClauses = append(setClauses, fmt.Sprintf(expr, argIdx))
		args = append(args, val)
		argIdx++
	}

	if u.Reset {
		setClauses = append(setClauses,
			"risk_level = NULL", "risk_score = NULL", "findings = '[]'::jsonb",
			"recommendations = NULL", "error = NULL")
		if u.Progress == nil && u.Result == nil && u.ErrorMessage == nil {
			setClauses = append(setClauses, "progress = 0")
		}
	}
	if u.Title != nil {
		add("title = $%d", *u.Title)
	}
	if u.Status != nil {
		add("status = $%d", *u.Status)
	}
	if u.Progress != nil && u.Result == nil && u.ErrorMessage == nil {
		if u.Reset {
			add("progress = $%d", *u.Progress)
		} else {
			add("progress = GREATEST(COALESCE(progress, 0), $%d)", *u.Progress)
		}
	}
	if u.Result != nil {
		add("risk_level = $%d", string(u.Result.RiskLevel))
		add("risk_score = $%d", u.Result.RiskScore)
		add("findings = $%d", nonNilFindings(u.Result.Findings))
		add("recommendations = $%d", u.Result.Recommendations)
		if u.ErrorMessage == nil {
			setClauses = append(setClauses, "error = NULL")
		}
	}
	if u.ErrorMessage != nil {
		add("error = $%d", *u.ErrorMessage)
	}
	if u.Result != nil || u.ErrorMessage != nil {
		setClauses = append(setClauses, "progress = NULL")
	}
	if u.FileKey != nil {
		add("file_key = $%d", *u.FileKey)
	}
	if len(setClauses) == 0 {
		// Nothing to write; the trigger still refreshes updated_at.
		setClauses = append(setClauses, "title = title")
	}

	query := fmt.Sprintf("UPDATE documents SET %s WHERE id = $1 AND user_id = $2",
		strings.Join(dedupeClauses(setClauses), ", "))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FailStaleDocuments(ctx context.Context, cutoff time.Time, message string) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx,
		`UPDATE documents SET status = 'error', error = $2, progress = NULL
		 WHERE status = 'analyzing' AND updated_at < $1
		 RETURNING id`, cutoff, message)
	if err != nil {
		return nil, fmt.Errorf("fail stale documents: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("fail stale documents: %w", err)
	}
	return ids, nil
}

func scanDocument(row pgx.Row) (*models.Document, error) {
	var d models.Document
	var riskLevel *string
	if err := row.Scan(&d.ID, &d.UserID, &d.Title, &d.Content, &d.Status, &riskLevel, &d.RiskScore,
		&d.Findings, &d.Recommendations, &d.Error, &d.Progress, &d.FileKey, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.RiskLevel = toRiskLevel(riskLevel)
	d.Findings = nonNilFindings(d.Findings)
	return &d, nil
}

// --- Contracts ---

const contractColumns = `id, user_id, title, contract_type, first_party_name, second_party_name, content,
	jurisdiction, key_terms, description, first_party_address, second_party_address, intensity,
	risk_level, risk_score, created_at, updated_at`

func (s *PostgresStore) CreateContract(ctx context.Context, c *models.Contract) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO contracts (id, user_id, title, contract_type, first_party_name, second_party_name, content,
		   jurisdiction, key_terms, description, first_party_address, second_party_address, intensity,
		   risk_level, risk_score)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING created_at, updated_at`,
		c.ID, c.UserID, c.Title, c.ContractType, c.FirstPartyName, c.SecondPartyName, c.Content,
		c.Jurisdiction, c.KeyTerms, c.Description, c.FirstPartyAddress, c.SecondPartyAddress, c.Intensity,
		fromRiskLevel(c.RiskLevel), c.RiskScore,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create contract: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListContracts(ctx context.Context, userID uuid.UUID) ([]*models.Contract, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()

	contracts := []*models.Contract{}
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

func (s *PostgresStore) GetContract(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Contract, error) {
	c, err := scanContract(s.pool.QueryRow(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contract: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) UpdateContract(ctx context.Context, id uuid.UUID, userID uuid.UUID, opts ...ContractUpdateOption) error {
	u := NewContractUpdate(opts...)

	setClauses := []string{}
	args := []any{id, userID}
	argIdx := 3
	add := func(column string, val any) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, val)
		argIdx++
	}

	if u.Title != nil {
		add("title", *u.Title)
	}
	if u.ContractType != nil {
		add("contract_type", *u.ContractType)
	}
	if u.FirstPartyName != nil {
		add("first_party_name", *u.FirstPartyName)
	}
	if u.SecondPartyName != nil {
		add("second_party_name", *u.SecondPartyName)
	}
	if u.Content != nil {
		add("content", *u.Content)
	}
	if u.Jurisdiction != nil {
		add("jurisdiction", *u.Jurisdiction)
	}
	if u.KeyTerms != nil {
		add("key_terms", *u.KeyTerms)
	}
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.FirstPartyAddress != nil {
		add("first_party_address", *u.FirstPartyAddress)
	}
	if u.SecondPartyAddress != nil {
		add("second_party_address", *u.SecondPartyAddress)
	}
	if u.Intensity != nil {
		add("intensity", *u.Intensity)
	}
	if u.RiskLevel != nil {
		add("risk_level", string(*u.RiskLevel))
	}
	if u.RiskScore != nil {
		add("risk_score", *u.RiskScore)
	}
	if len(setClauses) == 0 {
		setClauses = append(setClauses, "title = title")
	}

	query := fmt.Sprintf("UPDATE contracts SET %s WHERE id = $1 AND user_id = $2", strings.Join(setClauses, ", "))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update contract: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteContract(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM contracts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete contract: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanContract(row pgx.Row) (*models.Contract, error) {
	var c models.Contract
	var riskLevel *string
	if err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.ContractType, &c.FirstPartyName, &c.SecondPartyName,
		&c.Content, &c.Jurisdiction, &c.KeyTerms, &c.Description, &c.FirstPartyAddress, &c.SecondPartyAddress,
		&c.Intensity, &riskLevel, &c.RiskScore, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.RiskLevel = toRiskLevel(riskLevel)
	return &c, nil
}

// --- helpers ---

func toRiskLevel(s *string) *models.RiskLevel {
	if s == nil {
		return nil
	}
	level := models.RiskLevel(*s)
	return &level
}

func fromRiskLevel(r *models.RiskLevel) *string {
	if r == nil {
		return nil
	}
	s := string(*r)
	return &s
}

// dedupeClauses keeps the last assignment per column so later options win.
func dedupeClauses(clauses []string) []string {
	last := make(map[string]int, len(clauses))
	for i, c := range clauses {
		col := strings.TrimSpace(strings.SplitN(c, "=", 2)[0])
		last[col] = i
	}
	out := make([]string, 0, len(last))
	for i, c := range clauses {
		col := strings.TrimSpace(strings.SplitN(c, "=", 2)[0])
		if last[col] == i {
			out = append(out, c)
		}
	}
	return out
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
