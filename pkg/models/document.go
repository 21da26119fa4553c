package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	DocumentStatusAnalyzing = "analyzing"
	DocumentStatusCompleted = "completed"
	DocumentStatusError     = "error"
)

// Document is an uploaded or pasted text analyzed by the LLM pipeline.
// Analysis fields are only populated once Status is completed; Error only
// when Status is error; Progress only while analyzing.
type Document struct {
	ID              uuid.UUID  `db:"id"              json:"id"`
	UserID          uuid.UUID  `db:"user_id"         json:"user_id"`
	Title           string     `db:"title"           json:"title"`
	Content         *string    `db:"content"         json:"content,omitempty"`
	Status          string     `db:"status"          json:"status"`
	RiskLevel       *RiskLevel `db:"risk_level"      json:"risk_level,omitempty"`
	RiskScore       *int       `db:"risk_score"      json:"risk_score,omitempty"`
	Findings        []Finding  `db:"findings"        json:"findings"`
	Recommendations *string    `db:"recommendations" json:"recommendations,omitempty"`
	Error           *string    `db:"error"           json:"error,omitempty"`
	Progress        *int       `db:"progress"        json:"progress,omitempty"`
	FileKey         *string    `db:"file_key"        json:"file_key,omitempty"`
	CreatedAt       time.Time  `db:"created_at"      json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"      json:"updated_at"`
}

// IsTerminal reports whether the document has left the analyzing state.
func (d *Document) IsTerminal() bool {
	return d.Status == DocumentStatusCompleted || d.Status == DocumentStatusError
}

// HasContent reports whether the stored content can be re-analyzed.
func (d *Document) HasContent() bool {
	return d.Content != nil && *d.Content != ""
}

// StatusSnapshot is the lightweight view polled by clients while analysis runs.
type StatusSnapshot struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Status    string    `json:"status"`
	Progress  *int      `json:"progress,omitempty"`
	Error     *string   `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns the status view of d.
func (d *Document) Snapshot() StatusSnapshot {
	return StatusSnapshot{
		ID:        d.ID,
		UserID:    d.UserID,
		Status:    d.Status,
		Progress:  d.Progress,
		Error:     d.Error,
		UpdatedAt: d.UpdatedAt,
	}
}
