package models

import (
	"time"

	"github.com/google/uuid"
)

// Contract is a drafted agreement persisted with its final content.
// Intensity is the string-encoded protectiveness level "1" through "10".
type Contract struct {
	ID                 uuid.UUID  `db:"id"                   json:"id"`
	UserID             uuid.UUID  `db:"user_id"              json:"user_id"`
	Title              string     `db:"title"                json:"title"`
	ContractType       string     `db:"contract_type"        json:"contract_type"`
	FirstPartyName     string     `db:"first_party_name"     json:"first_party_name"`
	SecondPartyName    string     `db:"second_party_name"    json:"second_party_name"`
	Content            string     `db:"content"              json:"content"`
	Jurisdiction       *string    `db:"jurisdiction"         json:"jurisdiction,omitempty"`
	KeyTerms           *string    `db:"key_terms"            json:"key_terms,omitempty"`
	Description        *string    `db:"description"          json:"description,omitempty"`
	FirstPartyAddress  *string    `db:"first_party_address"  json:"first_party_address,omitempty"`
	SecondPartyAddress *string    `db:"second_party_address" json:"second_party_address,omitempty"`
	Intensity          *string    `db:"intensity"            json:"intensity,omitempty"`
	RiskLevel          *RiskLevel `db:"risk_level"           json:"risk_level,omitempty"`
	RiskScore          *int       `db:"risk_score"           json:"risk_score,omitempty"`
	CreatedAt          time.Time  `db:"created_at"           json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"           json:"updated_at"`
}

// Draft is one provider's attempt at a contract body. Exactly one of
// Content and Error is set.
type Draft struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Content  string `json:"content,omitempty"`
	Error    string `json:"error,omitempty"`
}

// DraftSet holds the drafts of one generation request until the user picks one.
type DraftSet struct {
	SessionID uuid.UUID `json:"session_id"`
	UserID    uuid.UUID `json:"-"`
	Drafts    []Draft   `json:"drafts"`
	CreatedAt time.Time `json:"created_at"`
}

// Find returns the successful draft produced by provider.
func (s *DraftSet) Find(provider string) (Draft, bool) {
	for _, d := range s.Drafts {
		if d.Provider == provider && d.Error == "" {
			return d, true
		}
	}
	return Draft{}, false
}

// DraftRequest describes the contract a user wants drafted.
// Intensity ranges 1 to 10; zero means the default of 5.
type DraftRequest struct {
	Title              string `json:"title"`
	ContractType       string `json:"contract_type"`
	FirstPartyName     string `json:"first_party_name"`
	SecondPartyName    string `json:"second_party_name"`
	FirstPartyAddress  string `json:"first_party_address,omitempty"`
	SecondPartyAddress string `json:"second_party_address,omitempty"`
	Jurisdiction       string `json:"jurisdiction,omitempty"`
	KeyTerms           string `json:"key_terms,omitempty"`
	Description        string `json:"description,omitempty"`
	Intensity          int    `json:"intensity,omitempty"`
}
