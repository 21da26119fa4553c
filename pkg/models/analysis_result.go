package models

import "strings"

// RiskLevel is the severity attached to a finding or a whole document.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// DefaultRiskScore is used whenever the model omits or mangles a score.
const DefaultRiskScore = 50

// Valid reports whether r is one of the three known levels.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// ParseRiskLevel accepts a decoded JSON value and returns the matching level.
// Anything other than a string naming a known level reports false.
func ParseRiskLevel(v any) (RiskLevel, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	r := RiskLevel(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", false
	}
	return r, true
}

// Finding is one flagged issue in a document.
type Finding struct {
	Text        string    `json:"text"`
	RiskLevel   RiskLevel `json:"riskLevel"`
	Suggestions []string  `json:"suggestions"`
}

// AnalysisResult is the normalized output of one analysis pass.
// It is never stored as-is; the orchestrator flattens it into Document fields.
type AnalysisResult struct {
	Findings        []Finding `json:"findings"`
	RiskLevel       RiskLevel `json:"riskLevel"`
	RiskScore       int       `json:"riskScore"`
	Recommendations string    `json:"recommendations"`
}
