// Package analysis turns raw LLM output into a well-typed AnalysisResult.
//
// The model is unreliable rather than hostile: every partial shape should still
// produce a usable result. Only a missing or undecodable JSON object is reported
// as an error.
package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/kiranshivaraju/contractlens/pkg/models"
)

// Mode selects how a non-array "findings" value is treated.
type Mode int

const (
	// Lenient coerces any findings shape into a list.
	Lenient Mode = iota
	// Strict rejects any findings value that is not an array, including a missing one.
	Strict
)

func (m Mode) String() string {
	if m == Strict {
		return "strict"
	}
	return "lenient"
}

// ParseMode maps a config value to a Mode. Empty means Lenient.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lenient":
		return Lenient, nil
	case "strict":
		return Strict, nil
	default:
		return Lenient, fmt.Errorf("unknown findings mode %q: must be lenient or strict", s)
	}
}

// Parse failure reasons.
const (
	ReasonNoJSON          = "no JSON object found"
	ReasonMalformedJSON   = "malformed JSON"
	ReasonInvalidFindings = "invalid findings format"
)

// ParseError reports model output that could not be turned into a result.
// It is recoverable: callers record it on the document, never crash on it.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse analysis: %s: %v", e.Reason, e.Err)
	}
	return "parse analysis: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError reports whether err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// ExtractJSON returns the substring from the first '{' to the last '}'.
func ExtractJSON(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return "", false
	}
	return raw[start : end+1], true
}

// ExtractAndNormalize finds the JSON object embedded in raw, decodes it into a
// generic tree and coerces that tree into an AnalysisResult.
func ExtractAndNormalize(raw string, mode Mode) (models.AnalysisResult, error) {
	obj, ok := ExtractJSON(raw)
	if !ok {
		return models.AnalysisResult{}, &ParseError{Reason: ReasonNoJSON}
	}

	tree, err := decode(obj)
	if err != nil {
		return models.AnalysisResult{}, &ParseError{Reason: ReasonMalformedJSON, Err: err}
	}
	root, ok := tree.(map[string]any)
	if !ok {
		return models.AnalysisResult{}, &ParseError{Reason: ReasonMalformedJSON}
	}

	return Normalize(root, mode)
}

// Normalize coerces an already decoded object. Numbers in root should be
// json.Number or float64.
func Normalize(root map[string]any, mode Mode) (models.AnalysisResult, error) {
	rawFindings := root["findings"]
	elems, isList := rawFindings.([]any)
	if mode == Strict && !isList {
		return models.AnalysisResult{}, &ParseError{Reason: ReasonInvalidFindings}
	}
	if !isList {
		elems = wrapFindings(rawFindings)
	}

	findings := make([]models.Finding, 0, len(elems))
	for _, e := range elems {
		if f, ok := normalizeFinding(e); ok {
			findings = append(findings, f)
		}
	}

	level, ok := models.ParseRiskLevel(root["riskLevel"])
	if !ok {
		level = models.RiskMedium
	}

	return models.AnalysisResult{
		Findings:        findings,
		RiskLevel:       level,
		RiskScore:       normalizeScore(root["riskScore"]),
		Recommendations: normalizeRecommendations(root["recommendations"]),
	}, nil
}

func decode(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after object")
	}
	return v, nil
}

// wrapFindings turns a lone findings value into a list.
func wrapFindings(v any) []any {
	switch x := v.(type) {
	case map[string]any:
		return []any{x}
	case string:
		if strings.TrimSpace(x) != "" {
			return []any{x}
		}
	}
	return nil
}

func normalizeFinding(v any) (models.Finding, bool) {
	switch x := v.(type) {
	case nil:
		return models.Finding{}, false
	case string:
		text := strings.TrimSpace(x)
		if text == "" {
			return models.Finding{}, false
		}
		return models.Finding{Text: text, RiskLevel: models.RiskMedium, Suggestions: []string{}}, true
	case map[string]any:
		f := models.Finding{RiskLevel: models.RiskMedium, Suggestions: []string{}}

		if s, ok := x["text"].(string); ok && strings.TrimSpace(s) != "" {
			f.Text = strings.TrimSpace(s)
		} else {
			f.Text = stringify(x)
		}
		if level, ok := models.ParseRiskLevel(x["riskLevel"]); ok {
			f.RiskLevel = level
		}
		if list, ok := x["suggestions"].([]any); ok {
			for _, s := range list {
				if s == nil {
					continue
				}
				if str := strings.TrimSpace(stringify(s)); str != "" {
					f.Suggestions = append(f.Suggestions, str)
				}
			}
		}
		return f, true
	default:
		return models.Finding{Text: stringify(x), RiskLevel: models.RiskMedium, Suggestions: []string{}}, true
	}
}

// normalizeScore accepts only JSON numbers within [0, 100], rounded to the
// nearest integer. Numeric strings are not numbers.
func normalizeScore(v any) int {
	var f float64
	switch x := v.(type) {
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return models.DefaultRiskScore
		}
		f = parsed
	case float64:
		f = x
	case int:
		f = float64(x)
	default:
		return models.DefaultRiskScore
	}
	if math.IsNaN(f) || f < 0 || f > 100 {
		return models.DefaultRiskScore
	}
	return int(math.Round(f))
}

func normalizeRecommendations(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case []any:
		lines := make([]string, 0, len(x))
		for _, item := range x {
			if item == nil {
				continue
			}
			if s := strings.TrimSpace(stringify(item)); s != "" {
				lines = append(lines, s)
			}
		}
		return strings.Join(lines, "\n")
	default:
		return stringify(x)
	}
}

// stringify renders a decoded JSON value as text. Scalars use their plain
// form, containers their compact JSON encoding.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
