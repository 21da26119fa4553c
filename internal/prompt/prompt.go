// Package prompt renders the LLM prompts for document analysis and contract
// drafting from an embedded YAML catalogue.
package prompt

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/kiranshivaraju/contractlens/pkg/models"
	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultCatalog []byte

const DefaultIntensity = 5

// ContractType is one entry of the drafting catalogue.
type ContractType struct {
	Key      string `yaml:"-"        json:"key"`
	Label    string `yaml:"label"    json:"label"`
	Guidance string `yaml:"guidance" json:"guidance"`
}

type pair struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type catalogFile struct {
	Analysis      pair                    `yaml:"analysis"`
	Draft         pair                    `yaml:"draft"`
	ContractTypes map[string]ContractType `yaml:"contract_types"`
}

// Catalog holds the parsed templates. Safe for concurrent use.
type Catalog struct {
	analysisSystem string
	analysisUser   *template.Template
	draftSystem    string
	draftUser      *template.Template
	types          map[string]ContractType
}

// Default parses the embedded catalogue.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Parse builds a Catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse prompt catalog: %w", err)
	}
	if f.Analysis.System == "" || f.Analysis.User == "" {
		return nil, fmt.Errorf("parse prompt catalog: analysis prompts are required")
	}
	if f.Draft.System == "" || f.Draft.User == "" {
		return nil, fmt.Errorf("parse prompt catalog: draft prompts are required")
	}

	analysisUser, err := template.New("analysis").Option("missingkey=error").Parse(f.Analysis.User)
	if err != nil {
		return nil, fmt.Errorf("parse analysis template: %w", err)
	}
	draftUser, err := template.New("draft").Option("missingkey=error").Parse(f.Draft.User)
	if err != nil {
		return nil, fmt.Errorf("parse draft template: %w", err)
	}

	types := make(map[string]ContractType, len(f.ContractTypes))
	for key, ct := range f.ContractTypes {
		ct.Key = key
		types[key] = ct
	}

	return &Catalog{
		analysisSystem: strings.TrimSpace(f.Analysis.System),
		analysisUser:   analysisUser,
		draftSystem:    strings.TrimSpace(f.Draft.System),
		draftUser:      draftUser,
		types:          types,
	}, nil
}

// Analysis builds the system/user pair for a risk analysis. content should
// already be capped to the provider payload limit.
func (c *Catalog) Analysis(title, content string) (models.GenerateRequest, error) {
	var sb strings.Builder
	err := c.analysisUser.Execute(&sb, struct{ Title, Content string }{title, content})
	if err != nil {
		return models.GenerateRequest{}, fmt.Errorf("render analysis prompt: %w", err)
	}
	return models.GenerateRequest{
		System: c.analysisSystem,
		Prompt: sb.String(),
		JSON:   true,
	}, nil
}

type draftData struct {
	models.DraftRequest
	TypeLabel         string
	TypeGuidance      string
	IntensityGuidance string
}

// Draft builds the prompt for a contract draft. Unknown contract types are
// drafted under their given name without type guidance.
func (c *Catalog) Draft(req models.DraftRequest) (models.GenerateRequest, error) {
	if req.Intensity == 0 {
		req.Intensity = DefaultIntensity
	}

	data := draftData{DraftRequest: req, TypeLabel: req.ContractType}
	if ct, ok := c.types[strings.ToLower(req.ContractType)]; ok {
		data.TypeLabel = ct.Label
		data.TypeGuidance = ct.Guidance
	}
	data.IntensityGuidance = intensityGuidance(req.Intensity)

	var sb strings.Builder
	if err := c.draftUser.Execute(&sb, data); err != nil {
		return models.GenerateRequest{}, fmt.Errorf("render draft prompt: %w", err)
	}
	return models.GenerateRequest{
		System: c.draftSystem,
		Prompt: sb.String(),
	}, nil
}

// ContractType looks up a catalogue entry by key, case-insensitively.
func (c *Catalog) ContractType(key string) (ContractType, bool) {
	ct, ok := c.types[strings.ToLower(key)]
	return ct, ok
}

// ContractTypes lists the catalogue sorted by key.
func (c *Catalog) ContractTypes() []ContractType {
	out := make([]ContractType, 0, len(c.types))
	for _, ct := range c.types {
		out = append(out, ct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func intensityGuidance(level int) string {
	switch {
	case level <= 3:
		return "Keep the terms balanced and friendly to both parties."
	case level <= 7:
		return "Favor the first party while staying commercially reasonable."
	default:
		return "Protect the first party strongly with broad indemnities, narrow warranties and strict remedies."
	}
}
