package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kiranshivaraju/contractlens/internal/prompt"
	"github.com/kiranshivaraju/contractlens/pkg/models"
)

// JoinPolicy decides what GenerateBoth returns when one provider fails.
type JoinPolicy int

const (
	// JoinAllOrNothing fails the whole request if either provider fails.
	JoinAllOrNothing JoinPolicy = iota
	// JoinBestEffort returns whatever succeeded and fails only when both fail.
	JoinBestEffort
)

func (p JoinPolicy) String() string {
	if p == JoinBestEffort {
		return "best_effort"
	}
	return "all_or_nothing"
}

// ParseJoinPolicy maps the DRAFT_JOIN_POLICY value onto a JoinPolicy.
func ParseJoinPolicy(s string) (JoinPolicy, error) {
	switch s {
	case "", "all_or_nothing":
		return JoinAllOrNothing, nil
	case "best_effort":
		return JoinBestEffort, nil
	default:
		return JoinAllOrNothing, fmt.Errorf("unknown join policy %q", s)
	}
}

// Drafter generates contract drafts with a fixed pair of providers.
type Drafter struct {
	providers [2]models.AIProvider
	prompts   *prompt.Catalog
	policy    JoinPolicy
	timeout   time.Duration
}

func NewDrafter(providers [2]models.AIProvider, prompts *prompt.Catalog, policy JoinPolicy, timeout time.Duration) *Drafter {
	return &Drafter{
		providers: providers,
		prompts:   prompts,
		policy:    policy,
		timeout:   timeout,
	}
}

// Providers returns the names of the drafting pair.
func (d *Drafter) Providers() []string {
	return []string{d.providers[0].Name(), d.providers[1].Name()}
}

// GenerateBoth drafts with both providers concurrently and joins the results
// according to the configured JoinPolicy. Drafts keep provider order.
func (d *Drafter) GenerateBoth(ctx context.Context, req models.DraftRequest) (models.DraftSet, error) {
	genReq, err := d.prompts.Draft(req)
	if err != nil {
		return models.DraftSet{}, err
	}

	drafts := make([]models.Draft, len(d.providers))
	errs := make([]error, len(d.providers))

	var g *errgroup.Group
	gctx := ctx
	if d.policy == JoinAllOrNothing {
		g, gctx = errgroup.WithContext(ctx)
	} else {
		g = &errgroup.Group{}
	}

	for i, p := range d.providers {
		g.Go(func() error {
			draft, err := d.generate(gctx, p, genReq)
			drafts[i] = draft
			errs[i] = err
			if d.policy == JoinAllOrNothing {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return models.DraftSet{}, err
	}
	if d.policy == JoinBestEffort && errs[0] != nil && errs[1] != nil {
		return models.DraftSet{}, errors.Join(errs[0], errs[1])
	}
	return models.DraftSet{Drafts: drafts}, nil
}

// Generate drafts with the named provider of the pair.
func (d *Drafter) Generate(ctx context.Context, provider string, req models.DraftRequest) (models.Draft, error) {
	for _, p := range d.providers {
		if p.Name() != provider {
			continue
		}
		genReq, err := d.prompts.Draft(req)
		if err != nil {
			return models.Draft{}, err
		}
		return d.generate(ctx, p, genReq)
	}
	return models.Draft{}, fmt.Errorf("%w %q: drafting uses %s and %s",
		ErrUnknownProvider, provider, d.providers[0].Name(), d.providers[1].Name())
}

// generate runs one provider call. On failure the returned Draft still
// carries the sanitized error so best-effort callers can report it.
func (d *Drafter) generate(ctx context.Context, p models.AIProvider, req models.GenerateRequest) (models.Draft, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	draft := models.Draft{Provider: p.Name(), Model: p.Model()}
	text, err := p.Generate(callCtx, req)
	if err == nil && isBlank(text) {
		err = models.ErrEmptyResponse
	}
	if err != nil {
		err = models.NewProviderError(p.Name(), err)
		draft.Error = sanitizeMessage(err.Error())
		return draft, err
	}
	draft.Content = text
	return draft, nil
}
