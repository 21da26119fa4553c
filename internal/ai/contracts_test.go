package ai

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/contractlens/internal/ai/mock"
	"github.com/kiranshivaraju/contractlens/internal/analysis"
	"github.com/kiranshivaraju/contractlens/internal/cache"
	"github.com/kiranshivaraju/contractlens/internal/prompt"
	"github.com/kiranshivaraju/contractlens/internal/store"
	"github.com/kiranshivaraju/contractlens/pkg/models"
)

type contractHarness struct {
	svc      *ContractService
	store    *store.MemoryStore
	cache    *cache.MemoryCache
	analyzer *mock.MockProvider
}

func newContractHarness(t *testing.T, analyzer *mock.MockProvider, a, b models.AIProvider, policy JoinPolicy) *contractHarness {
	t.Helper()
	prompts, err := prompt.Default()
	require.NoError(t, err)

	h := &contractHarness{
		store:    store.NewMemoryStore(),
		cache:    cache.NewMemoryCache(),
		analyzer: analyzer,
	}
	drafter := NewDrafter([2]models.AIProvider{a, b}, prompts, policy, time.Second)
	h.svc = NewContractService(analyzer, drafter, prompts, h.store, h.cache, AnalysisOptions{})
	return h
}

func newDefaultContractHarness(t *testing.T) *contractHarness {
	return newContractHarness(t, mock.NewMockProvider(),
		mock.NewStaticProvider("openai", "OPENAI DRAFT"),
		mock.NewStaticProvider("gemini", "GEMINI DRAFT"),
		JoinAllOrNothing)
}

func testContractInput() ContractInput {
	return ContractInput{
		Title:           "Consulting Agreement",
		ContractType:    "services",
		FirstPartyName:  "Acme Corp",
		SecondPartyName: "Jane Doe",
		Content:         "1. Services. The Consultant shall provide advisory services.",
		Jurisdiction:    strPtr(" New York "),
		KeyTerms:        strPtr("  "),
		Intensity:       strPtr("6"),
	}
}

func TestCreateContract(t *testing.T) {
	h := newDefaultContractHarness(t)
	userID := uuid.New()

	c, err := h.svc.CreateContract(context.Background(), userID, testContractInput())
	require.NoError(t, err)
	assert.Equal(t, userID, c.UserID)
	require.NotNil(t, c.Jurisdiction)
	assert.Equal(t, "New York", *c.Jurisdiction)
	assert.Nil(t, c.KeyTerms, "blank optional fields are dropped")
	require.NotNil(t, c.Intensity)
	assert.Equal(t, "6", *c.Intensity)
	assert.Nil(t, c.RiskLevel)

	got, err := h.svc.GetContract(context.Background(), userID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Content, got.Content)
}

func TestCreateContract_Validation(t *testing.T) {
	h := newDefaultContractHarness(t)

	tests := []struct {
		name   string
		mutate func(*ContractInput)
		field  string
	}{
		{"missing title", func(in *ContractInput) { in.Title = "" }, "title"},
		{"missing type", func(in *ContractInput) { in.ContractType = " " }, "contract_type"},
		{"missing first party", func(in *ContractInput) { in.FirstPartyName = "" }, "first_party_name"},
		{"missing second party", func(in *ContractInput) { in.SecondPartyName = "" }, "second_party_name"},
		{"missing content", func(in *ContractInput) { in.Content = "" }, "content"},
		{"intensity zero", func(in *ContractInput) { in.Intensity = strPtr("0") }, "intensity"},
		{"intensity eleven", func(in *ContractInput) { in.Intensity = strPtr("11") }, "intensity"},
		{"intensity word", func(in *ContractInput) { in.Intensity = strPtr("high") }, "intensity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := testContractInput()
			tt.mutate(&in)
			_, err := h.svc.CreateContract(context.Background(), uuid.New(), in)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestGenerateDrafts_SelectDraft(t *testing.T) {
	h := newDefaultContractHarness(t)
	ctx := context.Background()
	userID := uuid.New()

	set, err := h.svc.GenerateDrafts(ctx, userID, testDraftRequest())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, set.SessionID)
	assert.Equal(t, userID, set.UserID)
	require.Len(t, set.Drafts, 2)

	stored, found, err := h.cache.GetDraftSet(ctx, set.SessionID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, userID, stored.UserID)

	in := testContractInput()
	in.Content = "ignored"
	c, err := h.svc.SelectDraft(ctx, userID, set.SessionID, "gemini", in)
	require.NoError(t, err)
	assert.Equal(t, "GEMINI DRAFT", c.Content)

	_, found, err = h.cache.GetDraftSet(ctx, set.SessionID)
	require.NoError(t, err)
	assert.False(t, found, "selecting a draft closes the session")

	_, err = h.svc.SelectDraft(ctx, userID, set.SessionID, "gemini", in)
	require.ErrorIs(t, err, ErrDraftSessionNotFound)
}

func TestSelectDraft_OtherUsersSession(t *testing.T) {
	h := newDefaultContractHarness(t)
	ctx := context.Background()

	set, err := h.svc.GenerateDrafts(ctx, uuid.New(), testDraftRequest())
	require.NoError(t, err)

	intruder := uuid.New()
	_, err = h.svc.SelectDraft(ctx, intruder, set.SessionID, "openai", testContractInput())
	require.ErrorIs(t, err, ErrDraftSessionNotFound)

	contracts, err := h.svc.ListContracts(ctx, intruder)
	require.NoError(t, err)
	assert.Empty(t, contracts)
}

func TestSelectDraft_FailedDraft(t *testing.T) {
	h := newContractHarness(t, mock.NewMockProvider(),
		failing("openai", models.ErrProviderUnavailable),
		mock.NewStaticProvider("gemini", "GEMINI DRAFT"),
		JoinBestEffort)
	ctx := context.Background()
	userID := uuid.New()

	set, err := h.svc.GenerateDrafts(ctx, userID, testDraftRequest())
	require.NoError(t, err)

	_, err = h.svc.SelectDraft(ctx, userID, set.SessionID, "openai", testContractInput())
	require.ErrorIs(t, err, ErrDraftNotFound)

	_, found, err := h.cache.GetDraftSet(ctx, set.SessionID)
	require.NoError(t, err)
	assert.True(t, found, "a failed selection keeps the session")
}

func TestGenerateDrafts_AllOrNothingFailure(t *testing.T) {
	h := newContractHarness(t, mock.NewMockProvider(),
		mock.NewStaticProvider("openai", "OPENAI DRAFT"),
		failing("gemini", models.ErrQuotaExceeded),
		JoinAllOrNothing)

	_, err := h.svc.GenerateDrafts(context.Background(), uuid.New(), testDraftRequest())
	require.ErrorIs(t, err, models.ErrQuotaExceeded)
}

func TestGenerateDrafts_Validation(t *testing.T) {
	h := newDefaultContractHarness(t)

	req := testDraftRequest()
	req.Intensity = 11
	_, err := h.svc.GenerateDrafts(context.Background(), uuid.New(), req)
	require.ErrorIs(t, err, ErrInvalidInput)

	req = testDraftRequest()
	req.SecondPartyName = ""
	_, err = h.svc.GenerateDraft(context.Background(), uuid.New(), "openai", req)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestGenerateDrafts_IntensityRange(t *testing.T) {
	h := newDefaultContractHarness(t)
	ctx := context.Background()

	req := testDraftRequest()
	req.Intensity = 0
	set, err := h.svc.GenerateDrafts(ctx, uuid.New(), req)
	require.NoError(t, err, "zero intensity means unset")
	assert.Len(t, set.Drafts, 2)

	for _, n := range []int{-1, 11} {
		req = testDraftRequest()
		req.Intensity = n
		_, err = h.svc.GenerateDrafts(ctx, uuid.New(), req)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "intensity", ve.Field)
		assert.Equal(t, "must be between 1 and 10, or omitted for the default of 5", ve.Message)
	}
}

func TestGenerateDraft_SingleProvider(t *testing.T) {
	h := newDefaultContractHarness(t)
	ctx := context.Background()
	userID := uuid.New()

	set, err := h.svc.GenerateDraft(ctx, userID, "openai", testDraftRequest())
	require.NoError(t, err)
	require.Len(t, set.Drafts, 1)
	assert.Equal(t, "OPENAI DRAFT", set.Drafts[0].Content)

	c, err := h.svc.SelectDraft(ctx, userID, set.SessionID, "openai", testContractInput())
	require.NoError(t, err)
	assert.Equal(t, "OPENAI DRAFT", c.Content)

	_, err = h.svc.GenerateDraft(ctx, userID, "mistral", testDraftRequest())
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestAssessContract(t *testing.T) {
	h := newDefaultContractHarness(t)
	ctx := context.Background()
	userID := uuid.New()
	c, err := h.svc.CreateContract(ctx, userID, testContractInput())
	require.NoError(t, err)

	got, err := h.svc.AssessContract(ctx, userID, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RiskLevel)
	assert.Equal(t, models.RiskMedium, *got.RiskLevel)
	require.NotNil(t, got.RiskScore)
	assert.Equal(t, 62, *got.RiskScore)

	calls := h.analyzer.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].JSON)
	assert.Contains(t, calls[0].Prompt, "advisory services")
}

func TestAssessContract_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("provider error", func(t *testing.T) {
		h := newContractHarness(t, mock.NewFailingProvider(models.ErrInferenceTimeout),
			mock.NewMockProvider(), mock.NewMockProvider(), JoinAllOrNothing)
		userID := uuid.New()
		c, err := h.svc.CreateContract(ctx, userID, testContractInput())
		require.NoError(t, err)

		_, err = h.svc.AssessContract(ctx, userID, c.ID)
		require.ErrorIs(t, err, models.ErrInferenceTimeout)

		got, err := h.svc.GetContract(ctx, userID, c.ID)
		require.NoError(t, err)
		assert.Nil(t, got.RiskLevel)
	})

	t.Run("unparseable response", func(t *testing.T) {
		h := newContractHarness(t, mock.NewStaticProvider("mock", "looks fine to me"),
			mock.NewMockProvider(), mock.NewMockProvider(), JoinAllOrNothing)
		userID := uuid.New()
		c, err := h.svc.CreateContract(ctx, userID, testContractInput())
		require.NoError(t, err)

		_, err = h.svc.AssessContract(ctx, userID, c.ID)
		require.Error(t, err)
		assert.True(t, analysis.IsParseError(err))
	})

	t.Run("other users contract", func(t *testing.T) {
		h := newDefaultContractHarness(t)
		c, err := h.svc.CreateContract(ctx, uuid.New(), testContractInput())
		require.NoError(t, err)

		_, err = h.svc.AssessContract(ctx, uuid.New(), c.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
		assert.Empty(t, h.analyzer.Calls())
	})
}

func TestUpdateContract(t *testing.T) {
	h := newDefaultContractHarness(t)
	ctx := context.Background()
	userID := uuid.New()
	c, err := h.svc.CreateContract(ctx, userID, testContractInput())
	require.NoError(t, err)

	level := models.RiskHigh
	score := 99
	got, err := h.svc.UpdateContract(ctx, userID, c.ID, store.ContractUpdate{
		Title:     strPtr(" Amended Consulting Agreement "),
		KeyTerms:  strPtr("Net 30 payment"),
		RiskLevel: &level,
		RiskScore: &score,
	})
	require.NoError(t, err)
	assert.Equal(t, "Amended Consulting Agreement", got.Title)
	require.NotNil(t, got.KeyTerms)
	assert.Equal(t, "Net 30 payment", *got.KeyTerms)
	assert.Equal(t, c.Content, got.Content)
	assert.Nil(t, got.RiskLevel, "risk fields are only written by assessments")
	assert.Nil(t, got.RiskScore)

	_, err = h.svc.UpdateContract(ctx, userID, c.ID, store.ContractUpdate{Content: strPtr("")})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = h.svc.UpdateContract(ctx, userID, c.ID, store.ContractUpdate{Intensity: strPtr("12")})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = h.svc.UpdateContract(ctx, uuid.New(), c.ID, store.ContractUpdate{Title: strPtr("Hijacked")})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteContract(t *testing.T) {
	h := newDefaultContractHarness(t)
	ctx := context.Background()
	userID := uuid.New()
	c, err := h.svc.CreateContract(ctx, userID, testContractInput())
	require.NoError(t, err)

	require.ErrorIs(t, h.svc.DeleteContract(ctx, uuid.New(), c.ID), store.ErrNotFound)
	require.NoError(t, h.svc.DeleteContract(ctx, userID, c.ID))

	_, err = h.svc.GetContract(ctx, userID, c.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestContractService_Catalogue(t *testing.T) {
	h := newDefaultContractHarness(t)
	assert.Equal(t, []string{"openai", "gemini"}, h.svc.DraftProviders())
	assert.NotEmpty(t, h.svc.ContractTypes())
}
