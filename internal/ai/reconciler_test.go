package ai

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/contractlens/internal/cache"
	"github.com/kiranshivaraju/contractlens/internal/store"
	"github.com/kiranshivaraju/contractlens/pkg/models"
)

func TestReconciler_SweepFailsStaleDocuments(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ca := cache.NewMemoryCache()
	userID := uuid.New()

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	st.SetClock(func() time.Time { return start })

	newDoc := func(status string) *models.Document {
		content := "contract"
		doc := &models.Document{
			ID:       uuid.New(),
			UserID:   userID,
			Title:    "Lease",
			Content:  &content,
			Status:   status,
			Findings: []models.Finding{},
		}
		require.NoError(t, st.CreateDocument(ctx, doc))
		require.NoError(t, ca.SetDocumentStatus(ctx, doc.Snapshot(), time.Hour))
		return doc
	}
	stale := newDoc(models.DocumentStatusAnalyzing)
	done := newDoc(models.DocumentStatusCompleted)

	st.SetClock(func() time.Time { return start.Add(8 * time.Minute) })
	fresh := newDoc(models.DocumentStatusAnalyzing)

	r := NewReconciler(st, ca, 10*time.Minute, time.Minute)
	r.now = func() time.Time { return start.Add(12 * time.Minute) }

	n, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := st.GetDocument(ctx, stale.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusError, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, StaleAnalysisMessage, *got.Error)
	assert.Nil(t, got.Progress)

	_, found, err := ca.GetDocumentStatus(ctx, stale.ID)
	require.NoError(t, err)
	assert.False(t, found)

	for _, id := range []uuid.UUID{done.ID, fresh.ID} {
		_, found, err := ca.GetDocumentStatus(ctx, id)
		require.NoError(t, err)
		assert.True(t, found)
	}
	got, err = st.GetDocument(ctx, fresh.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusAnalyzing, got.Status)

	n, err = r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestReconciler_RunStopsOnCancel(t *testing.T) {
	r := NewReconciler(store.NewMemoryStore(), cache.NewMemoryCache(), time.Minute, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
