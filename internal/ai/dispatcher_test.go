package ai

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_WaitRunsAllTasks(t *testing.T) {
	d := NewDispatcher()
	var n atomic.Int32
	for range 10 {
		require.NoError(t, d.Submit("count", func(context.Context) {
			time.Sleep(time.Millisecond)
			n.Add(1)
		}))
	}
	d.Wait()
	assert.Equal(t, int32(10), n.Load())
}

func TestDispatcher_RecoversPanics(t *testing.T) {
	d := NewDispatcher()
	var ran atomic.Bool
	require.NoError(t, d.Submit("boom", func(context.Context) { panic("boom") }))
	require.NoError(t, d.Submit("after", func(context.Context) { ran.Store(true) }))

	d.Wait()
	assert.True(t, ran.Load())
}

func TestDispatcher_RejectsAfterShutdown(t *testing.T) {
	d := NewDispatcher()
	require.NoError(t, d.Shutdown(context.Background()))

	err := d.Submit("late", func(context.Context) {})
	require.ErrorIs(t, err, ErrDispatcherClosed)
}

func TestDispatcher_ShutdownWaitsForRunningTasks(t *testing.T) {
	d := NewDispatcher()
	var finished atomic.Bool
	require.NoError(t, d.Submit("slow", func(context.Context) {
		time.Sleep(30 * time.Millisecond)
		finished.Store(true)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
	assert.True(t, finished.Load())
}

func TestDispatcher_ShutdownDeadlineCancelsTasks(t *testing.T) {
	d := NewDispatcher()
	cancelled := make(chan struct{})
	require.NoError(t, d.Submit("stuck", func(ctx context.Context) {
		<-ctx.Done()
		close(cancelled)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Shutdown(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("task context was not cancelled")
	}
	d.Wait()
}
