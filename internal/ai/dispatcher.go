package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

var ErrDispatcherClosed = errors.New("dispatcher is shut down")

// Task is a unit of background work. ctx is detached from the submitting
// request and is cancelled only when Shutdown gives up waiting.
type Task func(ctx context.Context)

// Dispatcher runs fire-and-forget work on tracked goroutines so callers can
// wait for it in tests and drain it on shutdown.
type Dispatcher struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
}

func NewDispatcher() *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{ctx: ctx, cancel: cancel}
}

// Submit starts task on its own goroutine. A panic inside task is logged
// and does not take the process down.
func (d *Dispatcher) Submit(name string, task Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("submit %s: %w", name, ErrDispatcherClosed)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in background task",
					"task", name,
					"error", r,
					"stack", string(debug.Stack()),
				)
			}
		}()
		task(d.ctx)
	}()
	return nil
}

// Wait blocks until every submitted task has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown stops accepting tasks and waits for running ones. If ctx expires
// first, running tasks are cancelled and ctx's error is returned.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		return ctx.Err()
	}
}
