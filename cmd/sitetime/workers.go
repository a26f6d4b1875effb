package main

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// workers owns the goroutines that touch the store. Stop cancels them and
// blocks until every one has returned, so it must run before the store is
// closed on every exit path.
type workers struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	mu    sync.Mutex
	stops []func()
	once  sync.Once
}

func newWorkers(parent context.Context) *workers {
	ctx, cancel := context.WithCancel(parent)
	return &workers{ctx: ctx, cancel: cancel}
}

// Context is cancelled when Stop is called.
func (w *workers) Context() context.Context { return w.ctx }

// Go runs fn on its own goroutine and tracks it until it returns.
func (w *workers) Go(fn func(ctx context.Context)) {
	w.group.Go(func() error {
		fn(w.ctx)
		return nil
	})
}

// OnStop registers a blocking stop function for a component that manages its
// own goroutine. Stop functions run in reverse registration order.
func (w *workers) OnStop(fn func()) {
	w.mu.Lock()
	w.stops = append(w.stops, fn)
	w.mu.Unlock()
}

// Stop is safe to call more than once.
func (w *workers) Stop() {
	w.once.Do(func() {
		w.cancel()

		w.mu.Lock()
		stops := w.stops
		w.mu.Unlock()
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}

		_ = w.group.Wait()
	})
}
