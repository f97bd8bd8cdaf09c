// Package realtime keeps fully materialized, push-updated views of store queries.
package realtime

import (
	"context"
	"sync"

	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/infra/logger"
	"github.com/opsdeck/opsdeck/internal/infra/metrics"
	"github.com/opsdeck/opsdeck/internal/ports"
)

// State is the view a watcher currently holds
type State[T any] struct {
	Data    T
	Loading bool
	Err     error
}

// Listener receives every state a watcher publishes, in order.
// It runs on the watcher's goroutine and must not call Watch or Stop.
type Listener[T any] func(State[T])

type subscription struct {
	cancel context.CancelFunc
	stream ports.ChangeStream
	done   chan struct{}
}

// watcher owns at most one live subscription at a time
type watcher[T any] struct {
	store    ports.DocumentStore
	log      logger.Logger
	target   string
	empty    T
	listener Listener[T]

	mu    sync.Mutex // guards state and sub
	state State[T]
	sub   *subscription
}

func newWatcher[T any](store ports.DocumentStore, log logger.Logger, target string, empty T, listener Listener[T]) *watcher[T] {
	return &watcher[T]{
		store:    store,
		log:      log,
		target:   target,
		empty:    empty,
		listener: listener,
		state:    State[T]{Data: empty, Loading: true},
	}
}

// State returns the latest published state
func (w *watcher[T]) State() State[T] {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Stop tears down the current subscription, if any. No state is published after Stop returns.
func (w *watcher[T]) Stop() {
	w.mu.Lock()
	sub := w.sub
	w.sub = nil
	w.mu.Unlock()

	if sub == nil {
		return
	}
	sub.cancel()
	sub.stream.Close()
	<-sub.done
}

// idle publishes a settled empty view without opening a subscription
func (w *watcher[T]) idle() {
	w.Stop()
	w.set(State[T]{Data: w.empty})
}

// start replaces the current subscription with one on collection.
// load re-materializes the view; affects decides which notifications require it.
func (w *watcher[T]) start(ctx context.Context, collection string, load func(context.Context) (T, error), affects func(domain.ChangeEvent) bool) error {
	w.Stop()
	w.set(State[T]{Data: w.empty, Loading: true})

	subCtx, cancel := context.WithCancel(ctx)
	stream, err := w.store.Watch(subCtx, collection)
	if err != nil {
		cancel()
		w.log.Warn(ctx, "Live subscription could not be opened", map[string]interface{}{
			"target":     w.target,
			"collection": collection,
			"error":      err.Error(),
		})
		metrics.SubscriptionErrors.WithLabelValues(w.target).Inc()
		w.set(State[T]{Data: w.empty, Err: err})
		return err
	}

	sub := &subscription{cancel: cancel, stream: stream, done: make(chan struct{})}
	w.mu.Lock()
	w.sub = sub
	w.mu.Unlock()

	metrics.ActiveSubscriptions.WithLabelValues(w.target).Inc()
	go w.run(subCtx, sub, collection, load, affects)
	return nil
}

func (w *watcher[T]) run(ctx context.Context, sub *subscription, collection string, load func(context.Context) (T, error), affects func(domain.ChangeEvent) bool) {
	defer close(sub.done)
	defer metrics.ActiveSubscriptions.WithLabelValues(w.target).Dec()
	defer sub.stream.Close()

	refresh := func() bool {
		data, err := load(ctx)
		if err != nil {
			if ctx.Err() == nil {
				w.fail(ctx, sub, collection, err)
			}
			return false
		}
		if !w.publish(sub, State[T]{Data: data}) {
			return false
		}
		metrics.SnapshotsDelivered.WithLabelValues(w.target).Inc()
		return true
	}

	if !refresh() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.stream.Changes():
			if !ok {
				if err := sub.stream.Err(); err != nil && ctx.Err() == nil {
					w.fail(ctx, sub, collection, err)
				}
				return
			}
			if affects != nil && !affects(ev) {
				continue
			}
			if !refresh() {
				return
			}
		}
	}
}

func (w *watcher[T]) fail(ctx context.Context, sub *subscription, collection string, err error) {
	metrics.SubscriptionErrors.WithLabelValues(w.target).Inc()
	w.log.Warn(ctx, "Live subscription failed", map[string]interface{}{
		"target":     w.target,
		"collection": collection,
		"error":      err.Error(),
	})

	w.mu.Lock()
	data := w.state.Data
	w.mu.Unlock()
	w.publish(sub, State[T]{Data: data, Err: err})
}

// publish delivers st only while sub is still the current subscription
func (w *watcher[T]) publish(sub *subscription, st State[T]) bool {
	w.mu.Lock()
	if w.sub != sub {
		w.mu.Unlock()
		return false
	}
	w.state = st
	w.mu.Unlock()

	if w.listener != nil {
		w.listener(st)
	}
	return true
}

func (w *watcher[T]) set(st State[T]) {
	w.mu.Lock()
	w.state = st
	w.mu.Unlock()

	if w.listener != nil {
		w.listener(st)
	}
}
