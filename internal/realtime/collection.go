package realtime

import (
	"context"

	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/infra/logger"
	"github.com/opsdeck/opsdeck/internal/ports"
)

// QueryState is the view of a live collection query
type QueryState = State[[]domain.Document]

// CollectionWatcher keeps the full result set of one collection query up to date.
// Every change notification re-reads the whole query; results are never diffed or shared.
type CollectionWatcher struct {
	*watcher[[]domain.Document]
}

// NewCollectionWatcher creates an idle watcher. listener may be nil when only State is polled.
func NewCollectionWatcher(store ports.DocumentStore, log logger.Logger, listener Listener[[]domain.Document]) *CollectionWatcher {
	return &CollectionWatcher{newWatcher(store, log, "collection", []domain.Document{}, listener)}
}

// Watch subscribes to collection, replacing any previous subscription.
// An empty collection means the query is not ready: the view settles empty and nothing is opened.
// A subscription that cannot be opened is reported both in the state and as the returned error.
func (c *CollectionWatcher) Watch(ctx context.Context, collection string, filters ...domain.Filter) error {
	if collection == "" {
		c.idle()
		return nil
	}
	if err := domain.ValidateCollectionPath(collection); err != nil {
		c.Stop()
		c.set(QueryState{Data: []domain.Document{}, Err: err})
		return err
	}

	filters = append([]domain.Filter(nil), filters...)
	load := func(ctx context.Context) ([]domain.Document, error) {
		return c.store.List(ctx, collection, filters...)
	}
	return c.start(ctx, collection, load, nil)
}
