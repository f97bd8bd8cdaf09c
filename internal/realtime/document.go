package realtime

import (
	"context"
	"errors"

	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/infra/logger"
	"github.com/opsdeck/opsdeck/internal/ports"
)

// DocumentState is the view of a single live document; Data is nil while it does not exist
type DocumentState = State[*domain.Document]

// DocumentWatcher keeps one document up to date
type DocumentWatcher struct {
	*watcher[*domain.Document]
}

// NewDocumentWatcher creates an idle watcher
func NewDocumentWatcher(store ports.DocumentStore, log logger.Logger, listener Listener[*domain.Document]) *DocumentWatcher {
	return &DocumentWatcher{newWatcher[*domain.Document](store, log, "document", nil, listener)}
}

// Watch subscribes to collection/id, replacing any previous subscription.
// An empty collection or id settles the view to nil without opening anything.
func (d *DocumentWatcher) Watch(ctx context.Context, collection, id string) error {
	if collection == "" || id == "" {
		d.idle()
		return nil
	}

	load := func(ctx context.Context) (*domain.Document, error) {
		doc, err := d.store.Get(ctx, collection, id)
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return nil, nil
		}
		return doc, err
	}
	affects := func(ev domain.ChangeEvent) bool { return ev.Affects(id) }
	return d.start(ctx, collection, load, affects)
}
