package ports

import (
	"context"

	"github.com/opsdeck/opsdeck/internal/domain"
)

// DocumentStore is the tenant document database
type DocumentStore interface {
	// Get returns domain.ErrDocumentNotFound when the document does not exist
	Get(ctx context.Context, collection, id string) (*domain.Document, error)
	// List returns every document of the collection matching all filters, ordered by id
	List(ctx context.Context, collection string, filters ...domain.Filter) ([]domain.Document, error)
	// Commit applies every write of the batch or none of them
	Commit(ctx context.Context, batch *domain.WriteBatch) error
	// Watch opens a change notification stream for one collection
	Watch(ctx context.Context, collection string) (ChangeStream, error)
}

// ChangeStream delivers change notifications in the order the store emits them.
// Changes is closed when the stream ends; Err then reports why, or nil after Close.
type ChangeStream interface {
	Changes() <-chan domain.ChangeEvent
	Err() error
	Close() error
}

// SchemaMigrator is implemented by stores that need a schema before use
type SchemaMigrator interface {
	Migrate(ctx context.Context) error
}
