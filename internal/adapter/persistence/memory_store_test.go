package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clientsPath = "organizations/acme/clients"

func TestMemoryDocumentStore_CommitIsAtomic(t *testing.T) {
	store := NewMemoryDocumentStore()
	ctx := context.Background()

	require.NoError(t, store.Commit(ctx, domain.NewWriteBatch().
		Create(clientsPath, "c1", map[string]interface{}{"name": "Innovate Co"})))

	batch := domain.NewWriteBatch().
		Merge(domain.OrganizationsCollection, "acme", map[string]interface{}{"updatedAt": "t"}, map[string]interface{}{"ownerId": "u1"}).
		Merge("organizations/acme/users", "u1", map[string]interface{}{"uid": "u1"}, map[string]interface{}{"role": "admin"}).
		Create(clientsPath, "c1", map[string]interface{}{"name": "Duplicate"})

	err := store.Commit(ctx, batch)
	assert.True(t, errors.Is(err, domain.ErrAlreadyExists))

	assert.Equal(t, 0, store.Count(domain.OrganizationsCollection))
	assert.Equal(t, 0, store.Count("organizations/acme/users"))

	doc, err := store.Get(ctx, clientsPath, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Innovate Co", doc.Fields["name"])
}

func TestMemoryDocumentStore_MergeKeepsExistingFields(t *testing.T) {
	store := NewMemoryDocumentStore()
	ctx := context.Background()

	defaults := map[string]interface{}{"ownerId": "u1", "plan": "free"}
	require.NoError(t, store.Commit(ctx, domain.NewWriteBatch().
		Merge(domain.OrganizationsCollection, "acme", map[string]interface{}{"updatedAt": "t1"}, defaults)))
	require.NoError(t, store.Commit(ctx, domain.NewWriteBatch().
		Merge(domain.OrganizationsCollection, "acme", map[string]interface{}{"plan": "pro"}, map[string]interface{}{"ownerId": "u2"})))

	doc, err := store.Get(ctx, domain.OrganizationsCollection, "acme")
	require.NoError(t, err)
	assert.Equal(t, "u1", doc.Fields["ownerId"])
	assert.Equal(t, "pro", doc.Fields["plan"])
	assert.Equal(t, "t1", doc.Fields["updatedAt"])
}

func TestMemoryDocumentStore_ListFiltersAndOrders(t *testing.T) {
	store := NewMemoryDocumentStore()
	ctx := context.Background()

	require.NoError(t, store.Commit(ctx, domain.NewWriteBatch().
		Create("organizations/acme/invoices", "b", map[string]interface{}{"status": "paid", "amount": float64(150000)}).
		Create("organizations/acme/invoices", "a", map[string]interface{}{"status": "unpaid", "amount": float64(75000)}).
		Create("organizations/acme/invoices", "c", map[string]interface{}{"status": "overdue", "amount": float64(95000)})))

	all, err := store.List(ctx, "organizations/acme/invoices")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})

	big, err := store.List(ctx, "organizations/acme/invoices", domain.Filter{Field: "amount", Op: domain.OpGreaterThan, Value: 90000})
	require.NoError(t, err)
	assert.Len(t, big, 2)

	empty, err := store.List(ctx, "organizations/other/invoices")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestMemoryDocumentStore_ReturnedDocumentsAreCopies(t *testing.T) {
	store := NewMemoryDocumentStore()
	ctx := context.Background()

	require.NoError(t, store.Commit(ctx, domain.NewWriteBatch().
		Create(clientsPath, "c1", map[string]interface{}{"primaryContact": map[string]interface{}{"name": "John"}})))

	doc, err := store.Get(ctx, clientsPath, "c1")
	require.NoError(t, err)
	doc.Fields["primaryContact"].(map[string]interface{})["name"] = "Mallory"

	again, err := store.Get(ctx, clientsPath, "c1")
	require.NoError(t, err)
	assert.Equal(t, "John", again.Fields["primaryContact"].(map[string]interface{})["name"])
}

func TestMemoryDocumentStore_Watch(t *testing.T) {
	store := NewMemoryDocumentStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := store.Watch(ctx, clientsPath)
	require.NoError(t, err)
	assert.Equal(t, 1, store.OpenStreams())

	require.NoError(t, store.Commit(context.Background(), domain.NewWriteBatch().
		Create(clientsPath, "c1", map[string]interface{}{"name": "Innovate Co"}).
		Create("organizations/acme/leads", "l1", map[string]interface{}{"name": "Zenith"})))

	select {
	case ev := <-stream.Changes():
		assert.Equal(t, "c1", ev.DocumentID)
		assert.Equal(t, domain.ChangeInsert, ev.Operation)
	case <-time.After(time.Second):
		t.Fatal("expected a change event")
	}

	select {
	case ev := <-stream.Changes():
		t.Fatalf("unexpected event for another collection: %+v", ev)
	default:
	}

	require.NoError(t, stream.Close())
	assert.Equal(t, 0, store.OpenStreams())
	_, open := <-stream.Changes()
	assert.False(t, open)

	// closing twice is harmless
	require.NoError(t, stream.Close())
}

func TestMemoryDocumentStore_WatchClosesWithContext(t *testing.T) {
	store := NewMemoryDocumentStore()
	ctx, cancel := context.WithCancel(context.Background())

	stream, err := store.Watch(ctx, clientsPath)
	require.NoError(t, err)

	cancel()

	select {
	case _, open := <-stream.Changes():
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("expected the stream to close with its context")
	}
	assert.Equal(t, 0, store.OpenStreams())
}
