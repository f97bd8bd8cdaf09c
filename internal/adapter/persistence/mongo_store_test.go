package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoDocumentStore_Get(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes stored fields", func(mt *mtest.T) {
		store := NewMongoDocumentStore(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "organizations/acme/clients/c1"},
			{Key: "collection", Value: "organizations/acme/clients"},
			{Key: "docId", Value: "c1"},
			{Key: "fields", Value: bson.D{
				{Key: "name", Value: "Innovate Co"},
				{Key: "mrr", Value: int32(150000)},
				{Key: "primaryContact", Value: bson.D{{Key: "name", Value: "John Doe"}}},
			}},
		}))

		doc, err := store.Get(context.Background(), "organizations/acme/clients", "c1")
		require.NoError(t, err)
		assert.Equal(t, "c1", doc.ID)
		assert.Equal(t, "Innovate Co", doc.Fields["name"])
		assert.Equal(t, float64(150000), doc.Fields["mrr"])
		assert.Equal(t, map[string]interface{}{"name": "John Doe"}, doc.Fields["primaryContact"])
	})

	mt.Run("missing document", func(mt *mtest.T) {
		store := NewMongoDocumentStore(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := store.Get(context.Background(), "organizations/acme/clients", "nope")
		assert.True(t, errors.Is(err, domain.ErrDocumentNotFound))
	})
}

func TestMongoDocumentStore_List(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns every document in the batch", func(mt *mtest.T) {
		store := NewMongoDocumentStore(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: "organizations/acme/invoices/i1"},
				{Key: "collection", Value: "organizations/acme/invoices"},
				{Key: "docId", Value: "i1"},
				{Key: "fields", Value: bson.D{{Key: "status", Value: "paid"}, {Key: "amount", Value: int64(150000)}}},
			},
			bson.D{
				{Key: "_id", Value: "organizations/acme/invoices/i2"},
				{Key: "collection", Value: "organizations/acme/invoices"},
				{Key: "docId", Value: "i2"},
				{Key: "fields", Value: bson.D{{Key: "status", Value: "overdue"}, {Key: "amount", Value: 95000.5}}},
			},
		))

		docs, err := store.List(context.Background(), "organizations/acme/invoices")
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "i1", docs[0].ID)
		assert.Equal(t, float64(150000), docs[0].Fields["amount"])
		assert.Equal(t, "overdue", docs[1].Fields["status"])
	})

	mt.Run("empty collection yields an empty slice", func(mt *mtest.T) {
		store := NewMongoDocumentStore(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		docs, err := store.List(context.Background(), "organizations/acme/invoices")
		require.NoError(t, err)
		assert.NotNil(t, docs)
		assert.Empty(t, docs)
	})

	mt.Run("rejects a document path", func(mt *mtest.T) {
		store := NewMongoDocumentStore(mt.Coll)

		_, err := store.List(context.Background(), "organizations/acme")
		assert.True(t, errors.Is(err, domain.ErrInvalidPath))
	})
}

func commandNames(events []*event.CommandStartedEvent) []string {
	names := make([]string, 0, len(events))
	for _, ev := range events {
		names = append(names, ev.CommandName)
	}
	return names
}

func TestMongoDocumentStore_Commit(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("duplicate create aborts the whole batch", func(mt *mtest.T) {
		store := NewMongoDocumentStore(mt.Coll)
		batch := domain.NewWriteBatch().
			Merge(domain.OrganizationsCollection, "acme", map[string]interface{}{"updatedAt": "t1"}, nil).
			Create("organizations/acme/clients", "c1", map[string]interface{}{"name": "Innovate Co"})

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}),
			mtest.CreateSuccessResponse(),
		)

		err := store.Commit(context.Background(), batch)
		assert.True(t, errors.Is(err, domain.ErrAlreadyExists), "got %v", err)

		names := commandNames(mt.GetAllStartedEvents())
		assert.Equal(t, []string{"update", "insert", "abortTransaction"}, names)
		assert.NotContains(t, names, "commitTransaction")
	})

	mt.Run("merge into an existing document only sets the given fields", func(mt *mtest.T) {
		store := NewMongoDocumentStore(mt.Coll)
		batch := domain.NewWriteBatch().
			Merge("organizations/acme/invoices", "i1",
				map[string]interface{}{"status": "paid"},
				map[string]interface{}{"status": "unpaid", "amount": float64(1000)})

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateSuccessResponse(),
		)

		require.NoError(t, store.Commit(context.Background(), batch))

		events := mt.GetAllStartedEvents()
		require.Equal(t, []string{"update", "commitTransaction"}, commandNames(events))

		stmt := events[0].Command.Lookup("updates").Array().Index(0).Value().Document()
		assert.Equal(t, "organizations/acme/invoices/i1", stmt.Lookup("q", "_id").StringValue())
		assert.True(t, stmt.Lookup("upsert").Boolean())

		set := stmt.Lookup("u", "$set").Document()
		assert.Equal(t, "paid", set.Lookup("fields.status").StringValue())

		onInsert := stmt.Lookup("u", "$setOnInsert").Document()
		assert.Equal(t, float64(1000), onInsert.Lookup("fields.amount").Double())
		_, err := onInsert.LookupErr("fields.status")
		assert.Error(t, err, "an existing document keeps its fields; only explicit fields are set")
	})
}

func TestMongoQuery(t *testing.T) {
	query, err := mongoQuery("organizations/acme/invoices", []domain.Filter{
		{Field: "amount", Op: domain.OpGreaterOrEqual, Value: float64(1000)},
		{Field: "amount", Op: domain.OpLessThan, Value: float64(5000)},
		{Field: "status", Op: domain.OpEqual, Value: "paid"},
	})
	require.NoError(t, err)

	assert.Equal(t, "organizations/acme/invoices", query["collection"])
	assert.Equal(t, bson.M{"$gte": float64(1000), "$lt": float64(5000)}, query["fields.amount"])
	assert.Equal(t, bson.M{"$eq": "paid"}, query["fields.status"])

	_, err = mongoQuery("organizations/acme/invoices", []domain.Filter{{Field: "amount", Op: "~"}})
	assert.Error(t, err)
}

func TestMergeUpdate(t *testing.T) {
	now := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	op := domain.WriteOp{
		Kind:       domain.WriteMerge,
		Collection: "organizations",
		ID:         "acme",
		Fields:     map[string]interface{}{"updatedAt": "t1"},
		Defaults:   map[string]interface{}{"ownerId": "u1", "updatedAt": "t0", "plan": "free"},
	}

	update := mergeUpdate(op, now)

	set := update["$set"].(bson.M)
	assert.Equal(t, "t1", set["fields.updatedAt"])
	assert.Equal(t, now, set["updatedAt"])

	onInsert := update["$setOnInsert"].(bson.M)
	assert.Equal(t, "u1", onInsert["fields.ownerId"])
	assert.Equal(t, "free", onInsert["fields.plan"])
	_, conflicting := onInsert["fields.updatedAt"]
	assert.False(t, conflicting, "a key must not appear in both $set and $setOnInsert")
	assert.Equal(t, "acme", onInsert["docId"])
}
