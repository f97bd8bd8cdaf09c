package persistence

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/ports"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DocumentsCollection is the Mongo collection holding every tenant document
const DocumentsCollection = "documents"

// mongoDocument is the stored shape: the full path is the primary key
type mongoDocument struct {
	Path       string    `bson:"_id"`
	Collection string    `bson:"collection"`
	DocID      string    `bson:"docId"`
	Fields     bson.M    `bson:"fields"`
	CreatedAt  time.Time `bson:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

// MongoDocumentStore stores documents in MongoDB. Batches run in a multi-document
// transaction and change streams feed live queries, so a replica set is required.
type MongoDocumentStore struct {
	coll *mongo.Collection
}

// NewMongoDocumentStore creates a store over the given collection
func NewMongoDocumentStore(coll *mongo.Collection) *MongoDocumentStore {
	return &MongoDocumentStore{coll: coll}
}

var _ ports.DocumentStore = (*MongoDocumentStore)(nil)

// Migrate creates the indexes live queries rely on
func (s *MongoDocumentStore) Migrate(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "collection", Value: 1}, {Key: "docId", Value: 1}},
		Options: options.Index().SetName("collection_docId"),
	})
	if err != nil {
		return fmt.Errorf("failed to create documents index: %w", err)
	}
	return nil
}

func (s *MongoDocumentStore) Get(ctx context.Context, collection, id string) (*domain.Document, error) {
	var stored mongoDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": collection + "/" + id}).Decode(&stored)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrDocumentNotFound, collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	doc := stored.toDomain()
	return &doc, nil
}

func (s *MongoDocumentStore) List(ctx context.Context, collection string, filters ...domain.Filter) ([]domain.Document, error) {
	if err := domain.ValidateCollectionPath(collection); err != nil {
		return nil, err
	}

	query, err := mongoQuery(collection, filters)
	if err != nil {
		return nil, err
	}

	cursor, err := s.coll.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "docId", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer cursor.Close(ctx)

	var stored []mongoDocument
	if err := cursor.All(ctx, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}

	docs := make([]domain.Document, 0, len(stored))
	for _, d := range stored {
		docs = append(docs, d.toDomain())
	}
	return docs, nil
}

func (s *MongoDocumentStore) Commit(ctx context.Context, batch *domain.WriteBatch) error {
	if err := batch.Validate(); err != nil {
		return err
	}

	session, err := s.coll.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		now := time.Now().UTC()
		for _, op := range batch.Ops() {
			if err := s.apply(sc, op, now); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

func (s *MongoDocumentStore) apply(ctx mongo.SessionContext, op domain.WriteOp, now time.Time) error {
	switch op.Kind {
	case domain.WriteCreate:
		_, err := s.coll.InsertOne(ctx, mongoDocument{
			Path:       op.Path(),
			Collection: op.Collection,
			DocID:      op.ID,
			Fields:     bson.M(op.Fields),
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, op.Path())
		}
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", op.Path(), err)
		}
		return nil

	case domain.WriteMerge:
		_, err := s.coll.UpdateOne(ctx, bson.M{"_id": op.Path()}, mergeUpdate(op, now), options.Update().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("failed to merge %s: %w", op.Path(), err)
		}
		return nil
	}
	return fmt.Errorf("unknown write kind %q", op.Kind)
}

// mergeUpdate sets each field individually so untouched keys survive; defaults only land on insert
func mergeUpdate(op domain.WriteOp, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	for k, v := range op.Fields {
		set["fields."+k] = v
	}

	onInsert := bson.M{
		"collection": op.Collection,
		"docId":      op.ID,
		"createdAt":  now,
	}
	for k, v := range op.Defaults {
		if _, overridden := op.Fields[k]; !overridden {
			onInsert["fields."+k] = v
		}
	}
	if len(op.Fields) == 0 && len(op.Defaults) == 0 {
		onInsert["fields"] = bson.M{}
	}

	return bson.M{"$set": set, "$setOnInsert": onInsert}
}

var mongoOperators = map[domain.FilterOp]string{
	domain.OpEqual:          "$eq",
	domain.OpNotEqual:       "$ne",
	domain.OpLessThan:       "$lt",
	domain.OpLessOrEqual:    "$lte",
	domain.OpGreaterThan:    "$gt",
	domain.OpGreaterOrEqual: "$gte",
}

func mongoQuery(collection string, filters []domain.Filter) (bson.M, error) {
	query := bson.M{"collection": collection}
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		key := "fields." + f.Field
		cond, ok := query[key].(bson.M)
		if !ok {
			cond = bson.M{}
			query[key] = cond
		}
		cond[mongoOperators[f.Op]] = f.Value
	}
	return query, nil
}

func (s *MongoDocumentStore) Watch(ctx context.Context, collection string) (ports.ChangeStream, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "documentKey._id", Value: bson.D{{Key: "$regex", Value: "^" + regexp.QuoteMeta(collection) + "/[^/]+$"}}},
		}}},
	}

	streamCtx, cancel := context.WithCancel(ctx)
	cs, err := s.coll.Watch(streamCtx, pipeline)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open change stream: %w", err)
	}

	stream := &mongoChangeStream{
		events: make(chan domain.ChangeEvent),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go stream.pump(streamCtx, cs, collection)
	return stream, nil
}

type mongoChangeEvent struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
}

type mongoChangeStream struct {
	events chan domain.ChangeEvent
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

func (m *mongoChangeStream) pump(ctx context.Context, cs *mongo.ChangeStream, collection string) {
	defer close(m.done)
	defer close(m.events)
	defer cs.Close(context.Background())

	for cs.Next(ctx) {
		var ev mongoChangeEvent
		if err := cs.Decode(&ev); err != nil {
			m.setErr(fmt.Errorf("failed to decode change event: %w", err))
			return
		}
		_, id, err := domain.SplitDocumentPath(ev.DocumentKey.ID)
		if err != nil {
			continue
		}
		select {
		case m.events <- domain.ChangeEvent{Collection: collection, DocumentID: id, Operation: changeOperation(ev.OperationType)}:
		case <-ctx.Done():
			return
		}
	}
	if err := cs.Err(); err != nil && ctx.Err() == nil {
		m.setErr(fmt.Errorf("change stream failed: %w", err))
	}
}

func (m *mongoChangeStream) setErr(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *mongoChangeStream) Changes() <-chan domain.ChangeEvent { return m.events }

func (m *mongoChangeStream) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *mongoChangeStream) Close() error {
	m.cancel()
	<-m.done
	return nil
}

func changeOperation(op string) domain.ChangeOperation {
	switch op {
	case "insert":
		return domain.ChangeInsert
	case "update", "replace":
		return domain.ChangeUpdate
	case "delete":
		return domain.ChangeDelete
	}
	return domain.ChangeUnknown
}

func (d mongoDocument) toDomain() domain.Document {
	fields := make(map[string]interface{}, len(d.Fields))
	for k, v := range d.Fields {
		fields[k] = normalizeBSON(v)
	}
	return domain.Document{ID: d.DocID, Collection: d.Collection, Fields: fields}
}

// normalizeBSON maps driver types onto the plain JSON-like values the rest of the code expects
func normalizeBSON(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalizeBSON(val)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalizeBSON(val)
		}
		return out
	case bson.D:
		out := make(map[string]interface{}, len(t))
		for _, e := range t {
			out[e.Key] = normalizeBSON(e.Value)
		}
		return out
	case bson.A:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalizeBSON(val)
		}
		return out
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case primitive.DateTime:
		return domain.FormatTimestamp(t.Time())
	}
	return v
}
