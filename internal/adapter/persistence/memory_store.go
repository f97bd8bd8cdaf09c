package persistence

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/ports"
)

const memoryStreamBuffer = 64

// MemoryDocumentStore keeps documents in process. Commits are serialized and atomic.
type MemoryDocumentStore struct {
	mu       sync.RWMutex
	docs     map[string]map[string]map[string]interface{} // collection -> id -> fields
	watchers map[string]map[uint64]*memoryStream
	nextID   uint64
}

// NewMemoryDocumentStore creates an empty in-memory store
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{
		docs:     make(map[string]map[string]map[string]interface{}),
		watchers: make(map[string]map[uint64]*memoryStream),
	}
}

var _ ports.DocumentStore = (*MemoryDocumentStore)(nil)

func (s *MemoryDocumentStore) Get(ctx context.Context, collection, id string) (*domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	fields, ok := s.docs[collection][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrDocumentNotFound, collection, id)
	}
	return &domain.Document{ID: id, Collection: collection, Fields: cloneValue(fields).(map[string]interface{})}, nil
}

func (s *MemoryDocumentStore) List(ctx context.Context, collection string, filters ...domain.Filter) ([]domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := domain.ValidateCollectionPath(collection); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]domain.Document, 0, len(s.docs[collection]))
	for id, fields := range s.docs[collection] {
		if !domain.MatchesAll(fields, filters) {
			continue
		}
		docs = append(docs, domain.Document{ID: id, Collection: collection, Fields: cloneValue(fields).(map[string]interface{})})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *MemoryDocumentStore) Commit(ctx context.Context, batch *domain.WriteBatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := batch.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	staged := make(map[string]map[string]interface{})
	events := make([]domain.ChangeEvent, 0, batch.Len())
	for _, op := range batch.Ops() {
		current, exists := staged[op.Path()]
		if !exists {
			current, exists = s.docs[op.Collection][op.ID]
		}
		next, err := op.Apply(current, exists)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		staged[op.Path()] = next

		change := domain.ChangeInsert
		if exists {
			change = domain.ChangeUpdate
		}
		events = append(events, domain.ChangeEvent{Collection: op.Collection, DocumentID: op.ID, Operation: change})
	}

	for _, op := range batch.Ops() {
		if s.docs[op.Collection] == nil {
			s.docs[op.Collection] = make(map[string]map[string]interface{})
		}
		s.docs[op.Collection][op.ID] = cloneValue(staged[op.Path()]).(map[string]interface{})
	}
	s.mu.Unlock()

	s.notify(events)
	return nil
}

func (s *MemoryDocumentStore) Watch(ctx context.Context, collection string) (ports.ChangeStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.nextID++
	stream := &memoryStream{
		store:      s,
		collection: collection,
		id:         s.nextID,
		events:     make(chan domain.ChangeEvent, memoryStreamBuffer),
	}
	if s.watchers[collection] == nil {
		s.watchers[collection] = make(map[uint64]*memoryStream)
	}
	s.watchers[collection][stream.id] = stream
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { stream.Close() })
	stream.mu.Lock()
	stream.stop = stop
	stream.mu.Unlock()
	return stream, nil
}

// OpenStreams reports how many change streams are currently open
func (s *MemoryDocumentStore) OpenStreams() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, ws := range s.watchers {
		n += len(ws)
	}
	return n
}

// Count returns the number of documents in a collection
func (s *MemoryDocumentStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs[collection])
}

func (s *MemoryDocumentStore) notify(events []domain.ChangeEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ev := range events {
		for _, w := range s.watchers[ev.Collection] {
			select {
			case w.events <- ev:
			default:
				// a pending notification already forces a fresh snapshot
			}
		}
	}
}

func (s *MemoryDocumentStore) removeWatcher(stream *memoryStream) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ws, ok := s.watchers[stream.collection]; ok {
		if _, ok := ws[stream.id]; ok {
			delete(ws, stream.id)
			close(stream.events)
		}
		if len(ws) == 0 {
			delete(s.watchers, stream.collection)
		}
	}
}

type memoryStream struct {
	store      *MemoryDocumentStore
	collection string
	id         uint64
	events     chan domain.ChangeEvent
	mu         sync.Mutex
	stop       func() bool
	once       sync.Once
}

func (m *memoryStream) Changes() <-chan domain.ChangeEvent { return m.events }

func (m *memoryStream) Err() error { return nil }

func (m *memoryStream) Close() error {
	m.once.Do(func() {
		m.mu.Lock()
		stop := m.stop
		m.mu.Unlock()
		if stop != nil {
			stop()
		}
		m.store.removeWatcher(m)
	})
	return nil
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	}
	return v
}
