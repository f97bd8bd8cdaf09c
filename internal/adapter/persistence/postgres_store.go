package persistence

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/ports"
)

// ChangeChannel is the LISTEN/NOTIFY channel commits announce changes on
const ChangeChannel = "document_changes"

//go:embed schema.sql
var postgresSchema string

// PostgresDocumentStore stores documents as JSONB rows and publishes changes with NOTIFY
type PostgresDocumentStore struct {
	db  *sql.DB
	dsn string
}

// NewPostgresDocumentStore creates a store; dsn is used to open dedicated LISTEN connections
func NewPostgresDocumentStore(db *sql.DB, dsn string) *PostgresDocumentStore {
	return &PostgresDocumentStore{db: db, dsn: dsn}
}

var _ ports.DocumentStore = (*PostgresDocumentStore)(nil)

// Migrate creates the documents table
func (s *PostgresDocumentStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *PostgresDocumentStore) Get(ctx context.Context, collection, id string) (*domain.Document, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT fields FROM documents WHERE path = $1`, collection+"/"+id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrDocumentNotFound, collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	fields, err := decodeJSONFields(raw)
	if err != nil {
		return nil, err
	}
	return &domain.Document{ID: id, Collection: collection, Fields: fields}, nil
}

func (s *PostgresDocumentStore) List(ctx context.Context, collection string, filters ...domain.Filter) ([]domain.Document, error) {
	if err := domain.ValidateCollectionPath(collection); err != nil {
		return nil, err
	}

	where, args, err := buildFilterClause(filters, 2)
	if err != nil {
		return nil, err
	}
	query := `SELECT doc_id, fields FROM documents WHERE collection = $1` + where + ` ORDER BY doc_id`

	rows, err := s.db.QueryContext(ctx, query, append([]interface{}{collection}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]domain.Document, 0)
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		fields, err := decodeJSONFields(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, domain.Document{ID: id, Collection: collection, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

var sqlOperators = map[domain.FilterOp]string{
	domain.OpEqual:          "=",
	domain.OpNotEqual:       "<>",
	domain.OpLessThan:       "<",
	domain.OpLessOrEqual:    "<=",
	domain.OpGreaterThan:    ">",
	domain.OpGreaterOrEqual: ">=",
}

// buildFilterClause compares JSONB values so numbers order numerically and strings lexically
func buildFilterClause(filters []domain.Filter, firstArg int) (string, []interface{}, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	var (
		conditions []string
		args       []interface{}
		n          = firstArg
	)
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return "", nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return "", nil, fmt.Errorf("failed to encode filter value: %w", err)
		}
		conditions = append(conditions, fmt.Sprintf("fields -> $%d::text %s $%d::jsonb", n, sqlOperators[f.Op], n+1))
		args = append(args, f.Field, string(value))
		n += 2
	}
	return " AND " + strings.Join(conditions, " AND "), args, nil
}

func (s *PostgresDocumentStore) Commit(ctx context.Context, batch *domain.WriteBatch) error {
	if err := batch.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, op := range batch.Ops() {
		change, err := s.apply(ctx, tx, op)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(domain.ChangeEvent{Collection: op.Collection, DocumentID: op.ID, Operation: change})
		if err != nil {
			return fmt.Errorf("failed to encode change: %w", err)
		}
		// delivered by postgres only once the transaction commits
		if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, ChangeChannel, string(payload)); err != nil {
			return fmt.Errorf("failed to announce change: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

func (s *PostgresDocumentStore) apply(ctx context.Context, tx *sql.Tx, op domain.WriteOp) (domain.ChangeOperation, error) {
	fields, err := json.Marshal(nonNilFields(op.Fields))
	if err != nil {
		return "", fmt.Errorf("failed to encode fields: %w", err)
	}

	switch op.Kind {
	case domain.WriteCreate:
		_, err := tx.ExecContext(ctx,
			`INSERT INTO documents (path, collection, doc_id, fields) VALUES ($1, $2, $3, $4::jsonb)`,
			op.Path(), op.Collection, op.ID, string(fields))
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return "", fmt.Errorf("%w: %s", domain.ErrAlreadyExists, op.Path())
		}
		if err != nil {
			return "", fmt.Errorf("failed to create %s: %w", op.Path(), err)
		}
		return domain.ChangeInsert, nil

	case domain.WriteMerge:
		defaults, err := json.Marshal(nonNilFields(op.Defaults))
		if err != nil {
			return "", fmt.Errorf("failed to encode defaults: %w", err)
		}
		var inserted bool
		err = tx.QueryRowContext(ctx, `
			INSERT INTO documents (path, collection, doc_id, fields)
			VALUES ($1, $2, $3, $4::jsonb || $5::jsonb)
			ON CONFLICT (path) DO UPDATE
			SET fields = documents.fields || $5::jsonb, updated_at = NOW()
			RETURNING (xmax = 0)`,
			op.Path(), op.Collection, op.ID, string(defaults), string(fields)).Scan(&inserted)
		if err != nil {
			return "", fmt.Errorf("failed to merge %s: %w", op.Path(), err)
		}
		if inserted {
			return domain.ChangeInsert, nil
		}
		return domain.ChangeUpdate, nil
	}
	return "", fmt.Errorf("unknown write kind %q", op.Kind)
}

func nonNilFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return map[string]interface{}{}
	}
	return fields
}

func decodeJSONFields(raw []byte) (map[string]interface{}, error) {
	fields := make(map[string]interface{})
	if len(raw) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	return fields, nil
}

func (s *PostgresDocumentStore) Watch(ctx context.Context, collection string) (ports.ChangeStream, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	stream := &postgresChangeStream{
		events: make(chan domain.ChangeEvent),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	listener := pq.NewListener(s.dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil && ev == pq.ListenerEventConnectionAttemptFailed {
			stream.fail(fmt.Errorf("change listener connection failed: %w", err))
		}
	})
	// Listen waits for a connection; closing the listener is the only way out
	context.AfterFunc(streamCtx, func() { listener.Close() })

	if err := listener.Listen(ChangeChannel); err != nil {
		cancel()
		if serr := stream.Err(); serr != nil {
			return nil, serr
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to listen for changes: %w", err)
	}

	go stream.pump(streamCtx, listener, collection)
	return stream, nil
}

type postgresChangeStream struct {
	events chan domain.ChangeEvent
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

func (p *postgresChangeStream) pump(ctx context.Context, listener *pq.Listener, collection string) {
	defer close(p.done)
	defer close(p.events)
	defer listener.Close()

	for {
		var ev domain.ChangeEvent
		select {
		case <-ctx.Done():
			return
		case n, ok := <-listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// reconnected; notifications may have been missed
				ev = domain.ChangeEvent{Collection: collection, Operation: domain.ChangeUnknown}
			} else {
				if err := json.Unmarshal([]byte(n.Extra), &ev); err != nil || ev.Collection != collection {
					continue
				}
			}
		}

		select {
		case p.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// fail records err and stops the stream so consumers see Changes close.
func (p *postgresChangeStream) fail(err error) {
	p.mu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.mu.Unlock()
	p.cancel()
}

func (p *postgresChangeStream) Changes() <-chan domain.ChangeEvent { return p.events }

func (p *postgresChangeStream) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *postgresChangeStream) Close() error {
	p.cancel()
	<-p.done
	return nil
}
