package domain

import "fmt"

// WriteKind distinguishes the write primitives a batch can carry
type WriteKind string

const (
	// WriteCreate fails when the document already exists
	WriteCreate WriteKind = "create"
	// WriteMerge upserts: Fields overwrite existing keys, Defaults are only written when the document is new
	WriteMerge WriteKind = "merge"
)

// WriteOp is a single document write inside a batch
type WriteOp struct {
	Kind       WriteKind
	Collection string
	ID         string
	Fields     map[string]interface{}
	Defaults   map[string]interface{}
}

// Path returns the target document path
func (o WriteOp) Path() string {
	return o.Collection + "/" + o.ID
}

// Operation returns the access operation the write amounts to
func (o WriteOp) Operation(exists bool) Operation {
	if o.Kind == WriteCreate || !exists {
		return OperationCreate
	}
	return OperationUpdate
}

// Apply computes the document fields after this write given the current state
func (o WriteOp) Apply(current map[string]interface{}, exists bool) (map[string]interface{}, error) {
	switch o.Kind {
	case WriteCreate:
		if exists {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, o.Path())
		}
		return copyFields(o.Fields), nil
	case WriteMerge:
		var next map[string]interface{}
		if exists {
			next = copyFields(current)
		} else {
			next = copyFields(o.Defaults)
		}
		for k, v := range o.Fields {
			next[k] = v
		}
		return next, nil
	}
	return nil, fmt.Errorf("unknown write kind %q", o.Kind)
}

// InsertFields returns what a merge writes when the document does not exist yet
func (o WriteOp) InsertFields() map[string]interface{} {
	next, _ := o.Apply(nil, false)
	return next
}

// WriteBatch is an ordered set of writes committed atomically
type WriteBatch struct {
	ops []WriteOp
}

// NewWriteBatch creates an empty batch
func NewWriteBatch() *WriteBatch {
	return &WriteBatch{}
}

// Create adds a create-only write
func (b *WriteBatch) Create(collection, id string, fields map[string]interface{}) *WriteBatch {
	b.ops = append(b.ops, WriteOp{Kind: WriteCreate, Collection: collection, ID: id, Fields: copyFields(fields)})
	return b
}

// Merge adds a merge-upsert write
func (b *WriteBatch) Merge(collection, id string, fields, defaults map[string]interface{}) *WriteBatch {
	b.ops = append(b.ops, WriteOp{
		Kind:       WriteMerge,
		Collection: collection,
		ID:         id,
		Fields:     copyFields(fields),
		Defaults:   copyFields(defaults),
	})
	return b
}

// Ops returns the writes in submission order
func (b *WriteBatch) Ops() []WriteOp {
	return b.ops
}

// Len returns the number of writes
func (b *WriteBatch) Len() int {
	return len(b.ops)
}

// Validate rejects empty batches and malformed targets
func (b *WriteBatch) Validate() error {
	if len(b.ops) == 0 {
		return NewDomainError("write batch is empty")
	}
	for _, op := range b.ops {
		if err := ValidateCollectionPath(op.Collection); err != nil {
			return err
		}
		if op.ID == "" {
			return fmt.Errorf("%w: empty document id in %s", ErrInvalidPath, op.Collection)
		}
	}
	return nil
}
