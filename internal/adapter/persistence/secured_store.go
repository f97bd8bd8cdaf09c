package persistence

import (
	"context"
	"errors"

	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/ports"
	"github.com/opsdeck/opsdeck/internal/tenant"
)

// SecuredDocumentStore enforces tenant access rules in front of another store.
// The acting principal is read from the context; rejected requests fail with *domain.PermissionError.
type SecuredDocumentStore struct {
	inner ports.DocumentStore
}

// NewSecuredDocumentStore wraps a store with access rules
func NewSecuredDocumentStore(inner ports.DocumentStore) *SecuredDocumentStore {
	return &SecuredDocumentStore{inner: inner}
}

var _ ports.DocumentStore = (*SecuredDocumentStore)(nil)

func (s *SecuredDocumentStore) Get(ctx context.Context, collection, id string) (*domain.Document, error) {
	orgID := id
	if collection != domain.OrganizationsCollection {
		var ok bool
		if orgID, _, ok = domain.ParseTenantCollection(collection); !ok {
			return nil, deny(collection+"/"+id, domain.OperationGet, "path is outside any organization")
		}
	}
	if err := s.authorizeRead(ctx, orgID, collection+"/"+id, domain.OperationGet); err != nil {
		return nil, err
	}
	return s.inner.Get(ctx, collection, id)
}

func (s *SecuredDocumentStore) List(ctx context.Context, collection string, filters ...domain.Filter) ([]domain.Document, error) {
	orgID, _, ok := domain.ParseTenantCollection(collection)
	if !ok {
		return nil, deny(collection, domain.OperationList, "path is outside any organization")
	}
	if err := s.authorizeRead(ctx, orgID, collection, domain.OperationList); err != nil {
		return nil, err
	}
	return s.inner.List(ctx, collection, filters...)
}

func (s *SecuredDocumentStore) Watch(ctx context.Context, collection string) (ports.ChangeStream, error) {
	orgID, _, ok := domain.ParseTenantCollection(collection)
	if !ok && collection == domain.OrganizationsCollection {
		// watching the organization document itself; the caller filters by id
		return s.inner.Watch(ctx, collection)
	}
	if !ok {
		return nil, deny(collection, domain.OperationList, "path is outside any organization")
	}
	if err := s.authorizeRead(ctx, orgID, collection, domain.OperationList); err != nil {
		return nil, err
	}
	return s.inner.Watch(ctx, collection)
}

func (s *SecuredDocumentStore) Commit(ctx context.Context, batch *domain.WriteBatch) error {
	if err := batch.Validate(); err != nil {
		return err
	}
	principal, ok := tenant.PrincipalFromContext(ctx)
	if !ok {
		op := batch.Ops()[0]
		return deny(op.Path(), domain.OperationWrite, "request is not authenticated")
	}

	view := &batchView{store: s.inner, staged: make(map[string]stagedDoc)}
	for _, op := range batch.Ops() {
		current, exists, err := view.lookup(ctx, op.Collection, op.ID)
		if err != nil {
			return err
		}
		next, err := op.Apply(current, exists)
		if err != nil {
			return err
		}
		if err := s.authorizeWrite(ctx, view, principal, op, exists, next); err != nil {
			return err
		}
		view.staged[op.Path()] = stagedDoc{fields: next, exists: true}
	}

	return s.inner.Commit(ctx, batch)
}

func (s *SecuredDocumentStore) authorizeRead(ctx context.Context, orgID, path string, op domain.Operation) error {
	principal, ok := tenant.PrincipalFromContext(ctx)
	if !ok {
		return deny(path, op, "request is not authenticated")
	}
	view := &batchView{store: s.inner, staged: map[string]stagedDoc{}}
	role, err := view.roleOf(ctx, orgID, principal.UserID)
	if err != nil {
		return err
	}
	if role == "" {
		return deny(path, op, "caller is not a member of the organization")
	}
	return nil
}

func (s *SecuredDocumentStore) authorizeWrite(ctx context.Context, view *batchView, p tenant.Principal, op domain.WriteOp, exists bool, next map[string]interface{}) error {
	operation := op.Operation(exists)

	if op.Collection == domain.OrganizationsCollection {
		if !exists {
			if owner, _ := next["ownerId"].(string); owner != p.UserID {
				return deny(op.Path(), operation, "a new organization must be owned by its creator")
			}
			return nil
		}
		role, err := view.roleOf(ctx, op.ID, p.UserID)
		if err != nil {
			return err
		}
		if role.CanManageOrganization() {
			return nil
		}
		if role != "" && domain.IsHousekeepingUpdate(op.Fields) {
			return nil
		}
		return deny(op.Path(), operation, "only admins may change organization settings")
	}

	orgID, kind, ok := domain.ParseTenantCollection(op.Collection)
	if !ok {
		return deny(op.Path(), operation, "path is outside any organization")
	}

	role, err := view.roleOf(ctx, orgID, p.UserID)
	if err != nil {
		return err
	}

	if kind == domain.KindMembers {
		if role.CanManageMembers() {
			if r, ok := next["role"].(string); !ok || !domain.Role(r).Valid() {
				return deny(op.Path(), operation, "membership role is invalid")
			}
			return nil
		}
		if op.ID == p.UserID && exists {
			if _, changesRole := op.Fields["role"]; !changesRole {
				return nil
			}
		}
		return deny(op.Path(), operation, "only admins may manage memberships")
	}

	if op.Kind != domain.WriteCreate && kind == domain.KindActivity {
		return deny(op.Path(), operation, "activity entries are append-only")
	}
	if !role.CanWrite(kind) {
		if role == "" {
			return deny(op.Path(), operation, "caller is not a member of the organization")
		}
		return deny(op.Path(), operation, "role "+string(role)+" may not write "+string(kind))
	}
	return nil
}

func deny(path string, op domain.Operation, reason string) error {
	return &domain.PermissionError{Path: path, Operation: op, Reason: reason}
}

type stagedDoc struct {
	fields map[string]interface{}
	exists bool
}

// batchView resolves documents as they will look after the writes staged so far
type batchView struct {
	store  ports.DocumentStore
	staged map[string]stagedDoc
}

func (v *batchView) lookup(ctx context.Context, collection, id string) (map[string]interface{}, bool, error) {
	if d, ok := v.staged[collection+"/"+id]; ok {
		return d.fields, d.exists, nil
	}
	doc, err := v.store.Get(ctx, collection, id)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		v.staged[collection+"/"+id] = stagedDoc{}
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	v.staged[collection+"/"+id] = stagedDoc{fields: doc.Fields, exists: true}
	return doc.Fields, true, nil
}

// roleOf returns the caller's role, or "" when not a member. The organization owner is always an admin.
func (v *batchView) roleOf(ctx context.Context, orgID, uid string) (domain.Role, error) {
	// the owner keeps admin rights whatever its membership says
	org, ok, err := v.lookup(ctx, domain.OrganizationsCollection, orgID)
	if err != nil {
		return "", err
	}
	if ok {
		if owner, _ := org["ownerId"].(string); owner == uid {
			return domain.RoleAdmin, nil
		}
	}

	member, ok, err := v.lookup(ctx, domain.CollectionPath(orgID, domain.KindMembers), uid)
	if err != nil {
		return "", err
	}
	if ok {
		if r, _ := member["role"].(string); domain.Role(r).Valid() {
			return domain.Role(r), nil
		}
	}
	return "", nil
}
