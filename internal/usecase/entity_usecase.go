package usecase

import (
	"context"

	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/infra/logger"
	"github.com/opsdeck/opsdeck/internal/ports"
	"github.com/opsdeck/opsdeck/internal/tenant"
)

// EntityUseCase creates and reads the tenant collections behind the dashboard tables
type EntityUseCase struct {
	store  ports.DocumentStore
	writer *OrgWriter
	log    logger.Logger
}

// NewEntityUseCase creates a new entity use case
func NewEntityUseCase(store ports.DocumentStore, writer *OrgWriter, log logger.Logger) *EntityUseCase {
	return &EntityUseCase{store: store, writer: writer, log: log}
}

// CollectionPath resolves the collection of kind for the organization on the context
func (uc *EntityUseCase) CollectionPath(ctx context.Context, kind domain.EntityKind) (string, error) {
	orgID, ok := tenant.OrgFromContext(ctx)
	if !ok {
		return "", domain.ErrOrganizationRequired
	}
	return domain.CollectionPath(orgID, kind), nil
}

// Create validates the submitted form and writes it through the organization-scoped transaction.
// A successful create is recorded in the activity log.
func (uc *EntityUseCase) Create(ctx context.Context, kind domain.EntityKind, body []byte) (*domain.Document, error) {
	collection, err := uc.CollectionPath(ctx, kind)
	if err != nil {
		return nil, err
	}
	form, err := DecodeEntityForm(kind, body)
	if err != nil {
		return nil, err
	}
	if lead, ok := form.(*LeadForm); ok && lead.Owner == "" {
		if p, ok := tenant.PrincipalFromContext(ctx); ok {
			lead.Owner = p.Email
		}
	}

	fields, err := domain.EncodeFields(form.Entity())
	if err != nil {
		return nil, err
	}
	id, err := uc.writer.CreateEntity(ctx, kind, fields)
	if err != nil {
		return nil, err
	}

	uc.writer.RecordActivity(ctx, domain.ActionFor("create", kind), form.Label())
	uc.log.Info(ctx, "Entity created", map[string]interface{}{
		"kind": kind,
		"id":   id,
	})
	return &domain.Document{ID: id, Collection: collection, Fields: fields}, nil
}

// List returns every document of kind matching the filters
func (uc *EntityUseCase) List(ctx context.Context, kind domain.EntityKind, filters ...domain.Filter) ([]domain.Document, error) {
	collection, err := uc.CollectionPath(ctx, kind)
	if err != nil {
		return nil, err
	}
	return uc.store.List(ctx, collection, filters...)
}

// Get returns one document of kind
func (uc *EntityUseCase) Get(ctx context.Context, kind domain.EntityKind, id string) (*domain.Document, error) {
	collection, err := uc.CollectionPath(ctx, kind)
	if err != nil {
		return nil, err
	}
	return uc.store.Get(ctx, collection, id)
}
