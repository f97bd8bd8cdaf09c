package usecase

import (
	"context"
	"strings"

	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/infra/logger"
	"github.com/opsdeck/opsdeck/internal/ports"
	"github.com/opsdeck/opsdeck/internal/tenant"
)

// SettingsUseCase manages organization settings and memberships
type SettingsUseCase struct {
	store  ports.DocumentStore
	writer *OrgWriter
	log    logger.Logger
}

// NewSettingsUseCase creates a new settings use case
func NewSettingsUseCase(store ports.DocumentStore, writer *OrgWriter, log logger.Logger) *SettingsUseCase {
	return &SettingsUseCase{store: store, writer: writer, log: log}
}

// GetOrganization returns the organization on the context
func (uc *SettingsUseCase) GetOrganization(ctx context.Context) (*domain.Organization, error) {
	orgID, ok := tenant.OrgFromContext(ctx)
	if !ok {
		return nil, domain.ErrOrganizationRequired
	}
	doc, err := uc.store.Get(ctx, domain.OrganizationsCollection, orgID)
	if err != nil {
		return nil, err
	}
	var org domain.Organization
	if err := domain.DecodeDocument(*doc, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

// UpdateSettings changes the non-empty fields of the form
func (uc *SettingsUseCase) UpdateSettings(ctx context.Context, form SettingsForm) (*domain.Organization, error) {
	orgID, ok := tenant.OrgFromContext(ctx)
	if !ok {
		return nil, domain.ErrOrganizationRequired
	}
	form.Name = strings.TrimSpace(form.Name)
	form.Currency = strings.ToUpper(strings.TrimSpace(form.Currency))
	if err := ValidateForm(&form); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	for key, value := range map[string]string{
		"name":     form.Name,
		"currency": form.Currency,
		"timezone": form.Timezone,
		"plan":     form.Plan,
	} {
		if value != "" {
			fields[key] = value
		}
	}
	if len(fields) == 0 {
		return nil, domain.NewValidationError(map[string]string{"settings": "At least one setting must be provided."})
	}
	fields["updatedAt"] = domain.FormatTimestamp(uc.writer.now())

	batch := domain.NewWriteBatch().Merge(domain.OrganizationsCollection, orgID, fields, nil)
	if err := uc.writer.Commit(ctx, batch); err != nil {
		return nil, err
	}
	uc.writer.RecordActivity(ctx, "UPDATE_SETTINGS", orgID)
	return uc.GetOrganization(ctx)
}

// ListMembers returns every membership of the organization
func (uc *SettingsUseCase) ListMembers(ctx context.Context) ([]domain.Membership, error) {
	orgID, ok := tenant.OrgFromContext(ctx)
	if !ok {
		return nil, domain.ErrOrganizationRequired
	}
	docs, err := uc.store.List(ctx, domain.CollectionPath(orgID, domain.KindMembers))
	if err != nil {
		return nil, err
	}
	return domain.DecodeDocuments[domain.Membership](docs)
}

// InviteMember adds or replaces a membership with the given role
func (uc *SettingsUseCase) InviteMember(ctx context.Context, form InviteForm) (*domain.Membership, error) {
	orgID, ok := tenant.OrgFromContext(ctx)
	if !ok {
		return nil, domain.ErrOrganizationRequired
	}
	if err := ValidateForm(&form); err != nil {
		return nil, err
	}

	member := domain.Membership{
		UID:         strings.TrimSpace(form.UID),
		Email:       strings.TrimSpace(form.Email),
		DisplayName: strings.TrimSpace(form.DisplayName),
		Role:        domain.Role(form.Role),
	}
	fields, err := domain.EncodeFields(member)
	if err != nil {
		return nil, err
	}

	batch := domain.NewWriteBatch().Merge(domain.CollectionPath(orgID, domain.KindMembers), member.UID, fields, nil)
	if err := uc.writer.Commit(ctx, batch); err != nil {
		return nil, err
	}
	uc.writer.RecordActivity(ctx, domain.ActionFor("invite", domain.KindMembers), member.Email)
	return &member, nil
}

// ChangeRole sets the role of an existing member
func (uc *SettingsUseCase) ChangeRole(ctx context.Context, uid string, form RoleForm) (*domain.Membership, error) {
	orgID, ok := tenant.OrgFromContext(ctx)
	if !ok {
		return nil, domain.ErrOrganizationRequired
	}
	if err := ValidateForm(&form); err != nil {
		return nil, err
	}

	collection := domain.CollectionPath(orgID, domain.KindMembers)
	doc, err := uc.store.Get(ctx, collection, uid)
	if err != nil {
		return nil, err
	}
	var member domain.Membership
	if err := domain.DecodeDocument(*doc, &member); err != nil {
		return nil, err
	}

	batch := domain.NewWriteBatch().Merge(collection, uid, map[string]interface{}{"role": form.Role}, nil)
	if err := uc.writer.Commit(ctx, batch); err != nil {
		return nil, err
	}
	member.Role = domain.Role(form.Role)
	uc.writer.RecordActivity(ctx, "UPDATE_USER_ROLE", member.Email+" to "+form.Role)
	return &member, nil
}
