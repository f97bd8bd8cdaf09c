package usecase

import (
	"context"
	"strings"

	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/infra/logger"
	"github.com/opsdeck/opsdeck/internal/tenant"
)

// OnboardingUseCase creates a new organization with its creator as admin
type OnboardingUseCase struct {
	writer *OrgWriter
	log    logger.Logger
}

// NewOnboardingUseCase creates a new onboarding use case
func NewOnboardingUseCase(writer *OrgWriter, log logger.Logger) *OnboardingUseCase {
	return &OnboardingUseCase{writer: writer, log: log}
}

// CreateOrganization derives the organization id from its name and writes the organization
// and the admin membership atomically. An existing id fails with domain.ErrAlreadyExists.
func (uc *OnboardingUseCase) CreateOrganization(ctx context.Context, form OnboardingForm) (*domain.Organization, error) {
	form.OrganizationName = strings.TrimSpace(form.OrganizationName)
	if err := ValidateForm(&form); err != nil {
		return nil, err
	}
	principal, ok := tenant.PrincipalFromContext(ctx)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}

	orgID := domain.OrgIDFromName(form.OrganizationName)
	org := domain.NewOrganization(orgID, form.OrganizationName, principal.UserID, uc.writer.now())
	orgFields, err := domain.EncodeFields(org)
	if err != nil {
		return nil, err
	}
	member, err := domain.EncodeFields(domain.Membership{
		UID:         principal.UserID,
		Email:       principal.Email,
		DisplayName: principal.DisplayName,
		Role:        domain.RoleAdmin,
	})
	if err != nil {
		return nil, err
	}

	batch := domain.NewWriteBatch().
		Create(domain.OrganizationsCollection, orgID, orgFields).
		Merge(domain.CollectionPath(orgID, domain.KindMembers), principal.UserID, member, nil)

	ctx = tenant.WithOrg(ctx, orgID)
	if err := uc.writer.Commit(ctx, batch); err != nil {
		return nil, err
	}

	uc.writer.RecordActivity(ctx, "CREATE_ORGANIZATION", org.Name)
	uc.log.Info(ctx, "Organization created", map[string]interface{}{
		"organization_id": orgID,
		"owner_id":        principal.UserID,
	})
	return &org, nil
}
