package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/infra/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnboardingUseCase_CreateOrganization(t *testing.T) {
	f := newFixture()
	uc := NewOnboardingUseCase(f.writer, logger.NewNop())

	org, err := uc.CreateOrganization(actingAs("u1", ""), OnboardingForm{OrganizationName: "  Acme   Managed Services "})
	require.NoError(t, err)
	assert.Equal(t, "acme-managed-services", org.ID)
	assert.Equal(t, "Acme   Managed Services", org.Name)
	assert.Equal(t, "u1", org.OwnerID)

	stored, err := f.inner.Get(context.Background(), domain.OrganizationsCollection, "acme-managed-services")
	require.NoError(t, err)
	assert.Equal(t, "INR", stored.Fields["currency"])
	assert.Equal(t, "Asia/Kolkata", stored.Fields["timezone"])
	assert.Equal(t, "free", stored.Fields["plan"])

	member, err := f.inner.Get(context.Background(), domain.CollectionPath(org.ID, domain.KindMembers), "u1")
	require.NoError(t, err)
	assert.Equal(t, "admin", member.Fields["role"])
	assert.Equal(t, 1, f.inner.Count(domain.CollectionPath(org.ID, domain.KindActivity)))
}

func TestOnboardingUseCase_ExistingOrganization(t *testing.T) {
	f := newFixture()
	uc := NewOnboardingUseCase(f.writer, logger.NewNop())
	_, err := uc.CreateOrganization(actingAs("u1", ""), OnboardingForm{OrganizationName: "Acme"})
	require.NoError(t, err)

	_, err = uc.CreateOrganization(actingAs("u2", ""), OnboardingForm{OrganizationName: "ACME"})

	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	_, err = f.inner.Get(context.Background(), domain.CollectionPath("acme", domain.KindMembers), "u2")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestOnboardingUseCase_Validation(t *testing.T) {
	f := newFixture()
	uc := NewOnboardingUseCase(f.writer, logger.NewNop())

	_, err := uc.CreateOrganization(actingAs("u1", ""), OnboardingForm{OrganizationName: " ab "})
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Organization name must be at least 3 characters long", verr.Fields["organizationName"])

	_, err = uc.CreateOrganization(context.Background(), OnboardingForm{OrganizationName: "Acme"})
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}
