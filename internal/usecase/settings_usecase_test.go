package usecase

import (
	"errors"
	"testing"

	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/infra/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newSettingsFixture(t *testing.T) (*fixture, *SettingsUseCase) {
	t.Helper()
	f := newFixture()
	_, err := NewOnboardingUseCase(f.writer, logger.NewNop()).CreateOrganization(actingAs("owner", ""), OnboardingForm{OrganizationName: "Acme"})
	require.NoError(t, err)
	return f, NewSettingsUseCase(f.store, f.writer, logger.NewNop())
}

func TestSettingsUseCase_UpdateSettings(t *testing.T) {
	_, uc := newSettingsFixture(t)

	org, err := uc.UpdateSettings(actingAs("owner", "acme"), SettingsForm{Currency: "usd", Plan: "pro"})
	require.NoError(t, err)
	assert.Equal(t, "USD", org.Currency)
	assert.Equal(t, domain.PlanPro, org.Plan)
	assert.Equal(t, "Asia/Kolkata", org.Timezone)
	assert.Equal(t, "Acme", org.Name)
}

func TestSettingsUseCase_UpdateSettingsValidation(t *testing.T) {
	_, uc := newSettingsFixture(t)
	ctx := actingAs("owner", "acme")

	_, err := uc.UpdateSettings(ctx, SettingsForm{})
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "settings")

	_, err = uc.UpdateSettings(ctx, SettingsForm{Plan: "platinum", Timezone: "Mars/Olympus"})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Plan must be one of: free, pro, enterprise.", verr.Fields["plan"])
	assert.Equal(t, "Timezone must be a valid time zone.", verr.Fields["timezone"])
}

func TestSettingsUseCase_InviteAndChangeRole(t *testing.T) {
	f, uc := newSettingsFixture(t)
	ctx := actingAs("owner", "acme")

	invited, err := uc.InviteMember(ctx, InviteForm{UID: "fin", Email: "finance@msp.com", DisplayName: "Finance Team", Role: "finance"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleFinance, invited.Role)

	changed, err := uc.ChangeRole(ctx, "fin", RoleForm{Role: "viewer"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleViewer, changed.Role)
	assert.Equal(t, "finance@msp.com", changed.Email)

	members, err := uc.ListMembers(ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "fin", members[0].UID)
	assert.Equal(t, domain.RoleViewer, members[0].Role)

	actions, err := f.inner.List(ctx, "organizations/acme/activity", domain.Filter{Field: "action", Op: domain.OpEqual, Value: "INVITE_USER"})
	require.NoError(t, err)
	assert.Len(t, actions, 1)
}

func TestSettingsUseCase_ChangeRoleOfUnknownMember(t *testing.T) {
	_, uc := newSettingsFixture(t)

	_, err := uc.ChangeRole(actingAs("owner", "acme"), "ghost", RoleForm{Role: "it"})
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestSettingsUseCase_NonAdminIsDenied(t *testing.T) {
	f, uc := newSettingsFixture(t)
	f.addMember("acme", "sales", domain.RoleSales)
	f.faults.On("ReportPermissionFault", mock.Anything, mock.MatchedBy(func(fault domain.PermissionFault) bool {
		return fault.Path == "organizations/acme/users/sales" && fault.RequestData["role"] == "admin"
	})).Once()

	_, err := uc.InviteMember(actingAs("sales", "acme"), InviteForm{UID: "sales", Email: "sales@msp.com", Role: "admin"})

	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	f.faults.AssertExpectations(t)

	f.faults.On("ReportPermissionFault", mock.Anything, mock.MatchedBy(func(fault domain.PermissionFault) bool {
		return fault.Path == "organizations/acme" && fault.Operation == domain.OperationUpdate
	})).Once()

	_, err = uc.UpdateSettings(actingAs("sales", "acme"), SettingsForm{Plan: "enterprise"})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	f.faults.AssertExpectations(t)
}
