package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/infra/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestEntityUseCase_CreateRecordsActivity(t *testing.T) {
	f := newFixture()
	uc := NewEntityUseCase(f.store, f.writer, logger.NewNop())
	ctx := actingAs("u1", "acme")

	doc, err := uc.Create(ctx, domain.KindClients, []byte(`{"name":"Innovate Co","industry":"Technology","mrr":150000}`))
	require.NoError(t, err)
	assert.Equal(t, "organizations/acme/clients", doc.Collection)
	assert.Equal(t, "Innovate Co", doc.Fields["name"])

	activity, err := uc.List(ctx, domain.KindActivity, domain.Filter{Field: "action", Op: domain.OpEqual, Value: "CREATE_CLIENT"})
	require.NoError(t, err)
	require.Len(t, activity, 1)
	assert.Equal(t, "Innovate Co", activity[0].Fields["target"])
	assert.Equal(t, "u1@msp.com", activity[0].Fields["user"])
}

func TestEntityUseCase_InvalidFormWritesNothing(t *testing.T) {
	f := newFixture()
	uc := NewEntityUseCase(f.store, f.writer, logger.NewNop())

	_, err := uc.Create(actingAs("u1", "acme"), domain.KindClients, []byte(`{"name":"Innovate Co","industry":"Technology","mrr":0}`))

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "MRR must be a positive number.", verr.Fields["mrr"])
	_, err = f.inner.Get(context.Background(), domain.OrganizationsCollection, "acme")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestEntityUseCase_LeadOwnerDefaultsToCaller(t *testing.T) {
	f := newFixture()
	uc := NewEntityUseCase(f.store, f.writer, logger.NewNop())

	doc, err := uc.Create(actingAs("u1", "acme"), domain.KindLeads, []byte(`{"name":"Zenith Tech","source":"Website","value":200000}`))
	require.NoError(t, err)
	assert.Equal(t, "u1@msp.com", doc.Fields["owner"])
	assert.Equal(t, "new", doc.Fields["status"])
}

func TestEntityUseCase_DeniedCreateSkipsActivity(t *testing.T) {
	f := newFixture()
	uc := NewEntityUseCase(f.store, f.writer, logger.NewNop())
	_, err := uc.Create(actingAs("owner", "acme"), domain.KindClients, []byte(`{"name":"a","industry":"b","mrr":1}`))
	require.NoError(t, err)
	f.addMember("acme", "viewer", domain.RoleViewer)
	f.faults.On("ReportPermissionFault", mock.Anything, mock.Anything).Once()

	_, err = uc.Create(actingAs("viewer", "acme"), domain.KindClients, []byte(`{"name":"c","industry":"d","mrr":1}`))

	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	f.faults.AssertExpectations(t)
	assert.Equal(t, 1, f.inner.Count(domain.CollectionPath("acme", domain.KindActivity)))
}

func TestEntityUseCase_GetAndList(t *testing.T) {
	f := newFixture()
	uc := NewEntityUseCase(f.store, f.writer, logger.NewNop())
	ctx := actingAs("u1", "acme")

	paid, err := uc.Create(ctx, domain.KindInvoices, []byte(`{"client":"Innovate Co","amount":150000,"status":"paid","dueDate":"2024-07-01"}`))
	require.NoError(t, err)
	_, err = uc.Create(ctx, domain.KindInvoices, []byte(`{"client":"HealthWell","amount":75000,"status":"unpaid","dueDate":"2024-08-15"}`))
	require.NoError(t, err)

	got, err := uc.Get(ctx, domain.KindInvoices, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, "paid", got.Fields["status"])

	unpaid, err := uc.List(ctx, domain.KindInvoices, domain.Filter{Field: "status", Op: domain.OpEqual, Value: "unpaid"})
	require.NoError(t, err)
	require.Len(t, unpaid, 1)
	assert.Equal(t, "HealthWell", unpaid[0].Fields["client"])

	_, err = uc.List(actingAs("stranger", "acme"), domain.KindInvoices)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = uc.List(actingAs("u1", ""), domain.KindInvoices)
	assert.ErrorIs(t, err, domain.ErrOrganizationRequired)
}
