package usecase

import (
	"context"
	"time"

	"github.com/opsdeck/opsdeck/internal/adapter/persistence"
	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/infra/logger"
	"github.com/opsdeck/opsdeck/internal/ports"
	"github.com/opsdeck/opsdeck/internal/tenant"
	"github.com/stretchr/testify/mock"
)

var fixedNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

// MockFaultReporter is a mock implementation of ports.FaultReporter
type MockFaultReporter struct {
	mock.Mock
}

func (m *MockFaultReporter) ReportPermissionFault(ctx context.Context, fault domain.PermissionFault) {
	m.Called(ctx, fault)
}

// MockDocumentStore is a mock implementation of ports.DocumentStore
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Get(ctx context.Context, collection, id string) (*domain.Document, error) {
	args := m.Called(ctx, collection, id)
	doc, _ := args.Get(0).(*domain.Document)
	return doc, args.Error(1)
}

func (m *MockDocumentStore) List(ctx context.Context, collection string, filters ...domain.Filter) ([]domain.Document, error) {
	args := m.Called(ctx, collection, filters)
	docs, _ := args.Get(0).([]domain.Document)
	return docs, args.Error(1)
}

func (m *MockDocumentStore) Commit(ctx context.Context, batch *domain.WriteBatch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

func (m *MockDocumentStore) Watch(ctx context.Context, collection string) (ports.ChangeStream, error) {
	args := m.Called(ctx, collection)
	stream, _ := args.Get(0).(ports.ChangeStream)
	return stream, args.Error(1)
}

type fixture struct {
	inner  *persistence.MemoryDocumentStore
	store  *persistence.SecuredDocumentStore
	faults *MockFaultReporter
	writer *OrgWriter
}

func newFixture() *fixture {
	inner := persistence.NewMemoryDocumentStore()
	store := persistence.NewSecuredDocumentStore(inner)
	faults := &MockFaultReporter{}
	writer := NewOrgWriter(store, faults, logger.NewNop())
	writer.now = func() time.Time { return fixedNow }
	return &fixture{inner: inner, store: store, faults: faults, writer: writer}
}

// addMember writes a membership directly, bypassing access rules
func (f *fixture) addMember(orgID, uid string, role domain.Role) {
	batch := domain.NewWriteBatch().Merge(domain.CollectionPath(orgID, domain.KindMembers), uid,
		map[string]interface{}{"uid": uid, "email": uid + "@msp.com", "role": string(role)}, nil)
	if err := f.inner.Commit(context.Background(), batch); err != nil {
		panic(err)
	}
}

func actingAs(uid, orgID string) context.Context {
	ctx := tenant.WithPrincipal(context.Background(), tenant.Principal{UserID: uid, Email: uid + "@msp.com", DisplayName: uid})
	if orgID != "" {
		ctx = tenant.WithOrg(ctx, orgID)
	}
	return ctx
}
