package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/infra/logger"
	"github.com/opsdeck/opsdeck/internal/infra/metrics"
	"github.com/opsdeck/opsdeck/internal/ports"
	"github.com/opsdeck/opsdeck/internal/tenant"
)

// OrgWriter commits organization-scoped batches. Denied batches are reported to the fault reporter
// and returned to the caller as *domain.PermissionError.
type OrgWriter struct {
	store  ports.DocumentStore
	faults ports.FaultReporter
	log    logger.Logger
	now    func() time.Time
}

// NewOrgWriter creates a writer over the given store
func NewOrgWriter(store ports.DocumentStore, faults ports.FaultReporter, log logger.Logger) *OrgWriter {
	return &OrgWriter{store: store, faults: faults, log: log, now: time.Now}
}

// CreateEntity ensures the organization and the caller's membership exist and creates the entity,
// all in one atomic batch. It returns the new document id.
func (w *OrgWriter) CreateEntity(ctx context.Context, kind domain.EntityKind, fields map[string]interface{}) (string, error) {
	orgID, ok := tenant.OrgFromContext(ctx)
	if !ok {
		return "", domain.ErrOrganizationRequired
	}
	principal, ok := tenant.PrincipalFromContext(ctx)
	if !ok {
		return "", domain.ErrUnauthenticated
	}

	batch, err := w.ensureMembership(orgID, principal)
	if err != nil {
		return "", err
	}
	id := domain.NewDocumentID()
	batch.Create(domain.CollectionPath(orgID, kind), id, fields)

	if err := w.Commit(ctx, batch); err != nil {
		return "", err
	}
	return id, nil
}

// ensureMembership starts a batch that upserts the organization and the caller's membership.
// Existing organizations and roles are left untouched; only bookkeeping fields are refreshed.
func (w *OrgWriter) ensureMembership(orgID string, p tenant.Principal) (*domain.WriteBatch, error) {
	now := w.now()
	orgDefaults, err := domain.EncodeFields(domain.NewOrganization(orgID, orgID, p.UserID, now))
	if err != nil {
		return nil, err
	}

	member := map[string]interface{}{"uid": p.UserID}
	if p.Email != "" {
		member["email"] = p.Email
	}
	if p.DisplayName != "" {
		member["displayName"] = p.DisplayName
	}

	batch := domain.NewWriteBatch().
		Merge(domain.OrganizationsCollection, orgID, map[string]interface{}{"updatedAt": domain.FormatTimestamp(now)}, orgDefaults).
		Merge(domain.CollectionPath(orgID, domain.KindMembers), p.UserID, member, map[string]interface{}{"role": string(domain.RoleAdmin)})
	return batch, nil
}

// Commit applies the batch. Errors other than denials are returned unchanged.
// The last write is the one the caller asked for and is what a fault reports.
func (w *OrgWriter) Commit(ctx context.Context, batch *domain.WriteBatch) error {
	start := w.now()
	err := w.store.Commit(ctx, batch)
	logger.LogPerformance(ctx, w.log, "org_batch_commit", time.Since(start), map[string]interface{}{"writes": batch.Len()})

	if err == nil {
		metrics.BatchCommits.WithLabelValues("committed").Inc()
		return nil
	}

	var denied *domain.PermissionError
	if errors.As(err, &denied) {
		metrics.BatchCommits.WithLabelValues("denied").Inc()
		w.reportDenied(ctx, batch, denied)
		return err
	}

	metrics.BatchCommits.WithLabelValues("failed").Inc()
	w.log.Error(ctx, "Failed to commit write batch", err, map[string]interface{}{"writes": batch.Len()})
	return err
}

func (w *OrgWriter) reportDenied(ctx context.Context, batch *domain.WriteBatch, denied *domain.PermissionError) {
	if w.faults == nil || batch.Len() == 0 {
		return
	}
	ops := batch.Ops()
	primary := ops[len(ops)-1]

	fault := domain.PermissionFault{
		Path:        primary.Path(),
		Operation:   faultOperation(primary, denied),
		RequestData: primary.InsertFields(),
		DeniedPath:  denied.Path,
		Reason:      denied.Reason,
		OccurredAt:  w.now().UTC(),
	}
	if orgID, ok := tenant.OrgFromContext(ctx); ok {
		fault.OrganizationID = orgID
	}
	if p, ok := tenant.PrincipalFromContext(ctx); ok {
		fault.UserID = p.UserID
	}
	w.faults.ReportPermissionFault(ctx, fault)
}

func faultOperation(primary domain.WriteOp, denied *domain.PermissionError) domain.Operation {
	switch {
	case primary.Kind == domain.WriteCreate:
		return domain.OperationCreate
	case denied.Path == primary.Path():
		return denied.Operation
	}
	return domain.OperationWrite
}

// RecordActivity appends an audit entry for the caller. Failures are logged and never returned.
func (w *OrgWriter) RecordActivity(ctx context.Context, action, target string) {
	orgID, ok := tenant.OrgFromContext(ctx)
	if !ok {
		return
	}
	principal, _ := tenant.PrincipalFromContext(ctx)
	user := principal.Email
	if user == "" {
		user = principal.UserID
	}

	fields, err := domain.EncodeFields(domain.ActivityEntry{
		User:      user,
		Action:    action,
		Target:    target,
		Timestamp: domain.FormatTimestamp(w.now()),
	})
	if err == nil {
		batch := domain.NewWriteBatch().Create(domain.CollectionPath(orgID, domain.KindActivity), domain.NewDocumentID(), fields)
		err = w.store.Commit(ctx, batch)
	}
	if err != nil {
		w.log.Warn(ctx, "Failed to record activity", map[string]interface{}{
			"action": action,
			"target": target,
			"error":  err.Error(),
		})
	}
}
