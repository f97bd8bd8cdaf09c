package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/infra/logger"
	"github.com/opsdeck/opsdeck/internal/ports"
	"github.com/opsdeck/opsdeck/internal/tenant"
)

// SeedSummary counts the documents a seed wrote per collection
type SeedSummary struct {
	OrganizationID string                    `json:"organizationId"`
	Written        map[domain.EntityKind]int `json:"written"`
}

// SeedUseCase loads the sample data set into an organization.
// Sample records have fixed ids, so seeding twice upserts instead of duplicating.
type SeedUseCase struct {
	store  ports.DocumentStore
	writer *OrgWriter
	log    logger.Logger
}

// NewSeedUseCase creates a new seed use case
func NewSeedUseCase(store ports.DocumentStore, writer *OrgWriter, log logger.Logger) *SeedUseCase {
	return &SeedUseCase{store: store, writer: writer, log: log}
}

type sampleRecord struct {
	kind   domain.EntityKind
	id     string
	entity interface{}
}

// Seed writes the sample clients, invoices, expenses, software, time entries and leads in one batch.
// Sample activity entries are only added while the activity log is empty.
func (uc *SeedUseCase) Seed(ctx context.Context) (*SeedSummary, error) {
	orgID, ok := tenant.OrgFromContext(ctx)
	if !ok {
		return nil, domain.ErrOrganizationRequired
	}
	principal, ok := tenant.PrincipalFromContext(ctx)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}

	now := uc.writer.now()
	batch, err := uc.writer.ensureMembership(orgID, principal)
	if err != nil {
		return nil, err
	}

	summary := &SeedSummary{OrganizationID: orgID, Written: map[domain.EntityKind]int{}}
	for _, rec := range sampleRecords(now) {
		fields, err := domain.EncodeFields(rec.entity)
		if err != nil {
			return nil, err
		}
		batch.Merge(domain.CollectionPath(orgID, rec.kind), rec.id, fields, nil)
		summary.Written[rec.kind]++
	}
	if err := uc.writer.Commit(ctx, batch); err != nil {
		return nil, err
	}

	activity := domain.CollectionPath(orgID, domain.KindActivity)
	existing, err := uc.store.List(ctx, activity)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		log := domain.NewWriteBatch()
		for _, entry := range sampleActivity(now) {
			fields, err := domain.EncodeFields(entry)
			if err != nil {
				return nil, err
			}
			log.Create(activity, domain.NewDocumentID(), fields)
			summary.Written[domain.KindActivity]++
		}
		if err := uc.writer.Commit(ctx, log); err != nil {
			return nil, err
		}
	}

	uc.log.Info(ctx, "Sample data seeded", map[string]interface{}{
		"organization_id": orgID,
		"written":         summary.Written,
	})
	return summary, nil
}

func slug(s string) string {
	return domain.OrgIDFromName(strings.TrimSpace(s))
}

// sampleRecords returns the sample data set. Renewal dates are relative to now so that
// the expiring-licenses report always has something to show.
func sampleRecords(now time.Time) []sampleRecord {
	date := func(days int) string { return now.AddDate(0, 0, days).Format(domain.DateLayout) }

	var out []sampleRecord
	for _, c := range []domain.Client{
		{Name: "Innovate Co", Industry: "Technology", MRR: 150000, PrimaryContact: domain.Contact{Name: "Priya Sharma", Email: "priya@innovate.co"}, ContractStart: "2024-01-01", ContractEnd: "2025-12-31"},
		{Name: "HealthWell", Industry: "Healthcare", MRR: 75000, PrimaryContact: domain.Contact{Name: "Rahul Mehta", Email: "rahul@healthwell.in"}, ContractStart: "2024-03-15", ContractEnd: "2025-03-14"},
		{Name: "RetailRight", Industry: "Retail", MRR: 95000, PrimaryContact: domain.Contact{Name: "Anita Rao", Email: "anita@retailright.com"}, ContractStart: "2023-11-01", ContractEnd: "2025-10-31"},
	} {
		out = append(out, sampleRecord{domain.KindClients, slug(c.Name), c})
	}
	for id, inv := range map[string]domain.Invoice{
		"INV-001": {Client: "Innovate Co", Amount: 150000, Status: domain.InvoicePaid, DueDate: "2024-07-01"},
		"INV-002": {Client: "HealthWell", Amount: 75000, Status: domain.InvoiceUnpaid, DueDate: "2024-08-15"},
		"INV-003": {Client: "RetailRight", Amount: 95000, Status: domain.InvoiceOverdue, DueDate: "2024-06-30"},
	} {
		out = append(out, sampleRecord{domain.KindInvoices, id, inv})
	}
	for id, e := range map[string]domain.Expense{
		"EXP-101": {Department: "IT", Category: "Software", Amount: 45000, Date: "2024-07-10"},
		"EXP-102": {Department: "Sales", Category: "Payroll", Amount: 120000, Date: "2024-07-05"},
		"EXP-103": {Department: "Support", Category: "Hardware", Amount: 25000, Date: "2024-07-12"},
	} {
		out = append(out, sampleRecord{domain.KindExpenses, id, e})
	}
	for _, s := range []domain.SoftwareLicense{
		{Name: "Microsoft 365", Vendor: "Microsoft", Licenses: 150, CostPerLicense: 1200, RenewalDate: date(90)},
		{Name: "Adobe Creative Cloud", Vendor: "Adobe", Licenses: 25, CostPerLicense: 4000, RenewalDate: date(20)},
		{Name: "QuickBooks Online", Vendor: "Intuit", Licenses: 10, CostPerLicense: 2500, RenewalDate: date(60)},
		{Name: "Zendesk Suite", Vendor: "Zendesk", Licenses: 50, CostPerLicense: 800, RenewalDate: date(10)},
	} {
		out = append(out, sampleRecord{domain.KindSoftware, slug(s.Name), s})
	}
	for id, t := range map[string]domain.TimeEntry{
		"alice-innovate-billable":      {Engineer: "Alice", Client: "Innovate Co", Hours: 40, Date: date(-7), Billable: true},
		"alice-innovate-internal":      {Engineer: "Alice", Client: "Innovate Co", Hours: 8, Date: date(-7)},
		"bob-healthwell-billable":      {Engineer: "Bob", Client: "HealthWell", Hours: 35, Date: date(-7), Billable: true},
		"bob-healthwell-internal":      {Engineer: "Bob", Client: "HealthWell", Hours: 12, Date: date(-7)},
		"charlie-retailright-billable": {Engineer: "Charlie", Client: "RetailRight", Hours: 45, Date: date(-7), Billable: true},
		"charlie-retailright-internal": {Engineer: "Charlie", Client: "RetailRight", Hours: 5, Date: date(-7)},
	} {
		out = append(out, sampleRecord{domain.KindTimeEntries, id, t})
	}
	for _, l := range []domain.Lead{
		{Name: "QuantumLeap Corp", Source: "Website", Value: 500000, Status: domain.LeadNew, Owner: "sales@msp.com"},
		{Name: "Stellar Solutions", Source: "Referral", Value: 300000, Status: domain.LeadContacted, Owner: "admin@msp.com"},
		{Name: "Apex Innovations", Source: "Cold Call", Value: 750000, Status: domain.LeadWon, Owner: "sales@msp.com"},
		{Name: "Zenith Tech", Source: "Website", Value: 200000, Status: domain.LeadLost, Owner: "sales@msp.com"},
	} {
		out = append(out, sampleRecord{domain.KindLeads, slug(l.Name), l})
	}
	return out
}

func sampleActivity(now time.Time) []domain.ActivityEntry {
	at := func(ago time.Duration) string { return domain.FormatTimestamp(now.Add(-ago)) }
	return []domain.ActivityEntry{
		{User: "admin@msp.com", Action: "CREATE_CLIENT", Target: "RetailRight", Timestamp: at(0)},
		{User: "sales@msp.com", Action: "UPDATE_LEAD_STATUS", Target: `Apex Innovations to "won"`, Timestamp: at(time.Hour)},
		{User: "finance@msp.com", Action: "CREATE_INVOICE", Target: "Invoice #INV-003", Timestamp: at(2 * time.Hour)},
	}
}
