package usecase

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/infra/logger"
	"github.com/opsdeck/opsdeck/internal/ports"
	"github.com/opsdeck/opsdeck/internal/tenant"
	"golang.org/x/sync/errgroup"
)

// DashboardReport holds the headline KPIs
type DashboardReport struct {
	TotalMRR            float64 `json:"totalMrr"`
	ARR                 float64 `json:"arr"`
	ClientCount         int     `json:"clientCount"`
	OutstandingInvoices int     `json:"outstandingInvoices"`
	OutstandingAmount   float64 `json:"outstandingAmount"`
	OpenLeads           int     `json:"openLeads"`
	ExpiringLicenses    int     `json:"expiringLicenses"`
}

// StatusTotal sums invoices sharing a status
type StatusTotal struct {
	Status domain.InvoiceStatus `json:"status"`
	Count  int                  `json:"count"`
	Amount float64              `json:"amount"`
}

// DepartmentSpend sums expenses of one department
type DepartmentSpend struct {
	Department string  `json:"department"`
	Amount     float64 `json:"amount"`
}

// FinancialReport summarizes invoices and expenses
type FinancialReport struct {
	Invoices      []StatusTotal     `json:"invoices"`
	Revenue       float64           `json:"revenue"`
	Outstanding   float64           `json:"outstanding"`
	Expenses      []DepartmentSpend `json:"expenses"`
	TotalExpenses float64           `json:"totalExpenses"`
}

// VendorSpend sums license cost per vendor
type VendorSpend struct {
	Vendor string  `json:"vendor"`
	Amount float64 `json:"amount"`
}

// ExpiringLicense is a license renewing within the expiry window
type ExpiringLicense struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Vendor      string `json:"vendor"`
	RenewalDate string `json:"renewalDate"`
	DaysLeft    int    `json:"daysLeft"`
}

// SoftwareReport summarizes license spend and upcoming renewals
type SoftwareReport struct {
	TotalSpend   float64           `json:"totalSpend"`
	ByVendor     []VendorSpend     `json:"byVendor"`
	ExpiringSoon []ExpiringLicense `json:"expiringSoon"`
}

// EngineerUtilization is billable share of an engineer's logged hours
type EngineerUtilization struct {
	Engineer    string  `json:"engineer"`
	Billable    float64 `json:"billable"`
	NonBillable float64 `json:"nonBillable"`
	Utilization int     `json:"utilization"`
}

// UtilizationReport lists utilization per engineer plus the team figure
type UtilizationReport struct {
	Engineers []EngineerUtilization `json:"engineers"`
	Overall   int                   `json:"overall"`
}

// FunnelStage counts leads in one pipeline stage
type FunnelStage struct {
	Status domain.LeadStatus `json:"status"`
	Count  int               `json:"count"`
	Value  float64           `json:"value"`
}

// LeadFunnelReport counts leads per stage in funnel order
type LeadFunnelReport struct {
	Stages  []FunnelStage `json:"stages"`
	Total   int           `json:"total"`
	WinRate int           `json:"winRate"`
}

// ReportUseCase aggregates tenant collections into dashboard reports
type ReportUseCase struct {
	store ports.DocumentStore
	log   logger.Logger
	now   func() time.Time
}

// NewReportUseCase creates a new report use case
func NewReportUseCase(store ports.DocumentStore, log logger.Logger) *ReportUseCase {
	return &ReportUseCase{store: store, log: log, now: time.Now}
}

func loadCollection[T any](ctx context.Context, store ports.DocumentStore, orgID string, kind domain.EntityKind) ([]T, error) {
	docs, err := store.List(ctx, domain.CollectionPath(orgID, kind))
	if err != nil {
		return nil, err
	}
	return domain.DecodeDocuments[T](docs)
}

func orgFrom(ctx context.Context) (string, error) {
	orgID, ok := tenant.OrgFromContext(ctx)
	if !ok {
		return "", domain.ErrOrganizationRequired
	}
	return orgID, nil
}

// Dashboard loads clients, invoices, leads and software concurrently
func (uc *ReportUseCase) Dashboard(ctx context.Context) (*DashboardReport, error) {
	orgID, err := orgFrom(ctx)
	if err != nil {
		return nil, err
	}

	var (
		clients  []domain.Client
		invoices []domain.Invoice
		leads    []domain.Lead
		software []domain.SoftwareLicense
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		clients, err = loadCollection[domain.Client](gctx, uc.store, orgID, domain.KindClients)
		return err
	})
	g.Go(func() (err error) {
		invoices, err = loadCollection[domain.Invoice](gctx, uc.store, orgID, domain.KindInvoices)
		return err
	})
	g.Go(func() (err error) {
		leads, err = loadCollection[domain.Lead](gctx, uc.store, orgID, domain.KindLeads)
		return err
	})
	g.Go(func() (err error) {
		software, err = loadCollection[domain.SoftwareLicense](gctx, uc.store, orgID, domain.KindSoftware)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &DashboardReport{ClientCount: len(clients)}
	for _, c := range clients {
		report.TotalMRR += c.MRR
	}
	report.ARR = report.TotalMRR * 12
	for _, inv := range invoices {
		if inv.Outstanding() {
			report.OutstandingInvoices++
			report.OutstandingAmount += inv.Amount
		}
	}
	for _, l := range leads {
		if l.Status != domain.LeadWon && l.Status != domain.LeadLost {
			report.OpenLeads++
		}
	}
	now := uc.now()
	for _, s := range software {
		if s.ExpiresSoon(now) {
			report.ExpiringLicenses++
		}
	}
	return report, nil
}

// Financials totals invoices by status and expenses by department
func (uc *ReportUseCase) Financials(ctx context.Context) (*FinancialReport, error) {
	orgID, err := orgFrom(ctx)
	if err != nil {
		return nil, err
	}

	var (
		invoices []domain.Invoice
		expenses []domain.Expense
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		invoices, err = loadCollection[domain.Invoice](gctx, uc.store, orgID, domain.KindInvoices)
		return err
	})
	g.Go(func() (err error) {
		expenses, err = loadCollection[domain.Expense](gctx, uc.store, orgID, domain.KindExpenses)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &FinancialReport{}
	byStatus := map[domain.InvoiceStatus]*StatusTotal{}
	for _, status := range []domain.InvoiceStatus{domain.InvoicePaid, domain.InvoiceUnpaid, domain.InvoiceOverdue} {
		report.Invoices = append(report.Invoices, StatusTotal{Status: status})
	}
	for i := range report.Invoices {
		byStatus[report.Invoices[i].Status] = &report.Invoices[i]
	}
	for _, inv := range invoices {
		total, ok := byStatus[inv.Status]
		if !ok {
			continue
		}
		total.Count++
		total.Amount += inv.Amount
		if inv.Status == domain.InvoicePaid {
			report.Revenue += inv.Amount
		} else {
			report.Outstanding += inv.Amount
		}
	}

	byDept := map[string]float64{}
	for _, e := range expenses {
		byDept[e.Department] += e.Amount
		report.TotalExpenses += e.Amount
	}
	report.Expenses = make([]DepartmentSpend, 0, len(byDept))
	for dept, amount := range byDept {
		report.Expenses = append(report.Expenses, DepartmentSpend{Department: dept, Amount: amount})
	}
	sort.Slice(report.Expenses, func(i, j int) bool { return report.Expenses[i].Department < report.Expenses[j].Department })
	return report, nil
}

// Software sums license cost per vendor and lists renewals due within the expiry window
func (uc *ReportUseCase) Software(ctx context.Context) (*SoftwareReport, error) {
	orgID, err := orgFrom(ctx)
	if err != nil {
		return nil, err
	}
	software, err := loadCollection[domain.SoftwareLicense](ctx, uc.store, orgID, domain.KindSoftware)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	report := &SoftwareReport{ExpiringSoon: []ExpiringLicense{}}
	byVendor := map[string]float64{}
	for _, s := range software {
		cost := s.TotalCost()
		byVendor[s.Vendor] += cost
		report.TotalSpend += cost
		if s.ExpiresSoon(now) {
			days, _ := s.DaysUntilRenewal(now)
			report.ExpiringSoon = append(report.ExpiringSoon, ExpiringLicense{
				ID:          s.ID,
				Name:        s.Name,
				Vendor:      s.Vendor,
				RenewalDate: s.RenewalDate,
				DaysLeft:    days,
			})
		}
	}

	report.ByVendor = make([]VendorSpend, 0, len(byVendor))
	for vendor, amount := range byVendor {
		report.ByVendor = append(report.ByVendor, VendorSpend{Vendor: vendor, Amount: amount})
	}
	sort.Slice(report.ByVendor, func(i, j int) bool {
		if report.ByVendor[i].Amount != report.ByVendor[j].Amount {
			return report.ByVendor[i].Amount > report.ByVendor[j].Amount
		}
		return report.ByVendor[i].Vendor < report.ByVendor[j].Vendor
	})
	sort.SliceStable(report.ExpiringSoon, func(i, j int) bool {
		return report.ExpiringSoon[i].DaysLeft < report.ExpiringSoon[j].DaysLeft
	})
	return report, nil
}

// Utilization computes billable hours over total hours per engineer, as a rounded percent
func (uc *ReportUseCase) Utilization(ctx context.Context) (*UtilizationReport, error) {
	orgID, err := orgFrom(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := loadCollection[domain.TimeEntry](ctx, uc.store, orgID, domain.KindTimeEntries)
	if err != nil {
		return nil, err
	}

	byEngineer := map[string]*EngineerUtilization{}
	var billable, total float64
	for _, e := range entries {
		u, ok := byEngineer[e.Engineer]
		if !ok {
			u = &EngineerUtilization{Engineer: e.Engineer}
			byEngineer[e.Engineer] = u
		}
		if e.Billable {
			u.Billable += e.Hours
			billable += e.Hours
		} else {
			u.NonBillable += e.Hours
		}
		total += e.Hours
	}

	report := &UtilizationReport{Engineers: make([]EngineerUtilization, 0, len(byEngineer)), Overall: percent(billable, total)}
	for _, u := range byEngineer {
		u.Utilization = percent(u.Billable, u.Billable+u.NonBillable)
		report.Engineers = append(report.Engineers, *u)
	}
	sort.Slice(report.Engineers, func(i, j int) bool { return report.Engineers[i].Engineer < report.Engineers[j].Engineer })
	return report, nil
}

// LeadFunnel counts leads per status in funnel order
func (uc *ReportUseCase) LeadFunnel(ctx context.Context) (*LeadFunnelReport, error) {
	orgID, err := orgFrom(ctx)
	if err != nil {
		return nil, err
	}
	leads, err := loadCollection[domain.Lead](ctx, uc.store, orgID, domain.KindLeads)
	if err != nil {
		return nil, err
	}

	report := &LeadFunnelReport{Stages: make([]FunnelStage, len(domain.LeadStatuses))}
	index := make(map[domain.LeadStatus]int, len(domain.LeadStatuses))
	for i, status := range domain.LeadStatuses {
		report.Stages[i].Status = status
		index[status] = i
	}
	var won, closed int
	for _, l := range leads {
		i, ok := index[l.Status]
		if !ok {
			continue
		}
		report.Stages[i].Count++
		report.Stages[i].Value += l.Value
		report.Total++
		switch l.Status {
		case domain.LeadWon:
			won++
			closed++
		case domain.LeadLost:
			closed++
		}
	}
	report.WinRate = percent(float64(won), float64(closed))
	return report, nil
}

func percent(part, whole float64) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(part / whole * 100))
}
