package domain

import (
	"math"
	"strings"
	"time"
)

// DateLayout is the calendar date format used by date-only fields
const DateLayout = "2006-01-02"

// ExpiryWindowDays is how close a renewal must be to count as expiring soon
const ExpiryWindowDays = 30

// Contact is a client's primary contact
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Client is a customer on the roster
type Client struct {
	ID             string  `json:"id,omitempty"`
	Name           string  `json:"name"`
	Industry       string  `json:"industry"`
	MRR            float64 `json:"mrr"`
	PrimaryContact Contact `json:"primaryContact"`
	ContractStart  string  `json:"contractStart,omitempty"`
	ContractEnd    string  `json:"contractEnd,omitempty"`
}

// InvoiceStatus is the payment state of an invoice
type InvoiceStatus string

const (
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceUnpaid  InvoiceStatus = "unpaid"
	InvoiceOverdue InvoiceStatus = "overdue"
)

// Invoice is a bill issued to a client
type Invoice struct {
	ID      string        `json:"id,omitempty"`
	Client  string        `json:"client"`
	Amount  float64       `json:"amount"`
	Status  InvoiceStatus `json:"status"`
	DueDate string        `json:"dueDate"`
}

// Outstanding reports whether the invoice still awaits payment
func (i Invoice) Outstanding() bool {
	return i.Status == InvoiceUnpaid || i.Status == InvoiceOverdue
}

// Expense is money spent by a department
type Expense struct {
	ID         string  `json:"id,omitempty"`
	Department string  `json:"department"`
	Category   string  `json:"category"`
	Amount     float64 `json:"amount"`
	Date       string  `json:"date"`
}

// SoftwareLicense is a licensed product in the inventory
type SoftwareLicense struct {
	ID             string  `json:"id,omitempty"`
	Name           string  `json:"name"`
	Vendor         string  `json:"vendor"`
	Licenses       int     `json:"licenses"`
	CostPerLicense float64 `json:"costPerLicense"`
	RenewalDate    string  `json:"renewalDate"`
}

// TotalCost is the spend across every seat
func (s SoftwareLicense) TotalCost() float64 {
	return float64(s.Licenses) * s.CostPerLicense
}

// DaysUntilRenewal rounds up to whole days; unparseable dates report ok=false
func (s SoftwareLicense) DaysUntilRenewal(now time.Time) (int, bool) {
	renewal, err := time.Parse(DateLayout, s.RenewalDate)
	if err != nil {
		return 0, false
	}
	return int(math.Ceil(renewal.Sub(now).Hours() / 24)), true
}

// ExpiresSoon is true when the renewal falls within the next 30 days
func (s SoftwareLicense) ExpiresSoon(now time.Time) bool {
	days, ok := s.DaysUntilRenewal(now)
	return ok && days > 0 && days <= ExpiryWindowDays
}

// TimeEntry is hours logged by an engineer
type TimeEntry struct {
	ID       string  `json:"id,omitempty"`
	Engineer string  `json:"engineer"`
	Client   string  `json:"client"`
	Hours    float64 `json:"hours"`
	Date     string  `json:"date"`
	Billable bool    `json:"billable"`
}

// LeadStatus is the pipeline stage of a lead
type LeadStatus string

const (
	LeadNew       LeadStatus = "new"
	LeadContacted LeadStatus = "contacted"
	LeadProposal  LeadStatus = "proposal"
	LeadWon       LeadStatus = "won"
	LeadLost      LeadStatus = "lost"
)

// LeadStatuses in funnel order
var LeadStatuses = []LeadStatus{LeadNew, LeadContacted, LeadProposal, LeadWon, LeadLost}

// Lead is a sales opportunity
type Lead struct {
	ID     string     `json:"id,omitempty"`
	Name   string     `json:"name"`
	Source string     `json:"source"`
	Value  float64    `json:"value"`
	Status LeadStatus `json:"status"`
	Owner  string     `json:"owner"`
}

// ActivityEntry is an append-only audit record
type ActivityEntry struct {
	ID        string `json:"id,omitempty"`
	User      string `json:"user"`
	Action    string `json:"action"`
	Target    string `json:"target"`
	Timestamp string `json:"timestamp"`
}

var entityNouns = map[EntityKind]string{
	KindClients:     "CLIENT",
	KindInvoices:    "INVOICE",
	KindExpenses:    "EXPENSE",
	KindSoftware:    "SOFTWARE",
	KindTimeEntries: "TIME_ENTRY",
	KindLeads:       "LEAD",
	KindMembers:     "USER",
}

// ActionFor names an audit action, e.g. ActionFor("create", KindClients) == "CREATE_CLIENT"
func ActionFor(verb string, kind EntityKind) string {
	noun, ok := entityNouns[kind]
	if !ok {
		noun = strings.ToUpper(string(kind))
	}
	return strings.ToUpper(verb) + "_" + noun
}
