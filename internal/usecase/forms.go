package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/opsdeck/opsdeck/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// ValidateForm checks a form struct and reports one message per offending field, keyed by its json name
func ValidateForm(form interface{}) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	t := reflect.TypeOf(form)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		label := fe.Field()
		if sf, ok := t.FieldByName(fe.StructField()); ok {
			if l := sf.Tag.Get("label"); l != "" {
				label = l
			}
		}
		if _, seen := fields[fe.Field()]; !seen {
			fields[fe.Field()] = fieldMessage(label, fe)
		}
	}
	return domain.NewValidationError(fields)
}

func fieldMessage(label string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required.", label)
	case "gt":
		if fe.Param() == "0" {
			return fmt.Sprintf("%s must be a positive number.", label)
		}
		return fmt.Sprintf("%s must be greater than %s.", label, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s.", label, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s.", label, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", label, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters long", label, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address.", label)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s.", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "datetime":
		return fmt.Sprintf("%s must be a date (YYYY-MM-DD).", label)
	case "timezone":
		return fmt.Sprintf("%s must be a valid time zone.", label)
	case "excludesall":
		return fmt.Sprintf("%s must not contain %q.", label, fe.Param())
	}
	return fmt.Sprintf("%s is invalid.", label)
}

// decodeForm unmarshals a request body into a form, turning type mismatches into field errors
func decodeForm(raw []byte, form interface{}) error {
	if err := json.Unmarshal(raw, form); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			msg := "has the wrong type"
			switch typeErr.Type.Kind() {
			case reflect.Int, reflect.Int64, reflect.Float64:
				msg = "must be a number"
			case reflect.Bool:
				msg = "must be true or false"
			case reflect.String:
				msg = "must be text"
			}
			return domain.NewValidationError(map[string]string{typeErr.Field: msg})
		}
		return domain.NewValidationError(map[string]string{"body": "request body is not valid JSON"})
	}
	return nil
}

// EntityForm is a validated create form for one entity kind
type EntityForm interface {
	Kind() domain.EntityKind
	// Entity returns the typed document to store
	Entity() interface{}
	// Label names the created record in the activity log
	Label() string
}

// ClientForm adds a client to the roster
type ClientForm struct {
	Name          string  `json:"name" label:"Client name" validate:"notblank"`
	Industry      string  `json:"industry" label:"Industry" validate:"notblank"`
	MRR           float64 `json:"mrr" label:"MRR" validate:"gt=0"`
	ContactName   string  `json:"contactName" label:"Contact name"`
	ContactEmail  string  `json:"contactEmail" label:"Contact email" validate:"omitempty,email"`
	ContractStart string  `json:"contractStart" label:"Contract start" validate:"omitempty,datetime=2006-01-02"`
	ContractEnd   string  `json:"contractEnd" label:"Contract end" validate:"omitempty,datetime=2006-01-02"`
}

func (f *ClientForm) Kind() domain.EntityKind { return domain.KindClients }
func (f *ClientForm) Label() string           { return strings.TrimSpace(f.Name) }

func (f *ClientForm) Entity() interface{} {
	return domain.Client{
		Name:           strings.TrimSpace(f.Name),
		Industry:       strings.TrimSpace(f.Industry),
		MRR:            f.MRR,
		PrimaryContact: domain.Contact{Name: strings.TrimSpace(f.ContactName), Email: strings.TrimSpace(f.ContactEmail)},
		ContractStart:  f.ContractStart,
		ContractEnd:    f.ContractEnd,
	}
}

// InvoiceForm issues an invoice
type InvoiceForm struct {
	Client  string  `json:"client" label:"Client" validate:"notblank"`
	Amount  float64 `json:"amount" label:"Amount" validate:"gt=0"`
	Status  string  `json:"status" label:"Status" validate:"required,oneof=paid unpaid overdue"`
	DueDate string  `json:"dueDate" label:"Due date" validate:"required,datetime=2006-01-02"`
}

func (f *InvoiceForm) Kind() domain.EntityKind { return domain.KindInvoices }
func (f *InvoiceForm) Label() string           { return "Invoice for " + strings.TrimSpace(f.Client) }

func (f *InvoiceForm) Entity() interface{} {
	return domain.Invoice{
		Client:  strings.TrimSpace(f.Client),
		Amount:  f.Amount,
		Status:  domain.InvoiceStatus(f.Status),
		DueDate: f.DueDate,
	}
}

// ExpenseForm records a department expense
type ExpenseForm struct {
	Department string  `json:"department" label:"Department" validate:"notblank"`
	Category   string  `json:"category" label:"Category" validate:"notblank"`
	Amount     float64 `json:"amount" label:"Amount" validate:"gt=0"`
	Date       string  `json:"date" label:"Date" validate:"required,datetime=2006-01-02"`
}

func (f *ExpenseForm) Kind() domain.EntityKind { return domain.KindExpenses }
func (f *ExpenseForm) Label() string {
	return strings.TrimSpace(f.Department) + " " + strings.TrimSpace(f.Category)
}

func (f *ExpenseForm) Entity() interface{} {
	return domain.Expense{
		Department: strings.TrimSpace(f.Department),
		Category:   strings.TrimSpace(f.Category),
		Amount:     f.Amount,
		Date:       f.Date,
	}
}

// SoftwareForm adds a licensed product to the inventory
type SoftwareForm struct {
	Name           string  `json:"name" label:"Software name" validate:"notblank"`
	Vendor         string  `json:"vendor" label:"Vendor" validate:"notblank"`
	Licenses       int     `json:"licenses" label:"Licenses" validate:"gt=0"`
	CostPerLicense float64 `json:"costPerLicense" label:"Cost per license" validate:"gte=0"`
	RenewalDate    string  `json:"renewalDate" label:"Renewal date" validate:"required,datetime=2006-01-02"`
}

func (f *SoftwareForm) Kind() domain.EntityKind { return domain.KindSoftware }
func (f *SoftwareForm) Label() string           { return strings.TrimSpace(f.Name) }

func (f *SoftwareForm) Entity() interface{} {
	return domain.SoftwareLicense{
		Name:           strings.TrimSpace(f.Name),
		Vendor:         strings.TrimSpace(f.Vendor),
		Licenses:       f.Licenses,
		CostPerLicense: f.CostPerLicense,
		RenewalDate:    f.RenewalDate,
	}
}

// TimeEntryForm logs engineer hours against a client
type TimeEntryForm struct {
	Engineer string  `json:"engineer" label:"Engineer" validate:"notblank"`
	Client   string  `json:"client" label:"Client" validate:"notblank"`
	Hours    float64 `json:"hours" label:"Hours" validate:"gt=0,lte=24"`
	Date     string  `json:"date" label:"Date" validate:"required,datetime=2006-01-02"`
	Billable bool    `json:"billable"`
}

func (f *TimeEntryForm) Kind() domain.EntityKind { return domain.KindTimeEntries }
func (f *TimeEntryForm) Label() string {
	return fmt.Sprintf("%s on %s", strings.TrimSpace(f.Engineer), strings.TrimSpace(f.Client))
}

func (f *TimeEntryForm) Entity() interface{} {
	return domain.TimeEntry{
		Engineer: strings.TrimSpace(f.Engineer),
		Client:   strings.TrimSpace(f.Client),
		Hours:    f.Hours,
		Date:     f.Date,
		Billable: f.Billable,
	}
}

// LeadForm opens a sales opportunity. Status defaults to new.
type LeadForm struct {
	Name   string  `json:"name" label:"Lead name" validate:"notblank"`
	Source string  `json:"source" label:"Source" validate:"notblank"`
	Value  float64 `json:"value" label:"Value" validate:"gte=0"`
	Status string  `json:"status" label:"Status" validate:"omitempty,oneof=new contacted proposal won lost"`
	Owner  string  `json:"owner" label:"Owner" validate:"omitempty,email"`
}

func (f *LeadForm) Kind() domain.EntityKind { return domain.KindLeads }
func (f *LeadForm) Label() string           { return strings.TrimSpace(f.Name) }

func (f *LeadForm) Entity() interface{} {
	status := domain.LeadStatus(f.Status)
	if status == "" {
		status = domain.LeadNew
	}
	return domain.Lead{
		Name:   strings.TrimSpace(f.Name),
		Source: strings.TrimSpace(f.Source),
		Value:  f.Value,
		Status: status,
		Owner:  f.Owner,
	}
}

// DecodeEntityForm parses and validates the create form for kind.
// Activity entries and memberships are not created through forms.
func DecodeEntityForm(kind domain.EntityKind, raw []byte) (EntityForm, error) {
	var form EntityForm
	switch kind {
	case domain.KindClients:
		form = &ClientForm{}
	case domain.KindInvoices:
		form = &InvoiceForm{}
	case domain.KindExpenses:
		form = &ExpenseForm{}
	case domain.KindSoftware:
		form = &SoftwareForm{}
	case domain.KindTimeEntries:
		form = &TimeEntryForm{}
	case domain.KindLeads:
		form = &LeadForm{}
	default:
		return nil, fmt.Errorf("%w: %s documents cannot be created directly", domain.ErrInvalidPath, kind)
	}

	if err := decodeForm(raw, form); err != nil {
		return nil, err
	}
	if err := ValidateForm(form); err != nil {
		return nil, err
	}
	return form, nil
}

// QuoteForm is the input of the quote generator
type QuoteForm struct {
	ClientName string  `json:"clientName" label:"Client name" validate:"notblank"`
	MRR        float64 `json:"mrr" label:"MRR" validate:"gt=0"`
	Industry   string  `json:"industry" label:"Industry" validate:"notblank"`
}

// OnboardingForm names the organization being created
type OnboardingForm struct {
	OrganizationName string `json:"organizationName" label:"Organization name" validate:"min=3,excludesall=/"`
}

// SettingsForm changes organization settings; empty fields are left unchanged
type SettingsForm struct {
	Name     string `json:"name" label:"Organization name" validate:"omitempty,min=3,excludesall=/"`
	Currency string `json:"currency" label:"Currency" validate:"omitempty,len=3"`
	Timezone string `json:"timezone" label:"Timezone" validate:"omitempty,timezone"`
	Plan     string `json:"plan" label:"Plan" validate:"omitempty,oneof=free pro enterprise"`
}

// InviteForm adds a member to the organization
type InviteForm struct {
	UID         string `json:"uid" label:"User id" validate:"notblank"`
	Email       string `json:"email" label:"Email" validate:"required,email"`
	DisplayName string `json:"displayName" label:"Display name"`
	Role        string `json:"role" label:"Role" validate:"required,oneof=admin finance sales it viewer"`
}

// RoleForm changes a member's role
type RoleForm struct {
	Role string `json:"role" label:"Role" validate:"required,oneof=admin finance sales it viewer"`
}
