package usecase

import (
	"errors"
	"testing"

	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr), "expected a validation error, got %v", err)
	return verr.Fields
}

func TestValidateForm_QuoteMessages(t *testing.T) {
	err := ValidateForm(&QuoteForm{ClientName: "  ", MRR: 0})

	assert.Equal(t, map[string]string{
		"clientName": "Client name is required.",
		"mrr":        "MRR must be a positive number.",
		"industry":   "Industry is required.",
	}, fieldErrors(t, err))
}

func TestValidateForm_OnboardingNameTooShort(t *testing.T) {
	err := ValidateForm(&OnboardingForm{OrganizationName: "ab"})
	assert.Equal(t, "Organization name must be at least 3 characters long", fieldErrors(t, err)["organizationName"])

	assert.NoError(t, ValidateForm(&OnboardingForm{OrganizationName: "Acme"}))
}

func TestValidateForm_OrganizationNameRejectsSlash(t *testing.T) {
	err := ValidateForm(&OnboardingForm{OrganizationName: "Acme/Global"})
	assert.Equal(t, `Organization name must not contain "/".`, fieldErrors(t, err)["organizationName"])

	err = ValidateForm(&SettingsForm{Name: "Acme/Global"})
	assert.Equal(t, `Organization name must not contain "/".`, fieldErrors(t, err)["name"])
}

func TestDecodeEntityForm(t *testing.T) {
	tests := []struct {
		name       string
		kind       domain.EntityKind
		body       string
		wantFields map[string]string
	}{
		{
			name: "valid client",
			kind: domain.KindClients,
			body: `{"name":"Innovate Co","industry":"Technology","mrr":150000,"contactEmail":"priya@innovate.co"}`,
		},
		{
			name:       "non-positive MRR",
			kind:       domain.KindClients,
			body:       `{"name":"Innovate Co","industry":"Technology","mrr":-5}`,
			wantFields: map[string]string{"mrr": "MRR must be a positive number."},
		},
		{
			name:       "MRR of the wrong type",
			kind:       domain.KindClients,
			body:       `{"name":"Innovate Co","industry":"Technology","mrr":"lots"}`,
			wantFields: map[string]string{"mrr": "must be a number"},
		},
		{
			name:       "bad invoice status and date",
			kind:       domain.KindInvoices,
			body:       `{"client":"HealthWell","amount":75000,"status":"pending","dueDate":"15/08/2024"}`,
			wantFields: map[string]string{"status": "Status must be one of: paid, unpaid, overdue.", "dueDate": "Due date must be a date (YYYY-MM-DD)."},
		},
		{
			name:       "too many hours",
			kind:       domain.KindTimeEntries,
			body:       `{"engineer":"Alice","client":"Innovate Co","hours":25,"date":"2024-07-01"}`,
			wantFields: map[string]string{"hours": "Hours must be at most 24."},
		},
		{
			name:       "zero licenses",
			kind:       domain.KindSoftware,
			body:       `{"name":"Zendesk Suite","vendor":"Zendesk","licenses":0,"costPerLicense":800,"renewalDate":"2024-07-30"}`,
			wantFields: map[string]string{"licenses": "Licenses must be a positive number."},
		},
		{
			name:       "not JSON",
			kind:       domain.KindExpenses,
			body:       `department=IT`,
			wantFields: map[string]string{"body": "request body is not valid JSON"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form, err := DecodeEntityForm(tt.kind, []byte(tt.body))
			if tt.wantFields == nil {
				require.NoError(t, err)
				assert.Equal(t, tt.kind, form.Kind())
				return
			}
			assert.Nil(t, form)
			assert.Equal(t, tt.wantFields, fieldErrors(t, err))
		})
	}
}

func TestDecodeEntityForm_RejectsUnformedKinds(t *testing.T) {
	for _, kind := range []domain.EntityKind{domain.KindActivity, domain.KindMembers} {
		_, err := DecodeEntityForm(kind, []byte(`{}`))
		assert.ErrorIs(t, err, domain.ErrInvalidPath)
	}
}

func TestLeadForm_DefaultsToNew(t *testing.T) {
	form, err := DecodeEntityForm(domain.KindLeads, []byte(`{"name":" Zenith Tech ","source":"Website","value":200000}`))
	require.NoError(t, err)

	lead := form.Entity().(domain.Lead)
	assert.Equal(t, domain.LeadNew, lead.Status)
	assert.Equal(t, "Zenith Tech", lead.Name)
	assert.Equal(t, "Zenith Tech", form.Label())
}

func TestClientForm_Entity(t *testing.T) {
	form := &ClientForm{Name: "HealthWell", Industry: "Healthcare", MRR: 75000, ContactName: "Rahul", ContactEmail: "rahul@healthwell.in"}

	client := form.Entity().(domain.Client)
	assert.Equal(t, domain.Contact{Name: "Rahul", Email: "rahul@healthwell.in"}, client.PrimaryContact)
	assert.Equal(t, 75000.0, client.MRR)
}
