package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestOrgIDFromName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Acme", "acme"},
		{"replaces whitespace runs", "Acme  MSP\tGroup", "acme-msp-group"},
		{"caps length", strings.Repeat("a", 60), strings.Repeat("a", 50)},
		{"keeps punctuation", "Acme Inc.", "acme-inc."},
		{"replaces path separators", "Acme / MSP//Group", "acme-msp-group"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OrgIDFromName(tt.in); got != tt.want {
				t.Errorf("OrgIDFromName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewOrganization_Defaults(t *testing.T) {
	now := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	org := NewOrganization("acme", "Acme", "u1", now)

	if org.Currency != "INR" {
		t.Errorf("Expected currency INR, got %s", org.Currency)
	}
	if org.Timezone != "Asia/Kolkata" {
		t.Errorf("Expected timezone Asia/Kolkata, got %s", org.Timezone)
	}
	if org.Plan != PlanFree {
		t.Errorf("Expected plan free, got %s", org.Plan)
	}
	if org.CreatedAt != "2024-07-01T10:00:00Z" {
		t.Errorf("Unexpected createdAt %s", org.CreatedAt)
	}
}

func TestPaths(t *testing.T) {
	if got := CollectionPath("acme", KindClients); got != "organizations/acme/clients" {
		t.Errorf("unexpected collection path %s", got)
	}

	if err := ValidateCollectionPath("organizations/acme/clients"); err != nil {
		t.Errorf("expected valid collection path, got %v", err)
	}
	if err := ValidateCollectionPath("organizations/acme"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got %v", err)
	}
	if err := ValidateCollectionPath("organizations//clients"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath for empty segment, got %v", err)
	}

	coll, id, err := SplitDocumentPath("organizations/acme/clients/c1")
	if err != nil || coll != "organizations/acme/clients" || id != "c1" {
		t.Errorf("unexpected split %q %q %v", coll, id, err)
	}

	orgID, kind, ok := ParseTenantCollection("organizations/acme/leads")
	if !ok || orgID != "acme" || kind != KindLeads {
		t.Errorf("unexpected tenant collection %q %q %v", orgID, kind, ok)
	}
	if _, _, ok := ParseTenantCollection("organizations/acme/widgets"); ok {
		t.Error("expected unknown kind to be rejected")
	}
}

func TestWriteOp_Apply(t *testing.T) {
	merge := WriteOp{
		Kind:       WriteMerge,
		Collection: "organizations",
		ID:         "acme",
		Fields:     map[string]interface{}{"updatedAt": "t2"},
		Defaults:   map[string]interface{}{"ownerId": "u1", "updatedAt": "t0"},
	}

	inserted, err := merge.Apply(nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inserted["ownerId"] != "u1" || inserted["updatedAt"] != "t2" {
		t.Errorf("unexpected insert result %v", inserted)
	}

	updated, err := merge.Apply(map[string]interface{}{"ownerId": "u9", "name": "Acme"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated["ownerId"] != "u9" || updated["name"] != "Acme" || updated["updatedAt"] != "t2" {
		t.Errorf("defaults must not overwrite an existing document: %v", updated)
	}

	create := WriteOp{Kind: WriteCreate, Collection: "organizations/acme/clients", ID: "c1", Fields: map[string]interface{}{"name": "A"}}
	if _, err := create.Apply(map[string]interface{}{}, true); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestWriteBatch_Validate(t *testing.T) {
	if err := NewWriteBatch().Validate(); err == nil {
		t.Error("expected empty batch to be rejected")
	}

	b := NewWriteBatch().
		Merge(OrganizationsCollection, "acme", map[string]interface{}{"updatedAt": "t"}, nil).
		Create(CollectionPath("acme", KindClients), "", map[string]interface{}{})
	if err := b.Validate(); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath for empty id, got %v", err)
	}
}

func TestFilter_Matches(t *testing.T) {
	fields := map[string]interface{}{"status": "paid", "amount": float64(150000), "billable": true}

	tests := []struct {
		filter Filter
		want   bool
	}{
		{Filter{Field: "status", Op: OpEqual, Value: "paid"}, true},
		{Filter{Field: "status", Op: OpNotEqual, Value: "paid"}, false},
		{Filter{Field: "amount", Op: OpGreaterThan, Value: 100000}, true},
		{Filter{Field: "amount", Op: OpLessOrEqual, Value: int64(150000)}, true},
		{Filter{Field: "billable", Op: OpEqual, Value: true}, true},
		{Filter{Field: "missing", Op: OpEqual, Value: "x"}, false},
		{Filter{Field: "amount", Op: OpEqual, Value: "150000"}, false},
	}

	for _, tt := range tests {
		if got := tt.filter.Matches(fields); got != tt.want {
			t.Errorf("%+v.Matches = %v, want %v", tt.filter, got, tt.want)
		}
	}
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("amount,>=,1000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Value != float64(1000) || f.Op != OpGreaterOrEqual {
		t.Errorf("unexpected filter %+v", f)
	}

	if _, err := ParseFilter("amount,~,1"); err == nil {
		t.Error("expected unsupported operator to fail")
	}
	var verr *ValidationError
	if _, err := ParseFilter("amount"); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestSoftwareLicense_ExpiresSoon(t *testing.T) {
	now := time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		renewal string
		want    bool
	}{
		{"2024-07-30", true},
		{"2024-08-14", true},
		{"2024-08-20", false},
		{"2024-07-01", false},
		{"not-a-date", false},
	}

	for _, tt := range tests {
		s := SoftwareLicense{RenewalDate: tt.renewal}
		if got := s.ExpiresSoon(now); got != tt.want {
			t.Errorf("ExpiresSoon(%s) = %v, want %v", tt.renewal, got, tt.want)
		}
	}
}

func TestDocument_MarshalJSON(t *testing.T) {
	doc := Document{ID: "c1", Collection: "organizations/acme/clients", Fields: map[string]interface{}{"name": "Acme"}}

	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `{"id":"c1","name":"Acme"}` {
		t.Errorf("unexpected JSON %s", raw)
	}

	var client Client
	if err := DecodeDocument(doc, &client); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.ID != "c1" || client.Name != "Acme" {
		t.Errorf("unexpected client %+v", client)
	}
}

func TestEncodeFields_DropsID(t *testing.T) {
	fields, err := EncodeFields(Lead{ID: "l1", Name: "QuantumLeap Corp", Value: 500000, Status: LeadNew})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := fields["id"]; ok {
		t.Error("expected id to be dropped")
	}
	if fields["value"] != float64(500000) {
		t.Errorf("unexpected value %v", fields["value"])
	}
}

func TestRole_Access(t *testing.T) {
	if !RoleSales.CanWrite(KindClients) {
		t.Error("sales should create clients")
	}
	if RoleViewer.CanWrite(KindClients) {
		t.Error("viewer must not create clients")
	}
	if !RoleViewer.CanWrite(KindActivity) {
		t.Error("any member may append activity")
	}
	if RoleFinance.CanManageMembers() {
		t.Error("finance must not manage members")
	}
	if ActionFor("create", KindClients) != "CREATE_CLIENT" {
		t.Errorf("unexpected action %s", ActionFor("create", KindClients))
	}
}
