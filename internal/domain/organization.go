package domain

import (
	"regexp"
	"strings"
	"time"
)

// Organization defaults applied at onboarding
const (
	DefaultCurrency = "INR"
	DefaultTimezone = "Asia/Kolkata"
	DefaultPlan     = PlanFree

	maxOrgIDLength = 50
)

// Plan is the subscription tier of an organization
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// Role is a member's role inside an organization
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleFinance Role = "finance"
	RoleSales   Role = "sales"
	RoleIT      Role = "it"
	RoleViewer  Role = "viewer"
)

// Valid reports whether the role is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleFinance, RoleSales, RoleIT, RoleViewer:
		return true
	}
	return false
}

// Organization is the tenant root document
type Organization struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	OwnerID   string `json:"ownerId"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt,omitempty"`
	Currency  string `json:"currency"`
	Timezone  string `json:"timezone"`
	Plan      Plan   `json:"plan"`
}

// NewOrganization returns an organization with onboarding defaults
func NewOrganization(id, name, ownerID string, now time.Time) Organization {
	return Organization{
		ID:        id,
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: FormatTimestamp(now),
		Currency:  DefaultCurrency,
		Timezone:  DefaultTimezone,
		Plan:      DefaultPlan,
	}
}

// Membership is a user's record inside an organization
type Membership struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
}

var separatorRun = regexp.MustCompile(`[\s/]+`)

// OrgIDFromName derives the organization id: lowercased, runs of whitespace or "/" replaced by "-", at most 50 characters.
// The id is a single path segment, so it never contains "/".
func OrgIDFromName(name string) string {
	id := separatorRun.ReplaceAllString(strings.ToLower(name), "-")
	runes := []rune(id)
	if len(runes) > maxOrgIDLength {
		runes = runes[:maxOrgIDLength]
	}
	return string(runes)
}

// FormatTimestamp renders timestamps the way documents store them
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
