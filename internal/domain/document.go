package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// OrganizationsCollection is the root collection every tenant document lives under
const OrganizationsCollection = "organizations"

// EntityKind names a tenant-scoped collection
type EntityKind string

const (
	KindClients     EntityKind = "clients"
	KindInvoices    EntityKind = "invoices"
	KindExpenses    EntityKind = "expenses"
	KindSoftware    EntityKind = "software"
	KindTimeEntries EntityKind = "timeEntries"
	KindLeads       EntityKind = "leads"
	KindActivity    EntityKind = "activity"
	KindMembers     EntityKind = "users"
)

// EntityKinds lists every collection that can exist under an organization
var EntityKinds = []EntityKind{
	KindClients,
	KindInvoices,
	KindExpenses,
	KindSoftware,
	KindTimeEntries,
	KindLeads,
	KindActivity,
	KindMembers,
}

// ParseEntityKind resolves a collection segment to a known kind
func ParseEntityKind(s string) (EntityKind, bool) {
	for _, k := range EntityKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Document is a schemaless field bag addressed by collection path and id
type Document struct {
	ID         string                 `json:"id"`
	Collection string                 `json:"-"`
	Fields     map[string]interface{} `json:"-"`
}

// Path returns the full document path
func (d Document) Path() string {
	return d.Collection + "/" + d.ID
}

// MarshalJSON flattens the document into {"id": ..., <fields>}
func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(d.Fields)+1)
	for k, v := range d.Fields {
		out[k] = v
	}
	out["id"] = d.ID
	return json.Marshal(out)
}

// OrgPath returns the path of an organization document
func OrgPath(orgID string) string {
	return OrganizationsCollection + "/" + orgID
}

// CollectionPath returns organizations/{orgId}/{kind}
func CollectionPath(orgID string, kind EntityKind) string {
	return OrganizationsCollection + "/" + orgID + "/" + string(kind)
}

// NewDocumentID generates an id for a newly created document
func NewDocumentID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// ValidateCollectionPath checks that a path addresses a collection (odd number of non-empty segments)
func ValidateCollectionPath(path string) error {
	segments := strings.Split(path, "/")
	if len(segments)%2 == 0 {
		return fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, path)
	}
	for _, s := range segments {
		if s == "" {
			return fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, path)
		}
	}
	return nil
}

// SplitDocumentPath splits a document path into its collection path and id
func SplitDocumentPath(path string) (collection, id string, err error) {
	segments := strings.Split(path, "/")
	if len(segments) < 2 || len(segments)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}
	for _, s := range segments {
		if s == "" {
			return "", "", fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, path)
		}
	}
	idx := strings.LastIndex(path, "/")
	return path[:idx], path[idx+1:], nil
}

// ParseTenantCollection extracts the organization id and kind from organizations/{orgId}/{kind}
func ParseTenantCollection(path string) (orgID string, kind EntityKind, ok bool) {
	segments := strings.Split(path, "/")
	if len(segments) != 3 || segments[0] != OrganizationsCollection || segments[1] == "" {
		return "", "", false
	}
	kind, ok = ParseEntityKind(segments[2])
	if !ok {
		return "", "", false
	}
	return segments[1], kind, true
}

// ChangeOperation describes what happened to a document
type ChangeOperation string

const (
	ChangeInsert  ChangeOperation = "insert"
	ChangeUpdate  ChangeOperation = "update"
	ChangeDelete  ChangeOperation = "delete"
	ChangeUnknown ChangeOperation = "unknown"
)

// ChangeEvent notifies a watcher that a document in a collection changed.
// An empty DocumentID means the whole collection must be considered stale.
type ChangeEvent struct {
	Collection string          `json:"collection"`
	DocumentID string          `json:"id"`
	Operation  ChangeOperation `json:"op"`
}

// Affects reports whether the event may have touched the given document
func (e ChangeEvent) Affects(id string) bool {
	return e.DocumentID == "" || e.DocumentID == id
}

func copyFields(src map[string]interface{}) map[string]interface{} {
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
