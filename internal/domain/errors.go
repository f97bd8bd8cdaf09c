package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Domain errors
var (
	ErrDocumentNotFound     = NewDomainError("document not found")
	ErrAlreadyExists        = NewDomainError("document already exists")
	ErrInvalidPath          = NewDomainError("invalid document path")
	ErrPermissionDenied     = NewDomainError("missing or insufficient permissions")
	ErrUnauthenticated      = NewDomainError("request is not authenticated")
	ErrOrganizationRequired = NewDomainError("organization is required")
	ErrGenerationFailed     = NewDomainError("could not generate quote")
	ErrMalformedOutput      = NewDomainError("generation output does not match schema")
)

// DomainError represents a domain-specific error
type DomainError struct {
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func NewDomainError(message string) *DomainError {
	return &DomainError{Message: message}
}

// ValidationError carries one message per offending field
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Operation is the access operation a request attempted
type Operation string

const (
	OperationGet    Operation = "get"
	OperationList   Operation = "list"
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationWrite  Operation = "write"
)

// PermissionError is returned when access rules reject a read or write
type PermissionError struct {
	Path      string
	Operation Operation
	Reason    string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s: %s on %s (%s)", ErrPermissionDenied.Message, e.Operation, e.Path, e.Reason)
}

func (e *PermissionError) Unwrap() error {
	return ErrPermissionDenied
}

// PermissionFault is the payload published when a write is denied
type PermissionFault struct {
	Path           string                 `json:"path"`
	Operation      Operation              `json:"operation"`
	RequestData    map[string]interface{} `json:"requestResourceData,omitempty"`
	DeniedPath     string                 `json:"deniedPath,omitempty"`
	Reason         string                 `json:"reason,omitempty"`
	OrganizationID string                 `json:"organizationId,omitempty"`
	UserID         string                 `json:"userId,omitempty"`
	OccurredAt     time.Time              `json:"occurredAt"`
}

func (f PermissionFault) Error() string {
	return fmt.Sprintf("permission denied: %s on %s", f.Operation, f.Path)
}
