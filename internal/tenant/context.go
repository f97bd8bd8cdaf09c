// Package tenant carries the acting principal and the organization scope on a request context.
package tenant

import "context"

type contextKey struct{ name string }

var (
	principalKey = contextKey{"principal"}
	orgKey       = contextKey{"organization"}
)

// Principal is the authenticated user behind a request
type Principal struct {
	UserID      string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// WithPrincipal stores the principal on the context
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal, if any
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok && p.UserID != ""
}

// WithOrg scopes the context to an organization
func WithOrg(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgKey, orgID)
}

// OrgFromContext returns the organization id the request is scoped to
func OrgFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(orgKey).(string)
	return id, ok && id != ""
}
