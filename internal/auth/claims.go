package auth

import (
	"context"
	"net/http"
)

// Roles.
const (
	RoleViewer     = "viewer"
	RoleController = "controller"
)

// Scopes.
const (
	ScopeRead      = "read"
	ScopeControl   = "control"
	ScopeTelemetry = "telemetry"
)

// AnonymousSubject is the subject used when no verifier is configured.
const AnonymousSubject = "anonymous"

// Claims is the verified identity of a caller.
type Claims struct {
	Subject string   `json:"sub"`
	Roles   []string `json:"roles"`
	Scopes  []string `json:"scopes"`
}

type contextKey struct{}

// ClaimsKey is the context key under which RequireAuth stores Claims.
var ClaimsKey = contextKey{}

// Anonymous returns the identity granted when auth is disabled.
func Anonymous() *Claims {
	return &Claims{
		Subject: AnonymousSubject,
		Roles:   []string{RoleController},
		Scopes:  []string{ScopeRead, ScopeControl, ScopeTelemetry},
	}
}

// WithClaims stores claims in ctx.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// ClaimsFromContext returns the claims stored by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetClaimsFromRequest extracts claims from the request context.
func GetClaimsFromRequest(r *http.Request) (*Claims, bool) {
	return ClaimsFromContext(r.Context())
}

// HasRole reports whether the claims carry role.
func (c *Claims) HasRole(role string) bool {
	return contains(c.Roles, role)
}

// HasScope reports whether the claims carry scope.
func (c *Claims) HasScope(scope string) bool {
	return contains(c.Scopes, scope)
}

// CanRun reports whether the caller may run an operation. Read-only
// operations need the read scope, everything else needs the controller
// role and the control scope.
func (c *Claims) CanRun(readOnly bool) bool {
	if c == nil {
		return false
	}
	if readOnly {
		return c.HasScope(ScopeRead)
	}
	return c.HasRole(RoleController) && c.HasScope(ScopeControl)
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

func isValidRole(role string) bool {
	return role == RoleViewer || role == RoleController
}

func isValidScope(scope string) bool {
	switch scope {
	case ScopeRead, ScopeControl, ScopeTelemetry:
		return true
	}
	return false
}
