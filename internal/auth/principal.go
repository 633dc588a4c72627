package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Role represents an enumerated authorization level for a principal.
type Role string

const (
	// RoleSuper is the distinguished operator level that bypasses tenant
	// scoping entirely.
	RoleSuper    Role = "super"
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleReadonly Role = "readonly"
)

// ParseRole validates a role claim value.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSuper, RoleAdmin, RoleOperator, RoleReadonly:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Principal represents an authenticated actor for the lifetime of one
// request or realtime connection. It is immutable once created.
type Principal struct {
	PrincipalID uuid.UUID
	Role        Role
	IspID       string // empty for principals without an ISP assignment
	Email       string
}

// IsSuper reports whether the principal holds the privileged operator role.
func (p *Principal) IsSuper() bool {
	return p.Role == RoleSuper
}

type contextKey int

const (
	principalContextKey contextKey = iota
)

// WithPrincipal returns a context carrying the authenticated principal.
func WithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from the request context.
// Returns nil if no principal is present (unauthenticated request).
func PrincipalFromContext(ctx context.Context) *Principal {
	principal, _ := ctx.Value(principalContextKey).(*Principal)
	return principal
}
