// Package httpapi implements the request authorization pipeline: public
// route classification, bearer credential resolution, tenant isolation,
// role checks and best-effort ISP context enrichment, in that fixed order.
package httpapi

import (
	"context"

	"github.com/wolfeidau/tenantgate/internal/models"
)

type contextKey int

const (
	tenantContextKey contextKey = iota
	ispContextKey
	clientIPContextKey
)

// TenantContext carries the trimmed tenant identifier attached to a
// request after the tenant isolation guard succeeds. It is request-scoped
// and never shared across requests.
type TenantContext struct {
	TenantID string
}

// WithTenant returns a context carrying the tenant context.
func WithTenant(ctx context.Context, tc *TenantContext) context.Context {
	return context.WithValue(ctx, tenantContextKey, tc)
}

// TenantFromContext extracts the tenant context from the request context.
// Returns nil for public routes and privileged principals.
func TenantFromContext(ctx context.Context) *TenantContext {
	tc, _ := ctx.Value(tenantContextKey).(*TenantContext)
	return tc
}

// WithIsp returns a context carrying the resolved ISP organization record.
func WithIsp(ctx context.Context, org *models.Organization) context.Context {
	return context.WithValue(ctx, ispContextKey, org)
}

// IspFromContext extracts the resolved ISP organization record. It is an
// enrichment, so handlers must tolerate a nil result.
func IspFromContext(ctx context.Context) *models.Organization {
	org, _ := ctx.Value(ispContextKey).(*models.Organization)
	return org
}
