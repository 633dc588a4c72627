package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/tenantgate/internal/auth"
	"github.com/wolfeidau/tenantgate/internal/routes"
	"github.com/wolfeidau/tenantgate/internal/store"
	"github.com/wolfeidau/tenantgate/internal/telemetry"
)

// TenantHeader is the request header carrying the tenant identifier.
const TenantHeader = "x-tenant-id"

// Guard rejection errors. These short-circuit the pipeline before the
// business handler runs.
var (
	ErrMissingTenant    = errors.New("missing or invalid tenant identifier")
	ErrInsufficientRole = errors.New("insufficient role")
)

// Pipeline evaluates the guard chain for each request. Stages run in a
// fixed order because later stages depend on context attached by earlier
// ones: public check, credential resolution, tenant isolation, role
// check, ISP enrichment.
type Pipeline struct {
	table    *routes.Table
	verifier auth.TokenVerifier
	orgs     store.OrganizationStore
}

// NewPipeline creates a guard pipeline over the given descriptor table,
// credential verifier and organization store.
func NewPipeline(table *routes.Table, verifier auth.TokenVerifier, orgs store.OrganizationStore) *Pipeline {
	return &Pipeline{table: table, verifier: verifier, orgs: orgs}
}

// Wrap returns the handler guarded by the pipeline for the route
// registered under the given resource and method id.
func (p *Pipeline) Wrap(resource, method string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		desc := p.table.Lookup(resource, method)

		// Public routes bypass every guard; no principal is required.
		if desc.Public {
			next.ServeHTTP(w, r)
			return
		}

		metrics := telemetry.GetMetrics()
		ctx := r.Context()

		principal, err := p.verifier.Verify(ctx, extractBearerToken(r))
		if err != nil {
			metrics.AuthFailuresTotal.Add(ctx, 1)
			log.Warn().Err(err).
				Str("path", r.URL.Path).
				Str("client_ip", ClientIPFromContext(ctx)).
				Msg("Credential verification failed")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx = auth.WithPrincipal(ctx, principal)

		// Tenant isolation runs before the role check so that a missing
		// tenant is always the error reported first.
		if !principal.IsSuper() {
			tenantID := strings.TrimSpace(r.Header.Get(TenantHeader))
			if tenantID == "" {
				metrics.TenantRejectedTotal.Add(ctx, 1)
				log.Warn().
					Str("path", r.URL.Path).
					Str("client_ip", ClientIPFromContext(ctx)).
					Msg("Request rejected: no usable tenant identifier")
				writeError(w, http.StatusUnauthorized, ErrMissingTenant.Error())
				return
			}
			ctx = WithTenant(ctx, &TenantContext{TenantID: tenantID})
		}

		if !desc.Allows(principal.Role) {
			metrics.RoleRejectedTotal.Add(ctx, 1)
			log.Warn().
				Str("path", r.URL.Path).
				Str("role", string(principal.Role)).
				Str("client_ip", ClientIPFromContext(ctx)).
				Msg("Request rejected: insufficient role")
			writeError(w, http.StatusForbidden, ErrInsufficientRole.Error())
			return
		}

		ctx = p.enrichIspContext(ctx, principal)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractBearerToken extracts the credential from the Authorization header.
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return parts[1]
}

// writeError writes a JSON error body with a human-readable message.
// Internal detail never leaks here.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
