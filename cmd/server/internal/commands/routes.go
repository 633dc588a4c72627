package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/wolfeidau/tenantgate/internal/auth"
	"github.com/wolfeidau/tenantgate/internal/httpapi"
	"github.com/wolfeidau/tenantgate/internal/realtime"
	"github.com/wolfeidau/tenantgate/internal/routes"
	"github.com/wolfeidau/tenantgate/internal/store"
)

// registerRoutes builds the static route descriptor table. Descriptors
// are registered once at startup and read-only afterwards; a method-level
// descriptor overrides the resource-level one.
func registerRoutes() *routes.Table {
	table := routes.NewTable()

	// Public routes bypass every guard.
	table.Register("health", routes.Descriptor{Public: true, Version: "v1"})
	table.Register("auth", routes.Descriptor{Public: true, Version: "v1"})

	// Any authenticated principal.
	table.Register("payments", routes.Descriptor{Version: "v1"})
	table.Register("stats", routes.Descriptor{Version: "v1"})

	// Restricted resources. The list override on users widens access for
	// read-only operators without opening up writes.
	table.Register("users", routes.Descriptor{Roles: []auth.Role{auth.RoleAdmin}, Version: "v1"})
	table.RegisterMethod("users", "list", routes.Descriptor{
		Roles:   []auth.Role{auth.RoleAdmin, auth.RoleOperator, auth.RoleReadonly},
		Version: "v1",
	})
	table.Register("mikrotik", routes.Descriptor{
		Roles:   []auth.Role{auth.RoleAdmin, auth.RoleOperator},
		Version: "v1",
	})

	return table
}

// registerHandlers wires the guarded demo handlers. The business CRUD
// layer proper lives elsewhere; these stubs exist so every guard path is
// reachable end to end.
func registerHandlers(mux *http.ServeMux, pipeline *httpapi.Pipeline) {
	mux.Handle("GET /api/v1/health", pipeline.Wrap("health", "get", http.HandlerFunc(healthHandler)))
	mux.Handle("POST /api/v1/auth/login", pipeline.Wrap("auth", "login", http.HandlerFunc(notImplementedHandler)))

	mux.Handle("GET /api/v1/payments/history", pipeline.Wrap("payments", "history", scopedStub("payments")))
	mux.Handle("GET /api/v1/stats", pipeline.Wrap("stats", "get", scopedStub("stats")))
	mux.Handle("POST /api/v1/stats", pipeline.Wrap("stats", "refresh", scopedStub("stats")))

	mux.Handle("GET /api/v1/users", pipeline.Wrap("users", "list", scopedStub("users")))
	mux.Handle("POST /api/v1/users", pipeline.Wrap("users", "create", scopedStub("users")))

	mux.Handle("GET /api/v1/mikrotik/routers", pipeline.Wrap("mikrotik", "routers", scopedStub("mikrotik")))
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// notImplementedHandler stands in for the credential-issuance service,
// which is an external collaborator.
func notImplementedHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotImplemented, map[string]string{"message": "handled by the identity service"})
}

// scopedStub echoes the tenant and ISP scope the pipeline attached, which
// is what a real handler would use to scope its queries.
func scopedStub(resource string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		resp := map[string]any{
			"resource": resource,
			"items":    []any{},
		}

		if tc := httpapi.TenantFromContext(ctx); tc != nil {
			resp["tenantId"] = tc.TenantID
		}
		if org := httpapi.IspFromContext(ctx); org != nil {
			resp["isp"] = map[string]string{
				"orgId": org.OrgID.String(),
				"name":  org.Name,
			}
		}

		writeJSON(w, http.StatusOK, resp)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// newDataProvider serves realtime request_data snapshots. Only data sets
// the gateway itself owns are answered here; the rest belong to the
// management plane.
func newDataProvider(orgs store.OrganizationStore) realtime.DataProvider {
	return realtime.DataProviderFunc(func(ctx context.Context, dataType string, params map[string]any) (any, error) {
		switch dataType {
		case "isps":
			list, err := orgs.List(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]map[string]string, 0, len(list))
			for _, org := range list {
				out = append(out, map[string]string{
					"orgId":    org.OrgID.String(),
					"tenantId": org.TenantID,
					"name":     org.Name,
				})
			}
			return out, nil
		default:
			return nil, fmt.Errorf("unknown data type %q", dataType)
		}
	})
}
