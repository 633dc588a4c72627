package httpapi

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedirect(t *testing.T) {
	n := NewNormalizer(DefaultNormalizerConfig())

	tests := []struct {
		name     string
		path     string
		rawQuery string
		want     string
	}{
		{
			name: "known endpoint redirects to default version",
			path: "/api/mikrotik/routers",
			want: "/api/v1/mikrotik/routers",
		},
		{
			name:     "query string preserved verbatim",
			path:     "/api/payments/history",
			rawQuery: "x=1",
			want:     "/api/v1/payments/history?x=1",
		},
		{
			name:     "multi-value query preserved",
			path:     "/api/users",
			rawQuery: "page=2&sort=name&sort=email",
			want:     "/api/v1/users?page=2&sort=name&sort=email",
		},
		{
			name: "already versioned passes through",
			path: "/api/v1/payments/history",
			want: "",
		},
		{
			name: "higher version passes through",
			path: "/api/v2/users",
			want: "",
		},
		{
			name: "unknown endpoint passes through",
			path: "/api/unknown/thing",
			want: "",
		},
		{
			name: "non-api path passes through",
			path: "/metrics",
			want: "",
		},
		{
			name: "sub-path of known endpoint matches",
			path: "/api/users/42",
			want: "/api/v1/users/42",
		},
		{
			name: "prefix-similar name does not match",
			path: "/api/usersextra",
			want: "",
		},
		{
			name: "bare prefix passes through",
			path: "/api",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, n.Redirect(tt.path, tt.rawQuery))
		})
	}
}

func TestRedirectIdempotent(t *testing.T) {
	n := NewNormalizer(DefaultNormalizerConfig())

	location := n.Redirect("/api/payments/history", "x=1")
	require.Equal(t, "/api/v1/payments/history?x=1", location)

	// Normalizing the redirect target again must be a no-op.
	require.Equal(t, "", n.Redirect("/api/v1/payments/history", "x=1"))
}

func TestMiddlewareIssues307(t *testing.T) {
	n := NewNormalizer(DefaultNormalizerConfig())

	handler := n.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/stats?from=2024-01-01", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	require.Equal(t, "/api/v1/stats?from=2024-01-01", rec.Header().Get("Location"))
}

func TestMiddlewarePassthrough(t *testing.T) {
	n := NewNormalizer(DefaultNormalizerConfig())

	handler := n.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTeapot, rec.Code)
}

func TestLoadNormalizerConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
prefix: /gateway
default_version: v2
endpoints:
  - users
  - invoices
`), 0o600))

	cfg, err := LoadNormalizerConfig(path)
	require.NoError(t, err)
	require.Equal(t, "/gateway", cfg.Prefix)
	require.Equal(t, "v2", cfg.DefaultVersion)
	require.Equal(t, []string{"users", "invoices"}, cfg.Endpoints)

	n := NewNormalizer(cfg)
	require.Equal(t, "/gateway/v2/invoices", n.Redirect("/gateway/invoices", ""))
}

func TestLoadNormalizerConfigPartialFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_version: v3\n"), 0o600))

	cfg, err := LoadNormalizerConfig(path)
	require.NoError(t, err)
	require.Equal(t, "/api", cfg.Prefix)
	require.Equal(t, "v3", cfg.DefaultVersion)
	require.NotEmpty(t, cfg.Endpoints)
}

func TestLoadNormalizerConfigMissingFile(t *testing.T) {
	_, err := LoadNormalizerConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
