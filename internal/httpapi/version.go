package httpapi

import (
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// versionedPathRe matches paths that already carry a version segment
// directly after the API prefix, e.g. /api/v1/users.
var versionedPathRe = regexp.MustCompile(`^v\d+(/|$)`)

// NormalizerConfig is the YAML-loadable configuration for the version
// normalizer: the API prefix, the version un-versioned requests are
// redirected to, and the endpoint names the redirect applies to.
type NormalizerConfig struct {
	Prefix         string   `yaml:"prefix"`
	DefaultVersion string   `yaml:"default_version"`
	Endpoints      []string `yaml:"endpoints"`
}

// DefaultNormalizerConfig returns the compiled-in endpoint set.
func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{
		Prefix:         "/api",
		DefaultVersion: "v1",
		Endpoints: []string{
			"auth",
			"users",
			"isps",
			"plans",
			"payments",
			"vouchers",
			"stats",
			"sessions",
			"mikrotik",
			"notifications",
		},
	}
}

// LoadNormalizerConfig reads a NormalizerConfig from a YAML file, filling
// unset fields from the defaults.
func LoadNormalizerConfig(path string) (NormalizerConfig, error) {
	cfg := DefaultNormalizerConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read routes config: %w", err)
	}

	var loaded NormalizerConfig
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return cfg, fmt.Errorf("failed to parse routes config: %w", err)
	}

	if loaded.Prefix != "" {
		cfg.Prefix = loaded.Prefix
	}
	if loaded.DefaultVersion != "" {
		cfg.DefaultVersion = loaded.DefaultVersion
	}
	if len(loaded.Endpoints) > 0 {
		cfg.Endpoints = loaded.Endpoints
	}

	return cfg, nil
}

// Normalizer redirects un-versioned requests for known endpoints to the
// default API version. Already-versioned paths pass through untouched, so
// normalization is idempotent.
type Normalizer struct {
	prefix         string
	defaultVersion string
	endpoints      map[string]struct{}
}

// NewNormalizer creates a version normalizer from the given configuration.
func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	endpoints := make(map[string]struct{}, len(cfg.Endpoints))
	for _, e := range cfg.Endpoints {
		endpoints[e] = struct{}{}
	}
	return &Normalizer{
		prefix:         strings.TrimSuffix(cfg.Prefix, "/"),
		defaultVersion: cfg.DefaultVersion,
		endpoints:      endpoints,
	}
}

// Redirect returns the versioned location for the request path, or ""
// when the request passes through unchanged. The query string is taken
// from the original URL so no "?" content is lost.
func (n *Normalizer) Redirect(path, rawQuery string) string {
	if !strings.HasPrefix(path, n.prefix+"/") {
		return ""
	}

	rest := strings.TrimPrefix(path, n.prefix+"/")
	if versionedPathRe.MatchString(rest) {
		return ""
	}

	if !n.knownEndpoint(rest) {
		return ""
	}

	location := n.prefix + "/" + n.defaultVersion + "/" + rest
	if rawQuery != "" {
		location += "?" + rawQuery
	}
	return location
}

// knownEndpoint reports whether the path-without-prefix names a member of
// the endpoint set, either exactly or as a proper sub-path ("users"
// matches "users/42" but not "usersextra").
func (n *Normalizer) knownEndpoint(rest string) bool {
	name := rest
	if idx := strings.IndexByte(rest, '/'); idx != -1 {
		name = rest[:idx]
	}
	_, ok := n.endpoints[name]
	return ok
}

// Middleware rewrites un-versioned API requests to the default version
// with a 307, preserving method and body.
func (n *Normalizer) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if location := n.Redirect(r.URL.Path, r.URL.RawQuery); location != "" {
				log.Debug().
					Str("path", r.URL.Path).
					Str("location", location).
					Msg("Redirecting un-versioned request")
				http.Redirect(w, r, location, http.StatusTemporaryRedirect)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
