// Package routes holds the static per-endpoint authorization metadata.
// The table is built once at route-registration time and read-only
// afterwards, so lookups need no synchronization.
package routes

import (
	"slices"

	"github.com/wolfeidau/tenantgate/internal/auth"
)

// Descriptor is the authorization metadata attached to an endpoint.
// An empty Roles set means any authenticated principal may call it.
type Descriptor struct {
	Public  bool
	Roles   []auth.Role
	Version string
}

// Allows reports whether the given role satisfies the descriptor's
// required role set.
func (d Descriptor) Allows(role auth.Role) bool {
	if len(d.Roles) == 0 {
		return true
	}
	return slices.Contains(d.Roles, role)
}

// Table maps route IDs to descriptors. A route ID is either a resource
// name ("payments") or a resource.method pair ("payments.history").
// A method-level entry, when present, overrides the resource-level one.
type Table struct {
	resources map[string]Descriptor
	methods   map[string]Descriptor
}

// NewTable creates an empty descriptor table.
func NewTable() *Table {
	return &Table{
		resources: make(map[string]Descriptor),
		methods:   make(map[string]Descriptor),
	}
}

// Register sets the resource-level descriptor for a resource.
func (t *Table) Register(resource string, d Descriptor) {
	t.resources[resource] = d
}

// RegisterMethod sets a method-level descriptor, which takes precedence
// over the resource-level descriptor for that method.
func (t *Table) RegisterMethod(resource, method string, d Descriptor) {
	t.methods[resource+"."+method] = d
}

// Lookup resolves the descriptor for a route ID with method-over-resource
// precedence. Unknown routes get the zero descriptor: not public, no
// role restriction.
func (t *Table) Lookup(resource, method string) Descriptor {
	if method != "" {
		if d, ok := t.methods[resource+"."+method]; ok {
			return d
		}
	}
	return t.resources[resource]
}

// IsPublic reports whether the route bypasses authorization entirely.
// Neither level setting the flag means the route is not public.
func (t *Table) IsPublic(resource, method string) bool {
	return t.Lookup(resource, method).Public
}
