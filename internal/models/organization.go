package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization represents an ISP organization record. It is the
// enrichment data attached to requests from non-privileged principals
// that carry an ISP assignment.
type Organization struct {
	OrgID        uuid.UUID
	TenantID     string // isolation boundary key, matches the x-tenant-id header
	Name         string
	ContactEmail string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
