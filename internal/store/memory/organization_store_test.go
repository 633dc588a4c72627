package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/tenantgate/internal/models"
	"github.com/wolfeidau/tenantgate/internal/store"
)

func newOrg(tenantID, name string) *models.Organization {
	now := time.Now()
	return &models.Organization{
		OrgID:     uuid.New(),
		TenantID:  tenantID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateAndGet(t *testing.T) {
	s := NewOrganizationStore()
	ctx := context.Background()

	org := newOrg("tenant-001", "Example ISP")
	require.NoError(t, s.Create(ctx, org))

	got, err := s.Get(ctx, org.OrgID)
	require.NoError(t, err)
	require.Equal(t, org.Name, got.Name)
	require.Equal(t, org.TenantID, got.TenantID)

	// Stored copy is isolated from caller mutations.
	got.Name = "mutated"
	again, err := s.Get(ctx, org.OrgID)
	require.NoError(t, err)
	require.Equal(t, "Example ISP", again.Name)
}

func TestCreateDuplicate(t *testing.T) {
	s := NewOrganizationStore()
	ctx := context.Background()

	org := newOrg("tenant-001", "Example ISP")
	require.NoError(t, s.Create(ctx, org))
	require.ErrorIs(t, s.Create(ctx, org), store.ErrOrganizationAlreadyExists)

	// Same tenant key under a different id is also a conflict.
	dup := newOrg("tenant-001", "Other ISP")
	require.ErrorIs(t, s.Create(ctx, dup), store.ErrOrganizationAlreadyExists)
}

func TestGetByTenant(t *testing.T) {
	s := NewOrganizationStore()
	ctx := context.Background()

	org := newOrg("tenant-001", "Example ISP")
	require.NoError(t, s.Create(ctx, org))

	got, err := s.GetByTenant(ctx, "tenant-001")
	require.NoError(t, err)
	require.Equal(t, org.OrgID, got.OrgID)

	_, err = s.GetByTenant(ctx, "tenant-404")
	require.ErrorIs(t, err, store.ErrOrganizationNotFound)
}

func TestUpdate(t *testing.T) {
	s := NewOrganizationStore()
	ctx := context.Background()

	org := newOrg("tenant-001", "Example ISP")
	require.NoError(t, s.Create(ctx, org))

	org.Name = "Renamed ISP"
	org.TenantID = "tenant-002"
	require.NoError(t, s.Update(ctx, org))

	got, err := s.GetByTenant(ctx, "tenant-002")
	require.NoError(t, err)
	require.Equal(t, "Renamed ISP", got.Name)

	// The old tenant key no longer resolves.
	_, err = s.GetByTenant(ctx, "tenant-001")
	require.ErrorIs(t, err, store.ErrOrganizationNotFound)

	require.ErrorIs(t, s.Update(ctx, newOrg("tenant-999", "Ghost")), store.ErrOrganizationNotFound)
}

func TestDelete(t *testing.T) {
	s := NewOrganizationStore()
	ctx := context.Background()

	org := newOrg("tenant-001", "Example ISP")
	require.NoError(t, s.Create(ctx, org))

	require.NoError(t, s.Delete(ctx, org.OrgID))
	_, err := s.Get(ctx, org.OrgID)
	require.ErrorIs(t, err, store.ErrOrganizationNotFound)
	_, err = s.GetByTenant(ctx, "tenant-001")
	require.ErrorIs(t, err, store.ErrOrganizationNotFound)

	require.ErrorIs(t, s.Delete(ctx, org.OrgID), store.ErrOrganizationNotFound)
}

func TestListOrderedByCreation(t *testing.T) {
	s := NewOrganizationStore()
	ctx := context.Background()

	first := newOrg("tenant-001", "First")
	first.CreatedAt = time.Now().Add(-time.Hour)
	second := newOrg("tenant-002", "Second")

	require.NoError(t, s.Create(ctx, second))
	require.NoError(t, s.Create(ctx, first))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "First", list[0].Name)
	require.Equal(t, "Second", list[1].Name)
}
