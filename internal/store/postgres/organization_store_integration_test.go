//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/wolfeidau/tenantgate/internal/models"
	"github.com/wolfeidau/tenantgate/internal/store"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	pool, err := NewPool(ctx, &PoolConfig{ConnString: connString})
	require.NoError(t, err)

	require.NoError(t, RunMigrations(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}
	return pool, cleanup
}

func TestOrganizationStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	s := NewOrganizationStore(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	org := &models.Organization{
		OrgID:        uuid.New(),
		TenantID:     "tenant-001",
		Name:         "Example ISP",
		ContactEmail: "noc@example.com",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	require.NoError(t, s.Create(ctx, org))

	// Duplicate id and duplicate tenant key both violate constraints.
	require.ErrorIs(t, s.Create(ctx, org), store.ErrOrganizationAlreadyExists)
	dup := *org
	dup.OrgID = uuid.New()
	require.ErrorIs(t, s.Create(ctx, &dup), store.ErrOrganizationAlreadyExists)

	got, err := s.Get(ctx, org.OrgID)
	require.NoError(t, err)
	require.Equal(t, "Example ISP", got.Name)
	require.Equal(t, "noc@example.com", got.ContactEmail)

	byTenant, err := s.GetByTenant(ctx, "tenant-001")
	require.NoError(t, err)
	require.Equal(t, org.OrgID, byTenant.OrgID)

	org.Name = "Renamed ISP"
	require.NoError(t, s.Update(ctx, org))
	got, err = s.Get(ctx, org.OrgID)
	require.NoError(t, err)
	require.Equal(t, "Renamed ISP", got.Name)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.Delete(ctx, org.OrgID))
	_, err = s.Get(ctx, org.OrgID)
	require.ErrorIs(t, err, store.ErrOrganizationNotFound)
	require.ErrorIs(t, s.Delete(ctx, org.OrgID), store.ErrOrganizationNotFound)
}

func TestOrganizationStoreNotFound(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	s := NewOrganizationStore(pool)

	_, err := s.Get(ctx, uuid.New())
	require.ErrorIs(t, err, store.ErrOrganizationNotFound)

	_, err = s.GetByTenant(ctx, "tenant-404")
	require.ErrorIs(t, err, store.ErrOrganizationNotFound)

	require.ErrorIs(t, s.Update(ctx, &models.Organization{OrgID: uuid.New(), TenantID: "t"}), store.ErrOrganizationNotFound)
}
