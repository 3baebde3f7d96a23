package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inkhousehq/inkhouse/internal/models"
	"github.com/inkhousehq/inkhouse/internal/permissions"
)

func TestGrantServiceTenantDefaultUpsert(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewGrantService(db)
	require.NoError(t, err)

	ctx := testContext()
	tenant := createTestTenant(t, db, "acme")

	// Absent grant reads back as the empty set, not an error.
	set, err := svc.TenantDefault(ctx, tenant.ID)
	require.NoError(t, err)
	require.True(t, set.IsZero())

	require.NoError(t, svc.SetTenantDefault(ctx, tenant.ID, permissions.Of(permissions.TypeRead)))

	set, err = svc.TenantDefault(ctx, tenant.ID)
	require.NoError(t, err)
	require.True(t, set.Has(permissions.TypeRead))

	// Second write replaces in place: still exactly one row.
	require.NoError(t, svc.SetTenantDefault(ctx, tenant.ID, permissions.Of(permissions.TypeRead, permissions.TypeComment)))

	var count int64
	require.NoError(t, db.Model(&models.TenantGrant{}).Where("tenant_id = ?", tenant.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)

	set, err = svc.TenantDefault(ctx, tenant.ID)
	require.NoError(t, err)
	require.True(t, set.Has(permissions.TypeComment))
}

func TestGrantServiceUserTenantGrantAndRevoke(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewGrantService(db)
	require.NoError(t, err)

	ctx := testContext()
	tenant := createTestTenant(t, db, "acme")
	user := createTestUser(t, db, "jane", "jane@acme.com")

	require.NoError(t, svc.GrantUserTenant(ctx, user.ID, tenant.ID, permissions.Of(permissions.TypeComment)))
	require.NoError(t, svc.GrantUserTenant(ctx, user.ID, tenant.ID, permissions.Of(permissions.TypeVote, permissions.TypeManageGrants)))

	set, err := svc.UserTenant(ctx, user.ID, tenant.ID)
	require.NoError(t, err)
	require.True(t, set.Has(permissions.TypeComment))
	require.True(t, set.Has(permissions.TypeVote))
	require.True(t, set.Has(permissions.TypeManageGrants))

	// Grants accumulate into a single row per (user, tenant).
	var count int64
	require.NoError(t, db.Model(&models.UserTenantGrant{}).
		Where("user_id = ? AND tenant_id = ?", user.ID, tenant.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)

	require.NoError(t, svc.RevokeUserTenant(ctx, user.ID, tenant.ID, permissions.Of(permissions.TypeComment)))

	set, err = svc.UserTenant(ctx, user.ID, tenant.ID)
	require.NoError(t, err)
	require.False(t, set.Has(permissions.TypeComment))
	require.True(t, set.Has(permissions.TypeVote))
	require.True(t, set.Has(permissions.TypeManageGrants))
}

func TestGrantServiceRevokeWithoutGrantIsNoop(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewGrantService(db)
	require.NoError(t, err)

	ctx := testContext()
	tenant := createTestTenant(t, db, "acme")
	user := createTestUser(t, db, "jane", "jane@acme.com")

	require.NoError(t, svc.RevokeUserTenant(ctx, user.ID, tenant.ID, permissions.Of(permissions.TypeRead)))

	var count int64
	require.NoError(t, db.Model(&models.UserTenantGrant{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestGrantServiceResourceGrants(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewGrantService(db)
	require.NoError(t, err)

	ctx := testContext()
	tenant := createTestTenant(t, db, "acme")
	user := createTestUser(t, db, "jane", "jane@acme.com")
	ref := ResourceRef{Type: models.ResourceTypePost, ID: "b3e5a7d0-0000-0000-0000-000000000001"}

	set, err := svc.Resource(ctx, user.ID, tenant.ID, ref)
	require.NoError(t, err)
	require.True(t, set.IsZero())

	require.NoError(t, svc.GrantResource(ctx, user.ID, tenant.ID, ref, permissions.Of(permissions.TypeEdit)))
	require.NoError(t, svc.GrantResource(ctx, user.ID, tenant.ID, ref, permissions.Of(permissions.TypeRead)))

	set, err = svc.Resource(ctx, user.ID, tenant.ID, ref)
	require.NoError(t, err)
	require.True(t, set.Has(permissions.TypeEdit))
	require.True(t, set.Has(permissions.TypeRead))

	require.NoError(t, svc.RevokeResource(ctx, user.ID, tenant.ID, ref, permissions.Of(permissions.TypeEdit)))

	set, err = svc.Resource(ctx, user.ID, tenant.ID, ref)
	require.NoError(t, err)
	require.False(t, set.Has(permissions.TypeEdit))
	require.True(t, set.Has(permissions.TypeRead))
}

func TestGrantServiceResourcesOfTypeBatch(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewGrantService(db)
	require.NoError(t, err)

	ctx := testContext()
	tenant := createTestTenant(t, db, "acme")
	user := createTestUser(t, db, "jane", "jane@acme.com")

	refA := ResourceRef{Type: models.ResourceTypePost, ID: "b3e5a7d0-0000-0000-0000-00000000000a"}
	refB := ResourceRef{Type: models.ResourceTypePost, ID: "b3e5a7d0-0000-0000-0000-00000000000b"}
	require.NoError(t, svc.GrantResource(ctx, user.ID, tenant.ID, refA, permissions.Of(permissions.TypeEdit)))
	require.NoError(t, svc.GrantResource(ctx, user.ID, tenant.ID, refB, permissions.Of(permissions.TypeDelete)))

	sets, err := svc.ResourcesOfType(ctx, user.ID, tenant.ID, models.ResourceTypePost,
		[]string{refA.ID, refB.ID, "b3e5a7d0-0000-0000-0000-00000000000c"})
	require.NoError(t, err)
	require.Len(t, sets, 2)
	require.True(t, sets[refA.ID].Has(permissions.TypeEdit))
	require.True(t, sets[refB.ID].Has(permissions.TypeDelete))
}
