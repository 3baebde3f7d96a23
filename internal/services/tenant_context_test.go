package services

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTenantContextHeaderWinsOverClaim(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewTenantContextService(db)
	require.NoError(t, err)

	ctx := testContext()
	fromHeader := createTestTenant(t, db, "header")
	fromClaim := createTestTenant(t, db, "claim")

	resolved, err := svc.Resolve(ctx, fromHeader.ID, fromClaim.ID)
	require.NoError(t, err)
	require.Equal(t, fromHeader.ID, resolved)
}

func TestTenantContextFallsBackToClaim(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewTenantContextService(db)
	require.NoError(t, err)

	ctx := testContext()
	fromClaim := createTestTenant(t, db, "claim")

	// Absent header.
	resolved, err := svc.Resolve(ctx, "", fromClaim.ID)
	require.NoError(t, err)
	require.Equal(t, fromClaim.ID, resolved)

	// Header naming a dead tenant behaves like an absent header.
	dead := createTestTenant(t, db, "dead")
	require.NoError(t, db.Model(dead).Update("is_active", false).Error)

	resolved, err = svc.Resolve(ctx, dead.ID, fromClaim.ID)
	require.NoError(t, err)
	require.Equal(t, fromClaim.ID, resolved)
}

func TestTenantContextNoLiveSignal(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewTenantContextService(db)
	require.NoError(t, err)

	ctx := testContext()

	resolved, err := svc.Resolve(ctx, "", "")
	require.NoError(t, err)
	require.Empty(t, resolved)

	// Both signals naming dead or unknown tenants resolve to nothing,
	// without error.
	dead := createTestTenant(t, db, "dead")
	require.NoError(t, db.Delete(dead).Error)

	resolved, err = svc.Resolve(ctx, dead.ID, "b3e5a7d0-0000-0000-0000-0000000000ff")
	require.NoError(t, err)
	require.Empty(t, resolved)
}

func TestTenantContextSoleTenantOf(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewTenantContextService(db)
	require.NoError(t, err)
	groups, err := NewGroupService(db, nil)
	require.NoError(t, err)

	ctx := testContext()
	user := createTestUser(t, db, "jane", "jane@acme.com")

	// No memberships: no sole tenant.
	sole, err := svc.SoleTenantOf(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, sole)

	acme := createTestTenant(t, db, "acme")
	acmeGroup, err := groups.Create(ctx, CreateGroupInput{TenantID: acme.ID, Name: "Staff"})
	require.NoError(t, err)
	_, err = groups.AddMember(ctx, acmeGroup.ID, user.ID)
	require.NoError(t, err)

	sole, err = svc.SoleTenantOf(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, acme.ID, sole)

	// Membership in a second tenant makes the answer ambiguous.
	other := createTestTenant(t, db, "other")
	otherGroup, err := groups.Create(ctx, CreateGroupInput{TenantID: other.ID, Name: "Staff"})
	require.NoError(t, err)
	_, err = groups.AddMember(ctx, otherGroup.ID, user.ID)
	require.NoError(t, err)

	sole, err = svc.SoleTenantOf(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, sole)
}
