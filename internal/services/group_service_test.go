package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inkhousehq/inkhouse/internal/models"
)

func TestGroupServiceCreateHierarchy(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewGroupService(db, nil)
	require.NoError(t, err)

	ctx := testContext()
	tenant := createTestTenant(t, db, "uni")

	root, err := svc.Create(ctx, CreateGroupInput{TenantID: tenant.ID, Name: "Students", IsDefault: true})
	require.NoError(t, err)
	require.Nil(t, root.ParentID)

	child, err := svc.Create(ctx, CreateGroupInput{TenantID: tenant.ID, Name: "CS Students", ParentID: &root.ID})
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	require.Equal(t, root.ID, *child.ParentID)

	// Names are unique per tenant.
	_, err = svc.Create(ctx, CreateGroupInput{TenantID: tenant.ID, Name: "Students"})
	require.Error(t, err)

	// A parent from another tenant is rejected.
	other := createTestTenant(t, db, "other")
	_, err = svc.Create(ctx, CreateGroupInput{TenantID: other.ID, Name: "Strays", ParentID: &root.ID})
	require.ErrorIs(t, err, ErrGroupNotFound)

	defaultGroup, err := svc.DefaultGroup(ctx, tenant.ID)
	require.NoError(t, err)
	require.NotNil(t, defaultGroup)
	require.Equal(t, root.ID, defaultGroup.ID)
}

func TestGroupServiceRename(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewGroupService(db, nil)
	require.NoError(t, err)

	ctx := testContext()
	tenant := createTestTenant(t, db, "uni")

	group, err := svc.Create(ctx, CreateGroupInput{TenantID: tenant.ID, Name: "Students"})
	require.NoError(t, err)
	taken, err := svc.Create(ctx, CreateGroupInput{TenantID: tenant.ID, Name: "Staff"})
	require.NoError(t, err)

	renamed, err := svc.Rename(ctx, group.ID, "Undergrads")
	require.NoError(t, err)
	require.Equal(t, "Undergrads", renamed.Name)

	var stored models.UserGroup
	require.NoError(t, db.First(&stored, "id = ?", group.ID).Error)
	require.Equal(t, "Undergrads", stored.Name)

	_, err = svc.Rename(ctx, group.ID, taken.Name)
	require.Error(t, err)

	_, err = svc.Rename(ctx, "00000000-0000-0000-0000-000000000000", "Ghosts")
	require.ErrorIs(t, err, ErrGroupNotFound)
}

func TestGroupServiceReparentRejectsCycles(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewGroupService(db, nil)
	require.NoError(t, err)

	ctx := testContext()
	tenant := createTestTenant(t, db, "uni")

	a, err := svc.Create(ctx, CreateGroupInput{TenantID: tenant.ID, Name: "A"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, CreateGroupInput{TenantID: tenant.ID, Name: "B", ParentID: &a.ID})
	require.NoError(t, err)
	c, err := svc.Create(ctx, CreateGroupInput{TenantID: tenant.ID, Name: "C", ParentID: &b.ID})
	require.NoError(t, err)

	// A group cannot become its own parent.
	_, err = svc.Reparent(ctx, a.ID, &a.ID)
	require.ErrorIs(t, err, ErrCyclicHierarchy)

	// Nor may it move under one of its descendants.
	_, err = svc.Reparent(ctx, a.ID, &c.ID)
	require.ErrorIs(t, err, ErrCyclicHierarchy)

	// Moving a leaf elsewhere is fine.
	moved, err := svc.Reparent(ctx, c.ID, &a.ID)
	require.NoError(t, err)
	require.Equal(t, a.ID, *moved.ParentID)

	// Detaching to a root is fine too.
	moved, err = svc.Reparent(ctx, b.ID, nil)
	require.NoError(t, err)
	require.Nil(t, moved.ParentID)
}

func TestGroupServiceAncestorsOf(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewGroupService(db, nil)
	require.NoError(t, err)

	ctx := testContext()
	tenant := createTestTenant(t, db, "uni")

	root, err := svc.Create(ctx, CreateGroupInput{TenantID: tenant.ID, Name: "Students"})
	require.NoError(t, err)
	mid, err := svc.Create(ctx, CreateGroupInput{TenantID: tenant.ID, Name: "Engineering", ParentID: &root.ID})
	require.NoError(t, err)
	leaf, err := svc.Create(ctx, CreateGroupInput{TenantID: tenant.ID, Name: "CS Students", ParentID: &mid.ID})
	require.NoError(t, err)

	chain, err := svc.AncestorsOf(ctx, leaf.ID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	require.Equal(t, mid.ID, chain[0].ID)
	require.Equal(t, root.ID, chain[1].ID)
}

func TestGroupServiceDeleteRequiresLeaf(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewGroupService(db, nil)
	require.NoError(t, err)

	ctx := testContext()
	tenant := createTestTenant(t, db, "uni")
	user := createTestUser(t, db, "jane", "jane@uni.edu")

	root, err := svc.Create(ctx, CreateGroupInput{TenantID: tenant.ID, Name: "Students"})
	require.NoError(t, err)
	leaf, err := svc.Create(ctx, CreateGroupInput{TenantID: tenant.ID, Name: "CS Students", ParentID: &root.ID})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, root.ID), ErrGroupNotEmpty)

	_, err = svc.AddMember(ctx, leaf.ID, user.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, leaf.ID))

	// Memberships vanish with the group, the user survives.
	var memberships int64
	require.NoError(t, db.Model(&models.GroupMembership{}).Count(&memberships).Error)
	require.Zero(t, memberships)
	require.NoError(t, db.First(&models.User{}, "id = ?", user.ID).Error)

	require.NoError(t, svc.Delete(ctx, root.ID))
}

func TestGroupServiceMembership(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewGroupService(db, nil)
	require.NoError(t, err)

	ctx := testContext()
	tenant := createTestTenant(t, db, "uni")
	user := createTestUser(t, db, "jane", "jane@uni.edu")

	group, err := svc.Create(ctx, CreateGroupInput{TenantID: tenant.ID, Name: "Students"})
	require.NoError(t, err)

	membership, err := svc.AddMember(ctx, group.ID, user.ID)
	require.NoError(t, err)
	require.False(t, membership.IsAutoAssigned)

	_, err = svc.AddMember(ctx, group.ID, user.ID)
	require.ErrorIs(t, err, ErrMemberAlreadyExists)

	members, err := svc.Members(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, user.ID, members[0].ID)

	groups, err := svc.GroupsOf(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, group.ID, groups[0].ID)

	require.NoError(t, svc.RemoveMember(ctx, group.ID, user.ID))
	require.ErrorIs(t, svc.RemoveMember(ctx, group.ID, user.ID), ErrMemberNotFound)
}

func TestGroupServiceMembershipIsDirectOnly(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewGroupService(db, nil)
	require.NoError(t, err)

	ctx := testContext()
	tenant := createTestTenant(t, db, "uni")
	user := createTestUser(t, db, "jane", "jane@uni.edu")

	root, err := svc.Create(ctx, CreateGroupInput{TenantID: tenant.ID, Name: "Students"})
	require.NoError(t, err)
	leaf, err := svc.Create(ctx, CreateGroupInput{TenantID: tenant.ID, Name: "CS Students", ParentID: &root.ID})
	require.NoError(t, err)

	_, err = svc.AddMember(ctx, leaf.ID, user.ID)
	require.NoError(t, err)

	// Belonging to a child says nothing about the parent.
	groups, err := svc.GroupsOf(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, leaf.ID, groups[0].ID)

	parentMembers, err := svc.Members(ctx, root.ID)
	require.NoError(t, err)
	require.Empty(t, parentMembers)
}
