package services

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/inkhousehq/inkhouse/internal/models"
)

type autoAssignFixture struct {
	db      *gorm.DB
	domains *DomainService
	groups  *GroupService
	assign  *AutoAssignService
}

func newAutoAssignFixture(t *testing.T) *autoAssignFixture {
	t.Helper()

	db := openServiceTestDB(t)
	domains, err := NewDomainService(db)
	require.NoError(t, err)
	groups, err := NewGroupService(db, nil)
	require.NoError(t, err)
	assign, err := NewAutoAssignService(db, domains, groups)
	require.NoError(t, err)

	return &autoAssignFixture{db: db, domains: domains, groups: groups, assign: assign}
}

func (f *autoAssignFixture) bindDomain(t *testing.T, tenantID, domain, subdomain, groupID string) *models.TenantDomain {
	t.Helper()

	record, err := f.domains.Register(testContext(), RegisterDomainInput{
		TenantID:  tenantID,
		Domain:    domain,
		Subdomain: subdomain,
	})
	require.NoError(t, err)
	if groupID != "" {
		record, err = f.domains.BindGroup(testContext(), record.ID, &groupID)
		require.NoError(t, err)
	}
	return record
}

func TestAutoAssignIsIdempotent(t *testing.T) {
	f := newAutoAssignFixture(t)
	ctx := testContext()

	tenant := createTestTenant(t, f.db, "uni")
	group, err := f.groups.Create(ctx, CreateGroupInput{TenantID: tenant.ID, Name: "Students"})
	require.NoError(t, err)
	f.bindDomain(t, tenant.ID, "university.edu", "", group.ID)

	user := createTestUser(t, f.db, "jane", "jane@university.edu")

	first, created, err := f.assign.AutoAssign(ctx, user.ID, user.Email)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, group.ID, first.GroupID)
	require.True(t, first.IsAutoAssigned)

	second, created, err := f.assign.AutoAssign(ctx, user.ID, user.Email)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, f.db.Model(&models.GroupMembership{}).
		Where("user_id = ?", user.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestAutoAssignPrefersMostSpecificBinding(t *testing.T) {
	f := newAutoAssignFixture(t)
	ctx := testContext()

	tenant := createTestTenant(t, f.db, "uni")
	students, err := f.groups.Create(ctx, CreateGroupInput{TenantID: tenant.ID, Name: "Students"})
	require.NoError(t, err)
	csStudents, err := f.groups.Create(ctx, CreateGroupInput{TenantID: tenant.ID, Name: "CS Students", ParentID: &students.ID})
	require.NoError(t, err)

	f.bindDomain(t, tenant.ID, "university.edu", "", students.ID)
	f.bindDomain(t, tenant.ID, "university.edu", "cs", csStudents.ID)

	user := createTestUser(t, f.db, "jane", "jane@cs.university.edu")

	membership, created, err := f.assign.AutoAssign(ctx, user.ID, user.Email)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, csStudents.ID, membership.GroupID)

	// Placement is direct only: no implied row in the parent group.
	groups, err := f.groups.GroupsOf(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, csStudents.ID, groups[0].ID)
}

func TestAutoAssignWithoutBinding(t *testing.T) {
	f := newAutoAssignFixture(t)
	ctx := testContext()

	tenant := createTestTenant(t, f.db, "uni")
	user := createTestUser(t, f.db, "jane", "jane@university.edu")

	// No matching domain at all.
	_, _, err := f.assign.AutoAssign(ctx, user.ID, user.Email)
	require.ErrorIs(t, err, ErrNoMatchingDomain)

	// Matching domain without a bound group.
	f.bindDomain(t, tenant.ID, "university.edu", "", "")
	_, _, err = f.assign.AutoAssign(ctx, user.ID, user.Email)
	require.ErrorIs(t, err, ErrUnboundDomain)
}

func TestAutoAssignTenantPass(t *testing.T) {
	f := newAutoAssignFixture(t)
	ctx := testContext()

	tenant := createTestTenant(t, f.db, "uni")
	students, err := f.groups.Create(ctx, CreateGroupInput{TenantID: tenant.ID, Name: "Students"})
	require.NoError(t, err)
	csStudents, err := f.groups.Create(ctx, CreateGroupInput{TenantID: tenant.ID, Name: "CS Students"})
	require.NoError(t, err)

	f.bindDomain(t, tenant.ID, "university.edu", "", students.ID)
	f.bindDomain(t, tenant.ID, "university.edu", "cs", csStudents.ID)

	jane := createTestUser(t, f.db, "jane", "jane@cs.university.edu")
	john := createTestUser(t, f.db, "john", "john@university.edu")
	createTestUser(t, f.db, "kim", "kim@elsewhere.org")

	report, err := f.assign.AutoAssignTenant(ctx, tenant.ID)
	require.NoError(t, err)
	require.Equal(t, 2, report.Created)
	require.Zero(t, report.Failed)

	janeGroups, err := f.groups.GroupsOf(ctx, jane.ID)
	require.NoError(t, err)
	require.Len(t, janeGroups, 1)
	require.Equal(t, csStudents.ID, janeGroups[0].ID)

	johnGroups, err := f.groups.GroupsOf(ctx, john.ID)
	require.NoError(t, err)
	require.Len(t, johnGroups, 1)
	require.Equal(t, students.ID, johnGroups[0].ID)

	// Re-running the pass creates nothing new.
	report, err = f.assign.AutoAssignTenant(ctx, tenant.ID)
	require.NoError(t, err)
	require.Zero(t, report.Created)
	require.Equal(t, 2, report.Existing)
}

func TestRemoveAutoAssignedPreservesManualMemberships(t *testing.T) {
	f := newAutoAssignFixture(t)
	ctx := testContext()

	tenant := createTestTenant(t, f.db, "uni")
	group, err := f.groups.Create(ctx, CreateGroupInput{TenantID: tenant.ID, Name: "Students"})
	require.NoError(t, err)
	f.bindDomain(t, tenant.ID, "university.edu", "", group.ID)

	auto := createTestUser(t, f.db, "jane", "jane@university.edu")
	manual := createTestUser(t, f.db, "john", "john@university.edu")

	_, _, err = f.assign.AutoAssign(ctx, auto.ID, auto.Email)
	require.NoError(t, err)
	_, err = f.groups.AddMember(ctx, group.ID, manual.ID)
	require.NoError(t, err)

	removed, err := f.assign.RemoveAutoAssigned(ctx, tenant.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	members, err := f.groups.Members(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, manual.ID, members[0].ID)
}
