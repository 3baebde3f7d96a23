package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/inkhousehq/inkhouse/internal/models"
)

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Tenant{},
		&models.TenantDomain{},
		&models.UserGroup{},
		&models.GroupMembership{},
		&models.TenantGrant{},
		&models.UserTenantGrant{},
		&models.ResourceGrant{},
		&models.Post{},
		&models.LabBooking{},
		&models.AuditLog{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func createTestTenant(t *testing.T, db *gorm.DB, slug string) *models.Tenant {
	t.Helper()

	tenant := &models.Tenant{Name: slug, Slug: slug, IsActive: true}
	require.NoError(t, db.Create(tenant).Error)
	return tenant
}

func createTestUser(t *testing.T, db *gorm.DB, username, email string) *models.User {
	t.Helper()

	user := &models.User{
		Username: username,
		Email:    email,
		Password: "x",
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func testContext() context.Context {
	return context.Background()
}
