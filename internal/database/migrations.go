package database

import (
	"gorm.io/gorm"

	"github.com/inkhousehq/inkhouse/internal/models"
	"github.com/inkhousehq/inkhouse/internal/permissions"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
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
	)
}

// SeedData provisions the bootstrap tenant with a fallback group and a
// conservative default permission set. Idempotent: re-running against an
// initialised database changes nothing.
func SeedData(db *gorm.DB) error {
	tenant := models.Tenant{
		Name:     "Default",
		Slug:     "default",
		IsActive: true,
	}
	if err := db.Where(models.Tenant{Slug: tenant.Slug}).Attrs(tenant).FirstOrCreate(&tenant).Error; err != nil {
		return err
	}

	group := models.UserGroup{
		TenantID:  tenant.ID,
		Name:      "Everyone",
		IsDefault: true,
	}
	if err := db.Where(models.UserGroup{TenantID: tenant.ID, Name: group.Name}).Attrs(group).FirstOrCreate(&group).Error; err != nil {
		return err
	}

	defaults := permissions.Of(permissions.TypeRead, permissions.TypeComment)
	lo, hi := defaults.Words()
	grant := models.TenantGrant{
		TenantID: tenant.ID,
		BitsLo:   lo,
		BitsHi:   hi,
	}
	return db.Where(models.TenantGrant{TenantID: tenant.ID}).Attrs(grant).FirstOrCreate(&grant).Error
}
