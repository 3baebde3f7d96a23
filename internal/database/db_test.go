package database

import (
	"testing"

	"gorm.io/gorm"

	"github.com/inkhousehq/inkhouse/internal/models"
	"github.com/inkhousehq/inkhouse/internal/permissions"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	if err := db.Exec("SELECT 1").Error; err != nil {
		t.Fatalf("expected health query to succeed: %v", err)
	}
}

func TestAutoMigrateAndSeedData(t *testing.T) {
	db := openTestDB(t)

	if err := AutoMigrateAndSeed(db); err != nil {
		t.Fatalf("auto migrate and seed failed: %v", err)
	}

	var tenant models.Tenant
	if err := db.First(&tenant, "slug = ?", "default").Error; err != nil {
		t.Fatalf("load seeded tenant: %v", err)
	}
	if !tenant.IsActive {
		t.Fatalf("seeded tenant should be active")
	}

	var group models.UserGroup
	if err := db.First(&group, "tenant_id = ? AND is_default = ?", tenant.ID, true).Error; err != nil {
		t.Fatalf("load seeded default group: %v", err)
	}

	var grant models.TenantGrant
	if err := db.First(&grant, "tenant_id = ?", tenant.ID).Error; err != nil {
		t.Fatalf("load seeded tenant grant: %v", err)
	}
	if !grant.Set().Has(permissions.TypeRead) {
		t.Fatalf("seeded default grant should include the read permission")
	}

	// Seeding twice must not duplicate rows.
	if err := AutoMigrateAndSeed(db); err != nil {
		t.Fatalf("second seed pass failed: %v", err)
	}
	var tenantCount int64
	if err := db.Model(&models.Tenant{}).Where("slug = ?", "default").Count(&tenantCount).Error; err != nil {
		t.Fatalf("count tenants: %v", err)
	}
	if tenantCount != 1 {
		t.Fatalf("expected exactly 1 seeded tenant, got %d", tenantCount)
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite"})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}
