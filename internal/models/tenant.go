package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Tenant is the isolation boundary under which users, domains, groups and
// permission grants are scoped. A deactivated or soft-deleted tenant is never
// selectable as the active request context and never participates in
// domain-based auto-assignment.
type Tenant struct {
	BaseModel

	Name     string         `gorm:"not null" json:"name"`
	Slug     string         `gorm:"uniqueIndex;not null" json:"slug"`
	IsActive bool           `gorm:"default:true" json:"is_active"`
	Settings datatypes.JSON `json:"settings"`

	Domains []TenantDomain `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"domains,omitempty"`
	Groups  []UserGroup    `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"groups,omitempty"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
