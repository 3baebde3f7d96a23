package models

// UserGroup is a named node in a tenant's group forest. Parent pointers
// (never embedded child lists) keep the hierarchy acyclic-checkable by a
// bounded ancestor walk.
type UserGroup struct {
	BaseModel

	TenantID string  `gorm:"type:uuid;not null;uniqueIndex:idx_tenant_group_name,priority:1" json:"tenant_id"`
	Tenant   *Tenant `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`

	Name string `gorm:"not null;uniqueIndex:idx_tenant_group_name,priority:2" json:"name"`

	ParentID *string    `gorm:"type:uuid;index" json:"parent_id"`
	Parent   *UserGroup `gorm:"foreignKey:ParentID" json:"parent,omitempty"`

	// IsDefault marks the group that members without a matching domain
	// binding fall back to.
	IsDefault bool `gorm:"default:false" json:"is_default"`

	Memberships []GroupMembership `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"memberships,omitempty"`
}
