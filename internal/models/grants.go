package models

import "github.com/inkhousehq/inkhouse/internal/permissions"

// The three grant layers share one representation: a pair of 64-bit words
// holding the permission bitmask. Absence of a row and a row of zero bits
// are deliberately indistinguishable — both mean "nothing beyond inherited
// layers". Every mutation rewrites the whole word pair in a single
// statement, so a partially applied multi-bit grant cannot exist.

// TenantGrant holds the baseline permissions every member of a tenant
// receives. At most one row per tenant.
type TenantGrant struct {
	BaseModel

	TenantID string  `gorm:"type:uuid;not null;uniqueIndex" json:"tenant_id"`
	Tenant   *Tenant `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"tenant,omitempty"`

	BitsLo uint64 `gorm:"not null;default:0" json:"bits_lo"`
	BitsHi uint64 `gorm:"not null;default:0" json:"bits_hi"`
}

// Set decodes the stored word pair.
func (g *TenantGrant) Set() permissions.Set {
	return permissions.FromWords(g.BitsLo, g.BitsHi)
}

// UserTenantGrant holds user-specific permissions within a tenant, additive
// on top of the tenant default. At most one row per (user, tenant).
type UserTenantGrant struct {
	BaseModel

	UserID   string `gorm:"type:uuid;not null;uniqueIndex:idx_user_tenant_grant,priority:1" json:"user_id"`
	TenantID string `gorm:"type:uuid;not null;uniqueIndex:idx_user_tenant_grant,priority:2" json:"tenant_id"`

	BitsLo uint64 `gorm:"not null;default:0" json:"bits_lo"`
	BitsHi uint64 `gorm:"not null;default:0" json:"bits_hi"`
}

// Set decodes the stored word pair.
func (g *UserTenantGrant) Set() permissions.Set {
	return permissions.FromWords(g.BitsLo, g.BitsHi)
}

// ResourceGrant scopes additional permissions to one concrete object, for
// example a single post shared to a reviewer. At most one row per
// (user, tenant, resource type, resource id).
type ResourceGrant struct {
	BaseModel

	UserID       string `gorm:"type:uuid;not null;uniqueIndex:idx_resource_grant,priority:1" json:"user_id"`
	TenantID     string `gorm:"type:uuid;not null;uniqueIndex:idx_resource_grant,priority:2" json:"tenant_id"`
	ResourceType string `gorm:"type:varchar(64);not null;uniqueIndex:idx_resource_grant,priority:3" json:"resource_type"`
	ResourceID   string `gorm:"type:uuid;not null;uniqueIndex:idx_resource_grant,priority:4" json:"resource_id"`

	BitsLo uint64 `gorm:"not null;default:0" json:"bits_lo"`
	BitsHi uint64 `gorm:"not null;default:0" json:"bits_hi"`
}

// Set decodes the stored word pair.
func (g *ResourceGrant) Set() permissions.Set {
	return permissions.FromWords(g.BitsLo, g.BitsHi)
}
