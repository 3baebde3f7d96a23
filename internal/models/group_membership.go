package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GroupMembership is the authoritative join between users and groups:
// exactly one row per (user, group) pair, enforced by a composite unique
// index so concurrent auto-assignment resolves to a single row.
type GroupMembership struct {
	ID string `gorm:"primaryKey;type:uuid" json:"id"`

	UserID string `gorm:"type:uuid;not null;uniqueIndex:idx_user_group,priority:1" json:"user_id"`
	User   *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`

	GroupID string     `gorm:"type:uuid;not null;uniqueIndex:idx_user_group,priority:2;index" json:"group_id"`
	Group   *UserGroup `gorm:"foreignKey:GroupID" json:"group,omitempty"`

	// IsAutoAssigned separates domain-derived memberships from manually
	// curated ones so a later domain-rule change can be reconciled without
	// disturbing manual rows.
	IsAutoAssigned bool `gorm:"default:false;index" json:"is_auto_assigned"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (m *GroupMembership) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
