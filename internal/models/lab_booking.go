package models

import "time"

// LabBooking statuses.
const (
	LabBookingStatusScheduled = "scheduled"
	LabBookingStatusCancelled = "cancelled"
	LabBookingStatusExpired   = "expired"
)

// LabBooking reserves a slot in a tenant's testing lab.
type LabBooking struct {
	BaseModel

	TenantID string  `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Tenant   *Tenant `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"tenant,omitempty"`

	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`
	User   *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`

	LabName  string    `gorm:"type:varchar(120);not null;index" json:"lab_name"`
	StartsAt time.Time `gorm:"not null;index" json:"starts_at"`
	EndsAt   time.Time `gorm:"not null" json:"ends_at"`
	Status   string    `gorm:"type:varchar(20);not null;default:'scheduled';index" json:"status"`
	Notes    string    `gorm:"type:text" json:"notes"`
}
