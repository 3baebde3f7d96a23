package models

import (
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Post statuses.
const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
	PostStatusArchived  = "archived"
)

// ResourceTypePost identifies posts in resource-scoped permission grants.
const ResourceTypePost = "post"

// Post is a tenant-scoped piece of content.
type Post struct {
	BaseModel

	TenantID string  `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Tenant   *Tenant `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"tenant,omitempty"`

	AuthorID string `gorm:"type:uuid;not null;index" json:"author_id"`
	Author   *User  `gorm:"foreignKey:AuthorID" json:"author,omitempty"`

	Title    string         `gorm:"type:varchar(200);not null" json:"title"`
	Body     string         `gorm:"type:text" json:"body"`
	Status   string         `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	Metadata datatypes.JSON `json:"metadata"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Normalise canonicalises the status value.
func (p *Post) Normalise() {
	p.Status = strings.ToLower(strings.TrimSpace(p.Status))
}
