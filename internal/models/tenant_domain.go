package models

import "strings"

// TenantDomain binds a (domain, optional subdomain) pair to a tenant and,
// optionally, to a user group that matching identities are auto-assigned to.
//
// A row with an empty Subdomain matches only bare `domain` addresses; a row
// with a subdomain matches only `subdomain.domain`. The composite unique
// index doubles as the global secondary index used for first-contact email
// resolution across all tenants.
type TenantDomain struct {
	BaseModel

	TenantID string  `gorm:"type:uuid;not null;uniqueIndex:idx_tenant_domain,priority:1" json:"tenant_id"`
	Tenant   *Tenant `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`

	Domain    string `gorm:"not null;uniqueIndex:idx_tenant_domain,priority:2;index:idx_domain_lookup,priority:1" json:"domain"`
	Subdomain string `gorm:"not null;default:'';uniqueIndex:idx_tenant_domain,priority:3;index:idx_domain_lookup,priority:2" json:"subdomain"`

	IsMainDomain      bool `gorm:"default:false" json:"is_main_domain"`
	IsSecondaryDomain bool `gorm:"default:false" json:"is_secondary_domain"`

	GroupID *string    `gorm:"type:uuid;index" json:"group_id"`
	Group   *UserGroup `gorm:"foreignKey:GroupID" json:"group,omitempty"`
}

// Normalise lower-cases and trims the domain parts so that lookups are
// case-insensitive by construction.
func (d *TenantDomain) Normalise() {
	d.Domain = strings.ToLower(strings.TrimSpace(d.Domain))
	d.Subdomain = strings.ToLower(strings.TrimSpace(d.Subdomain))
}

// HostString reconstructs the full host this binding matches.
func (d *TenantDomain) HostString() string {
	if d.Subdomain == "" {
		return d.Domain
	}
	return d.Subdomain + "." + d.Domain
}
