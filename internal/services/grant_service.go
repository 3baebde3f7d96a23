package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/inkhousehq/inkhouse/internal/models"
	"github.com/inkhousehq/inkhouse/internal/permissions"
)

// ResourceRef addresses one concrete object for resource-scoped grants.
type ResourceRef struct {
	Type string
	ID   string
}

func (r ResourceRef) validate() error {
	if strings.TrimSpace(r.Type) == "" || strings.TrimSpace(r.ID) == "" {
		return errors.New("grant service: resource type and id are required")
	}
	return nil
}

// GrantService is the persistence layer for the three grant shapes:
// tenant-default, user-tenant and user-tenant-resource. All mutations are
// single-statement upserts over the whole word pair; "no row" and "zero
// bits" are equivalent and both read back as the empty set.
type GrantService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGrantService constructs a GrantService instance.
func NewGrantService(db *gorm.DB) (*GrantService, error) {
	if db == nil {
		return nil, errors.New("grant service: db is required")
	}
	return &GrantService{db: db, now: time.Now}, nil
}

// SetTenantDefault replaces the tenant's baseline permission set.
func (s *GrantService) SetTenantDefault(ctx context.Context, tenantID string, set permissions.Set) error {
	ctx = ensureContext(ctx)

	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return errors.New("grant service: tenant id is required")
	}

	lo, hi := set.Words()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"bits_lo":    lo,
			"bits_hi":    hi,
			"updated_at": s.now(),
		}),
	}).Create(&models.TenantGrant{
		TenantID: tenantID,
		BitsLo:   lo,
		BitsHi:   hi,
	}).Error
	if err != nil {
		return fmt.Errorf("grant service: set tenant default: %w", err)
	}
	return nil
}

// TenantDefault returns the tenant's baseline set, empty when absent.
func (s *GrantService) TenantDefault(ctx context.Context, tenantID string) (permissions.Set, error) {
	ctx = ensureContext(ctx)

	var grant models.TenantGrant
	err := s.db.WithContext(ctx).First(&grant, "tenant_id = ?", strings.TrimSpace(tenantID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return permissions.Set{}, nil
	}
	if err != nil {
		return permissions.Set{}, fmt.Errorf("grant service: load tenant default: %w", err)
	}
	return grant.Set(), nil
}

// GrantUserTenant adds bits to the user's tenant-wide grant, creating the
// row on first use. The bitwise OR happens inside the upsert statement so
// two concurrent grants cannot overwrite each other's bits.
func (s *GrantService) GrantUserTenant(ctx context.Context, userID, tenantID string, add permissions.Set) error {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	tenantID = strings.TrimSpace(tenantID)
	if userID == "" || tenantID == "" {
		return errors.New("grant service: user id and tenant id are required")
	}

	lo, hi := add.Words()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "tenant_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"bits_lo":    gorm.Expr("bits_lo | ?", lo),
			"bits_hi":    gorm.Expr("bits_hi | ?", hi),
			"updated_at": s.now(),
		}),
	}).Create(&models.UserTenantGrant{
		UserID:   userID,
		TenantID: tenantID,
		BitsLo:   lo,
		BitsHi:   hi,
	}).Error
	if err != nil {
		return fmt.Errorf("grant service: grant user tenant: %w", err)
	}
	return nil
}

// RevokeUserTenant clears bits from the user's tenant-wide grant. Revoking
// from a non-existent grant is a no-op: there is nothing to clear, and no
// negative grant is ever recorded.
func (s *GrantService) RevokeUserTenant(ctx context.Context, userID, tenantID string, remove permissions.Set) error {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	tenantID = strings.TrimSpace(tenantID)
	if userID == "" || tenantID == "" {
		return errors.New("grant service: user id and tenant id are required")
	}

	lo, hi := remove.Words()
	err := s.db.WithContext(ctx).Model(&models.UserTenantGrant{}).
		Where("user_id = ? AND tenant_id = ?", userID, tenantID).
		Updates(map[string]interface{}{
			"bits_lo":    gorm.Expr("bits_lo & ~?", lo),
			"bits_hi":    gorm.Expr("bits_hi & ~?", hi),
			"updated_at": s.now(),
		}).Error
	if err != nil {
		return fmt.Errorf("grant service: revoke user tenant: %w", err)
	}
	return nil
}

// UserTenant returns the user's tenant-wide set, empty when absent.
func (s *GrantService) UserTenant(ctx context.Context, userID, tenantID string) (permissions.Set, error) {
	ctx = ensureContext(ctx)

	var grant models.UserTenantGrant
	err := s.db.WithContext(ctx).
		First(&grant, "user_id = ? AND tenant_id = ?", strings.TrimSpace(userID), strings.TrimSpace(tenantID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return permissions.Set{}, nil
	}
	if err != nil {
		return permissions.Set{}, fmt.Errorf("grant service: load user tenant grant: %w", err)
	}
	return grant.Set(), nil
}

// GrantResource adds bits to the user's grant on one concrete resource.
func (s *GrantService) GrantResource(ctx context.Context, userID, tenantID string, ref ResourceRef, add permissions.Set) error {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	tenantID = strings.TrimSpace(tenantID)
	if userID == "" || tenantID == "" {
		return errors.New("grant service: user id and tenant id are required")
	}
	if err := ref.validate(); err != nil {
		return err
	}

	lo, hi := add.Words()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"}, {Name: "tenant_id"},
			{Name: "resource_type"}, {Name: "resource_id"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"bits_lo":    gorm.Expr("bits_lo | ?", lo),
			"bits_hi":    gorm.Expr("bits_hi | ?", hi),
			"updated_at": s.now(),
		}),
	}).Create(&models.ResourceGrant{
		UserID:       userID,
		TenantID:     tenantID,
		ResourceType: strings.TrimSpace(ref.Type),
		ResourceID:   strings.TrimSpace(ref.ID),
		BitsLo:       lo,
		BitsHi:       hi,
	}).Error
	if err != nil {
		return fmt.Errorf("grant service: grant resource: %w", err)
	}
	return nil
}

// RevokeResource clears bits from the user's grant on one concrete resource.
func (s *GrantService) RevokeResource(ctx context.Context, userID, tenantID string, ref ResourceRef, remove permissions.Set) error {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	tenantID = strings.TrimSpace(tenantID)
	if userID == "" || tenantID == "" {
		return errors.New("grant service: user id and tenant id are required")
	}
	if err := ref.validate(); err != nil {
		return err
	}

	lo, hi := remove.Words()
	err := s.db.WithContext(ctx).Model(&models.ResourceGrant{}).
		Where("user_id = ? AND tenant_id = ? AND resource_type = ? AND resource_id = ?",
			userID, tenantID, strings.TrimSpace(ref.Type), strings.TrimSpace(ref.ID)).
		Updates(map[string]interface{}{
			"bits_lo":    gorm.Expr("bits_lo & ~?", lo),
			"bits_hi":    gorm.Expr("bits_hi & ~?", hi),
			"updated_at": s.now(),
		}).Error
	if err != nil {
		return fmt.Errorf("grant service: revoke resource: %w", err)
	}
	return nil
}

// Resource returns the user's set on one concrete resource, empty when absent.
func (s *GrantService) Resource(ctx context.Context, userID, tenantID string, ref ResourceRef) (permissions.Set, error) {
	ctx = ensureContext(ctx)

	if err := ref.validate(); err != nil {
		return permissions.Set{}, err
	}

	var grant models.ResourceGrant
	err := s.db.WithContext(ctx).
		First(&grant, "user_id = ? AND tenant_id = ? AND resource_type = ? AND resource_id = ?",
			strings.TrimSpace(userID), strings.TrimSpace(tenantID),
			strings.TrimSpace(ref.Type), strings.TrimSpace(ref.ID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return permissions.Set{}, nil
	}
	if err != nil {
		return permissions.Set{}, fmt.Errorf("grant service: load resource grant: %w", err)
	}
	return grant.Set(), nil
}

// ResourcesOfType returns all resource grants a user holds for one resource
// type within a tenant, keyed by resource id. Used by the bulk resolver.
func (s *GrantService) ResourcesOfType(ctx context.Context, userID, tenantID, resourceType string, resourceIDs []string) (map[string]permissions.Set, error) {
	ctx = ensureContext(ctx)

	ids := normaliseIDs(resourceIDs)
	out := make(map[string]permissions.Set, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var grants []models.ResourceGrant
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND tenant_id = ? AND resource_type = ? AND resource_id IN ?",
			strings.TrimSpace(userID), strings.TrimSpace(tenantID), strings.TrimSpace(resourceType), ids).
		Find(&grants).Error
	if err != nil {
		return nil, fmt.Errorf("grant service: load resource grants: %w", err)
	}

	for i := range grants {
		out[grants[i].ResourceID] = grants[i].Set()
	}
	return out, nil
}
