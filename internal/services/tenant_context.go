package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/inkhousehq/inkhouse/internal/models"
	"github.com/inkhousehq/inkhouse/pkg/metrics"
)

// TenantContextService determines the active tenant for a request from
// explicit signals. An explicit header wins over the token claim; a tenant
// that fails the liveness check is treated exactly like an absent signal so
// callers cannot probe for tenant existence.
type TenantContextService struct {
	db *gorm.DB
}

// NewTenantContextService constructs a TenantContextService instance.
func NewTenantContextService(db *gorm.DB) (*TenantContextService, error) {
	if db == nil {
		return nil, errors.New("tenant context service: db is required")
	}
	return &TenantContextService{db: db}, nil
}

// Resolve returns the active tenant id for the supplied signals, or the
// empty string when neither signal names a live tenant. The fallback policy
// for an empty result belongs to the caller.
func (s *TenantContextService) Resolve(ctx context.Context, tenantHeader, tokenClaim string) (string, error) {
	ctx = ensureContext(ctx)

	if id := strings.TrimSpace(tenantHeader); id != "" {
		live, err := s.isLive(ctx, id)
		if err != nil {
			return "", err
		}
		if live {
			metrics.TenantResolutions.WithLabelValues("header").Inc()
			return id, nil
		}
	}

	if id := strings.TrimSpace(tokenClaim); id != "" {
		live, err := s.isLive(ctx, id)
		if err != nil {
			return "", err
		}
		if live {
			metrics.TenantResolutions.WithLabelValues("claim").Inc()
			return id, nil
		}
	}

	metrics.TenantResolutions.WithLabelValues("none").Inc()
	return "", nil
}

// SoleTenantOf returns the single tenant a user belongs to through group
// membership, or empty when the user belongs to zero or several tenants.
// Used by callers that opt into a sole-tenant fallback policy.
func (s *TenantContextService) SoleTenantOf(ctx context.Context, userID string) (string, error) {
	ctx = ensureContext(ctx)

	var tenantIDs []string
	err := s.db.WithContext(ctx).
		Model(&models.UserGroup{}).
		Distinct("user_groups.tenant_id").
		Joins("JOIN group_memberships ON group_memberships.group_id = user_groups.id").
		Joins("JOIN tenants ON tenants.id = user_groups.tenant_id AND tenants.is_active = ? AND tenants.deleted_at IS NULL", true).
		Where("group_memberships.user_id = ?", strings.TrimSpace(userID)).
		Pluck("user_groups.tenant_id", &tenantIDs).Error
	if err != nil {
		return "", fmt.Errorf("tenant context service: sole tenant lookup: %w", err)
	}

	if len(tenantIDs) == 1 {
		return tenantIDs[0], nil
	}
	return "", nil
}

func (s *TenantContextService) isLive(ctx context.Context, tenantID string) (bool, error) {
	var tenant models.Tenant
	err := s.db.WithContext(ctx).
		Select("id").
		First(&tenant, "id = ? AND is_active = ?", tenantID, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("tenant context service: liveness check: %w", err)
	}
	return true, nil
}
