package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/inkhousehq/inkhouse/internal/models"
	apperrors "github.com/inkhousehq/inkhouse/pkg/errors"
)

var (
	// ErrTenantNotFound indicates the requested tenant does not exist.
	ErrTenantNotFound = apperrors.New("TENANT_NOT_FOUND", "Tenant not found", http.StatusNotFound)
	// ErrDuplicateSlug signals the tenant slug is already taken.
	ErrDuplicateSlug = apperrors.NewConflict("DUPLICATE_SLUG", "Tenant slug already exists")
)

// CreateTenantInput captures the attributes required to register a tenant.
type CreateTenantInput struct {
	Name     string
	Slug     string
	Settings map[string]any
}

// UpdateTenantInput represents mutable tenant fields.
type UpdateTenantInput struct {
	Name     *string
	Settings map[string]any
}

// TenantService manages tenant lifecycle operations.
type TenantService struct {
	db           *gorm.DB
	auditService *AuditService
}

// NewTenantService constructs a TenantService instance.
func NewTenantService(db *gorm.DB, auditService *AuditService) (*TenantService, error) {
	if db == nil {
		return nil, errors.New("tenant service: db is required")
	}
	return &TenantService{db: db, auditService: auditService}, nil
}

// Create registers a new tenant.
func (s *TenantService) Create(ctx context.Context, input CreateTenantInput) (*models.Tenant, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	slug := strings.ToLower(strings.TrimSpace(input.Slug))
	if name == "" {
		return nil, apperrors.NewBadRequest("tenant name is required")
	}
	if slug == "" {
		return nil, apperrors.NewBadRequest("tenant slug is required")
	}

	tenant := &models.Tenant{
		Name:     name,
		Slug:     slug,
		IsActive: true,
	}

	if input.Settings != nil {
		data, err := json.Marshal(input.Settings)
		if err != nil {
			return nil, fmt.Errorf("tenant service: marshal settings: %w", err)
		}
		tenant.Settings = datatypes.JSON(data)
	}

	if err := s.db.WithContext(ctx).Create(tenant).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrDuplicateSlug
		}
		return nil, fmt.Errorf("tenant service: create tenant: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		TenantID: &tenant.ID,
		Action:   "tenant.create",
		Resource: tenant.ID,
		Result:   "success",
		Metadata: map[string]any{"slug": slug},
	})

	return tenant, nil
}

// GetByID loads a tenant by identifier.
func (s *TenantService) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	ctx = ensureContext(ctx)

	var tenant models.Tenant
	err := s.db.WithContext(ctx).First(&tenant, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tenant service: get tenant: %w", err)
	}
	return &tenant, nil
}

// GetBySlug loads a tenant by its URL-safe slug.
func (s *TenantService) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	ctx = ensureContext(ctx)

	var tenant models.Tenant
	err := s.db.WithContext(ctx).First(&tenant, "slug = ?", strings.ToLower(strings.TrimSpace(slug))).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tenant service: get tenant by slug: %w", err)
	}
	return &tenant, nil
}

// List returns all tenants ordered by creation date.
func (s *TenantService) List(ctx context.Context) ([]models.Tenant, error) {
	ctx = ensureContext(ctx)

	var tenants []models.Tenant
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&tenants).Error; err != nil {
		return nil, fmt.Errorf("tenant service: list tenants: %w", err)
	}
	return tenants, nil
}

// Update modifies tenant metadata.
func (s *TenantService) Update(ctx context.Context, id string, input UpdateTenantInput) (*models.Tenant, error) {
	ctx = ensureContext(ctx)

	tenant, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		if name := strings.TrimSpace(*input.Name); name != "" && name != tenant.Name {
			updates["name"] = name
		}
	}
	if input.Settings != nil {
		data, err := json.Marshal(input.Settings)
		if err != nil {
			return nil, fmt.Errorf("tenant service: marshal settings: %w", err)
		}
		updates["settings"] = datatypes.JSON(data)
	}

	if len(updates) == 0 {
		return tenant, nil
	}

	if err := s.db.WithContext(ctx).Model(tenant).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("tenant service: update tenant: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		TenantID: &tenant.ID,
		Action:   "tenant.update",
		Resource: tenant.ID,
		Result:   "success",
		Metadata: updates,
	})

	return tenant, nil
}

// SetActive toggles the tenant's active flag. An inactive tenant cannot be
// resolved as request context and is excluded from auto-assignment.
func (s *TenantService) SetActive(ctx context.Context, id string, active bool) (*models.Tenant, error) {
	ctx = ensureContext(ctx)

	tenant, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if tenant.IsActive == active {
		return tenant, nil
	}

	if err := s.db.WithContext(ctx).Model(tenant).Update("is_active", active).Error; err != nil {
		return nil, fmt.Errorf("tenant service: set active: %w", err)
	}
	tenant.IsActive = active

	action := "tenant.deactivate"
	if active {
		action = "tenant.activate"
	}
	recordAudit(s.auditService, ctx, AuditEntry{
		TenantID: &tenant.ID,
		Action:   action,
		Resource: tenant.ID,
		Result:   "success",
	})

	return tenant, nil
}

// Delete soft-deletes a tenant. The record is recoverable until HardDelete.
func (s *TenantService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	tenant, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(tenant).Error; err != nil {
		return fmt.Errorf("tenant service: delete tenant: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		TenantID: &tenant.ID,
		Action:   "tenant.delete",
		Resource: tenant.ID,
		Result:   "success",
	})

	return nil
}

// HardDelete irreversibly removes a tenant and everything it owns: domain
// bindings, groups and their memberships, all three grant layers, posts and
// lab bookings.
func (s *TenantService) HardDelete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	id = strings.TrimSpace(id)
	if id == "" {
		return apperrors.NewBadRequest("tenant id is required")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tenant models.Tenant
		if err := tx.Unscoped().First(&tenant, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTenantNotFound
			}
			return fmt.Errorf("tenant service: load tenant: %w", err)
		}

		groupIDs := tx.Model(&models.UserGroup{}).Select("id").Where("tenant_id = ?", id)
		if err := tx.Where("group_id IN (?)", groupIDs).Delete(&models.GroupMembership{}).Error; err != nil {
			return fmt.Errorf("tenant service: delete memberships: %w", err)
		}
		if err := tx.Where("tenant_id = ?", id).Delete(&models.TenantDomain{}).Error; err != nil {
			return fmt.Errorf("tenant service: delete domains: %w", err)
		}
		if err := tx.Where("tenant_id = ?", id).Delete(&models.UserGroup{}).Error; err != nil {
			return fmt.Errorf("tenant service: delete groups: %w", err)
		}
		if err := tx.Where("tenant_id = ?", id).Delete(&models.TenantGrant{}).Error; err != nil {
			return fmt.Errorf("tenant service: delete tenant grants: %w", err)
		}
		if err := tx.Where("tenant_id = ?", id).Delete(&models.UserTenantGrant{}).Error; err != nil {
			return fmt.Errorf("tenant service: delete user grants: %w", err)
		}
		if err := tx.Where("tenant_id = ?", id).Delete(&models.ResourceGrant{}).Error; err != nil {
			return fmt.Errorf("tenant service: delete resource grants: %w", err)
		}
		if err := tx.Unscoped().Where("tenant_id = ?", id).Delete(&models.Post{}).Error; err != nil {
			return fmt.Errorf("tenant service: delete posts: %w", err)
		}
		if err := tx.Where("tenant_id = ?", id).Delete(&models.LabBooking{}).Error; err != nil {
			return fmt.Errorf("tenant service: delete lab bookings: %w", err)
		}
		if err := tx.Unscoped().Delete(&tenant).Error; err != nil {
			return fmt.Errorf("tenant service: hard delete tenant: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "tenant.hard_delete",
		Resource: id,
		Result:   "success",
	})

	return nil
}
