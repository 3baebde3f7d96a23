package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/inkhousehq/inkhouse/internal/models"
	apperrors "github.com/inkhousehq/inkhouse/pkg/errors"
)

var (
	// ErrGroupNotFound indicates the requested group does not exist.
	ErrGroupNotFound = apperrors.New("GROUP_NOT_FOUND", "User group not found", http.StatusNotFound)
	// ErrCyclicHierarchy signals a re-parent operation that would close a cycle.
	ErrCyclicHierarchy = apperrors.NewConflict("CYCLIC_HIERARCHY", "Group cannot become a descendant of itself")
	// ErrGroupNotEmpty rejects deleting a group that still has child groups.
	ErrGroupNotEmpty = apperrors.New("GROUP_NOT_EMPTY", "Group still has child groups", http.StatusPreconditionFailed)
	// ErrMemberAlreadyExists signals the user already belongs to the group.
	ErrMemberAlreadyExists = apperrors.NewConflict("GROUP_MEMBER_EXISTS", "User already belongs to the group")
	// ErrMemberNotFound indicates the requested membership does not exist.
	ErrMemberNotFound = apperrors.New("GROUP_MEMBER_NOT_FOUND", "User does not belong to the group", http.StatusNotFound)
)

// CreateGroupInput captures new group metadata.
type CreateGroupInput struct {
	TenantID  string
	Name      string
	ParentID  *string
	IsDefault bool
}

// GroupService manages each tenant's group forest and its memberships.
type GroupService struct {
	db           *gorm.DB
	auditService *AuditService
}

// NewGroupService constructs a GroupService instance.
func NewGroupService(db *gorm.DB, auditService *AuditService) (*GroupService, error) {
	if db == nil {
		return nil, errors.New("group service: db is required")
	}
	return &GroupService{db: db, auditService: auditService}, nil
}

// Create registers a new group. New groups always start as leaves, so the
// acyclicity invariant only needs the parent to exist within the tenant.
func (s *GroupService) Create(ctx context.Context, input CreateGroupInput) (*models.UserGroup, error) {
	ctx = ensureContext(ctx)

	tenantID := strings.TrimSpace(input.TenantID)
	name := strings.TrimSpace(input.Name)
	if tenantID == "" {
		return nil, apperrors.NewBadRequest("tenant id is required")
	}
	if name == "" {
		return nil, apperrors.NewBadRequest("group name is required")
	}

	group := &models.UserGroup{
		TenantID:  tenantID,
		Name:      name,
		IsDefault: input.IsDefault,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tenant models.Tenant
		if err := tx.First(&tenant, "id = ?", tenantID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTenantNotFound
			}
			return fmt.Errorf("group service: load tenant: %w", err)
		}

		if input.ParentID != nil && strings.TrimSpace(*input.ParentID) != "" {
			parentID := strings.TrimSpace(*input.ParentID)
			var parent models.UserGroup
			if err := tx.First(&parent, "id = ? AND tenant_id = ?", parentID, tenantID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrGroupNotFound
				}
				return fmt.Errorf("group service: load parent group: %w", err)
			}
			group.ParentID = &parent.ID
		}

		if err := tx.Create(group).Error; err != nil {
			if isUniqueConstraintError(err) {
				return apperrors.NewConflict("DUPLICATE_GROUP", "Group name already exists in this tenant")
			}
			return fmt.Errorf("group service: create group: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		TenantID: &group.TenantID,
		Action:   "group.create",
		Resource: group.ID,
		Result:   "success",
		Metadata: map[string]any{"name": group.Name},
	})

	return group, nil
}

// Rename changes a group's display name, keeping per-tenant uniqueness.
func (s *GroupService) Rename(ctx context.Context, groupID, name string) (*models.UserGroup, error) {
	ctx = ensureContext(ctx)

	groupID = strings.TrimSpace(groupID)
	name = strings.TrimSpace(name)
	if groupID == "" {
		return nil, apperrors.NewBadRequest("group id is required")
	}
	if name == "" {
		return nil, apperrors.NewBadRequest("group name is required")
	}

	var group models.UserGroup
	if err := s.db.WithContext(ctx).First(&group, "id = ?", groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("group service: load group: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&group).Update("name", name).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("DUPLICATE_GROUP", "Group name already exists in this tenant")
		}
		return nil, fmt.Errorf("group service: rename group: %w", err)
	}
	group.Name = name

	recordAudit(s.auditService, ctx, AuditEntry{
		TenantID: &group.TenantID,
		Action:   "group.rename",
		Resource: group.ID,
		Result:   "success",
		Metadata: map[string]any{"name": name},
	})

	return &group, nil
}

// Reparent moves a group under a new parent (nil detaches it to a root).
// The ancestor walk from the new parent enforces acyclicity: if the walk
// reaches the group being moved, the move would close a cycle.
func (s *GroupService) Reparent(ctx context.Context, groupID string, newParentID *string) (*models.UserGroup, error) {
	ctx = ensureContext(ctx)

	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return nil, apperrors.NewBadRequest("group id is required")
	}

	var group models.UserGroup
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&group, "id = ?", groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return fmt.Errorf("group service: load group: %w", err)
		}

		if newParentID == nil || strings.TrimSpace(*newParentID) == "" {
			group.ParentID = nil
			return tx.Model(&group).Select("parent_id").Updates(map[string]interface{}{"parent_id": nil}).Error
		}

		parentID := strings.TrimSpace(*newParentID)
		if parentID == group.ID {
			return ErrCyclicHierarchy
		}

		var parent models.UserGroup
		if err := tx.First(&parent, "id = ? AND tenant_id = ?", parentID, group.TenantID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return fmt.Errorf("group service: load new parent: %w", err)
		}

		ancestors, err := ancestorChain(tx, &parent)
		if err != nil {
			return err
		}
		for _, ancestor := range ancestors {
			if ancestor.ID == group.ID {
				return ErrCyclicHierarchy
			}
		}

		group.ParentID = &parent.ID
		return tx.Model(&group).Select("parent_id").Updates(map[string]interface{}{"parent_id": parent.ID}).Error
	})
	if err != nil {
		return nil, err
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		TenantID: &group.TenantID,
		Action:   "group.reparent",
		Resource: group.ID,
		Result:   "success",
	})

	return &group, nil
}

// Delete removes a leaf group together with its memberships. Groups with
// children are rejected: the forest must be pruned leaf-first.
func (s *GroupService) Delete(ctx context.Context, groupID string) error {
	ctx = ensureContext(ctx)

	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return apperrors.NewBadRequest("group id is required")
	}

	var tenantID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.UserGroup
		if err := tx.First(&group, "id = ?", groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return fmt.Errorf("group service: load group: %w", err)
		}
		tenantID = group.TenantID

		var children int64
		if err := tx.Model(&models.UserGroup{}).Where("parent_id = ?", group.ID).Count(&children).Error; err != nil {
			return fmt.Errorf("group service: count children: %w", err)
		}
		if children > 0 {
			return ErrGroupNotEmpty
		}

		// Memberships go with the group; the users themselves stay.
		if err := tx.Where("group_id = ?", group.ID).Delete(&models.GroupMembership{}).Error; err != nil {
			return fmt.Errorf("group service: delete memberships: %w", err)
		}
		if err := tx.Model(&models.TenantDomain{}).Where("group_id = ?", group.ID).
			Update("group_id", nil).Error; err != nil {
			return fmt.Errorf("group service: unbind domains: %w", err)
		}
		if err := tx.Delete(&group).Error; err != nil {
			return fmt.Errorf("group service: delete group: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		TenantID: &tenantID,
		Action:   "group.delete",
		Resource: groupID,
		Result:   "success",
	})

	return nil
}

// List returns all groups of a tenant.
func (s *GroupService) List(ctx context.Context, tenantID string) ([]models.UserGroup, error) {
	ctx = ensureContext(ctx)

	var groups []models.UserGroup
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", strings.TrimSpace(tenantID)).
		Order("name ASC").
		Find(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("group service: list groups: %w", err)
	}
	return groups, nil
}

// DefaultGroup returns the tenant's fallback group, or nil when none is set.
func (s *GroupService) DefaultGroup(ctx context.Context, tenantID string) (*models.UserGroup, error) {
	ctx = ensureContext(ctx)

	var group models.UserGroup
	err := s.db.WithContext(ctx).
		First(&group, "tenant_id = ? AND is_default = ?", strings.TrimSpace(tenantID), true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("group service: load default group: %w", err)
	}
	return &group, nil
}

// Members returns the users belonging to a group.
func (s *GroupService) Members(ctx context.Context, groupID string) ([]models.User, error) {
	ctx = ensureContext(ctx)

	groupID = strings.TrimSpace(groupID)
	var group models.UserGroup
	if err := s.db.WithContext(ctx).First(&group, "id = ?", groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("group service: load group: %w", err)
	}

	var users []models.User
	err := s.db.WithContext(ctx).
		Joins("JOIN group_memberships ON group_memberships.user_id = users.id").
		Where("group_memberships.group_id = ?", groupID).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("group service: list members: %w", err)
	}
	return users, nil
}

// GroupsOf returns the groups a user directly belongs to. Parent groups are
// not implied; callers wanting the upward closure use AncestorsOf.
func (s *GroupService) GroupsOf(ctx context.Context, userID string) ([]models.UserGroup, error) {
	ctx = ensureContext(ctx)

	var groups []models.UserGroup
	err := s.db.WithContext(ctx).
		Joins("JOIN group_memberships ON group_memberships.group_id = user_groups.id").
		Where("group_memberships.user_id = ?", strings.TrimSpace(userID)).
		Find(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("group service: groups of user: %w", err)
	}
	return groups, nil
}

// AncestorsOf returns the resolved parent chain of a group, nearest first.
func (s *GroupService) AncestorsOf(ctx context.Context, groupID string) ([]models.UserGroup, error) {
	ctx = ensureContext(ctx)

	var group models.UserGroup
	err := s.db.WithContext(ctx).First(&group, "id = ?", strings.TrimSpace(groupID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("group service: load group: %w", err)
	}

	return ancestorChain(s.db.WithContext(ctx), &group)
}

// AddMember manually attaches a user to a group. The conditional insert
// keeps one row per (user, group) even under concurrent calls.
func (s *GroupService) AddMember(ctx context.Context, groupID, userID string) (*models.GroupMembership, error) {
	return s.addMember(ctx, groupID, userID, false)
}

func (s *GroupService) addMember(ctx context.Context, groupID, userID string, autoAssigned bool) (*models.GroupMembership, error) {
	ctx = ensureContext(ctx)

	groupID = strings.TrimSpace(groupID)
	userID = strings.TrimSpace(userID)
	if groupID == "" || userID == "" {
		return nil, apperrors.NewBadRequest("group id and user id are required")
	}

	var group models.UserGroup
	if err := s.db.WithContext(ctx).First(&group, "id = ?", groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("group service: load group: %w", err)
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("group service: load user: %w", err)
	}

	membership := models.GroupMembership{
		UserID:         userID,
		GroupID:        groupID,
		IsAutoAssigned: autoAssigned,
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&membership)
	if result.Error != nil {
		return nil, fmt.Errorf("group service: create membership: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrMemberAlreadyExists
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &userID,
		TenantID: &group.TenantID,
		Action:   "group.add_member",
		Resource: groupID,
		Result:   "success",
		Metadata: map[string]any{"auto_assigned": autoAssigned},
	})

	return &membership, nil
}

// RemoveMember detaches a user from a group. The user record is untouched.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, userID string) error {
	ctx = ensureContext(ctx)

	groupID = strings.TrimSpace(groupID)
	userID = strings.TrimSpace(userID)
	if groupID == "" || userID == "" {
		return apperrors.NewBadRequest("group id and user id are required")
	}

	result := s.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&models.GroupMembership{})
	if result.Error != nil {
		return fmt.Errorf("group service: remove member: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrMemberNotFound
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &userID,
		Action:   "group.remove_member",
		Resource: groupID,
		Result:   "success",
	})

	return nil
}

// ancestorChain walks parent pointers to the root, bounded by tree depth.
// A repeat visit means the stored hierarchy is already corrupt.
func ancestorChain(tx *gorm.DB, group *models.UserGroup) ([]models.UserGroup, error) {
	var chain []models.UserGroup
	visited := map[string]struct{}{group.ID: {}}

	current := group
	for current.ParentID != nil {
		var parent models.UserGroup
		if err := tx.First(&parent, "id = ?", *current.ParentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return chain, nil
			}
			return nil, fmt.Errorf("group service: walk ancestors: %w", err)
		}
		if _, seen := visited[parent.ID]; seen {
			return nil, ErrCyclicHierarchy
		}
		visited[parent.ID] = struct{}{}
		chain = append(chain, parent)
		current = &parent
	}
	return chain, nil
}
