package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/inkhousehq/inkhouse/internal/models"
	apperrors "github.com/inkhousehq/inkhouse/pkg/errors"
	"github.com/inkhousehq/inkhouse/pkg/logger"
	"github.com/inkhousehq/inkhouse/pkg/metrics"
)

var (
	// ErrNoMatchingDomain indicates no domain binding matches the email's host.
	ErrNoMatchingDomain = apperrors.New("NO_MATCHING_DOMAIN", "No domain binding matches this email address", http.StatusNotFound)
	// ErrUnboundDomain indicates the matched domain has no bound user group.
	ErrUnboundDomain = apperrors.New("UNBOUND_DOMAIN", "Matched domain is not bound to a user group", http.StatusNotFound)
)

// BulkAssignReport summarises a tenant-wide auto-assignment pass.
type BulkAssignReport struct {
	Created  int `json:"created"`
	Existing int `json:"existing"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// AutoAssignService orchestrates the domain registry and the group
// hierarchy: it resolves an email to its most specific domain binding and
// materialises the bound group membership, idempotently.
type AutoAssignService struct {
	db      *gorm.DB
	domains *DomainService
	groups  *GroupService
	log     *zap.Logger
}

// NewAutoAssignService constructs an AutoAssignService instance.
func NewAutoAssignService(db *gorm.DB, domains *DomainService, groups *GroupService) (*AutoAssignService, error) {
	if db == nil {
		return nil, errors.New("auto-assign service: db is required")
	}
	if domains == nil || groups == nil {
		return nil, errors.New("auto-assign service: domain and group services are required")
	}
	return &AutoAssignService{
		db:      db,
		domains: domains,
		groups:  groups,
		log:     logger.WithModule("autoassign"),
	}, nil
}

// AutoAssign places the user into the group bound to the domain matching
// their email. Re-running for the same user is side-effect free: the
// membership row is created at most once (atomic conditional insert) and
// subsequent calls return the existing row with created=false.
func (s *AutoAssignService) AutoAssign(ctx context.Context, userID, email string) (*models.GroupMembership, bool, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, false, apperrors.NewBadRequest("user id is required")
	}

	domain, err := s.domains.MatchEmail(ctx, email)
	if err != nil {
		metrics.AutoAssignments.WithLabelValues("error").Inc()
		return nil, false, err
	}
	if domain == nil {
		metrics.AutoAssignments.WithLabelValues("skipped").Inc()
		return nil, false, ErrNoMatchingDomain
	}
	if domain.GroupID == nil {
		metrics.AutoAssignments.WithLabelValues("skipped").Inc()
		return nil, false, ErrUnboundDomain
	}

	membership, created, err := s.ensureMembership(ctx, userID, *domain.GroupID)
	if err != nil {
		metrics.AutoAssignments.WithLabelValues("error").Inc()
		return nil, false, err
	}

	if created {
		metrics.AutoAssignments.WithLabelValues("created").Inc()
		s.log.Info("auto-assigned user to group",
			zap.String("user_id", userID),
			zap.String("group_id", *domain.GroupID),
			zap.String("tenant_id", domain.TenantID),
		)
	} else {
		metrics.AutoAssignments.WithLabelValues("existing").Inc()
	}

	return membership, created, nil
}

// AutoAssignTenant applies AutoAssign to every user whose email matches one
// of the tenant's bound domains. Per-user failures are counted and skipped
// so one malformed address cannot block the rest of the pass; re-runs
// report zero creations for already-assigned users.
func (s *AutoAssignService) AutoAssignTenant(ctx context.Context, tenantID string) (BulkAssignReport, error) {
	ctx = ensureContext(ctx)

	var report BulkAssignReport

	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return report, apperrors.NewBadRequest("tenant id is required")
	}

	var tenant models.Tenant
	err := s.db.WithContext(ctx).First(&tenant, "id = ? AND is_active = ?", tenantID, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return report, ErrTenantNotFound
	}
	if err != nil {
		return report, fmt.Errorf("auto-assign service: load tenant: %w", err)
	}

	domains, err := s.domains.List(ctx, tenantID)
	if err != nil {
		return report, err
	}

	var failures error
	for _, domain := range domains {
		if domain.GroupID == nil {
			continue
		}

		var users []models.User
		if err := s.db.WithContext(ctx).
			Where("email LIKE ? AND is_active = ?", "%@"+domain.HostString(), true).
			Find(&users).Error; err != nil {
			return report, fmt.Errorf("auto-assign service: list users for %s: %w", domain.HostString(), err)
		}

		for _, user := range users {
			// Re-match per user so the most specific binding wins even when
			// a broader binding of the same tenant listed the user first.
			matched, err := s.domains.MatchEmailForTenant(ctx, tenantID, user.Email)
			if err != nil || matched == nil || matched.GroupID == nil {
				report.Skipped++
				if err != nil {
					report.Failed++
					failures = multierr.Append(failures, fmt.Errorf("user %s: %w", user.ID, err))
				}
				continue
			}

			_, created, err := s.ensureMembership(ctx, user.ID, *matched.GroupID)
			if err != nil {
				report.Failed++
				failures = multierr.Append(failures, fmt.Errorf("user %s: %w", user.ID, err))
				continue
			}
			if created {
				report.Created++
			} else {
				report.Existing++
			}
		}
	}

	if failures != nil {
		s.log.Warn("tenant-wide auto-assignment finished with failures",
			zap.String("tenant_id", tenantID),
			zap.Int("failed", report.Failed),
			zap.Error(failures),
		)
	}

	return report, nil
}

// RemoveAutoAssigned deletes every auto-assigned membership within the
// tenant, leaving manually curated memberships untouched. Used to reconcile
// after a domain-rule change before recomputing assignments.
func (s *AutoAssignService) RemoveAutoAssigned(ctx context.Context, tenantID string) (int64, error) {
	ctx = ensureContext(ctx)

	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return 0, apperrors.NewBadRequest("tenant id is required")
	}

	result := s.db.WithContext(ctx).
		Where("is_auto_assigned = ? AND group_id IN (?)", true,
			s.db.Model(&models.UserGroup{}).Select("id").Where("tenant_id = ?", tenantID)).
		Delete(&models.GroupMembership{})
	if result.Error != nil {
		return 0, fmt.Errorf("auto-assign service: remove auto-assigned: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ensureMembership performs the atomic insert-if-absent and loads the
// surviving row. Two concurrent calls race on the unique (user, group)
// index; exactly one insert wins and both observe the same row.
func (s *AutoAssignService) ensureMembership(ctx context.Context, userID, groupID string) (*models.GroupMembership, bool, error) {
	membership, err := s.groups.addMember(ctx, groupID, userID, true)
	if err == nil {
		return membership, true, nil
	}
	if !errors.Is(err, ErrMemberAlreadyExists) {
		return nil, false, err
	}

	var existing models.GroupMembership
	if err := s.db.WithContext(ctx).
		First(&existing, "user_id = ? AND group_id = ?", userID, groupID).Error; err != nil {
		return nil, false, fmt.Errorf("auto-assign service: load membership: %w", err)
	}
	return &existing, false, nil
}
