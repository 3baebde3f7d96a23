package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/inkhousehq/inkhouse/internal/models"
	apperrors "github.com/inkhousehq/inkhouse/pkg/errors"
)

var (
	// ErrDomainNotFound indicates the requested domain binding does not exist.
	ErrDomainNotFound = apperrors.New("DOMAIN_NOT_FOUND", "Domain binding not found", http.StatusNotFound)
	// ErrDuplicateDomain signals the (tenant, domain, subdomain) tuple is already registered.
	ErrDuplicateDomain = apperrors.NewConflict("DUPLICATE_DOMAIN", "Domain is already registered for this tenant")
	// ErrConflictingMainDomain signals the tenant already has a main domain.
	ErrConflictingMainDomain = apperrors.NewConflict("CONFLICTING_MAIN_DOMAIN", "Tenant already has a main domain")
	// ErrInvalidEmail indicates the email address could not be parsed into a host.
	ErrInvalidEmail = apperrors.NewBadRequest("email address is malformed")
)

// RegisterDomainInput captures the attributes of a new domain binding.
type RegisterDomainInput struct {
	TenantID          string
	Domain            string
	Subdomain         string
	IsMainDomain      bool
	IsSecondaryDomain bool
	GroupID           *string
}

// DomainService stores tenant domain bindings and resolves email addresses
// to the most specific matching binding.
type DomainService struct {
	db *gorm.DB
}

// NewDomainService constructs a DomainService instance.
func NewDomainService(db *gorm.DB) (*DomainService, error) {
	if db == nil {
		return nil, errors.New("domain service: db is required")
	}
	return &DomainService{db: db}, nil
}

// Register creates a new domain binding for a tenant.
func (s *DomainService) Register(ctx context.Context, input RegisterDomainInput) (*models.TenantDomain, error) {
	ctx = ensureContext(ctx)

	tenantID := strings.TrimSpace(input.TenantID)
	if tenantID == "" {
		return nil, apperrors.NewBadRequest("tenant id is required")
	}

	record := &models.TenantDomain{
		TenantID:          tenantID,
		Domain:            input.Domain,
		Subdomain:         input.Subdomain,
		IsMainDomain:      input.IsMainDomain,
		IsSecondaryDomain: input.IsSecondaryDomain,
	}
	record.Normalise()
	if record.Domain == "" || !strings.Contains(record.Domain, ".") {
		return nil, apperrors.NewBadRequest("a valid top-level domain is required")
	}

	if input.GroupID != nil {
		groupID := strings.TrimSpace(*input.GroupID)
		if groupID != "" {
			record.GroupID = &groupID
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tenant models.Tenant
		if err := tx.First(&tenant, "id = ?", tenantID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTenantNotFound
			}
			return fmt.Errorf("domain service: load tenant: %w", err)
		}

		if record.GroupID != nil {
			var group models.UserGroup
			if err := tx.First(&group, "id = ? AND tenant_id = ?", *record.GroupID, tenantID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrGroupNotFound
				}
				return fmt.Errorf("domain service: load bound group: %w", err)
			}
		}

		if record.IsMainDomain {
			var mains int64
			if err := tx.Model(&models.TenantDomain{}).
				Where("tenant_id = ? AND is_main_domain = ?", tenantID, true).
				Count(&mains).Error; err != nil {
				return fmt.Errorf("domain service: check main domain: %w", err)
			}
			if mains > 0 {
				return ErrConflictingMainDomain
			}
		}

		if err := tx.Create(record).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrDuplicateDomain
			}
			return fmt.Errorf("domain service: create domain: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// BindGroup points an existing domain binding at a user group, or clears the
// binding when groupID is nil.
func (s *DomainService) BindGroup(ctx context.Context, domainID string, groupID *string) (*models.TenantDomain, error) {
	ctx = ensureContext(ctx)

	var record models.TenantDomain
	err := s.db.WithContext(ctx).First(&record, "id = ?", strings.TrimSpace(domainID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDomainNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("domain service: load domain: %w", err)
	}

	if groupID == nil || strings.TrimSpace(*groupID) == "" {
		record.GroupID = nil
	} else {
		id := strings.TrimSpace(*groupID)
		var group models.UserGroup
		if err := s.db.WithContext(ctx).First(&group, "id = ? AND tenant_id = ?", id, record.TenantID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrGroupNotFound
			}
			return nil, fmt.Errorf("domain service: load group: %w", err)
		}
		record.GroupID = &id
	}

	if err := s.db.WithContext(ctx).Model(&record).Select("group_id").Updates(map[string]interface{}{"group_id": record.GroupID}).Error; err != nil {
		return nil, fmt.Errorf("domain service: bind group: %w", err)
	}
	return &record, nil
}

// List returns all domain bindings of a tenant ordered by specificity.
func (s *DomainService) List(ctx context.Context, tenantID string) ([]models.TenantDomain, error) {
	ctx = ensureContext(ctx)

	var records []models.TenantDomain
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", strings.TrimSpace(tenantID)).
		Order("domain ASC, subdomain ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("domain service: list domains: %w", err)
	}
	return records, nil
}

// Delete removes a domain binding.
func (s *DomainService) Delete(ctx context.Context, domainID string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Delete(&models.TenantDomain{}, "id = ?", strings.TrimSpace(domainID))
	if result.Error != nil {
		return fmt.Errorf("domain service: delete domain: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrDomainNotFound
	}
	return nil
}

// MatchEmail resolves an email address to the most specific matching domain
// binding across all live tenants. It returns (nil, nil) when nothing
// matches — absence is an expected outcome, not a failure.
//
// Tie-break order: an exact (domain, subdomain) binding wins over the bare
// (domain, "") binding; the bare binding never matches subdomained hosts.
func (s *DomainService) MatchEmail(ctx context.Context, email string) (*models.TenantDomain, error) {
	return s.matchEmail(ctx, "", email)
}

// MatchEmailForTenant is the tenant-scoped variant of MatchEmail.
func (s *DomainService) MatchEmailForTenant(ctx context.Context, tenantID, email string) (*models.TenantDomain, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, apperrors.NewBadRequest("tenant id is required")
	}
	return s.matchEmail(ctx, tenantID, email)
}

func (s *DomainService) matchEmail(ctx context.Context, tenantID, email string) (*models.TenantDomain, error) {
	ctx = ensureContext(ctx)

	subdomain, domain, err := SplitEmailHost(email)
	if err != nil {
		return nil, err
	}

	// One lookup per specificity level, most specific first.
	candidates := [][2]string{}
	if subdomain != "" {
		candidates = append(candidates, [2]string{domain, subdomain})
	}
	candidates = append(candidates, [2]string{domain, ""})

	for _, pair := range candidates {
		query := s.db.WithContext(ctx).
			Joins("JOIN tenants ON tenants.id = tenant_domains.tenant_id AND tenants.is_active = ? AND tenants.deleted_at IS NULL", true).
			Where("tenant_domains.domain = ? AND tenant_domains.subdomain = ?", pair[0], pair[1])
		if tenantID != "" {
			query = query.Where("tenant_domains.tenant_id = ?", tenantID)
		}

		var record models.TenantDomain
		err := query.First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("domain service: match email: %w", err)
		}
		return &record, nil
	}

	return nil, nil
}

// SplitEmailHost parses an email's host part into (subdomain, domain). When
// the host carries more than two labels, everything before the last two
// labels is the subdomain; otherwise there is no subdomain.
func SplitEmailHost(email string) (subdomain, domain string, err error) {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", "", ErrInvalidEmail
	}

	host := email[at+1:]
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return "", "", ErrInvalidEmail
	}
	for _, label := range labels {
		if label == "" {
			return "", "", ErrInvalidEmail
		}
	}

	domain = strings.Join(labels[len(labels)-2:], ".")
	if len(labels) > 2 {
		subdomain = strings.Join(labels[:len(labels)-2], ".")
	}
	return subdomain, domain, nil
}
