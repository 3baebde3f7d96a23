package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/inkhousehq/inkhouse/internal/models"
	"github.com/inkhousehq/inkhouse/pkg/crypto"
	apperrors "github.com/inkhousehq/inkhouse/pkg/errors"
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrDuplicateUser signals the username or email is already registered.
	ErrDuplicateUser = apperrors.NewConflict("DUPLICATE_USER", "Username or email already registered")
)

// RegisterUserInput captures the attributes of a new user.
type RegisterUserInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
}

// UserService manages the platform's mirror of the identity subsystem and
// runs first-contact auto-assignment for new identities.
type UserService struct {
	db         *gorm.DB
	autoAssign *AutoAssignService
	groups     *GroupService
	audit      *AuditService
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB, autoAssign *AutoAssignService, groups *GroupService, audit *AuditService) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db, autoAssign: autoAssign, groups: groups, audit: audit}, nil
}

// Register creates a user and establishes their first group membership.
// A missing domain match is not fatal: the user falls back to the matched
// tenant's default group when a tenant can be inferred, or stays ungrouped.
func (s *UserService) Register(ctx context.Context, input RegisterUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if username == "" || email == "" {
		return nil, apperrors.NewBadRequest("username and email are required")
	}
	if len(input.Password) < 8 {
		return nil, apperrors.NewBadRequest("password must be at least 8 characters")
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{
		Username:    username,
		Email:       email,
		Password:    hashed,
		DisplayName: strings.TrimSpace(input.DisplayName),
		IsActive:    true,
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}

	s.firstContactAssignment(ctx, user)

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &user.ID,
		Action:   "user.register",
		Resource: user.ID,
		Result:   "success",
	})

	return user, nil
}

// Authenticate verifies credentials and stamps the login time.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).
		First(&user, "username = ? AND is_active = ?", strings.TrimSpace(username), true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	if !crypto.VerifyPassword(user.Password, password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		return nil, fmt.Errorf("user service: stamp login: %w", err)
	}
	user.LastLoginAt = &now

	return &user, nil
}

// GetByID loads a user with their group memberships.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Memberships.Group").
		First(&user, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user: %w", err)
	}
	return &user, nil
}

// firstContactAssignment runs the auto-assignment engine once for a newly
// recognised identity. Failures never block registration.
func (s *UserService) firstContactAssignment(ctx context.Context, user *models.User) {
	if s.autoAssign == nil {
		return
	}

	_, _, err := s.autoAssign.AutoAssign(ctx, user.ID, user.Email)
	if err == nil || errors.Is(err, ErrNoMatchingDomain) || errors.Is(err, ErrInvalidEmail) {
		return
	}

	// The domain matched but carries no group binding: fall back to the
	// matched tenant's default group when one exists.
	if errors.Is(err, ErrUnboundDomain) && s.groups != nil {
		domain, matchErr := s.autoAssign.domains.MatchEmail(ctx, user.Email)
		if matchErr != nil || domain == nil {
			return
		}
		fallback, groupErr := s.groups.DefaultGroup(ctx, domain.TenantID)
		if groupErr != nil || fallback == nil {
			return
		}
		_, _, _ = s.autoAssign.ensureMembership(ctx, user.ID, fallback.ID)
	}
}
