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
	"github.com/inkhousehq/inkhouse/internal/permissions"
	apperrors "github.com/inkhousehq/inkhouse/pkg/errors"
)

var (
	// ErrBookingNotFound indicates the requested lab booking does not exist.
	ErrBookingNotFound = apperrors.New("BOOKING_NOT_FOUND", "Lab booking not found", http.StatusNotFound)
	// ErrBookingOverlap signals the requested slot collides with an existing booking.
	ErrBookingOverlap = apperrors.NewConflict("BOOKING_OVERLAP", "Lab slot overlaps an existing booking")
)

// BookLabInput captures a testing-lab reservation request.
type BookLabInput struct {
	LabName  string
	StartsAt time.Time
	EndsAt   time.Time
	Notes    string
}

// LabService schedules testing-lab slots per tenant.
type LabService struct {
	db       *gorm.DB
	resolver *PermissionResolver
	audit    *AuditService
	now      func() time.Time
}

// NewLabService constructs a LabService instance.
func NewLabService(db *gorm.DB, resolver *PermissionResolver, audit *AuditService) (*LabService, error) {
	if db == nil {
		return nil, errors.New("lab service: db is required")
	}
	if resolver == nil {
		return nil, errors.New("lab service: permission resolver is required")
	}
	return &LabService{db: db, resolver: resolver, audit: audit, now: time.Now}, nil
}

// Book reserves a lab slot for the user, rejecting overlapping reservations
// of the same lab inside one transaction.
func (s *LabService) Book(ctx context.Context, userID, tenantID string, input BookLabInput) (*models.LabBooking, error) {
	ctx = ensureContext(ctx)

	ok, err := s.resolver.Has(ctx, userID, tenantID, permissions.TypeScheduleLab)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrForbidden
	}

	labName := strings.TrimSpace(input.LabName)
	if labName == "" {
		return nil, apperrors.NewBadRequest("lab name is required")
	}
	if !input.EndsAt.After(input.StartsAt) {
		return nil, apperrors.NewBadRequest("booking must end after it starts")
	}

	booking := &models.LabBooking{
		TenantID: strings.TrimSpace(tenantID),
		UserID:   strings.TrimSpace(userID),
		LabName:  labName,
		StartsAt: input.StartsAt,
		EndsAt:   input.EndsAt,
		Status:   models.LabBookingStatusScheduled,
		Notes:    strings.TrimSpace(input.Notes),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var overlapping int64
		err := tx.Model(&models.LabBooking{}).
			Where("tenant_id = ? AND lab_name = ? AND status = ?", booking.TenantID, labName, models.LabBookingStatusScheduled).
			Where("starts_at < ? AND ends_at > ?", input.EndsAt, input.StartsAt).
			Count(&overlapping).Error
		if err != nil {
			return fmt.Errorf("lab service: check overlap: %w", err)
		}
		if overlapping > 0 {
			return ErrBookingOverlap
		}
		return tx.Create(booking).Error
	})
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &booking.UserID,
		TenantID: &booking.TenantID,
		Action:   "lab.book",
		Resource: booking.ID,
		Result:   "success",
		Metadata: map[string]any{"lab": labName},
	})

	return booking, nil
}

// Cancel withdraws a booking. Owners may cancel their own bookings; anyone
// with lab management rights may cancel any booking in the tenant.
func (s *LabService) Cancel(ctx context.Context, userID, tenantID, bookingID string) error {
	ctx = ensureContext(ctx)

	var booking models.LabBooking
	err := s.db.WithContext(ctx).
		First(&booking, "id = ? AND tenant_id = ?", strings.TrimSpace(bookingID), strings.TrimSpace(tenantID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrBookingNotFound
	}
	if err != nil {
		return fmt.Errorf("lab service: load booking: %w", err)
	}

	if booking.UserID != strings.TrimSpace(userID) {
		ok, err := s.resolver.Has(ctx, userID, tenantID, permissions.TypeManageLab)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.ErrForbidden
		}
	}

	if err := s.db.WithContext(ctx).Model(&booking).
		Update("status", models.LabBookingStatusCancelled).Error; err != nil {
		return fmt.Errorf("lab service: cancel booking: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &booking.UserID,
		TenantID: &booking.TenantID,
		Action:   "lab.cancel",
		Resource: booking.ID,
		Result:   "success",
	})

	return nil
}

// Upcoming lists scheduled bookings of a tenant from now onwards.
func (s *LabService) Upcoming(ctx context.Context, userID, tenantID string) ([]models.LabBooking, error) {
	ctx = ensureContext(ctx)

	ok, err := s.resolver.Has(ctx, userID, tenantID, permissions.TypeRead)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrForbidden
	}

	var bookings []models.LabBooking
	err = s.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ? AND ends_at > ?",
			strings.TrimSpace(tenantID), models.LabBookingStatusScheduled, s.now()).
		Order("starts_at ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("lab service: list bookings: %w", err)
	}
	return bookings, nil
}

// ExpirePast marks scheduled bookings that already ended as expired and
// returns how many rows changed. Driven by the maintenance scheduler.
func (s *LabService) ExpirePast(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Model(&models.LabBooking{}).
		Where("status = ? AND ends_at <= ?", models.LabBookingStatusScheduled, s.now()).
		Update("status", models.LabBookingStatusExpired)
	if result.Error != nil {
		return 0, fmt.Errorf("lab service: expire bookings: %w", result.Error)
	}
	return result.RowsAffected, nil
}
