package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/inkhousehq/inkhouse/internal/services"
	"github.com/inkhousehq/inkhouse/pkg/response"
)

type LabHandler struct {
	svc *services.LabService
}

type bookLabRequest struct {
	LabName  string    `json:"lab_name" validate:"required,min=1,max=128"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required"`
	Notes    string    `json:"notes" validate:"omitempty,max=1024"`
}

func NewLabHandler(db *gorm.DB) (*LabHandler, error) {
	grants, err := services.NewGrantService(db)
	if err != nil {
		return nil, err
	}
	resolver, err := services.NewPermissionResolver(grants)
	if err != nil {
		return nil, err
	}
	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	svc, err := services.NewLabService(db, resolver, audit)
	if err != nil {
		return nil, err
	}
	return &LabHandler{svc: svc}, nil
}

// GET /api/labs/bookings
func (h *LabHandler) Upcoming(c *gin.Context) {
	bookings, err := h.svc.Upcoming(requestContext(c), currentUserID(c), currentTenantID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, bookings)
}

// POST /api/labs/bookings
func (h *LabHandler) Book(c *gin.Context) {
	var body bookLabRequest
	if !bindAndValidate(c, &body) {
		return
	}

	booking, err := h.svc.Book(requestContext(c), currentUserID(c), currentTenantID(c), services.BookLabInput{
		LabName:  body.LabName,
		StartsAt: body.StartsAt,
		EndsAt:   body.EndsAt,
		Notes:    body.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, booking)
}

// DELETE /api/labs/bookings/:id
func (h *LabHandler) Cancel(c *gin.Context) {
	if err := h.svc.Cancel(requestContext(c), currentUserID(c), currentTenantID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"cancelled": true})
}
