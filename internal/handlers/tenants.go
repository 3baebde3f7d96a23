package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/inkhousehq/inkhouse/internal/services"
	"github.com/inkhousehq/inkhouse/pkg/errors"
	"github.com/inkhousehq/inkhouse/pkg/response"
)

type TenantHandler struct {
	svc *services.TenantService
}

type createTenantRequest struct {
	Name     string         `json:"name" validate:"required,min=2,max=128"`
	Slug     string         `json:"slug" validate:"required,min=2,max=64,slug"`
	Settings map[string]any `json:"settings"`
}

type updateTenantRequest struct {
	Name     *string        `json:"name" validate:"omitempty,min=2,max=128"`
	Settings map[string]any `json:"settings"`
}

type setTenantActiveRequest struct {
	Active bool `json:"active"`
}

func NewTenantHandler(db *gorm.DB) (*TenantHandler, error) {
	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	svc, err := services.NewTenantService(db, audit)
	if err != nil {
		return nil, err
	}
	return &TenantHandler{svc: svc}, nil
}

// GET /api/tenants
func (h *TenantHandler) List(c *gin.Context) {
	tenants, err := h.svc.List(requestContext(c))
	if err != nil {
		response.Error(c, errors.ErrInternalServer)
		return
	}
	response.Success(c, http.StatusOK, tenants)
}

// GET /api/tenants/:id
func (h *TenantHandler) Get(c *gin.Context) {
	tenant, err := h.svc.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tenant)
}

// POST /api/tenants
func (h *TenantHandler) Create(c *gin.Context) {
	var body createTenantRequest
	if !bindAndValidate(c, &body) {
		return
	}

	tenant, err := h.svc.Create(requestContext(c), services.CreateTenantInput{
		Name:     strings.TrimSpace(body.Name),
		Slug:     body.Slug,
		Settings: body.Settings,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, tenant)
}

// PATCH /api/tenants/:id
func (h *TenantHandler) Update(c *gin.Context) {
	var body updateTenantRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if body.Name == nil && body.Settings == nil {
		response.Error(c, errors.NewBadRequest("no fields provided for update"))
		return
	}

	tenant, err := h.svc.Update(requestContext(c), c.Param("id"), services.UpdateTenantInput{
		Name:     body.Name,
		Settings: body.Settings,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tenant)
}

// POST /api/tenants/:id/active
func (h *TenantHandler) SetActive(c *gin.Context) {
	var body setTenantActiveRequest
	if !bindAndValidate(c, &body) {
		return
	}

	tenant, err := h.svc.SetActive(requestContext(c), c.Param("id"), body.Active)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tenant)
}

// DELETE /api/tenants/:id
func (h *TenantHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
